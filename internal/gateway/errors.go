package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// GatewayError describes a failed call to the payment gateway. Status is
// zero when no HTTP response was received.
type GatewayError struct {
	Status int
	Code   string
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("gateway: request failed: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("gateway: status %d: %s: %s", e.Status, e.Code, e.Detail)
	default:
		return fmt.Sprintf("gateway: status %d", e.Status)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the status belongs to the transient set that
// earns one more attempt.
func (e *GatewayError) Retryable() bool {
	return retryableStatus(e.Status)
}

// Timeout reports whether the request ended without a definitive answer.
// A timed-out charge may still have happened on the gateway side.
func (e *GatewayError) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsNotFound reports whether err is a gateway 404.
func IsNotFound(err error) bool {
	var gerr *GatewayError
	return errors.As(err, &gerr) && gerr.Status == http.StatusNotFound
}

// IsTimeout reports whether err is a gateway call that timed out.
func IsTimeout(err error) bool {
	var gerr *GatewayError
	return errors.As(err, &gerr) && gerr.Timeout()
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
