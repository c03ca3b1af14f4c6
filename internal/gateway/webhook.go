package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader is the inbound webhook signature header.
	SignatureHeader = "Gateway-Signature"

	// DefaultWebhookTolerance bounds how far a signed timestamp may drift
	// from the local clock.
	DefaultWebhookTolerance = 5 * time.Minute
)

// WebhookVerifier authenticates inbound gateway notifications.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier keyed with the gateway secret.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of "{t}.{body}".
func ComputeSignature(secret []byte, timestamp int64, body []byte) string {
	return hex.EncodeToString(sign(secret, timestamp, body))
}

func sign(secret []byte, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Verify reports whether header is a valid, fresh signature over rawBody.
// It returns false for any malformed input and never panics.
func (v *WebhookVerifier) Verify(rawBody []byte, header string) bool {
	timestamp, signatures, ok := parseSignatureHeader(header)
	if !ok {
		return false
	}

	drift := v.now().Sub(time.Unix(timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.tolerance {
		return false
	}

	expected := sign(v.secret, timestamp, rawBody)
	valid := false
	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			valid = true
		}
	}
	return valid
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]".
func parseSignatureHeader(header string) (int64, []string, bool) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, false
	}

	var (
		timestamp  int64
		haveTime   bool
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || key == "" || value == "" {
			return 0, nil, false
		}
		switch key {
		case "t":
			if haveTime {
				return 0, nil, false
			}
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, false
			}
			timestamp, haveTime = ts, true
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if !haveTime || len(signatures) == 0 {
		return 0, nil, false
	}
	return timestamp, signatures, true
}

// Webhook event types the settlement core acts on.
const (
	EventPaymentPaid     = "payment.paid"
	EventPaymentFailed   = "payment.failed"
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// ErrMalformedEvent is returned when a verified body cannot be decoded.
var ErrMalformedEvent = errors.New("gateway: malformed webhook event")

// Event is a decoded gateway notification.
type Event struct {
	ID            string
	Type          string
	IntentID      string
	ResourceID    string
	FailureReason string
}

// Succeeded reports whether the event announces collected funds.
func (e *Event) Succeeded() bool {
	return e.Type == EventPaymentPaid || e.Type == EventIntentSucceeded
}

// Failed reports whether the event announces a failed attempt.
func (e *Event) Failed() bool {
	return e.Type == EventPaymentFailed || e.Type == EventIntentFailed
}

type eventAttributes struct {
	Type string `json:"type"`
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			PaymentIntentID string `json:"payment_intent_id"`
			FailedCode      string `json:"failed_code"`
			FailedMessage   string `json:"failed_message"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. Call it only after Verify succeeds.
func ParseEvent(body []byte) (*Event, error) {
	var env envelope[resource[eventAttributes]]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedEvent
	}

	attrs := env.Data.Attributes
	if attrs.Type == "" || attrs.Data.ID == "" {
		return nil, ErrMalformedEvent
	}

	event := &Event{
		ID:            env.Data.ID,
		Type:          attrs.Type,
		ResourceID:    attrs.Data.ID,
		IntentID:      attrs.Data.Attributes.PaymentIntentID,
		FailureReason: attrs.Data.Attributes.FailedCode,
	}
	if event.FailureReason == "" {
		event.FailureReason = attrs.Data.Attributes.FailedMessage
	}
	if event.IntentID == "" && attrs.Data.Type == "payment_intent" {
		event.IntentID = attrs.Data.ID
	}
	return event, nil
}
