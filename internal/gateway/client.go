package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

const (
	// APIVersionHeader pins the gateway API version on every request.
	APIVersionHeader = "Api-Version"
	// IdempotencyHeader carries the caller's idempotency key.
	IdempotencyHeader = "Idempotency-Key"

	maxResponseBytes = 1 << 20
)

// Config holds the settings for a gateway client.
type Config struct {
	BaseURL      string
	SecretKey    string
	APIVersion   string
	Timeout      time.Duration
	RetryBackoff time.Duration
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is the single outbound path to the payment gateway.
type Client struct {
	baseURL      string
	authHeader   string
	apiVersion   string
	retryBackoff time.Duration
	httpClient   *http.Client
}

// NewClient creates a gateway client. The secret key is encoded into the
// Basic auth header once and not retained in plain form.
func NewClient(cfg Config) *Client {
	token := base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey + ":"))
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		authHeader:   "Basic " + token,
		apiVersion:   cfg.APIVersion,
		retryBackoff: cfg.RetryBackoff,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(cfg.Transport),
		},
	}
}

// Request describes one logical gateway operation.
type Request struct {
	Method         string
	Path           string
	Body           any
	IdempotencyKey string
	Query          url.Values
}

// Do executes the request and decodes a successful response into out.
// Transient statuses (429, 500, 502, 503, 504) are retried exactly once
// after the configured backoff, reusing the same idempotency key. Every
// other failure is returned immediately as a *GatewayError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		payload = b
	}

	var lastErr *GatewayError
	for attempt := 1; attempt <= 2; attempt++ {
		status, body, err := c.send(ctx, req, payload)
		if err != nil {
			return &GatewayError{Err: err}
		}

		if status >= 200 && status < 300 {
			if out == nil || len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return &GatewayError{Status: status, Code: "decode_error", Err: err}
			}
			return nil
		}

		lastErr = parseError(status, body)
		if attempt == 1 && lastErr.Retryable() {
			metricsRetry(req.Path, status)
			log.Printf("[GATEWAY] %s %s returned %d, retrying once in %s", req.Method, req.Path, status, c.retryBackoff)
			if err := c.wait(ctx); err != nil {
				lastErr.Err = err
				return lastErr
			}
			continue
		}
		return lastErr
	}
	return lastErr
}

// send performs a single HTTP attempt.
func (c *Client) send(ctx context.Context, req Request, payload []byte) (int, []byte, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", c.authHeader)
	httpReq.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		httpReq.Header.Set(APIVersionHeader, c.apiVersion)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metricsObserve(req.Method, req.Path, "error", time.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metricsObserve(req.Method, req.Path, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.retryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.retryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// errorBody is the gateway's error envelope.
type errorBody struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func parseError(status int, body []byte) *GatewayError {
	gerr := &GatewayError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
		gerr.Code = eb.Errors[0].Code
		gerr.Detail = eb.Errors[0].Detail
	}
	return gerr
}
