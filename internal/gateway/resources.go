package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// IntentStatus is the gateway-reported state of a payment intent.
type IntentStatus string

const (
	IntentAwaitingPaymentMethod IntentStatus = "awaiting_payment_method"
	IntentAwaitingNextAction    IntentStatus = "awaiting_next_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCancelled             IntentStatus = "cancelled"
	IntentExpired               IntentStatus = "expired"
)

// ToMinorUnits converts a major-unit amount into the gateway's integer
// minor units. This is the only place the conversion happens.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// FromMinorUnits converts gateway minor units back to a major-unit amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type resource[A any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes A      `json:"attributes"`
}

type attributes[A any] struct {
	Attributes A `json:"attributes"`
}

func wrap[A any](attrs A) envelope[attributes[A]] {
	return envelope[attributes[A]]{Data: attributes[A]{Attributes: attrs}}
}

// PaymentIntent is the decoded view of a gateway payment intent.
type PaymentIntent struct {
	ID          string
	Amount      decimal.Decimal
	Currency    string
	Status      IntentStatus
	ClientKey   string
	RedirectURL string
	LastError   string
	Metadata    map[string]string
}

// HasFailedAttempt reports whether the intent went back to awaiting a
// payment method because the last attempt was declined.
func (pi *PaymentIntent) HasFailedAttempt() bool {
	return pi.Status == IntentAwaitingPaymentMethod && pi.LastError != ""
}

// IsTerminalFailure reports whether the intent can no longer succeed.
func (pi *PaymentIntent) IsTerminalFailure() bool {
	return pi.Status == IntentCancelled || pi.Status == IntentExpired
}

type intentAttributes struct {
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency"`
	Status               IntentStatus      `json:"status,omitempty"`
	ClientKey            string            `json:"client_key,omitempty"`
	PaymentMethodAllowed []string          `json:"payment_method_allowed,omitempty"`
	Description          string            `json:"description,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	NextAction           *struct {
		Type     string `json:"type"`
		Redirect struct {
			URL       string `json:"url"`
			ReturnURL string `json:"return_url"`
		} `json:"redirect"`
	} `json:"next_action,omitempty"`
	LastPaymentError *struct {
		Code          string `json:"code"`
		FailedMessage string `json:"failed_message"`
	} `json:"last_payment_error,omitempty"`
}

func (a intentAttributes) toIntent(id string) *PaymentIntent {
	pi := &PaymentIntent{
		ID:        id,
		Amount:    FromMinorUnits(a.Amount),
		Currency:  a.Currency,
		Status:    a.Status,
		ClientKey: a.ClientKey,
		Metadata:  a.Metadata,
	}
	if a.NextAction != nil {
		pi.RedirectURL = a.NextAction.Redirect.URL
	}
	if a.LastPaymentError != nil {
		pi.LastError = a.LastPaymentError.Code
		if pi.LastError == "" {
			pi.LastError = a.LastPaymentError.FailedMessage
		}
	}
	return pi
}

// CreateIntentParams describes a new payment intent.
type CreateIntentParams struct {
	Amount         decimal.Decimal
	Currency       string
	AllowedMethods []string
	Description    string
	Metadata       map[string]string
}

// CreatePaymentIntent creates a payment intent. The idempotency key makes
// client-side retries resolve to a single gateway intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error) {
	body := wrap(intentAttributes{
		Amount:               ToMinorUnits(params.Amount),
		Currency:             params.Currency,
		PaymentMethodAllowed: params.AllowedMethods,
		Description:          params.Description,
		Metadata:             params.Metadata,
	})

	var out envelope[resource[intentAttributes]]
	err := c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           "/payment_intents",
		Body:           body,
		IdempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data.Attributes.toIntent(out.Data.ID), nil
}

// RetrievePaymentIntent fetches the authoritative state of an intent.
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID, clientKey string) (*PaymentIntent, error) {
	var query url.Values
	if clientKey != "" {
		query = url.Values{"client_key": {clientKey}}
	}

	var out envelope[resource[intentAttributes]]
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/payment_intents/" + url.PathEscape(intentID),
		Query:  query,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data.Attributes.toIntent(out.Data.ID), nil
}

// CardDetails is raw card data passed straight through for tokenization.
type CardDetails struct {
	Number   string `json:"card_number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

// Billing is optional payer information attached to a payment method.
type Billing struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreatePaymentMethodParams describes a payment method to tokenize.
type CreatePaymentMethodParams struct {
	Type    string
	Card    *CardDetails
	Billing *Billing
}

type paymentMethodAttributes struct {
	Type    string       `json:"type"`
	Details *CardDetails `json:"details,omitempty"`
	Billing *Billing     `json:"billing,omitempty"`
}

// CreatePaymentMethod tokenizes a payment method and returns its id.
func (c *Client) CreatePaymentMethod(ctx context.Context, params CreatePaymentMethodParams) (string, error) {
	body := wrap(paymentMethodAttributes{
		Type:    params.Type,
		Details: params.Card,
		Billing: params.Billing,
	})

	var out envelope[resource[struct {
		Type string `json:"type"`
	}]]
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/payment_methods",
		Body:   body,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &GatewayError{Status: http.StatusOK, Code: "missing_id", Detail: "payment method response had no id"}
	}
	return out.Data.ID, nil
}

// AttachParams attaches a payment method to an intent.
type AttachParams struct {
	PaymentMethodID string
	ClientKey       string
	ReturnURL       string
}

type attachAttributes struct {
	PaymentMethod string `json:"payment_method"`
	ClientKey     string `json:"client_key,omitempty"`
	ReturnURL     string `json:"return_url,omitempty"`
}

// AttachPaymentIntent attaches a payment method and returns the resulting
// intent state.
func (c *Client) AttachPaymentIntent(ctx context.Context, intentID string, params AttachParams, idempotencyKey string) (*PaymentIntent, error) {
	body := wrap(attachAttributes{
		PaymentMethod: params.PaymentMethodID,
		ClientKey:     params.ClientKey,
		ReturnURL:     params.ReturnURL,
	})

	var out envelope[resource[intentAttributes]]
	err := c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           fmt.Sprintf("/payment_intents/%s/attach", url.PathEscape(intentID)),
		Body:           body,
		IdempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data.Attributes.toIntent(out.Data.ID), nil
}
