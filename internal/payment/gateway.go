// Package payment bridges registrations to the card payment gateway.  It
// persists payments and fee lines, drives the slot state machine through
// the reservation engine, and reacts to gateway webhooks.
package payment

import (
	"context"
	"errors"
)

// ErrGateway wraps failures reported by the gateway itself.
var ErrGateway = errors.New("payment gateway error")

// IntentRequest describes a charge the browser will complete.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway's handle on a pending charge.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// RefundRequest asks the gateway to return money from a captured intent.
type RefundRequest struct {
	PaymentCode string
	AmountCents int64
	Metadata    map[string]string
}

// RefundResult is the gateway's record of a refund.
type RefundResult struct {
	ID          string
	Status      string
	AmountCents int64
}

// Gateway is the subset of a card processor the coordinator uses.
type Gateway interface {
	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
	Name() string
}
