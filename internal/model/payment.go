package model

import "time"

// NoChargeCode is stored as the payment code when nothing was owed and
// no gateway intent was created.
const NoChargeCode = "no charge"

// Payment tracks the money owed for a registration and its correlation
// with the payment gateway.
//
// Fields:
//
//	ID             – primary key identifier.
//	EventID        – event paid for.
//	UserID         – payer.
//	RegistrationID – registration the fees belong to.
//	PaymentCode    – gateway correlation id, empty until an intent exists.
//	PaymentKey     – client secret handed to the browser.
//	AmountCents    – total charged, surcharge included.
//	FeeCents       – transaction surcharge part of AmountCents.
//	Confirmed      – gateway confirmed the charge.
//	ConfirmedAt    – when the confirmation arrived.
//	CreatedAt      – creation timestamp.
type Payment struct {
	ID             uint64     `db:"id" json:"id"`
	EventID        uint64     `db:"event_id" json:"event_id"`
	UserID         uint64     `db:"user_id" json:"user_id"`
	RegistrationID *uint64    `db:"registration_id" json:"registration_id,omitempty"`
	PaymentCode    string     `db:"payment_code" json:"payment_code"`
	PaymentKey     *string    `db:"payment_key" json:"-"`
	AmountCents    int64      `db:"amount_cents" json:"amount_cents"`
	FeeCents       int64      `db:"fee_cents" json:"fee_cents"`
	Confirmed      bool       `db:"confirmed" json:"confirmed"`
	ConfirmedAt    *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// RegistrationFee is one fee line charged for one slot within a payment.
type RegistrationFee struct {
	ID          uint64  `db:"id" json:"id"`
	EventFeeID  uint64  `db:"event_fee_id" json:"event_fee_id"`
	SlotID      *uint64 `db:"slot_id" json:"slot_id,omitempty"`
	PaymentID   uint64  `db:"payment_id" json:"payment_id"`
	IsPaid      bool    `db:"is_paid" json:"is_paid"`
	AmountCents int64   `db:"amount_cents" json:"amount_cents"`
}

// Refund mirrors a refund issued at the gateway.
type Refund struct {
	ID          uint64    `db:"id" json:"id"`
	PaymentID   uint64    `db:"payment_id" json:"payment_id"`
	RefundCode  string    `db:"refund_code" json:"refund_code"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	IssuerID    *uint64   `db:"issuer_id" json:"issuer_id,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Confirmed   bool      `db:"confirmed" json:"confirmed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
