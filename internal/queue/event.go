// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
)

// RegistrationConfirmedQueue carries one message per paid registration.
const RegistrationConfirmedQueue = "registration.confirmed"

// RegistrationConfirmedEvent is published when a registration's payment
// clears.  It carries everything the confirmation emails need so the
// consumer never reads the primary database.
type RegistrationConfirmedEvent struct {
	MessageID      string          `json:"message_id"`
	RegistrationID uint64          `json:"registration_id"`
	EventID        uint64          `json:"event_id"`
	EventName      string          `json:"event_name"`
	EventType      string          `json:"event_type"`
	UserID         uint64          `json:"user_id"`
	SignedUpBy     string          `json:"signed_up_by"`
	PaymentID      uint64          `json:"payment_id"`
	PaymentCode    string          `json:"payment_code"`
	AmountCents    int64           `json:"amount_cents"`
	Start          string          `json:"start"`
	Slots          []ConfirmedSlot `json:"slots"`
	Recipients     []Recipient     `json:"recipients"`
	ConfirmedAt    string          `json:"confirmed_at"`
}

// ConfirmedSlot is one reserved position.
type ConfirmedSlot struct {
	SlotID     uint64  `json:"slot_id"`
	HoleNumber int     `json:"hole_number"`
	Order      int     `json:"starting_order"`
	Index      int     `json:"slot"`
	PlayerID   *uint64 `json:"player_id,omitempty"`
}

// Recipient is a player who receives the confirmation.
type Recipient struct {
	PlayerID uint64 `json:"player_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// NewRegistrationConfirmedEvent flattens a confirmation into a message.
func NewRegistrationConfirmedEvent(c *payment.Confirmation, now time.Time) RegistrationConfirmedEvent {
	ev := RegistrationConfirmedEvent{
		MessageID:      uuid.NewString(),
		RegistrationID: c.Registration.ID,
		EventID:        c.Event.ID,
		EventName:      c.Event.Name,
		EventType:      c.Event.EventType,
		UserID:         c.Registration.UserID,
		SignedUpBy:     c.Registration.SignedUpBy,
		PaymentID:      c.Payment.ID,
		PaymentCode:    c.Payment.PaymentCode,
		AmountCents:    c.Payment.AmountCents,
		ConfirmedAt:    now.UTC().Format(time.RFC3339),
	}
	if len(c.Slots) > 0 {
		ev.Start = StartLabel(&c.Event, c.Slots[0])
	}
	for _, s := range c.Slots {
		ev.Slots = append(ev.Slots, ConfirmedSlot{
			SlotID: s.ID, HoleNumber: s.HoleNumber, Order: s.StartingOrder, Index: s.SlotIndex, PlayerID: s.PlayerID,
		})
	}
	for _, p := range c.Recipients {
		ev.Recipients = append(ev.Recipients, Recipient{PlayerID: p.ID, Name: p.Name(), Email: p.Email})
	}
	return ev
}

// StartLabel describes where a group starts: "7B" for the second group
// on hole 7 of a shotgun, "tee time 3" for the third tee time.
func StartLabel(e *model.Event, s model.Slot) string {
	switch e.StartType {
	case model.StartTypeShotgun:
		return fmt.Sprintf("%d%c", s.HoleNumber, 'A'+rune(s.StartingOrder))
	case model.StartTypeTeeTimes:
		return fmt.Sprintf("tee time %d", s.StartingOrder+1)
	}
	return "n/a"
}
