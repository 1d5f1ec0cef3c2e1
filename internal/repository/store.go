package repository

import (
	"context"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

// Store is the unit-of-work entry point.  Every read and write happens
// inside WithTx so that slot locks are held for the whole critical
// section.  fn's error rolls the transaction back; a nil return commits.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the reads and writes available inside one transaction.
// Methods whose name starts with Lock acquire row locks that are held
// until the transaction ends.
type Tx interface {
	// GetEvent loads an event with its courses and holes.
	GetEvent(ctx context.Context, eventID uint64) (*model.Event, error)

	// LockSlots returns the slots among slotIDs that belong to the event.
	// Missing ids are simply absent from the result.
	LockSlots(ctx context.Context, eventID uint64, slotIDs []uint64) ([]model.Slot, error)
	LockRegistrationSlots(ctx context.Context, registrationID uint64) ([]model.Slot, error)
	LockGroupSlots(ctx context.Context, eventID uint64, holeID *uint64, startingOrder int) ([]model.Slot, error)
	// LockHeldSlotsForPlayers returns held slots in the event occupied by
	// any of the players.
	LockHeldSlotsForPlayers(ctx context.Context, eventID uint64, playerIDs []uint64) ([]model.Slot, error)
	ListEventSlots(ctx context.Context, eventID uint64) ([]model.Slot, error)
	CountSlots(ctx context.Context, eventID uint64, statuses ...model.SlotStatus) (int, error)
	// InsertSlots writes new slots and fills in their IDs.
	InsertSlots(ctx context.Context, slots []model.Slot) error
	UpdateSlot(ctx context.Context, s *model.Slot) error
	DeleteSlots(ctx context.Context, ids []uint64) error
	DeleteEventSlots(ctx context.Context, eventID uint64) error

	// GetRegistration locks and returns a registration without its slots.
	GetRegistration(ctx context.Context, id uint64) (*model.Registration, error)
	// FindRegistration returns the most recent registration a user made
	// for an event.
	FindRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error)
	InsertRegistration(ctx context.Context, r *model.Registration) error
	UpdateRegistration(ctx context.Context, r *model.Registration) error
	DeleteRegistration(ctx context.Context, id uint64) error
	// ExpiredRegistrationIDs lists registrations past their expiry that
	// still own a Pending slot.
	ExpiredRegistrationIDs(ctx context.Context, now time.Time) ([]uint64, error)

	ListEventFees(ctx context.Context, eventID uint64) ([]model.EventFee, error)
	InsertPayment(ctx context.Context, p *model.Payment) error
	GetPayment(ctx context.Context, id uint64) (*model.Payment, error)
	GetPaymentByCode(ctx context.Context, code string) (*model.Payment, error)
	UpdatePayment(ctx context.Context, p *model.Payment) error
	// UnconfirmedPayments locks the unconfirmed payments of a registration,
	// oldest first.
	UnconfirmedPayments(ctx context.Context, registrationID uint64) ([]model.Payment, error)
	DeletePayment(ctx context.Context, id uint64) error
	// AbandonedPaymentIDs lists unconfirmed payments with no gateway
	// correlation id created before the cutoff.
	AbandonedPaymentIDs(ctx context.Context, before time.Time) ([]uint64, error)
	InsertRegistrationFees(ctx context.Context, fees []model.RegistrationFee) error
	ListRegistrationFees(ctx context.Context, paymentID uint64) ([]model.RegistrationFee, error)
	MarkFeesPaid(ctx context.Context, paymentID uint64) error
	DeleteUnpaidFees(ctx context.Context, paymentID uint64) error
	// DetachFees clears the slot reference of fee lines for dropped slots.
	DetachFees(ctx context.Context, slotIDs []uint64) error

	GetRefundByCode(ctx context.Context, code string) (*model.Refund, error)
	InsertRefund(ctx context.Context, r *model.Refund) error
	UpdateRefund(ctx context.Context, r *model.Refund) error

	GetPlayers(ctx context.Context, ids []uint64) ([]model.Player, error)
	GrantMembership(ctx context.Context, playerID uint64, season int) error
}
