// Package reservation implements the slot reservation state machine:
//
//	Available -> Pending -> ProcessingPayment -> Reserved
//
// with the reverse edges Pending -> Available (expiry, cancel) and
// ProcessingPayment -> Pending (undo).  Reserved slots leave only through
// an administrator drop.  Every operation runs in one store transaction;
// the ...Tx variants let callers compose them with their own writes.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/logger"
	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/repository"
)

// Hold lengths.  Choosable events walk the player through picking a
// position so the hold is short; auto-assigned events are looser.
const (
	ChoosableHold    = 5 * time.Minute
	NonChoosableHold = 15 * time.Minute
)

// GatewayIntentPrefix marks payment codes created by the card gateway.
// Only those are cancelled remotely when a registration is cancelled.
const GatewayIntentPrefix = "pi_"

// Engine runs reservation operations against a Store.
type Engine struct {
	store repository.Store
	now   func() time.Time
	log   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine returns an engine bound to store.
func NewEngine(store repository.Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Get()
	}
	e.log = e.log.Named("reservation")
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() repository.Store { return e.store }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now().UTC() }

func holdFor(ev *model.Event) time.Duration {
	if ev.CanChoose {
		return ChoosableHold
	}
	return NonChoosableHold
}

// ReserveRequest describes a claim.  For choosable events Slots names the
// positions; for other events it is ignored and MaximumSignupGroupSize
// slots are created.  PlayerID is the submitting user's own player and
// occupies the first slot.
//
// Admin requests skip the window, capacity and wave checks, always open a
// new registration and take every occupant from the claims.
type ReserveRequest struct {
	EventID    uint64
	UserID     uint64
	PlayerID   uint64
	CourseID   *uint64
	Slots      []model.SlotClaimRequest
	SignedUpBy string
	Notes      *string
	Admin      bool
}

// Reserve claims slots for a user and returns the registration holding
// them in Pending status.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (*model.Registration, error) {
	var reg *model.Registration
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		reg, err = e.ReserveTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, Translate(err)
	}
	e.log.Info("slots reserved",
		zap.Uint64("event_id", req.EventID),
		zap.Uint64("registration_id", reg.ID),
		zap.Int("slots", len(reg.Slots)),
		zap.Bool("admin", req.Admin))
	return reg, nil
}

// ReserveTx is Reserve inside an existing transaction.
func (e *Engine) ReserveTx(ctx context.Context, tx repository.Tx, req ReserveRequest) (*model.Registration, error) {
	ev, err := tx.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", req.EventID, err)
	}
	now := e.Now()

	if !req.Admin {
		switch ev.RegistrationWindow(now) {
		case model.WindowRegistration, model.WindowPriority:
		default:
			return nil, ErrRegistrationNotOpen
		}
		if ev.RegistrationMaximum > 0 {
			reserved, err := tx.CountSlots(ctx, ev.ID, model.SlotReserved)
			if err != nil {
				return nil, err
			}
			if reserved >= ev.RegistrationMaximum {
				return nil, ErrEventFull
			}
		}
	}
	if ev.CanChoose && len(ev.Courses) > 0 && req.CourseID == nil {
		return nil, ErrCourseRequired
	}

	var claims []model.SlotClaimRequest
	if ev.CanChoose {
		claims = dedupeClaims(req.Slots)
		if len(claims) == 0 {
			return nil, ErrSlotsMissing
		}
	}

	var reg *model.Registration
	if req.Admin {
		reg, err = e.createTx(ctx, tx, ev, req.UserID, req.CourseID, req.SignedUpBy)
	} else {
		reg, err = e.CreateOrReuseTx(ctx, tx, ev, req.UserID, req.CourseID, req.SignedUpBy)
	}
	if err != nil {
		return nil, err
	}
	if req.Notes != nil {
		reg.Notes = req.Notes
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return nil, err
		}
	}

	if ev.CanChoose {
		reg.Slots, err = e.claimChosen(ctx, tx, ev, reg, req, claims, now)
	} else {
		reg.Slots, err = e.claimGenerated(ctx, tx, ev, reg, req.PlayerID)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func dedupeClaims(in []model.SlotClaimRequest) []model.SlotClaimRequest {
	seen := make(map[uint64]bool, len(in))
	out := make([]model.SlotClaimRequest, 0, len(in))
	for _, c := range in {
		if c.SlotID == 0 || seen[c.SlotID] {
			continue
		}
		seen[c.SlotID] = true
		out = append(out, c)
	}
	return out
}

func (e *Engine) claimChosen(ctx context.Context, tx repository.Tx, ev *model.Event, reg *model.Registration,
	req ReserveRequest, claims []model.SlotClaimRequest, now time.Time) ([]model.Slot, error) {
	ids := make([]uint64, len(claims))
	for i, c := range claims {
		ids[i] = c.SlotID
	}
	locked, err := tx.LockSlots(ctx, ev.ID, ids)
	if err != nil {
		return nil, err
	}
	if len(locked) != len(ids) {
		return nil, ErrSlotsMissing
	}
	byID := make(map[uint64]model.Slot, len(locked))
	for _, s := range locked {
		if s.Status != model.SlotAvailable {
			return nil, ErrSlotsConflict
		}
		byID[s.ID] = s
	}
	if !req.Admin {
		if err := checkWave(ev, locked, now); err != nil {
			return nil, err
		}
	}

	out := make([]model.Slot, 0, len(claims))
	for i, c := range claims {
		s := byID[c.SlotID]
		s.Status = model.SlotPending
		s.RegistrationID = &reg.ID
		switch {
		case req.Admin:
			s.PlayerID = c.PlayerID
		case i == 0 && req.PlayerID != 0:
			pid := req.PlayerID
			s.PlayerID = &pid
		}
		if err := tx.UpdateSlot(ctx, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) claimGenerated(ctx context.Context, tx repository.Tx, ev *model.Event, reg *model.Registration,
	playerID uint64) ([]model.Slot, error) {
	n := ev.MaximumSignupGroupSize
	if n < 1 {
		n = 1
	}
	slots := make([]model.Slot, n)
	for i := range slots {
		slots[i] = model.Slot{
			EventID:        ev.ID,
			SlotIndex:      i,
			Status:         model.SlotPending,
			RegistrationID: &reg.ID,
		}
	}
	if playerID != 0 {
		slots[0].PlayerID = &playerID
	}
	if err := tx.InsertSlots(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// CreateOrReuseTx returns the user's registration for the event.  An
// existing registration is reused when none of its slots are in payment
// or paid: its Pending slots are released and the expiry refreshed.
// Otherwise ErrAlreadyRegistered is returned.  With no prior
// registration a new one is created.
func (e *Engine) CreateOrReuseTx(ctx context.Context, tx repository.Tx, ev *model.Event, userID uint64,
	courseID *uint64, signedUpBy string) (*model.Registration, error) {
	reg, err := tx.FindRegistration(ctx, ev.ID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return e.createTx(ctx, tx, ev, userID, courseID, signedUpBy)
	}
	if err != nil {
		return nil, err
	}
	slots, err := tx.LockRegistrationSlots(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range slots {
		if s.Status == model.SlotReserved || s.Status == model.SlotProcessing {
			return nil, ErrAlreadyRegistered
		}
	}
	if _, err := e.freeSlots(ctx, tx, ev, slots, func(model.Slot) bool { return true }); err != nil {
		return nil, err
	}
	expires := e.Now().Add(holdFor(ev))
	reg.Expires = &expires
	reg.CourseID = courseID
	reg.SignedUpBy = signedUpBy
	if err := tx.UpdateRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (e *Engine) createTx(ctx context.Context, tx repository.Tx, ev *model.Event, userID uint64,
	courseID *uint64, signedUpBy string) (*model.Registration, error) {
	now := e.Now()
	expires := now.Add(holdFor(ev))
	reg := &model.Registration{
		EventID:    ev.ID,
		CourseID:   courseID,
		UserID:     userID,
		SignedUpBy: signedUpBy,
		Expires:    &expires,
		CreatedAt:  now,
	}
	if err := tx.InsertRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// freeSlots releases the Pending slots selected by keep: choosable slots
// return to Available, generated slots are deleted.  Fee lines pointing
// at them are detached.  It returns the slots left untouched.
func (e *Engine) freeSlots(ctx context.Context, tx repository.Tx, ev *model.Event, slots []model.Slot,
	keep func(model.Slot) bool) ([]model.Slot, error) {
	var freed []uint64
	var rest []model.Slot
	for _, s := range slots {
		if s.Status != model.SlotPending || !keep(s) {
			rest = append(rest, s)
			continue
		}
		freed = append(freed, s.ID)
		if ev.CanChoose {
			s.Release()
			if err := tx.UpdateSlot(ctx, &s); err != nil {
				return nil, err
			}
		}
	}
	if len(freed) == 0 {
		return rest, nil
	}
	if err := tx.DetachFees(ctx, freed); err != nil {
		return nil, err
	}
	if !ev.CanChoose {
		if err := tx.DeleteSlots(ctx, freed); err != nil {
			return nil, err
		}
	}
	return rest, nil
}

// GetRegistration returns a registration with its slots.
func (e *Engine) GetRegistration(ctx context.Context, id uint64) (*model.Registration, error) {
	var reg *model.Registration
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if reg, err = tx.GetRegistration(ctx, id); err != nil {
			return err
		}
		reg.Slots, err = tx.LockRegistrationSlots(ctx, id)
		return err
	})
	return reg, err
}

func (e *Engine) loadTx(ctx context.Context, tx repository.Tx, registrationID uint64) (*model.Registration, *model.Event, error) {
	reg, err := tx.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, nil, fmt.Errorf("registration %d: %w", registrationID, err)
	}
	ev, err := tx.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("event %d: %w", reg.EventID, err)
	}
	reg.Slots, err = tx.LockRegistrationSlots(ctx, reg.ID)
	if err != nil {
		return nil, nil, err
	}
	return reg, ev, nil
}

// AddPlayers seats more players in a registration.  Choosable events fill
// empty positions in the registration's group; other events fill the
// registration's empty slots and then append new ones up to the maximum
// signup group size.
func (e *Engine) AddPlayers(ctx context.Context, registrationID uint64, playerIDs []uint64) (*model.Registration, error) {
	var reg *model.Registration
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		reg, err = e.AddPlayersTx(ctx, tx, registrationID, playerIDs)
		return err
	})
	if err != nil {
		return nil, Translate(err)
	}
	return reg, nil
}

// AddPlayersTx is AddPlayers inside an existing transaction.
func (e *Engine) AddPlayersTx(ctx context.Context, tx repository.Tx, registrationID uint64, playerIDs []uint64) (*model.Registration, error) {
	reg, ev, err := e.loadTx(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	players := dedupeIDs(playerIDs)
	if len(players) == 0 {
		return reg, nil
	}
	held, err := tx.LockHeldSlotsForPlayers(ctx, ev.ID, players)
	if err != nil {
		return nil, err
	}
	if len(held) > 0 {
		return nil, ErrPlayerConflict
	}

	var open []model.Slot
	for _, s := range reg.Slots {
		if s.Status == model.SlotPending && s.PlayerID == nil {
			open = append(open, s)
		}
	}
	var fresh []model.Slot
	if ev.CanChoose {
		if len(reg.Slots) == 0 {
			return nil, ErrRegistrationFull
		}
		first := reg.Slots[0]
		group, err := tx.LockGroupSlots(ctx, ev.ID, first.HoleID, first.StartingOrder)
		if err != nil {
			return nil, err
		}
		for _, s := range group {
			if s.Status == model.SlotAvailable {
				open = append(open, s)
			}
		}
		if len(open) < len(players) {
			return nil, ErrRegistrationFull
		}
	} else {
		missing := len(players) - len(open)
		if missing > 0 {
			if len(reg.Slots)+missing > ev.MaximumSignupGroupSize {
				return nil, ErrRegistrationFull
			}
			next := 0
			for _, s := range reg.Slots {
				if s.SlotIndex >= next {
					next = s.SlotIndex + 1
				}
			}
			for i := 0; i < missing; i++ {
				pid := players[len(open)+i]
				fresh = append(fresh, model.Slot{
					EventID:        ev.ID,
					SlotIndex:      next + i,
					Status:         model.SlotPending,
					RegistrationID: &reg.ID,
					PlayerID:       &pid,
				})
			}
		}
	}

	seated := 0
	for i := range open {
		if seated == len(players) {
			break
		}
		s := open[i]
		pid := players[seated]
		s.PlayerID = &pid
		s.Status = model.SlotPending
		s.RegistrationID = &reg.ID
		if err := tx.UpdateSlot(ctx, &s); err != nil {
			return nil, err
		}
		seated++
	}
	if len(fresh) > 0 {
		if err := tx.InsertSlots(ctx, fresh); err != nil {
			return nil, err
		}
	}
	reg.Slots, err = tx.LockRegistrationSlots(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func dedupeIDs(in []uint64) []uint64 {
	seen := make(map[uint64]bool, len(in))
	out := make([]uint64, 0, len(in))
	for _, id := range in {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// MarkProcessing moves occupied Pending slots to ProcessingPayment and
// frees the unoccupied ones so a half-filled group does not block other
// players once payment starts.
func (e *Engine) MarkProcessing(ctx context.Context, registrationID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = e.MarkProcessingTx(ctx, tx, registrationID)
		return err
	})
	return out, Translate(err)
}

// MarkProcessingTx is MarkProcessing inside an existing transaction.  It
// returns the registration's remaining slots.
func (e *Engine) MarkProcessingTx(ctx context.Context, tx repository.Tx, registrationID uint64) ([]model.Slot, error) {
	reg, ev, err := e.loadTx(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	rest, err := e.freeSlots(ctx, tx, ev, reg.Slots, func(s model.Slot) bool { return s.PlayerID == nil })
	if err != nil {
		return nil, err
	}
	for i := range rest {
		if rest[i].Status != model.SlotPending {
			continue
		}
		rest[i].Status = model.SlotProcessing
		if err := tx.UpdateSlot(ctx, &rest[i]); err != nil {
			return nil, err
		}
	}
	return rest, nil
}

// ConfirmPayment moves ProcessingPayment slots to Reserved and returns the
// registration's Reserved slots.  Calling it again is a no-op.
func (e *Engine) ConfirmPayment(ctx context.Context, registrationID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = e.ConfirmPaymentTx(ctx, tx, registrationID)
		return err
	})
	return out, Translate(err)
}

// ConfirmPaymentTx is ConfirmPayment inside an existing transaction.
func (e *Engine) ConfirmPaymentTx(ctx context.Context, tx repository.Tx, registrationID uint64) ([]model.Slot, error) {
	reg, _, err := e.loadTx(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	var reserved []model.Slot
	pending := false
	for i := range reg.Slots {
		s := &reg.Slots[i]
		switch s.Status {
		case model.SlotProcessing:
			s.Status = model.SlotReserved
			if err := tx.UpdateSlot(ctx, s); err != nil {
				return nil, err
			}
		case model.SlotPending:
			pending = true
		}
		if s.Status == model.SlotReserved {
			reserved = append(reserved, *s)
		}
	}
	if !pending && reg.Expires != nil {
		reg.Expires = nil
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return nil, err
		}
	}
	return reserved, nil
}

// UndoProcessing returns ProcessingPayment slots to Pending, used when the
// payment intent could not be created.  The hold is restarted.
func (e *Engine) UndoProcessing(ctx context.Context, registrationID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = e.UndoProcessingTx(ctx, tx, registrationID)
		return err
	})
	return out, Translate(err)
}

// UndoProcessingTx is UndoProcessing inside an existing transaction.
func (e *Engine) UndoProcessingTx(ctx context.Context, tx repository.Tx, registrationID uint64) ([]model.Slot, error) {
	reg, ev, err := e.loadTx(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	changed := false
	for i := range reg.Slots {
		if reg.Slots[i].Status != model.SlotProcessing {
			continue
		}
		reg.Slots[i].Status = model.SlotPending
		if err := tx.UpdateSlot(ctx, &reg.Slots[i]); err != nil {
			return nil, err
		}
		changed = true
	}
	if changed {
		expires := e.Now().Add(holdFor(ev))
		reg.Expires = &expires
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return nil, err
		}
	}
	return reg.Slots, nil
}

// CancelRequest identifies a registration to cancel.  A non-zero UserID
// restricts the cancel to the owner of the registration and of PaymentID.
// PaymentID must belong to the registration.  Drop allows paid
// registrations to be released and is reserved for administrators.
type CancelRequest struct {
	RegistrationID uint64
	PaymentID      *uint64
	UserID         uint64
	Reason         string
	Drop           bool
}

// CancelResult reports what a cancel did.  CancelIntent is the gateway
// payment code the caller must cancel after the transaction commits.
type CancelResult struct {
	Canceled     bool
	SlotsFreed   int
	CancelIntent string
}

// Cancel releases a registration's slots and deletes it.  A missing
// registration counts as already cancelled.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	var res *CancelResult
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = e.CancelTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, Translate(err)
	}
	e.log.Info("registration cancelled",
		zap.Uint64("registration_id", req.RegistrationID),
		zap.String("reason", req.Reason),
		zap.Bool("found", res.Canceled),
		zap.Int("slots_freed", res.SlotsFreed))
	return res, nil
}

// CancelTx is Cancel inside an existing transaction.
func (e *Engine) CancelTx(ctx context.Context, tx repository.Tx, req CancelRequest) (*CancelResult, error) {
	res := &CancelResult{}
	var p *model.Payment
	if req.PaymentID != nil {
		var err error
		p, err = tx.GetPayment(ctx, *req.PaymentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		// The payment must belong to the caller and to this registration.
		if p != nil {
			if req.UserID != 0 && p.UserID != req.UserID {
				return nil, ErrForbidden
			}
			if p.RegistrationID == nil || *p.RegistrationID != req.RegistrationID {
				return nil, ErrForbidden
			}
		}
	}

	_, err := tx.GetRegistration(ctx, req.RegistrationID)
	found := err == nil
	if errors.Is(err, repository.ErrNotFound) {
		e.log.Warn("could not find registration to cancel", zap.Uint64("registration_id", req.RegistrationID))
	} else if err != nil {
		return nil, err
	}
	if found {
		reg, ev, err := e.loadTx(ctx, tx, req.RegistrationID)
		if err != nil {
			return nil, err
		}
		if req.UserID != 0 && reg.UserID != req.UserID {
			return nil, ErrForbidden
		}
		ids := make([]uint64, 0, len(reg.Slots))
		for _, s := range reg.Slots {
			if s.Status == model.SlotReserved && !req.Drop {
				return nil, ErrRegistrationConfirmed
			}
			ids = append(ids, s.ID)
		}
		if err := tx.DetachFees(ctx, ids); err != nil {
			return nil, err
		}
		if ev.CanChoose {
			for i := range reg.Slots {
				reg.Slots[i].Release()
				if err := tx.UpdateSlot(ctx, &reg.Slots[i]); err != nil {
					return nil, err
				}
			}
		} else if err := tx.DeleteSlots(ctx, ids); err != nil {
			return nil, err
		}
		if err := tx.DeleteRegistration(ctx, reg.ID); err != nil {
			return nil, err
		}
		res.Canceled = true
		res.SlotsFreed = len(ids)
	}

	if p != nil {
		if err := tx.DeleteUnpaidFees(ctx, p.ID); err != nil {
			return nil, err
		}
		if !p.Confirmed && strings.HasPrefix(p.PaymentCode, GatewayIntentPrefix) {
			res.CancelIntent = p.PaymentCode
		}
	}
	return res, nil
}

// SweepExpired releases the Pending slots of registrations whose hold has
// lapsed.  Each registration is handled in its own transaction; failures
// are logged and skipped.  It returns the number of registrations swept.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	now := e.Now()
	var ids []uint64
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ExpiredRegistrationIDs(ctx, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list expired registrations: %w", err)
	}
	swept := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}
		err := e.store.WithTx(ctx, func(tx repository.Tx) error {
			return e.sweepOneTx(ctx, tx, id, now)
		})
		if err != nil {
			e.log.Error("expiry sweep failed for registration", zap.Uint64("registration_id", id), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		e.log.Info("expired holds released", zap.Int("registrations", swept))
	}
	return swept, nil
}

func (e *Engine) sweepOneTx(ctx context.Context, tx repository.Tx, id uint64, now time.Time) error {
	reg, ev, err := e.loadTx(ctx, tx, id)
	if err != nil {
		return err
	}
	// A concurrent reserve may have refreshed the hold since listing.
	if reg.Expires == nil || !reg.Expires.Before(now) {
		return nil
	}
	rest, err := e.freeSlots(ctx, tx, ev, reg.Slots, func(model.Slot) bool { return true })
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return tx.DeleteRegistration(ctx, reg.ID)
	}
	return nil
}
