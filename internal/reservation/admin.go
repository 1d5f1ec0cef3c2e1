package reservation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/repository"
)

// GenerateLayout creates the slot grid of a choosable event.  It does
// nothing when the event already has slots and returns how many slots
// were created.
func (e *Engine) GenerateLayout(ctx context.Context, eventID uint64) (int, error) {
	created := 0
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event %d: %w", eventID, err)
		}
		existing, err := tx.CountSlots(ctx, eventID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		slots := BuildLayout(ev)
		if err := tx.InsertSlots(ctx, slots); err != nil {
			return err
		}
		created = len(slots)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		e.log.Info("slot layout generated", zap.Uint64("event_id", eventID), zap.Int("slots", created))
	}
	return created, nil
}

// RemoveLayout deletes every slot of an event.  It refuses with
// ErrLayoutInUse while any slot is held by a registration.
func (e *Engine) RemoveLayout(ctx context.Context, eventID uint64) (int, error) {
	removed := 0
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return fmt.Errorf("event %d: %w", eventID, err)
		}
		held, err := tx.CountSlots(ctx, eventID, model.SlotPending, model.SlotProcessing, model.SlotReserved)
		if err != nil {
			return err
		}
		if held > 0 {
			return ErrLayoutInUse
		}
		if removed, err = tx.CountSlots(ctx, eventID); err != nil {
			return err
		}
		return tx.DeleteEventSlots(ctx, eventID)
	})
	if err != nil {
		return 0, Translate(err)
	}
	e.log.Info("slot layout removed", zap.Uint64("event_id", eventID), zap.Int("slots", removed))
	return removed, nil
}

// AddGroup appends a group of empty slots to a hole, after the highest
// starting order already used on it.
func (e *Engine) AddGroup(ctx context.Context, eventID, holeID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event %d: %w", eventID, err)
		}
		hole, ok := findHole(ev, holeID)
		if !ok {
			return fmt.Errorf("hole %d: %w", holeID, ErrNotFound)
		}
		slots, err := tx.ListEventSlots(ctx, eventID)
		if err != nil {
			return err
		}
		next := 0
		for _, s := range slots {
			if s.HoleID != nil && *s.HoleID == holeID && s.StartingOrder >= next {
				next = s.StartingOrder + 1
			}
		}
		size := ev.MaximumSignupGroupSize
		if size < 1 {
			size = ev.GroupSize
		}
		for i := 0; i < size; i++ {
			out = append(out, model.Slot{
				EventID:       eventID,
				HoleID:        &hole.ID,
				HoleNumber:    hole.HoleNumber,
				StartingOrder: next,
				SlotIndex:     i,
				Status:        model.SlotAvailable,
			})
		}
		return tx.InsertSlots(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveGroup deletes one group of slots.  Held groups are refused.
func (e *Engine) RemoveGroup(ctx context.Context, eventID, holeID uint64, startingOrder int) error {
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		group, err := tx.LockGroupSlots(ctx, eventID, &holeID, startingOrder)
		if err != nil {
			return err
		}
		if len(group) == 0 {
			return fmt.Errorf("group %d/%d: %w", holeID, startingOrder, ErrNotFound)
		}
		ids := make([]uint64, len(group))
		for i, s := range group {
			if s.Status.Held() {
				return ErrLayoutInUse
			}
			ids[i] = s.ID
		}
		return tx.DeleteSlots(ctx, ids)
	})
	return Translate(err)
}

// ListEventSlots returns the event's slots ordered by position.
func (e *Engine) ListEventSlots(ctx context.Context, eventID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return fmt.Errorf("event %d: %w", eventID, err)
		}
		var err error
		out, err = tx.ListEventSlots(ctx, eventID)
		return err
	})
	return out, err
}

// GetEvent loads an event with its courses.
func (e *Engine) GetEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	var ev *model.Event
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		ev, err = tx.GetEvent(ctx, eventID)
		return err
	})
	return ev, err
}
