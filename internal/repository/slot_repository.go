package repository

import (
	"context"
	"strings"

	"github.com/bhmc/slot-reservation/internal/model"
)

const slotColumns = `id, event_id, hole_id, hole_number, starting_order, slot,
	player_id, status, registration_id, external_id`

// Slots are always locked in id order so that two transactions claiming
// overlapping sets queue instead of deadlocking.

func (t *sqlTx) LockSlots(ctx context.Context, eventID uint64, slotIDs []uint64) ([]model.Slot, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	q, args, err := t.in(`SELECT `+slotColumns+` FROM registration_slots
		WHERE event_id = ? AND id IN (?) ORDER BY id FOR UPDATE`, eventID, slotIDs)
	if err != nil {
		return nil, err
	}
	var out []model.Slot
	if err := t.tx.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (t *sqlTx) LockRegistrationSlots(ctx context.Context, registrationID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := t.tx.SelectContext(ctx, &out, `SELECT `+slotColumns+` FROM registration_slots
		WHERE registration_id = ? ORDER BY id FOR UPDATE`, registrationID)
	return out, mapError(err)
}

func (t *sqlTx) LockGroupSlots(ctx context.Context, eventID uint64, holeID *uint64, startingOrder int) ([]model.Slot, error) {
	var out []model.Slot
	err := t.tx.SelectContext(ctx, &out, `SELECT `+slotColumns+` FROM registration_slots
		WHERE event_id = ? AND hole_id <=> ? AND starting_order = ? ORDER BY slot, id FOR UPDATE`,
		eventID, holeID, startingOrder)
	return out, mapError(err)
}

func (t *sqlTx) LockHeldSlotsForPlayers(ctx context.Context, eventID uint64, playerIDs []uint64) ([]model.Slot, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	q, args, err := t.in(`SELECT `+slotColumns+` FROM registration_slots
		WHERE event_id = ? AND player_id IN (?) AND status IN ('P','X','R') ORDER BY id FOR UPDATE`,
		eventID, playerIDs)
	if err != nil {
		return nil, err
	}
	var out []model.Slot
	if err := t.tx.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (t *sqlTx) ListEventSlots(ctx context.Context, eventID uint64) ([]model.Slot, error) {
	var out []model.Slot
	err := t.tx.SelectContext(ctx, &out, `SELECT `+slotColumns+` FROM registration_slots
		WHERE event_id = ? ORDER BY hole_number, starting_order, slot, id`, eventID)
	return out, mapError(err)
}

// CountSlots counts the event's slots, optionally restricted to statuses.
func (t *sqlTx) CountSlots(ctx context.Context, eventID uint64, statuses ...model.SlotStatus) (int, error) {
	var n int
	if len(statuses) == 0 {
		err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM registration_slots WHERE event_id = ?`, eventID)
		return n, mapError(err)
	}
	q, args, err := t.in(`SELECT COUNT(*) FROM registration_slots WHERE event_id = ? AND status IN (?)`,
		eventID, statuses)
	if err != nil {
		return 0, err
	}
	err = t.tx.GetContext(ctx, &n, q, args...)
	return n, mapError(err)
}

// InsertSlots writes the slots in one multi-row insert.  InnoDB hands out
// consecutive auto-increment values for a single statement, so the ids
// are derived from LAST_INSERT_ID.
func (t *sqlTx) InsertSlots(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO registration_slots
		(event_id, hole_id, hole_number, starting_order, slot, player_id, status, registration_id, external_id) VALUES `)
	args := make([]interface{}, 0, len(slots)*9)
	for i, s := range slots {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, s.EventID, s.HoleID, s.HoleNumber, s.StartingOrder, s.SlotIndex,
			s.PlayerID, string(s.Status), s.RegistrationID, s.ExternalID)
	}
	res, err := t.exec(ctx, sb.String(), args...)
	if err != nil {
		return err
	}
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range slots {
		slots[i].ID = uint64(first) + uint64(i)
	}
	return nil
}

func (t *sqlTx) UpdateSlot(ctx context.Context, s *model.Slot) error {
	// RowsAffected is zero when nothing changed, so it is not checked.
	_, err := t.exec(ctx, `UPDATE registration_slots
		SET player_id = ?, status = ?, registration_id = ?, external_id = ?
		WHERE id = ?`, s.PlayerID, string(s.Status), s.RegistrationID, s.ExternalID, s.ID)
	return err
}

func (t *sqlTx) DeleteSlots(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := t.in(`DELETE FROM registration_slots WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, q, args...)
	return err
}

func (t *sqlTx) DeleteEventSlots(ctx context.Context, eventID uint64) error {
	_, err := t.exec(ctx, `DELETE FROM registration_slots WHERE event_id = ?`, eventID)
	return err
}
