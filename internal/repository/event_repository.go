package repository

import (
	"context"

	"github.com/bhmc/slot-reservation/internal/model"
)

// GetEvent loads the event row followed by its courses and their holes.
// Events are maintained elsewhere, so no lock is taken.
func (t *sqlTx) GetEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	var e model.Event
	err := t.tx.GetContext(ctx, &e, `SELECT id, name, event_type, registration_type, start_type,
		can_choose, group_size, total_groups, minimum_signup_group_size, maximum_signup_group_size,
		registration_maximum, priority_signup_start, signup_start, signup_end, signup_waves,
		starter_time_interval
		FROM events WHERE id = ?`, eventID)
	if err != nil {
		return nil, mapError(err)
	}
	var courses []model.Course
	if err := t.tx.SelectContext(ctx, &courses, `SELECT c.id, c.name FROM courses c
		JOIN event_courses ec ON ec.course_id = c.id
		WHERE ec.event_id = ? ORDER BY c.id`, eventID); err != nil {
		return nil, mapError(err)
	}
	for i := range courses {
		if err := t.tx.SelectContext(ctx, &courses[i].Holes, `SELECT id, course_id, hole_number, par
			FROM holes WHERE course_id = ? ORDER BY hole_number`, courses[i].ID); err != nil {
			return nil, mapError(err)
		}
	}
	e.Courses = courses
	return &e, nil
}

func (t *sqlTx) ListEventFees(ctx context.Context, eventID uint64) ([]model.EventFee, error) {
	var out []model.EventFee
	err := t.tx.SelectContext(ctx, &out, `SELECT id, event_id, name, amount_cents, is_required
		FROM event_fees WHERE event_id = ? ORDER BY id`, eventID)
	return out, mapError(err)
}

func (t *sqlTx) GetPlayers(ctx context.Context, ids []uint64) ([]model.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := t.in(`SELECT id, first_name, last_name, email, is_member
		FROM players WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	var out []model.Player
	if err := t.tx.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// GrantMembership records a season membership and flips the player's
// member flag.  Granting twice is harmless.
func (t *sqlTx) GrantMembership(ctx context.Context, playerID uint64, season int) error {
	if _, err := t.exec(ctx, `INSERT IGNORE INTO memberships (player_id, season) VALUES (?, ?)`,
		playerID, season); err != nil {
		return err
	}
	_, err := t.exec(ctx, `UPDATE players SET is_member = 1 WHERE id = ?`, playerID)
	return err
}
