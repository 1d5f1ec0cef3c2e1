package repository

import (
	"context"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

const registrationColumns = `id, event_id, course_id, user_id, signed_up_by, notes, expires, created_at`

func (t *sqlTx) GetRegistration(ctx context.Context, id uint64) (*model.Registration, error) {
	var r model.Registration
	if err := t.tx.GetContext(ctx, &r, `SELECT `+registrationColumns+`
		FROM registrations WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (t *sqlTx) FindRegistration(ctx context.Context, eventID, userID uint64) (*model.Registration, error) {
	var r model.Registration
	if err := t.tx.GetContext(ctx, &r, `SELECT `+registrationColumns+`
		FROM registrations WHERE event_id = ? AND user_id = ?
		ORDER BY id DESC LIMIT 1 FOR UPDATE`, eventID, userID); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (t *sqlTx) InsertRegistration(ctx context.Context, r *model.Registration) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := t.exec(ctx, `INSERT INTO registrations
		(event_id, course_id, user_id, signed_up_by, notes, expires, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.EventID, r.CourseID, r.UserID, r.SignedUpBy, r.Notes, r.Expires, r.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

func (t *sqlTx) UpdateRegistration(ctx context.Context, r *model.Registration) error {
	_, err := t.exec(ctx, `UPDATE registrations
		SET course_id = ?, signed_up_by = ?, notes = ?, expires = ?
		WHERE id = ?`, r.CourseID, r.SignedUpBy, r.Notes, r.Expires, r.ID)
	return err
}

func (t *sqlTx) DeleteRegistration(ctx context.Context, id uint64) error {
	res, err := t.exec(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) ExpiredRegistrationIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	var ids []uint64
	err := t.tx.SelectContext(ctx, &ids, `SELECT DISTINCT r.id FROM registrations r
		JOIN registration_slots s ON s.registration_id = r.id
		WHERE r.expires < ? AND s.status = 'P'
		ORDER BY r.id`, now.UTC())
	return ids, mapError(err)
}
