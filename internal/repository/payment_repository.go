package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

const paymentColumns = `id, event_id, user_id, registration_id, payment_code, payment_key,
	amount_cents, fee_cents, confirmed, confirmed_at, created_at`

func (t *sqlTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := t.exec(ctx, `INSERT INTO payments
		(event_id, user_id, registration_id, payment_code, payment_key, amount_cents, fee_cents,
		 confirmed, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.EventID, p.UserID, p.RegistrationID, p.PaymentCode, p.PaymentKey, p.AmountCents, p.FeeCents,
		p.Confirmed, p.ConfirmedAt, p.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (t *sqlTx) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	var p model.Payment
	if err := t.tx.GetContext(ctx, &p, `SELECT `+paymentColumns+`
		FROM payments WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (t *sqlTx) GetPaymentByCode(ctx context.Context, code string) (*model.Payment, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	var p model.Payment
	if err := t.tx.GetContext(ctx, &p, `SELECT `+paymentColumns+`
		FROM payments WHERE payment_code = ? ORDER BY id LIMIT 1 FOR UPDATE`, code); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (t *sqlTx) UnconfirmedPayments(ctx context.Context, registrationID uint64) ([]model.Payment, error) {
	var out []model.Payment
	err := t.tx.SelectContext(ctx, &out, `SELECT `+paymentColumns+`
		FROM payments WHERE registration_id = ? AND confirmed = 0 ORDER BY id FOR UPDATE`, registrationID)
	return out, mapError(err)
}

func (t *sqlTx) UpdatePayment(ctx context.Context, p *model.Payment) error {
	_, err := t.exec(ctx, `UPDATE payments
		SET registration_id = ?, payment_code = ?, payment_key = ?, amount_cents = ?, fee_cents = ?,
		    confirmed = ?, confirmed_at = ?
		WHERE id = ?`,
		p.RegistrationID, p.PaymentCode, p.PaymentKey, p.AmountCents, p.FeeCents,
		p.Confirmed, p.ConfirmedAt, p.ID)
	return err
}

// DeletePayment removes the payment; its fee lines go with it through the
// ON DELETE CASCADE foreign key.
func (t *sqlTx) DeletePayment(ctx context.Context, id uint64) error {
	res, err := t.exec(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) AbandonedPaymentIDs(ctx context.Context, before time.Time) ([]uint64, error) {
	var ids []uint64
	err := t.tx.SelectContext(ctx, &ids, `SELECT id FROM payments
		WHERE confirmed = 0 AND payment_code = '' AND created_at < ?
		ORDER BY id`, before.UTC())
	return ids, mapError(err)
}

func (t *sqlTx) InsertRegistrationFees(ctx context.Context, fees []model.RegistrationFee) error {
	if len(fees) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO registration_fees (event_fee_id, slot_id, payment_id, is_paid, amount_cents) VALUES `)
	args := make([]interface{}, 0, len(fees)*5)
	for i, f := range fees {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, f.EventFeeID, f.SlotID, f.PaymentID, f.IsPaid, f.AmountCents)
	}
	res, err := t.exec(ctx, sb.String(), args...)
	if err != nil {
		return err
	}
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range fees {
		fees[i].ID = uint64(first) + uint64(i)
	}
	return nil
}

func (t *sqlTx) ListRegistrationFees(ctx context.Context, paymentID uint64) ([]model.RegistrationFee, error) {
	var out []model.RegistrationFee
	err := t.tx.SelectContext(ctx, &out, `SELECT id, event_fee_id, slot_id, payment_id, is_paid, amount_cents
		FROM registration_fees WHERE payment_id = ? ORDER BY id`, paymentID)
	return out, mapError(err)
}

func (t *sqlTx) MarkFeesPaid(ctx context.Context, paymentID uint64) error {
	_, err := t.exec(ctx, `UPDATE registration_fees SET is_paid = 1 WHERE payment_id = ?`, paymentID)
	return err
}

func (t *sqlTx) DeleteUnpaidFees(ctx context.Context, paymentID uint64) error {
	_, err := t.exec(ctx, `DELETE FROM registration_fees WHERE payment_id = ? AND is_paid = 0`, paymentID)
	return err
}

func (t *sqlTx) DetachFees(ctx context.Context, slotIDs []uint64) error {
	if len(slotIDs) == 0 {
		return nil
	}
	q, args, err := t.in(`UPDATE registration_fees SET slot_id = NULL WHERE slot_id IN (?)`, slotIDs)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, q, args...)
	return err
}

const refundColumns = `id, payment_id, refund_code, amount_cents, issuer_id, notes, confirmed, created_at`

func (t *sqlTx) GetRefundByCode(ctx context.Context, code string) (*model.Refund, error) {
	var r model.Refund
	if err := t.tx.GetContext(ctx, &r, `SELECT `+refundColumns+`
		FROM refunds WHERE refund_code = ? FOR UPDATE`, code); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (t *sqlTx) InsertRefund(ctx context.Context, r *model.Refund) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := t.exec(ctx, `INSERT INTO refunds
		(payment_id, refund_code, amount_cents, issuer_id, notes, confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.PaymentID, r.RefundCode, r.AmountCents, r.IssuerID, r.Notes, r.Confirmed, r.CreatedAt)
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

func (t *sqlTx) UpdateRefund(ctx context.Context, r *model.Refund) error {
	_, err := t.exec(ctx, `UPDATE refunds SET amount_cents = ?, issuer_id = ?, notes = ?, confirmed = ? WHERE id = ?`,
		r.AmountCents, r.IssuerID, r.Notes, r.Confirmed, r.ID)
	return err
}
