package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/repository"
	"github.com/bhmc/slot-reservation/internal/reservation"
	"github.com/bhmc/slot-reservation/internal/retry"
)

var (
	ErrInvalidFee      = errors.New("selected fee does not belong to this registration")
	ErrNothingSelected = errors.New("no fees selected")
	ErrNotRefundable   = errors.New("payment cannot be refunded")
	ErrRefundTooLarge  = errors.New("refund exceeds the amount paid")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAlreadyPaid     = errors.New("registration has no unpaid slots")
)

// Confirmation describes a registration whose payment just cleared.
type Confirmation struct {
	Event        model.Event
	Registration model.Registration
	Payment      model.Payment
	Slots        []model.Slot
	Recipients   []model.Player
}

// Notifier is told about confirmed registrations.  Delivery failures are
// logged by the coordinator and never undo the confirmation.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, c *Confirmation) error
}

// MembershipSink flags players as members of a season.
type MembershipSink interface {
	GrantMembership(ctx context.Context, playerID uint64, season int) error
}

// Coordinator ties payments to the reservation state machine.
type Coordinator struct {
	engine     *reservation.Engine
	store      repository.Store
	gateway    Gateway
	notifier   Notifier
	membership MembershipSink
	retry      *retry.Config
	log        *zap.Logger
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNotifier sets where confirmations are published.
func WithNotifier(n Notifier) CoordinatorOption { return func(c *Coordinator) { c.notifier = n } }

// WithMembershipSink overrides the store-backed membership sink.
func WithMembershipSink(m MembershipSink) CoordinatorOption {
	return func(c *Coordinator) { c.membership = m }
}

// WithRetryConfig overrides the retry policy for webhook handling.
func WithRetryConfig(cfg *retry.Config) CoordinatorOption {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *zap.Logger) CoordinatorOption { return func(c *Coordinator) { c.log = l } }

// NewCoordinator wires a coordinator to the engine's store.
func NewCoordinator(engine *reservation.Engine, gateway Gateway, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		engine:  engine,
		store:   engine.Store(),
		gateway: gateway,
		retry:   retry.WebhookConfig(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.membership == nil {
		c.membership = NewStoreMembership(c.store)
	}
	return c
}

// FeeSelection picks one event fee for one slot of the registration.
type FeeSelection struct {
	EventFeeID uint64 `json:"event_fee_id"`
	SlotID     uint64 `json:"slot_id"`
}

// InitiateRequest starts payment for a registration.
type InitiateRequest struct {
	RegistrationID uint64
	UserID         uint64
	UserEmail      string
	Fees           []FeeSelection
}

// InitiateResult is returned to the browser to complete the charge.
type InitiateResult struct {
	Payment      model.Payment `json:"payment"`
	ClientSecret string        `json:"client_secret,omitempty"`
	Slots        []model.Slot  `json:"slots"`
}

// InitiatePayment records the payment and its fee lines, moves the
// registration's occupied slots to ProcessingPayment and creates the
// gateway intent.  When the gateway refuses, the slots go back to Pending
// and the error is returned.  A zero total is confirmed on the spot.
func (c *Coordinator) InitiatePayment(ctx context.Context, req InitiateRequest, season model.SeasonSettings) (*InitiateResult, error) {
	if len(req.Fees) == 0 {
		return nil, ErrNothingSelected
	}
	res := &InitiateResult{}
	var conf *Confirmation
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		reg, err := tx.GetRegistration(ctx, req.RegistrationID)
		if err != nil {
			return err
		}
		if req.UserID != 0 && reg.UserID != req.UserID {
			return reservation.ErrForbidden
		}
		slots, err := tx.LockRegistrationSlots(ctx, reg.ID)
		if err != nil {
			return err
		}
		lines, due, err := c.priceFees(ctx, tx, reg, slots, req.Fees)
		if err != nil {
			return err
		}
		total, surcharge := GrossUp(due, season.FixedCostCents, season.PercentageRate)
		regID := reg.ID
		p := &model.Payment{
			EventID:        reg.EventID,
			UserID:         reg.UserID,
			RegistrationID: &regID,
			AmountCents:    total,
			FeeCents:       surcharge,
			CreatedAt:      c.engine.Now(),
		}
		if total == 0 {
			now := p.CreatedAt
			p.PaymentCode = model.NoChargeCode
			p.Confirmed = true
			p.ConfirmedAt = &now
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		for i := range lines {
			lines[i].PaymentID = p.ID
			lines[i].IsPaid = p.Confirmed
		}
		if err := tx.InsertRegistrationFees(ctx, lines); err != nil {
			return err
		}
		rest, err := c.engine.MarkProcessingTx(ctx, tx, reg.ID)
		if err != nil {
			return err
		}
		res.Payment = *p
		res.Slots = rest
		if !p.Confirmed {
			return nil
		}
		conf, err = c.confirmTx(ctx, tx, p)
		if conf != nil {
			res.Slots = conf.Slots
		}
		return err
	})
	if err != nil {
		return nil, reservation.Translate(err)
	}
	if conf != nil {
		c.log.Info("registration confirmed without charge",
			zap.Uint64("registration_id", req.RegistrationID),
			zap.Uint64("payment_id", res.Payment.ID))
		c.afterConfirm(ctx, conf, season)
		return res, nil
	}

	p := res.Payment
	intent, err := c.gateway.CreateIntent(ctx, &IntentRequest{
		AmountCents:  p.AmountCents,
		Currency:     season.Currency,
		Description:  fmt.Sprintf("Event %d registration %d", p.EventID, req.RegistrationID),
		ReceiptEmail: req.UserEmail,
		Metadata: map[string]string{
			"registration_id": strconv.FormatUint(req.RegistrationID, 10),
			"payment_id":      strconv.FormatUint(p.ID, 10),
			"event_id":        strconv.FormatUint(p.EventID, 10),
			"user_email":      req.UserEmail,
		},
		IdempotencyKey: "payment-" + strconv.FormatUint(p.ID, 10),
	})
	if err != nil {
		c.log.Error("payment intent creation failed",
			zap.Uint64("registration_id", req.RegistrationID),
			zap.Uint64("payment_id", p.ID),
			zap.String("gateway", c.gateway.Name()),
			zap.Error(err))
		if _, undoErr := c.engine.UndoProcessing(ctx, req.RegistrationID); undoErr != nil {
			c.log.Error("could not return slots to pending", zap.Uint64("registration_id", req.RegistrationID), zap.Error(undoErr))
		}
		return nil, err
	}

	p.PaymentCode = intent.ID
	p.PaymentKey = &intent.ClientSecret
	err = c.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.UpdatePayment(ctx, &p)
	})
	if err != nil {
		c.log.Error("could not record payment intent",
			zap.Uint64("payment_id", p.ID), zap.String("payment_code", intent.ID), zap.Error(err))
		if cancelErr := c.gateway.CancelIntent(ctx, intent.ID); cancelErr != nil {
			c.log.Error("could not cancel orphaned intent", zap.String("payment_code", intent.ID), zap.Error(cancelErr))
		}
		if _, undoErr := c.engine.UndoProcessing(ctx, req.RegistrationID); undoErr != nil {
			c.log.Error("could not return slots to pending", zap.Uint64("registration_id", req.RegistrationID), zap.Error(undoErr))
		}
		return nil, fmt.Errorf("record payment intent: %w", err)
	}
	res.Payment = p
	res.ClientSecret = intent.ClientSecret
	c.log.Info("payment initiated",
		zap.Uint64("registration_id", req.RegistrationID),
		zap.Uint64("payment_id", p.ID),
		zap.String("payment_code", p.PaymentCode),
		zap.Int64("amount_cents", p.AmountCents))
	return res, nil
}

// priceFees validates the selections against the event's fees and the
// registration's occupied slots and builds the fee lines.
func (c *Coordinator) priceFees(ctx context.Context, tx repository.Tx, reg *model.Registration, slots []model.Slot,
	selections []FeeSelection) ([]model.RegistrationFee, int64, error) {
	fees, err := tx.ListEventFees(ctx, reg.EventID)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[uint64]model.EventFee, len(fees))
	for _, f := range fees {
		byID[f.ID] = f
	}
	occupied := make(map[uint64]bool, len(slots))
	unpaid := false
	for _, s := range slots {
		if s.PlayerID != nil && s.Status != model.SlotReserved {
			occupied[s.ID] = true
		}
		if s.Status == model.SlotPending || s.Status == model.SlotProcessing {
			unpaid = true
		}
	}
	if !unpaid {
		return nil, 0, ErrAlreadyPaid
	}
	lines := make([]model.RegistrationFee, 0, len(selections))
	var due int64
	for _, sel := range selections {
		f, ok := byID[sel.EventFeeID]
		if !ok || !occupied[sel.SlotID] {
			return nil, 0, ErrInvalidFee
		}
		slotID := sel.SlotID
		lines = append(lines, model.RegistrationFee{
			EventFeeID:  f.ID,
			SlotID:      &slotID,
			AmountCents: f.AmountCents,
		})
		due += f.AmountCents
	}
	return lines, due, nil
}

// confirmTx marks the payment and its fees paid, reserves the slots and
// gathers what the notification needs.
func (c *Coordinator) confirmTx(ctx context.Context, tx repository.Tx, p *model.Payment) (*Confirmation, error) {
	if !p.Confirmed {
		now := c.engine.Now()
		p.Confirmed = true
		p.ConfirmedAt = &now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := tx.MarkFeesPaid(ctx, p.ID); err != nil {
		return nil, err
	}
	conf := &Confirmation{Payment: *p}
	if p.RegistrationID == nil {
		return conf, nil
	}
	reserved, err := c.engine.ConfirmPaymentTx(ctx, tx, *p.RegistrationID)
	if errors.Is(err, repository.ErrNotFound) {
		c.log.Warn("confirmed payment has no registration",
			zap.Uint64("payment_id", p.ID), zap.Uint64("registration_id", *p.RegistrationID))
		return conf, nil
	}
	if err != nil {
		return nil, err
	}
	conf.Slots = reserved
	reg, err := tx.GetRegistration(ctx, *p.RegistrationID)
	if err != nil {
		return nil, err
	}
	reg.Slots = reserved
	conf.Registration = *reg
	ev, err := tx.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	conf.Event = *ev
	ids := make([]uint64, 0, len(reserved))
	for _, s := range reserved {
		if s.PlayerID != nil {
			ids = append(ids, *s.PlayerID)
		}
	}
	if len(ids) > 0 {
		if conf.Recipients, err = tx.GetPlayers(ctx, ids); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// afterConfirm runs the side effects of a confirmation.  Failures are
// logged only.
func (c *Coordinator) afterConfirm(ctx context.Context, conf *Confirmation, season model.SeasonSettings) {
	if conf.Event.EventType == model.EventTypeSeasonRegistration && c.membership != nil {
		for _, p := range conf.Recipients {
			if err := c.membership.GrantMembership(ctx, p.ID, season.Season); err != nil {
				c.log.Error("could not grant membership",
					zap.Uint64("player_id", p.ID), zap.Int("season", season.Season), zap.Error(err))
			}
		}
	}
	if c.notifier != nil && conf.Registration.ID != 0 {
		if err := c.notifier.RegistrationConfirmed(ctx, conf); err != nil {
			c.log.Error("could not publish registration confirmation",
				zap.Uint64("registration_id", conf.Registration.ID), zap.Error(err))
		}
	}
}

// OnPaymentConfirmed handles the gateway's success notification for the
// intent paymentCode.  It is safe to call more than once.  Transient
// failures are retried; an error returned after the last attempt needs
// manual reconciliation.
func (c *Coordinator) OnPaymentConfirmed(ctx context.Context, paymentCode string, season model.SeasonSettings) error {
	log := c.log.With(zap.String("payment_code", paymentCode))
	var conf *Confirmation
	op := func(ctx context.Context) error {
		conf = nil
		return c.store.WithTx(ctx, func(tx repository.Tx) error {
			p, err := tx.GetPaymentByCode(ctx, paymentCode)
			if errors.Is(err, repository.ErrNotFound) {
				return retry.Permanent(fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentCode))
			}
			if err != nil {
				return err
			}
			if p.Confirmed {
				log.Info("payment already confirmed", zap.Uint64("payment_id", p.ID))
				return nil
			}
			conf, err = c.confirmTx(ctx, tx, p)
			return err
		})
	}
	result := retry.New(c.retry).DoWithCallback(ctx, op, func(attempt int, err error, next time.Duration) {
		log.Warn("retrying payment confirmation", zap.Int("attempt", attempt), zap.Duration("backoff", next), zap.Error(err))
	})
	if result.Err != nil {
		log.Error("payment confirmation failed, manual reconciliation required",
			zap.Int("attempts", result.Attempts), zap.Error(result.LastError))
		if result.LastError != nil && !errors.Is(result.Err, result.LastError) {
			return fmt.Errorf("%w: %w", result.Err, result.LastError)
		}
		return result.Err
	}
	if conf == nil {
		return nil
	}
	log.Info("payment confirmed",
		zap.Uint64("payment_id", conf.Payment.ID),
		zap.Uint64("registration_id", conf.Registration.ID),
		zap.Int("slots_reserved", len(conf.Slots)))
	c.afterConfirm(ctx, conf, season)
	return nil
}

// OnPaymentFailed records a declined or abandoned charge.  The slots stay
// in ProcessingPayment so the browser can retry with the same intent.
func (c *Coordinator) OnPaymentFailed(_ context.Context, paymentCode, reason string) {
	c.log.Warn("payment failed", zap.String("payment_code", paymentCode), zap.String("reason", reason))
}

// RefundNotice is a refund as reported by the gateway.
type RefundNotice struct {
	RefundCode  string
	PaymentCode string
	AmountCents int64
}

// OnRefundCreated mirrors a gateway refund.  Repeated notices for the same
// refund code are ignored.
func (c *Coordinator) OnRefundCreated(ctx context.Context, n RefundNotice) error {
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		_, err := c.mirrorRefundTx(ctx, tx, n, false)
		return err
	})
	if err != nil {
		c.log.Error("could not record refund", zap.String("refund_code", n.RefundCode), zap.Error(err))
	}
	return err
}

// OnRefundConfirmed marks a mirrored refund confirmed.  The confirmation
// can overtake the creation notice, so a missing refund is retried a few
// times before it is recorded directly as confirmed.
func (c *Coordinator) OnRefundConfirmed(ctx context.Context, n RefundNotice) error {
	errMissing := errors.New("refund not recorded yet")
	op := func(ctx context.Context) error {
		return c.store.WithTx(ctx, func(tx repository.Tx) error {
			r, err := tx.GetRefundByCode(ctx, n.RefundCode)
			if errors.Is(err, repository.ErrNotFound) {
				return errMissing
			}
			if err != nil {
				return err
			}
			if r.Confirmed {
				return nil
			}
			r.Confirmed = true
			if n.AmountCents > 0 {
				r.AmountCents = n.AmountCents
			}
			return tx.UpdateRefund(ctx, r)
		})
	}
	result := retry.New(c.retry).Do(ctx, op)
	if result.Err == nil {
		c.log.Info("refund confirmed", zap.String("refund_code", n.RefundCode))
		return nil
	}
	if !errors.Is(result.LastError, errMissing) {
		c.log.Error("refund confirmation failed", zap.String("refund_code", n.RefundCode), zap.Error(result.LastError))
		return result.LastError
	}
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		_, err := c.mirrorRefundTx(ctx, tx, n, true)
		return err
	})
	if err != nil {
		c.log.Error("could not record confirmed refund", zap.String("refund_code", n.RefundCode), zap.Error(err))
	}
	return err
}

// mirrorRefundTx inserts the refund unless its code is already known.
func (c *Coordinator) mirrorRefundTx(ctx context.Context, tx repository.Tx, n RefundNotice, confirmed bool) (*model.Refund, error) {
	if existing, err := tx.GetRefundByCode(ctx, n.RefundCode); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	p, err := tx.GetPaymentByCode(ctx, n.PaymentCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, n.PaymentCode)
	}
	if err != nil {
		return nil, err
	}
	r := &model.Refund{
		PaymentID:   p.ID,
		RefundCode:  n.RefundCode,
		AmountCents: n.AmountCents,
		Confirmed:   confirmed,
		CreatedAt:   c.engine.Now(),
	}
	if err := tx.InsertRefund(ctx, r); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return tx.GetRefundByCode(ctx, n.RefundCode)
		}
		return nil, err
	}
	c.log.Info("refund recorded", zap.String("refund_code", n.RefundCode), zap.Uint64("payment_id", p.ID))
	return r, nil
}

// IssueRefundRequest is an administrator's refund of a confirmed payment.
type IssueRefundRequest struct {
	PaymentID   uint64
	AmountCents int64
	IssuerID    uint64
	Notes       string
}

// IssueRefund refunds through the gateway and records the refund with the
// issuer and notes attached.
func (c *Coordinator) IssueRefund(ctx context.Context, req IssueRefundRequest) (*model.Refund, error) {
	var p *model.Payment
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.GetPayment(ctx, req.PaymentID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.Confirmed || !strings.HasPrefix(p.PaymentCode, reservation.GatewayIntentPrefix) {
		return nil, ErrNotRefundable
	}
	amount := req.AmountCents
	if amount <= 0 {
		amount = p.AmountCents
	}
	if amount > p.AmountCents {
		return nil, ErrRefundTooLarge
	}

	gr, err := c.gateway.Refund(ctx, &RefundRequest{
		PaymentCode: p.PaymentCode,
		AmountCents: amount,
		Metadata: map[string]string{
			"payment_id": strconv.FormatUint(p.ID, 10),
			"issuer_id":  strconv.FormatUint(req.IssuerID, 10),
		},
	})
	if err != nil {
		c.log.Error("gateway refund failed", zap.Uint64("payment_id", p.ID), zap.Error(err))
		return nil, err
	}

	var out *model.Refund
	err = c.store.WithTx(ctx, func(tx repository.Tx) error {
		r, err := c.mirrorRefundTx(ctx, tx, RefundNotice{
			RefundCode:  gr.ID,
			PaymentCode: p.PaymentCode,
			AmountCents: amount,
		}, false)
		if err != nil {
			return err
		}
		issuer := req.IssuerID
		r.IssuerID = &issuer
		if req.Notes != "" {
			notes := req.Notes
			r.Notes = &notes
		}
		if err := tx.UpdateRefund(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record refund %s: %w", gr.ID, err)
	}
	c.log.Info("refund issued",
		zap.Uint64("payment_id", p.ID), zap.String("refund_code", gr.ID), zap.Int64("amount_cents", amount))
	return out, nil
}

// CancelRegistration cancels the registration and, once that has
// committed, the unpaid gateway intent attached to it.
func (c *Coordinator) CancelRegistration(ctx context.Context, req reservation.CancelRequest) (*reservation.CancelResult, error) {
	res, err := c.engine.Cancel(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.CancelIntent != "" {
		if err := c.gateway.CancelIntent(ctx, res.CancelIntent); err != nil {
			c.log.Error("could not cancel payment intent",
				zap.Uint64("registration_id", req.RegistrationID),
				zap.String("payment_code", res.CancelIntent),
				zap.Error(err))
		}
	}
	return res, nil
}

// UndoPayment returns a registration's ProcessingPayment slots to Pending
// when the member abandons the card form.  Open gateway intents are
// cancelled first; if any cancel fails nothing is reverted, since the
// charge may still succeed.  A non-zero userID must own the registration.
func (c *Coordinator) UndoPayment(ctx context.Context, registrationID, userID uint64) ([]model.Slot, error) {
	var intents []model.Payment
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		reg, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if userID != 0 && reg.UserID != userID {
			return reservation.ErrForbidden
		}
		pending, err := tx.UnconfirmedPayments(ctx, registrationID)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if strings.HasPrefix(p.PaymentCode, reservation.GatewayIntentPrefix) {
				intents = append(intents, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, reservation.Translate(err)
	}

	for _, p := range intents {
		if err := c.gateway.CancelIntent(ctx, p.PaymentCode); err != nil {
			c.log.Warn("undo refused, payment intent could not be cancelled",
				zap.Uint64("registration_id", registrationID),
				zap.String("payment_code", p.PaymentCode),
				zap.Error(err))
			return nil, err
		}
	}

	var slots []model.Slot
	err = c.store.WithTx(ctx, func(tx repository.Tx) error {
		for _, p := range intents {
			cur, err := tx.GetPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			if cur.Confirmed {
				return ErrAlreadyPaid
			}
			if err := tx.DeleteUnpaidFees(ctx, p.ID); err != nil {
				return err
			}
		}
		var err error
		slots, err = c.engine.UndoProcessingTx(ctx, tx, registrationID)
		return err
	})
	if err != nil {
		return nil, reservation.Translate(err)
	}
	c.log.Info("payment undone",
		zap.Uint64("registration_id", registrationID), zap.Int("intents_cancelled", len(intents)))
	return slots, nil
}

// CleanupAbandoned deletes unconfirmed payments that never received a
// gateway correlation id and are older than olderThan.  Each payment is
// removed in its own transaction; failures are logged and skipped.
func (c *Coordinator) CleanupAbandoned(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := c.engine.Now().Add(-olderThan)
	var ids []uint64
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.AbandonedPaymentIDs(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list abandoned payments: %w", err)
	}
	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		err := c.store.WithTx(ctx, func(tx repository.Tx) error {
			p, err := tx.GetPayment(ctx, id)
			if err != nil {
				return err
			}
			if p.Confirmed || p.PaymentCode != "" {
				return nil
			}
			return tx.DeletePayment(ctx, id)
		})
		if err != nil {
			c.log.Error("could not delete abandoned payment", zap.Uint64("payment_id", id), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		c.log.Info("abandoned payments removed", zap.Int("payments", removed))
	}
	return removed, nil
}
