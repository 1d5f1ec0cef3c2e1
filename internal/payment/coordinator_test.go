package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/repository"
	"github.com/bhmc/slot-reservation/internal/reservation"
	"github.com/bhmc/slot-reservation/internal/retry"
)

var baseTime = time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

var season = model.SeasonSettings{
	Season:         2026,
	FixedCostCents: 30,
	PercentageRate: 0.029,
	Currency:       "usd",
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*Confirmation
	err  error
}

func (n *recordingNotifier) RegistrationConfirmed(_ context.Context, c *Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	engine   *reservation.Engine
	gateway  *MockGateway
	notifier *recordingNotifier
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &fakeClock{t: baseTime}
	engine := reservation.NewEngine(store, reservation.WithClock(clock.Now), reservation.WithLogger(zap.NewNop()))
	gw := NewMockGateway()
	n := &recordingNotifier{}
	fast := &retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
	return &fixture{
		store:    store,
		clock:    clock,
		engine:   engine,
		gateway:  gw,
		notifier: n,
		coord:    NewCoordinator(engine, gw, WithNotifier(n), WithRetryConfig(fast), WithLogger(zap.NewNop())),
	}
}

// registered seeds a shotgun event, reserves two slots for two players
// and returns the registration and a fee per player.
func (f *fixture) registered(t *testing.T, eventType string, feeCents int64) (*model.Registration, model.EventFee) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	start, end := now.Add(-time.Hour), now.Add(48*time.Hour)
	ev := f.store.AddEvent(model.Event{
		Name: "Member Guest", EventType: eventType, RegistrationType: "M",
		StartType: model.StartTypeShotgun, CanChoose: true, GroupSize: 4, TotalGroups: 2,
		MinimumSignupGroupSize: 1, MaximumSignupGroupSize: 4,
		SignupStart: &start, SignupEnd: &end,
		Courses: []model.Course{{Name: "East", Holes: []model.Hole{{HoleNumber: 1, Par: 4}}}},
	})
	_, err := f.engine.GenerateLayout(ctx, ev.ID)
	require.NoError(t, err)
	slots := f.store.Slots(ev.ID)
	me := f.store.AddPlayer(model.Player{FirstName: "Pat", LastName: "Member", Email: "pat@example.com"})
	friend := f.store.AddPlayer(model.Player{FirstName: "Sam", LastName: "Guest", Email: "sam@example.com"})
	fee := f.store.AddEventFee(model.EventFee{EventID: ev.ID, Name: "Entry", AmountCents: feeCents, IsRequired: true})

	reg, err := f.engine.Reserve(ctx, reservation.ReserveRequest{
		EventID: ev.ID, UserID: 7, PlayerID: me.ID, CourseID: &ev.Courses[0].ID,
		Slots: []model.SlotClaimRequest{{SlotID: slots[0].ID}, {SlotID: slots[1].ID}},
	})
	require.NoError(t, err)
	reg, err = f.engine.AddPlayers(ctx, reg.ID, []uint64{friend.ID})
	require.NoError(t, err)
	return reg, fee
}

func selectAll(reg *model.Registration, fee model.EventFee) []FeeSelection {
	var out []FeeSelection
	for _, s := range reg.Slots {
		if s.PlayerID != nil {
			out = append(out, FeeSelection{EventFeeID: fee.ID, SlotID: s.ID})
		}
	}
	return out
}

func slotStatuses(store *repository.MemoryStore, registrationID uint64) []model.SlotStatus {
	var out []model.SlotStatus
	for _, r := range store.Registrations() {
		if r.ID != registrationID {
			continue
		}
		for _, s := range store.Slots(r.EventID) {
			if s.RegistrationID != nil && *s.RegistrationID == registrationID {
				out = append(out, s.Status)
			}
		}
	}
	return out
}

func TestPaymentHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)

	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{
		RegistrationID: reg.ID, UserID: 7, UserEmail: "pat@example.com", Fees: selectAll(reg, fee),
	}, season)
	require.NoError(t, err)
	assert.Equal(t, int64(1061), res.Payment.AmountCents)
	assert.Equal(t, int64(61), res.Payment.FeeCents)
	assert.NotEmpty(t, res.ClientSecret)
	require.Contains(t, f.gateway.Intents, res.Payment.PaymentCode)
	md := f.gateway.Intents[res.Payment.PaymentCode].Metadata
	assert.Equal(t, "pat@example.com", md["user_email"])
	assert.NotEmpty(t, md["registration_id"])
	assert.Equal(t, []model.SlotStatus{model.SlotProcessing, model.SlotProcessing}, slotStatuses(f.store, reg.ID))
	assert.Len(t, f.store.Slots(reg.EventID), 8)

	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))
	assert.Equal(t, []model.SlotStatus{model.SlotReserved, model.SlotReserved}, slotStatuses(f.store, reg.ID))
	for _, fl := range f.store.RegistrationFees() {
		assert.True(t, fl.IsPaid)
	}
	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Confirmed)
	require.Len(t, f.notifier.sent, 1)
	assert.Len(t, f.notifier.sent[0].Recipients, 2)
	assert.Nil(t, f.store.Registrations()[0].Expires)

	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))
	assert.Len(t, f.notifier.sent, 1, "repeat confirmation does not notify again")
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	f.gateway.CreateErr = errors.New("card network down")

	_, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, []model.SlotStatus{model.SlotPending, model.SlotPending}, slotStatuses(f.store, reg.ID))
	require.NotNil(t, f.store.Registrations()[0].Expires)

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Empty(t, payments[0].PaymentCode)

	n, err := f.coord.CleanupAbandoned(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "recent payments are kept")

	f.clock.Advance(2 * time.Hour)
	n, err = f.coord.CleanupAbandoned(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.store.Payments())
	assert.Empty(t, f.store.RegistrationFees())
}

func TestInitiatePaymentNoCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 0)

	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)
	assert.Equal(t, model.NoChargeCode, res.Payment.PaymentCode)
	assert.True(t, res.Payment.Confirmed)
	assert.Zero(t, res.Payment.AmountCents)
	assert.Empty(t, res.ClientSecret)
	assert.Empty(t, f.gateway.Intents)
	assert.Equal(t, []model.SlotStatus{model.SlotReserved, model.SlotReserved}, slotStatuses(f.store, reg.ID))
	assert.Len(t, f.notifier.sent, 1)
}

func TestInitiatePaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)

	_, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7}, season)
	assert.ErrorIs(t, err, ErrNothingSelected)

	_, err = f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 99, Fees: selectAll(reg, fee)}, season)
	assert.ErrorIs(t, err, reservation.ErrForbidden)

	other := f.store.Slots(reg.EventID)[5]
	_, err = f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7,
		Fees: []FeeSelection{{EventFeeID: fee.ID, SlotID: other.ID}}}, season)
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7,
		Fees: []FeeSelection{{EventFeeID: fee.ID + 1000, SlotID: reg.Slots[0].ID}}}, season)
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: 12345, Fees: selectAll(reg, fee)}, season)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	assert.Empty(t, f.store.Payments(), "failed validation leaves nothing behind")
}

func TestSeasonRegistrationGrantsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeSeasonRegistration, 10000)

	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)
	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))

	for _, s := range reg.Slots {
		if s.PlayerID != nil {
			assert.True(t, f.store.HasMembership(*s.PlayerID, season.Season))
		}
	}
}

func TestOnPaymentConfirmedUnknownCode(t *testing.T) {
	f := newFixture(t)
	err := f.coord.OnPaymentConfirmed(context.Background(), "pi_unknown", season)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	_, err = f.coord.IssueRefund(ctx, IssueRefundRequest{PaymentID: res.Payment.ID, AmountCents: 500, IssuerID: 1})
	assert.ErrorIs(t, err, ErrNotRefundable, "unconfirmed payments cannot be refunded")

	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))

	_, err = f.coord.IssueRefund(ctx, IssueRefundRequest{PaymentID: res.Payment.ID, AmountCents: 5000, IssuerID: 1})
	assert.ErrorIs(t, err, ErrRefundTooLarge)

	r, err := f.coord.IssueRefund(ctx, IssueRefundRequest{PaymentID: res.Payment.ID, AmountCents: 500, IssuerID: 1, Notes: "rained out"})
	require.NoError(t, err)
	require.Len(t, f.gateway.Refunds, 1)
	assert.Equal(t, res.Payment.PaymentCode, f.gateway.Refunds[0].PaymentCode)
	require.NotNil(t, r.IssuerID)
	assert.Equal(t, uint64(1), *r.IssuerID)

	notice := RefundNotice{RefundCode: r.RefundCode, PaymentCode: res.Payment.PaymentCode, AmountCents: 500}
	require.NoError(t, f.coord.OnRefundCreated(ctx, notice))
	require.Len(t, f.store.Refunds(), 1, "webhook for a known refund is ignored")

	require.NoError(t, f.coord.OnRefundConfirmed(ctx, notice))
	refunds := f.store.Refunds()
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Confirmed)
	require.NotNil(t, refunds[0].Notes)
	assert.Equal(t, "rained out", *refunds[0].Notes)

	early := RefundNotice{RefundCode: "re_dashboard", PaymentCode: res.Payment.PaymentCode, AmountCents: 100}
	require.NoError(t, f.coord.OnRefundConfirmed(ctx, early))
	require.NoError(t, f.coord.OnRefundCreated(ctx, early))
	refunds = f.store.Refunds()
	require.Len(t, refunds, 2)
	assert.Equal(t, "re_dashboard", refunds[1].RefundCode)
	assert.True(t, refunds[1].Confirmed)
}

func TestCancelRegistrationCancelsIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	out, err := f.coord.CancelRegistration(ctx, reservation.CancelRequest{
		RegistrationID: reg.ID, PaymentID: &res.Payment.ID, UserID: 7, Reason: "changed plans",
	})
	require.NoError(t, err)
	assert.True(t, out.Canceled)
	assert.Equal(t, res.Payment.PaymentCode, out.CancelIntent)
	assert.Equal(t, []string{res.Payment.PaymentCode}, f.gateway.CanceledIntents())
	assert.Empty(t, f.store.RegistrationFees())
	for _, s := range f.store.Slots(reg.EventID) {
		assert.Equal(t, model.SlotAvailable, s.Status)
	}

	f.gateway.CancelErr = errors.New("already canceled")
	out, err = f.coord.CancelRegistration(ctx, reservation.CancelRequest{RegistrationID: reg.ID, PaymentID: &res.Payment.ID})
	require.NoError(t, err, "gateway errors after commit are only logged")
	assert.False(t, out.Canceled)
}

func TestCancelRegistrationRefusesForeignPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	_, err = f.coord.CancelRegistration(ctx, reservation.CancelRequest{
		RegistrationID: 424242, PaymentID: &res.Payment.ID, UserID: 99,
	})
	assert.ErrorIs(t, err, reservation.ErrForbidden)
	assert.Empty(t, f.gateway.CanceledIntents())
	assert.Len(t, f.store.RegistrationFees(), 2)
	assert.Equal(t, []model.SlotStatus{model.SlotProcessing, model.SlotProcessing}, slotStatuses(f.store, reg.ID))
}

func TestUndoPaymentCancelsIntentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	_, err = f.coord.UndoPayment(ctx, reg.ID, 99)
	assert.ErrorIs(t, err, reservation.ErrForbidden)

	slots, err := f.coord.UndoPayment(ctx, reg.ID, 7)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Equal(t, []string{res.Payment.PaymentCode}, f.gateway.CanceledIntents())
	assert.Equal(t, []model.SlotStatus{model.SlotPending, model.SlotPending}, slotStatuses(f.store, reg.ID))
	assert.Empty(t, f.store.RegistrationFees())

	// Paying again starts a fresh intent.
	again, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)
	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, again.Payment.PaymentCode, season))
	assert.Equal(t, []model.SlotStatus{model.SlotReserved, model.SlotReserved}, slotStatuses(f.store, reg.ID))
}

func TestUndoPaymentKeepsSlotsWhenIntentCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	f.gateway.CancelErr = errors.New("payment intent has already succeeded")
	_, err = f.coord.UndoPayment(ctx, reg.ID, 7)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, []model.SlotStatus{model.SlotProcessing, model.SlotProcessing}, slotStatuses(f.store, reg.ID))

	// The charge goes through after all; the slots must survive the sweep.
	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))
	f.clock.Advance(10 * time.Minute)
	n, err := f.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []model.SlotStatus{model.SlotReserved, model.SlotReserved}, slotStatuses(f.store, reg.ID))
}

// flakyStore fails the next `failures` transactions before delegating.
type flakyStore struct {
	repository.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) failNext(n int) {
	s.mu.Lock()
	s.failures, s.calls = n, 0
	s.mu.Unlock()
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return repository.ErrLockTimeout
	}
	return s.Store.WithTx(ctx, fn)
}

func TestOnPaymentConfirmedRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyStore{Store: f.store}
	f.engine = reservation.NewEngine(flaky, reservation.WithClock(f.clock.Now), reservation.WithLogger(zap.NewNop()))
	fast := &retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
	f.coord = NewCoordinator(f.engine, f.gateway, WithNotifier(f.notifier), WithRetryConfig(fast), WithLogger(zap.NewNop()))
	ctx := context.Background()

	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	flaky.failNext(2)
	require.NoError(t, f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season))
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, []model.SlotStatus{model.SlotReserved, model.SlotReserved}, slotStatuses(f.store, reg.ID))
	assert.Len(t, f.notifier.sent, 1)
}

func TestOnPaymentConfirmedGivesUpAfterLastAttempt(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyStore{Store: f.store}
	f.engine = reservation.NewEngine(flaky, reservation.WithClock(f.clock.Now), reservation.WithLogger(zap.NewNop()))
	fast := &retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
	f.coord = NewCoordinator(f.engine, f.gateway, WithNotifier(f.notifier), WithRetryConfig(fast), WithLogger(zap.NewNop()))
	ctx := context.Background()

	reg, fee := f.registered(t, model.EventTypeWeekendMajor, 500)
	res, err := f.coord.InitiatePayment(ctx, InitiateRequest{RegistrationID: reg.ID, UserID: 7, Fees: selectAll(reg, fee)}, season)
	require.NoError(t, err)

	flaky.failNext(10)
	err = f.coord.OnPaymentConfirmed(ctx, res.Payment.PaymentCode, season)
	assert.ErrorIs(t, err, retry.ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, repository.ErrLockTimeout)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, []model.SlotStatus{model.SlotProcessing, model.SlotProcessing}, slotStatuses(f.store, reg.ID))
	assert.Empty(t, f.notifier.sent)
}
