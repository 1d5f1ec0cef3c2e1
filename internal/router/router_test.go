package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/config"
	"github.com/bhmc/slot-reservation/internal/handler"
	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/repository"
	"github.com/bhmc/slot-reservation/internal/reservation"
	"github.com/bhmc/slot-reservation/internal/retry"
	"github.com/bhmc/slot-reservation/internal/utils"
)

const (
	jwtSecret     = "test-secret"
	webhookSecret = "whsec_test"
)

var season = model.SeasonSettings{Season: 2026, FixedCostCents: 30, PercentageRate: 0.029, Currency: "usd"}

type app struct {
	e       *echo.Echo
	store   *repository.MemoryStore
	gateway *payment.MockGateway
	event   model.Event
	fee     model.EventFee
	player  model.Player
	member  string
	admin   string
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := repository.NewMemoryStore()
	log := zap.NewNop()
	engine := reservation.NewEngine(store, reservation.WithLogger(log))
	gw := payment.NewMockGateway()
	fast := &retry.Config{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 2}
	coord := payment.NewCoordinator(engine, gw, payment.WithRetryConfig(fast), payment.WithLogger(log))
	cache := middleware.NewResponseCache(config.CacheConfig{}, nil, log)
	seasonFn := func() model.SeasonSettings { return season }

	e := echo.New()
	e.Use(middleware.RequestID())
	reg := handler.NewRegistrationHandler(engine, coord, cache)
	RegisterRoutes(e, nil, reg, handler.NewWebhookHandler(coord, webhookSecret, seasonFn, log), cache)
	RegisterMember(e, reg, handler.NewPaymentHandler(engine, coord, seasonFn), jwtSecret, nil)
	RegisterAdmin(e, handler.NewAdminHandler(engine, coord, cache, time.Hour), jwtSecret)

	now := time.Now().UTC()
	start, end := now.Add(-time.Hour), now.Add(48*time.Hour)
	ev := store.AddEvent(model.Event{
		Name: "Two Man Best Ball", EventType: "W", RegistrationType: "M",
		StartType: model.StartTypeShotgun, CanChoose: true, GroupSize: 4, TotalGroups: 2,
		MinimumSignupGroupSize: 1, MaximumSignupGroupSize: 4,
		SignupStart: &start, SignupEnd: &end,
		Courses: []model.Course{{Name: "North", Holes: []model.Hole{{HoleNumber: 1, Par: 4}}}},
	})
	p := store.AddPlayer(model.Player{FirstName: "Pat", LastName: "Member", Email: "pat@example.com", IsMember: true})
	fee := store.AddEventFee(model.EventFee{EventID: ev.ID, Name: "Entry", AmountCents: 1000, IsRequired: true})

	member, err := utils.NewAccessToken(jwtSecret, 7, p.ID, utils.RoleMember, "Pat Member", time.Hour)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(jwtSecret, 1, 0, utils.RoleAdmin, "Club Staff", time.Hour)
	require.NoError(t, err)

	return &app{e: e, store: store, gateway: gw, event: ev, fee: fee, player: p, member: member.Token, admin: admin.Token}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) webhook(t *testing.T, secret string, payload string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSignupAndPaymentFlow(t *testing.T) {
	a := newApp(t)
	base := fmt.Sprintf("/v1/admin/events/%d/layout", a.event.ID)

	rec := a.do(t, http.MethodPost, base, a.member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodPost, base, a.admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"created":8}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/slots", a.event.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[struct {
		Slots   []model.Slot   `json:"slots"`
		Summary map[string]int `json:"summary"`
	}](t, rec)
	require.Len(t, view.Slots, 8)
	assert.Equal(t, 8, view.Summary[model.SlotAvailable.String()])

	regPath := fmt.Sprintf("/v1/events/%d/registrations", a.event.ID)
	claim := map[string]any{
		"course_id": a.event.Courses[0].ID,
		"slots":     []model.SlotClaimRequest{{SlotID: view.Slots[0].ID}, {SlotID: view.Slots[1].ID}},
	}
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, regPath, "", claim).Code)
	rec = a.do(t, http.MethodPost, regPath, a.member, claim)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[model.Registration](t, rec)
	require.Len(t, reg.Slots, 2)
	assert.NotNil(t, reg.Expires)

	// A second claim on the same slots conflicts.
	other, err := utils.NewAccessToken(jwtSecret, 8, 0, utils.RoleMember, "Sam", time.Hour)
	require.NoError(t, err)
	rec = a.do(t, http.MethodPost, regPath, other.Token, claim)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Someone else's registration is invisible.
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/registrations/%d", reg.ID), other.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var occupied uint64
	for _, s := range reg.Slots {
		if s.PlayerID != nil {
			occupied = s.ID
		}
	}
	require.NotZero(t, occupied)
	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payments", reg.ID), a.member, map[string]any{
		"email": "pat@example.com",
		"fees":  []payment.FeeSelection{{EventFeeID: a.fee.ID, SlotID: occupied}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[payment.InitiateResult](t, rec)
	assert.EqualValues(t, 1061, started.Payment.AmountCents)
	assert.NotEmpty(t, started.ClientSecret)
	code := started.Payment.PaymentCode
	require.Contains(t, a.gateway.Intents, code)

	// An unsigned delivery is rejected and changes nothing.
	rec = a.webhook(t, "whsec_wrong", fmt.Sprintf(`{"id":"evt_bad","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent"}}}`, code))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	succeeded := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent","status":"succeeded"}}}`, code)
	rec = a.webhook(t, webhookSecret, succeeded)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.webhook(t, webhookSecret, succeeded)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, s := range a.store.Slots(a.event.ID) {
		if s.ID == occupied {
			assert.Equal(t, model.SlotReserved, s.Status)
		}
	}
	payments := a.store.Payments()
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Confirmed)

	// Paid registrations cannot be cancelled by the member.
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/v1/registrations/%d/cancel", reg.ID), a.member, map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	refundPath := fmt.Sprintf("/v1/admin/payments/%d/refunds", payments[0].ID)
	rec = a.do(t, http.MethodPost, refundPath, a.admin, map[string]any{"amount_cents": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodPost, refundPath, a.admin, map[string]any{"amount_cents": 1000, "notes": "rain out"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	refund := decode[model.Refund](t, rec)
	assert.False(t, refund.Confirmed)

	rec = a.webhook(t, webhookSecret, fmt.Sprintf(`{"id":"evt_2","object":"event","type":"refund.updated","data":{"object":{"id":%q,"object":"refund","amount":1000,"status":"succeeded","payment_intent":%q}}}`, refund.RefundCode, code))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refunds := a.store.Refunds()
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Confirmed)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/registrations/%d/drop", reg.ID), a.admin, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"canceled":true,"slots_freed":1}`, rec.Body.String())
}

func TestCancelAndUndo(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/events/%d/layout", a.event.ID), a.admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	slots := a.store.Slots(a.event.ID)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/registrations", a.event.ID), a.member, map[string]any{
		"course_id": a.event.Courses[0].ID,
		"slots":     []model.SlotClaimRequest{{SlotID: slots[4].ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[model.Registration](t, rec)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/registrations/%d/payments", reg.ID), a.member, map[string]any{
		"fees": []payment.FeeSelection{{EventFeeID: a.fee.ID, SlotID: slots[4].ID}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[payment.InitiateResult](t, rec)

	other, err := utils.NewAccessToken(jwtSecret, 99, 0, utils.RoleMember, "Mallory", time.Hour)
	require.NoError(t, err)
	rec = a.do(t, http.MethodPut, "/v1/registrations/424242/cancel", other.Token, map[string]any{
		"payment_id": started.Payment.ID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, a.gateway.CanceledIntents())
	assert.Equal(t, model.SlotProcessing, a.store.Slots(a.event.ID)[4].Status)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/v1/registrations/%d/payments/undo", reg.ID), a.member, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.SlotPending, a.store.Slots(a.event.ID)[4].Status)
	assert.Equal(t, []string{started.Payment.PaymentCode}, a.gateway.CanceledIntents())

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/v1/registrations/%d/cancel", reg.ID), a.member, map[string]any{
		"payment_id": started.Payment.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.SlotAvailable, a.store.Slots(a.event.ID)[4].Status)
	assert.Contains(t, a.gateway.CanceledIntents(), started.Payment.PaymentCode)

	// Cancelling again is a no-op.
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/v1/registrations/%d/cancel", reg.ID), a.member, map[string]any{})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/admin/events/%d/layout", a.event.ID), a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":8}`, rec.Body.String())
}

func TestUnknownWebhookEventsAreAcknowledged(t *testing.T) {
	a := newApp(t)
	rec := a.webhook(t, webhookSecret, `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.webhook(t, webhookSecret, `{"id":"evt_4","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_unknown","object":"payment_intent"}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSweep(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/v1/admin/sweeps", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"registrations_swept":0,"payments_removed":0}`, rec.Body.String())
}
