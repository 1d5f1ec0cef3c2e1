package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/payment"
)

// maxWebhookBody bounds the payload read from Stripe.
const maxWebhookBody = 64 << 10

// WebhookHandler handles Stripe webhook events
type WebhookHandler struct {
	Coordinator   *payment.Coordinator
	WebhookSecret string
	Season        SeasonFunc
	Log           *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(coord *payment.Coordinator, secret string, season SeasonFunc, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{Coordinator: coord, WebhookSecret: secret, Season: season, Log: log}
}

// HandleStripe handles POST /v1/webhooks/stripe.  The signature is
// verified before anything is parsed.  Unhandled event types and events
// for unknown payments are acknowledged so Stripe stops redelivering;
// a confirmation that could not be stored answers 500 so it is retried.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" {
		h.Log.Warn("webhook without Stripe-Signature header")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing Stripe-Signature header"})
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, h.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.Log.Warn("webhook signature verification failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	log := h.Log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	ctx := c.Request().Context()
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to parse event data"})
		}
		err := h.Coordinator.OnPaymentConfirmed(ctx, pi.ID, h.Season())
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Warn("succeeded intent has no payment", zap.String("payment_code", pi.ID))
		} else if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
		}

	case "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to parse event data"})
		}
		reason := string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		h.Coordinator.OnPaymentFailed(ctx, pi.ID, reason)

	case "refund.created", "refund.updated":
		var r stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &r); err != nil || r.PaymentIntent == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to parse event data"})
		}
		notice := payment.RefundNotice{RefundCode: r.ID, PaymentCode: r.PaymentIntent.ID, AmountCents: r.Amount}
		if r.Status == stripe.RefundStatusSucceeded {
			err = h.Coordinator.OnRefundConfirmed(ctx, notice)
		} else {
			err = h.Coordinator.OnRefundCreated(ctx, notice)
		}
		if err != nil && !errors.Is(err, payment.ErrPaymentNotFound) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refund update failed"})
		}

	default:
		log.Debug("unhandled webhook event")
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
