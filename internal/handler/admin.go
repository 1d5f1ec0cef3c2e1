package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/reservation"
)

// AdminHandler groups the staff-only operations.  Routes are guarded by
// RequireRole(ADMIN).
type AdminHandler struct {
	Engine         *reservation.Engine
	Coordinator    *payment.Coordinator
	Cache          *middleware.ResponseCache
	AbandonedAfter time.Duration
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(engine *reservation.Engine, coord *payment.Coordinator, cache *middleware.ResponseCache, abandonedAfter time.Duration) *AdminHandler {
	return &AdminHandler{Engine: engine, Coordinator: coord, Cache: cache, AbandonedAfter: abandonedAfter}
}

func (h *AdminHandler) evict(c echo.Context, eventID uint64) {
	h.Cache.Invalidate(c.Request().Context(), slotsPath(eventID))
}

// GenerateLayout handles POST /v1/admin/events/:id/layout.
func (h *AdminHandler) GenerateLayout(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	n, err := h.Engine.GenerateLayout(c.Request().Context(), eventID)
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	status := http.StatusCreated
	if n == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"created": n})
}

// RemoveLayout handles DELETE /v1/admin/events/:id/layout.
func (h *AdminHandler) RemoveLayout(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	n, err := h.Engine.RemoveLayout(c.Request().Context(), eventID)
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	return c.JSON(http.StatusOK, echo.Map{"removed": n})
}

// AddGroup handles POST /v1/admin/events/:id/holes/:hole/groups.
func (h *AdminHandler) AddGroup(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	holeID, ok2 := paramID(c, "hole")
	if !ok || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event or hole id"})
	}
	slots, err := h.Engine.AddGroup(c.Request().Context(), eventID, holeID)
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	return c.JSON(http.StatusCreated, echo.Map{"slots": slots})
}

// RemoveGroup handles DELETE /v1/admin/events/:id/holes/:hole/groups/:order.
func (h *AdminHandler) RemoveGroup(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	holeID, ok2 := paramID(c, "hole")
	order, err := strconv.Atoi(c.Param("order"))
	if !ok || !ok2 || err != nil || order < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group"})
	}
	if err := h.Engine.RemoveGroup(c.Request().Context(), eventID, holeID, order); err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	return c.NoContent(http.StatusNoContent)
}

// Reserve handles POST /v1/admin/events/:id/registrations.  Staff sign
// up any players into any open slots, bypassing the signup window,
// capacity and waves.
func (h *AdminHandler) Reserve(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body struct {
		UserID   uint64                   `json:"user_id"`
		CourseID *uint64                  `json:"course_id"`
		Slots    []model.SlotClaimRequest `json:"slots"`
		Notes    *string                  `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.UserID == 0 {
		body.UserID = adminID
	}
	reg, err := h.Engine.Reserve(c.Request().Context(), reservation.ReserveRequest{
		EventID:    eventID,
		UserID:     body.UserID,
		CourseID:   body.CourseID,
		Slots:      body.Slots,
		SignedUpBy: getName(c),
		Notes:      body.Notes,
		Admin:      true,
	})
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	return c.JSON(http.StatusCreated, reg)
}

// Drop handles POST /v1/admin/registrations/:id/drop.  Paid slots are
// released too; refunds are issued separately.
func (h *AdminHandler) Drop(c echo.Context) error {
	regID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	var body struct {
		PaymentID *uint64 `json:"payment_id"`
		Reason    string  `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Reason == "" {
		body.Reason = "dropped by administrator"
	}
	ctx := c.Request().Context()
	var eventID uint64
	if reg, err := h.Engine.GetRegistration(ctx, regID); err == nil {
		eventID = reg.EventID
	}
	res, err := h.Coordinator.CancelRegistration(ctx, reservation.CancelRequest{
		RegistrationID: regID,
		PaymentID:      body.PaymentID,
		Reason:         body.Reason,
		Drop:           true,
	})
	if err != nil {
		return respondError(c, err)
	}
	if eventID != 0 {
		h.evict(c, eventID)
	}
	return c.JSON(http.StatusOK, echo.Map{"canceled": res.Canceled, "slots_freed": res.SlotsFreed})
}

// Refund handles POST /v1/admin/payments/:id/refunds.  A zero amount
// refunds the whole payment.
func (h *AdminHandler) Refund(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	paymentID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}
	var body struct {
		AmountCents int64  `json:"amount_cents"`
		Notes       string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil || body.AmountCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	r, err := h.Coordinator.IssueRefund(c.Request().Context(), payment.IssueRefundRequest{
		PaymentID:   paymentID,
		AmountCents: body.AmountCents,
		IssuerID:    adminID,
		Notes:       body.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// Sweep handles POST /v1/admin/sweeps: an on-demand run of the expiry
// sweep and abandoned payment cleanup.
func (h *AdminHandler) Sweep(c echo.Context) error {
	ctx := c.Request().Context()
	released, err := h.Engine.SweepExpired(ctx)
	if err != nil {
		return respondError(c, err)
	}
	removed, err := h.Coordinator.CleanupAbandoned(ctx, h.AbandonedAfter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations_swept": released, "payments_removed": removed})
}
