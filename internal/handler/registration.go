package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/reservation"
)

// RegistrationHandler exposes slot reservation to members.  All methods
// except ListSlots assume JWTAuth has run.
type RegistrationHandler struct {
	Engine      *reservation.Engine
	Coordinator *payment.Coordinator
	Cache       *middleware.ResponseCache
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(engine *reservation.Engine, coord *payment.Coordinator, cache *middleware.ResponseCache) *RegistrationHandler {
	if engine == nil || coord == nil {
		panic("nil dependency passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Engine: engine, Coordinator: coord, Cache: cache}
}

func slotsPath(eventID uint64) string { return fmt.Sprintf("/v1/events/%d/slots", eventID) }

// evict drops the cached availability of an event after a write.
func (h *RegistrationHandler) evict(c echo.Context, eventID uint64) {
	h.Cache.Invalidate(c.Request().Context(), slotsPath(eventID))
}

// ListSlots handles GET /v1/events/:id/slots.  It returns every slot of
// the event with a status summary.
func (h *RegistrationHandler) ListSlots(c echo.Context) error {
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	slots, err := h.Engine.ListEventSlots(c.Request().Context(), eventID)
	if err != nil {
		return respondError(c, err)
	}
	summary := map[string]int{}
	for _, s := range slots {
		summary[s.Status.String()]++
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id": eventID,
		"slots":    slots,
		"summary":  summary,
	})
}

type reserveBody struct {
	CourseID *uint64                  `json:"course_id"`
	Slots    []model.SlotClaimRequest `json:"slots"`
	Notes    *string                  `json:"notes"`
}

// Reserve handles POST /v1/events/:id/registrations.  The signed-in
// player occupies the first claimed slot; the rest stay open for
// AddPlayers.  Returns 201 with the registration and its expiry.
func (h *RegistrationHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body reserveBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	for _, s := range body.Slots {
		if s.SlotID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id is required"})
		}
		if s.PlayerID != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "players are added after reserving"})
		}
	}
	reg, err := h.Engine.Reserve(c.Request().Context(), reservation.ReserveRequest{
		EventID:    eventID,
		UserID:     userID,
		PlayerID:   getPlayerID(c),
		CourseID:   body.CourseID,
		Slots:      body.Slots,
		SignedUpBy: getName(c),
		Notes:      body.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, eventID)
	return c.JSON(http.StatusCreated, reg)
}

// GetRegistration handles GET /v1/registrations/:id.
func (h *RegistrationHandler) GetRegistration(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	reg, err := h.Engine.GetRegistration(c.Request().Context(), regID)
	if err != nil {
		return respondError(c, err)
	}
	if reg.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
	}
	return c.JSON(http.StatusOK, reg)
}

// AddPlayers handles POST /v1/registrations/:id/players with
// {"player_ids": [...]}.
func (h *RegistrationHandler) AddPlayers(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	var body struct {
		PlayerIDs []uint64 `json:"player_ids"`
	}
	if err := c.Bind(&body); err != nil || len(body.PlayerIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "player_ids is required"})
	}
	ctx := c.Request().Context()
	current, err := h.Engine.GetRegistration(ctx, regID)
	if err != nil {
		return respondError(c, err)
	}
	if current.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
	}
	reg, err := h.Engine.AddPlayers(ctx, regID, body.PlayerIDs)
	if err != nil {
		return respondError(c, err)
	}
	h.evict(c, reg.EventID)
	return c.JSON(http.StatusOK, reg)
}

// Cancel handles PUT /v1/registrations/:id/cancel.  An optional
// payment_id cancels the unpaid gateway intent as well.  Cancelling an
// unknown registration succeeds.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
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
	ctx := c.Request().Context()
	var eventID uint64
	if reg, err := h.Engine.GetRegistration(ctx, regID); err == nil {
		eventID = reg.EventID
	}
	if body.Reason == "" {
		body.Reason = "user cancelled"
	}
	res, err := h.Coordinator.CancelRegistration(ctx, reservation.CancelRequest{
		RegistrationID: regID,
		PaymentID:      body.PaymentID,
		UserID:         userID,
		Reason:         body.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	if eventID != 0 {
		h.evict(c, eventID)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"canceled":    res.Canceled,
		"slots_freed": res.SlotsFreed,
	})
}
