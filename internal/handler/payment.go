package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/model"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/reservation"
)

// SeasonFunc returns the settings of the current season.
type SeasonFunc func() model.SeasonSettings

// PaymentHandler starts and rolls back payments for registrations.
type PaymentHandler struct {
	Engine      *reservation.Engine
	Coordinator *payment.Coordinator
	Season      SeasonFunc
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(engine *reservation.Engine, coord *payment.Coordinator, season SeasonFunc) *PaymentHandler {
	return &PaymentHandler{Engine: engine, Coordinator: coord, Season: season}
}

// Initiate handles POST /v1/registrations/:id/payments.  The body lists
// the fee chosen for each occupied slot.  The response carries the
// client secret the browser needs to complete the charge.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	var body struct {
		Email string                 `json:"email"`
		Fees  []payment.FeeSelection `json:"fees"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Coordinator.InitiatePayment(c.Request().Context(), payment.InitiateRequest{
		RegistrationID: regID,
		UserID:         userID,
		UserEmail:      body.Email,
		Fees:           body.Fees,
	}, h.Season())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Undo handles PUT /v1/registrations/:id/payments/undo, used when the
// browser abandons the card form.  The open intent is cancelled and the
// slots return to Pending with a fresh hold.  If the intent cannot be
// cancelled the slots stay in ProcessingPayment and 502 is returned.
func (h *PaymentHandler) Undo(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	ctx := c.Request().Context()
	reg, err := h.Engine.GetRegistration(ctx, regID)
	if err != nil {
		return respondError(c, err)
	}
	if reg.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
	}
	slots, err := h.Coordinator.UndoPayment(ctx, regID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}
