// Package handler contains the HTTP handlers of the registration API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/reservation"
)

// getUserID returns the authenticated user id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := c.Get(middleware.UserIDKey).(uint64); ok && id != 0 {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

func getPlayerID(c echo.Context) uint64 {
	id, _ := c.Get(middleware.PlayerIDKey).(uint64)
	return id
}

func getName(c echo.Context) string {
	name, _ := c.Get(middleware.NameKey).(string)
	return name
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, reservation.ErrSlotsConflict),
		errors.Is(err, reservation.ErrAlreadyRegistered),
		errors.Is(err, reservation.ErrEventFull),
		errors.Is(err, reservation.ErrRegistrationFull),
		errors.Is(err, reservation.ErrPlayerConflict),
		errors.Is(err, reservation.ErrLayoutInUse),
		errors.Is(err, reservation.ErrRegistrationConfirmed),
		errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrNotRefundable):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrSlotsMissing),
		errors.Is(err, reservation.ErrRegistrationNotOpen),
		errors.Is(err, reservation.ErrCourseRequired),
		errors.Is(err, reservation.ErrWaveNotOpen),
		errors.Is(err, payment.ErrInvalidFee),
		errors.Is(err, payment.ErrNothingSelected),
		errors.Is(err, payment.ErrRefundTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the error body.  Unexpected errors are not echoed
// to the client.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Set(middleware.ErrorKey, err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	var wave *reservation.WaveNotOpenError
	if errors.As(err, &wave) {
		body["wave"] = wave.Wave
	}
	return c.JSON(status, body)
}
