package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/handler"
	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/utils"
)

// RegisterMember registers the signup endpoints under /v1.  They require
// a valid JWT and are rate limited per user.  Administrators may use them
// too; ownership is checked in the handlers.
func RegisterMember(e *echo.Echo, r *handler.RegistrationHandler, p *handler.PaymentHandler,
	jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleMember, utils.RoleAdmin),
	)
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/events/:id/registrations", r.Reserve)
	g.GET("/registrations/:id", r.GetRegistration)
	g.POST("/registrations/:id/players", r.AddPlayers)
	g.PUT("/registrations/:id/cancel", r.Cancel)

	g.POST("/registrations/:id/payments", p.Initiate)
	g.PUT("/registrations/:id/payments/undo", p.Undo)
}
