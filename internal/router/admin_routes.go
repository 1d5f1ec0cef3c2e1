package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/handler"
	"github.com/bhmc/slot-reservation/internal/middleware"
	"github.com/bhmc/slot-reservation/internal/utils"
)

// RegisterAdmin registers staff endpoints under /v1/admin.  All routes
// require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	// Layout
	g.POST("/events/:id/layout", h.GenerateLayout)
	g.DELETE("/events/:id/layout", h.RemoveLayout)
	g.POST("/events/:id/holes/:hole/groups", h.AddGroup)
	g.DELETE("/events/:id/holes/:hole/groups/:order", h.RemoveGroup)

	// Registrations and payments
	g.POST("/events/:id/registrations", h.Reserve)
	g.POST("/registrations/:id/drop", h.Drop)
	g.POST("/payments/:id/refunds", h.Refund)

	g.POST("/sweeps", h.Sweep)
}
