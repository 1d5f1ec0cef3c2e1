// Package router registers the HTTP routes of the registration API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/handler"
	"github.com/bhmc/slot-reservation/internal/middleware"
)

// RegisterRoutes registers the routes that need no authentication: the
// health check, the public availability view and the Stripe webhook.
// The webhook authenticates itself by signature.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check, r *handler.RegistrationHandler,
	w *handler.WebhookHandler, cache *middleware.ResponseCache) {
	e.GET("/healthz", handler.Health(checks))
	e.GET("/v1/events/:id/slots", r.ListSlots, cache.Middleware())
	e.POST("/v1/webhooks/stripe", w.HandleStripe)
}
