package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bhmc/slot-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	UserIDKey   = "user_id"
	PlayerIDKey = "player_id"
	RoleKey     = "role"
	NameKey     = "name"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the user id, player id, role and display name into the
// request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			userID, _ := claims.UserID()
			c.Set(UserIDKey, userID)
			c.Set(PlayerIDKey, claims.PlayerID)
			c.Set(RoleKey, claims.Role)
			c.Set(NameKey, claims.Name)
			return next(c)
		}
	}
}
