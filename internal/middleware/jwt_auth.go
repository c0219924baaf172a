package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// identityKey is the echo context key holding the *models.Identity.
const identityKey = "identity"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*models.User, error)
}

// JWTAuthMiddleware checks for a valid bearer token, loads the user it was
// issued for and stores the caller's identity in the context.
func JWTAuthMiddleware(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
			}

			// Expecting "Bearer <token>"
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			user, err := auth.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				switch {
				case errors.Is(err, services.ErrTokenExpired):
					return echo.NewHTTPError(http.StatusUnauthorized, "Token expired")
				case errors.Is(err, services.ErrInvalidToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
				case errors.Is(err, services.ErrNotFound):
					return echo.NewHTTPError(http.StatusNotFound, "User not found")
				}
				slog.Error("authentication failed", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "Authentication failed")
			}

			c.Set(identityKey, &models.Identity{UserID: user.ID, Role: user.Role})
			return next(c)
		}
	}
}

// IdentityFromContext returns the identity set by JWTAuthMiddleware, or nil on
// unauthenticated routes.
func IdentityFromContext(c echo.Context) *models.Identity {
	ident, _ := c.Get(identityKey).(*models.Identity)
	return ident
}
