package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserLookup loads a user by id.
type UserLookup interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// RequireRoles only lets callers through whose current role is one of roles.
// The role is read from the store on every request, so a demotion takes
// effect immediately. It must run after JWTAuthMiddleware.
func RequireRoles(users UserLookup, roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident := IdentityFromContext(c)
			if ident == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
			}

			user, err := users.GetUser(c.Request().Context(), ident.UserID)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return echo.NewHTTPError(http.StatusNotFound, "User not found")
				}
				slog.Error("role lookup failed", "user", ident.UserID.Hex(), "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
			}

			for _, role := range roles {
				if user.Role == role {
					c.Set(identityKey, &models.Identity{UserID: user.ID, Role: user.Role})
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Permission denied")
		}
	}
}
