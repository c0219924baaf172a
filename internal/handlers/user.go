package handlers

import (
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to user profiles
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group, requireAuth, requireAdmin echo.MiddlewareFunc) {
	g.PATCH("/profile/:id", h.UpdateProfile, requireAuth)
	g.PATCH("/:id/role", h.ChangeRole, requireAuth, requireAdmin)
}

// UpdateProfile replaces the profile photo of a user.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	photo, err := optionalImage(c, "photo", storage.MaxAvatarSize)
	if err != nil {
		return httpError(c, err)
	}

	user, err := h.users.UpdatePhoto(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("id"), photo)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.ToCompact()})
}

// ChangeRole sets the role of a user. Admin only.
func (h *UserHandler) ChangeRole(c echo.Context) error {
	var req models.UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.users.ChangeRole(c.Request().Context(), c.Param("id"), req.Role)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.ToCompact()})
}
