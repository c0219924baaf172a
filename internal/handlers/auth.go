package handlers

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// IDTokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	users    *services.UserService
	firebase IDTokenVerifier
}

// NewAuthHandler creates a new AuthHandler. firebase may be nil, in which case
// the Firebase login route is not registered.
func NewAuthHandler(users *services.UserService, firebase IDTokenVerifier) *AuthHandler {
	return &AuthHandler{users: users, firebase: firebase}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password/:token", h.ResetPassword)
	g.POST("/verify-token", h.VerifyToken, requireAuth)
	g.GET("/logout", h.Logout, requireAuth)
	if h.firebase != nil {
		g.POST("/firebase-login", h.FirebaseLogin)
	}
}

// Register creates a reader or author account; a profile photo may be
// uploaded as the multipart field "photo".
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	photo, err := optionalImage(c, "photo", storage.MaxAvatarSize)
	if err != nil {
		return httpError(c, err)
	}

	resp, err := h.users.Register(c.Request().Context(), req, photo)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	resp, err := h.users.Login(c.Request().Context(), req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// VerifyToken returns the user behind the bearer token.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	ident := middleware.IdentityFromContext(c)
	user, err := h.users.GetUser(c.Request().Context(), ident.UserID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.ToCompact()})
}

// Logout is stateless; clients drop their token.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// ForgotPassword emails a password reset link.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.users.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset link sent to your email"})
}

// ResetPassword sets a new password using the emailed token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.users.ResetPassword(c.Request().Context(), c.Param("token"), req); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset successfully"})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin handles Firebase ID token verification and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := h.firebase.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	email, _ := token.Claims["email"].(string)
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Firebase account has no email address")
	}
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	resp, err := h.users.ExternalLogin(c.Request().Context(), email, name, picture)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
