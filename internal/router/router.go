package router

import (
	"log/slog"

	"github.com/anonto42/inkwell/backend/internal/handlers"
	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
)

// Services is everything the HTTP layer needs to serve requests.
type Services struct {
	Users         *services.UserService
	Posts         *services.PostService
	Comments      *services.CommentService
	Notifications *services.NotificationService

	// Firebase enables POST /api/users/firebase-login when non-nil.
	Firebase handlers.IDTokenVerifier
	// HealthChecks are probed by GET /api/health.
	HealthChecks map[string]handlers.Pinger
	// BlogLimiter, when set, rate limits the /api/blog group.
	BlogLimiter eMiddleware.RateLimiterStore
	// UploadDir is served at /uploads when the local store is in use.
	UploadDir string
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, s Services) {
	if s.UploadDir != "" {
		e.Static("/uploads", s.UploadDir)
	}

	api := e.Group("/api")

	api.GET("/health", handlers.NewHealthHandler(s.HealthChecks).HealthCheck)

	requireAuth := middleware.JWTAuthMiddleware(s.Users)
	requireWriter := middleware.RequireRoles(s.Users, models.RoleAuthor, models.RoleAdmin)
	requireAdmin := middleware.RequireRoles(s.Users, models.RoleAdmin)

	// Account routes
	users := api.Group("/users")
	handlers.NewAuthHandler(s.Users, s.Firebase).RegisterAuthRoutes(users, requireAuth)
	handlers.NewUserHandler(s.Users).RegisterProfileRoutes(users, requireAuth, requireAdmin)
	slog.Debug("user routes configured", "firebase", s.Firebase != nil)

	// Blog routes
	blog := api.Group("/blog")
	if s.BlogLimiter != nil {
		blog.Use(middleware.RateLimit(s.BlogLimiter, "Too many blog requests, please try again later"))
	}
	handlers.NewPostHandler(s.Posts).RegisterPostRoutes(blog, requireAuth, requireWriter)
	handlers.NewLikeHandler(s.Posts).RegisterLikeRoutes(blog, requireAuth)
	handlers.NewSavedPostHandler(s.Posts).RegisterSavedPostRoutes(blog, requireAuth)
	handlers.NewCommentHandler(s.Comments).RegisterCommentRoutes(blog, requireAuth)
	slog.Debug("blog routes configured")

	// Notification routes
	notifications := api.Group("/notifications", requireAuth)
	handlers.NewNotificationHandler(s.Notifications).RegisterNotificationRoutes(notifications)
	slog.Debug("notification routes configured")
}
