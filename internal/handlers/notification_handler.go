package handlers

import (
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles HTTP requests related to notifications
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification-related routes; every
// route requires authentication.
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("", h.GetNotifications)
	g.GET("/unread-count", h.GetUnreadCount)
	g.PATCH("/:id/read", h.MarkNotificationAsRead)
	g.DELETE("/:id", h.DeleteNotification)
}

// GetNotifications lists the caller's notifications and marks them read.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	notifications, err := h.notifications.List(c.Request().Context(), middleware.IdentityFromContext(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, notifications)
}

// GetUnreadCount returns the number of unread notifications
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context(), middleware.IdentityFromContext(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

// MarkNotificationAsRead marks a single notification as read
func (h *NotificationHandler) MarkNotificationAsRead(c echo.Context) error {
	if err := h.notifications.MarkRead(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification marked as read"})
}

// DeleteNotification deletes one of the caller's notifications
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	if err := h.notifications.Delete(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
