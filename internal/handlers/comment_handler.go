package handlers

import (
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	comments *services.CommentService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.GET("/:slug/comments", h.GetComments)
	g.POST("/:slug/comments", h.CreateComment, requireAuth)
	g.DELETE("/:slug/comments/:commentId", h.DeleteComment, requireAuth)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	comment, err := h.comments.Create(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug"), req)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetComments lists the comments of a post, newest first
func (h *CommentHandler) GetComments(c echo.Context) error {
	comments, err := h.comments.List(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}

// DeleteComment removes a comment; only its author or an admin may do so
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	err := h.comments.Delete(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug"), c.Param("commentId"))
	if err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
