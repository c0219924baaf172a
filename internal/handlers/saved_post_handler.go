package handlers

import (
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmarking posts
type SavedPostHandler struct {
	posts *services.PostService
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(posts *services.PostService) *SavedPostHandler {
	return &SavedPostHandler{posts: posts}
}

// RegisterSavedPostRoutes registers bookmark routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/:slug/bookmark", h.ToggleBookmark, requireAuth)
}

// ToggleBookmark adds the post to the caller's bookmarks or removes it
func (h *SavedPostHandler) ToggleBookmark(c echo.Context) error {
	res, err := h.posts.ToggleBookmark(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookmarked": res.Active})
}
