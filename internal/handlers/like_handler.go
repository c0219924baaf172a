package handlers

import (
	"net/http"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	posts *services.PostService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(posts *services.PostService) *LikeHandler {
	return &LikeHandler{posts: posts}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group, requireAuth echo.MiddlewareFunc) {
	g.POST("/:slug/like", h.ToggleLike, requireAuth)
}

// ToggleLike likes the post, or unlikes it if the caller already did
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	res, err := h.posts.ToggleLike(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"liked": res.Active,
		"likes": res.Count,
	})
}
