package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/inkwell/backend/internal/middleware"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to blog posts
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterPostRoutes registers post-related routes. requireWriter gates
// publishing to authors and admins.
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, requireAuth, requireWriter echo.MiddlewareFunc) {
	g.GET("", h.GetPosts)
	g.GET("/bookmarks", h.GetBookmarks, requireAuth)
	g.GET("/:slug", h.GetPost)
	g.POST("", h.CreatePost, requireAuth, requireWriter)
	g.PATCH("/:slug", h.UpdatePost, requireAuth, requireWriter)
	g.DELETE("/:slug", h.DeletePost, requireAuth)
}

// CreatePost publishes a new post. The featured image is the optional
// multipart field "featuredImage".
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	image, err := optionalImage(c, "featuredImage", storage.MaxFeaturedImageSize)
	if err != nil {
		return httpError(c, err)
	}

	post, err := h.posts.Create(c.Request().Context(), middleware.IdentityFromContext(c), req, image)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by slug and counts the view
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.posts.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetPosts lists posts with search, filters, sorting and pagination
func (h *PostHandler) GetPosts(c echo.Context) error {
	q := services.ListQuery{
		Search:   c.QueryParam("search"),
		Author:   c.QueryParam("author"),
		Category: c.QueryParam("category"),
		SortBy:   c.QueryParam("sortBy"),
	}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid page parameter")
		}
		q.Page = page
		q.PageSet = true
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		q.Limit = limit
	}

	page, err := h.posts.List(c.Request().Context(), q)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// UpdatePost edits a post; only the owner or an admin may do so
func (h *PostHandler) UpdatePost(c echo.Context) error {
	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	image, err := optionalImage(c, "featuredImage", storage.MaxFeaturedImageSize)
	if err != nil {
		return httpError(c, err)
	}

	post, err := h.posts.Update(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug"), req, image)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost removes a post together with its comments and notifications
func (h *PostHandler) DeletePost(c echo.Context) error {
	if err := h.posts.Delete(c.Request().Context(), middleware.IdentityFromContext(c), c.Param("slug")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetBookmarks lists the posts the caller has bookmarked
func (h *PostHandler) GetBookmarks(c echo.Context) error {
	posts, err := h.posts.Bookmarks(c.Request().Context(), middleware.IdentityFromContext(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}
