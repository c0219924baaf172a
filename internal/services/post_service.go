package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"github.com/anonto42/inkwell/backend/internal/slug"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize   = 3
	searchSuggestions = 5
	maxPageSize       = 50
	minTitleLength    = 10
)

// ListQuery is the raw listing request as received from the client.
type ListQuery struct {
	Search   string
	Author   string
	Category string
	SortBy   string
	Page     int
	Limit    int
	// PageSet is false when the client sent no page; a search without a page
	// is a suggestion lookup and gets a short fixed limit.
	PageSet bool
}

// PostService implements publishing, reading and the reader interactions on
// posts (views, likes and bookmarks).
type PostService struct {
	posts         repositories.PostRepository
	comments      repositories.CommentRepository
	users         repositories.UserRepository
	notifications *NotificationService
	store         storage.Store
}

func NewPostService(posts repositories.PostRepository, comments repositories.CommentRepository, users repositories.UserRepository, notifications *NotificationService, store storage.Store) *PostService {
	return &PostService{
		posts:         posts,
		comments:      comments,
		users:         users,
		notifications: notifications,
		store:         store,
	}
}

// Create publishes a post authored by the caller.
func (s *PostService) Create(ctx context.Context, ident *models.Identity, req models.CreatePostRequest, image *storage.Upload) (*models.EnrichedPost, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.Content) == "" || req.Category == "" {
		return nil, invalid("Title, content, and categories are required")
	}
	if len([]rune(title)) < minTitleLength {
		return nil, invalid("Title must be at least 10 characters")
	}
	if !models.IsCategory(req.Category) {
		return nil, invalid("Invalid category")
	}
	postSlug := slug.Generate(title)
	if postSlug == "" {
		return nil, invalid("Title must contain letters or digits")
	}

	author, err := s.users.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("get author: %w", err)
	}
	if err := s.ensureSlugFree(ctx, postSlug, primitive.NilObjectID); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    title,
		Slug:     postSlug,
		Content:  req.Content,
		Category: req.Category,
		AuthorID: author.ID,
	}
	if image != nil {
		url, err := image.SaveTo(ctx, s.store, storage.FeaturedFolder)
		if err != nil {
			return nil, fmt.Errorf("store featured image: %w", err)
		}
		post.FeaturedImage = url
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		if image != nil {
			s.discard(ctx, post.FeaturedImage)
		}
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	slog.Info("post created", "post", post.ID.Hex(), "slug", post.Slug, "author", author.ID.Hex())
	return &models.EnrichedPost{Post: *post, Author: author.ToCompact()}, nil
}

// GetBySlug returns a post and counts the read.
func (s *PostService) GetBySlug(ctx context.Context, postSlug string) (*models.EnrichedPost, error) {
	post, err := s.posts.IncrementViews(ctx, postSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("Blog")
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	enriched, err := s.enrich(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

// List returns one page of posts matching q.
func (s *PostService) List(ctx context.Context, q ListQuery) (*models.PostPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if q.Search != "" && !q.PageSet {
		limit = searchSuggestions
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return nil, invalid("Invalid page parameter")
	}

	filter := models.PostFilter{
		Search:   strings.TrimSpace(q.Search),
		Category: q.Category,
		SortBy:   models.PostSort(q.SortBy),
		Skip:     int64(page-1) * int64(limit),
		Limit:    int64(limit),
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = models.SortNewest
	case models.SortNewest, models.SortOldest, models.SortViews, models.SortLikes:
	default:
		return nil, invalid("sortBy must be newest, oldest, views or likes")
	}
	if q.Author != "" {
		id, err := primitive.ObjectIDFromHex(q.Author)
		if err != nil {
			return nil, invalid("Invalid author id")
		}
		filter.AuthorID = &id
	}
	if filter.Search != "" {
		ids, err := s.users.SearchUserIDs(ctx, filter.Search)
		if err != nil {
			return nil, fmt.Errorf("search authors: %w", err)
		}
		filter.AuthorIDs = ids
	}

	posts, total, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	blogs, err := s.enrich(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &models.PostPage{
		CurrentPage: page,
		TotalBlogs:  total,
		Pages:       int((total + int64(limit) - 1) / int64(limit)),
		Blogs:       blogs,
	}, nil
}

// Update edits a post owned by the caller (or any post, for admins). The slug
// follows the title and changes only when the title does.
func (s *PostService) Update(ctx context.Context, ident *models.Identity, postSlug string, req models.UpdatePostRequest, image *storage.Upload) (*models.EnrichedPost, error) {
	post, err := s.load(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(ident, post.AuthorID); err != nil {
		return nil, err
	}

	var changes repositories.PostChanges
	if title := strings.TrimSpace(req.Title); title != "" && title != post.Title {
		if len([]rune(title)) < minTitleLength {
			return nil, invalid("Title must be at least 10 characters")
		}
		newSlug := slug.Generate(title)
		if newSlug == "" {
			return nil, invalid("Title must contain letters or digits")
		}
		if newSlug != post.Slug {
			if err := s.ensureSlugFree(ctx, newSlug, post.ID); err != nil {
				return nil, err
			}
			changes.Slug = &newSlug
		}
		changes.Title = &title
	}
	if strings.TrimSpace(req.Content) != "" {
		changes.Content = &req.Content
	}
	if req.Category != "" {
		if !models.IsCategory(req.Category) {
			return nil, invalid("Invalid category")
		}
		changes.Category = &req.Category
	}
	if image != nil {
		url, err := image.SaveTo(ctx, s.store, storage.FeaturedFolder)
		if err != nil {
			return nil, fmt.Errorf("store featured image: %w", err)
		}
		changes.FeaturedImage = &url
	}

	updated, err := s.posts.UpdatePost(ctx, post.ID, changes)
	if err != nil {
		if changes.FeaturedImage != nil {
			s.discard(ctx, *changes.FeaturedImage)
		}
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, notFound("Blog")
		case errors.Is(err, repositories.ErrDuplicateKey):
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	if changes.FeaturedImage != nil && post.FeaturedImage != "" {
		s.discard(ctx, post.FeaturedImage)
	}

	enriched, err := s.enrich(ctx, []models.Post{*updated})
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

// Delete removes a post together with its comments, notifications and
// featured image. Comments and notifications go first so a failed cascade
// leaves the post in place and the delete can be retried.
func (s *PostService) Delete(ctx context.Context, ident *models.Identity, postSlug string) error {
	post, err := s.load(ctx, postSlug)
	if err != nil {
		return err
	}
	if err := RequireOwnerOrAdmin(ident, post.AuthorID); err != nil {
		return err
	}

	comments, err := s.comments.DeleteCommentsByPostID(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("delete comments of post %s: %w", post.ID.Hex(), err)
	}
	notifications, err := s.notifications.DeleteForPost(ctx, post.ID)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, post.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("Blog")
		}
		return fmt.Errorf("delete post: %w", err)
	}
	if post.FeaturedImage != "" {
		s.discard(ctx, post.FeaturedImage)
	}
	slog.Info("post deleted", "post", post.ID.Hex(), "comments", comments, "notifications", notifications)
	return nil
}

// ToggleLike likes the post for the caller, or removes an existing like, and
// notifies the author of new likes.
func (s *PostService) ToggleLike(ctx context.Context, ident *models.Identity, postSlug string) (*models.ToggleResult, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	liker, err := s.users.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	post, liked, err := s.toggle(ctx, postSlug, repositories.LikesSet, liker.ID)
	if err != nil {
		return nil, err
	}
	if liked {
		if err := s.notifications.NotifyLike(ctx, post, liker); err != nil {
			return nil, err
		}
	}
	return &models.ToggleResult{Active: liked, Count: post.LikesCount}, nil
}

// ToggleBookmark adds the post to the caller's bookmarks or removes it.
func (s *PostService) ToggleBookmark(ctx context.Context, ident *models.Identity, postSlug string) (*models.ToggleResult, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	post, bookmarked, err := s.toggle(ctx, postSlug, repositories.BookmarksSet, ident.UserID)
	if err != nil {
		return nil, err
	}
	return &models.ToggleResult{Active: bookmarked, Count: int64(len(post.Bookmarks))}, nil
}

// Bookmarks lists the posts the caller bookmarked, newest first.
func (s *PostService) Bookmarks(ctx context.Context, ident *models.Identity) ([]models.EnrichedPost, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	posts, err := s.posts.GetBookmarkedPosts(ctx, ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return s.enrich(ctx, posts)
}

func (s *PostService) toggle(ctx context.Context, postSlug string, set repositories.MemberSet, userID primitive.ObjectID) (*models.Post, bool, error) {
	post, active, err := s.posts.ToggleMember(ctx, postSlug, set, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, notFound("Blog")
		}
		return nil, false, fmt.Errorf("toggle %s: %w", set, err)
	}
	return post, active, nil
}

func (s *PostService) load(ctx context.Context, postSlug string) (*models.Post, error) {
	post, err := s.posts.GetPostBySlug(ctx, postSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("Blog")
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ensureSlugFree fails with ErrDuplicateSlug when another post already uses postSlug.
func (s *PostService) ensureSlugFree(ctx context.Context, postSlug string, self primitive.ObjectID) error {
	existing, err := s.posts.GetPostBySlug(ctx, postSlug)
	switch {
	case err == nil && existing.ID != self:
		return ErrDuplicateSlug
	case err == nil, errors.Is(err, repositories.ErrNotFound):
		return nil
	}
	return fmt.Errorf("check slug: %w", err)
}

// enrich attaches the author summary to each post.
func (s *PostService) enrich(ctx context.Context, posts []models.Post) ([]models.EnrichedPost, error) {
	ids := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	authors, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	out := make([]models.EnrichedPost, len(posts))
	for i, p := range posts {
		out[i] = models.EnrichedPost{Post: p, Author: compactOrMissing(authors, p.AuthorID)}
	}
	return out, nil
}

func (s *PostService) discard(ctx context.Context, url string) {
	if err := s.store.Delete(ctx, url); err != nil {
		slog.Warn("failed to delete stored file", "url", url, "error", err)
	}
}

// compactOrMissing returns the user summary, or a bare id when the account is gone.
func compactOrMissing(users map[primitive.ObjectID]*models.User, id primitive.ObjectID) models.UserCompact {
	if u, ok := users[id]; ok {
		return u.ToCompact()
	}
	return models.UserCompact{ID: id.Hex()}
}
