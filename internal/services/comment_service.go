package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentService manages comments on posts and keeps each post's comment list
// in step with the comments collection.
type CommentService struct {
	comments      repositories.CommentRepository
	posts         repositories.PostRepository
	users         repositories.UserRepository
	notifications *NotificationService
}

func NewCommentService(comments repositories.CommentRepository, posts repositories.PostRepository, users repositories.UserRepository, notifications *NotificationService) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, notifications: notifications}
}

// Create adds a comment by the caller to the post and notifies its author.
func (s *CommentService) Create(ctx context.Context, ident *models.Identity, postSlug string, req models.CreateCommentRequest) (*models.EnrichedComment, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, invalid("Comment content is required")
	}
	post, err := s.loadPost(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	comment := &models.Comment{Content: req.Content, UserID: user.ID, PostID: post.ID}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if err := s.posts.PushComment(ctx, post.ID, comment.ID); err != nil {
		// The post disappeared between the lookup and the push.
		if delErr := s.comments.DeleteComment(ctx, comment.ID); delErr != nil {
			slog.Warn("failed to remove orphaned comment", "comment", comment.ID.Hex(), "error", delErr)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("Blog")
		}
		return nil, fmt.Errorf("attach comment: %w", err)
	}

	if err := s.notifications.NotifyComment(ctx, post, user); err != nil {
		return nil, err
	}
	return &models.EnrichedComment{Comment: *comment, User: user.ToCompact()}, nil
}

// List returns the post's comments, newest first.
func (s *CommentService) List(ctx context.Context, postSlug string) ([]models.EnrichedComment, error) {
	post, err := s.loadPost(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.GetCommentsByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load comment authors: %w", err)
	}

	out := make([]models.EnrichedComment, len(comments))
	for i, c := range comments {
		out[i] = models.EnrichedComment{Comment: c, User: compactOrMissing(users, c.UserID)}
	}
	return out, nil
}

// Delete removes a comment of the post. Only the comment author or an admin may do it.
func (s *CommentService) Delete(ctx context.Context, ident *models.Identity, postSlug, commentID string) error {
	if ident == nil {
		return ErrUnauthenticated
	}
	post, err := s.loadPost(ctx, postSlug)
	if err != nil {
		return err
	}
	id, err := parseID(commentID, "Comment")
	if err != nil {
		return err
	}
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("Comment")
		}
		return fmt.Errorf("get comment: %w", err)
	}
	if comment.PostID != post.ID {
		return notFound("Comment")
	}
	if err := RequireOwnerOrAdmin(ident, comment.UserID); err != nil {
		return err
	}

	if err := s.posts.PullComment(ctx, post.ID, comment.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("detach comment: %w", err)
	}
	if err := s.comments.DeleteComment(ctx, comment.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("Comment")
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *CommentService) loadPost(ctx context.Context, postSlug string) (*models.Post, error) {
	post, err := s.posts.GetPostBySlug(ctx, postSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("Blog")
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}
