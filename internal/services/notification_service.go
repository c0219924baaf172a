package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService records like and comment events for post authors and
// serves each user their own notifications.
type NotificationService struct {
	notifications repositories.NotificationRepository
	posts         repositories.PostRepository
}

func NewNotificationService(notifications repositories.NotificationRepository, posts repositories.PostRepository) *NotificationService {
	return &NotificationService{notifications: notifications, posts: posts}
}

// NotifyLike tells the post author that actor liked the post.
func (s *NotificationService) NotifyLike(ctx context.Context, post *models.Post, actor *models.User) error {
	msg := fmt.Sprintf("%s liked your blog \"%s\"", actor.Username, post.Title)
	return s.notify(ctx, post, actor, models.NotificationLike, msg)
}

// NotifyComment tells the post author that actor commented on the post.
func (s *NotificationService) NotifyComment(ctx context.Context, post *models.Post, actor *models.User) error {
	msg := fmt.Sprintf("%s commented on your blog \"%s\"", actor.Username, post.Title)
	return s.notify(ctx, post, actor, models.NotificationComment, msg)
}

func (s *NotificationService) notify(ctx context.Context, post *models.Post, actor *models.User, typ models.NotificationType, msg string) error {
	if post.AuthorID == actor.ID {
		return nil
	}
	n := &models.Notification{
		RecipientID: post.AuthorID.Hex(),
		ActorID:     actor.ID.Hex(),
		PostID:      post.ID.Hex(),
		Type:        typ,
		Message:     msg,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create %s notification: %w", typ, err)
	}
	slog.Debug("notification created", "type", typ, "recipient", n.RecipientID, "post", n.PostID)
	return nil
}

// List returns the caller's notifications newest first and then marks the
// returned ones read. The returned items show the read state from before the
// call; anything created in between stays unread.
func (s *NotificationService) List(ctx context.Context, ident *models.Identity) ([]models.EnrichedNotification, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	recipient := ident.UserID.Hex()
	rows, err := s.notifications.GetByRecipientID(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	unread := make([]uint, 0, len(rows))
	for _, n := range rows {
		if id, err := primitive.ObjectIDFromHex(n.PostID); err == nil {
			ids = append(ids, id)
		}
		if !n.IsRead {
			unread = append(unread, n.ID)
		}
	}
	posts, err := s.posts.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load notification posts: %w", err)
	}

	out := make([]models.EnrichedNotification, len(rows))
	for i, n := range rows {
		out[i] = models.EnrichedNotification{Notification: n}
		if id, err := primitive.ObjectIDFromHex(n.PostID); err == nil {
			if p, ok := posts[id]; ok {
				out[i].Blog = &models.PostRef{ID: p.ID.Hex(), Title: p.Title, Slug: p.Slug}
			}
		}
	}

	if _, err := s.notifications.MarkManyAsRead(ctx, recipient, unread); err != nil {
		return nil, fmt.Errorf("mark notifications read: %w", err)
	}
	return out, nil
}

// MarkRead marks a single notification of the caller as read.
func (s *NotificationService) MarkRead(ctx context.Context, ident *models.Identity, id string) error {
	if ident == nil {
		return ErrUnauthenticated
	}
	nid, err := parseNotificationID(id)
	if err != nil {
		return err
	}
	err = s.notifications.MarkAsRead(ctx, nid, ident.UserID.Hex())
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("Notification")
	}
	return err
}

// Delete removes one of the caller's notifications. Notifications of other
// users are reported as not found.
func (s *NotificationService) Delete(ctx context.Context, ident *models.Identity, id string) error {
	if ident == nil {
		return ErrUnauthenticated
	}
	nid, err := parseNotificationID(id)
	if err != nil {
		return err
	}
	err = s.notifications.DeleteForRecipient(ctx, nid, ident.UserID.Hex())
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("Notification")
	}
	return err
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, ident *models.Identity) (int64, error) {
	if ident == nil {
		return 0, ErrUnauthenticated
	}
	return s.notifications.GetUnreadCount(ctx, ident.UserID.Hex())
}

// DeleteForPost removes every notification that refers to postID.
func (s *NotificationService) DeleteForPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	n, err := s.notifications.DeleteByPostID(ctx, postID.Hex())
	if err != nil {
		return 0, fmt.Errorf("delete notifications of post %s: %w", postID.Hex(), err)
	}
	return n, nil
}

func parseNotificationID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, notFound("Notification")
	}
	return uint(n), nil
}
