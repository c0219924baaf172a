package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/anonto42/inkwell/backend/internal/mailer"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories/memory"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore records saved and deleted URLs.
type fakeStore struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (f *fakeStore) Save(_ context.Context, folder, filename, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://cdn.test/" + folder + "/" + primitive.NewObjectID().Hex() + "-" + filename
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

// fakeMailer captures outgoing messages.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// env wires every service against fresh fakes.
type env struct {
	users         *memory.Users
	posts         *memory.Posts
	comments      *memory.Comments
	notifications *memory.Notifications
	store         *fakeStore
	mail          *fakeMailer
	tokens        *TokenService

	userSvc         *UserService
	postSvc         *PostService
	commentSvc      *CommentService
	notificationSvc *NotificationService
}

func newEnv() *env {
	e := &env{
		users:         memory.NewUsers(),
		posts:         memory.NewPosts(),
		comments:      memory.NewComments(),
		notifications: memory.NewNotifications(),
		store:         &fakeStore{},
		mail:          &fakeMailer{},
		tokens:        NewTokenService("test-secret", time.Hour),
	}
	e.notificationSvc = NewNotificationService(e.notifications, e.posts)
	e.userSvc = NewUserService(e.users, e.tokens, e.store, e.mail, "http://frontend.test/")
	e.postSvc = NewPostService(e.posts, e.comments, e.users, e.notificationSvc, e.store)
	e.commentSvc = NewCommentService(e.comments, e.posts, e.users, e.notificationSvc)
	return e
}

func identityOf(u *models.User) *models.Identity {
	return &models.Identity{UserID: u.ID, Role: u.Role}
}
