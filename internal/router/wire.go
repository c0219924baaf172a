package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/inkwell/backend/internal/mailer"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Infra holds the connected backends the services are built on.
type Infra struct {
	Postgres    *gorm.DB
	Mongo       *mongo.Database
	Store       storage.Store
	Mailer      mailer.Sender
	Tokens      *services.TokenService
	FrontendURL string
}

// NewServices migrates the schemas, creates indexes and wires the
// repositories into the services.
func NewServices(ctx context.Context, in Infra) (Services, error) {
	if err := in.Postgres.WithContext(ctx).AutoMigrate(&models.Notification{}); err != nil {
		return Services{}, fmt.Errorf("auto migrate notifications: %w", err)
	}
	slog.Info("postgres auto-migrations completed")

	userRepo := repositories.NewMongoUserRepository(in.Mongo)
	postRepo := repositories.NewMongoPostRepository(in.Mongo)
	commentRepo := repositories.NewMongoCommentRepository(in.Mongo)
	notificationRepo := repositories.NewPostgresNotificationRepository(in.Postgres)

	for name, ensure := range map[string]func(context.Context) error{
		"users":    userRepo.EnsureIndexes,
		"posts":    postRepo.EnsureIndexes,
		"comments": commentRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return Services{}, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	slog.Info("mongo indexes ensured")

	notificationSvc := services.NewNotificationService(notificationRepo, postRepo)
	return Services{
		Users:         services.NewUserService(userRepo, in.Tokens, in.Store, in.Mailer, in.FrontendURL),
		Posts:         services.NewPostService(postRepo, commentRepo, userRepo, notificationSvc, in.Store),
		Comments:      services.NewCommentService(commentRepo, postRepo, userRepo, notificationSvc),
		Notifications: notificationSvc,
	}, nil
}
