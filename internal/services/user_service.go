package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anonto42/inkwell/backend/internal/mailer"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"github.com/anonto42/inkwell/backend/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// ResetTokenTTL is how long an emailed password reset link stays valid.
const ResetTokenTTL = time.Hour

// UserService manages accounts: registration, login, token authentication,
// password reset, avatars and roles.
type UserService struct {
	users       repositories.UserRepository
	tokens      *TokenService
	store       storage.Store
	mail        mailer.Sender
	frontendURL string
	now         func() time.Time
}

func NewUserService(users repositories.UserRepository, tokens *TokenService, store storage.Store, mail mailer.Sender, frontendURL string) *UserService {
	return &UserService{
		users:       users,
		tokens:      tokens,
		store:       store,
		mail:        mail,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// Register creates a reader or author account and signs the user in.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest, photo *storage.Upload) (*models.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Username) < 4 {
		return nil, invalid("Username must be at least 4 characters")
	}
	if req.Email == "" || req.Password == "" {
		return nil, invalid("Email and password are required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, invalid("Passwords do not match")
	}
	role := req.Role
	if role == "" {
		role = models.RoleReader
	}
	if role != models.RoleReader && role != models.RoleAuthor {
		return nil, invalid("Role must be reader or author")
	}

	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     role,
		Photo:    models.DefaultPhoto,
		Password: hash,
	}
	if photo != nil {
		url, err := photo.SaveTo(ctx, s.store, storage.AvatarFolder)
		if err != nil {
			return nil, fmt.Errorf("store avatar: %w", err)
		}
		user.Photo = url
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if photo != nil {
			s.discard(ctx, user.Photo)
		}
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user", user.ID.Hex(), "role", user.Role)
	return s.signIn(user)
}

// Login checks the password and returns a fresh token.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, ErrBadCredentials
	}
	return s.signIn(user)
}

// Authenticate resolves a bearer token to the user it was issued for.
func (s *UserService) Authenticate(ctx context.Context, rawToken string) (*models.User, error) {
	userID, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.GetUser(ctx, id)
}

// GetUser loads a user by id.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ForgotPassword stores a hashed one-time token and emails the reset link.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("User")
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := s.users.SetResetToken(ctx, user.ID, hashToken(token), s.now().Add(ResetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.frontendURL + "/reset-password/" + token
	msg := mailer.Message{
		To:      user.Email,
		Subject: "Password reset",
		Body: "You requested a password reset. Open the link below within one hour to choose a new password:\n\n" +
			link + "\n\nIf you did not request this, ignore this email.",
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	slog.Info("password reset requested", "user", user.ID.Hex())
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset token.
func (s *UserService) ResetPassword(ctx context.Context, token string, req models.ResetPasswordRequest) error {
	if req.Password == "" {
		return invalid("Password is required")
	}
	if req.Password != req.ConfirmPassword {
		return invalid("Passwords do not match")
	}
	user, err := s.users.GetUserByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalid("Password reset token is invalid or has expired")
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	slog.Info("password reset", "user", user.ID.Hex())
	return nil
}

// UpdatePhoto replaces the avatar of userID. Only the user or an admin may do it.
func (s *UserService) UpdatePhoto(ctx context.Context, ident *models.Identity, userID string, photo *storage.Upload) (*models.User, error) {
	id, err := parseID(userID, "User")
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(ident, id); err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, invalid("Photo is required")
	}
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := photo.SaveTo(ctx, s.store, storage.AvatarFolder)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	updated, err := s.users.UpdatePhoto(ctx, id, url)
	if err != nil {
		s.discard(ctx, url)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("update photo: %w", err)
	}
	if current.Photo != models.DefaultPhoto {
		s.discard(ctx, current.Photo)
	}
	return updated, nil
}

// ChangeRole sets the role of userID.
func (s *UserService) ChangeRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	id, err := parseID(userID, "User")
	if err != nil {
		return nil, err
	}
	return s.setRole(ctx, id, role)
}

// PromoteByEmail sets the role of the account registered with email.
func (s *UserService) PromoteByEmail(ctx context.Context, email string, role models.Role) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	return s.setRole(ctx, user.ID, role)
}

func (s *UserService) setRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, invalid("Role must be reader, author or admin")
	}
	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	slog.Info("role changed", "user", id.Hex(), "role", role)
	return user, nil
}

// ExternalLogin signs in an identity already verified by an external provider,
// creating a reader account on first use.
func (s *UserService) ExternalLogin(ctx context.Context, email, name, photo string) (*models.AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalid("Email is required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return s.signIn(user)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := hashPassword(hex.EncodeToString(raw))
	if err != nil {
		return nil, err
	}
	if photo == "" {
		photo = models.DefaultPhoto
	}
	user = &models.User{
		Username: externalUsername(name, email),
		Email:    email,
		Role:     models.RoleReader,
		Photo:    photo,
		Password: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered via external provider", "user", user.ID.Hex())
	return s.signIn(user)
}

func (s *UserService) signIn(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{User: user.ToCompact(), Token: token}, nil
}

func (s *UserService) discard(ctx context.Context, url string) {
	if err := s.store.Delete(ctx, url); err != nil {
		slog.Warn("failed to delete stored file", "url", url, "error", err)
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", invalid("Password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// externalUsername picks a display name of at least four characters.
func externalUsername(name, email string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 4 {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	for len(local) < 4 {
		local += "_"
	}
	return local
}
