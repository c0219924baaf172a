package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the access level of a user account
type Role string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// DefaultPhoto is the avatar assigned when a user registers without uploading one
const DefaultPhoto = "https://static.vecteezy.com/system/resources/previews/030/504/836/non_2x/avatar-account-flat-isolated-on-transparent-background-for-graphic-and-web-design-default-social-media-profile-photo-symbol-profile-and-people-silhouette-user-icon-vector.jpg"

// User is an account stored in MongoDB
type User struct {
	ID                     primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username               string             `json:"username" bson:"username"`
	Email                  string             `json:"email" bson:"email"`
	Role                   Role               `json:"role" bson:"role"`
	Photo                  string             `json:"photo" bson:"photo"`
	Password               string             `json:"-" bson:"password"` // bcrypt hash
	ResetPasswordToken     string             `json:"-" bson:"reset_password_token,omitempty"`
	ResetPasswordExpiresAt *time.Time         `json:"-" bson:"reset_password_expires_at,omitempty"`
	CreatedAt              time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt              time.Time          `json:"updatedAt" bson:"updated_at"`
}

// UserCompact is the public projection embedded in posts, comments and notifications
type UserCompact struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Photo    string `json:"photo"`
	Role     Role   `json:"role,omitempty"`
}

// ToCompact returns the public projection of the user
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Email:    u.Email,
		Photo:    u.Photo,
		Role:     u.Role,
	}
}

// Identity is what the auth middleware attaches to an authenticated request
type Identity struct {
	UserID primitive.ObjectID
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

type RegisterRequest struct {
	Username        string `json:"username" form:"username" validate:"required,min=4,max=50"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,min=1,max=72"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
	Role            Role   `json:"role,omitempty" form:"role" validate:"omitempty,oneof=reader author"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=1,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=reader author admin"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User  UserCompact `json:"user"`
	Token string      `json:"token"`
}

// JwtCustomClaims carries only the user identifier; the role is looked up per request
type JwtCustomClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}
