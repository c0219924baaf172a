package repositories

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/anonto42/inkwell/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
	SearchUserIDs(ctx context.Context, username string) ([]primitive.ObjectID, error)
	UpdatePhoto(ctx context.Context, id primitive.ObjectID, photo string) (*models.User, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique email index
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reset_password_token", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

// CreateUser inserts a new user
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, user)
	return translate(err)
}

// GetUserByID retrieves a user by ID
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

// GetUserByResetToken retrieves the user holding an unexpired reset token
func (r *MongoUserRepository) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_password_token":      tokenHash,
		"reset_password_expires_at": bson.M{"$gt": now},
	})
}

// GetUsersByIDs loads several users at once, keyed by ID
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	result := make(map[primitive.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// SearchUserIDs returns the IDs of users whose username contains the query
func (r *MongoUserRepository) SearchUserIDs(ctx context.Context, username string) ([]primitive.ObjectID, error) {
	filter := bson.M{"username": primitive.Regex{Pattern: regexp.QuoteMeta(username), Options: "i"}}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(100)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// UpdatePhoto sets the avatar URL
func (r *MongoUserRepository) UpdatePhoto(ctx context.Context, id primitive.ObjectID, photo string) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"photo": photo, "updated_at": time.Now().UTC()}})
}

// UpdateRole sets the user's role
func (r *MongoUserRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
}

// SetResetToken stores a hashed password-reset token, replacing any previous one
func (r *MongoUserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	_, err := r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"reset_password_token":      tokenHash,
		"reset_password_expires_at": expiresAt,
	}})
	return err
}

// ResetPassword stores a new password hash and clears the reset token
func (r *MongoUserRepository) ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := r.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"password": passwordHash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_password_token": "", "reset_password_expires_at": ""},
	})
	return err
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
