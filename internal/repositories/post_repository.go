package repositories

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/anonto42/inkwell/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MemberSet names a per-post set of user references
type MemberSet string

const (
	LikesSet     MemberSet = "likes"
	BookmarksSet MemberSet = "bookmarks"
)

// toggleAttempts bounds the retries when a concurrent toggle flips the state
// between the add and remove attempts.
const toggleAttempts = 3

// PostChanges lists the fields an update may set; nil fields are left alone
type PostChanges struct {
	Title         *string
	Slug          *string
	Content       *string
	Category      *string
	FeaturedImage *string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Post, error)
	ListPosts(ctx context.Context, filter models.PostFilter) ([]models.Post, int64, error)
	GetBookmarkedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, changes PostChanges) (*models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	IncrementViews(ctx context.Context, slug string) (*models.Post, error)
	ToggleMember(ctx context.Context, slug string, set MemberSet, userID primitive.ObjectID) (*models.Post, bool, error)
	PushComment(ctx context.Context, postID, commentID primitive.ObjectID) error
	PullComment(ctx context.Context, postID, commentID primitive.ObjectID) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the unique slug index and the lookup indexes
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "bookmarks", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Bookmarks == nil {
		post.Bookmarks = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return translate(err)
}

// GetPostBySlug retrieves a post by slug without touching its view counter
func (r *MongoPostRepository) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

// GetPostsByIDs loads several posts at once, keyed by ID
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Post, error) {
	result := make(map[primitive.ObjectID]*models.Post, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	opts := options.Find().SetProjection(bson.M{"title": 1, "slug": 1, "author": 1})
	posts, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		result[posts[i].ID] = &posts[i]
	}
	return result, nil
}

// ListPosts returns one page of posts matching the filter plus the total match count
func (r *MongoPostRepository) ListPosts(ctx context.Context, filter models.PostFilter) ([]models.Post, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		or := bson.A{bson.M{"title": pattern}, bson.M{"category": pattern}}
		if len(filter.AuthorIDs) > 0 {
			or = append(or, bson.M{"author": bson.M{"$in": filter.AuthorIDs}})
		}
		query["$or"] = or
	}
	if filter.AuthorID != nil {
		query["author"] = *filter.AuthorID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSkip(filter.Skip).
		SetLimit(filter.Limit).
		SetSort(sortFor(filter.SortBy))
	posts, err := r.find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// GetBookmarkedPosts returns every post the user has bookmarked, newest first
func (r *MongoPostRepository) GetBookmarkedPosts(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"bookmarks": userID}, opts)
}

// UpdatePost sets the changed fields and returns the updated post
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id primitive.ObjectID, changes PostChanges) (*models.Post, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Slug != nil {
		set["slug"] = *changes.Slug
	}
	if changes.Content != nil {
		set["content"] = *changes.Content
	}
	if changes.Category != nil {
		set["category"] = *changes.Category
	}
	if changes.FeaturedImage != nil {
		set["featured_image"] = *changes.FeaturedImage
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews atomically bumps the view counter and returns the updated post
func (r *MongoPostRepository) IncrementViews(ctx context.Context, slug string) (*models.Post, error) {
	return r.findOneAndUpdate(ctx, bson.M{"slug": slug}, bson.M{"$inc": bson.M{"views": 1}})
}

// ToggleMember flips userID's membership in the named set with conditional
// single-document updates, so concurrent toggles by different users never lose
// each other's writes. It reports whether the user is a member afterwards.
func (r *MongoPostRepository) ToggleMember(ctx context.Context, slug string, set MemberSet, userID primitive.ObjectID) (*models.Post, bool, error) {
	field := string(set)
	add := bson.M{"$addToSet": bson.M{field: userID}}
	remove := bson.M{"$pull": bson.M{field: userID}}
	if set == LikesSet {
		add["$inc"] = bson.M{"likes_count": 1}
		remove["$inc"] = bson.M{"likes_count": -1}
	}

	for attempt := 0; attempt < toggleAttempts; attempt++ {
		post, err := r.findOneAndUpdate(ctx, bson.M{"slug": slug, field: bson.M{"$ne": userID}}, add)
		if err == nil {
			return post, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}

		post, err = r.findOneAndUpdate(ctx, bson.M{"slug": slug, field: userID}, remove)
		if err == nil {
			return post, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}

		count, err := r.collection.CountDocuments(ctx, bson.M{"slug": slug})
		if err != nil {
			return nil, false, err
		}
		if count == 0 {
			return nil, false, ErrNotFound
		}
	}
	return nil, false, ErrConflict
}

// PushComment appends a comment reference to the post
func (r *MongoPostRepository) PushComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	return r.updateByID(ctx, postID, bson.M{"$push": bson.M{"comments": commentID}})
}

// PullComment removes a comment reference from the post
func (r *MongoPostRepository) PullComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	return r.updateByID(ctx, postID, bson.M{"$pull": bson.M{"comments": commentID}})
}

func (r *MongoPostRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) findOne(ctx context.Context, filter bson.M) (*models.Post, error) {
	var post models.Post
	if err := r.collection.FindOne(ctx, filter).Decode(&post); err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *MongoPostRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post); err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func sortFor(by models.PostSort) bson.D {
	switch by {
	case models.SortOldest:
		return bson.D{{Key: "created_at", Value: 1}}
	case models.SortViews:
		return bson.D{{Key: "views", Value: -1}, {Key: "created_at", Value: -1}}
	case models.SortLikes:
		return bson.D{{Key: "likes_count", Value: -1}, {Key: "created_at", Value: -1}}
	}
	return bson.D{{Key: "created_at", Value: -1}}
}
