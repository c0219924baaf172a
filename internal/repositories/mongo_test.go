package repositories

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/inkwell/backend/internal/models"
)

// testMongo returns a throwaway database that is dropped after the test.
// Skips if MONGO_URI is unset or unreachable.
func testMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("skipping integration test: MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("skipping integration test: mongo connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("skipping integration test: mongo not reachable: %v", err)
	}

	db := client.Database("inkwell_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newPostRepo(c *qt.C, db *mongo.Database) *MongoPostRepository {
	repo := NewMongoPostRepository(db)
	c.Assert(repo.EnsureIndexes(context.Background()), qt.IsNil)
	return repo
}

func TestMongoPostSlugIsUnique(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := newPostRepo(c, testMongo(t))

	author := primitive.NewObjectID()
	c.Assert(repo.CreatePost(ctx, &models.Post{Title: "First", Slug: "same", AuthorID: author}), qt.IsNil)
	err := repo.CreatePost(ctx, &models.Post{Title: "Second", Slug: "same", AuthorID: author})
	c.Assert(err, qt.ErrorIs, ErrDuplicateKey)

	_, err = repo.GetPostBySlug(ctx, "missing")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestMongoConcurrentViewsAndLikes(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := newPostRepo(c, testMongo(t))

	c.Assert(repo.CreatePost(ctx, &models.Post{Title: "Busy", Slug: "busy", AuthorID: primitive.NewObjectID()}), qt.IsNil)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementViews(ctx, "busy"); err != nil {
				t.Error(err)
			}
			if _, _, err := repo.ToggleMember(ctx, "busy", LikesSet, primitive.NewObjectID()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	post, err := repo.GetPostBySlug(ctx, "busy")
	c.Assert(err, qt.IsNil)
	c.Assert(post.Views, qt.Equals, int64(n))
	c.Assert(post.Likes, qt.HasLen, n)
	c.Assert(post.LikesCount, qt.Equals, int64(n))
}

func TestMongoToggleMember(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := newPostRepo(c, testMongo(t))
	c.Assert(repo.CreatePost(ctx, &models.Post{Title: "Toggle", Slug: "toggle", AuthorID: primitive.NewObjectID()}), qt.IsNil)

	user := primitive.NewObjectID()
	post, active, err := repo.ToggleMember(ctx, "toggle", BookmarksSet, user)
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.IsTrue)
	c.Assert(post.Bookmarks, qt.DeepEquals, []primitive.ObjectID{user})

	saved, err := repo.GetBookmarkedPosts(ctx, user)
	c.Assert(err, qt.IsNil)
	c.Assert(saved, qt.HasLen, 1)

	post, active, err = repo.ToggleMember(ctx, "toggle", BookmarksSet, user)
	c.Assert(err, qt.IsNil)
	c.Assert(active, qt.IsFalse)
	c.Assert(post.Bookmarks, qt.HasLen, 0)

	_, _, err = repo.ToggleMember(ctx, "nope", LikesSet, user)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestMongoListPosts(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := newPostRepo(c, testMongo(t))

	author := primitive.NewObjectID()
	for _, p := range []models.Post{
		{Title: "Go generics", Slug: "go-generics", Category: "Technology", AuthorID: author},
		{Title: "Sourdough", Slug: "sourdough", Category: "Food & Drink", AuthorID: primitive.NewObjectID()},
		{Title: "Go modules", Slug: "go-modules", Category: "Technology", AuthorID: author},
	} {
		p := p
		c.Assert(repo.CreatePost(ctx, &p), qt.IsNil)
		time.Sleep(2 * time.Millisecond)
	}

	posts, total, err := repo.ListPosts(ctx, models.PostFilter{Search: "go", SortBy: models.SortNewest, Limit: 10})
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(2))
	c.Assert(posts, qt.HasLen, 2)

	posts, total, err = repo.ListPosts(ctx, models.PostFilter{Category: "Technology", SortBy: models.SortOldest, Limit: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, int64(2))
	c.Assert(posts, qt.HasLen, 1)
	c.Assert(posts[0].Slug, qt.Equals, "go-generics")
}

func TestMongoComments(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	db := testMongo(t)
	repo := NewMongoCommentRepository(db)
	c.Assert(repo.EnsureIndexes(ctx), qt.IsNil)

	post := primitive.NewObjectID()
	for _, text := range []string{"first", "second"} {
		c.Assert(repo.CreateComment(ctx, &models.Comment{Content: text, UserID: primitive.NewObjectID(), PostID: post}), qt.IsNil)
		time.Sleep(2 * time.Millisecond)
	}

	comments, err := repo.GetCommentsByPostID(ctx, post)
	c.Assert(err, qt.IsNil)
	c.Assert(comments, qt.HasLen, 2)
	c.Assert(comments[0].Content, qt.Equals, "second")

	c.Assert(repo.DeleteComment(ctx, comments[0].ID), qt.IsNil)
	c.Assert(repo.DeleteComment(ctx, comments[0].ID), qt.ErrorIs, ErrNotFound)

	n, err := repo.DeleteCommentsByPostID(ctx, post)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(1))
}

func TestMongoUsers(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := NewMongoUserRepository(testMongo(t))
	c.Assert(repo.EnsureIndexes(ctx), qt.IsNil)

	u := &models.User{Username: "Gopher", Email: "Gopher@Example.com", Role: models.RoleReader}
	c.Assert(repo.CreateUser(ctx, u), qt.IsNil)
	err := repo.CreateUser(ctx, &models.User{Username: "dupe", Email: "gopher@example.com"})
	c.Assert(err, qt.ErrorIs, ErrDuplicateKey)

	got, err := repo.GetUserByEmail(ctx, "GOPHER@example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, u.ID)

	ids, err := repo.SearchUserIDs(ctx, "goph")
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []primitive.ObjectID{u.ID})

	expires := time.Now().Add(time.Hour)
	c.Assert(repo.SetResetToken(ctx, u.ID, "hash", expires), qt.IsNil)
	got, err = repo.GetUserByResetToken(ctx, "hash", time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, u.ID)
	_, err = repo.GetUserByResetToken(ctx, "hash", expires.Add(time.Minute))
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	updated, err := repo.UpdateRole(ctx, u.ID, models.RoleAuthor)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Role, qt.Equals, models.RoleAuthor)
}
