package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories/memory"
	"github.com/anonto42/inkwell/backend/internal/storage"
)

func createPost(c *qt.C, e *env, author *models.User, title string) *models.EnrichedPost {
	c.Helper()
	post, err := e.postSvc.Create(context.Background(), identityOf(author), models.CreatePostRequest{
		Title:    title,
		Content:  "Long form content about " + title,
		Category: "Technology",
	}, nil)
	c.Assert(err, qt.IsNil)
	return post
}

func TestCreatePost(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	author := e.users.Add("writer", models.RoleAuthor)

	post := createPost(c, e, author, "  Hello Go World!  ")
	c.Assert(post.Slug, qt.Equals, "hello-go-world")
	c.Assert(post.Title, qt.Equals, "Hello Go World!")
	c.Assert(post.Author.Username, qt.Equals, "writer")
	c.Assert(post.Views, qt.Equals, int64(0))

	_, err := e.postSvc.Create(ctx, identityOf(author), models.CreatePostRequest{
		Title: "hello go world", Content: "x", Category: "Technology",
	}, nil)
	c.Assert(err, qt.ErrorIs, ErrDuplicateSlug)
}

func TestCreatePostValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.CreatePostRequest
	}{
		{name: "short title", req: models.CreatePostRequest{Title: "Too short", Content: "c", Category: "Technology"}},
		{name: "missing content", req: models.CreatePostRequest{Title: "A perfectly fine title", Category: "Technology"}},
		{name: "unknown category", req: models.CreatePostRequest{Title: "A perfectly fine title", Content: "c", Category: "Cooking"}},
		{name: "symbols only", req: models.CreatePostRequest{Title: "!!!!!!!!!!!!", Content: "c", Category: "Technology"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			e := newEnv()
			author := e.users.Add("writer", models.RoleAuthor)

			_, err := e.postSvc.Create(context.Background(), identityOf(author), tt.req, nil)
			c.Assert(err, qt.ErrorIs, ErrValidation)
		})
	}
}

func TestCreatePostRequiresExistingAuthor(t *testing.T) {
	c := qt.New(t)
	e := newEnv()

	ghost := &models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleAuthor}
	_, err := e.postSvc.Create(context.Background(), ghost, models.CreatePostRequest{
		Title: "Orphaned post title", Content: "c", Category: "Technology",
	}, nil)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(e.posts.All(), qt.HasLen, 0)
}

func TestCreatePostWithImage(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	author := e.users.Add("writer", models.RoleAuthor)

	img, err := storage.NewUpload("cover.png", []byte("\x89PNG\r\n\x1a\n0000"), storage.MaxFeaturedImageSize)
	c.Assert(err, qt.IsNil)

	post, err := e.postSvc.Create(context.Background(), identityOf(author), models.CreatePostRequest{
		Title: "A post with a cover", Content: "c", Category: "Photography",
	}, img)
	c.Assert(err, qt.IsNil)
	c.Assert(post.FeaturedImage, qt.Equals, e.store.saved[0])
}

func TestGetBySlugCountsEveryRead(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	author := e.users.Add("writer", models.RoleAuthor)
	createPost(c, e, author, "Counting the views")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.postSvc.GetBySlug(ctx, "counting-the-views")
			c.Check(err, qt.IsNil)
		}()
	}
	wg.Wait()

	post, err := e.postSvc.GetBySlug(ctx, "counting-the-views")
	c.Assert(err, qt.IsNil)
	c.Assert(post.Views, qt.Equals, int64(21))
	c.Assert(post.Author.Username, qt.Equals, "writer")

	_, err = e.postSvc.GetBySlug(ctx, "missing")
	c.Assert(err, qt.ErrorMatches, "Blog not found")
}

func TestListPosts(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	alice := e.users.Add("alice_writes", models.RoleAuthor)
	bob := e.users.Add("bob_writes", models.RoleAuthor)

	for i := 0; i < 7; i++ {
		createPost(c, e, alice, fmt.Sprintf("Alice post number %d", i))
	}
	createPost(c, e, bob, "Bob writes about travel")

	page, err := e.postSvc.List(ctx, ListQuery{})
	c.Assert(err, qt.IsNil)
	c.Assert(page.CurrentPage, qt.Equals, 1)
	c.Assert(page.TotalBlogs, qt.Equals, int64(8))
	c.Assert(page.Pages, qt.Equals, 3)
	c.Assert(page.Blogs, qt.HasLen, 3)
	c.Assert(page.Blogs[0].Title, qt.Equals, "Bob writes about travel")

	page, err = e.postSvc.List(ctx, ListQuery{Page: 3, PageSet: true})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Blogs, qt.HasLen, 2)

	page, err = e.postSvc.List(ctx, ListQuery{Limit: 500, SortBy: "oldest"})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Blogs, qt.HasLen, 8)
	c.Assert(page.Blogs[0].Title, qt.Equals, "Alice post number 0")

	page, err = e.postSvc.List(ctx, ListQuery{Author: bob.ID.Hex()})
	c.Assert(err, qt.IsNil)
	c.Assert(page.TotalBlogs, qt.Equals, int64(1))
	c.Assert(page.Blogs[0].Author.Username, qt.Equals, "bob_writes")

	// Search without a page is a suggestion lookup capped at five results.
	page, err = e.postSvc.List(ctx, ListQuery{Search: "ALICE"})
	c.Assert(err, qt.IsNil)
	c.Assert(page.TotalBlogs, qt.Equals, int64(7))
	c.Assert(page.Blogs, qt.HasLen, 5)

	// Author usernames are searched too.
	page, err = e.postSvc.List(ctx, ListQuery{Search: "bob_", Page: 1, PageSet: true})
	c.Assert(err, qt.IsNil)
	c.Assert(page.TotalBlogs, qt.Equals, int64(1))

	_, err = e.postSvc.List(ctx, ListQuery{SortBy: "random"})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	_, err = e.postSvc.List(ctx, ListQuery{Author: "nope"})
	c.Assert(err, qt.ErrorIs, ErrValidation)

	// A page whose offset does not fit in an int64 is rejected.
	_, err = e.postSvc.List(ctx, ListQuery{Page: 1 << 62, PageSet: true})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	page, err = e.postSvc.List(ctx, ListQuery{Page: 1 << 40, PageSet: true, Limit: 50})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Blogs, qt.HasLen, 0)
}

func TestUpdatePost(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	owner := e.users.Add("owner", models.RoleAuthor)
	other := e.users.Add("other", models.RoleAuthor)
	admin := e.users.Add("admin", models.RoleAdmin)
	createPost(c, e, owner, "Original title here")
	createPost(c, e, owner, "Another title here")

	_, err := e.postSvc.Update(ctx, identityOf(other), "original-title-here", models.UpdatePostRequest{Content: "hijack"}, nil)
	c.Assert(err, qt.ErrorIs, ErrPermissionDenied)

	updated, err := e.postSvc.Update(ctx, identityOf(owner), "original-title-here", models.UpdatePostRequest{Content: "new body"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Slug, qt.Equals, "original-title-here")
	c.Assert(updated.Content, qt.Equals, "new body")

	updated, err = e.postSvc.Update(ctx, identityOf(admin), "original-title-here", models.UpdatePostRequest{Title: "Renamed by the admin"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Slug, qt.Equals, "renamed-by-the-admin")
	c.Assert(updated.Author.Username, qt.Equals, "owner")

	_, err = e.postSvc.Update(ctx, identityOf(owner), "renamed-by-the-admin", models.UpdatePostRequest{Title: "Another Title Here"}, nil)
	c.Assert(err, qt.ErrorIs, ErrDuplicateSlug)

	_, err = e.postSvc.Update(ctx, identityOf(owner), "renamed-by-the-admin", models.UpdatePostRequest{Category: "Nope"}, nil)
	c.Assert(err, qt.ErrorIs, ErrValidation)

	_, err = e.postSvc.Update(ctx, identityOf(owner), "original-title-here", models.UpdatePostRequest{Content: "x"}, nil)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestUpdatePostReplacesImage(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	owner := e.users.Add("owner", models.RoleAuthor)
	img, err := storage.NewUpload("cover.png", []byte("\x89PNG\r\n\x1a\n0000"), storage.MaxFeaturedImageSize)
	c.Assert(err, qt.IsNil)

	_, err = e.postSvc.Create(ctx, identityOf(owner), models.CreatePostRequest{
		Title: "Post with a picture", Content: "c", Category: "Art & Culture",
	}, img)
	c.Assert(err, qt.IsNil)

	updated, err := e.postSvc.Update(ctx, identityOf(owner), "post-with-a-picture", models.UpdatePostRequest{}, img)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.FeaturedImage, qt.Equals, e.store.saved[1])
	c.Assert(e.store.deleted, qt.DeepEquals, []string{e.store.saved[0]})
}

func TestDeletePostCascades(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	owner := e.users.Add("owner", models.RoleAuthor)
	reader := e.users.Add("reader", models.RoleReader)
	post := createPost(c, e, owner, "Doomed post title")
	keep := createPost(c, e, owner, "Surviving post title")

	_, err := e.commentSvc.Create(ctx, identityOf(reader), post.Slug, models.CreateCommentRequest{Content: "first"})
	c.Assert(err, qt.IsNil)
	_, err = e.commentSvc.Create(ctx, identityOf(reader), keep.Slug, models.CreateCommentRequest{Content: "stays"})
	c.Assert(err, qt.IsNil)
	_, err = e.postSvc.ToggleLike(ctx, identityOf(reader), post.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(e.notifications.Rows(), qt.HasLen, 3)

	c.Assert(e.postSvc.Delete(ctx, identityOf(reader), post.Slug), qt.ErrorIs, ErrPermissionDenied)
	c.Assert(e.postSvc.Delete(ctx, identityOf(owner), post.Slug), qt.IsNil)

	c.Assert(e.comments.All(), qt.HasLen, 1)
	c.Assert(e.notifications.Rows(), qt.HasLen, 1)
	c.Assert(e.notifications.Rows()[0].PostID, qt.Equals, keep.ID.Hex())

	c.Assert(e.postSvc.Delete(ctx, identityOf(owner), post.Slug), qt.ErrorIs, ErrNotFound)
}

// flakyNotifications fails DeleteByPostID while fail is set.
type flakyNotifications struct {
	*memory.Notifications
	fail bool
}

func (f *flakyNotifications) DeleteByPostID(ctx context.Context, postID string) (int64, error) {
	if f.fail {
		return 0, errors.New("postgres unavailable")
	}
	return f.Notifications.DeleteByPostID(ctx, postID)
}

func TestDeletePostRetryAfterFailedCascade(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	flaky := &flakyNotifications{Notifications: e.notifications, fail: true}
	e.notificationSvc = NewNotificationService(flaky, e.posts)
	e.postSvc = NewPostService(e.posts, e.comments, e.users, e.notificationSvc, e.store)
	e.commentSvc = NewCommentService(e.comments, e.posts, e.users, e.notificationSvc)

	owner := e.users.Add("owner", models.RoleAuthor)
	reader := e.users.Add("reader", models.RoleReader)
	post := createPost(c, e, owner, "Hard to delete post")
	_, err := e.postSvc.ToggleLike(ctx, identityOf(reader), post.Slug)
	c.Assert(err, qt.IsNil)

	err = e.postSvc.Delete(ctx, identityOf(owner), post.Slug)
	c.Assert(err, qt.ErrorMatches, ".*postgres unavailable")
	_, err = e.posts.GetPostBySlug(ctx, post.Slug)
	c.Assert(err, qt.IsNil)

	flaky.fail = false
	c.Assert(e.postSvc.Delete(ctx, identityOf(owner), post.Slug), qt.IsNil)
	c.Assert(e.notifications.Rows(), qt.HasLen, 0)
	_, err = e.posts.GetPostBySlug(ctx, post.Slug)
	c.Assert(err, qt.IsNotNil)
}

func TestToggleLike(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	author := e.users.Add("author", models.RoleAuthor)
	reader := e.users.Add("reader", models.RoleReader)
	post := createPost(c, e, author, "Likeable post title")

	res, err := e.postSvc.ToggleLike(ctx, identityOf(reader), post.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Active, qt.IsTrue)
	c.Assert(res.Count, qt.Equals, int64(1))

	c.Assert(e.notifications.Rows(), qt.HasLen, 1)
	n := e.notifications.Rows()[0]
	c.Assert(n.RecipientID, qt.Equals, author.ID.Hex())
	c.Assert(n.ActorID, qt.Equals, reader.ID.Hex())
	c.Assert(n.Type, qt.Equals, models.NotificationLike)
	c.Assert(n.Message, qt.Equals, `reader liked your blog "Likeable post title"`)

	res, err = e.postSvc.ToggleLike(ctx, identityOf(reader), post.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Active, qt.IsFalse)
	c.Assert(res.Count, qt.Equals, int64(0))
	c.Assert(e.notifications.Rows(), qt.HasLen, 1)

	// Liking your own post does not notify you.
	_, err = e.postSvc.ToggleLike(ctx, identityOf(author), post.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(e.notifications.Rows(), qt.HasLen, 1)

	_, err = e.postSvc.ToggleLike(ctx, identityOf(reader), "missing")
	c.Assert(err, qt.ErrorMatches, "Blog not found")

	ghost := &models.Identity{UserID: primitive.NewObjectID()}
	_, err = e.postSvc.ToggleLike(ctx, ghost, post.Slug)
	c.Assert(err, qt.ErrorMatches, "User not found")
}

func TestConcurrentLikesAreNotLost(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	author := e.users.Add("author", models.RoleAuthor)
	post := createPost(c, e, author, "Popular post title")

	const likers = 25
	var wg sync.WaitGroup
	for i := 0; i < likers; i++ {
		u := e.users.Add(fmt.Sprintf("fan_%02d", i), models.RoleReader)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.postSvc.ToggleLike(ctx, identityOf(u), post.Slug)
			c.Check(err, qt.IsNil)
		}()
	}
	wg.Wait()

	stored, err := e.posts.GetPostBySlug(ctx, post.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Likes, qt.HasLen, likers)
	c.Assert(stored.LikesCount, qt.Equals, int64(likers))
}

func TestBookmarks(t *testing.T) {
	c := qt.New(t)
	e := newEnv()
	ctx := context.Background()
	author := e.users.Add("author", models.RoleAuthor)
	reader := e.users.Add("reader", models.RoleReader)
	first := createPost(c, e, author, "First bookmarked post")
	second := createPost(c, e, author, "Second bookmarked post")

	for _, p := range []*models.EnrichedPost{first, second} {
		res, err := e.postSvc.ToggleBookmark(ctx, identityOf(reader), p.Slug)
		c.Assert(err, qt.IsNil)
		c.Assert(res.Active, qt.IsTrue)
	}

	list, err := e.postSvc.Bookmarks(ctx, identityOf(reader))
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].Slug, qt.Equals, second.Slug)

	res, err := e.postSvc.ToggleBookmark(ctx, identityOf(reader), first.Slug)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Active, qt.IsFalse)

	list, err = e.postSvc.Bookmarks(ctx, identityOf(reader))
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(e.notifications.Rows(), qt.HasLen, 0)

	_, err = e.postSvc.ToggleBookmark(ctx, identityOf(reader), "missing")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}
