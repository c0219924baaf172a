// Package memory holds in-memory implementations of the repository
// interfaces. They back the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.PostRepository         = (*Posts)(nil)
	_ repositories.CommentRepository      = (*Comments)(nil)
	_ repositories.NotificationRepository = (*Notifications)(nil)
)

// Users is an in-memory repositories.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewUsers() *Users {
	return &Users{users: map[primitive.ObjectID]*models.User{}}
}

func (f *Users) Add(username string, role models.Role) *models.User {
	u := &models.User{Username: username, Email: username + "@example.com", Role: role, Photo: models.DefaultPhoto}
	if err := f.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *Users) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(user.Email) {
			return repositories.ErrDuplicateKey
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *Users) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *Users) GetUserByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetPasswordToken == hash && u.ResetPasswordExpiresAt != nil && u.ResetPasswordExpiresAt.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *Users) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]*models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *Users) SearchUserIDs(_ context.Context, username string) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []primitive.ObjectID
	for id, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(username)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *Users) update(id primitive.ObjectID, fn func(u *models.User)) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (f *Users) UpdatePhoto(_ context.Context, id primitive.ObjectID, photo string) (*models.User, error) {
	return f.update(id, func(u *models.User) { u.Photo = photo })
}

func (f *Users) UpdateRole(_ context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	return f.update(id, func(u *models.User) { u.Role = role })
}

func (f *Users) SetResetToken(_ context.Context, id primitive.ObjectID, hash string, expiresAt time.Time) error {
	_, err := f.update(id, func(u *models.User) {
		u.ResetPasswordToken = hash
		u.ResetPasswordExpiresAt = &expiresAt
	})
	return err
}

func (f *Users) ResetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	_, err := f.update(id, func(u *models.User) {
		u.Password = hash
		u.ResetPasswordToken = ""
		u.ResetPasswordExpiresAt = nil
	})
	return err
}

// Posts is an in-memory repositories.PostRepository. Every mutation runs under
// one lock, so toggles and counters behave as atomically as the Mongo ones.
type Posts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
}

func NewPosts() *Posts {
	return &Posts{posts: map[primitive.ObjectID]*models.Post{}}
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Likes = append([]primitive.ObjectID{}, p.Likes...)
	cp.Bookmarks = append([]primitive.ObjectID{}, p.Bookmarks...)
	cp.Comments = append([]primitive.ObjectID{}, p.Comments...)
	return &cp
}

func (f *Posts) bySlug(slug string) *models.Post {
	for _, p := range f.posts {
		if p.Slug == slug {
			return p
		}
	}
	return nil
}

func (f *Posts) CreatePost(_ context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bySlug(post.Slug) != nil {
		return repositories.ErrDuplicateKey
	}
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().Add(time.Duration(len(f.posts)) * time.Millisecond)
	f.posts[post.ID] = clonePost(post)
	return nil
}

func (f *Posts) GetPostBySlug(_ context.Context, slug string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.bySlug(slug)
	if p == nil {
		return nil, repositories.ErrNotFound
	}
	return clonePost(p), nil
}

func (f *Posts) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]*models.Post{}
	for _, id := range ids {
		if p, ok := f.posts[id]; ok {
			out[id] = clonePost(p)
		}
	}
	return out, nil
}

func (f *Posts) sorted(match func(p *models.Post) bool, by models.PostSort) []models.Post {
	var out []models.Post
	for _, p := range f.posts {
		if match(p) {
			out = append(out, *clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch by {
		case models.SortOldest:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case models.SortViews:
			if out[i].Views != out[j].Views {
				return out[i].Views > out[j].Views
			}
		case models.SortLikes:
			if out[i].LikesCount != out[j].LikesCount {
				return out[i].LikesCount > out[j].LikesCount
			}
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *Posts) ListPosts(_ context.Context, filter models.PostFilter) ([]models.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	search := strings.ToLower(filter.Search)
	all := f.sorted(func(p *models.Post) bool {
		if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
			return false
		}
		if filter.Category != "" && p.Category != filter.Category {
			return false
		}
		if search == "" {
			return true
		}
		if strings.Contains(strings.ToLower(p.Title), search) || strings.Contains(strings.ToLower(p.Category), search) {
			return true
		}
		for _, id := range filter.AuthorIDs {
			if id == p.AuthorID {
				return true
			}
		}
		return false
	}, filter.SortBy)

	total := int64(len(all))
	start := filter.Skip
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *Posts) GetBookmarkedPosts(_ context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(p *models.Post) bool { return contains(p.Bookmarks, userID) }, models.SortNewest), nil
}

func (f *Posts) UpdatePost(_ context.Context, id primitive.ObjectID, changes repositories.PostChanges) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if changes.Slug != nil {
		if other := f.bySlug(*changes.Slug); other != nil && other.ID != id {
			return nil, repositories.ErrDuplicateKey
		}
		p.Slug = *changes.Slug
	}
	if changes.Title != nil {
		p.Title = *changes.Title
	}
	if changes.Content != nil {
		p.Content = *changes.Content
	}
	if changes.Category != nil {
		p.Category = *changes.Category
	}
	if changes.FeaturedImage != nil {
		p.FeaturedImage = *changes.FeaturedImage
	}
	return clonePost(p), nil
}

func (f *Posts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

func (f *Posts) IncrementViews(_ context.Context, slug string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.bySlug(slug)
	if p == nil {
		return nil, repositories.ErrNotFound
	}
	p.Views++
	return clonePost(p), nil
}

func (f *Posts) ToggleMember(_ context.Context, slug string, set repositories.MemberSet, userID primitive.ObjectID) (*models.Post, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.bySlug(slug)
	if p == nil {
		return nil, false, repositories.ErrNotFound
	}
	members := &p.Bookmarks
	if set == repositories.LikesSet {
		members = &p.Likes
	}
	active := !contains(*members, userID)
	if active {
		*members = append(*members, userID)
	} else {
		*members = remove(*members, userID)
	}
	p.LikesCount = int64(len(p.Likes))
	return clonePost(p), active, nil
}

func (f *Posts) PushComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Comments = append(p.Comments, commentID)
	return nil
}

func (f *Posts) PullComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Comments = remove(p.Comments, commentID)
	return nil
}

// Comments is an in-memory repositories.CommentRepository.
type Comments struct {
	mu       sync.Mutex
	comments map[primitive.ObjectID]*models.Comment
	seq      int
}

func NewComments() *Comments {
	return &Comments{comments: map[primitive.ObjectID]*models.Comment{}}
}

func (f *Comments) CreateComment(_ context.Context, c *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	cp := *c
	f.comments[c.ID] = &cp
	return nil
}

func (f *Comments) GetCommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *Comments) GetCommentsByPostID(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Comment{}
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *Comments) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.comments, id)
	return nil
}

func (f *Comments) DeleteCommentsByPostID(_ context.Context, postID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.comments {
		if c.PostID == postID {
			delete(f.comments, id)
			n++
		}
	}
	return n, nil
}

// Notifications is an in-memory repositories.NotificationRepository.
type Notifications struct {
	mu   sync.Mutex
	rows []*models.Notification
	seq  uint
}

func (f *Notifications) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = f.seq
	n.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	cp := *n
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *Notifications) GetByRecipientID(_ context.Context, recipient string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Notification{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].RecipientID == recipient {
			out = append(out, *f.rows[i])
		}
	}
	return out, nil
}

func (f *Notifications) GetUnreadCount(_ context.Context, recipient string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.RecipientID == recipient && !r.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *Notifications) MarkAsRead(_ context.Context, id uint, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.RecipientID == recipient {
			r.IsRead = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *Notifications) MarkManyAsRead(_ context.Context, recipient string, ids []uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for _, r := range f.rows {
		if r.RecipientID == recipient && wanted[r.ID] && !r.IsRead {
			r.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *Notifications) DeleteForRecipient(_ context.Context, id uint, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id && r.RecipientID == recipient {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *Notifications) DeleteByPostID(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if r.PostID == postID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func remove(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// NewNotifications returns an empty notification store.
func NewNotifications() *Notifications {
	return &Notifications{}
}

// All returns a copy of every stored post.
func (f *Posts) All() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, *clonePost(p))
	}
	return out
}

// All returns a copy of every stored comment.
func (f *Comments) All() []models.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Comment, 0, len(f.comments))
	for _, c := range f.comments {
		out = append(out, *c)
	}
	return out
}

// Rows returns a copy of every stored notification in insertion order.
func (f *Notifications) Rows() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out
}
