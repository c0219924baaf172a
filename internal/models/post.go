package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Categories is the fixed list a post category must come from
var Categories = []string{
	"Technology", "Health & Fitness", "Lifestyle", "Travel", "Food & Drink",
	"Business & Finance", "Education", "Entertainment", "Fashion", "Sports",
	"Science", "Art & Culture", "Personal Development", "Parenting", "News & Politics",
	"Music", "Gaming", "Environment", "Self-Improvement", "Books & Literature",
	"Relationships", "History", "Photography", "Tech Reviews", "Productivity",
	"DIY (Do It Yourself)", "Social Media", "Mental Health", "Philosophy", "Pets",
}

// IsCategory reports whether name is one of Categories
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Post represents a blog post stored in MongoDB
type Post struct {
	ID            primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Title         string               `json:"title" bson:"title"`
	Slug          string               `json:"slug" bson:"slug"`
	Content       string               `json:"content" bson:"content"`
	Category      string               `json:"categories" bson:"category"`
	AuthorID      primitive.ObjectID   `json:"-" bson:"author"`
	FeaturedImage string               `json:"featuredImage,omitempty" bson:"featured_image,omitempty"`
	Views         int64                `json:"views" bson:"views"`
	Likes         []primitive.ObjectID `json:"likes" bson:"likes"`
	LikesCount    int64                `json:"likesCount" bson:"likes_count"`
	Bookmarks     []primitive.ObjectID `json:"bookmarks" bson:"bookmarks"`
	Comments      []primitive.ObjectID `json:"comments" bson:"comments"`
	CreatedAt     time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updated_at"`
}

// EnrichedPost is a post with its author populated
type EnrichedPost struct {
	Post   `bson:",inline"`
	Author UserCompact `json:"author"`
}

// CreatePostRequest defines the form for creating a new post
type CreatePostRequest struct {
	Title    string `json:"title" form:"title" validate:"required,min=10"`
	Content  string `json:"content" form:"content" validate:"required"`
	Category string `json:"categories" form:"categories" validate:"required,category"`
}

// UpdatePostRequest defines the form for updating an existing post
type UpdatePostRequest struct {
	Title    string `json:"title,omitempty" form:"title" validate:"omitempty,min=10"`
	Content  string `json:"content,omitempty" form:"content"`
	Category string `json:"categories,omitempty" form:"categories" validate:"omitempty,category"`
}

// PostSort selects the ordering of a post listing
type PostSort string

const (
	SortNewest PostSort = "newest"
	SortOldest PostSort = "oldest"
	SortViews  PostSort = "views"
	SortLikes  PostSort = "likes"
)

// PostFilter narrows a post listing
type PostFilter struct {
	Search    string
	AuthorIDs []primitive.ObjectID // matched when searching by author username
	AuthorID  *primitive.ObjectID
	Category  string
	SortBy    PostSort
	Skip      int64
	Limit     int64
}

// PostPage is the paginated listing response
type PostPage struct {
	CurrentPage int            `json:"currentPage"`
	TotalBlogs  int64          `json:"totalBlogs"`
	Pages       int            `json:"pages"`
	Blogs       []EnrichedPost `json:"blogs"`
}

// ToggleResult reports the caller's membership after a like or bookmark toggle
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}
