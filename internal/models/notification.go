package models

import "time"

// NotificationType is the event that produced a notification
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification represents a user notification (PostgreSQL). User and post references
// are MongoDB ObjectIDs in hex form.
type Notification struct {
	ID          uint             `json:"_id" gorm:"primaryKey"`
	RecipientID string           `json:"user" gorm:"size:24;index:idx_notifications_recipient_created,priority:1"`
	ActorID     string           `json:"actor" gorm:"size:24"`
	PostID      string           `json:"-" gorm:"size:24;index"`
	Type        NotificationType `json:"type" gorm:"size:20"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"index:idx_notifications_recipient_created,priority:2,sort:desc"`
}

// PostRef is the slice of a post embedded in a notification listing
type PostRef struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// EnrichedNotification includes the referenced post when it still exists
type EnrichedNotification struct {
	Notification
	Blog *PostRef `json:"blog"`
}
