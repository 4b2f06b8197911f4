package models

import "time"

// Notification is a feed item; only Read ever changes after insert.
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	Category  string    `gorm:"size:16;not null" json:"category"`
	Title     string    `gorm:"size:255" json:"title"`
	Message   string    `gorm:"size:1024" json:"message"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
