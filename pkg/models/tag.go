package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag represents a label that can be applied to bookmarks
type Tag struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`

	// Relationships
	Bookmarks []Bookmark `gorm:"many2many:bookmark_tags;" json:"bookmarks,omitempty"`
}

// BeforeCreate assigns a UUID primary key unless one was supplied
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
