package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bookmark represents a saved URL
// FolderID is nil for bookmarks that live outside any folder
type Bookmark struct {
	ID          string    `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `gorm:"not null" json:"title"`
	URL         string    `gorm:"not null" json:"url"`
	Description string    `json:"description"`
	FolderID    *string   `gorm:"index" json:"folder_id"`
	FaviconURL  string    `json:"favicon_url"`
	Pinned      bool      `gorm:"default:false" json:"pinned"`

	// Relationships
	Folder *Folder `gorm:"foreignKey:FolderID" json:"folder,omitempty"`
	Tags   []Tag   `gorm:"many2many:bookmark_tags;" json:"tags,omitempty"`
}

// BeforeCreate assigns a UUID primary key unless one was supplied
func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
