package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Folder represents a node in the folder hierarchy
// A nil ParentID means the folder sits at the root level
type Folder struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"not null" json:"name"`
	ParentID  *string   `gorm:"index" json:"parent_id"`

	// Relationships
	Bookmarks []Bookmark `gorm:"foreignKey:FolderID" json:"bookmarks,omitempty"`
}

// BeforeCreate assigns a UUID primary key unless one was supplied
func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
