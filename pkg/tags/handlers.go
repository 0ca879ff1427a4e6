package tags

import (
	"errors"
	"net/http"
	"time"

	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagInfo is a tag annotated with its usage count
type TagInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	BookmarkCount int       `json:"bookmark_count"`
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateTagRequest represents the request to rename a tag
type UpdateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// FindOrCreate returns the tag with the given name, creating it when
// missing. The second return value reports whether a new row was
// inserted.
func FindOrCreate(db *gorm.DB, name string) (models.Tag, bool, error) {
	var tag models.Tag
	err := db.Where("name = ?", name).First(&tag).Error
	if err == nil {
		return tag, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Tag{}, false, err
	}

	tag = models.Tag{Name: name}
	if err := db.Create(&tag).Error; err != nil {
		return models.Tag{}, false, err
	}
	return tag, true, nil
}

// List returns all tags with bookmark counts, ordered by name
func (h *Handler) List(c *gin.Context) {
	var results []TagInfo
	err := h.db.Table("tags").
		Select("tags.id, tags.name, tags.created_at, tags.updated_at, COUNT(bookmark_tags.bookmark_id) as bookmark_count").
		Joins("LEFT JOIN bookmark_tags ON tags.id = bookmark_tags.tag_id").
		Group("tags.id").
		Order("tags.name").
		Find(&results).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	c.JSON(http.StatusOK, results)
}

// Get returns a single tag
func (h *Handler) Get(c *gin.Context) {
	var tag models.Tag
	if err := h.db.First(&tag, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}
	c.JSON(http.StatusOK, tag)
}

// Create creates a new tag with a unique name
func (h *Handler) Create(c *gin.Context) {
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.Tag
	if err := h.db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Tag already exists"})
		return
	}

	tag := models.Tag{Name: req.Name}
	if err := h.db.Create(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	c.JSON(http.StatusCreated, tag)
}

// Update renames a tag
func (h *Handler) Update(c *gin.Context) {
	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tag models.Tag
	if err := h.db.First(&tag, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var existing models.Tag
	if err := h.db.Where("name = ? AND id != ?", req.Name, tag.ID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Tag already exists"})
		return
	}

	tag.Name = req.Name
	if err := h.db.Save(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	c.JSON(http.StatusOK, tag)
}

// Delete removes a tag and all its bookmark associations
func (h *Handler) Delete(c *gin.Context) {
	var tag models.Tag
	if err := h.db.First(&tag, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Bookmarks").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted"})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
	rg.GET("/tags/:id", h.Get)
	rg.PUT("/tags/:id", h.Update)
	rg.DELETE("/tags/:id", h.Delete)
}
