package folders

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles folder-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new folders handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateFolderRequest represents the request to create a folder
type CreateFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// UpdateFolderRequest represents the request to update a folder.
// Omitting parent_id moves the folder to the root level.
type UpdateFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// List returns all folders with usage counts
// @Summary List folders
// @Description Get all folders annotated with bookmark and subfolder counts
// @Tags folders
// @Produce json
// @Success 200 {array} FolderInfo
// @Security BasicAuth
// @Router /folders [get]
func (h *Handler) List(c *gin.Context) {
	folders, err := ListAll(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch folders"})
		return
	}
	c.JSON(http.StatusOK, folders)
}

// Tree returns the folder hierarchy as nested nodes
// @Summary Folder tree
// @Description Get root folders with children nested recursively
// @Tags folders
// @Produce json
// @Success 200 {array} TreeNode
// @Security BasicAuth
// @Router /folders/tree [get]
func (h *Handler) Tree(c *gin.Context) {
	tree, err := BuildTree(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build folder tree"})
		return
	}
	c.JSON(http.StatusOK, tree)
}

// Get returns a single folder with its ancestor chain
// @Summary Get a folder
// @Description Get a folder plus its ancestors from root to immediate parent
// @Tags folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} FolderWithAncestry
// @Failure 404 {object} map[string]string "Folder not found"
// @Security BasicAuth
// @Router /folders/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	folder, err := GetWithAncestry(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch folder"})
		return
	}
	c.JSON(http.StatusOK, folder)
}

// Create creates a new folder
// @Summary Create a folder
// @Description Create a folder, optionally nested under a parent
// @Tags folders
// @Accept json
// @Produce json
// @Param request body CreateFolderRequest true "Folder details"
// @Success 201 {object} models.Folder
// @Failure 400 {object} map[string]string "Validation error"
// @Security BasicAuth
// @Router /folders [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folder, err := Create(h.db, req.Name, req.ParentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create folder"})
		return
	}

	c.JSON(http.StatusCreated, folder)
}

// Update renames or moves a folder
// @Summary Update a folder
// @Description Rename a folder or move it to a new parent; moving a folder into its own subtree is rejected
// @Tags folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param request body UpdateFolderRequest true "Updated folder details"
// @Success 200 {object} models.Folder
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Folder not found"
// @Failure 409 {object} map[string]string "Cyclic move rejected"
// @Security BasicAuth
// @Router /folders/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folder, err := Update(h.db, c.Param("id"), req.Name, req.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCyclicMove):
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot move folder into its own subfolder"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update folder"})
		}
		return
	}

	c.JSON(http.StatusOK, folder)
}

// Delete removes a folder
// @Summary Delete a folder
// @Description Delete a folder; its bookmarks are detached and its subfolders promoted to the deleted folder's parent
// @Tags folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} map[string]string "Folder deleted"
// @Failure 404 {object} map[string]string "Folder not found"
// @Security BasicAuth
// @Router /folders/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := Delete(h.db, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete folder"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Folder deleted"})
}

// RegisterRoutes registers folder routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/folders", h.List)
	rg.POST("/folders", h.Create)
	rg.GET("/folders/tree", h.Tree)
	rg.GET("/folders/:id", h.Get)
	rg.PUT("/folders/:id", h.Update)
	rg.DELETE("/folders/:id", h.Delete)
}
