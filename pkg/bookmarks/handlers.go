package bookmarks

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Fetcher caches a favicon for a page URL and returns the relative
// path it is served under, or an empty string when nothing usable
// could be fetched. Implementations never fail loudly.
type Fetcher interface {
	FetchAndCache(pageURL string) string
}

// Handler handles bookmark-related requests
type Handler struct {
	db       *gorm.DB
	favicons Fetcher
}

// NewHandler creates a new bookmarks handler. favicons may be nil to
// skip favicon caching entirely.
func NewHandler(db *gorm.DB, favicons Fetcher) *Handler {
	return &Handler{db: db, favicons: favicons}
}

// CreateBookmarkRequest represents the request to create a bookmark
type CreateBookmarkRequest struct {
	URL         string   `json:"url" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	FolderID    *string  `json:"folder_id"`
	TagIDs      []string `json:"tag_ids"`
}

// UpdateBookmarkRequest represents the request to update a bookmark.
// The tag set is fully replaced by tag_ids; an omitted folder_id makes
// the bookmark unfiled.
type UpdateBookmarkRequest struct {
	URL         string   `json:"url" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	FolderID    *string  `json:"folder_id"`
	TagIDs      []string `json:"tag_ids"`
}

// LiveSearchResult is the compact row returned by the live search box
type LiveSearchResult struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FolderName string `json:"folder_name,omitempty"`
	FaviconURL string `json:"favicon_url"`
}

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

// List returns a filtered, sorted, paginated bookmark page
// @Summary List bookmarks
// @Description Get bookmarks filtered by folder, tag and search text; pinned bookmarks always come first
// @Tags bookmarks
// @Produce json
// @Param folder query string false "Folder ID, or 'unfiled' for bookmarks without a folder"
// @Param subfolders query bool false "Include descendant folders (default true)"
// @Param tag query string false "Tag ID"
// @Param search query string false "Substring to match against title, URL and description"
// @Param q query string false "Alias for search"
// @Param sort query string false "Sort field: title, url, created_at or updated_at"
// @Param order query string false "Sort direction: asc or desc"
// @Param page query int false "Page number (default 1)"
// @Param per_page query int false "Page size (default 25, max 100)"
// @Success 200 {object} Result
// @Security BasicAuth
// @Router /bookmarks [get]
func (h *Handler) List(c *gin.Context) {
	q := Query{
		FolderID:          c.Query("folder"),
		IncludeSubfolders: true,
		TagID:             c.Query("tag"),
		Search:            c.Query("search"),
		SortBy:            c.DefaultQuery("sort", "updated_at"),
		SortOrder:         c.DefaultQuery("order", "desc"),
		Page:              parsePositiveInt(c.Query("page"), 1),
		PerPage:           parsePositiveInt(c.Query("per_page"), DefaultPerPage),
	}
	if q.Search == "" {
		q.Search = c.Query("q")
	}
	if sub := c.Query("subfolders"); sub != "" {
		q.IncludeSubfolders = sub == "true" || sub == "1"
	}

	result, err := List(h.db, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmarks"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get returns a single bookmark with its tags
// @Summary Get a bookmark
// @Description Get one bookmark with its resolved tag list and folder name
// @Tags bookmarks
// @Produce json
// @Param id path string true "Bookmark ID"
// @Success 200 {object} BookmarkView
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Security BasicAuth
// @Router /bookmarks/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	view, err := Get(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmark"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create creates a new bookmark
// @Summary Create a bookmark
// @Description Create a bookmark; its favicon is fetched and cached synchronously
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param request body CreateBookmarkRequest true "Bookmark details"
// @Success 201 {object} BookmarkView
// @Failure 400 {object} map[string]string "Validation error"
// @Security BasicAuth
// @Router /bookmarks [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := Fields{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		FolderID:    req.FolderID,
		TagIDs:      req.TagIDs,
	}
	if h.favicons != nil {
		fields.Favicon = h.favicons.FetchAndCache(req.URL)
	}

	bookmark, err := Create(h.db, fields)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bookmark"})
		return
	}

	view, err := Get(h.db, bookmark.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmark"})
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Update updates a bookmark
// @Summary Update a bookmark
// @Description Replace a bookmark's fields and tag set; the cached favicon is kept unless a fresh one can be fetched
// @Tags bookmarks
// @Accept json
// @Produce json
// @Param id path string true "Bookmark ID"
// @Param request body UpdateBookmarkRequest true "Updated bookmark details"
// @Success 200 {object} BookmarkView
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Security BasicAuth
// @Router /bookmarks/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := Fields{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		FolderID:    req.FolderID,
		TagIDs:      req.TagIDs,
	}
	if h.favicons != nil {
		fields.Favicon = h.favicons.FetchAndCache(req.URL)
	}

	bookmark, err := Update(h.db, c.Param("id"), fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bookmark"})
		return
	}

	view, err := Get(h.db, bookmark.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookmark"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete deletes a bookmark
// @Summary Delete a bookmark
// @Description Delete a bookmark and its tag associations
// @Tags bookmarks
// @Produce json
// @Param id path string true "Bookmark ID"
// @Success 200 {object} map[string]string "Bookmark deleted"
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Security BasicAuth
// @Router /bookmarks/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := Delete(h.db, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete bookmark"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bookmark deleted"})
}

// TogglePin flips a bookmark's pinned flag
// @Summary Toggle pin
// @Description Flip the pinned flag; pinned bookmarks sort ahead of everything else
// @Tags bookmarks
// @Produce json
// @Param id path string true "Bookmark ID"
// @Success 200 {object} map[string]interface{} "New pinned value"
// @Failure 404 {object} map[string]string "Bookmark not found"
// @Security BasicAuth
// @Router /bookmarks/{id}/pin [post]
func (h *Handler) TogglePin(c *gin.Context) {
	pinned, err := TogglePin(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle pin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "pinned": pinned})
}

// LiveSearch powers the autocomplete search box with at most 10 hits
// @Summary Live search
// @Description Lightweight substring search for autocomplete; requires at least 2 characters
// @Tags bookmarks
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} map[string][]LiveSearchResult
// @Security BasicAuth
// @Router /search [get]
func (h *Handler) LiveSearch(c *gin.Context) {
	query := c.Query("q")
	if len(query) < 2 {
		c.JSON(http.StatusOK, gin.H{"bookmarks": []LiveSearchResult{}})
		return
	}

	result, err := List(h.db, Query{
		Search:    query,
		SortBy:    "updated_at",
		SortOrder: "desc",
		Page:      1,
		PerPage:   10,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search bookmarks"})
		return
	}

	hits := make([]LiveSearchResult, len(result.Bookmarks))
	for i, b := range result.Bookmarks {
		hits[i] = LiveSearchResult{
			ID:         b.ID,
			Title:      b.Title,
			URL:        b.URL,
			FolderName: b.FolderName,
			FaviconURL: b.FaviconURL,
		}
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": hits})
}

// RegisterRoutes registers bookmark routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/bookmarks", h.List)
	rg.POST("/bookmarks", h.Create)
	rg.GET("/bookmarks/:id", h.Get)
	rg.PUT("/bookmarks/:id", h.Update)
	rg.DELETE("/bookmarks/:id", h.Delete)
	rg.POST("/bookmarks/:id/pin", h.TogglePin)
	rg.GET("/search", h.LiveSearch)
}
