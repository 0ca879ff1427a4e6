package importexport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles import/export requests
type Handler struct {
	db             *gorm.DB
	favicons       Fetcher
	maxUploadBytes int64
}

// NewHandler creates a new import/export handler. A nil Fetcher skips
// favicon caching during import.
func NewHandler(db *gorm.DB, favicons Fetcher, maxUploadBytes int64) *Handler {
	return &Handler{db: db, favicons: favicons, maxUploadBytes: maxUploadBytes}
}

// readUpload returns the uploaded document, taken from the multipart
// "file" field when the request is a form upload, otherwise from the
// raw request body.
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	if c.ContentType() == "multipart/form-data" {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("no file uploaded")
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
			return nil, errors.New("only JSON files are allowed")
		}
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return h.readLimited(file)
	}

	if c.Request.Body == nil {
		return nil, errors.New("empty request body")
	}
	defer c.Request.Body.Close()
	data, err := h.readLimited(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

func (h *Handler) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, h.maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, errors.New("file too large")
	}
	return data, nil
}

// Import imports bookmarks from a Firefox JSON document, uploaded as
// a multipart "file" field or as the raw request body. Responds with
// counts of created folders, bookmarks and tags.
func (h *Handler) Import(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	root, err := Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := Import(h.db, root, h.favicons)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import bookmarks"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Export exports all bookmarks as a downloadable Firefox JSON file.
func (h *Handler) Export(c *gin.Context) {
	root, err := Export(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export bookmarks"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=bookmarks.json")
	c.IndentedJSON(http.StatusOK, root)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
