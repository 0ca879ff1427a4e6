package metadata

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TitleFetcher resolves a page URL to its title.
type TitleFetcher interface {
	FetchPageTitle(pageURL string) Result
}

// Handler handles metadata requests
type Handler struct {
	titles TitleFetcher
}

// NewHandler creates a new metadata handler
func NewHandler(titles TitleFetcher) *Handler {
	return &Handler{titles: titles}
}

// FetchMetadataRequest carries the URL to look up
type FetchMetadataRequest struct {
	URL string `json:"url" binding:"required"`
}

// Fetch resolves a page title for the bookmark form. Lookup failures
// still answer 200; the body carries success=false and the reason.
func (h *Handler) Fetch(c *gin.Context) {
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusBadRequest, Result{Error: "Content-Type must be application/json"})
		return
	}

	var req FetchMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Result{Error: "URL is required"})
		return
	}

	c.JSON(http.StatusOK, h.titles.FetchPageTitle(req.URL))
}

// RegisterRoutes registers metadata routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/fetch-metadata", h.Fetch)
}
