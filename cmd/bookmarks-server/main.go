package main

import (
	"log"
	"os"

	"github.com/Cyclenerd/bookmarks-manager/pkg/auth"
	"github.com/Cyclenerd/bookmarks-manager/pkg/bookmarks"
	"github.com/Cyclenerd/bookmarks-manager/pkg/config"
	"github.com/Cyclenerd/bookmarks-manager/pkg/database"
	"github.com/Cyclenerd/bookmarks-manager/pkg/favicon"
	"github.com/Cyclenerd/bookmarks-manager/pkg/folders"
	"github.com/Cyclenerd/bookmarks-manager/pkg/importexport"
	"github.com/Cyclenerd/bookmarks-manager/pkg/metadata"
	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"github.com/Cyclenerd/bookmarks-manager/pkg/tags"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// @title Bookmarks API
// @version 1.0
// @description A personal bookmark manager with folders, tags, pinning, full-text search, favicon caching and Firefox import/export.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.basic BasicAuth

func main() {
	// .env is optional; real environment variables win either way
	_ = godotenv.Load()

	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := os.MkdirAll(cfg.FaviconDir, 0o755); err != nil {
		log.Fatalf("Failed to create favicon cache directory: %v", err)
	}

	if cfg.UsingDefaultCredentials() {
		log.Println("WARNING: running with default credentials; set BOOKMARKS_USERNAME and BOOKMARKS_PASSWORD (or BOOKMARKS_PASSWORD_HASH)")
	}

	favicons := favicon.NewService(cfg.FaviconDir)
	titles := metadata.NewService()

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint (public)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Cached favicons are served as static files
	r.Static("/favicons", cfg.FaviconDir)

	// API routes (single account, HTTP Basic Auth)
	api := r.Group("/api")
	api.Use(auth.BasicAuth(auth.Credentials{
		Username:     cfg.Username,
		Password:     cfg.Password,
		PasswordHash: cfg.PasswordHash,
	}))
	{
		foldersHandler := folders.NewHandler(db)
		foldersHandler.RegisterRoutes(api)

		bookmarksHandler := bookmarks.NewHandler(db, favicons)
		bookmarksHandler.RegisterRoutes(api)

		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(api)

		importExportHandler := importexport.NewHandler(db, favicons, cfg.MaxImportBytes)
		importExportHandler.RegisterRoutes(api)

		metadataHandler := metadata.NewHandler(titles)
		metadataHandler.RegisterRoutes(api)
	}

	log.Printf("Starting bookmarks server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
