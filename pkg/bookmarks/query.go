package bookmarks

import (
	"time"

	"github.com/Cyclenerd/bookmarks-manager/pkg/folders"
	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"gorm.io/gorm"
)

// UnfiledScope restricts a query to bookmarks without a folder when
// used as the FolderID.
const UnfiledScope = "unfiled"

// DefaultPerPage is the page size used when the caller does not ask
// for one.
const DefaultPerPage = 25

// MaxPerPage caps the page size a caller may request.
const MaxPerPage = 100

// Query describes one bookmark listing request.
type Query struct {
	FolderID          string // empty, UnfiledScope, or a folder id
	IncludeSubfolders bool
	TagID             string
	Search            string
	SortBy            string // title, url, created_at or updated_at
	SortOrder         string // asc or desc
	Page              int
	PerPage           int
}

// TagRef is the id and name pair attached to each returned bookmark.
type TagRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BookmarkView is a bookmark annotated with its resolved tag list and
// folder name.
type BookmarkView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	FolderID    *string   `json:"folder_id"`
	FolderName  string    `json:"folder_name,omitempty"`
	FaviconURL  string    `json:"favicon_url"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []TagRef  `json:"tags"`
}

// Result is one page of bookmarks plus pagination totals.
type Result struct {
	Bookmarks  []BookmarkView `json:"bookmarks"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
}

// Fields carries the writable bookmark attributes for create/update.
// An empty Favicon keeps the existing cached value on update.
type Fields struct {
	URL         string
	Title       string
	Description string
	FolderID    *string
	TagIDs      []string
	Favicon     string
}

// sortColumns maps accepted sort keys onto columns. The historical
// created_at key is served by updated_at: the stored creation time
// used to be refreshed on every update, so clients sorting by it
// expect last-modified ordering.
var sortColumns = map[string]string{
	"title":      "title",
	"url":        "url",
	"created_at": "updated_at",
	"updated_at": "updated_at",
}

// applyFilters adds the folder/tag/search predicate. The count query
// and the page query both go through here so their predicates cannot
// drift apart.
func applyFilters(db, tx *gorm.DB, q Query, folderIDs []string) *gorm.DB {
	if q.FolderID == UnfiledScope {
		tx = tx.Where("folder_id IS NULL")
	} else if len(folderIDs) > 0 {
		tx = tx.Where("folder_id IN ?", folderIDs)
	}

	if q.TagID != "" {
		sub := db.Table("bookmark_tags").Select("bookmark_id").Where("tag_id = ?", q.TagID)
		tx = tx.Where("id IN (?)", sub)
	}

	if q.Search != "" {
		term := "%" + q.Search + "%"
		tx = tx.Where("title LIKE ? OR url LIKE ? OR description LIKE ?", term, term, term)
	}

	return tx
}

// List runs the query engine: folder scope resolution, one count and
// one page fetch from the same predicate, pinned bookmarks first, then
// the requested ordering within each group.
func List(db *gorm.DB, q Query) (*Result, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}

	var folderIDs []string
	if q.FolderID != "" && q.FolderID != UnfiledScope {
		if q.IncludeSubfolders {
			ids, err := folders.DescendantIDs(db, q.FolderID)
			if err != nil {
				return nil, err
			}
			folderIDs = ids
		} else {
			folderIDs = []string{q.FolderID}
		}
	}

	var total int64
	if err := applyFilters(db, db.Model(&models.Bookmark{}), q, folderIDs).Count(&total).Error; err != nil {
		return nil, err
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "updated_at"
	}
	direction := "DESC"
	if q.SortOrder == "asc" {
		direction = "ASC"
	}

	var rows []models.Bookmark
	err := applyFilters(db, db.Model(&models.Bookmark{}), q, folderIDs).
		Preload("Tags").
		Preload("Folder").
		Order("pinned DESC").
		Order(column + " " + direction).
		Limit(q.PerPage).
		Offset((q.Page - 1) * q.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]BookmarkView, len(rows))
	for i, bookmark := range rows {
		views[i] = toView(bookmark)
	}

	return &Result{
		Bookmarks:  views,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}, nil
}

func toView(bookmark models.Bookmark) BookmarkView {
	view := BookmarkView{
		ID:          bookmark.ID,
		Title:       bookmark.Title,
		URL:         bookmark.URL,
		Description: bookmark.Description,
		FolderID:    bookmark.FolderID,
		FaviconURL:  bookmark.FaviconURL,
		Pinned:      bookmark.Pinned,
		CreatedAt:   bookmark.CreatedAt,
		UpdatedAt:   bookmark.UpdatedAt,
		Tags:        make([]TagRef, len(bookmark.Tags)),
	}
	for i, tag := range bookmark.Tags {
		view.Tags[i] = TagRef{ID: tag.ID, Name: tag.Name}
	}
	if bookmark.Folder != nil {
		view.FolderName = bookmark.Folder.Name
	}
	return view
}

// Get returns a single annotated bookmark by id.
func Get(db *gorm.DB, id string) (*BookmarkView, error) {
	var bookmark models.Bookmark
	if err := db.Preload("Tags").Preload("Folder").First(&bookmark, "id = ?", id).Error; err != nil {
		return nil, err
	}
	view := toView(bookmark)
	return &view, nil
}

func tagsByID(db *gorm.DB, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	if err := db.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create stores a new bookmark with its tag associations in one
// transaction. Unknown tag ids are dropped rather than failing the
// whole create.
func Create(db *gorm.DB, f Fields) (*models.Bookmark, error) {
	bookmark := models.Bookmark{
		Title:       f.Title,
		URL:         f.URL,
		Description: f.Description,
		FolderID:    f.FolderID,
		FaviconURL:  f.Favicon,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bookmark).Error; err != nil {
			return err
		}
		tags, err := tagsByID(tx, f.TagIDs)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		return tx.Model(&bookmark).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}
	return &bookmark, nil
}

// Update fully replaces a bookmark's fields and tag set. The old and
// new tag sets are swapped inside one transaction so a failure never
// leaves a partial mix.
func Update(db *gorm.DB, id string, f Fields) (*models.Bookmark, error) {
	var bookmark models.Bookmark
	if err := db.First(&bookmark, "id = ?", id).Error; err != nil {
		return nil, err
	}

	bookmark.Title = f.Title
	bookmark.URL = f.URL
	bookmark.Description = f.Description
	bookmark.FolderID = f.FolderID
	if f.Favicon != "" {
		bookmark.FaviconURL = f.Favicon
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&bookmark).Error; err != nil {
			return err
		}
		tags, err := tagsByID(tx, f.TagIDs)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return tx.Model(&bookmark).Association("Tags").Clear()
		}
		return tx.Model(&bookmark).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}
	return &bookmark, nil
}

// Delete removes a bookmark and its tag associations.
func Delete(db *gorm.DB, id string) error {
	var bookmark models.Bookmark
	if err := db.First(&bookmark, "id = ?", id).Error; err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&bookmark).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&bookmark).Error
	})
}

// TogglePin flips the pinned flag and returns the new value.
func TogglePin(db *gorm.DB, id string) (bool, error) {
	var bookmark models.Bookmark
	if err := db.First(&bookmark, "id = ?", id).Error; err != nil {
		return false, err
	}
	newValue := !bookmark.Pinned
	if err := db.Model(&bookmark).Update("pinned", newValue).Error; err != nil {
		return false, err
	}
	return newValue, nil
}
