package tags

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	api := r.Group("/api")
	handler.RegisterRoutes(api)
	return r
}

func TestFindOrCreate(t *testing.T) {
	db := setupTestDB(t)

	tag, created, err := FindOrCreate(db, "golang")
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the tag")
	}
	if tag.ID == "" {
		t.Error("Expected tag ID to be set")
	}

	again, created, err := FindOrCreate(db, "golang")
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}
	if created {
		t.Error("Expected second call to reuse the tag")
	}
	if again.ID != tag.ID {
		t.Errorf("Expected same tag ID %s, got %s", tag.ID, again.ID)
	}
}

func TestListWithCounts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	used := models.Tag{Name: "used"}
	db.Create(&used)
	db.Create(&models.Tag{Name: "empty"})
	db.Create(&models.Bookmark{Title: "B", URL: "https://b.com", Tags: []models.Tag{used}})

	req, _ := http.NewRequest("GET", "/api/tags", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var results []TagInfo
	json.Unmarshal(resp.Body.Bytes(), &results)
	if len(results) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(results))
	}

	// Ordered by name: empty, used
	if results[0].Name != "empty" || results[0].BookmarkCount != 0 {
		t.Errorf("Expected unused tag with zero count first, got %+v", results[0])
	}
	if results[1].Name != "used" || results[1].BookmarkCount != 1 {
		t.Errorf("Expected used tag with count 1, got %+v", results[1])
	}
}

func TestCreateTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	body := CreateTagRequest{Name: "reading"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/tags", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var tag models.Tag
	json.Unmarshal(resp.Body.Bytes(), &tag)
	if tag.ID == "" || tag.Name != "reading" {
		t.Errorf("Expected created tag in response, got %+v", tag)
	}
}

func TestCreateDuplicateTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	db.Create(&models.Tag{Name: "reading"})

	body := CreateTagRequest{Name: "reading"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/tags", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestUpdateTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tag := models.Tag{Name: "old"}
	db.Create(&tag)

	body := UpdateTagRequest{Name: "new"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/tags/"+tag.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var loaded models.Tag
	db.First(&loaded, "id = ?", tag.ID)
	if loaded.Name != "new" {
		t.Errorf("Expected renamed tag, got %s", loaded.Name)
	}
}

func TestUpdateTagToExistingName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	db.Create(&models.Tag{Name: "taken"})
	tag := models.Tag{Name: "mine"}
	db.Create(&tag)

	body := UpdateTagRequest{Name: "taken"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/tags/"+tag.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestDeleteTagClearsAssociations(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tag := models.Tag{Name: "doomed"}
	db.Create(&tag)
	bookmark := models.Bookmark{Title: "B", URL: "https://b.com", Tags: []models.Tag{tag}}
	db.Create(&bookmark)

	req, _ := http.NewRequest("DELETE", "/api/tags/"+tag.ID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var joinCount int64
	db.Table("bookmark_tags").Where("tag_id = ?", tag.ID).Count(&joinCount)
	if joinCount != 0 {
		t.Errorf("Expected join rows removed, found %d", joinCount)
	}

	var bookmarkCount int64
	db.Model(&models.Bookmark{}).Count(&bookmarkCount)
	if bookmarkCount != 1 {
		t.Error("Expected bookmark to survive tag deletion")
	}
}

func TestDeleteMissingTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("DELETE", "/api/tags/missing", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}
