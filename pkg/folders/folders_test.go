package folders

import (
	"bytes"
	"encoding/json"
	"errors"
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

func createTestFolder(t *testing.T, db *gorm.DB, name string, parentID *string) models.Folder {
	folder := models.Folder{Name: name, ParentID: parentID}
	if err := db.Create(&folder).Error; err != nil {
		t.Fatalf("Failed to create test folder: %v", err)
	}
	return folder
}

func TestDescendantIDsContainsSelf(t *testing.T) {
	db := setupTestDB(t)
	folder := createTestFolder(t, db, "Work", nil)

	ids, err := DescendantIDs(db, folder.ID)
	if err != nil {
		t.Fatalf("DescendantIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != folder.ID {
		t.Errorf("Expected just the folder's own ID, got %v", ids)
	}
}

func TestDescendantIDsCoversSubtree(t *testing.T) {
	db := setupTestDB(t)
	root := createTestFolder(t, db, "Root", nil)
	child := createTestFolder(t, db, "Child", &root.ID)
	grandchild := createTestFolder(t, db, "Grandchild", &child.ID)
	createTestFolder(t, db, "Unrelated", nil)

	ids, err := DescendantIDs(db, root.ID)
	if err != nil {
		t.Fatalf("DescendantIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 IDs, got %d: %v", len(ids), ids)
	}

	set := make(map[string]bool)
	for _, id := range ids {
		set[id] = true
	}
	for _, want := range []string{root.ID, child.ID, grandchild.ID} {
		if !set[want] {
			t.Errorf("Expected %s in descendant set", want)
		}
	}

	// The root's set must be a superset of each child's set
	childIDs, _ := DescendantIDs(db, child.ID)
	for _, id := range childIDs {
		if !set[id] {
			t.Errorf("Expected child descendant %s in root's set", id)
		}
	}
}

func TestDescendantIDsTerminatesOnCycle(t *testing.T) {
	db := setupTestDB(t)
	a := createTestFolder(t, db, "A", nil)
	b := createTestFolder(t, db, "B", &a.ID)

	// Corrupt the data behind the engine's back to form a cycle
	if err := db.Exec("UPDATE folders SET parent_id = ? WHERE id = ?", b.ID, a.ID).Error; err != nil {
		t.Fatalf("Failed to corrupt folders: %v", err)
	}

	ids, err := DescendantIDs(db, a.ID)
	if err != nil {
		t.Fatalf("DescendantIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 IDs from cyclic data, got %v", ids)
	}
}

func TestListAllCounts(t *testing.T) {
	db := setupTestDB(t)
	root := createTestFolder(t, db, "Root", nil)
	createTestFolder(t, db, "Child", &root.ID)
	db.Create(&models.Bookmark{Title: "A", URL: "https://a.com", FolderID: &root.ID})
	db.Create(&models.Bookmark{Title: "B", URL: "https://b.com", FolderID: &root.ID})

	folders, err := ListAll(db)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(folders))
	}

	for _, f := range folders {
		if f.ID == root.ID {
			if f.BookmarkCount != 2 {
				t.Errorf("Expected bookmark count 2, got %d", f.BookmarkCount)
			}
			if f.SubfolderCount != 1 {
				t.Errorf("Expected subfolder count 1, got %d", f.SubfolderCount)
			}
		}
	}
}

func TestBuildTreeNestsAndSorts(t *testing.T) {
	db := setupTestDB(t)
	work := createTestFolder(t, db, "Work", nil)
	createTestFolder(t, db, "📚 Reading", nil)
	createTestFolder(t, db, "!archive", nil)
	createTestFolder(t, db, "Projects", &work.ID)

	tree, err := BuildTree(db)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	if len(tree) != 3 {
		t.Fatalf("Expected 3 root folders, got %d", len(tree))
	}

	// Sorted by name with emoji/punctuation stripped: archive, Reading, Work
	wantOrder := []string{"!archive", "📚 Reading", "Work"}
	for i, want := range wantOrder {
		if tree[i].Name != want {
			t.Errorf("Expected root %d to be %q, got %q", i, want, tree[i].Name)
		}
	}

	workNode := tree[2]
	if len(workNode.Children) != 1 || workNode.Children[0].Name != "Projects" {
		t.Errorf("Expected Work to contain Projects, got %+v", workNode.Children)
	}
}

func TestBuildTreeDanglingParentBecomesRoot(t *testing.T) {
	db := setupTestDB(t)
	missing := "no-such-folder"
	createTestFolder(t, db, "Orphan", &missing)

	tree, err := BuildTree(db)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	if len(tree) != 1 || tree[0].Name != "Orphan" {
		t.Errorf("Expected orphaned folder at root, got %+v", tree)
	}
}

func TestGetWithAncestry(t *testing.T) {
	db := setupTestDB(t)
	root := createTestFolder(t, db, "Root", nil)
	mid := createTestFolder(t, db, "Mid", &root.ID)
	leaf := createTestFolder(t, db, "Leaf", &mid.ID)

	result, err := GetWithAncestry(db, leaf.ID)
	if err != nil {
		t.Fatalf("GetWithAncestry failed: %v", err)
	}
	if result.ID != leaf.ID {
		t.Errorf("Expected folder %s, got %s", leaf.ID, result.ID)
	}
	if len(result.ParentChain) != 2 {
		t.Fatalf("Expected 2 ancestors, got %d", len(result.ParentChain))
	}
	if result.ParentChain[0].ID != root.ID || result.ParentChain[1].ID != mid.ID {
		t.Error("Expected parent chain ordered from root to immediate parent")
	}
}

func TestGetWithAncestryDanglingParentTruncates(t *testing.T) {
	db := setupTestDB(t)
	missing := "gone"
	folder := createTestFolder(t, db, "Stray", &missing)

	result, err := GetWithAncestry(db, folder.ID)
	if err != nil {
		t.Fatalf("GetWithAncestry failed: %v", err)
	}
	if len(result.ParentChain) != 0 {
		t.Errorf("Expected empty parent chain, got %d entries", len(result.ParentChain))
	}
}

func TestUpdateRejectsCyclicMove(t *testing.T) {
	db := setupTestDB(t)
	work := createTestFolder(t, db, "Work", nil)
	projects := createTestFolder(t, db, "Projects", nil)

	// First move is legal
	if _, err := Update(db, work.ID, "Work", &projects.ID); err != nil {
		t.Fatalf("Expected first move to succeed: %v", err)
	}

	// Second move would close the loop
	_, err := Update(db, projects.ID, "Projects", &work.ID)
	if !errors.Is(err, ErrCyclicMove) {
		t.Errorf("Expected ErrCyclicMove, got %v", err)
	}
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	db := setupTestDB(t)
	folder := createTestFolder(t, db, "Loop", nil)

	_, err := Update(db, folder.ID, "Loop", &folder.ID)
	if !errors.Is(err, ErrCyclicMove) {
		t.Errorf("Expected ErrCyclicMove for self-parent, got %v", err)
	}
}

func TestUpdateMovesToRoot(t *testing.T) {
	db := setupTestDB(t)
	parent := createTestFolder(t, db, "Parent", nil)
	child := createTestFolder(t, db, "Child", &parent.ID)

	updated, err := Update(db, child.ID, "Child", nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ParentID != nil {
		t.Errorf("Expected folder moved to root, got parent %v", *updated.ParentID)
	}
}

func TestDeleteDetachesBookmarksAndPromotesChildren(t *testing.T) {
	db := setupTestDB(t)
	grandparent := createTestFolder(t, db, "Grandparent", nil)
	parent := createTestFolder(t, db, "Parent", &grandparent.ID)
	child := createTestFolder(t, db, "Child", &parent.ID)
	bookmark := models.Bookmark{Title: "A", URL: "https://a.com", FolderID: &parent.ID}
	db.Create(&bookmark)

	if err := Delete(db, parent.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var loadedBookmark models.Bookmark
	db.First(&loadedBookmark, "id = ?", bookmark.ID)
	if loadedBookmark.FolderID != nil {
		t.Error("Expected bookmark to be detached from deleted folder")
	}

	var loadedChild models.Folder
	db.First(&loadedChild, "id = ?", child.ID)
	if loadedChild.ParentID == nil || *loadedChild.ParentID != grandparent.ID {
		t.Error("Expected child folder promoted to the deleted folder's parent")
	}

	var count int64
	db.Model(&models.Folder{}).Where("id = ?", parent.ID).Count(&count)
	if count != 0 {
		t.Error("Expected folder row to be gone")
	}
}

func TestCreateFolderEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	body := CreateFolderRequest{Name: "Work"}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/folders", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var folder models.Folder
	json.Unmarshal(resp.Body.Bytes(), &folder)
	if folder.ID == "" {
		t.Error("Expected folder ID in response")
	}
	if folder.Name != "Work" {
		t.Errorf("Expected name Work, got %s", folder.Name)
	}
}

func TestCreateFolderRequiresName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("POST", "/api/folders", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestGetFolderEndpointNotFound(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/api/folders/does-not-exist", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestUpdateFolderEndpointCyclicMove(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	parent := createTestFolder(t, db, "Parent", nil)
	child := createTestFolder(t, db, "Child", &parent.ID)

	body := UpdateFolderRequest{Name: "Parent", ParentID: &child.ID}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("PUT", "/api/folders/"+parent.ID, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestFolderTreeEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	root := createTestFolder(t, db, "Root", nil)
	createTestFolder(t, db, "Child", &root.ID)

	req, _ := http.NewRequest("GET", "/api/folders/tree", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var tree []struct {
		Name     string `json:"name"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	json.Unmarshal(resp.Body.Bytes(), &tree)
	if len(tree) != 1 || tree[0].Name != "Root" {
		t.Fatalf("Expected single root folder, got %s", resp.Body.String())
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Child" {
		t.Error("Expected nested child folder in tree response")
	}
}

func TestDeleteFolderEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	folder := createTestFolder(t, db, "Doomed", nil)

	req, _ := http.NewRequest("DELETE", "/api/folders/"+folder.ID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}

	req, _ = http.NewRequest("DELETE", "/api/folders/"+folder.ID, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", resp.Code)
	}
}
