package folders

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"gorm.io/gorm"
)

// ErrCyclicMove is returned when a folder move would make the folder
// its own ancestor.
var ErrCyclicMove = errors.New("cannot move folder into its own subfolder")

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// sortKey strips every non-alphanumeric character so leading emoji and
// punctuation do not influence folder ordering.
func sortKey(name string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(name, ""))
}

// FolderInfo is a folder annotated with usage counts.
type FolderInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ParentID       *string   `json:"parent_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	BookmarkCount  int       `json:"bookmark_count"`
	SubfolderCount int       `json:"subfolder_count"`
}

// TreeNode is a folder with its children nested recursively.
type TreeNode struct {
	FolderInfo
	Children []*TreeNode `json:"children"`
}

// FolderWithAncestry is a folder plus its ancestor chain, ordered from
// the topmost root down to the immediate parent.
type FolderWithAncestry struct {
	models.Folder
	ParentChain []models.Folder `json:"parent_chain"`
}

// ListAll returns every folder with a direct-bookmark count and an
// immediate-subfolder count. No recursion happens here.
func ListAll(db *gorm.DB) ([]FolderInfo, error) {
	var results []FolderInfo
	err := db.Table("folders").
		Select("folders.id, folders.name, folders.parent_id, folders.created_at, folders.updated_at, COUNT(DISTINCT bookmarks.id) as bookmark_count, (SELECT COUNT(*) FROM folders children WHERE children.parent_id = folders.id) as subfolder_count").
		Joins("LEFT JOIN bookmarks ON bookmarks.folder_id = folders.id").
		Group("folders.id").
		Order("folders.parent_id, folders.name").
		Find(&results).Error
	return results, err
}

// BuildTree returns the root folders with all descendants nested in
// Children, grouped by parent reference in a single pass. A folder
// whose parent id does not resolve is shown at the root rather than
// dropped. Every level is sorted by name with non-alphanumeric
// characters ignored, case-insensitively.
func BuildTree(db *gorm.DB) ([]*TreeNode, error) {
	folders, err := ListAll(db)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*TreeNode, len(folders))
	for i := range folders {
		nodes[folders[i].ID] = &TreeNode{FolderInfo: folders[i], Children: []*TreeNode{}}
	}

	roots := []*TreeNode{}
	for i := range folders {
		node := nodes[folders[i].ID]
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortTree(roots)
	return roots, nil
}

func sortTree(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return sortKey(nodes[i].Name) < sortKey(nodes[j].Name)
	})
	for _, node := range nodes {
		if len(node.Children) > 0 {
			sortTree(node.Children)
		}
	}
}

// Get returns a single folder by id.
func Get(db *gorm.DB, id string) (*models.Folder, error) {
	var folder models.Folder
	if err := db.First(&folder, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetWithAncestry returns the folder plus its parent chain, resolved by
// walking parent references until a root is reached. A dangling parent
// reference truncates the chain silently; a visited set guards against
// cycles in stored data.
func GetWithAncestry(db *gorm.DB, id string) (*FolderWithAncestry, error) {
	var folder models.Folder
	if err := db.First(&folder, "id = ?", id).Error; err != nil {
		return nil, err
	}

	chain := []models.Folder{}
	visited := map[string]bool{folder.ID: true}
	parentID := folder.ParentID
	for parentID != nil && !visited[*parentID] {
		visited[*parentID] = true
		var parent models.Folder
		if err := db.First(&parent, "id = ?", *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		chain = append([]models.Folder{parent}, chain...)
		parentID = parent.ParentID
	}

	return &FolderWithAncestry{Folder: folder, ParentChain: chain}, nil
}

// DescendantIDs returns the folder's own id plus the ids of all its
// descendants, walked with an explicit stack and a visited set so a
// corrupt parent cycle in stored data cannot loop forever. The id is
// included even when no such folder exists.
func DescendantIDs(db *gorm.DB, id string) ([]string, error) {
	type folderRow struct {
		ID       string
		ParentID *string
	}
	var rows []folderRow
	if err := db.Model(&models.Folder{}).Select("id, parent_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	children := make(map[string][]string, len(rows))
	for _, row := range rows {
		if row.ParentID != nil {
			children[*row.ParentID] = append(children[*row.ParentID], row.ID)
		}
	}

	ids := []string{}
	visited := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		ids = append(ids, current)
		stack = append(stack, children[current]...)
	}
	return ids, nil
}

// Create adds a new folder. Parent existence is not validated; read
// paths tolerate dangling references.
func Create(db *gorm.DB, name string, parentID *string) (*models.Folder, error) {
	folder := models.Folder{Name: name, ParentID: parentID}
	if err := db.Create(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// Update renames and re-parents a folder. A nil parentID moves it to
// the root level. Moving a folder under itself or any of its
// descendants fails with ErrCyclicMove.
func Update(db *gorm.DB, id, name string, parentID *string) (*models.Folder, error) {
	var folder models.Folder
	if err := db.First(&folder, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if parentID != nil {
		descendants, err := DescendantIDs(db, id)
		if err != nil {
			return nil, err
		}
		for _, descendantID := range descendants {
			if descendantID == *parentID {
				return nil, ErrCyclicMove
			}
		}
	}

	folder.Name = name
	folder.ParentID = parentID
	if err := db.Save(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// Delete removes a folder. In the same transaction, bookmarks directly
// inside it are detached (folder reference cleared) and immediate
// subfolders are promoted to the deleted folder's parent, so no row is
// left pointing at a missing folder.
func Delete(db *gorm.DB, id string) error {
	var folder models.Folder
	if err := db.First(&folder, "id = ?", id).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Bookmark{}).Where("folder_id = ?", id).Update("folder_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Folder{}).Where("parent_id = ?", id).Update("parent_id", folder.ParentID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Folder{}, "id = ?", id).Error
	})
}
