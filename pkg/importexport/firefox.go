package importexport

import (
	"encoding/json"
	"strings"

	"github.com/Cyclenerd/bookmarks-manager/pkg/bookmarks"
	"github.com/Cyclenerd/bookmarks-manager/pkg/folders"
	"github.com/Cyclenerd/bookmarks-manager/pkg/models"
	"github.com/Cyclenerd/bookmarks-manager/pkg/tags"
	"gorm.io/gorm"
)

const (
	containerType = "text/x-moz-place-container"
	placeType     = "text/x-moz-place"

	descriptionAnno = "bookmarkProperties/description"

	rootGUID    = "root________"
	toolbarGUID = "toolbar_____"
)

// passThroughGUIDs are Firefox's built-in containers. Their children
// import into the current scope; no folder is created for the
// container itself.
var passThroughGUIDs = map[string]bool{
	"root________": true,
	"menu________": true,
	"unfiled_____": true,
	"mobile______": true,
	"toolbar_____": true,
}

// MalformedDocumentError reports an upload that does not parse as
// JSON. It carries the decoder's diagnostic.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return "invalid JSON format: " + e.Err.Error()
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// TagList holds a bookmark node's tag names. Firefox writes a
// comma-joined string; some exporters write a JSON array. Both forms
// unmarshal, and marshalling always produces the comma-joined string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		if joined == "" {
			*t = nil
			return nil
		}
		*t = strings.Split(joined, ",")
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*t = names
	return nil
}

func (t TagList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(t, ","))
}

// Anno is a Firefox bookmark annotation. Descriptions travel as an
// annotation named "bookmarkProperties/description".
type Anno struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PlaceNode is one node of the Firefox bookmark tree. Containers
// carry children; place leaves carry a URI.
type PlaceNode struct {
	GUID     string       `json:"guid,omitempty"`
	Title    string       `json:"title"`
	Type     string       `json:"type"`
	URI      string       `json:"uri,omitempty"`
	Annos    []Anno       `json:"annos,omitempty"`
	Tags     TagList      `json:"tags,omitempty"`
	Children []*PlaceNode `json:"children,omitempty"`
}

// Stats counts what an import created. Tags that already existed are
// reused and not counted.
type Stats struct {
	Bookmarks int `json:"bookmarks"`
	Folders   int `json:"folders"`
	Tags      int `json:"tags"`
}

// Fetcher caches a favicon for a page and returns its relative path,
// or "" when nothing could be fetched.
type Fetcher interface {
	FetchAndCache(pageURL string) string
}

// Parse decodes a Firefox bookmark JSON document. Malformed input
// yields a *MalformedDocumentError.
func Parse(data []byte) (*PlaceNode, error) {
	var root PlaceNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}
	return &root, nil
}

// Import walks a parsed Firefox tree depth-first and creates folders,
// bookmarks and tags. Containers become folders, except pass-through
// containers, whose children land in the current scope, and untitled
// containers, which are skipped with their whole subtree. A favicon
// is fetched per imported bookmark when a Fetcher is supplied.
func Import(db *gorm.DB, root *PlaceNode, favicons Fetcher) (*Stats, error) {
	stats := &Stats{}
	if root == nil {
		return stats, nil
	}
	if err := importNode(db, root, nil, favicons, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func importNode(db *gorm.DB, node *PlaceNode, parentID *string, favicons Fetcher, stats *Stats) error {
	switch node.Type {
	case containerType:
		if passThroughGUIDs[node.GUID] {
			return importChildren(db, node, parentID, favicons, stats)
		}
		if node.Title == "" {
			return nil
		}
		folder, err := folders.Create(db, node.Title, parentID)
		if err != nil {
			return err
		}
		stats.Folders++
		return importChildren(db, node, &folder.ID, favicons, stats)
	case placeType:
		return importPlace(db, node, parentID, favicons, stats)
	default:
		// Unrecognized node kinds create nothing, but whatever they
		// contain is still imported into the current scope.
		return importChildren(db, node, parentID, favicons, stats)
	}
}

func importChildren(db *gorm.DB, node *PlaceNode, parentID *string, favicons Fetcher, stats *Stats) error {
	for _, child := range node.Children {
		if err := importNode(db, child, parentID, favicons, stats); err != nil {
			return err
		}
	}
	return nil
}

func importPlace(db *gorm.DB, node *PlaceNode, parentID *string, favicons Fetcher, stats *Stats) error {
	if node.URI == "" {
		return nil
	}

	title := node.Title
	if title == "" {
		title = node.URI
	}

	description := ""
	for _, anno := range node.Annos {
		if anno.Name == descriptionAnno {
			description = anno.Value
			break
		}
	}

	tagIDs, err := resolveTags(db, node.Tags, stats)
	if err != nil {
		return err
	}

	favicon := ""
	if favicons != nil {
		favicon = favicons.FetchAndCache(node.URI)
	}

	if _, err := bookmarks.Create(db, bookmarks.Fields{
		URL:         node.URI,
		Title:       title,
		Description: description,
		FolderID:    parentID,
		TagIDs:      tagIDs,
		Favicon:     favicon,
	}); err != nil {
		return err
	}
	stats.Bookmarks++
	return nil
}

func resolveTags(db *gorm.DB, names TagList, stats *Stats) ([]string, error) {
	var ids []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tag, created, err := tags.FindOrCreate(db, name)
		if err != nil {
			return nil, err
		}
		if created {
			stats.Tags++
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// Export assembles the live store into a Firefox bookmark tree: a
// root container holding a single toolbar container, folder
// containers mirroring the hierarchy under it, and bookmarks nested
// in their folders. Unfiled bookmarks sit directly under the toolbar.
func Export(db *gorm.DB) (*PlaceNode, error) {
	var allFolders []models.Folder
	if err := db.Order("name").Find(&allFolders).Error; err != nil {
		return nil, err
	}

	// Index every folder before attaching children so read order does
	// not matter. A parent id that resolves to no known folder demotes
	// the child to a root.
	containers := make(map[string]*PlaceNode, len(allFolders))
	for i := range allFolders {
		containers[allFolders[i].ID] = &PlaceNode{
			GUID:  allFolders[i].ID,
			Title: allFolders[i].Name,
			Type:  containerType,
		}
	}

	var rootContainers []*PlaceNode
	for i := range allFolders {
		node := containers[allFolders[i].ID]
		parentID := allFolders[i].ParentID
		if parentID != nil {
			if parent, ok := containers[*parentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		rootContainers = append(rootContainers, node)
	}

	var allBookmarks []models.Bookmark
	if err := db.Preload("Tags").Order("created_at DESC").Find(&allBookmarks).Error; err != nil {
		return nil, err
	}

	var unfiled []*PlaceNode
	for i := range allBookmarks {
		leaf := exportLeaf(&allBookmarks[i])
		if allBookmarks[i].FolderID != nil {
			if parent, ok := containers[*allBookmarks[i].FolderID]; ok {
				parent.Children = append(parent.Children, leaf)
				continue
			}
		}
		unfiled = append(unfiled, leaf)
	}

	toolbar := &PlaceNode{
		GUID:     toolbarGUID,
		Title:    "Bookmarks Toolbar",
		Type:     containerType,
		Children: append(rootContainers, unfiled...),
	}

	return &PlaceNode{
		GUID:     rootGUID,
		Title:    "",
		Type:     containerType,
		Children: []*PlaceNode{toolbar},
	}, nil
}

func exportLeaf(bookmark *models.Bookmark) *PlaceNode {
	leaf := &PlaceNode{
		GUID:  bookmark.ID,
		Title: bookmark.Title,
		Type:  placeType,
		URI:   bookmark.URL,
	}

	if bookmark.Description != "" {
		leaf.Annos = []Anno{{Name: descriptionAnno, Value: bookmark.Description}}
	}

	if len(bookmark.Tags) > 0 {
		names := make([]string, len(bookmark.Tags))
		for i, tag := range bookmark.Tags {
			names[i] = tag.Name
		}
		leaf.Tags = TagList(names)
	}

	return leaf
}
