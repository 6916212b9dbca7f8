package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mcpd/internal/shared/logger"
)

// FileStore implements DocumentStore on a single JSON file. It keeps the
// whole data set in memory and rewrites the file on every mutation, which
// is plenty for development and tests.
type FileStore struct {
	path        string
	mu          sync.RWMutex
	collections map[string]map[string]*Document
	log         zerolog.Logger
}

var _ DocumentStore = (*FileStore)(nil)

// OpenFileStore loads the file at path. A missing file starts an empty
// store rather than failing.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:        path,
		collections: make(map[string]map[string]*Document),
		log:         logger.WithComponent("filestore"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.log.Info().Str("path", path).Msg("store file not found, starting empty")
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(data, &fs.collections); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	return fs, nil
}

func (fs *FileStore) Name() string { return "database" }

// persist writes the full data set. Callers hold fs.mu.
func (fs *FileStore) persist() error {
	data, err := json.MarshalIndent(fs.collections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

func (fs *FileStore) collection(name string) map[string]*Document {
	coll, ok := fs.collections[name]
	if !ok {
		coll = make(map[string]*Document)
		fs.collections[name] = coll
	}
	return coll
}

func copyDocument(doc *Document) *Document {
	cp := *doc
	if doc.Tags != nil {
		cp.Tags = append([]string(nil), doc.Tags...)
	}
	if doc.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(doc.Metadata))
		for k, v := range doc.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// CreateDocument inserts doc, assigning an id and timestamps.
func (fs *FileStore) CreateDocument(ctx context.Context, collection string, doc *Document) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	coll := fs.collection(collection)
	if _, exists := coll[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	doc.Version = 1

	coll[doc.ID] = copyDocument(doc)
	return fs.persist()
}

// GetDocument retrieves a copy of the document by id.
func (fs *FileStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	doc, ok := fs.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

// UpdateDocument rewrites the mutable fields and bumps the version,
// mirroring what the Mongo driver updates.
func (fs *FileStore) UpdateDocument(ctx context.Context, collection string, doc *Document) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored, ok := fs.collections[collection][doc.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = doc.Title
	stored.Content = doc.Content
	stored.Tags = append([]string(nil), doc.Tags...)
	if doc.Metadata != nil {
		stored.Metadata = make(map[string]interface{}, len(doc.Metadata))
		for k, v := range doc.Metadata {
			stored.Metadata[k] = v
		}
	} else {
		stored.Metadata = nil
	}
	stored.UpdatedAt = time.Now()
	stored.Version++

	doc.UpdatedAt = stored.UpdatedAt
	doc.Version = stored.Version
	return fs.persist()
}

// DeleteDocument removes a document by id.
func (fs *FileStore) DeleteDocument(ctx context.Context, collection, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	coll := fs.collections[collection]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return fs.persist()
}

// QueryDocuments filters, sorts and pages the collection in memory.
func (fs *FileStore) QueryDocuments(ctx context.Context, query Query) ([]*Document, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var docs []*Document
	for _, doc := range fs.collections[query.Collection] {
		if matchFilter(doc, query.Filter) {
			docs = append(docs, copyDocument(doc))
		}
	}

	sortDocuments(docs, query.Sort)

	if query.Skip > 0 {
		if query.Skip >= len(docs) {
			return nil, nil
		}
		docs = docs[query.Skip:]
	}
	if query.Limit > 0 && len(docs) > query.Limit {
		docs = docs[:query.Limit]
	}
	return docs, nil
}

// SearchDocuments is a naive case-insensitive substring search over title
// and content, newest first.
func (fs *FileStore) SearchDocuments(ctx context.Context, collection, searchText string, limit int) ([]*Document, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	needle := strings.ToLower(searchText)
	var docs []*Document
	for _, doc := range fs.collections[collection] {
		if strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Content), needle) {
			docs = append(docs, copyDocument(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// CountDocuments counts documents matching the filter.
func (fs *FileStore) CountDocuments(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var count int64
	for _, doc := range fs.collections[collection] {
		if matchFilter(doc, filter) {
			count++
		}
	}
	return count, nil
}

// HealthCheck always succeeds once the store is open; the in-memory copy
// is authoritative.
func (fs *FileStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close writes the final state.
func (fs *FileStore) Close(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.persist()
}

// matchFilter supports equality on the well-known fields, membership for
// tags, and falls back to metadata keys.
func matchFilter(doc *Document, filter map[string]interface{}) bool {
	for key, want := range filter {
		switch key {
		case "_id", "id":
			if doc.ID != fmt.Sprintf("%v", want) {
				return false
			}
		case "title":
			if doc.Title != fmt.Sprintf("%v", want) {
				return false
			}
		case "category":
			if doc.Category != fmt.Sprintf("%v", want) {
				return false
			}
		case "tags":
			wanted := fmt.Sprintf("%v", want)
			found := false
			for _, tag := range doc.Tags {
				if tag == wanted {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			got, ok := doc.Metadata[key]
			if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				return false
			}
		}
	}
	return true
}

// sortDocuments understands the same {field: 1|-1} shape the Mongo driver
// takes. Unknown fields fall back to created_at descending.
func sortDocuments(docs []*Document, sortSpec map[string]interface{}) {
	field := "created_at"
	descending := true
	for key, dir := range sortSpec {
		field = key
		if n, ok := toSortDirection(dir); ok {
			descending = n < 0
		}
		break
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if descending {
			a, b = b, a
		}
		switch field {
		case "title":
			return a.Title < b.Title
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

func toSortDirection(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
