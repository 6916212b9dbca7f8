// Package storage provides the document store behind the db_* tools. Two
// drivers implement the same interface: MongoDB for real deployments and a
// single JSON file for development and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcpd/internal/shared/types"
)

// ErrNotFound is returned by lookups and mutations that name a missing
// document.
var ErrNotFound = errors.New("document not found")

// Document is the stored entity.
type Document struct {
	ID        string                 `json:"id" bson:"_id,omitempty"`
	Title     string                 `json:"title" bson:"title"`
	Content   string                 `json:"content" bson:"content"`
	Category  string                 `json:"category,omitempty" bson:"category,omitempty"`
	Tags      []string               `json:"tags,omitempty" bson:"tags,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
	Version   int                    `json:"version" bson:"version"`
}

// Query describes a structured document query.
type Query struct {
	Collection string                 `json:"collection"`
	Filter     map[string]interface{} `json:"filter,omitempty"`
	Sort       map[string]interface{} `json:"sort,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Skip       int                    `json:"skip,omitempty"`
}

// DocumentStore is the contract the database tool provider programs
// against. Implementations also satisfy types.Backend for health
// monitoring.
type DocumentStore interface {
	Name() string
	CreateDocument(ctx context.Context, collection string, doc *Document) error
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	UpdateDocument(ctx context.Context, collection string, doc *Document) error
	DeleteDocument(ctx context.Context, collection, id string) error
	QueryDocuments(ctx context.Context, query Query) ([]*Document, error)
	SearchDocuments(ctx context.Context, collection, searchText string, limit int) ([]*Document, error)
	CountDocuments(ctx context.Context, collection string, filter map[string]interface{}) (int64, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

var _ types.Backend = (DocumentStore)(nil)

// Open selects the driver from the [database] section.
func Open(cfg *types.Config) (DocumentStore, error) {
	switch cfg.DatabaseConf.Driver {
	case "file":
		return OpenFileStore(cfg.DatabaseConf.File)
	case "", "mongo":
		return NewMongoStore(cfg.DatabaseConf, time.Duration(cfg.SearchConf.CacheTTL)*time.Second)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.DatabaseConf.Driver)
	}
}
