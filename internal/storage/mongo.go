package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mcpd/internal/shared/types"
)

// MongoStore implements DocumentStore on a MongoDB database.
type MongoStore struct {
	client       *mongo.Client
	database     *mongo.Database
	queryTimeout time.Duration
	cacheTTL     time.Duration
}

var _ DocumentStore = (*MongoStore)(nil)

// NewMongoStore connects, pings and prepares the indexes. cacheTTL drives
// the expiry index on the search_cache collection.
func NewMongoStore(cfg types.DatabaseConf, cacheTTL time.Duration) (*MongoStore, error) {
	connectTimeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	queryTimeout := time.Duration(cfg.QueryTimeout) * time.Second
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:       client,
		database:     client.Database(cfg.Name),
		queryTimeout: queryTimeout,
		cacheTTL:     cacheTTL,
	}
	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (m *MongoStore) Name() string { return "database" }

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// CreateDocument inserts doc, assigning an id and timestamps.
func (m *MongoStore) CreateDocument(ctx context.Context, collection string, doc *Document) error {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	if doc.ID == "" {
		doc.ID = bson.NewObjectID().Hex()
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	doc.Version = 1

	if _, err := m.database.Collection(collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (m *MongoStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	var doc Document
	err := m.database.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// UpdateDocument rewrites the mutable fields of an existing document and
// bumps its version.
func (m *MongoStore) UpdateDocument(ctx context.Context, collection string, doc *Document) error {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	doc.UpdatedAt = time.Now()
	doc.Version++

	update := bson.M{
		"$set": bson.M{
			"title":      doc.Title,
			"content":    doc.Content,
			"tags":       doc.Tags,
			"metadata":   doc.Metadata,
			"updated_at": doc.UpdatedAt,
			"version":    doc.Version,
		},
	}
	result, err := m.database.Collection(collection).UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document by id.
func (m *MongoStore) DeleteDocument(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	result, err := m.database.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryDocuments runs a structured find.
func (m *MongoStore) QueryDocuments(ctx context.Context, query Query) ([]*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	findOptions := options.Find()
	if query.Limit > 0 {
		findOptions.SetLimit(int64(query.Limit))
	}
	if query.Skip > 0 {
		findOptions.SetSkip(int64(query.Skip))
	}
	if len(query.Sort) > 0 {
		findOptions.SetSort(query.Sort)
	}

	filter := bson.M{}
	if query.Filter != nil {
		filter = query.Filter
	}

	cursor, err := m.database.Collection(query.Collection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer cursor.Close(ctx)

	return m.decodeCursor(ctx, cursor)
}

// SearchDocuments runs a $text search sorted by relevance score.
func (m *MongoStore) SearchDocuments(ctx context.Context, collection, searchText string, limit int) ([]*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	filter := bson.M{
		"$text": bson.M{
			"$search": searchText,
		},
	}
	findOptions := options.Find()
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	findOptions.SetSort(bson.M{"score": bson.M{"$meta": "textScore"}})

	cursor, err := m.database.Collection(collection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer cursor.Close(ctx)

	return m.decodeCursor(ctx, cursor)
}

// CountDocuments counts documents matching the filter.
func (m *MongoStore) CountDocuments(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	if filter == nil {
		filter = bson.M{}
	}
	count, err := m.database.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// HealthCheck pings with a short deadline.
func (m *MongoStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// createIndexes prepares the text, sort and TTL indexes the tools rely on.
func (m *MongoStore) createIndexes(ctx context.Context) error {
	for _, collName := range []string{"documents", "search_cache"} {
		coll := m.database.Collection(collName)

		indexes := []mongo.IndexModel{
			{Keys: bson.M{"title": "text", "content": "text"}},
			{Keys: bson.M{"created_at": -1}},
			{Keys: bson.M{"updated_at": -1}},
			{Keys: bson.M{"tags": 1}},
		}
		if collName == "search_cache" {
			indexes = append(indexes, mongo.IndexModel{
				Keys:    bson.M{"timestamp": 1},
				Options: options.Index().SetExpireAfterSeconds(int32(m.cacheTTL.Seconds())),
			})
		}

		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collName, err)
		}
	}
	return nil
}

// decodeCursor drains a cursor into documents, tolerating legacy records
// whose _id is a raw ObjectID rather than a string.
func (m *MongoStore) decodeCursor(ctx context.Context, cursor *mongo.Cursor) ([]*Document, error) {
	var documents []*Document
	for cursor.Next(ctx) {
		var rawDoc bson.M
		if err := cursor.Decode(&rawDoc); err != nil {
			return nil, fmt.Errorf("failed to decode raw document: %w", err)
		}
		documents = append(documents, convertToDocument(rawDoc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return documents, nil
}

func convertToDocument(rawDoc bson.M) *Document {
	doc := &Document{}

	if id, ok := rawDoc["_id"]; ok {
		switch v := id.(type) {
		case bson.ObjectID:
			doc.ID = v.Hex()
		case string:
			doc.ID = v
		default:
			doc.ID = fmt.Sprintf("%v", v)
		}
	}
	if title, ok := rawDoc["title"].(string); ok {
		doc.Title = title
	}
	if content, ok := rawDoc["content"].(string); ok {
		doc.Content = content
	}
	if category, ok := rawDoc["category"].(string); ok {
		doc.Category = category
	}
	if tags, ok := rawDoc["tags"].(bson.A); ok {
		for _, tag := range tags {
			if tagStr, ok := tag.(string); ok {
				doc.Tags = append(doc.Tags, tagStr)
			}
		}
	}
	if metadata, ok := rawDoc["metadata"].(bson.M); ok {
		doc.Metadata = make(map[string]interface{}, len(metadata))
		for k, v := range metadata {
			doc.Metadata[k] = v
		}
	}
	if createdAt, ok := rawDoc["created_at"].(bson.DateTime); ok {
		doc.CreatedAt = createdAt.Time()
	}
	if updatedAt, ok := rawDoc["updated_at"].(bson.DateTime); ok {
		doc.UpdatedAt = updatedAt.Time()
	}
	if version, ok := rawDoc["version"].(int32); ok {
		doc.Version = int(version)
	}
	return doc
}
