package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mcpd/internal/mcp"
	"mcpd/internal/storage"
)

// DatabaseProvider exposes document store operations as MCP tools. It
// works against the DocumentStore interface, so it serves both the
// MongoDB and the file backed driver.
type DatabaseProvider struct {
	store storage.DocumentStore
}

var _ Provider = (*DatabaseProvider)(nil)

func NewDatabaseProvider(store storage.DocumentStore) *DatabaseProvider {
	return &DatabaseProvider{store: store}
}

func (d *DatabaseProvider) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{
		{
			Name:        "db_create_document",
			Description: "Create a new document in the database",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Document title",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Document content",
					},
					"tags": map[string]interface{}{
						"type":        "array",
						"description": "Document tags",
						"items": map[string]interface{}{
							"type": "string",
						},
					},
					"metadata": map[string]interface{}{
						"type":        "object",
						"description": "Additional metadata",
					},
				},
				"required": []string{"collection", "title", "content"},
			},
		},
		{
			Name:        "db_get_document",
			Description: "Get a document by ID",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Document ID",
					},
				},
				"required": []string{"collection", "id"},
			},
		},
		{
			Name:        "db_update_document",
			Description: "Update an existing document",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Document ID",
					},
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Document title",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Document content",
					},
					"tags": map[string]interface{}{
						"type":        "array",
						"description": "Document tags",
						"items": map[string]interface{}{
							"type": "string",
						},
					},
					"metadata": map[string]interface{}{
						"type":        "object",
						"description": "Additional metadata",
					},
				},
				"required": []string{"collection", "id"},
			},
		},
		{
			Name:        "db_delete_document",
			Description: "Delete a document by ID",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Document ID",
					},
				},
				"required": []string{"collection", "id"},
			},
		},
		{
			Name:        "db_query_documents",
			Description: "Query documents in a collection",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"filter": map[string]interface{}{
						"type":        "object",
						"description": "Filter query",
					},
					"sort": map[string]interface{}{
						"type":        "object",
						"description": "Sort specification",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of documents to return",
						"minimum":     1,
						"maximum":     100,
					},
					"skip": map[string]interface{}{
						"type":        "integer",
						"description": "Number of documents to skip",
						"minimum":     0,
					},
				},
				"required": []string{"collection"},
			},
		},
		{
			Name:        "db_search_documents",
			Description: "Search documents using text search",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"search_text": map[string]interface{}{
						"type":        "string",
						"description": "Text to search for",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results",
						"minimum":     1,
						"maximum":     50,
					},
				},
				"required": []string{"collection", "search_text"},
			},
		},
		{
			Name:        "db_count_documents",
			Description: "Count documents matching a filter",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"collection": map[string]interface{}{
						"type":        "string",
						"description": "Collection name",
					},
					"filter": map[string]interface{}{
						"type":        "object",
						"description": "Filter query",
					},
				},
				"required": []string{"collection"},
			},
		},
		{
			Name:        "db_health_check",
			Description: "Check database health",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}, nil
}

func (d *DatabaseProvider) CallTool(ctx context.Context, params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	switch params.Name {
	case "db_create_document":
		return d.createDocument(ctx, params.Arguments)
	case "db_get_document":
		return d.getDocument(ctx, params.Arguments)
	case "db_update_document":
		return d.updateDocument(ctx, params.Arguments)
	case "db_delete_document":
		return d.deleteDocument(ctx, params.Arguments)
	case "db_query_documents":
		return d.queryDocuments(ctx, params.Arguments)
	case "db_search_documents":
		return d.searchDocuments(ctx, params.Arguments)
	case "db_count_documents":
		return d.countDocuments(ctx, params.Arguments)
	case "db_health_check":
		return d.healthCheck(ctx)
	default:
		return errorResponse(fmt.Sprintf("Unknown database tool: %s", params.Name)), nil
	}
}

func (d *DatabaseProvider) createDocument(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}
	title, ok := args["title"].(string)
	if !ok || title == "" {
		return errorResponse("Missing or invalid 'title' parameter"), nil
	}
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return errorResponse("Missing or invalid 'content' parameter"), nil
	}

	doc := &storage.Document{
		Title:   title,
		Content: content,
	}
	if tags := stringSlice(args["tags"]); tags != nil {
		doc.Tags = tags
	}
	if metadata, ok := args["metadata"].(map[string]interface{}); ok {
		doc.Metadata = metadata
	}

	if err := d.store.CreateDocument(ctx, collection, doc); err != nil {
		return errorResponse(fmt.Sprintf("Failed to create document: %v", err)), nil
	}

	return &mcp.ToolCallResult{
		Content: []mcp.Content{
			{
				Type: "text",
				Text: fmt.Sprintf("Document created successfully with ID: %s", doc.ID),
			},
			{
				Type: "text",
				Text: fmt.Sprintf("Document details:\n- Title: %s\n- Collection: %s\n- Created: %s",
					doc.Title, collection, doc.CreatedAt.Format(time.RFC3339)),
			},
		},
	}, nil
}

func (d *DatabaseProvider) getDocument(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return errorResponse("Missing or invalid 'id' parameter"), nil
	}

	doc, err := d.store.GetDocument(ctx, collection, id)
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to get document: %v", err)), nil
	}

	content := []mcp.Content{
		{
			Type: "text",
			Text: fmt.Sprintf("Document found:\n- ID: %s\n- Title: %s\n- Created: %s\n- Updated: %s\n- Version: %d",
				doc.ID, doc.Title, doc.CreatedAt.Format(time.RFC3339), doc.UpdatedAt.Format(time.RFC3339), doc.Version),
		},
		{
			Type: "text",
			Text: fmt.Sprintf("Content:\n%s", doc.Content),
		},
	}
	if len(doc.Tags) > 0 {
		content = append(content, mcp.Content{
			Type: "text",
			Text: fmt.Sprintf("Tags: %v", doc.Tags),
		})
	}

	jsonData, _ := json.Marshal(doc)
	content = append(content, mcp.Content{
		Type: "text",
		Text: fmt.Sprintf("Raw JSON:\n```json\n%s\n```", string(jsonData)),
	})

	return &mcp.ToolCallResult{Content: content}, nil
}

func (d *DatabaseProvider) updateDocument(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return errorResponse("Missing or invalid 'id' parameter"), nil
	}

	doc, err := d.store.GetDocument(ctx, collection, id)
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to find document: %v", err)), nil
	}

	if title, ok := args["title"].(string); ok && title != "" {
		doc.Title = title
	}
	if content, ok := args["content"].(string); ok && content != "" {
		doc.Content = content
	}
	if tags := stringSlice(args["tags"]); tags != nil {
		doc.Tags = tags
	}
	if metadata, ok := args["metadata"].(map[string]interface{}); ok {
		doc.Metadata = metadata
	}

	if err := d.store.UpdateDocument(ctx, collection, doc); err != nil {
		return errorResponse(fmt.Sprintf("Failed to update document: %v", err)), nil
	}

	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("Document updated successfully. New version: %d", doc.Version)),
	}, nil
}

func (d *DatabaseProvider) deleteDocument(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return errorResponse("Missing or invalid 'id' parameter"), nil
	}

	if err := d.store.DeleteDocument(ctx, collection, id); err != nil {
		return errorResponse(fmt.Sprintf("Failed to delete document: %v", err)), nil
	}

	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("Document with ID %s deleted successfully from collection %s", id, collection)),
	}, nil
}

func (d *DatabaseProvider) queryDocuments(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}

	query := storage.Query{
		Collection: collection,
		Limit:      10,
	}
	if filter, ok := args["filter"].(map[string]interface{}); ok {
		query.Filter = filter
	}
	if sort, ok := args["sort"].(map[string]interface{}); ok {
		query.Sort = sort
	}
	if limit, ok := args["limit"]; ok {
		if l, err := toInt(limit); err == nil && l > 0 && l <= 100 {
			query.Limit = l
		}
	}
	if skip, ok := args["skip"]; ok {
		if s, err := toInt(skip); err == nil && s >= 0 {
			query.Skip = s
		}
	}

	docs, err := d.store.QueryDocuments(ctx, query)
	if err != nil {
		return errorResponse(fmt.Sprintf("Query failed: %v", err)), nil
	}

	content := []mcp.Content{
		{
			Type: "text",
			Text: fmt.Sprintf("Found %d documents in collection '%s'", len(docs), collection),
		},
	}
	for i, doc := range docs {
		content = append(content, mcp.Content{
			Type: "text",
			Text: fmt.Sprintf("%d. **%s** (ID: %s)\n   Created: %s\n   Content preview: %s",
				i+1, doc.Title, doc.ID, doc.CreatedAt.Format(time.RFC3339),
				truncateString(doc.Content, 100)),
		})
	}

	jsonData, _ := json.Marshal(docs)
	content = append(content, mcp.Content{
		Type: "text",
		Text: fmt.Sprintf("Raw JSON:\n```json\n%s\n```", string(jsonData)),
	})

	return &mcp.ToolCallResult{Content: content}, nil
}

func (d *DatabaseProvider) searchDocuments(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}
	searchText, ok := args["search_text"].(string)
	if !ok || searchText == "" {
		return errorResponse("Missing or invalid 'search_text' parameter"), nil
	}

	limit := 10
	if l, ok := args["limit"]; ok {
		if parsed, err := toInt(l); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	docs, err := d.store.SearchDocuments(ctx, collection, searchText, limit)
	if err != nil {
		return errorResponse(fmt.Sprintf("Search failed: %v", err)), nil
	}

	content := []mcp.Content{
		{
			Type: "text",
			Text: fmt.Sprintf("Found %d documents matching '%s' in collection '%s'", len(docs), searchText, collection),
		},
	}
	for i, doc := range docs {
		content = append(content, mcp.Content{
			Type: "text",
			Text: fmt.Sprintf("%d. **%s** (ID: %s)\n   Created: %s\n   Content preview: %s",
				i+1, doc.Title, doc.ID, doc.CreatedAt.Format(time.RFC3339),
				truncateString(doc.Content, 100)),
		})
	}

	return &mcp.ToolCallResult{Content: content}, nil
}

func (d *DatabaseProvider) countDocuments(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	collection, ok := args["collection"].(string)
	if !ok || collection == "" {
		return errorResponse("Missing or invalid 'collection' parameter"), nil
	}

	filter := make(map[string]interface{})
	if f, ok := args["filter"].(map[string]interface{}); ok {
		filter = f
	}

	count, err := d.store.CountDocuments(ctx, collection, filter)
	if err != nil {
		return errorResponse(fmt.Sprintf("Count failed: %v", err)), nil
	}

	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("Collection '%s' contains %d documents matching the filter", collection, count)),
	}, nil
}

func (d *DatabaseProvider) healthCheck(ctx context.Context) (*mcp.ToolCallResult, error) {
	if err := d.store.HealthCheck(ctx); err != nil {
		return errorResponse(fmt.Sprintf("Database health check failed: %v", err)), nil
	}
	return &mcp.ToolCallResult{
		Content: mcp.TextContent("Database is healthy and ready to accept operations."),
	}, nil
}

// stringSlice coerces a decoded JSON array into []string, dropping
// non-string entries. Returns nil when the argument is absent.
func stringSlice(value interface{}) []string {
	slice, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(slice))
	for _, item := range slice {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
