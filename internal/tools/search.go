package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mcpd/internal/mcp"
	"mcpd/internal/search"
)

// SearchProvider exposes web search as an MCP tool.
type SearchProvider struct {
	searcher search.Searcher
}

var _ Provider = (*SearchProvider)(nil)

// contentSearcher is the optional interface a searcher implements when
// it can fetch page content for its results.
type contentSearcher interface {
	SearchWithContent(ctx context.Context, query search.Query) ([]*search.Result, error)
}

func NewSearchProvider(searcher search.Searcher) *SearchProvider {
	return &SearchProvider{searcher: searcher}
}

func (s *SearchProvider) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{
		{
			Name:        "web_search",
			Description: "Search the web for information",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results to return (default: 10)",
						"minimum":     1,
						"maximum":     50,
					},
					"include_content": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether to fetch full content from result pages (default: false)",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Language preference for search results",
					},
					"region": map[string]interface{}{
						"type":        "string",
						"description": "Region preference for search results",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "search_health_check",
			Description: "Check if the web search service is healthy",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}, nil
}

func (s *SearchProvider) CallTool(ctx context.Context, params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	switch params.Name {
	case "web_search":
		return s.webSearch(ctx, params.Arguments)
	case "search_health_check":
		return s.healthCheck(ctx)
	default:
		return errorResponse(fmt.Sprintf("Unknown search tool: %s", params.Name)), nil
	}
}

func (s *SearchProvider) webSearch(ctx context.Context, args map[string]interface{}) (*mcp.ToolCallResult, error) {
	queryStr, ok := args["query"].(string)
	if !ok || queryStr == "" {
		return errorResponse("Missing or invalid 'query' parameter"), nil
	}

	searchQuery := search.Query{
		Query:      queryStr,
		MaxResults: 10,
	}
	if maxResults, ok := args["max_results"]; ok {
		if mr, err := toInt(maxResults); err == nil && mr > 0 && mr <= 50 {
			searchQuery.MaxResults = mr
		}
	}
	if lang, ok := args["language"].(string); ok {
		searchQuery.Language = lang
	}
	if region, ok := args["region"].(string); ok {
		searchQuery.Region = region
	}

	includeContent := false
	if ic, ok := args["include_content"].(bool); ok {
		includeContent = ic
	}

	var results []*search.Result
	var err error
	if cs, ok := s.searcher.(contentSearcher); ok && includeContent {
		results, err = cs.SearchWithContent(ctx, searchQuery)
	} else {
		results, err = s.searcher.Search(ctx, searchQuery)
	}
	if err != nil {
		return errorResponse(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return &mcp.ToolCallResult{
			Content: mcp.TextContent("No search results found."),
		}, nil
	}

	content := []mcp.Content{
		{
			Type: "text",
			Text: fmt.Sprintf("Found %d search results for: %s\n", len(results), queryStr),
		},
	}
	for i, result := range results {
		resultText := fmt.Sprintf("%d. **%s**\n   URL: %s\n   Description: %s\n",
			i+1, result.Title, result.URL, result.Description)
		if includeContent && result.Content != "" {
			resultText += fmt.Sprintf("   Content: %s\n", truncateString(result.Content, 500))
		}
		resultText += fmt.Sprintf("   Timestamp: %s\n\n", result.Timestamp.Format(time.RFC3339))

		content = append(content, mcp.Content{
			Type: "text",
			Text: resultText,
		})
	}

	jsonData, _ := json.Marshal(results)
	content = append(content, mcp.Content{
		Type: "text",
		Text: fmt.Sprintf("Raw JSON data:\n```json\n%s\n```", string(jsonData)),
	})

	return &mcp.ToolCallResult{Content: content}, nil
}

func (s *SearchProvider) healthCheck(ctx context.Context) (*mcp.ToolCallResult, error) {
	if err := s.searcher.HealthCheck(ctx); err != nil {
		return errorResponse(fmt.Sprintf("Search service health check failed: %v", err)), nil
	}
	return &mcp.ToolCallResult{
		Content: mcp.TextContent("Search service is healthy and ready to accept queries."),
	}, nil
}
