package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mcpd/internal/mcp"
	"mcpd/internal/search"
)

func sampleResults() []*search.Result {
	return []*search.Result{
		{Title: "Go", URL: "https://go.dev", Description: "The Go programming language", Timestamp: time.Now()},
		{Title: "Colly", URL: "https://go-colly.org", Description: "Scraping framework", Timestamp: time.Now()},
	}
}

func TestWebSearchFormatsResults(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(sampleResults(), nil))

	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{
		Name:      "web_search",
		Arguments: map[string]interface{}{"query": "golang"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result.Content)
	}
	if !strings.Contains(result.Content[0].Text, "Found 2 search results for: golang") {
		t.Errorf("missing summary line: %q", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[1].Text, "https://go.dev") {
		t.Errorf("missing first result: %q", result.Content[1].Text)
	}
	last := result.Content[len(result.Content)-1].Text
	if !strings.Contains(last, "Raw JSON data") {
		t.Errorf("missing raw JSON block: %q", last)
	}
}

func TestWebSearchNoResults(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(nil, nil))

	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{
		Name:      "web_search",
		Arguments: map[string]interface{}{"query": "nothing"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("empty result set is not an error: %+v", result.Content)
	}
	if result.Content[0].Text != "No search results found." {
		t.Errorf("unexpected message: %q", result.Content[0].Text)
	}
}

func TestWebSearchMaxResults(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(sampleResults(), nil))

	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{
		Name:      "web_search",
		Arguments: map[string]interface{}{"query": "golang", "max_results": 1.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content[0].Text, "Found 1 search results") {
		t.Errorf("max_results not forwarded: %q", result.Content[0].Text)
	}
}

func TestWebSearchMissingQuery(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(sampleResults(), nil))

	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{Name: "web_search"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("missing query should produce an error result")
	}
}

func TestWebSearchEngineFailure(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(nil, errors.New("engines unreachable")))

	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{
		Name:      "web_search",
		Arguments: map[string]interface{}{"query": "golang"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("engine failure should produce an error result")
	}
	if !strings.Contains(result.Content[0].Text, "engines unreachable") {
		t.Errorf("error cause not surfaced: %q", result.Content[0].Text)
	}
}

func TestSearchHealthCheck(t *testing.T) {
	p := NewSearchProvider(search.NewMockSearcher(sampleResults(), nil))
	result, err := p.CallTool(context.Background(), mcp.ToolCallParams{Name: "search_health_check"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result.Content)
	}

	p = NewSearchProvider(search.NewMockSearcher(nil, errors.New("down")))
	result, err = p.CallTool(context.Background(), mcp.ToolCallParams{Name: "search_health_check"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("failing backend should produce an error result")
	}
}
