// Package search implements the backend of the web_search tool: a colly
// based scraper over privacy-friendly engines, plus a mock for tests.
package search

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/settings"
	"mcpd/internal/shared/types"
)

// Result is one web search hit.
type Result struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Content     string            `json:"content,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Query carries the search request.
type Query struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	Language   string `json:"language,omitempty"`
	Region     string `json:"region,omitempty"`
}

// Searcher is the contract the search tool provider programs against.
// Implementations also satisfy types.Backend.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query Query) ([]*Result, error)
	HealthCheck(ctx context.Context) error
}

var _ types.Backend = (Searcher)(nil)

// Config holds the scraper configuration.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	Delay          time.Duration
	RandomDelay    time.Duration
	MaxResults     int
	BlockedDomains []string
	Socks5         string // optional outbound SOCKS5 proxy, host:port
}

// ConfigFromConf maps the [search] ini section onto a Config, filling the
// gaps with the shipped defaults.
func ConfigFromConf(sc types.SearchConf) Config {
	cfg := Config{
		UserAgent:      sc.UserAgent,
		Timeout:        30 * time.Second,
		Delay:          1 * time.Second,
		RandomDelay:    500 * time.Millisecond,
		MaxResults:     sc.MaxResults,
		BlockedDomains: append([]string(nil), sc.BlockedDomains...),
		Socks5:         sc.Socks5,
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "MCP-Server-Bot/1.0"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return cfg
}

// CollySearcher implements Searcher with one throwaway collector per
// search. The configuration can be swapped at runtime through the
// settings subscription.
type CollySearcher struct {
	mu  sync.RWMutex
	cfg Config
	log zerolog.Logger
}

var _ Searcher = (*CollySearcher)(nil)
var _ settings.ConfigurableModule = (*CollySearcher)(nil)

// NewCollySearcher creates a searcher with the given configuration.
func NewCollySearcher(cfg Config) *CollySearcher {
	return &CollySearcher{
		cfg: cfg,
		log: logger.WithComponent("search"),
	}
}

func (s *CollySearcher) Name() string { return "search" }

// snapshot returns a copy of the current configuration.
func (s *CollySearcher) snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.BlockedDomains = append([]string(nil), s.cfg.BlockedDomains...)
	return cfg
}

// OnSettingsUpdate applies a runtime settings change to the live scraper.
func (s *CollySearcher) OnSettingsUpdate(moduleKey string, newSettings interface{}) error {
	updated, ok := newSettings.(*settings.SearchSettings)
	if !ok {
		return fmt.Errorf("unexpected settings type %T for module %s", newSettings, moduleKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if updated.MaxResults > 0 {
		s.cfg.MaxResults = updated.MaxResults
	}
	if updated.BlockedDomains != nil {
		s.cfg.BlockedDomains = append([]string(nil), updated.BlockedDomains...)
	}
	s.log.Info().Int("max_results", s.cfg.MaxResults).
		Int("blocked_domains", len(s.cfg.BlockedDomains)).
		Msg("search settings updated")
	return nil
}

// Search fans the query out to the engines and collects anchor results
// until the cap is reached.
func (s *CollySearcher) Search(ctx context.Context, query Query) ([]*Result, error) {
	cfg := s.snapshot()

	c, err := createCollector(cfg)
	if err != nil {
		return nil, err
	}

	var (
		mu           sync.Mutex
		results      []*Result
		searchErrors []error
	)
	maxWanted := maxResults(cfg, query.MaxResults)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Attr("href")
		title := strings.TrimSpace(e.Text)
		if title == "" || (!strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://")) {
			return
		}
		if isBlockedDomain(link, cfg.BlockedDomains) {
			return
		}
		description := extractDescription(e.DOM)

		mu.Lock()
		defer mu.Unlock()
		if len(results) >= maxWanted {
			return
		}
		results = append(results, &Result{
			Title:       title,
			URL:         link,
			Description: description,
			Timestamp:   time.Now(),
			Metadata: map[string]string{
				"query":      query.Query,
				"user_agent": cfg.UserAgent,
			},
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		searchErrors = append(searchErrors, fmt.Errorf("request to %s failed: %w", r.Request.URL, err))
	})

	for _, searchURL := range buildSearchURLs(query) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s.log.Debug().Str("url", searchURL).Msg("visiting search engine")
		if err := c.Visit(searchURL); err != nil {
			mu.Lock()
			searchErrors = append(searchErrors, fmt.Errorf("failed to visit %s: %w", searchURL, err))
			mu.Unlock()
		}
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(results) > maxWanted {
		results = results[:maxWanted]
	}
	if len(results) > 0 {
		return results, nil
	}
	if len(searchErrors) > 0 {
		return nil, searchErrors[0]
	}
	return results, nil
}

// SearchWithContent runs Search and then fetches page content for each
// hit. Extraction failures leave the hit without content rather than
// failing the whole search.
func (s *CollySearcher) SearchWithContent(ctx context.Context, query Query) ([]*Result, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
			if content, err := s.extractContent(result.URL); err == nil {
				result.Content = content
			}
		}
	}
	return results, nil
}

// HealthCheck runs a one-result probe query against the engines.
func (s *CollySearcher) HealthCheck(ctx context.Context) error {
	_, err := s.Search(ctx, Query{Query: "test", MaxResults: 1})
	return err
}

func createCollector(cfg Config) (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.Async(true),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	})
	c.SetRequestTimeout(cfg.Timeout)
	c.UserAgent = cfg.UserAgent

	if cfg.Socks5 != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Socks5, nil, &net.Dialer{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support context dialing")
		}
		c.WithTransport(&http.Transport{
			DialContext:     contextDialer.DialContext,
			IdleConnTimeout: cfg.Timeout,
		})
	}

	c.OnRequest(func(r *colly.Request) {
		// Look like a regular browser.
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("DNT", "1")
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	return c, nil
}

func maxResults(cfg Config, queryMax int) int {
	if queryMax > 0 && queryMax < cfg.MaxResults {
		return queryMax
	}
	return cfg.MaxResults
}

func isBlockedDomain(link string, blocked []string) bool {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return true
	}
	hostname := parsedURL.Hostname()
	for _, domain := range blocked {
		if strings.Contains(hostname, domain) {
			return true
		}
	}
	return false
}

// extractDescription pulls text from the elements around a result link.
func extractDescription(sel *goquery.Selection) string {
	description := ""
	if next := sel.Next(); next.Length() > 0 {
		description = strings.TrimSpace(next.Text())
	}
	if description == "" {
		if parentNext := sel.Parent().Next(); parentNext.Length() > 0 {
			description = strings.TrimSpace(parentNext.Text())
		}
	}
	if len(description) > 200 {
		description = description[:200] + "..."
	}
	return description
}

// extractContent fetches a result page and keeps the readable blocks.
func (s *CollySearcher) extractContent(pageURL string) (string, error) {
	cfg := s.snapshot()
	c, err := createCollector(cfg)
	if err != nil {
		return "", err
	}

	var mu sync.Mutex
	var content strings.Builder
	var extractionError error

	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.ForEach("p, article, main, .content, .post-content, .entry-content", func(_ int, el *colly.HTMLElement) {
			text := strings.TrimSpace(el.Text)
			if len(text) > 50 {
				mu.Lock()
				content.WriteString(text)
				content.WriteString("\n\n")
				mu.Unlock()
			}
		})
	})
	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		extractionError = err
		mu.Unlock()
	})

	if err := c.Visit(pageURL); err != nil {
		return "", err
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if extractionError != nil {
		return "", extractionError
	}
	result := content.String()
	if len(result) > 5000 {
		result = result[:5000] + "..."
	}
	return strings.TrimSpace(result), nil
}
