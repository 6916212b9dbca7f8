package search

import (
	"fmt"
	"net/url"
)

// buildSearchURLs returns the engine URLs to scrape for a query. The
// engines are HTML-only endpoints that work without JavaScript.
func buildSearchURLs(query Query) []string {
	encodedQuery := url.QueryEscape(query.Query)
	urls := []string{
		fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", encodedQuery),
		fmt.Sprintf("https://www.startpage.com/sp/search?query=%s", encodedQuery),
	}
	if query.Region != "" {
		urls[0] += "&kl=" + url.QueryEscape(query.Region)
	}
	if query.Language != "" {
		urls[1] += "&language=" + url.QueryEscape(query.Language)
	}
	return urls
}
