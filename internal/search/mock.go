package search

import "context"

// MockSearcher returns canned results for tests.
type MockSearcher struct {
	results []*Result
	err     error
}

var _ Searcher = (*MockSearcher)(nil)

func NewMockSearcher(results []*Result, err error) *MockSearcher {
	return &MockSearcher{results: results, err: err}
}

func (m *MockSearcher) Name() string { return "search" }

func (m *MockSearcher) Search(ctx context.Context, query Query) ([]*Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	max := query.MaxResults
	if max <= 0 || max > len(m.results) {
		max = len(m.results)
	}
	return m.results[:max], nil
}

func (m *MockSearcher) HealthCheck(ctx context.Context) error {
	return m.err
}
