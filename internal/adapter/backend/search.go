package backend

import (
	"context"
	"fmt"
	"strings"

	"docchat/internal/domain"
)

// Search implements domain.Searcher (POST /api/search). Successful responses
// are cached when a search cache is configured.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	req := searchRequest{
		Query:       q.Query,
		Limit:       q.Limit,
		Threshold:   q.Threshold,
		DocumentIDs: q.DocumentIDs,
	}
	if err := validateRequest("backend.search", req); err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.logger.Debug("search cache hit", "query", req.Query)
			return v.(*domain.SearchResult), nil
		}
	}

	var resp searchResponse
	if err := c.postJSON(ctx, "/api/search", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success && resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackend, resp.Error)
	}

	result := &domain.SearchResult{
		Hits:           toHits(resp.Results),
		TotalResults:   resp.TotalResults,
		ProcessingTime: resp.ProcessingTime,
	}
	if c.cache != nil {
		c.cache.SetDefault(key, result)
	}
	return result, nil
}

// InvalidateSearches drops cached search responses. Called after the corpus changes.
func (c *Client) InvalidateSearches() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

func cacheKey(req searchRequest) string {
	return fmt.Sprintf("%s|%d|%g|%s", req.Query, req.Limit, req.Threshold, strings.Join(req.DocumentIDs, ","))
}
