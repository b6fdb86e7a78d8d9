package backend

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

const searchBody = `{
  "success": true,
  "query": "refund policy",
  "total_results": 2,
  "processing_time": 0.12,
  "results": [
    {
      "chunk": {"id": "c1", "content": "Refunds within 30 days.", "page_number": 2, "metadata": {"pageNumber": 3}},
      "document": {"id": "d1", "title": "Terms", "filename": "terms.pdf", "uploaded_at": "2024-03-01T10:20:30.5"},
      "similarity": 0.82,
      "relevance_score": 0.82
    },
    {
      "chunk": {"id": "c2", "content": "No page here.", "metadata": {}},
      "document": {"id": "d2", "title": "", "filename": "notes.txt"},
      "similarity": 1.4,
      "relevance_score": 1.4
    }
  ]
}`

func TestSearch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/search", r.URL.Path)

		var req searchRequest
		decodeBody(t, r, &req)
		assert.Equal(t, "refund policy", req.Query)
		assert.Equal(t, 5, req.Limit)
		assert.InDelta(t, 0.3, req.Threshold, 1e-9)

		writeJSON(w, 200, searchBody)
	}, nil)

	res, err := c.Search(context.Background(), domain.SearchQuery{Query: "refund policy", Limit: 5, Threshold: 0.3})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 2, res.TotalResults)

	first := res.Hits[0]
	assert.Equal(t, "c1", first.Chunk.ID)
	require.NotNil(t, first.Chunk.Metadata.PageNumber)
	assert.Equal(t, 3, *first.Chunk.Metadata.PageNumber)
	require.NotNil(t, first.Chunk.PageNumber)
	assert.Equal(t, 2, *first.Chunk.PageNumber)
	assert.Equal(t, "Terms", first.Document.Title)

	second := res.Hits[1]
	assert.Nil(t, second.Chunk.Metadata.PageNumber)
	assert.Equal(t, "notes.txt", second.Document.Filename)
	assert.InDelta(t, 1.4, second.Similarity, 1e-9)
}

func TestSearchEmptyResults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"query":"x","results":null}`)
	}, nil)

	res, err := c.Search(context.Background(), domain.SearchQuery{Query: "x", Limit: 5, Threshold: 0.3})
	require.NoError(t, err)
	assert.NotNil(t, res.Hits)
	assert.Empty(t, res.Hits)
}

func TestSearchInBandFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":false,"query":"x","results":[],"error":"vector store offline"}`)
	}, nil)

	_, err := c.Search(context.Background(), domain.SearchQuery{Query: "x", Limit: 5, Threshold: 0.3})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackend)
	assert.Contains(t, err.Error(), "vector store offline")
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name  string
		query domain.SearchQuery
		want  string
	}{
		{"empty query", domain.SearchQuery{Query: "", Limit: 5, Threshold: 0.3}, "Query is required"},
		{"limit too high", domain.SearchQuery{Query: "q", Limit: 21, Threshold: 0.3}, "Limit must be at most 20"},
		{"limit zero", domain.SearchQuery{Query: "q", Limit: 0, Threshold: 0.3}, "Limit must be at least 1"},
		{"threshold", domain.SearchQuery{Query: "q", Limit: 5, Threshold: 1.2}, "Threshold is out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, searchBody)
			}, nil)

			_, err := c.Search(context.Background(), tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, hits.Load())
		})
	}
}

func TestSearchCache(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, searchBody)
	}, nil, WithSearchCache(time.Minute))

	q := domain.SearchQuery{Query: "refund policy", Limit: 5, Threshold: 0.3}
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	q.Threshold = 0.7
	_, err := c.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "a different threshold is a different key")

	c.InvalidateSearches()
	_, err = c.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestSearchCacheSkipsFailures(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, 500, `{"detail":"boom"}`)
			return
		}
		writeJSON(w, 200, searchBody)
	}, nil, WithSearchCache(time.Minute))

	q := domain.SearchQuery{Query: "refund policy", Limit: 5, Threshold: 0.3}
	_, err := c.Search(context.Background(), q)
	require.Error(t, err)

	fail.Store(false)
	_, err = c.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSearchCacheDisabled(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, searchBody)
	}, nil, WithSearchCache(0))

	q := domain.SearchQuery{Query: "refund policy", Limit: 5, Threshold: 0.3}
	for i := 0; i < 2; i++ {
		_, err := c.Search(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestSearchMissingSimilarityMeansFullRelevance(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"query":"x","results":[
		  {"chunk":{"id":"c1","content":"a"},"document":{"id":"d1","title":"A"}},
		  {"chunk":{"id":"c2","content":"b"},"document":{"id":"d2","title":"B"},"similarity":0}
		]}`)
	}, nil)

	res, err := c.Search(context.Background(), domain.SearchQuery{Query: "x", Limit: 5, Threshold: 0.3})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 1.0, res.Hits[0].Similarity)
	assert.Equal(t, 0.0, res.Hits[1].Similarity)
}
