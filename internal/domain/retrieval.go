package domain

import "context"

// SearchQuery is a literal search request.
type SearchQuery struct {
	Query       string
	Limit       int
	Threshold   float64
	DocumentIDs []string
}

// SearchHit is one raw result of a literal search, shaped as the backend returns it.
type SearchHit struct {
	Chunk      HitChunk    `json:"chunk"`
	Document   HitDocument `json:"document"`
	Similarity float64     `json:"similarity"`
}

// HitChunk is the fragment part of a search hit.
type HitChunk struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	PageNumber *int          `json:"page_number,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries the optional locality hints of a chunk.
type ChunkMetadata struct {
	PageNumber *int `json:"pageNumber,omitempty"`
}

// HitDocument identifies the document a hit came from.
type HitDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename,omitempty"`
}

// SearchResult is the literal search response.
type SearchResult struct {
	Hits           []SearchHit
	TotalResults   int
	ProcessingTime float64
}

// Answer is the reasoning-qa response.
type Answer struct {
	Text           string
	Sources        []CitationSource
	Confidence     float64
	ProcessingTime float64
	SessionID      string
}

// Searcher runs literal searches against the document corpus.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
}

// Answerer answers natural-language questions with citations.
type Answerer interface {
	Ask(ctx context.Context, question, sessionID string) (*Answer, error)
}

// Turn is a finished question and answer used as context for follow-ups
// and explanations.
type Turn struct {
	Question string
	Answer   string
	Sources  []CitationSource
}

// Explanation describes how an answer was derived from its sources.
type Explanation struct {
	Text            string
	SourcesAnalyzed int
	ProcessingTime  float64
}

// Explainer explains finished answers and answers follow-up questions with
// the previous turn as context.
type Explainer interface {
	Explain(ctx context.Context, turn Turn) (*Explanation, error)
	FollowUp(ctx context.Context, question string, previous Turn) (*Answer, error)
}

// DocumentRepository uploads, lists and removes documents.
type DocumentRepository interface {
	Upload(ctx context.Context, files []UploadFile) (*UploadResult, error)
	List(ctx context.Context, offset, limit int) (*DocumentPage, error)
	Remove(ctx context.Context, id string) error
}

// HealthChecker reports backend liveness.
type HealthChecker interface {
	Health(ctx context.Context) (*Health, error)
}
