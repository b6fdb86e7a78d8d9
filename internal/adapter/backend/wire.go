package backend

import (
	"time"

	"docchat/internal/domain"
)

// Wire shapes of the backend API. Field names follow its snake_case JSON.

type searchRequest struct {
	Query       string   `json:"query" validate:"required,max=1000"`
	Limit       int      `json:"limit" validate:"min=1,max=20"`
	Threshold   float64  `json:"threshold" validate:"gte=0,lte=1"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type searchResponse struct {
	Success        bool               `json:"success"`
	Results        []wireHit          `json:"results"`
	Query          string             `json:"query"`
	TotalResults   int                `json:"total_results"`
	ProcessingTime float64            `json:"processing_time"`
	Error          string             `json:"error"`
}

type qaRequest struct {
	Question   string `json:"question" validate:"required,max=2000"`
	SessionID  string `json:"session_id,omitempty"`
	MaxSources int    `json:"max_sources" validate:"min=1,max=10"`
}

type qaResponse struct {
	Success        *bool                   `json:"success"` // absent means true
	Answer         string                  `json:"answer"`
	Sources        []wireCitation          `json:"sources"`
	Confidence     float64                 `json:"confidence"`
	ProcessingTime float64                 `json:"processing_time"`
	SessionID      string                  `json:"session_id"`
	Error          string                  `json:"error"`
}

// missingScore is used when the backend omits a similarity or relevance score.
const missingScore = 1.0

func score(p *float64) float64 {
	if p == nil {
		return missingScore
	}
	return *p
}

type wireHit struct {
	Chunk      domain.HitChunk    `json:"chunk"`
	Document   domain.HitDocument `json:"document"`
	Similarity *float64           `json:"similarity"`
}

func toHits(ws []wireHit) []domain.SearchHit {
	hits := make([]domain.SearchHit, 0, len(ws))
	for _, w := range ws {
		hits = append(hits, domain.SearchHit{Chunk: w.Chunk, Document: w.Document, Similarity: score(w.Similarity)})
	}
	return hits
}

type wireCitation struct {
	DocumentID     string   `json:"document_id"`
	DocumentTitle  string   `json:"document_title"`
	ChunkID        string   `json:"chunk_id"`
	Content        string   `json:"content"`
	PageNumber     *int     `json:"page_number"`
	LineNumber     *int     `json:"line_number"`
	RelevanceScore *float64 `json:"relevance_score"`
}

func toCitations(ws []wireCitation) []domain.CitationSource {
	out := make([]domain.CitationSource, 0, len(ws))
	for _, w := range ws {
		out = append(out, domain.CitationSource{
			DocumentID:     w.DocumentID,
			DocumentTitle:  w.DocumentTitle,
			ChunkID:        w.ChunkID,
			Content:        w.Content,
			PageNumber:     w.PageNumber,
			LineNumber:     w.LineNumber,
			RelevanceScore: score(w.RelevanceScore),
		})
	}
	return out
}

type listQuery struct {
	Skip  int `validate:"gte=0"`
	Limit int `validate:"min=1,max=100"`
}

type uploadResponse struct {
	Success       bool           `json:"success"`
	Documents     []wireDocument `json:"documents"`
	Errors        []string       `json:"errors"`
	TotalUploaded int            `json:"total_uploaded"`
	TotalFailed   int            `json:"total_failed"`
}

type listResponse struct {
	Success   bool           `json:"success"`
	Documents []wireDocument `json:"documents"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// wireDocument keeps timestamps as strings: the backend emits naive ISO
// timestamps that time.Time cannot unmarshal directly.
type wireDocument struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	UploadedAt  string `json:"uploaded_at"`
	ProcessedAt string `json:"processed_at"`
	ChunkCount  int    `json:"chunk_count"`
	Status      string `json:"status"`
}

func (w wireDocument) toDomain() domain.Document {
	d := domain.Document{
		ID:         w.ID,
		Filename:   w.Filename,
		Title:      w.Title,
		Type:       w.Type,
		Size:       w.Size,
		UploadedAt: parseTimestamp(w.UploadedAt),
		ChunkCount: w.ChunkCount,
		Status:     w.Status,
	}
	if t := parseTimestamp(w.ProcessedAt); !t.IsZero() {
		d.ProcessedAt = &t
	}
	return d
}

func toDocuments(ws []wireDocument) []domain.Document {
	docs := make([]domain.Document, 0, len(ws))
	for _, w := range ws {
		docs = append(docs, w.toDomain())
	}
	return docs
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp reads zoned or naive ISO timestamps; naive ones are taken as UTC.
// Unparsable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type documentResponse struct {
	Success bool         `json:"success"`
	Data    wireDocument `json:"data"`
	Message string       `json:"message"`
}

type chunksResponse struct {
	Success     bool        `json:"success"`
	DocumentID  string      `json:"document_id"`
	Chunks      []wireChunk `json:"chunks"`
	TotalChunks int         `json:"total_chunks"`
}

type wireChunk struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	ChunkIndex   int    `json:"chunk_index"`
	PageNumber   *int   `json:"page_number"`
	HasEmbedding bool   `json:"has_embedding"`
}

type statsResponse struct {
	Success bool `json:"success"`
	Stats   struct {
		Documents struct {
			Total          int            `json:"total"`
			TotalSizeBytes int64          `json:"total_size_bytes"`
			AvgSizeBytes   float64        `json:"avg_size_bytes"`
			ByStatus       map[string]int `json:"by_status"`
			ByType         map[string]int `json:"by_type"`
		} `json:"documents"`
		VectorStore struct {
			TotalChunks          int    `json:"total_chunks"`
			ChunksWithEmbeddings int    `json:"chunks_with_embeddings"`
			IndexHealth          string `json:"index_health"`
		} `json:"vector_store"`
		Timestamp string `json:"timestamp"`
	} `json:"stats"`
}

// explainQuery and followUpQuery are the scalar parameters of
// /api/qa/explain and /api/qa/follow-up. The backend reads them from the
// query string; the sources travel as the JSON body.
type explainQuery struct {
	Question string `validate:"required,max=2000"`
	Answer   string `validate:"required"`
}

type followUpQuery struct {
	Question         string `validate:"required,max=2000"`
	PreviousQuestion string `validate:"required"`
	PreviousAnswer   string `validate:"required"`
}

type explainResponse struct {
	Success         bool    `json:"success"`
	Explanation     string  `json:"explanation"`
	ProcessingTime  float64 `json:"processing_time"`
	SourcesAnalyzed int     `json:"sources_analyzed"`
}
