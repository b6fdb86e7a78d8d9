package domain

import (
	"context"
	"time"
)

// Document is the client-side view of an ingested document.
type Document struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Size        int64      `json:"size"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ChunkCount  int        `json:"chunk_count"`
	Status      string     `json:"status"`
}

// DisplayName returns the title, falling back to the filename and then the id.
func (d Document) DisplayName() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.Filename != "":
		return d.Filename
	default:
		return d.ID
	}
}

// UploadFile is one file handed to the document repository for ingestion.
type UploadFile struct {
	Name string
	Size int64
	Data []byte
}

// UploadResult is the outcome of a batch upload. Success and failure may
// both be non-empty: the backend commits what it can.
type UploadResult struct {
	Succeeded []Document `json:"documents"`
	Failed    []string   `json:"errors"`
}

// DocumentPage is one page of the document listing.
type DocumentPage struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

// Health is the backend health report.
type Health struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Version   string            `json:"version"`
}

// DocumentChunk is one indexed fragment of a document.
type DocumentChunk struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Index        int    `json:"chunk_index"`
	PageNumber   *int   `json:"page_number,omitempty"`
	HasEmbedding bool   `json:"has_embedding"`
}

// DocumentStats summarizes the document collection.
type DocumentStats struct {
	Total                int            `json:"total"`
	TotalSizeBytes       int64          `json:"total_size_bytes"`
	AvgSizeBytes         float64        `json:"avg_size_bytes"`
	ByStatus             map[string]int `json:"by_status"`
	ByType               map[string]int `json:"by_type"`
	TotalChunks          int            `json:"total_chunks"`
	ChunksWithEmbeddings int            `json:"chunks_with_embeddings"`
	IndexHealth          string         `json:"index_health"`
	Timestamp            time.Time      `json:"timestamp"`
	// Derived is set when the numbers were computed client-side from the
	// document listing. Embedding counts and index health are then unknown.
	Derived bool `json:"derived,omitempty"`
}

// DocumentInspector reads single documents, their chunks and collection stats.
type DocumentInspector interface {
	Get(ctx context.Context, id string) (*Document, error)
	Chunks(ctx context.Context, id string) ([]DocumentChunk, error)
	Stats(ctx context.Context) (*DocumentStats, error)
}
