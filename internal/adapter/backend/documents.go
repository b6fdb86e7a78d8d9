package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"

	"docchat/internal/domain"
)

// Upload implements domain.DocumentRepository (multipart POST /api/documents/ingest).
// The backend processes files one by one and reports per-file failures in the
// errors list, so a 2xx response may carry both successes and failures.
func (c *Client) Upload(ctx context.Context, files []domain.UploadFile) (*domain.UploadResult, error) {
	if len(files) == 0 {
		return nil, domain.NewDomainError("backend.upload", domain.ErrInvalidInput, "no files")
	}

	payload, contentType, err := encodeFiles(files)
	if err != nil {
		return nil, domain.WrapOp("backend.upload", err)
	}
	body, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/documents/ingest",
		contentType: contentType,
		body:        payload,
		timeout:     c.uploadTimeout,
	})
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	c.InvalidateSearches()

	failed := resp.Errors
	if failed == nil {
		failed = []string{}
	}
	return &domain.UploadResult{
		Succeeded: toDocuments(resp.Documents),
		Failed:    failed,
	}, nil
}

func encodeFiles(files []domain.UploadFile) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(f.Name)))
		ct := mime.TypeByExtension(filepath.Ext(f.Name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// List implements domain.DocumentRepository (GET /api/documents).
func (c *Client) List(ctx context.Context, offset, limit int) (*domain.DocumentPage, error) {
	q := listQuery{Skip: offset, Limit: limit}
	if err := validateRequest("backend.list", q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("skip", strconv.Itoa(q.Skip))
	params.Set("limit", strconv.Itoa(q.Limit))

	var resp listResponse
	if err := c.getJSON(ctx, "/api/documents?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &domain.DocumentPage{
		Documents: toDocuments(resp.Documents),
		Total:     resp.Total,
		Page:      resp.Page,
		Limit:     resp.Limit,
	}, nil
}

// Remove implements domain.DocumentRepository (DELETE /api/documents/{id}).
func (c *Client) Remove(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewDomainError("backend.remove", domain.ErrInvalidInput, "empty document id")
	}
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/documents/" + url.PathEscape(id),
	})
	if err != nil {
		return err
	}
	c.InvalidateSearches()
	return nil
}

// Health implements domain.HealthChecker (GET /api/health).
func (c *Client) Health(ctx context.Context) (*domain.Health, error) {
	var resp healthResponse
	if err := c.getJSON(ctx, "/api/health", &resp); err != nil {
		return nil, err
	}
	return &domain.Health{
		Status:    resp.Status,
		Timestamp: parseTimestamp(resp.Timestamp),
		Services:  resp.Services,
		Version:   resp.Version,
	}, nil
}

// Get implements domain.DocumentInspector (GET /api/documents/{id}).
func (c *Client) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.NewDomainError("backend.get", domain.ErrInvalidInput, "empty document id")
	}
	var resp documentResponse
	if err := c.getJSON(ctx, "/api/documents/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	d := resp.Data.toDomain()
	return &d, nil
}

// Chunks implements domain.DocumentInspector (GET /api/documents/{id}/chunks).
func (c *Client) Chunks(ctx context.Context, id string) ([]domain.DocumentChunk, error) {
	if id == "" {
		return nil, domain.NewDomainError("backend.chunks", domain.ErrInvalidInput, "empty document id")
	}
	var resp chunksResponse
	if err := c.getJSON(ctx, "/api/documents/"+url.PathEscape(id)+"/chunks", &resp); err != nil {
		return nil, err
	}
	chunks := make([]domain.DocumentChunk, 0, len(resp.Chunks))
	for _, w := range resp.Chunks {
		chunks = append(chunks, domain.DocumentChunk{
			ID:           w.ID,
			Content:      w.Content,
			Index:        w.ChunkIndex,
			PageNumber:   w.PageNumber,
			HasEmbedding: w.HasEmbedding,
		})
	}
	return chunks, nil
}

// Stats implements domain.DocumentInspector (GET /api/documents/stats).
// Some backend builds route this path to the document lookup and answer 404;
// callers treat domain.ErrNotFound as "stats unavailable".
func (c *Client) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	var resp statsResponse
	if err := c.getJSON(ctx, "/api/documents/stats", &resp); err != nil {
		return nil, err
	}
	d, v := resp.Stats.Documents, resp.Stats.VectorStore
	return &domain.DocumentStats{
		Total:                d.Total,
		TotalSizeBytes:       d.TotalSizeBytes,
		AvgSizeBytes:         d.AvgSizeBytes,
		ByStatus:             d.ByStatus,
		ByType:               d.ByType,
		TotalChunks:          v.TotalChunks,
		ChunksWithEmbeddings: v.ChunksWithEmbeddings,
		IndexHealth:          v.IndexHealth,
		Timestamp:            parseTimestamp(resp.Stats.Timestamp),
	}, nil
}
