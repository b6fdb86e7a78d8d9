package usecase

import (
	"fmt"
	"log/slog"
	"math"

	"docchat/internal/domain"
)

// ClampRelevance forces a similarity score into [0,1]. NaN is treated as 1.0.
func ClampRelevance(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// NormalizeSearchHit converts a literal-search hit into a CitationSource.
// The page hint comes from the chunk metadata, falling back to the chunk's own
// page field; the title falls back to the filename.
func NormalizeSearchHit(hit domain.SearchHit) (domain.CitationSource, error) {
	page := hit.Chunk.Metadata.PageNumber
	if page == nil {
		page = hit.Chunk.PageNumber
	}
	title := hit.Document.Title
	if title == "" {
		title = hit.Document.Filename
	}
	return validateSource(domain.CitationSource{
		DocumentID:     hit.Document.ID,
		DocumentTitle:  title,
		ChunkID:        hit.Chunk.ID,
		Content:        hit.Chunk.Content,
		PageNumber:     copyInt(page),
		RelevanceScore: hit.Similarity,
	})
}

// NormalizeCitation re-validates a citation authored by the QA backend.
func NormalizeCitation(c domain.CitationSource) (domain.CitationSource, error) {
	c.PageNumber = copyInt(c.PageNumber)
	c.LineNumber = copyInt(c.LineNumber)
	return validateSource(c)
}

// Normalize dispatches on origin: literal-search expects a SearchHit,
// reasoning-qa a CitationSource.
func Normalize(raw any, origin domain.RequestMode) (domain.CitationSource, error) {
	switch origin {
	case domain.ModeLiteralSearch:
		if hit, ok := raw.(domain.SearchHit); ok {
			return NormalizeSearchHit(hit)
		}
	case domain.ModeReasoningQA:
		if c, ok := raw.(domain.CitationSource); ok {
			return NormalizeCitation(c)
		}
	default:
		return domain.CitationSource{}, domain.NewDomainError("Citation.Normalize", domain.ErrInvalidMode, string(origin))
	}
	return domain.CitationSource{}, domain.NewDomainError("Citation.Normalize", domain.ErrInvalidInput,
		fmt.Sprintf("%T is not a %s result", raw, origin))
}

// NormalizeHits normalizes search hits in backend order, dropping malformed ones.
func NormalizeHits(hits []domain.SearchHit, logger *slog.Logger) []domain.CitationSource {
	out := make([]domain.CitationSource, 0, len(hits))
	for i, h := range hits {
		src, err := NormalizeSearchHit(h)
		if err != nil {
			logger.Warn("dropping search hit", "index", i, "error", err)
			continue
		}
		out = append(out, src)
	}
	return out
}

// NormalizeCitations normalizes QA citations in backend order, dropping malformed ones.
func NormalizeCitations(cs []domain.CitationSource, logger *slog.Logger) []domain.CitationSource {
	out := make([]domain.CitationSource, 0, len(cs))
	for i, c := range cs {
		src, err := NormalizeCitation(c)
		if err != nil {
			logger.Warn("dropping citation", "index", i, "error", err)
			continue
		}
		out = append(out, src)
	}
	return out
}

func validateSource(c domain.CitationSource) (domain.CitationSource, error) {
	if c.DocumentID == "" && c.ChunkID == "" {
		return domain.CitationSource{}, domain.NewDomainError("Citation.Normalize", domain.ErrMalformedSource, c.DocumentTitle)
	}
	c.RelevanceScore = ClampRelevance(c.RelevanceScore)
	return c, nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
