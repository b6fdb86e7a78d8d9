package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a conversation message.
type Role string

// Role constants for message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one finalized entry of the conversation log.
// Messages are created once and never mutated afterwards.
type ConversationMessage struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Sources   []CitationSource `json:"sources,omitempty"`
}

// CitationSource is a document fragment offered as evidence for an answer.
type CitationSource struct {
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title"`
	ChunkID        string  `json:"chunk_id"`
	Content        string  `json:"content"`
	PageNumber     *int    `json:"page_number,omitempty"`
	LineNumber     *int    `json:"line_number,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// HasPage reports whether the source carries a page locality hint.
func (c CitationSource) HasPage() bool { return c.PageNumber != nil }

// HasLine reports whether the source carries a line locality hint.
func (c CitationSource) HasLine() bool { return c.LineNumber != nil }

// RequestMode selects the retrieval strategy for a submission.
type RequestMode string

const (
	ModeLiteralSearch RequestMode = "literal-search"
	ModeReasoningQA   RequestMode = "reasoning-qa"
)

// Valid reports whether m is one of the known modes.
func (m RequestMode) Valid() bool {
	return m == ModeLiteralSearch || m == ModeReasoningQA
}

// Toggle returns the other retrieval mode.
func (m RequestMode) Toggle() RequestMode {
	if m == ModeReasoningQA {
		return ModeLiteralSearch
	}
	return ModeReasoningQA
}

// ParseRequestMode accepts the canonical names plus short aliases
// ("literal", "search", "reasoning", "qa", "ai").
func ParseRequestMode(s string) (RequestMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "literal-search", "literal", "search", "text":
		return ModeLiteralSearch, nil
	case "reasoning-qa", "reasoning", "qa", "ai":
		return ModeReasoningQA, nil
	default:
		return "", NewDomainError("ParseRequestMode", ErrInvalidMode, fmt.Sprintf("%q", s))
	}
}
