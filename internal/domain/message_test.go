package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestMode(t *testing.T) {
	tests := []struct {
		in   string
		want RequestMode
	}{
		{"literal-search", ModeLiteralSearch},
		{"literal", ModeLiteralSearch},
		{" Search ", ModeLiteralSearch},
		{"reasoning-qa", ModeReasoningQA},
		{"qa", ModeReasoningQA},
		{"AI", ModeReasoningQA},
	}
	for _, tt := range tests {
		got, err := ParseRequestMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRequestModeInvalid(t *testing.T) {
	_, err := ParseRequestMode("fuzzy")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

func TestRequestModeToggle(t *testing.T) {
	assert.Equal(t, ModeReasoningQA, ModeLiteralSearch.Toggle())
	assert.Equal(t, ModeLiteralSearch, ModeReasoningQA.Toggle())
	assert.True(t, ModeLiteralSearch.Valid())
	assert.False(t, RequestMode("").Valid())
}

func TestCitationLocality(t *testing.T) {
	page := 4
	c := CitationSource{DocumentID: "d1", PageNumber: &page}
	assert.True(t, c.HasPage())
	assert.False(t, c.HasLine())
}

func TestDocumentDisplayName(t *testing.T) {
	assert.Equal(t, "Budget", Document{ID: "1", Title: "Budget", Filename: "b.pdf"}.DisplayName())
	assert.Equal(t, "b.pdf", Document{ID: "1", Filename: "b.pdf"}.DisplayName())
	assert.Equal(t, "1", Document{ID: "1"}.DisplayName())
}
