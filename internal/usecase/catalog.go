package usecase

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"docchat/internal/domain"
)

// Catalog renders the user-facing texts of the conversation. Every method is
// deterministic: the same inputs always produce the same string.
type Catalog struct {
	locale string
	t      texts
}

type texts struct {
	noResults     string // %q query
	suggestions   []string
	resultsHeader string // %d count, %q query
	resultLine    string // %d index, %s title, %s locality, %s relevance
	page          string // %d page
	noPage        string
	searchFailed  string // %s raw error
	answerFailed  string // %s raw error
	uploaded      string // %d count
	uploadFailed  string // %d count, %s reasons
	removed       string // %s name
	listed        string // %d count
	explainAsk    string
	explanation   string // %d sources analyzed, %s text
}

var catalogs = map[string]texts{
	"en": {
		noResults: "I couldn't find any relevant fragments for %q.",
		suggestions: []string{
			"Try different or more general keywords",
			"Check the spelling of your query",
			"Switch to reasoning mode for questions that need interpretation",
			"Make sure the relevant documents have been uploaded",
		},
		resultsHeader: "Found %d relevant fragment(s) for %q:",
		resultLine:    "%d. **%s** (%s) - relevance %s",
		page:          "page %d",
		noPage:        "no page",
		searchFailed:  "Sorry, the search could not be completed. Error: %s",
		answerFailed:  "Sorry, I couldn't answer your question. Error: %s",
		uploaded:      "%d document(s) uploaded",
		uploadFailed:  "%d file(s) failed: %s",
		removed:       "Document %s removed",
		listed:        "%d document(s) available",
		explainAsk:    "Explain the previous answer",
		explanation:   "**Explanation** (%d source(s) analyzed)\n\n%s",
	},
	"es": {
		noResults: "No encontré fragmentos relevantes para %q.",
		suggestions: []string{
			"Prueba con palabras clave diferentes o más generales",
			"Revisa la ortografía de tu consulta",
			"Cambia al modo de razonamiento para preguntas que requieran interpretación",
			"Asegúrate de que los documentos relevantes estén cargados",
		},
		resultsHeader: "Encontré %d fragmento(s) relevante(s) para %q:",
		resultLine:    "%d. **%s** (%s) - relevancia %s",
		page:          "página %d",
		noPage:        "sin página",
		searchFailed:  "Lo siento, no se pudo completar la búsqueda. Error: %s",
		answerFailed:  "Lo siento, no pude responder tu pregunta. Error: %s",
		uploaded:      "%d documento(s) cargado(s)",
		uploadFailed:  "%d archivo(s) fallaron: %s",
		removed:       "Documento %s eliminado",
		listed:        "%d documento(s) disponibles",
		explainAsk:    "Explica la respuesta anterior",
		explanation:   "**Explicación** (%d fuente(s) analizada(s))\n\n%s",
	},
}

// DefaultLocale is used when the configured locale has no catalog.
const DefaultLocale = "en"

// NewCatalog returns the catalog for locale, falling back to English.
func NewCatalog(locale string) *Catalog {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	t, ok := catalogs[locale]
	if !ok {
		locale = DefaultLocale
		t = catalogs[DefaultLocale]
	}
	return &Catalog{locale: locale, t: t}
}

// Locale returns the resolved locale.
func (c *Catalog) Locale() string { return c.locale }

// Locales lists the available catalogs.
func Locales() []string { return []string{"en", "es"} }

// NoResults is the reply for a literal search without hits.
func (c *Catalog) NoResults(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, c.t.noResults, query)
	b.WriteString("\n")
	for _, s := range c.t.suggestions {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}

// SearchSummary enumerates sources in the order given, one block per source.
func (c *Catalog) SearchSummary(query string, sources []domain.CitationSource, previewChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, c.t.resultsHeader, len(sources), query)
	for i, s := range sources {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, c.t.resultLine, i+1, c.title(s), c.Locality(s), FormatRelevance(s.RelevanceScore))
		if p := Preview(s.Content, previewChars); p != "" {
			b.WriteString("\n   ")
			b.WriteString(p)
		}
	}
	return b.String()
}

// Locality renders the page marker of a source.
func (c *Catalog) Locality(s domain.CitationSource) string {
	if s.PageNumber == nil {
		return c.t.noPage
	}
	return fmt.Sprintf(c.t.page, *s.PageNumber)
}

func (c *Catalog) title(s domain.CitationSource) string {
	if s.DocumentTitle != "" {
		return s.DocumentTitle
	}
	return s.DocumentID
}

// SearchFailed is the assistant narrative for a failed literal search.
func (c *Catalog) SearchFailed(err error) string { return fmt.Sprintf(c.t.searchFailed, err) }

// AnswerFailed is the assistant narrative for a failed reasoning request.
func (c *Catalog) AnswerFailed(err error) string { return fmt.Sprintf(c.t.answerFailed, err) }

// Failure picks the narrative matching mode.
func (c *Catalog) Failure(mode domain.RequestMode, err error) string {
	if mode == domain.ModeLiteralSearch {
		return c.SearchFailed(err)
	}
	return c.AnswerFailed(err)
}

// Uploaded reports how many documents were committed.
func (c *Catalog) Uploaded(n int) string { return fmt.Sprintf(c.t.uploaded, n) }

// UploadFailed summarizes the rejected portion of an upload.
func (c *Catalog) UploadFailed(reasons []string) string {
	return fmt.Sprintf(c.t.uploadFailed, len(reasons), strings.Join(reasons, "; "))
}

// Removed confirms a document removal.
func (c *Catalog) Removed(name string) string { return fmt.Sprintf(c.t.removed, name) }

// Listed reports the size of a refreshed document listing.
func (c *Catalog) Listed(n int) string { return fmt.Sprintf(c.t.listed, n) }

// ExplainRequest is the user message recorded for an explain request.
func (c *Catalog) ExplainRequest() string { return c.t.explainAsk }

// Explanation renders an answer explanation.
func (c *Catalog) Explanation(text string, analyzed int) string {
	return fmt.Sprintf(c.t.explanation, analyzed, strings.TrimSpace(text))
}

// FormatRelevance renders a [0,1] score as a percentage with one decimal,
// rounding half away from zero on the per-mille value.
func FormatRelevance(score float64) string {
	return fmt.Sprintf("%.1f%%", math.Round(ClampRelevance(score)*1000)/10)
}

// FormatBytes renders a size with binary units, e.g. "1.5 KiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatCounts renders a histogram as "a 1, b 2" in key order, or "-" when
// it is empty.
func FormatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s %d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// Preview collapses whitespace and truncates to max runes, marking truncation
// with "...". A non-positive max disables truncation.
func Preview(content string, max int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if max <= 0 {
		return flat
	}
	r := []rune(flat)
	if len(r) <= max {
		return flat
	}
	return string(r[:max]) + "..."
}
