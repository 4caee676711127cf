package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"anonlab/internal/anonymize"
	"anonlab/internal/domain"
	"anonlab/internal/resistance"
	"anonlab/internal/scoring"
)

func sampleInput() Input {
	return Input{
		RunID: "run-1",
		Document: domain.Document{
			ID: "doc-1", Source: "smith_v_acme.txt", Text: "John Smith sued Acme Corp.", WordCount: 5, TokenCount: 6,
		},
		Anon: &anonymize.Result{
			Strategy:        anonymize.LiteralRedaction,
			Success:         true,
			Partial:         true,
			ChunksTotal:     3,
			ChunksProcessed: 2,
			ChunksFailed:    1,
			Chunks: []domain.AnonymizedChunk{
				{Index: 0, Success: true},
				{Index: 1, Success: false, Err: "chunk 1 pass rewrite: boom"},
				{Index: 2, Success: true},
			},
			Text:       "[REDACTED] sued [REDACTED]. [[ANONYMIZATION FAILED: chunk 2]]",
			Seams:      []anonymize.SeamWarning{{Left: 0, Right: 1, Reason: "overlap not found, kept untrimmed"}},
			TokensUsed: 42,
		},
		Tests: &resistance.Result{
			State: resistance.StatePartiallyFailed,
			Results: []domain.TestResult{
				{Category: domain.CategoryDirectIdentifier, Score: 100, Risk: domain.RiskLow,
					Findings: []domain.Finding{{Description: "No source entities survived", Severity: domain.SeverityInfo}}},
				{Category: domain.CategoryContextual, Score: 0, Risk: domain.RiskHigh, Failed: true,
					Findings: []domain.Finding{{Description: "contextual-reconstruction test did not complete: timeout", Severity: domain.SeverityHigh}}},
			},
			Risk: resistance.RiskAnalysis{
				High:    []domain.Category{domain.CategoryContextual},
				Low:     []domain.Category{domain.CategoryDirectIdentifier},
				Overall: domain.RiskHigh,
			},
			Recommendations: []string{"Re-run the contextual-reconstruction test; it did not complete"},
		},
		Strategic: domain.StrategicScores{domain.ValueLegalPrinciple: 40, domain.ValueEducational: 30},
		Score:     domain.CompositeScore{Resistance: 82, StrategicValue: 40, Overall: 65.2, Tier: domain.TierPoor},
		Warnings:  []string{"page 2: unreadable"},
		Excerpt:   "The court held the clause void.",
	}
}

func TestNew(t *testing.T) {
	t.Run("Should mark failed chunks and categories as degraded", func(t *testing.T) {
		r := New(sampleInput())
		assert.True(t, r.Degraded())
		assert.Equal(t, []int{2}, r.Anonymization.FailedChunks)
		assert.Equal(t, []domain.Category{domain.CategoryContextual}, r.DegradedCategories)
		assert.Equal(t, resistance.StatePartiallyFailed, r.TestState)
		assert.Len(t, r.Anonymization.Seams, 1)
	})

	t.Run("Should fill the executive summary from the tier", func(t *testing.T) {
		r := New(sampleInput())
		info := scoring.DescribeTier(domain.TierPoor)
		assert.Equal(t, domain.TierPoor, r.Summary.Tier)
		assert.Equal(t, info.Description, r.Summary.Description)
		assert.Equal(t, info.Recommendation, r.Summary.Recommendation)
		assert.Equal(t, "Literal Redaction", r.Strategy.Title)
		assert.Empty(t, r.Strategy.Guidelines)
	})

	t.Run("Should keep guidelines only for custom-guided runs", func(t *testing.T) {
		in := sampleInput()
		in.Anon.Strategy = anonymize.CustomGuided
		in.Guidelines = "Remove employer names."
		r := New(in)
		assert.Equal(t, "Remove employer names.", r.Strategy.Guidelines)
	})

	t.Run("Should not be degraded when everything succeeded", func(t *testing.T) {
		in := sampleInput()
		in.Anon.ChunksFailed = 0
		in.Anon.Chunks[1].Success = true
		in.Tests.Results[1].Failed = false
		assert.False(t, New(in).Degraded())
	})
}

func TestWrite(t *testing.T) {
	r := New(sampleInput())

	t.Run("Should export JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatJSON))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "run-1", got["run_id"])
		score := got["score"].(map[string]any)
		assert.InDelta(t, 65.2, score["overall"], 1e-9)
		assert.Equal(t, "Poor", score["tier"])
	})

	t.Run("Should export YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatYAML))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "smith_v_acme.txt", got["document"].(map[string]any)["source"])
		assert.Contains(t, buf.String(), "degraded_categories:")
	})

	t.Run("Should export Markdown with degradation markers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatMarkdown))
		md := buf.String()
		assert.Contains(t, md, "# Anonymization report: smith\\_v\\_acme.txt")
		assert.Contains(t, md, "**Poor** (overall 65.20): Significant issues. Significant improvements required.")
		assert.Contains(t, md, "1 of 3 chunks could not be anonymized (chunks 2).")
		assert.Contains(t, md, "Test categories that did not complete: contextual-reconstruction.")
		assert.Contains(t, md, "| contextual-reconstruction | 0.00 | High | did not complete |")
		assert.Contains(t, md, "- Seam between chunks 1 and 2: overlap not found, kept untrimmed")
		assert.Contains(t, md, "- High: contextual-reconstruction\n- Medium: none\n- Low: direct-identifier")
		assert.Contains(t, md, "| legal-principle | 40.00 |")
		assert.Contains(t, md, "> The court held the clause void.")
	})

	t.Run("Should render HTML through Markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, r, FormatHTML))
		html := buf.String()
		assert.Contains(t, html, "<!DOCTYPE html>")
		assert.Contains(t, html, "<h2>Executive summary</h2>")
		assert.Contains(t, html, "<table>")
		assert.Contains(t, html, "<td>contextual-reconstruction</td>")
	})

	t.Run("Should reject an unknown format", func(t *testing.T) {
		assert.Error(t, Write(&bytes.Buffer{}, r, Format("pdf")))
	})
}

func TestComparison(t *testing.T) {
	t.Run("Should render the ranking table", func(t *testing.T) {
		cmp := &Comparison{
			RunID:    "run-2",
			Document: DocumentInfo{Source: "memo.txt"},
			Result: scoring.CompareStrategies([]scoring.StrategyScore{
				{Strategy: "literal-redaction", Score: domain.CompositeScore{Resistance: 95, StrategicValue: 20, Overall: 65, Tier: domain.TierPoor}},
				{Strategy: "strategy-preserving", Score: domain.CompositeScore{Resistance: 80, StrategicValue: 70, Overall: 76, Tier: domain.TierAcceptable}},
			}),
		}
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, cmp, FormatMarkdown))
		md := buf.String()
		assert.Contains(t, md, "| 1 | strategy-preserving | 80.00 | 70.00 | 76.00 | Acceptable |")
		assert.Contains(t, md, "- Best security: literal-redaction")
		assert.Contains(t, md, "- Best utility: strategy-preserving")
	})
}

func TestSave(t *testing.T) {
	t.Run("Should create parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "report.md")
		require.NoError(t, Save(path, New(sampleInput()), FormatMarkdown))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "## Recommendations")
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "markdown": FormatMarkdown, "html": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
}
