package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"anonlab/internal/domain"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format: %q", s)
}

// Document is anything the exporters can render: a single-run report or a
// strategy comparison.
type Document interface {
	markdown() string
}

// Write renders doc in format f.
func Write(w io.Writer, doc Document, f Format) error {
	switch f {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, doc.markdown())
		return err
	case FormatHTML:
		return renderHTML(w, doc.markdown())
	}
	return fmt.Errorf("unknown report format: %q", f)
}

// Save writes doc to path, creating directories as needed.
func Save(path string, doc Document, f Format) error {
	var buf bytes.Buffer
	if err := Write(&buf, doc, f); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

const htmlHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Anonymization report</title>
<style>body{font-family:sans-serif;max-width:60em;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3em .6em}</style>
</head><body>
`

func renderHTML(w io.Writer, md string) error {
	var body bytes.Buffer
	gm := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := gm.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body></html>\n")
	return err
}

func (r *Report) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Anonymization report: %s\n\n", mdEscape(r.Document.Source))
	fmt.Fprintf(&b, "Run `%s`, generated %s.\n\n", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Executive summary\n\n")
	fmt.Fprintf(&b, "**%s** (overall %.2f): %s. %s.\n\n", r.Summary.Tier, r.Score.Overall, r.Summary.Description, r.Summary.Recommendation)
	if r.Degraded() {
		b.WriteString("> **Degraded run.** ")
		if n := r.Anonymization.ChunksFailed; n > 0 {
			fmt.Fprintf(&b, "%d of %d chunks could not be anonymized (chunks %s). ", n, r.Anonymization.ChunksTotal, joinInts(r.Anonymization.FailedChunks))
		}
		if len(r.DegradedCategories) > 0 {
			fmt.Fprintf(&b, "Test categories that did not complete: %s.", joinCategories(r.DegradedCategories))
		}
		b.WriteString("\n\n")
	}
	b.WriteString("| Metric | Score |\n|---|---|\n")
	fmt.Fprintf(&b, "| Resistance | %.2f |\n| Strategic value | %.2f |\n| Overall | %.2f |\n\n", r.Score.Resistance, r.Score.StrategicValue, r.Score.Overall)

	fmt.Fprintf(&b, "## Strategy\n\n%s (`%s`)", r.Strategy.Title, r.Strategy.Name)
	if r.Strategy.Guidelines != "" {
		fmt.Fprintf(&b, " with guidelines: %s", mdEscape(r.Strategy.Guidelines))
	}
	fmt.Fprintf(&b, "\n\nDocument: %d words, %d tokens, %d chunks (%d processed, %d failed), %d tokens used.\n\n",
		r.Document.Words, r.Document.Tokens, r.Anonymization.ChunksTotal, r.Anonymization.ChunksProcessed,
		r.Anonymization.ChunksFailed, r.Anonymization.TokensUsed)
	for _, s := range r.Anonymization.Seams {
		fmt.Fprintf(&b, "- Seam between chunks %d and %d: %s\n", s.Left+1, s.Right+1, s.Reason)
	}
	if len(r.Anonymization.Seams) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Reconstruction tests\n\n| Category | Score | Risk | Status |\n|---|---|---|---|\n")
	for _, t := range r.Tests {
		status := "ok"
		if t.Failed {
			status = "did not complete"
		}
		fmt.Fprintf(&b, "| %s | %.2f | %s | %s |\n", t.Category, t.Score, t.Risk, status)
	}
	b.WriteString("\n")
	for _, t := range r.Tests {
		if len(t.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", t.Category)
		for _, f := range t.Findings {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.Severity, mdEscape(f.Description))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Risk analysis\n\nOverall risk: **%s**\n\n", r.Risk.Overall)
	fmt.Fprintf(&b, "- High: %s\n- Medium: %s\n- Low: %s\n\n",
		orNone(joinCategories(r.Risk.High)), orNone(joinCategories(r.Risk.Medium)), orNone(joinCategories(r.Risk.Low)))

	if len(r.Strategic) > 0 {
		b.WriteString("## Strategic value\n\n| Dimension | Score |\n|---|---|\n")
		for _, d := range domain.ValueDimensions {
			fmt.Fprintf(&b, "| %s | %.2f |\n", d, r.Strategic[d])
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", mdEscape(rec))
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("## Extraction warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", mdEscape(w))
		}
		b.WriteString("\n")
	}
	if r.Excerpt != "" {
		fmt.Fprintf(&b, "## Excerpt\n\n%s\n", quote(r.Excerpt))
	}
	return b.String()
}

func (c *Comparison) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Strategy comparison: %s\n\n", mdEscape(c.Document.Source))
	fmt.Fprintf(&b, "Run `%s`, generated %s.\n\n", c.RunID, c.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("| Rank | Strategy | Resistance | Strategic value | Overall | Tier |\n|---|---|---|---|---|---|\n")
	for i, s := range c.Result.Ranking {
		fmt.Fprintf(&b, "| %d | %s | %.2f | %.2f | %.2f | %s |\n",
			i+1, s.Strategy, s.Score.Resistance, s.Score.StrategicValue, s.Score.Overall, s.Score.Tier)
	}
	fmt.Fprintf(&b, "\n- Best overall: %s\n- Best security: %s\n- Best utility: %s\n",
		c.Result.BestOverall, c.Result.BestSecurity, c.Result.BestUtility)
	return b.String()
}

var mdEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string { return mdEscaper.Replace(s) }

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + mdEscape(l)
	}
	return strings.Join(lines, "\n")
}

func joinInts(vals []int) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = fmt.Sprint(v)
	}
	return strings.Join(s, ", ")
}

func joinCategories(cats []domain.Category) string {
	s := make([]string, len(cats))
	for i, c := range cats {
		s[i] = string(c)
	}
	return strings.Join(s, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
