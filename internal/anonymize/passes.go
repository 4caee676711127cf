package anonymize

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"anonlab/internal/domain"
	"anonlab/internal/entity"
)

const (
	PassRewrite = "rewrite"
	PassSweep   = "sweep"
)

// Job is the state of one chunk as it moves through the passes.
type Job struct {
	Index      int
	Source     string
	Text       string
	Strategy   Strategy
	Guidelines string
	Entities   []domain.Entity
}

// Pass transforms a chunk's current text. Passes run in order and each one
// sees the output of the previous pass.
type Pass interface {
	Name() string
	Run(ctx context.Context, job Job) (text string, tokensUsed int, err error)
}

var errEmptyOutput = errors.New("model returned no text")

// RewritePass asks the inference service to rewrite the chunk with the
// strategy's prompt.
type RewritePass struct {
	gen      domain.Generator
	sampling domain.Sampling
}

func NewRewritePass(gen domain.Generator, sampling domain.Sampling) *RewritePass {
	return &RewritePass{gen: gen, sampling: sampling}
}

func (p *RewritePass) Name() string { return PassRewrite }

func (p *RewritePass) Run(ctx context.Context, job Job) (string, int, error) {
	out, err := p.gen.Generate(ctx, job.Strategy.Prompt(job.Text, job.Guidelines), p.sampling)
	if err != nil {
		return "", 0, err
	}
	text := cleanModelOutput(out.Text)
	if text == "" {
		return "", out.TokensUsed, errEmptyOutput
	}
	return text, out.TokensUsed, nil
}

var preambleRe = regexp.MustCompile(`(?i)^(?:sure[,!.]?\s*)?(?:here(?:'s| is) the (?:anonymized|redacted|transformed|rewritten)[^\n:]*:)\s*`)

// cleanModelOutput strips code fences and a leading "Here is the
// anonymized text:" preamble.
func cleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = preambleRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SweepPass replaces every known source entity still present in the text
// with the strategy's replacement. It is deterministic and needs no
// external service.
type SweepPass struct{}

func NewSweepPass() *SweepPass { return &SweepPass{} }

func (p *SweepPass) Name() string { return PassSweep }

func (p *SweepPass) Run(ctx context.Context, job Job) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	text := job.Text
	surfaces := entity.Surfaces(job.Entities)
	for _, e := range surfaces {
		text = replaceSurface(text, e.Text, job.Strategy.Replacement(e.Category), false)
	}
	for _, e := range surfaces {
		if e.Category != domain.EntityPerson {
			continue
		}
		if last := surname(e.Text); last != "" {
			text = replaceSurface(text, last, job.Strategy.Replacement(e.Category), true)
		}
	}
	return text, 0, nil
}

// surname returns the last word of a multi-word person name.
func surname(name string) string {
	f := strings.Fields(name)
	if len(f) < 2 {
		return ""
	}
	last := strings.Trim(f[len(f)-1], ".,")
	if utf8.RuneCountInString(last) < 3 {
		return ""
	}
	return last
}

// replaceSurface replaces word-bounded occurrences of surface. Words of the
// surface may be separated by any run of non-alphanumerics in text, so
// "Acme Corp" also matches "Acme, Corp". Matching is case-insensitive
// unless caseSensitive is set.
func replaceSurface(text, surface, repl string, caseSensitive bool) string {
	re := surfacePattern(surface, caseSensitive)
	if re == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if !wordBounded(text, m[0], m[1]) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(repl)
		last = m[1]
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func surfacePattern(surface string, caseSensitive bool) *regexp.Regexp {
	parts := strings.FieldsFunc(surface, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return nil
	}
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := strings.Join(parts, `[^\p{L}\p{N}]+`)
	// keep a leading currency sign or trailing period that belongs to the surface
	if r, _ := utf8.DecodeRuneInString(surface); !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
		expr = regexp.QuoteMeta(string(r)) + `\s?` + expr
	}
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	return regexp.MustCompile(expr)
}

func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
