package chunker

import (
	"strings"

	"anonlab/internal/domain"
)

// Config bounds the chunk windows. Values are in tokenizer units.
type Config struct {
	BudgetTokens   int
	OverlapTokens  int
	LookbackTokens int
}

// TokenChunker splits text into windows of at most BudgetTokens tokens.
// Consecutive windows share exactly OverlapTokens tokens. Cut points snap
// to a paragraph break, then to a sentence end, then to any whitespace,
// found within LookbackTokens of the hard cut.
type TokenChunker struct {
	tok      domain.Tokenizer
	budget   int
	overlap  int
	lookback int
}

func NewTokenChunker(tok domain.Tokenizer, cfg Config) (*TokenChunker, error) {
	if tok == nil {
		return nil, &domain.ChunkingError{Reason: "tokenizer is required"}
	}
	if cfg.BudgetTokens <= 0 {
		return nil, &domain.ChunkingError{Reason: "budget must be positive"}
	}
	if cfg.OverlapTokens < 0 {
		return nil, &domain.ChunkingError{Reason: "overlap cannot be negative"}
	}
	if cfg.BudgetTokens <= cfg.OverlapTokens {
		return nil, &domain.ChunkingError{Reason: "budget must be greater than overlap"}
	}
	if cfg.LookbackTokens < 0 {
		cfg.LookbackTokens = 0
	}
	return &TokenChunker{
		tok:      tok,
		budget:   cfg.BudgetTokens,
		overlap:  cfg.OverlapTokens,
		lookback: cfg.LookbackTokens,
	}, nil
}

func (c *TokenChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ChunkingError{Reason: "document is empty"}
	}
	tokens := c.tok.Tokenize(text)
	n := len(tokens)
	if n == 0 {
		return nil, &domain.ChunkingError{Reason: "document has no tokens"}
	}
	if n <= c.budget {
		if count := c.tok.Count(text); count <= c.budget {
			return []domain.Chunk{{Index: 0, Start: 0, End: len(text), TokenCount: count}}, nil
		}
	}

	var chunks []domain.Chunk
	first, start, overlapPrev := 0, 0, 0
	for {
		hard := first + c.budget
		if hard >= n {
			count := c.tok.Count(text[start:])
			if count <= c.budget || first+c.overlap+1 >= n {
				chunks = append(chunks, domain.Chunk{
					Index:         len(chunks),
					Start:         start,
					End:           len(text),
					TokenCount:    count,
					OverlapTokens: overlapPrev,
				})
				return chunks, nil
			}
			hard = n - 1
		}
		cut := c.snap(text, tokens, first, hard)
		cut, count := c.fit(text, tokens, start, first, cut)
		chunks = append(chunks, domain.Chunk{
			Index:         len(chunks),
			Start:         start,
			End:           tokens[cut].Start,
			TokenCount:    count,
			OverlapTokens: overlapPrev,
		})
		first = cut - c.overlap
		start = tokens[first].Start
		overlapPrev = c.overlap
	}
}

// fit moves cut back until the window counts within the budget under the
// tokenizer's own Count, which can exceed the number of spans when a span
// covers several model tokens. The window never shrinks below one token
// past the overlap.
func (c *TokenChunker) fit(text string, tokens []domain.Token, start, first, cut int) (int, int) {
	floor := first + c.overlap + 1
	count := c.tok.Count(text[start:tokens[cut].Start])
	for count > c.budget && cut > floor {
		cut = max(floor, cut-(count-c.budget))
		count = c.tok.Count(text[start:tokens[cut].Start])
	}
	return cut, count
}

// snap returns the index of the first token of the next window's
// non-overlapping part. The result lies in (first+overlap, hard] so every
// window advances.
func (c *TokenChunker) snap(text string, tokens []domain.Token, first, hard int) int {
	lo := max(first+c.overlap+1, hard-c.lookback)
	for cut := hard; cut >= lo; cut-- {
		if isParagraphBreak(gap(text, tokens, cut)) {
			return cut
		}
	}
	for cut := hard; cut >= lo; cut-- {
		if isSentenceEnd(text, tokens, cut) {
			return cut
		}
	}
	for cut := hard; cut >= lo; cut-- {
		if gap(text, tokens, cut) != "" {
			return cut
		}
	}
	return hard
}

func gap(text string, tokens []domain.Token, cut int) string {
	return text[tokens[cut-1].End:tokens[cut].Start]
}

func isParagraphBreak(g string) bool {
	return strings.Count(g, "\n") >= 2
}

var abbreviations = map[string]struct{}{
	"v": {}, "vs": {}, "no": {}, "nos": {}, "mr": {}, "mrs": {}, "ms": {}, "dr": {},
	"inc": {}, "corp": {}, "co": {}, "ltd": {}, "llc": {}, "jr": {}, "sr": {}, "st": {},
	"etc": {}, "al": {}, "art": {}, "sec": {}, "para": {}, "cf": {}, "id": {}, "supp": {},
	"app": {}, "cir": {}, "ct": {}, "ed": {}, "e": {}, "g": {}, "i": {}, "u": {}, "s": {},
}

// isSentenceEnd reports whether the boundary before tokens[cut] follows a
// terminal punctuation mark that is not part of an abbreviation.
func isSentenceEnd(text string, tokens []domain.Token, cut int) bool {
	if gap(text, tokens, cut) == "" {
		return false
	}
	i := cut - 1
	last := text[tokens[i].Start:tokens[i].End]
	if (last == `"` || last == ")" || last == "'" || last == "”") && i > 0 {
		i--
		last = text[tokens[i].Start:tokens[i].End]
	}
	switch last {
	case "!", "?":
		return true
	case ".":
		if i == 0 {
			return true
		}
		prev := strings.ToLower(text[tokens[i-1].Start:tokens[i-1].End])
		if tokens[i-1].End != tokens[i].Start {
			return true
		}
		_, abbr := abbreviations[prev]
		return !abbr
	}
	return false
}

// Reassemble concatenates the non-overlapping part of every chunk. For a
// valid chunk sequence the result equals doc.Text.
func Reassemble(doc domain.Document, chunks []domain.Chunk) string {
	var b strings.Builder
	b.Grow(len(doc.Text))
	for i, ch := range chunks {
		from := ch.Start
		if i > 0 {
			from = chunks[i-1].End
		}
		b.WriteString(doc.Text[from:ch.End])
	}
	return b.String()
}
