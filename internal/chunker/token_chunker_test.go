package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/domain"
	"anonlab/internal/tokenizer"
)

const scenarioText = "John Smith v. Acme Corp, Case No. 12-345. Jane Doe testified on 2023-01-05."

func newChunker(t *testing.T, budget, overlap, lookback int) *TokenChunker {
	t.Helper()
	c, err := NewTokenChunker(tokenizer.NewWord(), Config{
		BudgetTokens:   budget,
		OverlapTokens:  overlap,
		LookbackTokens: lookback,
	})
	require.NoError(t, err)
	return c
}

func longDocument() string {
	var b strings.Builder
	for p := 0; p < 6; p++ {
		for s := 0; s < 5; s++ {
			b.WriteString("The court held that the contract between the parties was binding and enforceable. ")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestNewTokenChunker(t *testing.T) {
	t.Run("Should reject budget not greater than overlap", func(t *testing.T) {
		_, err := NewTokenChunker(tokenizer.NewWord(), Config{BudgetTokens: 10, OverlapTokens: 10})
		var ce *domain.ChunkingError
		require.True(t, errors.As(err, &ce))
	})

	t.Run("Should reject non-positive budget", func(t *testing.T) {
		_, err := NewTokenChunker(tokenizer.NewWord(), Config{BudgetTokens: 0})
		assert.Error(t, err)
	})

	t.Run("Should reject negative overlap", func(t *testing.T) {
		_, err := NewTokenChunker(tokenizer.NewWord(), Config{BudgetTokens: 10, OverlapTokens: -1})
		assert.Error(t, err)
	})
}

func TestTokenChunker_Chunk(t *testing.T) {
	t.Run("Should return a single chunk when the document fits the budget", func(t *testing.T) {
		c := newChunker(t, 50, 10, 20)
		doc := domain.Document{ID: "d1", Text: scenarioText}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len(scenarioText), chunks[0].End)
		assert.Equal(t, scenarioText, chunks[0].Text(doc))
	})

	t.Run("Should fail on empty documents", func(t *testing.T) {
		c := newChunker(t, 50, 10, 20)
		_, err := c.Chunk(domain.Document{Text: "  \n\t"})
		var ce *domain.ChunkingError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("Should cover every token exactly once outside overlaps", func(t *testing.T) {
		for _, tc := range []struct{ budget, overlap, lookback int }{
			{40, 8, 15},
			{25, 0, 10},
			{60, 20, 30},
			{12, 11, 0},
		} {
			c := newChunker(t, tc.budget, tc.overlap, tc.lookback)
			doc := domain.Document{Text: longDocument()}
			chunks, err := c.Chunk(doc)
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)

			assert.Equal(t, doc.Text, Reassemble(doc, chunks))
			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, len(doc.Text), chunks[len(chunks)-1].End)
			for i, ch := range chunks {
				assert.Equal(t, i, ch.Index)
				assert.LessOrEqual(t, ch.TokenCount, tc.budget)
				if i == 0 {
					assert.Zero(t, ch.OverlapTokens)
					continue
				}
				prev := chunks[i-1]
				assert.Greater(t, ch.Start, prev.Start, "chunks must advance")
				assert.LessOrEqual(t, ch.Start, prev.End)
				assert.Equal(t, tc.overlap, ch.OverlapTokens)
				shared := doc.Text[ch.Start:prev.End]
				assert.Equal(t, tc.overlap, tokenizer.NewWord().Count(shared))
			}
		}
	})

	t.Run("Should prefer paragraph breaks within the lookback window", func(t *testing.T) {
		c := newChunker(t, 80, 5, 40)
		doc := domain.Document{Text: longDocument()}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		first := chunks[0].Text(doc)
		assert.True(t, strings.HasSuffix(first, "\n\n"), "expected cut at paragraph, got %q", first[len(first)-20:])
	})

	t.Run("Should snap to sentence ends but not abbreviations", func(t *testing.T) {
		text := strings.Repeat("Smith v. Jones was decided today. ", 10)
		c := newChunker(t, 20, 2, 10)
		doc := domain.Document{Text: text}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		for _, ch := range chunks[:len(chunks)-1] {
			body := strings.TrimSpace(ch.Text(doc))
			assert.True(t, strings.HasSuffix(body, "today."), "chunk ends mid-sentence: %q", body)
		}
	})
}

// emojiTokenizer splits like the word tokenizer but counts every emoji as
// two model tokens, the way byte-level BPE splits a multi-byte rune.
type emojiTokenizer struct {
	*tokenizer.Word
}

func (e emojiTokenizer) Count(text string) int {
	return e.Word.Count(text) + strings.Count(text, "🙂")
}

func TestTokenChunker_Budget(t *testing.T) {
	t.Run("Should keep windows within the budget of the tokenizer count", func(t *testing.T) {
		tok := emojiTokenizer{tokenizer.NewWord()}
		c, err := NewTokenChunker(tok, Config{BudgetTokens: 10, OverlapTokens: 2, LookbackTokens: 3})
		require.NoError(t, err)
		doc := domain.Document{Text: strings.Repeat("Rent 🙂 🙂 paid late. ", 15)}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		assert.Equal(t, doc.Text, Reassemble(doc, chunks))
		for i, ch := range chunks {
			body := ch.Text(doc)
			assert.LessOrEqual(t, tok.Count(body), 10, "chunk %d: %q", i, body)
			assert.Equal(t, tok.Count(body), ch.TokenCount)
			if i > 0 {
				assert.Equal(t, 2, tok.Word.Count(doc.Text[ch.Start:chunks[i-1].End]))
			}
		}
	})

	t.Run("Should split a short document whose tokenizer count exceeds the budget", func(t *testing.T) {
		tok := emojiTokenizer{tokenizer.NewWord()}
		c, err := NewTokenChunker(tok, Config{BudgetTokens: 6, OverlapTokens: 1})
		require.NoError(t, err)
		doc := domain.Document{Text: "🙂 🙂 🙂 🙂 🙂"}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		for _, ch := range chunks {
			assert.LessOrEqual(t, tok.Count(ch.Text(doc)), 6)
		}
		assert.Equal(t, doc.Text, Reassemble(doc, chunks))
	})

	t.Run("Should keep BPE windows within the model token budget", func(t *testing.T) {
		tok, err := tokenizer.NewBPE("cl100k_base")
		if err != nil {
			t.Skipf("cl100k_base tables unavailable: %v", err)
		}
		c, err := NewTokenChunker(tok, Config{BudgetTokens: 16, OverlapTokens: 3, LookbackTokens: 4})
		require.NoError(t, err)
		doc := domain.Document{Text: strings.Repeat("The lessee 🙂😀 paid €1,200 late. ", 12)}
		chunks, err := c.Chunk(doc)
		require.NoError(t, err)
		assert.Equal(t, doc.Text, Reassemble(doc, chunks))
		for _, ch := range chunks {
			assert.LessOrEqual(t, tok.Count(ch.Text(doc)), 16)
		}
	})

	t.Run("Should chunk text containing invalid UTF-8 without panicking", func(t *testing.T) {
		c := newChunker(t, 10, 2, 0)
		doc := domain.Document{Text: strings.Repeat("word \xff\xfe next. ", 20)}
		var chunks []domain.Chunk
		require.NotPanics(t, func() {
			var err error
			chunks, err = c.Chunk(doc)
			require.NoError(t, err)
		})
		assert.Equal(t, doc.Text, Reassemble(doc, chunks))
		for _, ch := range chunks {
			assert.LessOrEqual(t, ch.TokenCount, 10)
		}
	})
}

func TestReassemble(t *testing.T) {
	t.Run("Should drop overlapping spans", func(t *testing.T) {
		doc := domain.Document{Text: "abcdefghij"}
		chunks := []domain.Chunk{{Index: 0, Start: 0, End: 6}, {Index: 1, Start: 4, End: 10}}
		assert.Equal(t, "abcdefghij", Reassemble(doc, chunks))
	})
}
