package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBPE(t *testing.T) *BPE {
	t.Helper()
	tok, err := NewBPE(defaultEncoding)
	if err != nil {
		t.Skipf("cl100k_base tables unavailable: %v", err)
	}
	return tok
}

func TestBPE(t *testing.T) {
	t.Run("Should return contiguous spans covering the text", func(t *testing.T) {
		tok := newBPE(t)
		text := "Tenant 🙂 paid €1,200 late. Café résumé 😀😀"
		spans := tok.Tokenize(text)
		require.NotEmpty(t, spans)
		assert.Zero(t, spans[0].Start)
		assert.Equal(t, len(text), spans[len(spans)-1].End)
		for i := 1; i < len(spans); i++ {
			assert.Equal(t, spans[i-1].End, spans[i].Start)
		}
		assert.GreaterOrEqual(t, tok.Count(text), len(spans))
	})

	t.Run("Should name the resolved encoding", func(t *testing.T) {
		assert.Equal(t, "bpe:cl100k_base", newBPE(t).Name())
	})

	t.Run("Should count an empty text as zero", func(t *testing.T) {
		tok := newBPE(t)
		assert.Zero(t, tok.Count(""))
		assert.Empty(t, tok.Tokenize(strings.TrimSpace(" ")))
	})
}
