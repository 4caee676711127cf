package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/domain"
)

func TestWordTokenize(t *testing.T) {
	t.Run("Should split words and punctuation into separate tokens", func(t *testing.T) {
		text := "John Smith v. Acme Corp, Case No. 12-345."
		tok := NewWord()
		tokens := tok.Tokenize(text)
		var got []string
		for _, tk := range tokens {
			got = append(got, text[tk.Start:tk.End])
		}
		assert.Equal(t, []string{
			"John", "Smith", "v", ".", "Acme", "Corp", ",", "Case", "No", ".", "12", "-", "345", ".",
		}, got)
		assert.Equal(t, len(tokens), tok.Count(text))
	})

	t.Run("Should return byte offsets for multibyte text", func(t *testing.T) {
		text := "Café – résumé"
		tokens := NewWord().Tokenize(text)
		require.Len(t, tokens, 3)
		assert.Equal(t, "Café", text[tokens[0].Start:tokens[0].End])
		assert.Equal(t, "–", text[tokens[1].Start:tokens[1].End])
		assert.Equal(t, "résumé", text[tokens[2].Start:tokens[2].End])
	})

	t.Run("Should give invalid bytes one-byte spans", func(t *testing.T) {
		text := "word \xff\xfe next."
		tokens := NewWord().Tokenize(text)
		assert.Equal(t, []domain.Token{{Start: 0, End: 4}, {Start: 5, End: 6}, {Start: 6, End: 7}, {Start: 8, End: 12}, {Start: 12, End: 13}}, tokens)
		for i := 1; i < len(tokens); i++ {
			assert.LessOrEqual(t, tokens[i-1].End, tokens[i].Start)
		}
		assert.LessOrEqual(t, tokens[len(tokens)-1].End, len(text))
	})

	t.Run("Should return no tokens for whitespace", func(t *testing.T) {
		assert.Empty(t, NewWord().Tokenize(" \n\t "))
	})
}

func TestNew(t *testing.T) {
	t.Run("Should default to the word tokenizer", func(t *testing.T) {
		tok, err := New("", "")
		require.NoError(t, err)
		assert.Equal(t, KindWord, tok.Name())
	})

	t.Run("Should reject unknown kinds", func(t *testing.T) {
		_, err := New("sentencepiece", "")
		assert.Error(t, err)
	})
}
