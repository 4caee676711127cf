package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizer(t *testing.T) {
	t.Run("Should refuse to transform before fitting", func(t *testing.T) {
		var v *Vectorizer
		_, err := v.Transform("text")
		assert.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("Should reject a corpus without content words", func(t *testing.T) {
		_, err := Fit(nil)
		assert.ErrorIs(t, err, ErrEmptyTerms)
		_, err = Fit([]string{"the and of"})
		assert.ErrorIs(t, err, ErrEmptyTerms)
	})

	t.Run("Should produce unit vectors over the fitted vocabulary", func(t *testing.T) {
		v, err := Fit([]string{"contract breach damages", "contract termination notice"})
		require.NoError(t, err)
		assert.Equal(t, 5, v.Size())
		vec, err := v.Transform("contract breach")
		require.NoError(t, err)
		assert.Len(t, vec, 2)
		assert.InDelta(t, 1.0, Cosine(vec, vec), 1e-9)
	})

	t.Run("Should return an empty vector for unknown terms", func(t *testing.T) {
		v, err := Fit([]string{"contract breach"})
		require.NoError(t, err)
		vec, err := v.Transform("zebra")
		require.NoError(t, err)
		assert.Empty(t, vec)
		assert.Zero(t, Cosine(vec, vec))
	})
}

func TestSimilarities(t *testing.T) {
	t.Run("Should rank identical text above unrelated text", func(t *testing.T) {
		query := "The lessee breached the lease by failing to pay rent."
		sims, err := Similarities(query, []string{query, "Quarterly revenue grew in the northern region."})
		require.NoError(t, err)
		require.Len(t, sims, 2)
		assert.InDelta(t, 1.0, sims[0], 1e-9)
		assert.InDelta(t, 0.0, sims[1], 1e-9)
	})

	t.Run("Should return nothing for an empty corpus", func(t *testing.T) {
		sims, err := Similarities("text", nil)
		require.NoError(t, err)
		assert.Empty(t, sims)
	})
}
