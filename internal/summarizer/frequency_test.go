package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequencySummarizer(t *testing.T) {
	text := "The lease was terminated. The tenant paid the lease deposit and the lease rent. " +
		"Weather was pleasant. The landlord returned the lease deposit."

	t.Run("Should keep the top sentences in document order", func(t *testing.T) {
		got := NewFrequencySummarizer(2).Summarize(text)
		assert.Equal(t, "The tenant paid the lease deposit and the lease rent. The landlord returned the lease deposit.", got)
	})

	t.Run("Should return the whole text when it has fewer sentences than the limit", func(t *testing.T) {
		assert.Equal(t, "Only one sentence here.", NewFrequencySummarizer(0).Summarize("Only one sentence here."))
	})

	t.Run("Should return nothing for blank text", func(t *testing.T) {
		assert.Empty(t, NewFrequencySummarizer(3).Summarize("   "))
	})
}
