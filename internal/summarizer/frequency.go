package summarizer

import (
	"math"
	"sort"
	"strings"

	"anonlab/internal/textutil"
)

// FrequencySummarizer ranks sentences by content-word frequency.
type FrequencySummarizer struct {
	maxSentences int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker. A
// non-positive maxSentences defaults to 5.
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &FrequencySummarizer{maxSentences: maxSentences}
}

// Summarize returns the highest ranked sentences in document order.
func (s *FrequencySummarizer) Summarize(text string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range textutil.ContentWords(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		words := textutil.Words(sent)
		sscore := 0.0
		for _, tok := range words {
			sscore += freq[tok]
		}
		// normalize by sentence length to avoid bias
		if l := float64(len(words)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(s.maxSentences, len(scores))
	// keep original order among selected
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}
