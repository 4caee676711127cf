package anonymize

import (
	"math"
	"strings"
	"unicode"
)

// SeamConfig controls overlap removal between consecutive chunk outputs.
type SeamConfig struct {
	// MinAlignWords is the shortest word run accepted as an alignment.
	MinAlignWords int
	// MaxAlignWords bounds the search window on each side of a seam.
	MaxAlignWords int
	// Tolerance is the share of mismatched word positions allowed within
	// an alignment. Zero requires an exact match.
	Tolerance float64
}

// SeamWarning marks a seam whose overlap could not be located.
type SeamWarning struct {
	Left   int    `json:"left" yaml:"left"`
	Right  int    `json:"right" yaml:"right"`
	Reason string `json:"reason" yaml:"reason"`
}

type word struct {
	norm       string
	start, end int
}

func splitWords(s string) []word {
	var out []word
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, word{norm: normWord(s[start:i]), start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, word{norm: normWord(s[start:]), start: start, end: len(s)})
	}
	return out
}

func normWord(w string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, w)
}

// align returns the number of leading words of right that duplicate the
// trailing words of left, or 0 when no run of at least MinAlignWords
// matches within the tolerance. The longest qualifying run wins. The first
// word of right may be the tail of a word split by the chunk boundary.
func align(left, right []word, cfg SeamConfig) int {
	minK := max(cfg.MinAlignWords, 1)
	maxK := min(len(left), len(right))
	if cfg.MaxAlignWords > 0 {
		maxK = min(maxK, cfg.MaxAlignWords)
	}
	for k := maxK; k >= minK; k-- {
		allowed := int(math.Floor(cfg.Tolerance * float64(k)))
		off := len(left) - k
		mismatches := 0
		if !strings.HasSuffix(left[off].norm, right[0].norm) {
			mismatches++
		}
		for j := 1; j < k && mismatches <= allowed; j++ {
			if left[off+j].norm != right[j].norm {
				mismatches++
			}
		}
		if mismatches <= allowed {
			return k
		}
	}
	return 0
}

// joinSeam appends right to left, dropping the first k words of right.
func joinSeam(b *strings.Builder, right string, rw []word, k int) {
	if k > 0 && k <= len(rw) {
		right = right[rw[k-1].end:]
	}
	cur := b.String()
	if cur != "" && right != "" && !endsWithSpace(cur) && !startsWithSpace(right) {
		b.WriteByte(' ')
	}
	b.WriteString(right)
}

func endsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[len(s)-1]))
}

func startsWithSpace(s string) bool {
	return s != "" && unicode.IsSpace(rune(s[0]))
}
