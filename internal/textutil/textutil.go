// Package textutil holds the lexical helpers shared by the test battery,
// the scoring evaluators and the report summarizer.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	spaceRe    = regexp.MustCompile(`[ \t\f\v]+`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
)

// Words returns the lowercased word tokens of text.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// ContentWords returns Words with stopwords removed.
func ContentWords(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// Sentences splits text on terminal punctuation. Text with no terminal
// punctuation is returned as a single sentence.
func Sentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			out = []string{t}
		}
	}
	return out
}

// Normalize folds case, turns punctuation into spaces and collapses runs of
// whitespace. The result is padded with one space on each side so callers
// can match whole words with strings.Contains(" "+needle+" ").
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// ContainsPhrase reports whether needle occurs in haystack on word
// boundaries after normalization. haystack must already be normalized.
func ContainsPhrase(normalizedHaystack, needle string) bool {
	n := Normalize(needle)
	if strings.TrimSpace(n) == "" {
		return false
	}
	return strings.Contains(normalizedHaystack, n)
}

// Clean removes control characters and collapses horizontal whitespace
// while keeping paragraph breaks.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFFFD' {
			return -1
		}
		return r
	}, text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRe.ReplaceAllString(text, "\n\n"))
}

// NGrams returns the distinct n-word phrases of words in first-seen order.
func NGrams(words []string, n int) []string {
	if n <= 0 || len(words) < n {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	var out []string
	for i := 0; i+n <= len(words); i++ {
		p := strings.Join(words[i:i+n], " ")
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Set builds a membership set.
func Set(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// Ochiai returns |a∩b| / sqrt(|a||b|), or 0 when either set is empty.
func Ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(intersect(a, b)) / math.Sqrt(float64(len(a))*float64(len(b)))
}

// Retention returns the share of a that is also in b, or 0 when a is empty.
func Retention(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(intersect(a, b)) / float64(len(a))
}

func intersect(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsStopword reports whether w is an English function word.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

var stopwords = Set([]string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
	"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
	"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
	"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
	"own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "he", "she", "they",
	"his", "her", "their", "which", "who", "whom", "not", "no", "any", "all", "has", "have", "had",
	"do", "does", "did", "would", "could", "may", "shall", "must", "there", "also",
})
