// Package tokenizer counts and splits text into model-countable units.
package tokenizer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"anonlab/internal/domain"
)

const (
	KindWord = "word"
	KindBPE  = "bpe"
)

// New builds the tokenizer selected by configuration. model is only used by
// the BPE tokenizer and may name a model or an encoding.
func New(kind, model string) (domain.Tokenizer, error) {
	switch kind {
	case KindWord, "":
		return NewWord(), nil
	case KindBPE:
		return NewBPE(model)
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", kind)
	}
}

// Word treats every maximal run of letters and digits as one token and
// every other non-space rune as a token of its own.
type Word struct{}

func NewWord() *Word { return &Word{} }

func (w *Word) Name() string { return KindWord }

func (w *Word) Tokenize(text string) []domain.Token {
	var tokens []domain.Token
	inWord := false
	start := 0
	for i, r := range text {
		switch {
		case isWordRune(r):
			if !inWord {
				inWord = true
				start = i
			}
		default:
			if inWord {
				tokens = append(tokens, domain.Token{Start: start, End: i})
				inWord = false
			}
			if !unicode.IsSpace(r) {
				// invalid bytes decode as RuneError with width 1
				_, width := utf8.DecodeRuneInString(text[i:])
				tokens = append(tokens, domain.Token{Start: i, End: i + width})
			}
		}
	}
	if inWord {
		tokens = append(tokens, domain.Token{Start: start, End: len(text)})
	}
	return tokens
}

func (w *Word) Count(text string) int {
	return len(w.Tokenize(text))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
