package tokenizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"anonlab/internal/domain"
)

const defaultEncoding = "cl100k_base"

// BPE counts tokens the way OpenAI-style models do. Local models tokenize
// differently, so counts are an approximation that errs on the high side
// for English prose.
type BPE struct {
	encoding string
	mu       sync.RWMutex
	tke      *tiktoken.Tiktoken
}

// NewBPE resolves modelOrEncoding as an encoding name first, then as a
// model name, and falls back to cl100k_base.
func NewBPE(modelOrEncoding string) (*BPE, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	encoding := modelOrEncoding
	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(modelOrEncoding)
		if err != nil {
			tke, err = tiktoken.GetEncoding(defaultEncoding)
			if err != nil {
				return nil, fmt.Errorf("load encoding %s: %w", defaultEncoding, err)
			}
		}
		encoding = defaultEncoding
	}
	return &BPE{encoding: encoding, tke: tke}, nil
}

func (b *BPE) Name() string { return KindBPE + ":" + b.encoding }

// Tokenize returns byte spans for each BPE token. Spans are derived from
// the decoded byte length of each token and then widened so they never
// split a UTF-8 sequence. Tokens sharing one rune share one span, so Count
// can exceed the number of spans; the chunker budgets on Count.
func (b *BPE) Tokenize(text string) []domain.Token {
	b.mu.RLock()
	ids := b.tke.Encode(text, nil, nil)
	lengths := make([]int, len(ids))
	for i, id := range ids {
		lengths[i] = len(b.tke.Decode([]int{id}))
	}
	b.mu.RUnlock()

	tokens := make([]domain.Token, 0, len(ids))
	consumed, pos := 0, 0
	for _, n := range lengths {
		consumed += n
		end := min(consumed, len(text))
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		// a token fully inside the previous widened span is merged into it
		if end <= pos {
			continue
		}
		tokens = append(tokens, domain.Token{Start: pos, End: end})
		pos = end
	}
	return tokens
}

func (b *BPE) Count(text string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tke.Encode(text, nil, nil))
}
