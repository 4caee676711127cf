package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"anonlab/internal/domain"
	"anonlab/pkg/logger"
)

const taggerPrompt = `Identify every identifying entity in the legal text below.
Return ONLY a JSON array. Each item must have:
- "text": the exact text as it appears
- "label": one of person, organization, location, date, legal-citation, court, money, contact, identifier
- "confidence": float 0.0-1.0

Text:
%s

Return ONLY the JSON array, no explanation. Example: [{"text":"John Smith","label":"person","confidence":0.95}]`

// LLMTagger asks the inference service to tag entities, one request per
// window of the chunker so long documents stay inside the model context.
// The model reports surfaces only; each is located inside its window and
// shifted to a document offset.
type LLMTagger struct {
	gen      domain.Generator
	sampling domain.Sampling
	windows  domain.Chunker
}

// NewLLMTagger builds the tagger. A nil chunker sends the whole text in
// one request.
func NewLLMTagger(gen domain.Generator, sampling domain.Sampling, windows domain.Chunker) *LLMTagger {
	return &LLMTagger{gen: gen, sampling: sampling, windows: windows}
}

func (t *LLMTagger) Name() string { return "llm:" + t.gen.Name() }

func (t *LLMTagger) Tag(ctx context.Context, text string) ([]domain.RawEntity, error) {
	chunks := []domain.Chunk{{Start: 0, End: len(text)}}
	if t.windows != nil {
		var err error
		if chunks, err = t.windows.Chunk(domain.Document{Text: text}); err != nil {
			return nil, err
		}
	}
	var out []domain.RawEntity
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := text[ch.Start:ch.End]
		resp, err := t.gen.Generate(ctx, fmt.Sprintf(taggerPrompt, window), t.sampling)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", ch.Index+1, err)
		}
		ents, err := parseTagged(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", ch.Index+1, err)
		}
		for _, e := range ents {
			if i := strings.Index(window, e.Text); i >= 0 {
				e.Start, e.End = ch.Start+i, ch.Start+i+len(e.Text)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func parseTagged(answer string) ([]domain.RawEntity, error) {
	raw := strings.TrimSpace(answer)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in tagger response")
	}
	raw = raw[start : end+1]
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("malformed JSON array in tagger response")
	}
	var entities []domain.RawEntity
	gjson.Parse(raw).ForEach(func(_, item gjson.Result) bool {
		surface := item.Get("text")
		if !surface.Exists() {
			surface = item.Get("original")
		}
		if surface.String() == "" {
			return true
		}
		label := item.Get("label")
		if !label.Exists() {
			label = item.Get("type")
		}
		entities = append(entities, domain.RawEntity{
			Label:      label.String(),
			Text:       surface.String(),
			Start:      -1,
			End:        -1,
			Confidence: item.Get("confidence").Float(),
		})
		return true
	})
	return entities, nil
}

// Chain runs several taggers and merges their output. A tagger error is
// returned only when every tagger fails.
type Chain struct {
	taggers []domain.Tagger
}

func NewChain(taggers ...domain.Tagger) *Chain {
	return &Chain{taggers: taggers}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.taggers))
	for i, t := range c.taggers {
		names[i] = t.Name()
	}
	return strings.Join(names, "+")
}

func (c *Chain) Tag(ctx context.Context, text string) ([]domain.RawEntity, error) {
	var (
		out  []domain.RawEntity
		errs []error
	)
	for _, t := range c.taggers {
		ents, err := t.Tag(ctx, text)
		if err != nil {
			logger.FromContext(ctx).Warn("entity tagger failed", "tagger", t.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		out = append(out, ents...)
	}
	if len(errs) > 0 && len(errs) == len(c.taggers) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
