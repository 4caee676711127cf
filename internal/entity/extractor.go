// Package entity turns raw tagger output into the canonical entity set
// used by the anonymization sweep and the reconstruction tests.
package entity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"anonlab/internal/domain"
	"anonlab/pkg/logger"
)

const (
	DefaultCacheSize = 256
	minSurfaceRunes  = 2
)

type Options struct {
	CacheSize     int
	MinConfidence float64
}

// Extractor normalizes and caches the output of a Tagger.
type Extractor struct {
	tagger        domain.Tagger
	cache         *lru.Cache[string, []domain.Entity]
	minConfidence float64
}

func NewExtractor(tagger domain.Tagger, opts Options) (*Extractor, error) {
	if tagger == nil {
		return nil, fmt.Errorf("entity tagger is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []domain.Entity](size)
	if err != nil {
		return nil, fmt.Errorf("create entity cache: %w", err)
	}
	return &Extractor{tagger: tagger, cache: cache, minConfidence: opts.MinConfidence}, nil
}

// ExtractEntities returns the entities of text sorted by position. Results
// are cached by content hash; callers must not modify the returned slice.
func (e *Extractor) ExtractEntities(ctx context.Context, text string) ([]domain.Entity, error) {
	key := hashText(text)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	raw, err := e.tagger.Tag(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("tag entities with %s: %w", e.tagger.Name(), err)
	}
	entities := e.normalize(text, raw)
	logger.FromContext(ctx).Debug("entities extracted", "tagger", e.tagger.Name(), "raw", len(raw), "kept", len(entities))
	e.cache.Add(key, entities)
	return entities, nil
}

func (e *Extractor) normalize(text string, raw []domain.RawEntity) []domain.Entity {
	type spanKey struct{ start, end int }
	best := make(map[spanKey]domain.Entity, len(raw))
	for _, r := range raw {
		start, end, ok := locate(text, r)
		if !ok {
			continue
		}
		conf := clampConfidence(r.Confidence)
		if conf < e.minConfidence {
			continue
		}
		ent := domain.Entity{
			Category:   Category(r.Label),
			Text:       text[start:end],
			Start:      start,
			End:        end,
			Confidence: conf,
			Source:     e.tagger.Name(),
		}
		k := spanKey{start, end}
		if prev, exists := best[k]; exists && prev.Confidence >= ent.Confidence {
			continue
		}
		best[k] = ent
	}
	out := make([]domain.Entity, 0, len(best))
	for _, ent := range best {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// locate validates the reported span and re-finds the surface text when
// the span does not match it.
func locate(text string, r domain.RawEntity) (int, int, bool) {
	surface := strings.TrimSpace(r.Text)
	inRange := r.Start >= 0 && r.End <= len(text) && r.Start < r.End
	if surface == "" {
		if !inRange || strings.TrimSpace(text[r.Start:r.End]) == "" {
			return 0, 0, false
		}
		return r.Start, r.End, true
	}
	if inRange && text[r.Start:r.End] == surface {
		return r.Start, r.End, true
	}
	from := 0
	if r.Start > 0 && r.Start < len(text) {
		from = r.Start
	}
	if i := strings.Index(text[from:], surface); i >= 0 {
		return from + i, from + i + len(surface), true
	}
	if i := strings.Index(text, surface); i >= 0 {
		return i, i + len(surface), true
	}
	return 0, 0, false
}

// clampConfidence treats an unscored entity (0 or NaN) as certain.
func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c == 0:
		return 1
	case c < 0:
		return 0
	}
	return math.Min(c, 1)
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:16])
}

// Surfaces returns the distinct entity texts, longest first, so that
// replacing them in order never leaves a fragment of a longer surface.
// Single-character surfaces are dropped; replacing them would rewrite every
// occurrence of that character.
func Surfaces(entities []domain.Entity) []domain.Entity {
	seen := make(map[string]struct{}, len(entities))
	var out []domain.Entity
	for _, e := range entities {
		k := strings.ToLower(strings.TrimSpace(e.Text))
		if utf8.RuneCountInString(k) < minSurfaceRunes {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Text) > len(out[j].Text) })
	return out
}
