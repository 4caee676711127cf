package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/chunker"
	"anonlab/internal/domain"
	"anonlab/internal/tokenizer"
)

const scenario = "John Smith v. Acme Corp, Case No. 12-345, filed by attorney Jane Doe on 2023-01-05."

type stubTagger struct {
	name  string
	ents  []domain.RawEntity
	err   error
	calls int
}

func (s *stubTagger) Name() string { return s.name }

func (s *stubTagger) Tag(_ context.Context, _ string) ([]domain.RawEntity, error) {
	s.calls++
	return s.ents, s.err
}

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(_ context.Context, _ string, _ domain.Sampling) (domain.Generation, error) {
	return domain.Generation{Text: g.answer}, g.err
}

func (g *stubGenerator) Health(context.Context) error { return nil }

// windowGenerator tags the known names present in each prompt.
type windowGenerator struct {
	names   []string
	prompts []string
}

func (g *windowGenerator) Name() string { return "window" }

func (g *windowGenerator) Generate(_ context.Context, prompt string, _ domain.Sampling) (domain.Generation, error) {
	g.prompts = append(g.prompts, prompt)
	var items []string
	for _, n := range g.names {
		if strings.Contains(prompt, n) {
			items = append(items, fmt.Sprintf(`{"text":%q,"label":"person","confidence":0.9}`, n))
		}
	}
	return domain.Generation{Text: "[" + strings.Join(items, ",") + "]"}, nil
}

func (g *windowGenerator) Health(context.Context) error { return nil }

func surfaceMap(ents []domain.Entity) map[string]domain.EntityCategory {
	m := make(map[string]domain.EntityCategory, len(ents))
	for _, e := range ents {
		m[e.Text] = e.Category
	}
	return m
}

func TestRuleTagger(t *testing.T) {
	t.Run("Should find the five identifiers of the caption scenario", func(t *testing.T) {
		ex, err := NewExtractor(NewRuleTagger(), Options{})
		require.NoError(t, err)
		ents, err := ex.ExtractEntities(context.Background(), scenario)
		require.NoError(t, err)
		assert.Equal(t, map[string]domain.EntityCategory{
			"John Smith": domain.EntityPerson,
			"Acme Corp":  domain.EntityOrganization,
			"12-345":     domain.EntityLegalCitation,
			"Jane Doe":   domain.EntityPerson,
			"2023-01-05": domain.EntityDate,
		}, surfaceMap(ents))
		for i := 1; i < len(ents); i++ {
			assert.LessOrEqual(t, ents[i-1].Start, ents[i].Start)
		}
	})

	t.Run("Should find courts, statutes, money and contacts", func(t *testing.T) {
		text := "The District Court for the Southern District of New York awarded $2.5 million under 42 U.S.C. § 1983. " +
			"Contact counsel at jdoe@example.com or 555-123-4567. SSN 123-45-6789."
		ex, err := NewExtractor(NewRuleTagger(), Options{})
		require.NoError(t, err)
		ents, err := ex.ExtractEntities(context.Background(), text)
		require.NoError(t, err)
		got := surfaceMap(ents)
		assert.Equal(t, domain.EntityCourt, got["District Court for the Southern District of New York"])
		assert.Equal(t, domain.EntityMoney, got["$2.5 million"])
		assert.Equal(t, domain.EntityLegalCitation, got["42 U.S.C. § 1983"])
		assert.Equal(t, domain.EntityContact, got["jdoe@example.com"])
		assert.Equal(t, domain.EntityContact, got["555-123-4567"])
		assert.Equal(t, domain.EntityIdentifier, got["123-45-6789"])
	})

	t.Run("Should not tag one-digit case numbers", func(t *testing.T) {
		ents, err := NewRuleTagger().Tag(context.Background(), "See Case No. 7 and Case No. 12 on page 7.")
		require.NoError(t, err)
		var got []string
		for _, e := range ents {
			if e.Label == string(domain.EntityLegalCitation) {
				got = append(got, e.Text)
			}
		}
		assert.Equal(t, []string{"12"}, got)
	})

	t.Run("Should strip leading function words from caption parties", func(t *testing.T) {
		ents, err := NewRuleTagger().Tag(context.Background(), "In Brown v. Board of Education the court ruled.")
		require.NoError(t, err)
		var texts []string
		for _, e := range ents {
			texts = append(texts, e.Text)
		}
		assert.Contains(t, texts, "Brown")
		assert.Contains(t, texts, "Board of Education")
	})
}

func TestExtractor(t *testing.T) {
	t.Run("Should relocate wrong spans and drop unknown surfaces", func(t *testing.T) {
		tagger := &stubTagger{name: "stub", ents: []domain.RawEntity{
			{Label: "PERSON", Text: "Jane Doe", Start: 0, End: 8},
			{Label: "ORG", Text: "Nowhere Inc", Start: 3, End: 9},
			{Label: "GPE", Text: "", Start: 500, End: 510},
		}}
		ex, err := NewExtractor(tagger, Options{})
		require.NoError(t, err)
		ents, err := ex.ExtractEntities(context.Background(), scenario)
		require.NoError(t, err)
		require.Len(t, ents, 1)
		assert.Equal(t, domain.EntityPerson, ents[0].Category)
		assert.Equal(t, "Jane Doe", scenario[ents[0].Start:ents[0].End])
	})

	t.Run("Should de-duplicate spans keeping the most confident label", func(t *testing.T) {
		tagger := &stubTagger{name: "stub", ents: []domain.RawEntity{
			{Label: "ORG", Text: "John Smith", Start: 0, End: 10, Confidence: 0.4},
			{Label: "PERSON", Text: "John Smith", Start: 0, End: 10, Confidence: 0.9},
			{Label: "DATE", Text: "2023-01-05", Start: -1, End: -1, Confidence: 7},
		}}
		ex, err := NewExtractor(tagger, Options{})
		require.NoError(t, err)
		ents, err := ex.ExtractEntities(context.Background(), scenario)
		require.NoError(t, err)
		require.Len(t, ents, 2)
		assert.Equal(t, domain.EntityPerson, ents[0].Category)
		assert.Equal(t, 1.0, ents[1].Confidence)
	})

	t.Run("Should filter entities below the minimum confidence", func(t *testing.T) {
		tagger := &stubTagger{name: "stub", ents: []domain.RawEntity{
			{Label: "PERSON", Text: "Jane Doe", Start: -1, End: -1, Confidence: 0.2},
		}}
		ex, err := NewExtractor(tagger, Options{MinConfidence: 0.5})
		require.NoError(t, err)
		ents, err := ex.ExtractEntities(context.Background(), scenario)
		require.NoError(t, err)
		assert.Empty(t, ents)
	})

	t.Run("Should serve repeated texts from the cache", func(t *testing.T) {
		tagger := &stubTagger{name: "stub"}
		ex, err := NewExtractor(tagger, Options{CacheSize: 4})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := ex.ExtractEntities(context.Background(), scenario)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, tagger.calls)
	})

	t.Run("Should wrap tagger errors", func(t *testing.T) {
		boom := errors.New("boom")
		ex, err := NewExtractor(&stubTagger{name: "stub", err: boom}, Options{})
		require.NoError(t, err)
		_, err = ex.ExtractEntities(context.Background(), scenario)
		assert.ErrorIs(t, err, boom)
	})
}

func TestCategory(t *testing.T) {
	cases := map[string]domain.EntityCategory{
		"PERSON":         domain.EntityPerson,
		"org":            domain.EntityOrganization,
		"GPE":            domain.EntityLocation,
		"LAW":            domain.EntityLegalCitation,
		"legal-citation": domain.EntityLegalCitation,
		"Case Number":    domain.EntityLegalCitation,
		"MONEY":          domain.EntityMoney,
		"WORK_OF_ART":    domain.EntityOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, Category(in), in)
	}
}

func TestLLMTagger(t *testing.T) {
	t.Run("Should parse the JSON array out of a chatty answer", func(t *testing.T) {
		gen := &stubGenerator{answer: "Sure! Here you go:\n" +
			`[{"text":"Jane Doe","label":"person","confidence":0.9},{"original":"Acme Corp","type":"company"},{"text":""}]` +
			"\nLet me know."}
		ents, err := NewLLMTagger(gen, domain.Sampling{}, nil).Tag(context.Background(), scenario)
		require.NoError(t, err)
		require.Len(t, ents, 2)
		assert.Equal(t, "Jane Doe", ents[0].Text)
		assert.Equal(t, "company", ents[1].Label)
		assert.Equal(t, 14, ents[1].Start)
		assert.Equal(t, "Acme Corp", scenario[ents[1].Start:ents[1].End])
	})

	t.Run("Should keep spans unset for surfaces missing from the text", func(t *testing.T) {
		gen := &stubGenerator{answer: `[{"text":"Nobody Here","label":"person"}]`}
		ents, err := NewLLMTagger(gen, domain.Sampling{}, nil).Tag(context.Background(), scenario)
		require.NoError(t, err)
		require.Len(t, ents, 1)
		assert.Equal(t, -1, ents[0].Start)
	})

	t.Run("Should tag a long document one window at a time", func(t *testing.T) {
		var b strings.Builder
		names := []string{"Alice Archer", "Bruno Baker", "Carla Cruz", "Dylan Drake"}
		for _, n := range names {
			fmt.Fprintf(&b, "The witness %s signed the lease and paid the rent in full. ", n)
		}
		text := b.String()
		windows, err := chunker.NewTokenChunker(tokenizer.NewWord(), chunker.Config{BudgetTokens: 16, OverlapTokens: 2, LookbackTokens: 4})
		require.NoError(t, err)
		chunks, err := windows.Chunk(domain.Document{Text: text})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		gen := &windowGenerator{names: names}
		ents, err := NewLLMTagger(gen, domain.Sampling{}, windows).Tag(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, gen.prompts, len(chunks))
		for _, p := range gen.prompts {
			assert.Less(t, len(p), len(taggerPrompt)+len(text))
		}
		found := map[string]bool{}
		for _, e := range ents {
			require.GreaterOrEqual(t, e.Start, 0)
			assert.Equal(t, e.Text, text[e.Start:e.End])
			found[e.Text] = true
		}
		for _, n := range names {
			assert.True(t, found[n], n)
		}
	})

	t.Run("Should fail when one window fails", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("context overflow")}
		_, err := NewLLMTagger(gen, domain.Sampling{}, nil).Tag(context.Background(), scenario)
		assert.ErrorContains(t, err, "chunk 1")
	})

	t.Run("Should fail when no array is returned", func(t *testing.T) {
		gen := &stubGenerator{answer: "I cannot help with that."}
		_, err := NewLLMTagger(gen, domain.Sampling{}, nil).Tag(context.Background(), scenario)
		assert.Error(t, err)
	})
}

func TestChain(t *testing.T) {
	t.Run("Should merge taggers and tolerate a single failure", func(t *testing.T) {
		good := &stubTagger{name: "good", ents: []domain.RawEntity{{Label: "person", Text: "Jane Doe", Start: -1, End: -1}}}
		bad := &stubTagger{name: "bad", err: errors.New("down")}
		chain := NewChain(bad, good)
		assert.Equal(t, "bad+good", chain.Name())
		ents, err := chain.Tag(context.Background(), scenario)
		require.NoError(t, err)
		assert.Len(t, ents, 1)
	})

	t.Run("Should fail when every tagger fails", func(t *testing.T) {
		chain := NewChain(&stubTagger{name: "a", err: errors.New("x")}, &stubTagger{name: "b", err: errors.New("y")})
		_, err := chain.Tag(context.Background(), scenario)
		assert.Error(t, err)
	})
}

func TestSurfaces(t *testing.T) {
	ents := []domain.Entity{{Text: "Smith"}, {Text: "John Smith"}, {Text: "smith"}, {Text: "7"}, {Text: " "}}
	got := Surfaces(ents)
	require.Len(t, got, 2)
	assert.Equal(t, "John Smith", got[0].Text)
}
