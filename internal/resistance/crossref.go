package resistance

import (
	"context"
	"errors"

	"anonlab/internal/corpus"
	"anonlab/internal/domain"
	"anonlab/internal/embedding/tfidf"
	"anonlab/internal/textutil"
)

const crossRefTopMatches = 3

// CrossReference compares the anonymized text with every document in the
// session corpus. Similarity is the mean of TF-IDF cosine and the Ochiai
// coefficient of the content-word sets.
type CrossReference struct {
	corpus domain.Corpus
}

func NewCrossReference(c domain.Corpus) *CrossReference {
	return &CrossReference{corpus: c}
}

func (c *CrossReference) Category() domain.Category { return domain.CategoryCrossReference }

func (c *CrossReference) Run(ctx context.Context, in Input) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if c.corpus == nil {
		return Outcome{}, errors.New("no corpus configured")
	}
	docs := c.corpus.Snapshot()
	if len(docs) == 0 {
		return Outcome{
			Score:    100,
			Findings: []domain.Finding{info("corpus is empty; nothing to cross-reference")},
			Details:  map[string]float64{"corpus_size": 0},
		}, nil
	}
	scores := Similarities(in.Anonymized, docs)
	matches := corpus.Rank(docs, scores, crossRefTopMatches)
	best := matches[0].Score
	var findings []domain.Finding
	for _, m := range matches {
		name := m.Doc.Source
		if name == "" {
			name = m.Doc.ID
		}
		switch {
		case m.Score >= 0.5:
			findings = append(findings, finding(domain.SeverityHigh, "closely linkable to %s (similarity %.3f)", name, m.Score))
		case m.Score >= 0.2:
			findings = append(findings, finding(domain.SeverityMedium, "partially linkable to %s (similarity %.3f)", name, m.Score))
		}
	}
	return Outcome{
		Score:    100 * (1 - best),
		Findings: findings,
		Details: map[string]float64{
			"corpus_size":    float64(len(docs)),
			"max_similarity": textutil.Round2(best),
		},
	}, nil
}

// Similarities scores text against each corpus document. A corpus without
// any content words leaves the TF-IDF half at zero.
func Similarities(text string, docs []domain.CorpusDocument) []float64 {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	cos, err := tfidf.Similarities(text, texts)
	if err != nil {
		cos = make([]float64, len(docs))
	}
	query := textutil.Set(textutil.ContentWords(text))
	out := make([]float64, len(docs))
	for i, t := range texts {
		ochiai := textutil.Ochiai(query, textutil.Set(textutil.ContentWords(t)))
		out[i] = textutil.Clamp((cos[i]+ochiai)/2, 0, 1)
	}
	return out
}
