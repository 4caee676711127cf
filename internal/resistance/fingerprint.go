package resistance

import (
	"context"
	"math"
	"strings"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

const (
	vocabShare     = 40.0
	phraseOverlap  = 30.0
	structureShare = 30.0
)

// Fingerprint measures how much stylistic signal survives: vocabulary,
// 3-word phrases and the sentence-length distribution.
type Fingerprint struct{}

func (Fingerprint) Category() domain.Category { return domain.CategoryFingerprint }

func (Fingerprint) Run(ctx context.Context, in Input) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	ow, aw := textutil.Words(in.Original), textutil.Words(in.Anonymized)
	vocab := textutil.Retention(textutil.Set(ow), textutil.Set(aw))
	phrase := textutil.Retention(textutil.Set(textutil.NGrams(ow, 3)), textutil.Set(textutil.NGrams(aw, 3)))
	om, osd := sentenceStats(in.Original)
	am, asd := sentenceStats(in.Anonymized)
	structure := (closeness(om, am) + closeness(osd, asd)) / 2

	var findings []domain.Finding
	if vocab >= 0.8 {
		findings = append(findings, finding(domain.SeverityMedium, "%.0f%% of the original vocabulary is retained", vocab*100))
	}
	if phrase >= 0.5 {
		findings = append(findings, finding(domain.SeverityMedium, "%.0f%% of the original 3-word phrases are retained", phrase*100))
	}
	if structure >= 0.9 {
		findings = append(findings, finding(domain.SeverityLow, "sentence length profile is nearly unchanged (mean %.1f vs %.1f words)", om, am))
	}
	return Outcome{
		Score:    100 - (vocabShare*vocab + phraseOverlap*phrase + structureShare*structure),
		Findings: findings,
		Details: map[string]float64{
			"vocabulary_overlap":   textutil.Round2(vocab),
			"phrase_overlap":       textutil.Round2(phrase),
			"structure_similarity": textutil.Round2(structure),
			"original_mean_len":    textutil.Round2(om),
			"anonymized_mean_len":  textutil.Round2(am),
		},
	}, nil
}

// sentenceStats returns the mean and standard deviation of sentence length
// in words.
func sentenceStats(text string) (mean, std float64) {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return 0, 0
	}
	lengths := make([]float64, len(sentences))
	for i, s := range sentences {
		lengths[i] = float64(len(strings.Fields(s)))
		mean += lengths[i]
	}
	mean /= float64(len(lengths))
	for _, l := range lengths {
		std += (l - mean) * (l - mean)
	}
	return mean, math.Sqrt(std / float64(len(lengths)))
}

// closeness is 1 for equal values and falls towards 0 as they diverge.
func closeness(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return 1 - math.Abs(a-b)/hi
}
