package scoring

import (
	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

// Aggregator combines category scores and strategic-value sub-scores with
// validated weights.
type Aggregator struct {
	weights Weights
	bands   Bands
}

// NewAggregator validates the weights and bands. Every configuration error
// is an *domain.InvalidWeightsError.
func NewAggregator(w Weights, b Bands) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w, bands: b.sorted()}, nil
}

func (a *Aggregator) Weights() Weights { return a.weights }

func (a *Aggregator) Bands() Bands { return a.bands }

// Resistance is the weighted sum of the category scores. A category
// missing from results contributes 0.
func (a *Aggregator) Resistance(results []domain.TestResult) float64 {
	total := 0.0
	for _, tr := range results {
		total += a.weights.Resistance[tr.Category] * textutil.Clamp(tr.Score, 0, 100)
	}
	return total
}

// StrategicValue is the weighted sum of the strategic sub-scores, summed in
// dimension order.
func (a *Aggregator) StrategicValue(s domain.StrategicScores) float64 {
	total := 0.0
	for _, dim := range domain.ValueDimensions {
		total += a.weights.Value[dim] * textutil.Clamp(s[dim], 0, 100)
	}
	return total
}

// Score computes the composite score. Values are rounded to two decimals
// and the tier is looked up from the rounded overall score.
func (a *Aggregator) Score(results []domain.TestResult, strategic domain.StrategicScores) domain.CompositeScore {
	resistance := a.Resistance(results)
	value := a.StrategicValue(strategic)
	overall := textutil.Round2(resistance*a.weights.Overall.Resistance + value*a.weights.Overall.Value)
	return domain.CompositeScore{
		Resistance:     textutil.Round2(resistance),
		StrategicValue: textutil.Round2(value),
		Overall:        overall,
		Tier:           a.bands.Tier(overall),
	}
}

func (a *Aggregator) Tier(score float64) domain.QualityTier { return a.bands.Tier(score) }

// TierInfo is the reader-facing description of a quality tier.
type TierInfo struct {
	Description    string `json:"description" yaml:"description"`
	Recommendation string `json:"recommendation" yaml:"recommendation"`
}

var tierInfo = map[domain.QualityTier]TierInfo{
	domain.TierExcellent:  {"Production ready", "Document is ready for use"},
	domain.TierGood:       {"Minor improvements needed", "Consider minor refinements"},
	domain.TierAcceptable: {"Requires review", "Review and improve before use"},
	domain.TierPoor:       {"Significant issues", "Significant improvements required"},
	domain.TierFailed:     {"Do not use", "Do not use; major security issues"},
}

func DescribeTier(t domain.QualityTier) TierInfo {
	if info, ok := tierInfo[t]; ok {
		return info
	}
	return TierInfo{Description: string(t)}
}
