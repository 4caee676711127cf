// Package scoring turns test results and strategic-value sub-scores into a
// composite quality score.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"anonlab/internal/domain"
)

// WeightTolerance is the allowed deviation of a weight vector's sum from 1.
const WeightTolerance = 1e-6

type OverallWeights struct {
	Resistance float64 `yaml:"resistance" json:"resistance"`
	Value      float64 `yaml:"value" json:"value"`
}

// Weights are the three weight vectors of the aggregator.
type Weights struct {
	Resistance map[domain.Category]float64       `yaml:"resistance" json:"resistance"`
	Value      map[domain.ValueDimension]float64 `yaml:"value" json:"value"`
	Overall    OverallWeights                    `yaml:"overall" json:"overall"`
}

func DefaultWeights() Weights {
	return Weights{
		Resistance: map[domain.Category]float64{
			domain.CategoryDirectIdentifier: 0.30,
			domain.CategoryPatternMatching:  0.25,
			domain.CategoryContextual:       0.20,
			domain.CategoryCrossReference:   0.15,
			domain.CategoryFingerprint:      0.10,
		},
		Value: map[domain.ValueDimension]float64{
			domain.ValueLegalPrinciple: 0.40,
			domain.ValueEducational:    0.30,
			domain.ValueBusiness:       0.20,
			domain.ValueProcedural:     0.10,
		},
		Overall: OverallWeights{Resistance: 0.60, Value: 0.40},
	}
}

// Validate checks that every vector names exactly its expected keys, has
// no negative entry and sums to 1.
func (w Weights) Validate() error {
	if err := validateVector("resistance", w.Resistance, domain.Categories); err != nil {
		return err
	}
	if err := validateVector("value", w.Value, domain.ValueDimensions); err != nil {
		return err
	}
	overall := map[string]float64{"resistance": w.Overall.Resistance, "value": w.Overall.Value}
	return validateVector("overall", overall, []string{"resistance", "value"})
}

func validateVector[K ~string](name string, vec map[K]float64, keys []K) error {
	for _, k := range keys {
		if _, ok := vec[k]; !ok {
			return &domain.InvalidWeightsError{Vector: name, Reason: fmt.Sprintf("missing weight for %s", k)}
		}
	}
	if len(vec) != len(keys) {
		return &domain.InvalidWeightsError{Vector: name, Reason: fmt.Sprintf("expected %d weights, got %d", len(keys), len(vec))}
	}
	sum := 0.0
	for _, k := range keys {
		v := vec[k]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.InvalidWeightsError{Vector: name, Reason: fmt.Sprintf("weight for %s is %v", k, v)}
		}
		sum += v
	}
	if math.Abs(sum-1) > WeightTolerance {
		return &domain.InvalidWeightsError{Vector: name, Reason: fmt.Sprintf("weights sum to %.6f, want 1.0", sum)}
	}
	return nil
}

// Band maps [Min, Max) to a tier. The band ending at 100 includes 100.
type Band struct {
	Tier domain.QualityTier `yaml:"tier" json:"tier"`
	Min  float64            `yaml:"min" json:"min"`
	Max  float64            `yaml:"max" json:"max"`
}

type Bands []Band

func DefaultBands() Bands {
	return Bands{
		{Tier: domain.TierExcellent, Min: 90, Max: 100},
		{Tier: domain.TierGood, Min: 80, Max: 90},
		{Tier: domain.TierAcceptable, Min: 70, Max: 80},
		{Tier: domain.TierPoor, Min: 60, Max: 70},
		{Tier: domain.TierFailed, Min: 0, Max: 60},
	}
}

// Validate checks that the bands are non-empty, do not overlap and cover
// [0, 100] without gaps.
func (b Bands) Validate() error {
	if len(b) == 0 {
		return &domain.InvalidWeightsError{Vector: "bands", Reason: "no bands"}
	}
	sorted := b.sorted()
	prev := 0.0
	seen := make(map[domain.QualityTier]struct{}, len(sorted))
	for i, band := range sorted {
		if band.Tier == "" {
			return &domain.InvalidWeightsError{Vector: "bands", Reason: fmt.Sprintf("band %d has no tier", i)}
		}
		if _, dup := seen[band.Tier]; dup {
			return &domain.InvalidWeightsError{Vector: "bands", Reason: fmt.Sprintf("tier %s appears twice", band.Tier)}
		}
		seen[band.Tier] = struct{}{}
		if band.Max <= band.Min {
			return &domain.InvalidWeightsError{Vector: "bands", Reason: fmt.Sprintf("band %s is empty", band.Tier)}
		}
		if math.Abs(band.Min-prev) > WeightTolerance {
			return &domain.InvalidWeightsError{Vector: "bands", Reason: fmt.Sprintf("band %s starts at %.2f, want %.2f", band.Tier, band.Min, prev)}
		}
		prev = band.Max
	}
	if math.Abs(prev-100) > WeightTolerance {
		return &domain.InvalidWeightsError{Vector: "bands", Reason: fmt.Sprintf("bands end at %.2f, want 100", prev)}
	}
	return nil
}

// Tier walks the band table. Scores are clamped to [0, 100] first.
func (b Bands) Tier(score float64) domain.QualityTier {
	score = math.Max(0, math.Min(100, score))
	for _, band := range b {
		if score >= band.Min && (score < band.Max || (band.Max >= 100 && score <= band.Max)) {
			return band.Tier
		}
	}
	return ""
}

func (b Bands) sorted() Bands {
	out := make(Bands, len(b))
	copy(out, b)
	sort.Slice(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out
}
