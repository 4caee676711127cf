package scoring

import (
	"sort"

	"anonlab/internal/domain"
)

// StrategyScore is the composite score of one strategy's run.
type StrategyScore struct {
	Strategy string                `json:"strategy" yaml:"strategy"`
	Score    domain.CompositeScore `json:"score" yaml:"score"`
}

// Comparison ranks strategies by overall score.
type Comparison struct {
	Ranking      []StrategyScore `json:"ranking" yaml:"ranking"`
	BestOverall  string          `json:"best_overall" yaml:"best_overall"`
	BestSecurity string          `json:"best_security" yaml:"best_security"`
	BestUtility  string          `json:"best_utility" yaml:"best_utility"`
}

// CompareStrategies names the best overall, best resistance and best
// strategic value strategies. Ties go to the earlier entry.
func CompareStrategies(scores []StrategyScore) Comparison {
	var c Comparison
	if len(scores) == 0 {
		return c
	}
	c.Ranking = make([]StrategyScore, len(scores))
	copy(c.Ranking, scores)
	sort.SliceStable(c.Ranking, func(i, j int) bool {
		return c.Ranking[i].Score.Overall > c.Ranking[j].Score.Overall
	})
	best := func(metric func(domain.CompositeScore) float64) string {
		idx := 0
		for i, s := range scores {
			if metric(s.Score) > metric(scores[idx].Score) {
				idx = i
			}
		}
		return scores[idx].Strategy
	}
	c.BestOverall = best(func(s domain.CompositeScore) float64 { return s.Overall })
	c.BestSecurity = best(func(s domain.CompositeScore) float64 { return s.Resistance })
	c.BestUtility = best(func(s domain.CompositeScore) float64 { return s.StrategicValue })
	return c
}
