package scoring

import (
	"regexp"
	"strings"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

const (
	indicatorShare = 0.7
	contentShare   = 0.3
)

// dimension scores one strategic-value sub-score from indicator terms.
// Secondary terms and patterns refine the primary retention rate.
type dimension struct {
	primary       []string
	secondary     []string
	secondaryRes  []*regexp.Regexp
	primaryWeight float64
}

var dimensions = map[domain.ValueDimension]dimension{
	domain.ValueLegalPrinciple: {
		primary: []string{
			"contract", "breach", "liability", "damages", "negligence", "statute",
			"precedent", "jurisdiction", "motion", "discovery", "evidence",
			"testimony", "ruling", "judgment", "appeal", "constitutional",
			"due process", "burden of proof", "standard of care",
		},
		secondary: []string{
			"therefore", "because", "since", "as a result", "consequently",
			"however", "nevertheless", "furthermore", "moreover", "in contrast",
		},
		primaryWeight: 0.7,
	},
	domain.ValueEducational: {
		primary: []string{
			"example", "illustrates", "demonstrates", "shows", "teaches",
			"principle", "concept", "theory", "practice", "method",
			"approach", "strategy", "technique", "process", "procedure",
		},
		secondary: []string{
			"analysis", "interpretation", "conclusion", "rationale",
			"reasoning", "logic", "argument", "position", "stance",
		},
		primaryWeight: 0.6,
	},
	domain.ValueBusiness: {
		primary: []string{
			"market", "industry", "competition", "strategy", "revenue",
			"costs", "profit", "loss", "investment", "risk", "opportunity",
			"negotiation", "contract", "deal", "partnership", "merger",
		},
		secondary: []string{
			"competitive advantage", "market position", "strategic approach",
			"business model", "value proposition", "risk assessment",
		},
		primaryWeight: 0.7,
	},
	domain.ValueProcedural: {
		primary: []string{
			"step", "process", "procedure", "method", "approach",
			"first", "second", "third", "next", "then", "finally",
			"before", "after", "during", "timeline", "deadline",
		},
		secondaryRes: []*regexp.Regexp{
			regexp.MustCompile(`\b\d+\s*(?:days?|weeks?|months?|years?)\b`),
			regexp.MustCompile(`\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\b`),
			regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		},
		primaryWeight: 0.8,
	},
}

// StrategicEvaluator measures how much legal and educational utility
// survives anonymization.
type StrategicEvaluator struct{}

func NewStrategicEvaluator() *StrategicEvaluator { return &StrategicEvaluator{} }

// Evaluate returns the four sub-scores, each 0-100. A dimension whose
// primary indicators occur in the original blends indicator retention with
// content-word retention; otherwise content-word retention alone is used.
func (e *StrategicEvaluator) Evaluate(original, anonymized string) domain.StrategicScores {
	origNorm, anonNorm := textutil.Normalize(original), textutil.Normalize(anonymized)
	origLower, anonLower := strings.ToLower(original), strings.ToLower(anonymized)
	content := textutil.Retention(textutil.Set(textutil.ContentWords(original)), textutil.Set(textutil.ContentWords(anonymized)))

	out := make(domain.StrategicScores, len(domain.ValueDimensions))
	for _, dim := range domain.ValueDimensions {
		d := dimensions[dim]
		primary, ok := termRetention(d.primary, origNorm, anonNorm)
		if !ok {
			out[dim] = textutil.Round2(100 * content)
			continue
		}
		// secondary indicators absent from the original follow the primary rate
		secondary := primary
		if r, ok := termRetention(d.secondary, origNorm, anonNorm); ok {
			secondary = r
		}
		if r, ok := matchRetention(d.secondaryRes, origLower, anonLower); ok {
			secondary = r
		}
		indicator := d.primaryWeight*primary + (1-d.primaryWeight)*secondary
		out[dim] = textutil.Round2(100 * textutil.Clamp(indicatorShare*indicator+contentShare*content, 0, 1))
	}
	return out
}

// termRetention is the share of terms found in the original that are also
// found in the anonymized text. ok is false when the original has none.
func termRetention(terms []string, origNorm, anonNorm string) (float64, bool) {
	present, kept := 0, 0
	for _, t := range terms {
		if !textutil.ContainsPhrase(origNorm, t) {
			continue
		}
		present++
		if textutil.ContainsPhrase(anonNorm, t) {
			kept++
		}
	}
	if present == 0 {
		return 0, false
	}
	return float64(kept) / float64(present), true
}

func matchRetention(res []*regexp.Regexp, orig, anon string) (float64, bool) {
	o, a := 0, 0
	for _, re := range res {
		o += len(re.FindAllStringIndex(orig, -1))
		a += len(re.FindAllStringIndex(anon, -1))
	}
	if o == 0 {
		return 0, false
	}
	return textutil.Clamp(float64(a)/float64(o), 0, 1), true
}
