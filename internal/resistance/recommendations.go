package resistance

import (
	"fmt"
	"math"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

var advice = map[domain.Category][]string{
	domain.CategoryDirectIdentifier: {
		"Use a more aggressive entity replacement strategy",
		"Review entity extraction for missed identifiers",
	},
	domain.CategoryPatternMatching: {
		"Replace or generalize distinctive legal patterns such as citations and docket numbers",
		"Break up distinctive phrase structures",
	},
	domain.CategoryContextual: {
		"Reduce contextual clues that let a reader infer the parties or forum",
		"Consider a more abstract anonymization strategy",
	},
	domain.CategoryCrossReference: {
		"Differentiate the document further from similar documents in the corpus",
		"Vary wording that is shared with other documents",
	},
	domain.CategoryFingerprint: {
		"Vary sentence structure and vocabulary",
		"Apply a style transformation in addition to anonymization",
	},
}

const noAdvice = "Anonymization quality is good; no major improvements needed"

// Recommendations lists improvement advice for every category scoring
// below the low-risk threshold, in result order.
func Recommendations(results []domain.TestResult, t Thresholds) []string {
	var out []string
	for _, tr := range results {
		if tr.Failed {
			out = append(out, fmt.Sprintf("Re-run the %s test; it did not complete", tr.Category))
			continue
		}
		if tr.Score < t.LowRiskFrom {
			out = append(out, advice[tr.Category]...)
		}
	}
	if len(out) == 0 {
		out = append(out, noAdvice)
	}
	return out
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return textutil.Round2(textutil.Clamp(v, 0, 100))
}

func info(format string, args ...any) domain.Finding {
	return domain.Finding{Description: fmt.Sprintf(format, args...), Severity: domain.SeverityInfo}
}

func finding(sev domain.Severity, format string, args ...any) domain.Finding {
	return domain.Finding{Description: fmt.Sprintf(format, args...), Severity: sev}
}
