package resistance

import (
	"context"
	"regexp"
	"strings"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

// legalPattern is a structural pattern weighted by how far it narrows down
// the source document.
type legalPattern struct {
	kind   string
	weight float64
	re     *regexp.Regexp
}

var legalPatterns = []legalPattern{
	{"case-caption", 1.0, regexp.MustCompile(`\b[A-Z][\w.&'-]*(?:[ \t]+[A-Z][\w.&'-]*)*[ \t]+v(?:s)?\.[ \t]+[A-Z][\w.&'-]*(?:[ \t]+(?:of[ \t]+)?[A-Z][\w.&'-]*)*`)},
	{"reporter-citation", 1.0, regexp.MustCompile(`\b\d{1,4}\s+(?:U\.S\.|S\.\s?Ct\.|L\.\s?Ed\.(?:\s?2d)?|F\.(?:\s?(?:2d|3d|4th|Supp\.(?:\s?[23]d)?))?|[A-Z][a-z]{0,5}\.(?:\s?[23]d)?)\s+\d{1,5}\b`)},
	{"docket-number", 1.0, regexp.MustCompile(`\b(?i:case|docket|civil action|cause|index)\s+(?i:no\.?|number|#)\s*[A-Za-z0-9:-]*\d[A-Za-z0-9:-]*`)},
	{"statute", 0.6, regexp.MustCompile(`\b\d+\s+U\.S\.C\.?\s*§*\s*\d+[a-z]?\b|§\s*\d+(?:\.\d+)*`)},
	{"court", 0.5, regexp.MustCompile(`\b(?i:supreme|district|bankruptcy|circuit|superior|appellate|county|family|probate)\s+(?i:court)\b(?:\s+(?:of|for)(?:\s+the)?(?:\s+[A-Z][a-z]+)+)?|\b(?i:court of appeals)\b`)},
	{"money", 0.5, regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|thousand))?`)},
	{"date", 0.4, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`)},
	{"procedural-sequence", 0.3, regexp.MustCompile(`(?i)\b(?:filed|moved|granted|denied|dismissed|appealed|remanded|affirmed|reversed|entered)\b[^.\n]{0,40}?\b(?:on|in)\s+(?:\d{4}-\d{2}-\d{2}|[A-Z][a-z]+\s+\d{1,2},\s+\d{4}|\d{4})\b`)},
}

const (
	patternShare = 0.7
	phraseShare  = 0.3
	phraseLen    = 4
)

type patternMatch struct {
	kind   string
	text   string
	weight float64
}

// extractPatterns returns the distinct pattern matches of text.
func extractPatterns(text string) []patternMatch {
	seen := make(map[string]struct{})
	var out []patternMatch
	for _, p := range legalPatterns {
		for _, m := range p.re.FindAllString(text, -1) {
			key := p.kind + "|" + strings.TrimSpace(textutil.Normalize(m))
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, patternMatch{kind: p.kind, text: strings.TrimSpace(m), weight: p.weight})
		}
	}
	return out
}

// distinctivePhrases returns the 4-word phrases of text that carry at least
// one content word.
func distinctivePhrases(text string) []string {
	var out []string
	for _, p := range textutil.NGrams(textutil.Words(text), phraseLen) {
		for _, w := range strings.Fields(p) {
			if !textutil.IsStopword(w) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// PatternMatching measures how many distinctive legal patterns and phrases
// of the original survive.
type PatternMatching struct{}

func (PatternMatching) Category() domain.Category { return domain.CategoryPatternMatching }

func (PatternMatching) Run(ctx context.Context, in Input) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	hay := textutil.Normalize(in.Anonymized)
	var (
		findings        []domain.Finding
		total, survived float64
		count           int
	)
	for _, m := range extractPatterns(in.Original) {
		total += m.weight
		if !textutil.ContainsPhrase(hay, m.text) {
			continue
		}
		survived += m.weight
		count++
		findings = append(findings, finding(weightSeverity(m.weight), "%s %q survives", m.kind, m.text))
	}

	phrases := distinctivePhrases(in.Original)
	anonPhrases := textutil.Set(textutil.NGrams(textutil.Words(in.Anonymized), phraseLen))
	var kept []string
	for _, p := range phrases {
		if _, ok := anonPhrases[p]; ok {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		findings = append(findings, finding(domain.SeverityMedium, "%d of %d distinctive phrases survive, e.g. %q",
			len(kept), len(phrases), kept[:min(3, len(kept))]))
	}

	var patternSurvival, phraseSurvival float64
	if total > 0 {
		patternSurvival = survived / total
	}
	if len(phrases) > 0 {
		phraseSurvival = float64(len(kept)) / float64(len(phrases))
	}
	var risk float64
	switch {
	case total > 0 && len(phrases) > 0:
		risk = patternShare*patternSurvival + phraseShare*phraseSurvival
	case total > 0:
		risk = patternSurvival
	case len(phrases) > 0:
		risk = phraseSurvival
	default:
		findings = append(findings, info("no distinctive patterns or phrases in the original"))
	}
	return Outcome{
		Score:    100 * (1 - risk),
		Findings: findings,
		Details: map[string]float64{
			"patterns_survived": float64(count),
			"pattern_survival":  textutil.Round2(patternSurvival),
			"phrase_survival":   textutil.Round2(phraseSurvival),
		},
	}, nil
}

func weightSeverity(w float64) domain.Severity {
	switch {
	case w >= 0.9:
		return domain.SeverityHigh
	case w >= 0.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
