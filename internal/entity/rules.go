package entity

import (
	"context"
	"regexp"
	"strings"

	"anonlab/internal/domain"
)

type rule struct {
	re         *regexp.Regexp
	label      domain.EntityCategory
	group      int
	confidence float64
}

var (
	partyRe   = `[A-Z][\w.&'-]*(?:[ \t]+(?:of[ \t]+|&[ \t]+)?[A-Z][\w.&'-]*)*`
	captionRe = regexp.MustCompile(`(` + partyRe + `)\s+v(?:s)?\.?\s+(` + partyRe + `)`)
	orgSuffix = regexp.MustCompile(`(?:^|\s)(?:Corp|Corporation|Inc|LLC|LLP|Ltd|Co|Company|Group|Bank|Holdings|Partners|Associates|Trust|Industries)\.?$`)

	leadingWords = map[string]struct{}{
		"In": {}, "The": {}, "See": {}, "Cf": {}, "Under": {}, "Per": {}, "From": {}, "And": {},
	}
)

var rules = []rule{
	{re: regexp.MustCompile(`\b(?i:attorney|counsel|judge|justice|plaintiff|defendant|petitioner|respondent|appellant|appellee|witness|mr\.|mrs\.|ms\.|dr\.)\s+([A-Z][a-z]+(?:\s+[A-Z]\.)?(?:\s+[A-Z][a-z]+){0,2})`), label: domain.EntityPerson, group: 1, confidence: 0.8},
	{re: regexp.MustCompile(`\b([A-Z][\w&'-]*(?:\s+[A-Z][\w&'-]*)*\s+(?:Corp|Corporation|Inc|LLC|LLP|Ltd|Company|Group|Bank|Holdings|Industries))\b`), label: domain.EntityOrganization, group: 1, confidence: 0.85},
	{re: regexp.MustCompile(`\b(?i:case|docket|civil action|criminal action|index)\s+(?i:no\.?|number|#)\s*([A-Za-z0-9:]*\d[A-Za-z0-9:-]*\d)`), label: domain.EntityLegalCitation, group: 1, confidence: 0.95},
	{re: regexp.MustCompile(`\b\d+\s+U\.S\.C\.?\s+§*\s*\d+[a-z]?(?:\([a-z0-9]+\))*`), label: domain.EntityLegalCitation, confidence: 0.95},
	{re: regexp.MustCompile(`\b\d+\s+(?:U\.S\.|S\.\s?Ct\.|L\.\s?Ed\.(?:\s?2d)?|F\.(?:\s?(?:2d|3d|4th))?|F\.\s?Supp\.(?:\s?(?:2d|3d))?|[A-Z][a-z]+\.(?:\s?(?:2d|3d))?)\s+\d+\b`), label: domain.EntityLegalCitation, confidence: 0.9},
	{re: regexp.MustCompile(`\b(?i:supreme court|district court|court of appeals|bankruptcy court|superior court|circuit court|court of chancery|family court)(?:\s+(?:of|for)\s+(?:the\s+)?[A-Z][\w]*(?:\s+(?:of\s+)?[A-Z][\w]*)*)?`), label: domain.EntityCourt, confidence: 0.9},
	{re: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), label: domain.EntityDate, confidence: 0.95},
	{re: regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), label: domain.EntityDate, confidence: 0.9},
	{re: regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`), label: domain.EntityDate, confidence: 0.95},
	{re: regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:thousand|million|billion))?`), label: domain.EntityMoney, confidence: 0.95},
	{re: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), label: domain.EntityContact, confidence: 0.95},
	{re: regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.])\d{3}[-.]\d{4}\b`), label: domain.EntityContact, confidence: 0.9},
	{re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), label: domain.EntityIdentifier, confidence: 0.95},
}

// RuleTagger finds legal and personal identifiers with regular expressions
// and caption heuristics. It needs no external service.
type RuleTagger struct{}

func NewRuleTagger() *RuleTagger { return &RuleTagger{} }

func (t *RuleTagger) Name() string { return "rules" }

func (t *RuleTagger) Tag(ctx context.Context, text string) ([]domain.RawEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.RawEntity
	for _, m := range captionRe.FindAllStringSubmatchIndex(text, -1) {
		for g := 1; g <= 2; g++ {
			start, end := m[2*g], m[2*g+1]
			if ent, ok := party(text, start, end); ok {
				out = append(out, ent)
			}
		}
	}
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*r.group], m[2*r.group+1]
			if start < 0 {
				continue
			}
			start, end = trimSpan(text, start, end)
			if start >= end {
				continue
			}
			out = append(out, domain.RawEntity{
				Label:      string(r.label),
				Text:       text[start:end],
				Start:      start,
				End:        end,
				Confidence: r.confidence,
			})
		}
	}
	return out, nil
}

// party classifies one side of a "X v. Y" caption.
func party(text string, start, end int) (domain.RawEntity, bool) {
	start, end = trimSpan(text, start, end)
	for start < end {
		word, _, _ := strings.Cut(text[start:end], " ")
		if _, skip := leadingWords[word]; !skip || len(word) == end-start {
			break
		}
		start += len(word)
		start, end = trimSpan(text, start, end)
	}
	if start >= end {
		return domain.RawEntity{}, false
	}
	surface := text[start:end]
	label := domain.EntityOrganization
	words := strings.Fields(surface)
	corporate := orgSuffix.MatchString(surface) || strings.Contains(surface, " of ") || strings.Contains(surface, "&")
	if !corporate && len(words) >= 2 && len(words) <= 3 {
		label = domain.EntityPerson
	}
	return domain.RawEntity{Label: string(label), Text: surface, Start: start, End: end, Confidence: 0.85}, true
}

// trimSpan drops surrounding whitespace and trailing punctuation, keeping
// the period of a corporate abbreviation.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && strings.ContainsRune(" \t\n", rune(text[start])) {
		start++
	}
	for end > start && strings.ContainsRune(" \t\n,;:", rune(text[end-1])) {
		end--
	}
	for end > start && text[end-1] == '.' && !orgSuffix.MatchString(text[start:end]) {
		end--
	}
	return start, end
}
