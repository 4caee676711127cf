package resistance

import (
	"context"
	"strings"
	"unicode/utf8"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
)

// DirectIdentifiers searches the anonymized text for source entities after
// case folding and punctuation normalization, on word boundaries.
type DirectIdentifiers struct{}

func (DirectIdentifiers) Category() domain.Category { return domain.CategoryDirectIdentifier }

func (DirectIdentifiers) Run(ctx context.Context, in Input) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	entities := distinctEntities(in.Entities)
	if len(entities) == 0 {
		return Outcome{
			Score:    100,
			Findings: []domain.Finding{info("no source entities to search for")},
			Details:  map[string]float64{"entities": 0, "found": 0},
		}, nil
	}
	hay := textutil.Normalize(in.Anonymized)
	var findings []domain.Finding
	found := 0
	for _, e := range entities {
		if textutil.ContainsPhrase(hay, e.Text) {
			found++
			findings = append(findings, finding(leakSeverity(e.Category), "%s %q is still present", e.Category, e.Text))
			continue
		}
		if e.Category != domain.EntityPerson {
			continue
		}
		if last := lastName(e.Text); last != "" && textutil.ContainsPhrase(hay, last) {
			findings = append(findings, finding(domain.SeverityLow, "surname %q of %q is still present", last, e.Text))
		}
	}
	total := len(entities)
	return Outcome{
		Score:    100 * (1 - float64(found)/float64(total)),
		Findings: findings,
		Details:  map[string]float64{"entities": float64(total), "found": float64(found)},
	}, nil
}

func distinctEntities(entities []domain.Entity) []domain.Entity {
	seen := make(map[string]struct{}, len(entities))
	var out []domain.Entity
	for _, e := range entities {
		key := strings.TrimSpace(textutil.Normalize(e.Text))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func leakSeverity(c domain.EntityCategory) domain.Severity {
	switch c {
	case domain.EntityPerson, domain.EntityOrganization, domain.EntityIdentifier, domain.EntityContact, domain.EntityLegalCitation:
		return domain.SeverityHigh
	case domain.EntityDate, domain.EntityOther:
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}

func lastName(name string) string {
	f := strings.Fields(name)
	if len(f) < 2 {
		return ""
	}
	last := strings.Trim(f[len(f)-1], ".,")
	if utf8.RuneCountInString(last) < 3 {
		return ""
	}
	return last
}
