package entity

import (
	"strings"

	"anonlab/internal/domain"
)

var labelCategories = map[string]domain.EntityCategory{
	"person":       domain.EntityPerson,
	"per":          domain.EntityPerson,
	"name":         domain.EntityPerson,
	"org":          domain.EntityOrganization,
	"organization": domain.EntityOrganization,
	"company":      domain.EntityOrganization,
	"gpe":          domain.EntityLocation,
	"loc":          domain.EntityLocation,
	"location":     domain.EntityLocation,
	"fac":          domain.EntityLocation,
	"address":      domain.EntityLocation,
	"date":         domain.EntityDate,
	"time":         domain.EntityDate,
	"law":          domain.EntityLegalCitation,
	"citation":     domain.EntityLegalCitation,
	"case_number":  domain.EntityLegalCitation,
	"statute":      domain.EntityLegalCitation,
	"court":        domain.EntityCourt,
	"money":        domain.EntityMoney,
	"salary":       domain.EntityMoney,
	"email":        domain.EntityContact,
	"phone":        domain.EntityContact,
	"contact":      domain.EntityContact,
	"ssn":          domain.EntityIdentifier,
	"id":           domain.EntityIdentifier,
	"identifier":   domain.EntityIdentifier,
	"creditcard":   domain.EntityIdentifier,
}

// Category maps a tagger label onto the canonical category set. Labels
// are matched case-insensitively; '-' and ' ' are treated as '_'.
// Unknown labels map to EntityOther.
func Category(label string) domain.EntityCategory {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if c, ok := labelCategories[key]; ok {
		return c
	}
	if c := domain.EntityCategory(strings.ReplaceAll(key, "_", "-")); isCanonical(c) {
		return c
	}
	return domain.EntityOther
}

func isCanonical(c domain.EntityCategory) bool {
	switch c {
	case domain.EntityPerson, domain.EntityOrganization, domain.EntityLocation,
		domain.EntityDate, domain.EntityLegalCitation, domain.EntityCourt,
		domain.EntityMoney, domain.EntityContact, domain.EntityIdentifier, domain.EntityOther:
		return true
	}
	return false
}
