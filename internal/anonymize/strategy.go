// Package anonymize rewrites documents chunk by chunk through the
// inference service and reassembles the result.
package anonymize

import (
	"fmt"
	"slices"
	"strings"

	"anonlab/internal/domain"
)

// Strategy is one of the closed set of anonymization strategies.
type Strategy string

const (
	LiteralRedaction   Strategy = "literal-redaction"
	StrategyPreserving Strategy = "strategy-preserving"
	Abstraction        Strategy = "abstraction"
	CustomGuided       Strategy = "custom-guided"
)

// Strategies lists every strategy in presentation order.
var Strategies = []Strategy{LiteralRedaction, StrategyPreserving, Abstraction, CustomGuided}

var strategyAliases = map[string]Strategy{
	"traditional": LiteralRedaction,
	"redaction":   LiteralRedaction,
	"strategic":   StrategyPreserving,
	"educational": Abstraction,
	"custom":      CustomGuided,
}

// ParseStrategy accepts canonical names and the short aliases
// traditional, strategic, educational and custom.
func ParseStrategy(s string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Strategies {
		if string(st) == key {
			return st, nil
		}
	}
	if st, ok := strategyAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown anonymization strategy: %q", s)
}

// Token is the replacement token used by the sweep pass.
func (s Strategy) Token() string {
	switch s {
	case StrategyPreserving:
		return "[ANONYMOUS]"
	case Abstraction:
		return "[EXAMPLE]"
	case CustomGuided:
		return "[CUSTOM]"
	default:
		return "[REDACTED]"
	}
}

func (s Strategy) Title() string {
	switch s {
	case LiteralRedaction:
		return "Literal Redaction"
	case StrategyPreserving:
		return "Strategy-Preserving Anonymization"
	case Abstraction:
		return "Educational Abstraction"
	case CustomGuided:
		return "Custom-Guided Anonymization"
	}
	return string(s)
}

// Validate rejects non-canonical strategies and custom-guided runs without
// guidelines. Aliases must go through ParseStrategy first.
func (s Strategy) Validate(guidelines string) error {
	if !slices.Contains(Strategies, s) {
		return fmt.Errorf("unknown anonymization strategy: %q", s)
	}
	if s == CustomGuided && strings.TrimSpace(guidelines) == "" {
		return fmt.Errorf("strategy %s requires guidelines", s)
	}
	return nil
}

var descriptors = map[domain.EntityCategory]string{
	domain.EntityPerson:        "the Party",
	domain.EntityOrganization:  "the Company",
	domain.EntityLocation:      "the Jurisdiction",
	domain.EntityDate:          "the relevant date",
	domain.EntityLegalCitation: "the referenced case",
	domain.EntityCourt:         "the Court",
	domain.EntityMoney:         "the amount at issue",
	domain.EntityContact:       "[CONTACT]",
	domain.EntityIdentifier:    "[IDENTIFIER]",
}

// Replacement is the text the sweep pass substitutes for an entity.
// Strategy-preserving runs keep the entity's role readable.
func (s Strategy) Replacement(c domain.EntityCategory) string {
	if s == StrategyPreserving {
		if d, ok := descriptors[c]; ok {
			return d
		}
	}
	return s.Token()
}

const (
	redactionPrompt = `You are a legal document anonymization specialist. Your task is to redact all identifying information from the following legal document text while preserving the document structure and legal meaning.

Replace the following with [REDACTED]:
- Names of people, companies, organizations
- Addresses, phone numbers, email addresses
- Case numbers, court names, dates
- Any other identifying information

Document text to anonymize:
%s

Return only the anonymized text with no additional commentary.`

	preservingPrompt = `You are a legal document anonymization specialist. Your task is to anonymize the following legal document while preserving strategic legal insights and procedural guidance.

Anonymization rules:
- Replace specific names with generic descriptors (e.g., "Plaintiff", "Defendant", "The Company")
- Preserve legal strategies, arguments, and reasoning
- Maintain procedural steps and tactical information
- Keep industry context and business intelligence
- Replace dates with relative timeframes where possible

Document text to anonymize:
%s

Return only the anonymized text with no additional commentary.`

	abstractionPrompt = `You are a legal document anonymization specialist. Your task is to transform the following legal document into educational principles while removing all case-specific details.

Transformation rules:
- Convert specific facts into general principles
- Replace parties with generic examples
- Focus on legal concepts and educational value
- Remove all identifying information
- Maintain the legal reasoning and educational insights

Document text to anonymize:
%s

Return only the transformed educational text with no additional commentary.`

	customPrompt = `You are a legal document anonymization specialist. Your task is to anonymize the following legal document according to these custom guidelines:

%s

Replace anything the guidelines mark as identifying with [CUSTOM].

Document text to anonymize:
%s

Return only the anonymized text with no additional commentary.`
)

// Prompt renders the rewrite prompt for one chunk.
func (s Strategy) Prompt(text, guidelines string) string {
	switch s {
	case StrategyPreserving:
		return fmt.Sprintf(preservingPrompt, text)
	case Abstraction:
		return fmt.Sprintf(abstractionPrompt, text)
	case CustomGuided:
		return fmt.Sprintf(customPrompt, strings.TrimSpace(guidelines), text)
	default:
		return fmt.Sprintf(redactionPrompt, text)
	}
}
