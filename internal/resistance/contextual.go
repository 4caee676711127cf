package resistance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"

	"anonlab/internal/domain"
	"anonlab/internal/textutil"
	"anonlab/pkg/logger"
)

const adversaryPrompt = `You are a skilled investigator trying to identify the original case or parties from this anonymized legal document.
Based on the content, legal patterns, and any remaining clues, make your best guess about:

1. What type of legal case this might be
2. Possible parties involved
3. Jurisdiction or court system
4. Time period
5. Any specific case details you can deduce

Anonymized document:
%s

Answer with a JSON object only, in this shape:
{"guesses": [{"attribute": "parties", "guess": "...", "confidence": 0.0, "specificity": "exact|narrow|broad"}]}
confidence is between 0 and 1.`

// riskDivisor is the summed weighted confidence at which the adversary is
// considered to have fully reconstructed the document.
const riskDivisor = 5.0

var (
	confidenceIndicators = []string{
		"confident", "certain", "likely", "probably", "appears to be",
		"suggests", "indicates", "evidence of", "based on", "clearly",
	}
	detailIndicators = []string{
		"case name", "court", "judge", "attorney", "company", "date",
		"location", "plaintiff", "defendant", "parties",
	}
)

// Guess is one adversary inference parsed from the model's answer.
type Guess struct {
	Attribute   string
	Guess       string
	Confidence  float64
	Specificity float64
	Matched     bool
}

// Contextual asks the inference service to reconstruct identifying
// specifics from the anonymized text. Answers are cached by text so a
// repeated run sees the same guesses.
type Contextual struct {
	gen      domain.Generator
	sampling domain.Sampling
	timeout  time.Duration
	cache    *lru.Cache[string, string]
}

func NewContextual(gen domain.Generator, sampling domain.Sampling, timeout time.Duration, cacheSize int) (*Contextual, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create adversary cache: %w", err)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Contextual{gen: gen, sampling: sampling, timeout: timeout, cache: cache}, nil
}

func (c *Contextual) Category() domain.Category { return domain.CategoryContextual }

func (c *Contextual) Run(ctx context.Context, in Input) (Outcome, error) {
	if c.gen == nil {
		return Outcome{}, errors.New("no inference service configured")
	}
	answer, err := c.ask(ctx, in.Anonymized)
	if err != nil {
		return Outcome{}, err
	}
	guesses, ok := parseGuesses(answer)
	if !ok {
		logger.FromContext(ctx).Debug("adversary answer not structured, using indicator heuristic")
		return heuristicOutcome(answer), nil
	}
	return scoreGuesses(guesses, in.Entities), nil
}

func (c *Contextual) ask(ctx context.Context, text string) (string, error) {
	sum := sha256.Sum256([]byte(c.gen.Name() + "\x00" + text))
	key := hex.EncodeToString(sum[:])
	if answer, ok := c.cache.Get(key); ok {
		return answer, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	out, err := c.gen.Generate(callCtx, fmt.Sprintf(adversaryPrompt, text), c.sampling)
	if err != nil {
		return "", fmt.Errorf("adversary request: %w", err)
	}
	c.cache.Add(key, out.Text)
	return out.Text, nil
}

// parseGuesses reads either {"guesses": [...]} or a bare array from the
// first JSON value embedded in answer.
func parseGuesses(answer string) ([]Guess, bool) {
	var list gjson.Result
	if start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}"); start >= 0 && end > start && gjson.Valid(answer[start:end+1]) {
		list = gjson.Get(answer[start:end+1], "guesses")
	}
	if !list.IsArray() {
		start, end := strings.Index(answer, "["), strings.LastIndex(answer, "]")
		if start < 0 || end <= start || !gjson.Valid(answer[start:end+1]) {
			return nil, false
		}
		list = gjson.Parse(answer[start : end+1])
	}
	if !list.IsArray() {
		return nil, false
	}
	var out []Guess
	list.ForEach(func(_, v gjson.Result) bool {
		g := Guess{
			Attribute:   v.Get("attribute").String(),
			Guess:       strings.TrimSpace(v.Get("guess").String()),
			Confidence:  unitScale(v.Get("confidence"), 0.5),
			Specificity: specificityWeight(v.Get("specificity")),
		}
		if g.Guess != "" {
			out = append(out, g)
		}
		return true
	})
	return out, true
}

// unitScale reads a 0-1 value, accepting 1-10 and 0-100 scales.
func unitScale(v gjson.Result, def float64) float64 {
	if !v.Exists() {
		return def
	}
	f := v.Float()
	switch {
	case f > 10:
		f /= 100
	case f > 1:
		f /= 10
	}
	return textutil.Clamp(f, 0, 1)
}

func specificityWeight(v gjson.Result) float64 {
	if v.Type == gjson.Number {
		return unitScale(v, 0.5)
	}
	switch strings.ToLower(strings.TrimSpace(v.String())) {
	case "exact", "specific", "high":
		return 1.0
	case "narrow", "partial", "medium":
		return 0.6
	case "broad", "general", "vague", "low":
		return 0.3
	default:
		return 0.5
	}
}

func scoreGuesses(guesses []Guess, entities []domain.Entity) Outcome {
	var (
		findings []domain.Finding
		sum      float64
		matched  int
	)
	for _, g := range guesses {
		hay := textutil.Normalize(g.Guess)
		for _, e := range distinctEntities(entities) {
			if textutil.ContainsPhrase(hay, e.Text) {
				g.Matched = true
				g.Specificity = 1
				break
			}
		}
		weight := g.Confidence * g.Specificity
		sum += weight
		switch {
		case g.Matched:
			matched++
			findings = append(findings, finding(domain.SeverityHigh, "adversary recovered %s: %q", attrName(g), g.Guess))
		case weight >= 0.5:
			findings = append(findings, finding(domain.SeverityMedium, "confident guess on %s: %q", attrName(g), g.Guess))
		default:
			findings = append(findings, finding(domain.SeverityLow, "weak guess on %s: %q", attrName(g), g.Guess))
		}
	}
	if len(guesses) == 0 {
		findings = append(findings, info("adversary made no identifying guesses"))
	}
	risk := min(1, sum/riskDivisor)
	return Outcome{
		Score:    100 * (1 - risk),
		Findings: findings,
		Details: map[string]float64{
			"guesses": float64(len(guesses)),
			"matched": float64(matched),
			"risk":    textutil.Round2(risk),
		},
	}
}

func attrName(g Guess) string {
	if g.Attribute == "" {
		return "unknown attribute"
	}
	return g.Attribute
}

// heuristicOutcome scores a free-text answer by its confidence language and
// the number of specific details it mentions.
func heuristicOutcome(answer string) Outcome {
	lower := strings.ToLower(answer)
	conf, details := 0, 0
	for _, w := range confidenceIndicators {
		if strings.Contains(lower, w) {
			conf++
		}
	}
	for _, w := range detailIndicators {
		if strings.Contains(lower, w) {
			details++
		}
	}
	score := 100 - float64(conf)/float64(len(confidenceIndicators))*50 - float64(details)/float64(len(detailIndicators))*50
	return Outcome{
		Score:    score,
		Findings: []domain.Finding{info("adversary answer was not structured JSON; scored by indicator words")},
		Details: map[string]float64{
			"confidence_indicators": float64(conf),
			"detail_indicators":     float64(details),
		},
	}
}
