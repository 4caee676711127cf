// Package resistance runs the reconstruction test battery against an
// anonymized document.
package resistance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"anonlab/internal/domain"
	"anonlab/pkg/logger"
)

const (
	DefaultHighRiskBelow = 50.0
	DefaultLowRiskFrom   = 80.0
)

// Thresholds maps a category score to a risk tier: scores below
// HighRiskBelow are High, scores from LowRiskFrom up are Low.
type Thresholds struct {
	HighRiskBelow float64 `yaml:"high_risk_below" json:"high_risk_below"`
	LowRiskFrom   float64 `yaml:"low_risk_from" json:"low_risk_from"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{HighRiskBelow: DefaultHighRiskBelow, LowRiskFrom: DefaultLowRiskFrom}
}

func (t Thresholds) Validate() error {
	if t.HighRiskBelow < 0 || t.LowRiskFrom > 100 || t.HighRiskBelow > t.LowRiskFrom {
		return fmt.Errorf("invalid risk thresholds: high below %.2f, low from %.2f", t.HighRiskBelow, t.LowRiskFrom)
	}
	return nil
}

func (t Thresholds) Tier(score float64) domain.RiskTier {
	switch {
	case score < t.HighRiskBelow:
		return domain.RiskHigh
	case score < t.LowRiskFrom:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Input is the pair under test plus the entities extracted from the
// original.
type Input struct {
	DocID      string
	Original   string
	Anonymized string
	Entities   []domain.Entity
}

// Outcome is what a Check reports. The tester adds the category, risk
// tier and timing.
type Outcome struct {
	Score    float64
	Findings []domain.Finding
	Details  map[string]float64
}

// Check is one test category.
type Check interface {
	Category() domain.Category
	Run(ctx context.Context, in Input) (Outcome, error)
}

// State is the lifecycle of a test run.
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially-failed"
)

var ErrIllegalTransition = errors.New("illegal test run state transition")

var transitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StateCompleted, StatePartiallyFailed},
}

// RiskAnalysis groups the categories by risk tier.
type RiskAnalysis struct {
	High    []domain.Category `json:"high" yaml:"high"`
	Medium  []domain.Category `json:"medium" yaml:"medium"`
	Low     []domain.Category `json:"low" yaml:"low"`
	Overall domain.RiskTier   `json:"overall" yaml:"overall"`
}

// Result is the outcome of one test run. Results follow the order of the
// tester's checks.
type Result struct {
	State           State               `json:"state" yaml:"state"`
	Results         []domain.TestResult `json:"results" yaml:"results"`
	Risk            RiskAnalysis        `json:"risk_analysis" yaml:"risk_analysis"`
	Recommendations []string            `json:"recommendations" yaml:"recommendations"`
	Duration        time.Duration       `json:"duration_ns" yaml:"duration_ns"`
}

// Failed lists the categories that did not complete.
func (r *Result) Failed() []domain.Category {
	var out []domain.Category
	for _, tr := range r.Results {
		if tr.Failed {
			out = append(out, tr.Category)
		}
	}
	return out
}

// Scores returns the raw score of every category.
func (r *Result) Scores() map[domain.Category]float64 {
	out := make(map[domain.Category]float64, len(r.Results))
	for _, tr := range r.Results {
		out[tr.Category] = tr.Score
	}
	return out
}

// Tester owns the checks and the tier thresholds.
type Tester struct {
	checks     []Check
	thresholds Thresholds
}

func NewTester(thresholds Thresholds, checks ...Check) (*Tester, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		return nil, errors.New("tester needs at least one check")
	}
	return &Tester{checks: checks, thresholds: thresholds}, nil
}

// Test runs a fresh Run over in.
func (t *Tester) Test(ctx context.Context, in Input) (*Result, error) {
	return t.NewRun().Execute(ctx, in)
}

// Run is a single pass of the battery. It may execute once.
type Run struct {
	mu     sync.Mutex
	state  State
	tester *Tester
}

func (t *Tester) NewRun() *Run {
	return &Run{state: StateIdle, tester: t}
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, next := range transitions[r.state] {
		if next == to {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, r.state, to)
}

// Execute runs every check concurrently. A check that errors or panics
// scores 0 with a high finding; the others are unaffected. A cancelled
// context stops checks that have not started and is returned with the
// partial result.
func (r *Run) Execute(ctx context.Context, in Input) (*Result, error) {
	if err := r.transition(StateRunning); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("doc_id", in.DocID)
	started := time.Now()
	checks := r.tester.checks
	results := make([]domain.TestResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = r.runCheck(ctx, log, c, in)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Results: results, Duration: time.Since(started)}
	res.Risk = analyzeRisk(results)
	res.Recommendations = Recommendations(results, r.tester.thresholds)
	final := StateCompleted
	if len(res.Failed()) > 0 {
		final = StatePartiallyFailed
	}
	if err := r.transition(final); err != nil {
		return nil, err
	}
	res.State = final
	log.Info("reconstruction tests finished", "state", final, "failed", len(res.Failed()), "duration", res.Duration)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Run) runCheck(ctx context.Context, log logger.Logger, c Check, in Input) (tr domain.TestResult) {
	started := time.Now()
	cat := c.Category()
	log = log.With("category", cat)
	defer func() {
		if p := recover(); p != nil {
			log.Error("test category panicked", "panic", p)
			tr = r.failed(cat, fmt.Errorf("panic: %v", p))
		}
		tr.Duration = time.Since(started)
	}()
	if err := ctx.Err(); err != nil {
		return r.failed(cat, fmt.Errorf("not started: %w", err))
	}
	out, err := c.Run(ctx, in)
	if err != nil {
		log.Warn("test category failed", "error", err)
		return r.failed(cat, err)
	}
	score := clampScore(out.Score)
	log.Debug("test category done", "score", score)
	return domain.TestResult{
		Category: cat,
		Score:    score,
		Findings: out.Findings,
		Risk:     r.tester.thresholds.Tier(score),
		Details:  out.Details,
	}
}

func (r *Run) failed(cat domain.Category, err error) domain.TestResult {
	return domain.TestResult{
		Category: cat,
		Score:    0,
		Failed:   true,
		Risk:     r.tester.thresholds.Tier(0),
		Findings: []domain.Finding{{
			Description: fmt.Sprintf("%s test did not complete: %v", cat, err),
			Severity:    domain.SeverityHigh,
		}},
	}
}

func analyzeRisk(results []domain.TestResult) RiskAnalysis {
	var ra RiskAnalysis
	for _, tr := range results {
		switch tr.Risk {
		case domain.RiskHigh:
			ra.High = append(ra.High, tr.Category)
		case domain.RiskMedium:
			ra.Medium = append(ra.Medium, tr.Category)
		default:
			ra.Low = append(ra.Low, tr.Category)
		}
	}
	switch {
	case len(ra.High) > 0:
		ra.Overall = domain.RiskHigh
	case len(ra.Medium) > 0:
		ra.Overall = domain.RiskMedium
	default:
		ra.Overall = domain.RiskLow
	}
	return ra
}

// Config carries the collaborators and tuning of the default battery.
type Config struct {
	Thresholds Thresholds
	Sampling   domain.Sampling
	// CallTimeout bounds the adversary request.
	CallTimeout time.Duration
	CacheSize   int
}

// NewDefaultTester builds the five-category battery in report order.
func NewDefaultTester(cfg Config, gen domain.Generator, c domain.Corpus) (*Tester, error) {
	contextual, err := NewContextual(gen, cfg.Sampling, cfg.CallTimeout, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return NewTester(cfg.Thresholds,
		DirectIdentifiers{},
		PatternMatching{},
		contextual,
		NewCrossReference(c),
		Fingerprint{},
	)
}
