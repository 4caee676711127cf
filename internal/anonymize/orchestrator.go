package anonymize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"anonlab/internal/domain"
	"anonlab/pkg/logger"
)

// FallbackMode selects the text recorded for a chunk that could not be
// anonymized.
type FallbackMode string

const (
	FallbackRedact   FallbackMode = "redact"
	FallbackOriginal FallbackMode = "original"
)

const cancelledReason = "cancelled"

type Config struct {
	Strategy    Strategy
	Guidelines  string
	Concurrency int
	// MaxAttempts bounds the attempts of each pass on each chunk.
	MaxAttempts    int
	CallTimeout    time.Duration
	RetryBase      time.Duration
	HealthAttempts int
	HealthBase     time.Duration
	HealthTimeout  time.Duration
	Fallback       FallbackMode
	Seams          SeamConfig
}

func DefaultConfig() Config {
	return Config{
		Strategy:       LiteralRedaction,
		Concurrency:    2,
		MaxAttempts:    3,
		CallTimeout:    120 * time.Second,
		RetryBase:      500 * time.Millisecond,
		HealthAttempts: 3,
		HealthBase:     time.Second,
		HealthTimeout:  10 * time.Second,
		Fallback:       FallbackRedact,
		Seams:          SeamConfig{MinAlignWords: 3, MaxAlignWords: 400, Tolerance: 0.1},
	}
}

// Result is the outcome of one anonymization run.
type Result struct {
	Strategy        Strategy                 `json:"strategy" yaml:"strategy"`
	Success         bool                     `json:"success" yaml:"success"`
	Partial         bool                     `json:"partial" yaml:"partial"`
	ChunksTotal     int                      `json:"chunks_total" yaml:"chunks_total"`
	ChunksProcessed int                      `json:"chunks_processed" yaml:"chunks_processed"`
	ChunksFailed    int                      `json:"chunks_failed" yaml:"chunks_failed"`
	Chunks          []domain.AnonymizedChunk `json:"chunks" yaml:"chunks"`
	Text            string                   `json:"text" yaml:"text"`
	Seams           []SeamWarning            `json:"seam_warnings,omitempty" yaml:"seam_warnings,omitempty"`
	TokensUsed      int                      `json:"tokens_used" yaml:"tokens_used"`
	Duration        time.Duration            `json:"duration_ns" yaml:"duration_ns"`
}

// Orchestrator runs every chunk of a document through an ordered list of
// passes and reassembles the outputs.
type Orchestrator struct {
	gen    domain.Generator
	passes []Pass
	cfg    Config
}

// NewOrchestrator validates cfg. With no passes given, chunks go through
// the rewrite pass and then the entity sweep.
func NewOrchestrator(gen domain.Generator, cfg Config, sampling domain.Sampling, passes ...Pass) (*Orchestrator, error) {
	if gen == nil {
		return nil, errors.New("inference generator is required")
	}
	if err := cfg.Strategy.Validate(cfg.Guidelines); err != nil {
		return nil, err
	}
	switch cfg.Fallback {
	case FallbackRedact, FallbackOriginal:
	case "":
		cfg.Fallback = FallbackRedact
	default:
		return nil, fmt.Errorf("unknown fallback mode: %q", cfg.Fallback)
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	cfg.HealthAttempts = max(cfg.HealthAttempts, 1)
	if len(passes) == 0 {
		passes = []Pass{NewRewritePass(gen, sampling), NewSweepPass()}
	}
	return &Orchestrator{gen: gen, passes: passes, cfg: cfg}, nil
}

func (o *Orchestrator) Strategy() Strategy { return o.cfg.Strategy }

// CheckHealth probes the inference service with exponential backoff and
// returns domain.ErrServiceUnavailable once the attempts are exhausted.
func (o *Orchestrator) CheckHealth(ctx context.Context) error {
	log := logger.FromContext(ctx)
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(o.cfg.HealthAttempts-1), retry.NewExponential(positive(o.cfg.HealthBase, time.Second)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		hctx, cancel := context.WithTimeout(ctx, positive(o.cfg.HealthTimeout, 10*time.Second))
		defer cancel()
		if err := o.gen.Health(hctx); err != nil {
			log.Warn("inference health check failed", "generator", o.gen.Name(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}

// Anonymize processes every chunk of doc. Chunk failures are recorded in
// the result and never returned as errors. A cancelled run returns the
// partial result together with the context error.
func (o *Orchestrator) Anonymize(ctx context.Context, doc domain.Document, chunks []domain.Chunk, entities []domain.Entity) (*Result, error) {
	if len(chunks) == 0 {
		return nil, &domain.ChunkingError{Reason: "document has no chunks"}
	}
	log := logger.FromContext(ctx).With("doc_id", doc.ID, "strategy", o.cfg.Strategy)
	ctx = logger.ContextWithLogger(ctx, log)
	if err := o.CheckHealth(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	out := make([]domain.AnonymizedChunk, len(chunks))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i := range chunks {
		g.Go(func() error {
			out[i] = o.processChunk(ctx, doc, chunks[i], entities)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		Strategy:    o.cfg.Strategy,
		ChunksTotal: len(chunks),
		Chunks:      out,
		Duration:    time.Since(started),
	}
	cancelled := false
	for _, c := range out {
		res.TokensUsed += c.TokensUsed
		if c.Success {
			res.ChunksProcessed++
			continue
		}
		res.ChunksFailed++
		if c.Err == cancelledReason {
			cancelled = true
		}
	}
	res.Partial = res.ChunksFailed > 0
	res.Text, res.Seams = reassemble(doc, chunks, out, o.cfg.Seams)
	for _, w := range res.Seams {
		log.Warn("seam overlap not aligned", "left", w.Left, "right", w.Right)
	}
	if cancelled && ctx.Err() != nil {
		log.Warn("anonymization cancelled", "processed", res.ChunksProcessed, "total", res.ChunksTotal)
		return res, ctx.Err()
	}
	res.Success = true
	log.Info("anonymization complete",
		"chunks", res.ChunksTotal, "failed", res.ChunksFailed, "tokens", res.TokensUsed, "duration", res.Duration)
	return res, nil
}

func (o *Orchestrator) processChunk(ctx context.Context, doc domain.Document, ch domain.Chunk, entities []domain.Entity) domain.AnonymizedChunk {
	log := logger.FromContext(ctx).With("chunk", ch.Index)
	source := ch.Text(doc)
	res := domain.AnonymizedChunk{Index: ch.Index}
	if ctx.Err() != nil {
		return o.failed(res, source, cancelledReason)
	}
	job := Job{
		Index:      ch.Index,
		Source:     source,
		Text:       source,
		Strategy:   o.cfg.Strategy,
		Guidelines: o.cfg.Guidelines,
		Entities:   entities,
	}
	for _, p := range o.passes {
		if ctx.Err() != nil {
			return o.failed(res, source, cancelledReason)
		}
		text, err := o.runPass(ctx, p, job, &res)
		if err != nil {
			if ctx.Err() != nil {
				return o.failed(res, source, cancelledReason)
			}
			perr := &domain.ChunkProcessingError{Chunk: ch.Index, Pass: p.Name(), Err: err}
			log.Warn("chunk failed", "pass", p.Name(), "attempts", res.Attempts, "error", err)
			return o.failed(res, source, perr.Error())
		}
		job.Text = text
		res.Passes = append(res.Passes, p.Name())
	}
	res.Text = job.Text
	res.Success = true
	log.Debug("chunk anonymized", "attempts", res.Attempts, "tokens", res.TokensUsed)
	return res
}

// runPass retries one pass. Each call runs on a context detached from
// cancellation and bounded by CallTimeout; cancellation is only observed
// between attempts.
func (o *Orchestrator) runPass(ctx context.Context, p Pass, job Job, res *domain.AnonymizedChunk) (string, error) {
	log := logger.FromContext(ctx)
	var text string
	backoff := retry.WithMaxRetries(uint64(o.cfg.MaxAttempts-1), retry.NewExponential(positive(o.cfg.RetryBase, 500*time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res.Attempts++
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), positive(o.cfg.CallTimeout, 120*time.Second))
		defer cancel()
		out, tokens, err := p.Run(callCtx, job)
		res.TokensUsed += tokens
		if err != nil {
			log.Debug("pass attempt failed", "pass", p.Name(), "attempt", res.Attempts, "error", err)
			return retry.RetryableError(err)
		}
		text = out
		return nil
	})
	return text, err
}

func (o *Orchestrator) failed(res domain.AnonymizedChunk, source, reason string) domain.AnonymizedChunk {
	res.Success = false
	res.Err = reason
	res.Text = FailureMarker(res.Index, o.cfg.Fallback, source)
	return res
}

func positive(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// FailureMarker renders the fallback text of a failed chunk. Chunk numbers
// are 1-based.
func FailureMarker(index int, mode FallbackMode, source string) string {
	head := fmt.Sprintf("[[ANONYMIZATION FAILED: chunk %d]]", index+1)
	if mode == FallbackOriginal {
		return head + "\n" + strings.TrimSpace(source) + "\n" + fmt.Sprintf("[[END FAILED CHUNK %d]]", index+1)
	}
	return head
}

// reassemble joins chunk outputs in index order. At each seam between two
// successful chunks the duplicated overlap is located by word alignment and
// dropped from the right side. The search window is bounded by twice the
// word count of the source overlap.
func reassemble(doc domain.Document, chunks []domain.Chunk, out []domain.AnonymizedChunk, cfg SeamConfig) (string, []SeamWarning) {
	var (
		b        strings.Builder
		warnings []SeamWarning
	)
	for i, c := range out {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		prev := out[i-1]
		if !prev.Success || !c.Success || chunks[i].OverlapTokens == 0 {
			joinSeam(&b, c.Text, nil, 0)
			continue
		}
		window := cfg
		srcWords := len(splitWords(doc.Text[chunks[i].Start:chunks[i-1].End]))
		limit := 2*srcWords + cfg.MinAlignWords
		if window.MaxAlignWords <= 0 || window.MaxAlignWords > limit {
			window.MaxAlignWords = limit
		}
		lw := splitWords(prev.Text)
		if len(lw) > window.MaxAlignWords {
			lw = lw[len(lw)-window.MaxAlignWords:]
		}
		rw := splitWords(c.Text)
		k := align(lw, rw, window)
		if k == 0 {
			warnings = append(warnings, SeamWarning{Left: prev.Index, Right: c.Index, Reason: "overlap not found, kept untrimmed"})
		}
		joinSeam(&b, c.Text, rw, k)
	}
	return b.String(), warnings
}
