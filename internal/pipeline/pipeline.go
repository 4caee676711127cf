// Package pipeline wires ingestion, chunking, anonymization, reconstruction
// testing and scoring into one run per document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"anonlab/internal/anonymize"
	"anonlab/internal/domain"
	"anonlab/internal/report"
	"anonlab/internal/resistance"
	"anonlab/internal/scoring"
	"anonlab/pkg/logger"
)

const DefaultMaxBatchFiles = 10

// ErrTooManyFiles is returned when a batch names more files than allowed.
var ErrTooManyFiles = errors.New("too many files in batch")

// Summarizer produces the report excerpt.
type Summarizer interface {
	Summarize(text string) string
}

// Deps are the collaborators of a Service.
type Deps struct {
	Extractor  domain.DocumentExtractor
	Tokenizer  domain.Tokenizer
	Chunker    domain.Chunker
	Entities   domain.EntityExtractor
	Generator  domain.Generator
	Corpus     domain.Corpus
	Tester     *resistance.Tester
	Strategic  *scoring.StrategicEvaluator
	Aggregator *scoring.Aggregator
	Summarizer Summarizer
}

type Options struct {
	Anonymize     anonymize.Config
	Sampling      domain.Sampling
	MaxBatchFiles int
}

// Service runs documents through the pipeline. Each ingested original joins
// the session corpus used by the cross-reference test.
type Service struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Extractor == nil:
		return nil, errors.New("document extractor is required")
	case deps.Tokenizer == nil:
		return nil, errors.New("tokenizer is required")
	case deps.Chunker == nil:
		return nil, errors.New("chunker is required")
	case deps.Entities == nil:
		return nil, errors.New("entity extractor is required")
	case deps.Generator == nil:
		return nil, errors.New("inference generator is required")
	case deps.Corpus == nil:
		return nil, errors.New("corpus is required")
	case deps.Tester == nil:
		return nil, errors.New("reconstruction tester is required")
	case deps.Aggregator == nil:
		return nil, errors.New("score aggregator is required")
	}
	if deps.Strategic == nil {
		deps.Strategic = scoring.NewStrategicEvaluator()
	}
	if opts.MaxBatchFiles <= 0 {
		opts.MaxBatchFiles = DefaultMaxBatchFiles
	}
	return &Service{deps: deps, opts: opts}, nil
}

// Ingested is a loaded document plus the non-fatal extraction warnings.
type Ingested struct {
	Document domain.Document
	Warnings []string
}

// Ingest extracts one file and adds its text to the corpus.
func (s *Service) Ingest(ctx context.Context, path string) (Ingested, error) {
	ex, err := s.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return Ingested{}, err
	}
	doc := domain.Document{
		ID:         uuid.NewString(),
		Source:     path,
		Text:       ex.Text,
		WordCount:  ex.WordCount,
		TokenCount: s.deps.Tokenizer.Count(ex.Text),
	}
	if err := s.deps.Corpus.Add(domain.CorpusDocument{ID: doc.ID, Source: doc.Source, Text: doc.Text}); err != nil {
		return Ingested{}, &domain.IngestionError{Source: path, Err: err}
	}
	logger.FromContext(ctx).Info("document ingested",
		"doc_id", doc.ID, "source", path, "words", doc.WordCount, "tokens", doc.TokenCount, "corpus", s.deps.Corpus.Len())
	return Ingested{Document: doc, Warnings: ex.Errors}, nil
}

// AddToCorpus ingests reference documents that are not anonymized
// themselves. A failing file is skipped and reported in the joined error.
func (s *Service) AddToCorpus(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if _, err := s.Ingest(ctx, p); err != nil {
			logger.FromContext(ctx).Warn("corpus document skipped", "source", p, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plan chunks an ingested document without anonymizing it.
func (s *Service) Plan(doc domain.Document) ([]domain.Chunk, error) {
	return s.deps.Chunker.Chunk(doc)
}

// Expand resolves glob patterns like the shell would. Patterns with no
// match are kept as literal paths so extraction reports them.
func (s *Service) Expand(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		paths = append(paths, matches...)
	}
	if len(paths) > s.opts.MaxBatchFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(paths), s.opts.MaxBatchFiles)
	}
	return paths, nil
}

// Process anonymizes doc with strategy, tests the result and scores it.
// Chunk and category failures are part of the report; only configuration,
// an unreachable inference service and cancellation are returned as errors.
func (s *Service) Process(ctx context.Context, in Ingested, strategy anonymize.Strategy, guidelines string) (*report.Report, error) {
	doc := in.Document
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With("run_id", runID, "doc_id", doc.ID)
	ctx = logger.ContextWithLogger(ctx, log)

	chunks, err := s.deps.Chunker.Chunk(doc)
	if err != nil {
		return nil, err
	}
	warnings := append([]string(nil), in.Warnings...)
	entities, err := s.deps.Entities.ExtractEntities(ctx, doc.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("entity extraction failed, continuing without entities", "error", err)
		warnings = append(warnings, fmt.Sprintf("entity extraction failed: %v", err))
	}

	cfg := s.opts.Anonymize
	cfg.Strategy = strategy
	cfg.Guidelines = guidelines
	orch, err := anonymize.NewOrchestrator(s.deps.Generator, cfg, s.opts.Sampling)
	if err != nil {
		return nil, err
	}
	anon, err := orch.Anonymize(ctx, doc, chunks, entities)
	if err != nil {
		return nil, err
	}

	tests, err := s.deps.Tester.Test(ctx, resistance.Input{
		DocID:      doc.ID,
		Original:   doc.Text,
		Anonymized: anon.Text,
		Entities:   entities,
	})
	if err != nil {
		return nil, err
	}
	strategic := s.deps.Strategic.Evaluate(doc.Text, anon.Text)
	score := s.deps.Aggregator.Score(tests.Results, strategic)

	var excerpt string
	if s.deps.Summarizer != nil {
		excerpt = s.deps.Summarizer.Summarize(anon.Text)
	}
	log.Info("run scored",
		"strategy", strategy, "overall", score.Overall, "tier", score.Tier,
		"chunks_failed", anon.ChunksFailed, "categories_failed", len(tests.Failed()))
	return report.New(report.Input{
		RunID:      runID,
		Document:   doc,
		Guidelines: guidelines,
		Anon:       anon,
		Tests:      tests,
		Strategic:  strategic,
		Score:      score,
		Warnings:   warnings,
		Excerpt:    excerpt,
	}), nil
}

// Run ingests and processes every file. A file that cannot be ingested is
// skipped and reported in the joined error; the other files still run.
func (s *Service) Run(ctx context.Context, patterns []string, strategy anonymize.Strategy, guidelines string) ([]*report.Report, error) {
	paths, err := s.Expand(patterns)
	if err != nil {
		return nil, err
	}
	var (
		reports []*report.Report
		errs    []error
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		in, err := s.Ingest(ctx, p)
		if err != nil {
			var ierr *domain.IngestionError
			if errors.As(err, &ierr) {
				logger.FromContext(ctx).Error("document skipped", "source", p, "error", err)
				errs = append(errs, err)
				continue
			}
			return reports, err
		}
		r, err := s.Process(ctx, in, strategy, guidelines)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, errors.Join(errs...)
}

// Compare runs one document through several strategies and ranks them.
func (s *Service) Compare(ctx context.Context, path string, strategies []anonymize.Strategy, guidelines string) (*report.Comparison, error) {
	if len(strategies) == 0 {
		return nil, errors.New("no strategies to compare")
	}
	in, err := s.Ingest(ctx, path)
	if err != nil {
		return nil, err
	}
	cmp := &report.Comparison{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Document: report.DocumentInfo{
			ID:     in.Document.ID,
			Source: in.Document.Source,
			Words:  in.Document.WordCount,
			Tokens: in.Document.TokenCount,
		},
	}
	scores := make([]scoring.StrategyScore, 0, len(strategies))
	for _, st := range strategies {
		r, err := s.Process(ctx, in, st, guidelines)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", st, err)
		}
		cmp.Reports = append(cmp.Reports, r)
		scores = append(scores, scoring.StrategyScore{Strategy: string(st), Score: r.Score})
	}
	cmp.Result = scoring.CompareStrategies(scores)
	return cmp, nil
}

// modelLister is implemented by inference adapters that can list models.
type modelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Health is the inference service status.
type Health struct {
	Generator string
	Models    []string
}

// Health probes the inference service with the orchestrator's backoff and
// lists the available models when the adapter supports it.
func (s *Service) Health(ctx context.Context) (Health, error) {
	h := Health{Generator: s.deps.Generator.Name()}
	cfg := s.opts.Anonymize
	cfg.Strategy = anonymize.LiteralRedaction
	orch, err := anonymize.NewOrchestrator(s.deps.Generator, cfg, s.opts.Sampling)
	if err != nil {
		return h, err
	}
	if err := orch.CheckHealth(ctx); err != nil {
		return h, err
	}
	if ml, ok := s.deps.Generator.(modelLister); ok {
		models, err := ml.Models(ctx)
		if err != nil {
			return h, err
		}
		h.Models = models
	}
	return h, nil
}
