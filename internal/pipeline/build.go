package pipeline

import (
	"fmt"

	"anonlab/internal/anonymize"
	"anonlab/internal/chunker"
	"anonlab/internal/config"
	"anonlab/internal/corpus"
	"anonlab/internal/domain"
	"anonlab/internal/entity"
	"anonlab/internal/extract"
	"anonlab/internal/inference"
	"anonlab/internal/resistance"
	"anonlab/internal/scoring"
	"anonlab/internal/summarizer"
	"anonlab/internal/tokenizer"
)

// FromConfig builds a Service with the default adapters. gen may be nil,
// in which case the inference adapter named by the config is used.
func FromConfig(cfg *config.AppConfig, gen domain.Generator) (*Service, error) {
	if gen == nil {
		var err error
		gen, err = inference.New(inference.Config{
			Provider:  cfg.Inference.Provider,
			BaseURL:   cfg.Inference.BaseURL,
			Model:     cfg.Inference.Model,
			APIKeyEnv: cfg.Inference.APIKeyEnv,
			Timeout:   cfg.Inference.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}
	tok, err := tokenizer.New(cfg.Tokenizer.Kind, cfg.Tokenizer.Model)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.NewTokenChunker(tok, chunker.Config{
		BudgetTokens:   cfg.Chunker.BudgetTokens,
		OverlapTokens:  cfg.Chunker.OverlapTokens,
		LookbackTokens: cfg.Chunker.LookbackTokens,
	})
	if err != nil {
		return nil, err
	}
	sampling := domain.Sampling{
		Temperature: cfg.Inference.Temperature,
		TopP:        cfg.Inference.TopP,
		MaxTokens:   cfg.Inference.MaxTokens,
	}
	tagger, err := buildTagger(cfg.Entities.Taggers, gen, sampling, ch)
	if err != nil {
		return nil, err
	}
	entities, err := entity.NewExtractor(tagger, entity.Options{
		CacheSize:     cfg.Entities.CacheSize,
		MinConfidence: cfg.Entities.MinConfidence,
	})
	if err != nil {
		return nil, err
	}
	agg, err := scoring.NewAggregator(cfg.Scoring.Weights, cfg.Scoring.Bands)
	if err != nil {
		return nil, err
	}
	store := corpus.NewMemory()
	adversary := sampling
	adversary.Temperature = cfg.Testing.Temperature
	tester, err := resistance.NewDefaultTester(resistance.Config{
		Thresholds:  cfg.Thresholds(),
		Sampling:    adversary,
		CallTimeout: cfg.Testing.CallTimeout,
		CacheSize:   cfg.Testing.CacheSize,
	}, gen, store)
	if err != nil {
		return nil, err
	}
	a := cfg.Anonymization
	strategy, err := anonymize.ParseStrategy(a.Strategy)
	if err != nil {
		return nil, err
	}
	var sum Summarizer
	if cfg.Report.ExcerptSentences > 0 {
		sum = summarizer.NewFrequencySummarizer(cfg.Report.ExcerptSentences)
	}
	return New(Deps{
		Extractor: extract.NewExtractor(extract.Limits{
			MaxFileSizeMB: cfg.Extraction.MaxFileSizeMB,
			MaxWords:      cfg.Extraction.MaxWords,
		}),
		Tokenizer:  tok,
		Chunker:    ch,
		Entities:   entities,
		Generator:  gen,
		Corpus:     store,
		Tester:     tester,
		Strategic:  scoring.NewStrategicEvaluator(),
		Aggregator: agg,
		Summarizer: sum,
	}, Options{
		Anonymize: anonymize.Config{
			Strategy:       strategy,
			Guidelines:     a.Guidelines,
			Concurrency:    a.Concurrency,
			MaxAttempts:    a.MaxAttempts,
			CallTimeout:    a.CallTimeout,
			RetryBase:      a.RetryBase,
			HealthAttempts: a.HealthAttempts,
			HealthBase:     a.HealthBase,
			HealthTimeout:  anonymize.DefaultConfig().HealthTimeout,
			Fallback:       anonymize.FallbackMode(a.Fallback),
			Seams: anonymize.SeamConfig{
				MinAlignWords: a.Seams.MinAlignWords,
				MaxAlignWords: a.Seams.MaxAlignWords,
				Tolerance:     a.Seams.Tolerance,
			},
		},
		Sampling:      sampling,
		MaxBatchFiles: cfg.Extraction.MaxBatchFiles,
	})
}

func buildTagger(names []string, gen domain.Generator, sampling domain.Sampling, windows domain.Chunker) (domain.Tagger, error) {
	taggers := make([]domain.Tagger, 0, len(names))
	for _, n := range names {
		switch n {
		case "rules":
			taggers = append(taggers, entity.NewRuleTagger())
		case "llm":
			taggers = append(taggers, entity.NewLLMTagger(gen, sampling, windows))
		default:
			return nil, fmt.Errorf("unknown entity tagger: %q", n)
		}
	}
	switch len(taggers) {
	case 0:
		return entity.NewRuleTagger(), nil
	case 1:
		return taggers[0], nil
	}
	return entity.NewChain(taggers...), nil
}
