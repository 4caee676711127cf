package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"anonlab/internal/anonymize"
	"anonlab/internal/resistance"
	"anonlab/internal/scoring"
)

// EnvPrefix prefixes every environment override, e.g. ANONLAB_INFERENCE_MODEL.
const EnvPrefix = "ANONLAB_"

const fileName = "anonlab.yaml"

// InferenceConfig selects the language-model server used for rewriting and
// for the contextual adversary.
type InferenceConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER" validate:"oneof=ollama openai"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL" validate:"required,url"`
	Model       string        `yaml:"model" env:"MODEL" validate:"required"`
	APIKeyEnv   string        `yaml:"api_key_env" env:"API_KEY_ENV"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	TopP        float64       `yaml:"top_p" env:"TOP_P" validate:"gte=0,lte=1"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS" validate:"gte=0"`
}

// TokenizerConfig picks the unit the chunk budget is counted in.
type TokenizerConfig struct {
	Kind  string `yaml:"kind" env:"KIND" validate:"oneof=word bpe"`
	Model string `yaml:"model" env:"MODEL"`
}

// ChunkerConfig bounds chunk windows, in tokenizer units.
type ChunkerConfig struct {
	BudgetTokens   int `yaml:"budget_tokens" env:"BUDGET_TOKENS" validate:"gt=0"`
	OverlapTokens  int `yaml:"overlap_tokens" env:"OVERLAP_TOKENS" validate:"gte=0,ltfield=BudgetTokens"`
	LookbackTokens int `yaml:"lookback_tokens" env:"LOOKBACK_TOKENS" validate:"gte=0"`
}

type EntitiesConfig struct {
	Taggers       []string `yaml:"taggers" env:"TAGGERS" envSeparator:"," validate:"min=1,dive,oneof=rules llm"`
	CacheSize     int      `yaml:"cache_size" env:"CACHE_SIZE" validate:"gte=0"`
	MinConfidence float64  `yaml:"min_confidence" env:"MIN_CONFIDENCE" validate:"gte=0,lte=1"`
}

type SeamsConfig struct {
	MinAlignWords int     `yaml:"min_align_words" env:"MIN_ALIGN_WORDS" validate:"gte=1"`
	MaxAlignWords int     `yaml:"max_align_words" env:"MAX_ALIGN_WORDS" validate:"gte=0"`
	Tolerance     float64 `yaml:"tolerance" env:"TOLERANCE" validate:"gte=0,lt=1"`
}

// AnonymizationConfig configures the orchestrator.
type AnonymizationConfig struct {
	Strategy       string        `yaml:"strategy" env:"STRATEGY" validate:"required"`
	Guidelines     string        `yaml:"guidelines,omitempty" env:"GUIDELINES"`
	Concurrency    int           `yaml:"concurrency" env:"CONCURRENCY" validate:"gte=1,lte=32"`
	MaxAttempts    int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" validate:"gte=1,lte=10"`
	CallTimeout    time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT" validate:"gt=0"`
	RetryBase      time.Duration `yaml:"retry_base" env:"RETRY_BASE" validate:"gt=0"`
	HealthAttempts int           `yaml:"health_attempts" env:"HEALTH_ATTEMPTS" validate:"gte=1"`
	HealthBase     time.Duration `yaml:"health_base" env:"HEALTH_BASE" validate:"gt=0"`
	Fallback       string        `yaml:"fallback" env:"FALLBACK" validate:"oneof=redact original"`
	Seams          SeamsConfig   `yaml:"seams" envPrefix:"SEAMS_"`
}

// TestingConfig configures the reconstruction test battery.
type TestingConfig struct {
	HighRiskBelow float64       `yaml:"high_risk_below" env:"HIGH_RISK_BELOW" validate:"gte=0,lte=100"`
	LowRiskFrom   float64       `yaml:"low_risk_from" env:"LOW_RISK_FROM" validate:"gte=0,lte=100,gtfield=HighRiskBelow"`
	CallTimeout   time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT" validate:"gt=0"`
	CacheSize     int           `yaml:"cache_size" env:"CACHE_SIZE" validate:"gte=0"`
	Temperature   float64       `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
}

// ScoringConfig is validated by building the aggregator, not by tags.
type ScoringConfig struct {
	Weights scoring.Weights `yaml:"weights"`
	Bands   scoring.Bands   `yaml:"bands"`
}

type ExtractionConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" env:"MAX_FILE_SIZE_MB" validate:"gt=0"`
	MaxWords      int `yaml:"max_words" env:"MAX_WORDS" validate:"gt=0"`
	MaxBatchFiles int `yaml:"max_batch_files" env:"MAX_BATCH_FILES" validate:"gt=0"`
}

type ReportConfig struct {
	Format           string `yaml:"format" env:"FORMAT" validate:"oneof=json yaml md html"`
	ExcerptSentences int    `yaml:"excerpt_sentences" env:"EXCERPT_SENTENCES" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Inference     InferenceConfig     `yaml:"inference" envPrefix:"INFERENCE_"`
	Tokenizer     TokenizerConfig     `yaml:"tokenizer" envPrefix:"TOKENIZER_"`
	Chunker       ChunkerConfig       `yaml:"chunker" envPrefix:"CHUNKER_"`
	Entities      EntitiesConfig      `yaml:"entities" envPrefix:"ENTITIES_"`
	Anonymization AnonymizationConfig `yaml:"anonymization" envPrefix:"ANONYMIZATION_"`
	Testing       TestingConfig       `yaml:"testing" envPrefix:"TESTING_"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Extraction    ExtractionConfig    `yaml:"extraction" envPrefix:"EXTRACTION_"`
	Report        ReportConfig        `yaml:"report" envPrefix:"REPORT_"`
	Log           LogConfig           `yaml:"log" envPrefix:"LOG_"`
}

// Load reads a config from path and applies ANONLAB_* environment
// overrides. A missing file yields the defaults. The result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./anonlab.yaml first, then ~/.config/anonlab/config.yaml.
// If neither exists, it writes defaults to ~/.config/anonlab/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(fileName); err == nil {
		cfg, err := Load(fileName)
		return cfg, fileName, err
	}
	userPath, err := DefaultUserPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultUserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "anonlab", "config.yaml"), nil
}

// Validate runs the struct tags and the cross-field rules the tags cannot
// express. Weight and band failures surface as *domain.InvalidWeightsError.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	strategy, err := anonymize.ParseStrategy(c.Anonymization.Strategy)
	if err != nil {
		return err
	}
	if err := strategy.Validate(c.Anonymization.Guidelines); err != nil {
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if _, err := scoring.NewAggregator(c.Scoring.Weights, c.Scoring.Bands); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) Thresholds() resistance.Thresholds {
	return resistance.Thresholds{HighRiskBelow: c.Testing.HighRiskBelow, LowRiskFrom: c.Testing.LowRiskFrom}
}

// Default returns a fresh copy of the built-in configuration.
func Default() *AppConfig {
	orch := anonymize.DefaultConfig()
	th := resistance.DefaultThresholds()
	return &AppConfig{
		Inference: InferenceConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "llama3:8b-instruct",
			APIKeyEnv:   "OPENAI_API_KEY",
			Timeout:     120 * time.Second,
			Temperature: 0.3,
			TopP:        0.9,
			MaxTokens:   4096,
		},
		Tokenizer: TokenizerConfig{Kind: "word", Model: "cl100k_base"},
		Chunker:   ChunkerConfig{BudgetTokens: 2000, OverlapTokens: 200, LookbackTokens: 100},
		Entities:  EntitiesConfig{Taggers: []string{"rules"}, CacheSize: 256, MinConfidence: 0},
		Anonymization: AnonymizationConfig{
			Strategy:       string(orch.Strategy),
			Concurrency:    orch.Concurrency,
			MaxAttempts:    orch.MaxAttempts,
			CallTimeout:    orch.CallTimeout,
			RetryBase:      orch.RetryBase,
			HealthAttempts: orch.HealthAttempts,
			HealthBase:     orch.HealthBase,
			Fallback:       string(orch.Fallback),
			Seams: SeamsConfig{
				MinAlignWords: orch.Seams.MinAlignWords,
				MaxAlignWords: orch.Seams.MaxAlignWords,
				Tolerance:     orch.Seams.Tolerance,
			},
		},
		Testing: TestingConfig{
			HighRiskBelow: th.HighRiskBelow,
			LowRiskFrom:   th.LowRiskFrom,
			CallTimeout:   120 * time.Second,
			CacheSize:     128,
			Temperature:   0.3,
		},
		Scoring:    ScoringConfig{Weights: scoring.DefaultWeights(), Bands: scoring.DefaultBands()},
		Extraction: ExtractionConfig{MaxFileSizeMB: 50, MaxWords: 50000, MaxBatchFiles: 10},
		Report:     ReportConfig{Format: "json", ExcerptSentences: 5},
		Log:        LogConfig{Level: "info"},
	}
}
