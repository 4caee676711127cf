package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anonlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should return defaults when the file does not exist", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Should overlay a partial file on the defaults", func(t *testing.T) {
		path := writeFile(t, "chunker:\n  budget_tokens: 1000\n  overlap_tokens: 50\nanonymization:\n  strategy: strategic\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1000, cfg.Chunker.BudgetTokens)
		assert.Equal(t, 50, cfg.Chunker.OverlapTokens)
		assert.Equal(t, 100, cfg.Chunker.LookbackTokens)
		assert.Equal(t, "strategic", cfg.Anonymization.Strategy)
		assert.Equal(t, "llama3:8b-instruct", cfg.Inference.Model)
	})

	t.Run("Should apply environment overrides after the file", func(t *testing.T) {
		t.Setenv("ANONLAB_INFERENCE_MODEL", "mistral:7b")
		t.Setenv("ANONLAB_CHUNKER_BUDGET_TOKENS", "500")
		t.Setenv("ANONLAB_ANONYMIZATION_SEAMS_TOLERANCE", "0.2")
		t.Setenv("ANONLAB_ENTITIES_TAGGERS", "rules,llm")
		path := writeFile(t, "chunker:\n  budget_tokens: 1000\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "mistral:7b", cfg.Inference.Model)
		assert.Equal(t, 500, cfg.Chunker.BudgetTokens)
		assert.InDelta(t, 0.2, cfg.Anonymization.Seams.Tolerance, 1e-9)
		assert.Equal(t, []string{"rules", "llm"}, cfg.Entities.Taggers)
	})

	t.Run("Should fail with InvalidWeightsError when a weight vector does not sum to one", func(t *testing.T) {
		path := writeFile(t, "scoring:\n  weights:\n    overall:\n      resistance: 0.7\n      value: 0.4\n")
		_, err := Load(path)
		require.Error(t, err)
		var werr *domain.InvalidWeightsError
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, "overall", werr.Vector)
	})

	t.Run("Should fail with InvalidWeightsError on a band gap", func(t *testing.T) {
		path := writeFile(t, `scoring:
  bands:
    - {tier: Good, min: 50, max: 100}
    - {tier: Failed, min: 0, max: 40}
`)
		_, err := Load(path)
		var werr *domain.InvalidWeightsError
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, "bands", werr.Vector)
	})

	t.Run("Should reject malformed YAML", func(t *testing.T) {
		_, err := Load(writeFile(t, "chunker: [unclosed\n"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"Should reject an overlap not below the budget", func(c *AppConfig) { c.Chunker.OverlapTokens = c.Chunker.BudgetTokens }},
		{"Should reject an unknown strategy", func(c *AppConfig) { c.Anonymization.Strategy = "shred" }},
		{"Should reject custom-guided without guidelines", func(c *AppConfig) { c.Anonymization.Strategy = "custom" }},
		{"Should reject an unknown provider", func(c *AppConfig) { c.Inference.Provider = "bard" }},
		{"Should reject an unknown tagger", func(c *AppConfig) { c.Entities.Taggers = []string{"spacy"} }},
		{"Should reject inverted risk thresholds", func(c *AppConfig) { c.Testing.HighRiskBelow, c.Testing.LowRiskFrom = 80, 50 }},
		{"Should reject an unknown report format", func(c *AppConfig) { c.Report.Format = "pdf" }},
		{"Should reject zero concurrency", func(c *AppConfig) { c.Anonymization.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("Should accept the defaults", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("Should accept custom-guided with guidelines", func(t *testing.T) {
		cfg := Default()
		cfg.Anonymization.Strategy = "custom-guided"
		cfg.Anonymization.Guidelines = "Remove employer names."
		assert.NoError(t, cfg.Validate())
	})
}

func TestSave(t *testing.T) {
	t.Run("Should write a file that loads back to the same config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		cfg := Default()
		cfg.Chunker.BudgetTokens = 750
		cfg.Log.JSON = true
		require.NoError(t, Save(path, cfg))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})
}
