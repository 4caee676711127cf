// Package report assembles the outcome of one pipeline run and exports it.
package report

import (
	"time"

	"anonlab/internal/anonymize"
	"anonlab/internal/domain"
	"anonlab/internal/resistance"
	"anonlab/internal/scoring"
)

type DocumentInfo struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Words  int    `json:"words" yaml:"words"`
	Tokens int    `json:"tokens" yaml:"tokens"`
}

type StrategyInfo struct {
	Name       anonymize.Strategy `json:"name" yaml:"name"`
	Title      string             `json:"title" yaml:"title"`
	Guidelines string             `json:"guidelines,omitempty" yaml:"guidelines,omitempty"`
}

// Summary is the executive summary shown at the top of every export.
type Summary struct {
	Tier           domain.QualityTier `json:"tier" yaml:"tier"`
	Description    string             `json:"description" yaml:"description"`
	Recommendation string             `json:"recommendation" yaml:"recommendation"`
}

// Anonymization describes the orchestrator run. FailedChunks are 1-based
// to match the markers in the anonymized text.
type Anonymization struct {
	ChunksTotal     int                     `json:"chunks_total" yaml:"chunks_total"`
	ChunksProcessed int                     `json:"chunks_processed" yaml:"chunks_processed"`
	ChunksFailed    int                     `json:"chunks_failed" yaml:"chunks_failed"`
	FailedChunks    []int                   `json:"failed_chunks,omitempty" yaml:"failed_chunks,omitempty"`
	Seams           []anonymize.SeamWarning `json:"seam_warnings,omitempty" yaml:"seam_warnings,omitempty"`
	TokensUsed      int                     `json:"tokens_used" yaml:"tokens_used"`
	Duration        time.Duration           `json:"duration_ns" yaml:"duration_ns"`
}

type Report struct {
	RunID              string                  `json:"run_id" yaml:"run_id"`
	GeneratedAt        time.Time               `json:"generated_at" yaml:"generated_at"`
	Document           DocumentInfo            `json:"document" yaml:"document"`
	Strategy           StrategyInfo            `json:"strategy" yaml:"strategy"`
	Score              domain.CompositeScore   `json:"score" yaml:"score"`
	Summary            Summary                 `json:"summary" yaml:"summary"`
	Strategic          domain.StrategicScores  `json:"strategic_value" yaml:"strategic_value"`
	Tests              []domain.TestResult     `json:"tests" yaml:"tests"`
	TestState          resistance.State        `json:"test_state" yaml:"test_state"`
	DegradedCategories []domain.Category       `json:"degraded_categories,omitempty" yaml:"degraded_categories,omitempty"`
	Risk               resistance.RiskAnalysis `json:"risk" yaml:"risk"`
	Recommendations    []string                `json:"recommendations" yaml:"recommendations"`
	Anonymization      Anonymization           `json:"anonymization" yaml:"anonymization"`
	Warnings           []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Excerpt            string                  `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	AnonymizedText     string                  `json:"anonymized_text" yaml:"anonymized_text"`
}

// Input gathers the stage outputs a report is built from.
type Input struct {
	RunID      string
	Document   domain.Document
	Guidelines string
	Anon       *anonymize.Result
	Tests      *resistance.Result
	Strategic  domain.StrategicScores
	Score      domain.CompositeScore
	Warnings   []string
	Excerpt    string
}

// New builds a report. Chunk and category failures become explicit
// degradation markers.
func New(in Input) *Report {
	info := scoring.DescribeTier(in.Score.Tier)
	r := &Report{
		RunID:       in.RunID,
		GeneratedAt: time.Now().UTC(),
		Document: DocumentInfo{
			ID:     in.Document.ID,
			Source: in.Document.Source,
			Words:  in.Document.WordCount,
			Tokens: in.Document.TokenCount,
		},
		Score: in.Score,
		Summary: Summary{
			Tier:           in.Score.Tier,
			Description:    info.Description,
			Recommendation: info.Recommendation,
		},
		Strategic: in.Strategic,
		Warnings:  in.Warnings,
		Excerpt:   in.Excerpt,
	}
	if a := in.Anon; a != nil {
		r.Strategy = StrategyInfo{Name: a.Strategy, Title: a.Strategy.Title()}
		if a.Strategy == anonymize.CustomGuided {
			r.Strategy.Guidelines = in.Guidelines
		}
		r.Anonymization = Anonymization{
			ChunksTotal:     a.ChunksTotal,
			ChunksProcessed: a.ChunksProcessed,
			ChunksFailed:    a.ChunksFailed,
			Seams:           a.Seams,
			TokensUsed:      a.TokensUsed,
			Duration:        a.Duration,
		}
		for _, c := range a.Chunks {
			if !c.Success {
				r.Anonymization.FailedChunks = append(r.Anonymization.FailedChunks, c.Index+1)
			}
		}
		r.AnonymizedText = a.Text
	}
	if t := in.Tests; t != nil {
		r.Tests = t.Results
		r.TestState = t.State
		r.Risk = t.Risk
		r.Recommendations = t.Recommendations
		r.DegradedCategories = t.Failed()
	}
	return r
}

// Degraded reports whether any chunk or test category failed.
func (r *Report) Degraded() bool {
	return r.Anonymization.ChunksFailed > 0 || len(r.DegradedCategories) > 0
}

// Comparison is the export of a multi-strategy run over one document.
type Comparison struct {
	RunID       string             `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	Document    DocumentInfo       `json:"document" yaml:"document"`
	Result      scoring.Comparison `json:"comparison" yaml:"comparison"`
	Reports     []*Report          `json:"reports" yaml:"reports"`
}
