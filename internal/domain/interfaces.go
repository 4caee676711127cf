package domain

import (
	"context"
	"time"
)

// Document is a raw text document loaded into the session. It is never
// mutated after ingestion.
type Document struct {
	ID         string
	Source     string
	Text       string
	WordCount  int
	TokenCount int
}

// Chunk is a window over a Document's text. Start and End are byte offsets
// (half-open) into Document.Text.
type Chunk struct {
	Index         int
	Start         int
	End           int
	TokenCount    int
	OverlapTokens int
}

// Text returns the chunk's slice of the document text.
func (c Chunk) Text(doc Document) string {
	return doc.Text[c.Start:c.End]
}

// EntityCategory is the canonical classification of an extracted entity.
type EntityCategory string

const (
	EntityPerson        EntityCategory = "person"
	EntityOrganization  EntityCategory = "organization"
	EntityLocation      EntityCategory = "location"
	EntityDate          EntityCategory = "date"
	EntityLegalCitation EntityCategory = "legal-citation"
	EntityCourt         EntityCategory = "court"
	EntityMoney         EntityCategory = "money"
	EntityContact       EntityCategory = "contact"
	EntityIdentifier    EntityCategory = "identifier"
	EntityOther         EntityCategory = "other"
)

// Entity is a normalized identifier found in a document.
type Entity struct {
	Category   EntityCategory
	Text       string
	Start      int
	End        int
	Confidence float64
	Source     string
}

// AnonymizedChunk is the outcome of anonymizing one Chunk.
type AnonymizedChunk struct {
	Index      int      `json:"index" yaml:"index"`
	Text       string   `json:"text" yaml:"text"`
	Success    bool     `json:"success" yaml:"success"`
	Err        string   `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int      `json:"attempts" yaml:"attempts"`
	Passes     []string `json:"passes" yaml:"passes"`
	TokensUsed int      `json:"tokens_used" yaml:"tokens_used"`
}

// Severity ranks a Finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// Finding is one observation produced by a test category.
type Finding struct {
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// RiskTier buckets a category score.
type RiskTier string

const (
	RiskHigh   RiskTier = "High"
	RiskMedium RiskTier = "Medium"
	RiskLow    RiskTier = "Low"
)

// Category names one of the five reconstruction test categories.
type Category string

const (
	CategoryDirectIdentifier Category = "direct-identifier"
	CategoryPatternMatching  Category = "pattern-matching"
	CategoryContextual       Category = "contextual-reconstruction"
	CategoryCrossReference   Category = "cross-reference"
	CategoryFingerprint      Category = "linguistic-fingerprint"
)

// Categories lists the test categories in report order.
var Categories = []Category{
	CategoryDirectIdentifier,
	CategoryPatternMatching,
	CategoryContextual,
	CategoryCrossReference,
	CategoryFingerprint,
}

// TestResult is the outcome of one reconstruction test category.
type TestResult struct {
	Category Category           `json:"category" yaml:"category"`
	Score    float64            `json:"score" yaml:"score"`
	Findings []Finding          `json:"findings" yaml:"findings"`
	Risk     RiskTier           `json:"risk" yaml:"risk"`
	Failed   bool               `json:"failed" yaml:"failed"`
	Duration time.Duration      `json:"duration_ns" yaml:"duration_ns"`
	Details  map[string]float64 `json:"details,omitempty" yaml:"details,omitempty"`
}

// ValueDimension names one strategic-value sub-score.
type ValueDimension string

const (
	ValueLegalPrinciple ValueDimension = "legal-principle"
	ValueEducational    ValueDimension = "educational"
	ValueBusiness       ValueDimension = "business-intelligence"
	ValueProcedural     ValueDimension = "procedural-guidance"
)

// ValueDimensions lists the strategic-value dimensions in report order.
var ValueDimensions = []ValueDimension{
	ValueLegalPrinciple,
	ValueEducational,
	ValueBusiness,
	ValueProcedural,
}

// StrategicScores holds the strategic-value sub-scores, each 0-100.
type StrategicScores map[ValueDimension]float64

// QualityTier is the discrete label derived from the overall score.
type QualityTier string

const (
	TierExcellent  QualityTier = "Excellent"
	TierGood       QualityTier = "Good"
	TierAcceptable QualityTier = "Acceptable"
	TierPoor       QualityTier = "Poor"
	TierFailed     QualityTier = "Failed"
)

// CompositeScore is derived from TestResults and StrategicScores.
type CompositeScore struct {
	Resistance     float64     `json:"resistance" yaml:"resistance"`
	StrategicValue float64     `json:"strategic_value" yaml:"strategic_value"`
	Overall        float64     `json:"overall" yaml:"overall"`
	Tier           QualityTier `json:"tier" yaml:"tier"`
}

// Tokenizer splits text into model-countable units.
type Tokenizer interface {
	Name() string
	Tokenize(text string) []Token
	Count(text string) int
}

// Token is a byte span in the tokenized text.
type Token struct {
	Start int
	End   int
}

// Chunker splits documents into token-bounded overlapping windows.
type Chunker interface {
	Chunk(doc Document) ([]Chunk, error)
}

// RawEntity is an entity as reported by an external tagger, before
// normalization.
type RawEntity struct {
	Label      string
	Text       string
	Start      int
	End        int
	Confidence float64
}

// Tagger is the external NLP entity tagger.
type Tagger interface {
	Name() string
	Tag(ctx context.Context, text string) ([]RawEntity, error)
}

// EntityExtractor returns the canonical entity set for a text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
}

// Sampling configures a generation request.
type Sampling struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Generation is the inference collaborator's answer.
type Generation struct {
	Text       string
	TokensUsed int
}

// Generator is the local language-model inference collaborator.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, sampling Sampling) (Generation, error)
	Health(ctx context.Context) error
}

// Extraction is the output of the document-extraction collaborator.
type Extraction struct {
	Text      string
	WordCount int
	Errors    []string
}

// DocumentExtractor turns a file into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (Extraction, error)
}

// CorpusDocument is a document held in the session cross-reference corpus.
type CorpusDocument struct {
	ID     string
	Source string
	Text   string
}

// Corpus is the in-session cross-reference corpus. Writes are serialized
// and reads may be concurrent.
type Corpus interface {
	Add(doc CorpusDocument) error
	Snapshot() []CorpusDocument
	Len() int
}
