package ai

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReportResult is the outcome of one report generation call.
type ReportResult struct {
	Content    string
	Model      string
	TokensUsed int
	Duration   time.Duration
}

// Classification is the structured verdict extracted from one transcript.
type Classification struct {
	Sentiment    string   `json:"sentiment"`
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	Dishes       []string `json:"dishes"`
	Severity     int      `json:"severity"`
	ProblemTypes []string `json:"problemTypes"`
}

// Client is the language-model boundary. Implementations must be safe for
// concurrent use.
type Client interface {
	// Transcribe converts a voice recording to text. filename carries the
	// extension the model uses to pick a decoder.
	Transcribe(ctx context.Context, filename string, data []byte) (string, error)

	// Classify extracts a structured verdict from a single transcript.
	Classify(ctx context.Context, text string) (*Classification, error)

	// ClassifyBatch classifies many transcripts. Entries that fail are
	// absent from the result map; the batch itself only errors when the
	// whole call is unusable.
	ClassifyBatch(ctx context.Context, texts map[snowflake.ID]string) (map[snowflake.ID]*Classification, error)

	// GenerateReport runs the compiled prompt against the chat model.
	GenerateReport(ctx context.Context, prompt string) (*ReportResult, error)

	// Summarize condenses a full report into a short owner-facing digest.
	Summarize(ctx context.Context, report string) (string, error)
}
