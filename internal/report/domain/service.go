package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNoActivePrompt = errors.New("no_active_prompt")
	ErrNoTranscripts  = errors.New("no_transcripts")
	ErrReportNotFound = errors.New("report_not_found")
)

// SkipReason explains why a scheduled pass did not produce a report for a
// restaurant.
type SkipReason string

const (
	SkipNotDue        SkipReason = "NOT_DUE"
	SkipRecentReport  SkipReason = "RECENT_REPORT"
	SkipBilling       SkipReason = "BILLING"
	SkipNoTranscripts SkipReason = "NO_TRANSCRIPTS"
)

// RunResult summarizes one scheduled pass over all restaurants.
type RunResult struct {
	Generated int
	Skipped   map[SkipReason]int
	Failed    int
}

type Service interface {
	// RunScheduled walks every restaurant with a schedule and generates a
	// report for each one whose schedule matches now. Running the pass
	// twice within the dedup window produces no second report.
	RunScheduled(ctx context.Context) (*RunResult, error)

	// Generate builds one report for the given period regardless of
	// schedule. Used for manual triggers.
	Generate(ctx context.Context, restaurantID snowflake.ID, from, to time.Time, trigger Trigger) (*Report, error)
}
