// Package store declares interfaces for persisting probe runs and their
// progress samples.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("progress record not found")

// RunStatus mirrors the probe_runs status column.
type RunStatus string

// Run statuses persisted in probe_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// ParseRunStatus validates a status string.
func ParseRunStatus(raw string) (RunStatus, error) {
	switch RunStatus(raw) {
	case RunRunning, RunSuccess, RunError:
		return RunStatus(raw), nil
	default:
		return "", errors.New("status must be one of running, success, error")
	}
}

// Run models the probe_runs table.
type Run struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// Source is the page URL or layout name that was probed.
	Source string
	// Elements counts tracked elements.
	Elements int
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// Sample is one animate invocation recorded during a run.
type Sample struct {
	RunID      uuid.UUID
	Element    string
	Frame      int64
	ScrollY    float64
	Progress   float64
	RecordedAt time.Time
}

// ElementSummary aggregates the samples of one element within a run.
type ElementSummary struct {
	RunID        uuid.UUID
	Element      string
	Samples      int64
	MinProgress  float64
	MaxProgress  float64
	LastProgress float64
	LastUpdate   time.Time
}

// ProgressRepository persists run lifecycle and progress samples.
type ProgressRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the run row.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, source string, elements int, startedAt time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// InsertSamples appends progress samples.
	InsertSamples(ctx context.Context, samples []Sample) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListRunElements returns per-element summaries for one run.
	ListRunElements(ctx context.Context, runID uuid.UUID, limit, offset int) ([]ElementSummary, error)
}
