package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/scrollprobe/internal/store"
)

// ProgressStore is an in-memory store.ProgressRepository.
type ProgressStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]store.Run
	samples map[uuid.UUID][]store.Sample
}

// NewProgressStore constructs a ProgressStore.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		runs:    make(map[uuid.UUID]store.Run),
		samples: make(map[uuid.UUID][]store.Sample),
	}
}

var _ store.ProgressRepository = (*ProgressStore)(nil)

// UpsertRunStart records the run as running. Repeated calls keep the first
// start time.
func (s *ProgressStore) UpsertRunStart(
	_ context.Context,
	runID uuid.UUID,
	source string,
	elements int,
	startedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		run = store.Run{ID: runID, StartedAt: startedAt.UTC()}
	}
	run.Source = source
	run.Elements = elements
	run.Status = store.RunRunning
	run.FinishedAt = nil
	run.ErrorMessage = nil
	s.runs[runID] = run
	return nil
}

// CompleteRun marks the run finished. Unknown runs are created so a missed
// start event does not lose the outcome.
func (s *ProgressStore) CompleteRun(
	_ context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		run = store.Run{ID: runID, StartedAt: finishedAt.UTC()}
	}
	finished := finishedAt.UTC()
	run.FinishedAt = &finished
	run.Status = status
	if errMsg != nil {
		msg := *errMsg
		run.ErrorMessage = &msg
	}
	s.runs[runID] = run
	return nil
}

// InsertSamples appends samples to their runs.
func (s *ProgressStore) InsertSamples(_ context.Context, samples []store.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.samples[sample.RunID] = append(s.samples[sample.RunID], sample)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *ProgressStore) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *ProgressStore) ListRuns(
	_ context.Context,
	status *store.RunStatus,
	limit, offset int,
) ([]store.Run, error) {
	s.mu.RLock()
	runs := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		runs = append(runs, run)
	}
	s.mu.RUnlock()
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return page(runs, limit, offset), nil
}

// ListRunElements aggregates samples per element in element order.
func (s *ProgressStore) ListRunElements(
	_ context.Context,
	runID uuid.UUID,
	limit, offset int,
) ([]store.ElementSummary, error) {
	s.mu.RLock()
	samples := s.samples[runID]
	byElement := make(map[string]*store.ElementSummary)
	for _, sample := range samples {
		sum := byElement[sample.Element]
		if sum == nil {
			sum = &store.ElementSummary{
				RunID:       runID,
				Element:     sample.Element,
				MinProgress: sample.Progress,
				MaxProgress: sample.Progress,
			}
			byElement[sample.Element] = sum
		}
		sum.Samples++
		sum.MinProgress = min(sum.MinProgress, sample.Progress)
		sum.MaxProgress = max(sum.MaxProgress, sample.Progress)
		if !sample.RecordedAt.Before(sum.LastUpdate) {
			sum.LastUpdate = sample.RecordedAt
			sum.LastProgress = sample.Progress
		}
	}
	s.mu.RUnlock()

	out := make([]store.ElementSummary, 0, len(byElement))
	for _, sum := range byElement {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[max(offset, 0):]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
