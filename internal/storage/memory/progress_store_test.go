package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/scrollprobe/internal/store"
)

func TestProgressStoreLifecycle(t *testing.T) {
	t.Parallel()

	ps := NewProgressStore()
	ctx := context.Background()
	runID := uuid.New()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := ps.UpsertRunStart(ctx, runID, "layout", 2, start); err != nil {
		t.Fatalf("UpsertRunStart() error = %v", err)
	}
	samples := []store.Sample{
		{RunID: runID, Element: "b", Progress: 0.2, RecordedAt: start.Add(time.Millisecond)},
		{RunID: runID, Element: "a", Progress: 0.1, RecordedAt: start.Add(time.Millisecond)},
		{RunID: runID, Element: "a", Progress: 0.7, RecordedAt: start.Add(2 * time.Millisecond)},
	}
	if err := ps.InsertSamples(ctx, samples); err != nil {
		t.Fatalf("InsertSamples() error = %v", err)
	}
	msg := "boom"
	if err := ps.CompleteRun(ctx, runID, start.Add(time.Second), store.RunError, &msg); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}
	msg = "changed"

	run, err := ps.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != store.RunError || run.FinishedAt == nil || *run.ErrorMessage != "boom" {
		t.Fatalf("unexpected run %+v", run)
	}
	if !run.StartedAt.Equal(start) || run.Elements != 2 || run.Source != "layout" {
		t.Fatalf("unexpected run metadata %+v", run)
	}

	elems, err := ps.ListRunElements(ctx, runID, 0, 0)
	if err != nil {
		t.Fatalf("ListRunElements() error = %v", err)
	}
	if len(elems) != 2 || elems[0].Element != "a" {
		t.Fatalf("unexpected summaries %+v", elems)
	}
	if elems[0].Samples != 2 || elems[0].MinProgress != 0.1 || elems[0].MaxProgress != 0.7 || elems[0].LastProgress != 0.7 {
		t.Fatalf("unexpected summary for a: %+v", elems[0])
	}
}

func TestProgressStoreGetRunNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewProgressStore().GetRun(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressStoreListRunsFilterAndPage(t *testing.T) {
	t.Parallel()

	ps := NewProgressStore()
	ctx := context.Background()
	base := time.Now()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		if err := ps.UpsertRunStart(ctx, id, "src", 1, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("UpsertRunStart() error = %v", err)
		}
	}
	if err := ps.CompleteRun(ctx, ids[0], base, store.RunSuccess, nil); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	running := store.RunRunning
	runs, err := ps.ListRuns(ctx, &running, 0, 0)
	if err != nil || len(runs) != 2 {
		t.Fatalf("ListRuns(running) = %v, %v", runs, err)
	}
	if runs[0].ID != ids[2] {
		t.Fatalf("expected newest first, got %v", runs[0].ID)
	}

	paged, err := ps.ListRuns(ctx, nil, 1, 1)
	if err != nil || len(paged) != 1 || paged[0].ID != ids[1] {
		t.Fatalf("ListRuns(page) = %v, %v", paged, err)
	}
	empty, err := ps.ListRuns(ctx, nil, 10, 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListRuns(past end) = %v, %v", empty, err)
	}
}
