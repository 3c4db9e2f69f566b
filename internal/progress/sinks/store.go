package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/progress"
	"github.com/JakeFAU/scrollprobe/internal/store"
)

// StoreSink persists run lifecycle and progress samples via a
// store.ProgressRepository. Samples are written once per batch.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards lifecycle events in order and collects samples into a
// single InsertSamples call. Samples are flushed before a completion event so
// a run is never marked finished ahead of its own samples.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	var samples []store.Sample
	flush := func() error {
		if len(samples) == 0 {
			return nil
		}
		if err := s.repo.InsertSamples(ctx, samples); err != nil {
			return fmt.Errorf("insert samples: %w", err)
		}
		samples = samples[:0]
		return nil
	}

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageProgress:
			samples = append(samples, store.Sample{
				RunID:      evt.RunUUID(),
				Element:    evt.Element,
				Frame:      evt.Frame,
				ScrollY:    evt.ScrollY,
				Progress:   evt.Progress,
				RecordedAt: evt.TS,
			})
		case progress.StageRunStart:
			if err := s.repo.UpsertRunStart(ctx, evt.RunUUID(), evt.Source, evt.Elements, evt.TS); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageRunDone, progress.StageRunError:
			if err := flush(); err != nil {
				return err
			}
			if err := s.completeRun(ctx, evt); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *StoreSink) completeRun(ctx context.Context, evt progress.Event) error {
	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			msg := evt.Note
			note = &msg
		}
	}
	if err := s.repo.CompleteRun(ctx, evt.RunUUID(), evt.TS, status, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
