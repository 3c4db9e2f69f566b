package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/progress"
)

const traceContentType = "application/x-ndjson"

// BlobStore persists an object and returns its URI. The local, memory and GCS
// stores under internal/storage satisfy it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, body io.Reader) (string, error)
}

// BlobSink accumulates one JSON-lines trace per run and uploads it when the
// run completes. Runs still open when the sink closes are uploaded as-is.
type BlobSink struct {
	store  BlobStore
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	traces map[[16]byte]*bytes.Buffer
	uris   map[uuid.UUID]string
}

// NewBlobSink constructs a BlobSink writing traces under prefix.
func NewBlobSink(store BlobStore, prefix string, logger *zap.Logger) *BlobSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobSink{
		store:  store,
		prefix: prefix,
		logger: logger,
		traces: make(map[[16]byte]*bytes.Buffer),
		uris:   make(map[uuid.UUID]string),
	}
}

// TracePath returns the object path used for a run's trace.
func (s *BlobSink) TracePath(runID uuid.UUID) string {
	return path.Join(s.prefix, "traces", runID.String()+".jsonl")
}

// URI returns the uploaded trace URI of a completed run.
func (s *BlobSink) URI(runID uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri, ok := s.uris[runID]
	return uri, ok
}

// Consume appends every event to its run's trace and uploads traces of runs
// that finished in this batch.
func (s *BlobSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	var finished [][16]byte
	s.mu.Lock()
	for _, evt := range batch {
		buf := s.traces[evt.RunID]
		if buf == nil {
			buf = &bytes.Buffer{}
			s.traces[evt.RunID] = buf
		}
		line, err := json.Marshal(evt.Record())
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encode trace record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		if evt.Stage == progress.StageRunDone || evt.Stage == progress.StageRunError {
			finished = append(finished, evt.RunID)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range finished {
		if err := s.upload(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close uploads the traces of runs that never completed.
func (s *BlobSink) Close(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	s.mu.Lock()
	open := make([][16]byte, 0, len(s.traces))
	for id := range s.traces {
		open = append(open, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range open {
		if err := s.upload(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *BlobSink) upload(ctx context.Context, id [16]byte) error {
	s.mu.Lock()
	buf, ok := s.traces[id]
	delete(s.traces, id)
	s.mu.Unlock()
	if !ok || buf.Len() == 0 {
		return nil
	}
	runID := uuid.UUID(id)
	uri, err := s.store.PutObject(ctx, s.TracePath(runID), traceContentType, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("put trace %s: %w", runID, err)
	}
	s.mu.Lock()
	s.uris[runID] = uri
	s.mu.Unlock()
	s.logger.Info("run trace uploaded", zap.Stringer("run_id", runID), zap.String("uri", uri))
	return nil
}
