package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. PROGRESS
// samples are logged at debug level since a sweep produces many of them.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageProgress:
			fields = append(fields,
				zap.String("element", evt.Element),
				zap.Float64("scroll_y", evt.ScrollY),
				zap.Float64("progress", evt.Progress),
				zap.Int64("frame", evt.Frame),
			)
			s.logger.Debug("progress event", fields...)
			continue
		case progress.StageRecalc:
			fields = append(fields,
				zap.Int("elements", evt.Elements),
				zap.Float64("viewport_height", evt.ViewportHeight),
			)
		case progress.StageRunStart:
			fields = append(fields,
				zap.String("source", evt.Source),
				zap.Int("elements", evt.Elements),
			)
		default:
			fields = append(fields,
				zap.String("source", evt.Source),
				zap.Duration("dur", evt.Dur),
				zap.String("note", evt.Note),
			)
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
