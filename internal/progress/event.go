package progress

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRecalc   Stage = "RECALC"
	StageProgress Stage = "PROGRESS"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures one milestone of a probe run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone or sample this is.
	Stage Stage
	// Source is the page URL or layout name the run measures.
	Source string
	// Element is the tracked element label for PROGRESS events.
	Element string
	// ScrollY is the scroll offset the sample was computed at.
	ScrollY float64
	// Progress is the unclamped scroll progress of Element.
	Progress float64
	// Frame is the loop tick the sample belongs to.
	Frame int64
	// Elements counts tracked elements on RUN_START and RECALC.
	Elements int
	// ViewportHeight is recorded on RECALC.
	ViewportHeight float64
	// Dur captures run duration on completion events.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRecalc, StageRunDone, StageRunError:
	case StageProgress:
		if e.Element == "" {
			return errors.New("progress event requires element")
		}
		if math.IsNaN(e.Progress) || math.IsInf(e.Progress, 0) {
			return errors.New("progress must be finite")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// Record is the JSON form of an Event used by traces and published batches.
type Record struct {
	RunID          string  `json:"run_id"`
	TS             string  `json:"ts"`
	Stage          Stage   `json:"stage"`
	Source         string  `json:"source,omitempty"`
	Element        string  `json:"element,omitempty"`
	ScrollY        float64 `json:"scroll_y"`
	Progress       float64 `json:"progress,omitempty"`
	Frame          int64   `json:"frame,omitempty"`
	Elements       int     `json:"elements,omitempty"`
	ViewportHeight float64 `json:"viewport_height,omitempty"`
	DurMS          int64   `json:"dur_ms,omitempty"`
	Note           string  `json:"note,omitempty"`
}

// Record converts the event into its JSON form.
func (e Event) Record() Record {
	return Record{
		RunID:          e.RunUUID().String(),
		TS:             e.TS.UTC().Format(time.RFC3339Nano),
		Stage:          e.Stage,
		Source:         e.Source,
		Element:        e.Element,
		ScrollY:        e.ScrollY,
		Progress:       e.Progress,
		Frame:          e.Frame,
		Elements:       e.Elements,
		ViewportHeight: e.ViewportHeight,
		DurMS:          e.Dur.Milliseconds(),
		Note:           e.Note,
	}
}
