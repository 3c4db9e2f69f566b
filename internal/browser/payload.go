package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind names a host occurrence reported by the page.
type Kind string

// Occurrence kinds emitted by the page script.
const (
	KindLoad   Kind = "load"
	KindResize Kind = "resize"
	KindScroll Kind = "scroll"
)

// Occurrence is one decoded binding payload.
type Occurrence struct {
	Kind Kind    `json:"type"`
	Y    float64 `json:"y"`
}

// DecodeOccurrence parses a binding payload such as {"type":"scroll","y":120}.
func DecodeOccurrence(payload string) (Occurrence, error) {
	var occ Occurrence
	if err := json.Unmarshal([]byte(payload), &occ); err != nil {
		return Occurrence{}, fmt.Errorf("decode binding payload: %w", err)
	}
	switch occ.Kind {
	case KindLoad, KindResize, KindScroll:
	case "":
		return Occurrence{}, errors.New("binding payload has no type")
	default:
		return Occurrence{}, fmt.Errorf("unknown occurrence type %q", occ.Kind)
	}
	if math.IsNaN(occ.Y) || math.IsInf(occ.Y, 0) {
		return Occurrence{}, errors.New("binding payload y must be finite")
	}
	return occ, nil
}
