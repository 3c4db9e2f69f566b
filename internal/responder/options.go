package responder

import "go.uber.org/zap"

// Bound is the size of the trigger window measured from the top of the
// viewport downward. The zero value tracks the viewport height, re-read on
// every Recalculate.
type Bound struct {
	px    float64
	fixed bool
}

// ViewportBound returns the default bound that follows the viewport height.
func ViewportBound() Bound {
	return Bound{}
}

// FixedBound returns a bound of px pixels.
func FixedBound(px float64) Bound {
	return Bound{px: px, fixed: true}
}

// IsFixed reports whether the bound overrides the viewport height.
func (b Bound) IsFixed() bool {
	return b.fixed
}

// Resolve returns the bound in pixels for the given viewport height.
func (b Bound) Resolve(viewportHeight float64) float64 {
	if b.fixed {
		return b.px
	}
	return viewportHeight
}

// Options configures a Responder.
//   - UpperBound: trigger window size; defaults to the viewport height.
//   - HideAtScrollTop: shrink the window for elements already visible at
//     scroll offset 0 so their progress starts at the top of the page.
//   - PreCalculate: optional hook run per element after each layout pass,
//     used to cache caller-specific values before scroll evaluation.
//   - Logger: optional structured logger.
//   - Recorder: optional metrics hook.
type Options[E comparable] struct {
	UpperBound      Bound
	HideAtScrollTop bool
	PreCalculate    func(el E)
	Logger          *zap.Logger
	Recorder        Recorder
}
