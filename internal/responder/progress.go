package responder

// Metrics is the cached layout record of one tracked element.
type Metrics struct {
	OffsetTop    float64
	ClientHeight float64
	OffsetBottom float64
}

// OffsetTop walks the offset-parent chain from el to the document root and
// sums every local offset.
func OffsetTop[E comparable](doc Document[E], el E) float64 {
	var top float64
	for {
		top += doc.OffsetTop(el)
		parent, ok := doc.OffsetParent(el)
		if !ok {
			return top
		}
		el = parent
	}
}

// Measure reads a complete Metrics record for el.
func Measure[E comparable](doc Document[E], el E) Metrics {
	top := OffsetTop(doc, el)
	height := doc.ClientHeight(el)
	return Metrics{
		OffsetTop:    top,
		ClientHeight: height,
		OffsetBottom: top + height,
	}
}

// EffectiveBound resolves the trigger window for one element. With hide set,
// an element whose top lies inside the first viewport gets its window reduced
// by the part of the viewport it already occupies at scroll offset 0.
func EffectiveBound(b Bound, viewportHeight float64, hide bool, offsetTop float64) float64 {
	bound := b.Resolve(viewportHeight)
	if hide && offsetTop < viewportHeight {
		bound -= viewportHeight - offsetTop
	}
	return bound
}

// InWindow reports whether an element is inside its trigger window at scroll
// offset y.
func InWindow(y, bound float64, m Metrics) bool {
	return y+bound > m.OffsetTop && y < m.OffsetBottom
}

// Progress maps scroll offset y to the element's progress through its trigger
// window. The result is not clamped: callers evaluating it outside InWindow
// get values below 0 or above 1.
func Progress(y, bound float64, m Metrics) float64 {
	return (y + bound - m.OffsetTop) / (m.OffsetBottom - m.OffsetTop + bound)
}

// Clamp limits p to [0, 1] for callers that need a strict range.
func Clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
