package probe

import (
	"math"

	"golang.org/x/time/rate"
)

// positions lists the scroll offsets visited from start to end. The end is
// always included so the sweep reaches the bottom of the page.
func positions(start, end, step float64) []float64 {
	if end <= start {
		return []float64{start}
	}
	n := int(math.Ceil((end - start) / step))
	out := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return append(out, end)
}

// end resolves the sweep end against the document's maximum offset.
func (s Sweep) end(maxScrollY float64) float64 {
	if s.End > 0 {
		return s.End
	}
	return maxScrollY
}

func (s Sweep) limiter() *rate.Limiter {
	limit := rate.Limit(s.Rate)
	if s.Rate <= 0 {
		limit = rate.Inf
	}
	burst := s.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// resizeAt returns the position index before which the viewport is resized,
// or -1 when the sweep does not resize.
func (s Sweep) resizeAt(n int) int {
	if s.ResizeTo <= 0 {
		return -1
	}
	return n / 2
}
