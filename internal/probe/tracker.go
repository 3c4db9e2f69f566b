package probe

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus reports where the tracked run is in its lifecycle.
type RunStatus string

// Tracker run states.
const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// Sample is the latest progress reported for one element.
type Sample struct {
	Element   string    `json:"element"`
	Progress  float64   `json:"progress"`
	ScrollY   float64   `json:"scroll_y"`
	Frame     int64     `json:"frame"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is a consistent copy of the tracker state.
type View struct {
	RunID      uuid.UUID  `json:"run_id"`
	Source     string     `json:"source"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Elements   []Sample   `json:"elements"`
}

// Tracker keeps the latest progress per element of the most recent run. It
// is written from the host loop and read by the API concurrently.
type Tracker struct {
	mu     sync.RWMutex
	view   View
	latest map[string]int
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{
		view:   View{Status: StatusIdle, Elements: []Sample{}},
		latest: make(map[string]int),
	}
}

// Begin resets the tracker for a new run. Elements are listed in evaluation
// order and start without a sample.
func (t *Tracker) Begin(runID uuid.UUID, source string, elements []string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view = View{
		RunID:     runID,
		Source:    source,
		Status:    StatusRunning,
		StartedAt: at,
		Elements:  make([]Sample, len(elements)),
	}
	t.latest = make(map[string]int, len(elements))
	for i, el := range elements {
		t.view.Elements[i] = Sample{Element: el}
		t.latest[el] = i
	}
}

// Record stores s as the latest sample of its element.
func (t *Tracker) Record(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.latest[s.Element]; ok {
		t.view.Elements[i] = s
		return
	}
	t.latest[s.Element] = len(t.view.Elements)
	t.view.Elements = append(t.view.Elements, s)
}

// Finish marks the run done; a non-nil err marks it failed.
func (t *Tracker) Finish(at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	finished := at
	t.view.FinishedAt = &finished
	t.view.Status = StatusSuccess
	if err != nil {
		t.view.Status = StatusError
		t.view.Error = err.Error()
	}
}

// View returns a copy of the current state.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := t.view
	v.Elements = append([]Sample(nil), t.view.Elements...)
	if t.view.FinishedAt != nil {
		finished := *t.view.FinishedAt
		v.FinishedAt = &finished
	}
	return v
}

// Get returns the latest sample of one element.
func (t *Tracker) Get(element string) (Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.latest[element]
	if !ok {
		return Sample{}, false
	}
	return t.view.Elements[i], true
}
