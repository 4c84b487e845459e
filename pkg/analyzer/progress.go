package analyzer

import (
	"context"
	"sync"
)

// ProgressFunc is called each time an analysis stage finishes, with the
// number of finished stages, the number expected and the stage name.
type ProgressFunc func(done, total int, stage string)

// Tracker records which stages of one analysis run have finished. Stages run
// concurrently, so all methods are safe for concurrent use. A nil Tracker
// ignores every call.
type Tracker struct {
	mu       sync.Mutex
	stages   []string
	finished map[string]bool
	callback ProgressFunc
}

// NewTracker creates a tracker that reports finished stages to callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{finished: make(map[string]bool), callback: callback}
}

// Expect registers the stages of a run. A stage already registered is kept
// once.
func (t *Tracker) Expect(stages ...string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range stages {
		if !t.expected(s) {
			t.stages = append(t.stages, s)
		}
	}
}

// Finish marks stage as finished and reports it. Finishing the same stage
// again is a no-op; a stage that was never expected joins the run.
func (t *Tracker) Finish(stage string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.finished[stage] {
		t.mu.Unlock()
		return
	}
	if !t.expected(stage) {
		t.stages = append(t.stages, stage)
	}
	t.finished[stage] = true
	done, total := len(t.finished), len(t.stages)
	t.mu.Unlock()

	if t.callback != nil {
		t.callback(done, total, stage)
	}
}

// Done returns the number of finished stages.
func (t *Tracker) Done() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.finished)
}

// Total returns the number of expected stages.
func (t *Tracker) Total() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stages)
}

func (t *Tracker) expected(stage string) bool {
	for _, s := range t.stages {
		if s == stage {
			return true
		}
	}
	return false
}

type trackerKey struct{}

// WithTracker returns a context carrying t for the analysis service.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}
