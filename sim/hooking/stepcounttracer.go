package hooking

import "sync"

// StepCountTracer counts the phases reached by the followed transactions.
type StepCountTracer struct {
	filter TaskFilter

	lock      sync.Mutex
	following map[string]struct{}
	order     []string
	counts    map[string]uint64
}

// NewStepCountTracer creates a StepCountTracer. A nil filter follows every
// transaction.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	if filter == nil {
		filter = AllTasks
	}

	return &StepCountTracer{
		filter:    filter,
		following: make(map[string]struct{}),
		counts:    make(map[string]uint64),
	}
}

// Func records transaction starts, phases and ends.
func (t *StepCountTracer) Func(ctx HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch item := ctx.Item.(type) {
	case TaskStart:
		if t.filter(item) {
			t.following[item.ID] = struct{}{}
		}
	case TaskStep:
		if _, ok := t.following[item.ID]; !ok {
			return
		}

		if _, seen := t.counts[item.Phase]; !seen {
			t.order = append(t.order, item.Phase)
		}
		t.counts[item.Phase]++
	case TaskEnd:
		delete(t.following, item.ID)
	}
}

// StepNames returns the phases seen, in first seen order.
func (t *StepCountTracer) StepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.order...)
}

// StepCount returns how many times a phase was reached.
func (t *StepCountTracer) StepCount(phase string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[phase]
}
