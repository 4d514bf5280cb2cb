package hooking

import (
	"sort"
	"sync"
)

// LatencyTracer measures how long transactions stay in an engine, grouped by
// kind.
type LatencyTracer struct {
	timeTeller TimeTeller
	filter     TaskFilter

	lock     sync.Mutex
	inflight map[string]inflight
	stats    map[string]*latencyStat
}

type latencyStat struct {
	count uint64
	total float64
	max   float64
}

// NewLatencyTracer creates a LatencyTracer. A nil filter follows every
// transaction.
func NewLatencyTracer(timeTeller TimeTeller, filter TaskFilter) *LatencyTracer {
	if filter == nil {
		filter = AllTasks
	}

	return &LatencyTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]inflight),
		stats:      make(map[string]*latencyStat),
	}
}

// Func records transaction starts and ends.
func (t *LatencyTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// StartTask starts the clock of a transaction.
func (t *LatencyTracer) StartTask(ts TaskStart) {
	if !t.filter(ts) {
		return
	}

	now := t.timeTeller.Now()

	t.lock.Lock()
	t.inflight[ts.ID] = inflight{kind: ts.Kind, start: now}
	t.lock.Unlock()
}

// EndTask stops the clock of a transaction. Unknown IDs are ignored.
func (t *LatencyTracer) EndTask(te TaskEnd) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	defer t.lock.Unlock()

	f, ok := t.inflight[te.ID]
	if !ok {
		return
	}
	delete(t.inflight, te.ID)

	s := t.stats[f.kind]
	if s == nil {
		s = &latencyStat{}
		t.stats[f.kind] = s
	}

	d := now - f.start
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
}

// AverageTime returns the mean latency of a kind, or 0 if none finished.
func (t *LatencyTracer) AverageTime(kind string) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	s := t.stats[kind]
	if s == nil {
		return 0
	}

	return s.total / float64(s.count)
}

// MaxTime returns the longest latency of a kind.
func (t *LatencyTracer) MaxTime(kind string) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s := t.stats[kind]; s != nil {
		return s.max
	}

	return 0
}

// TotalCount returns the number of finished transactions of a kind.
func (t *LatencyTracer) TotalCount(kind string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s := t.stats[kind]; s != nil {
		return s.count
	}

	return 0
}

// Kinds returns the kinds with at least one finished transaction, sorted.
func (t *LatencyTracer) Kinds() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	kinds := make([]string, 0, len(t.stats))
	for k := range t.stats {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return kinds
}

// Inflight returns the number of started transactions not yet ended.
func (t *LatencyTracer) Inflight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}
