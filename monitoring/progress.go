package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/sarchlab/tlmbus/sim/hooking"
	"github.com/sarchlab/tlmbus/sim/id"
)

// A ProgressBar counts the transactions of an engine against an expected
// total. Attach it to the engine as a hook.
type ProgressBar struct {
	ID    string
	Name  string
	Total uint64

	started    time.Time
	inProgress atomic.Int64
	finished   atomic.Uint64
}

// Progress is the JSON view of a ProgressBar.
type Progress struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress int64     `json:"in_progress"`
	Percent    float64   `json:"percent"`
}

// NewProgressBar creates a progress bar that expects total transactions.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		ID:      id.Generate(),
		Name:    name,
		Total:   total,
		started: time.Now(),
	}
}

// Begin marks n transactions as in progress.
func (b *ProgressBar) Begin(n int64) {
	b.inProgress.Add(n)
}

// Finish moves n transactions from in progress to finished.
func (b *ProgressBar) Finish(n uint64) {
	b.inProgress.Add(-int64(n))
	b.finished.Add(n)
}

// Finished returns the number of finished transactions.
func (b *ProgressBar) Finished() uint64 {
	return b.finished.Load()
}

// InProgress returns the number of started, unfinished transactions.
func (b *ProgressBar) InProgress() int64 {
	return b.inProgress.Load()
}

// Func follows the transactions of the engine the bar is attached to.
func (b *ProgressBar) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hooking.HookPosTaskStart:
		b.Begin(1)
	case hooking.HookPosTaskEnd:
		b.Finish(1)
	}
}

// Progress returns the current state of the bar.
func (b *ProgressBar) Progress() Progress {
	p := Progress{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.started,
		Total:      b.Total,
		Finished:   b.Finished(),
		InProgress: b.InProgress(),
	}

	if p.Total > 0 {
		p.Percent = 100 * float64(p.Finished) / float64(p.Total)
	}

	return p
}
