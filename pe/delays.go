package pe

import (
	"math/rand"

	"github.com/sarchlab/tlmbus/fsm"
)

// Delays is the number of cycles an engine waits before it reaches each time
// point it owns. An optional jitter adds up to the given number of cycles,
// drawn uniformly.
type Delays struct {
	cycles [fsm.NumTimePoints]int
	jitter int
	rand   *rand.Rand
}

// NewDelays creates a Delays table with all delays set to zero.
func NewDelays() *Delays {
	return &Delays{}
}

// Set sets the delay of a time point.
func (d *Delays) Set(tp fsm.TimePoint, cycles int) *Delays {
	d.cycles[tp] = cycles
	return d
}

// WithJitter adds a random extra delay of at most max cycles.
func (d *Delays) WithJitter(max int, r *rand.Rand) *Delays {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	d.jitter = max
	d.rand = r

	return d
}

// Of returns the delay to apply before reaching the time point.
func (d *Delays) Of(tp fsm.TimePoint) int {
	if d == nil || tp < 0 || tp >= fsm.NumTimePoints {
		return 0
	}

	c := d.cycles[tp]
	if d.jitter > 0 {
		c += d.rand.Intn(d.jitter + 1)
	}

	return c
}
