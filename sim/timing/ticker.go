package timing

import (
	"sync"

	"github.com/sarchlab/tlmbus/sim/hooking"
)

// TickEvent wakes a clocked handler up.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a tick of handler at time t.
func MakeTickEvent(handler Handler, t VTimeInSec) TickEvent {
	return TickEvent{EventBase: *NewEventBase(t, handler)}
}

// A Ticker updates its state once per cycle. Tick reports whether progress
// was made; a ticker that made no progress sleeps until woken up.
type Ticker interface {
	Tick() bool
}

// TickScheduler keeps at most one tick of its handler pending. A request for
// a tick no later than the pending one is dropped.
type TickScheduler struct {
	Freq   Freq
	Engine Engine

	lock      sync.Mutex
	handler   Handler
	secondary bool
	armed     bool
	nextCycle uint64
}

// NewTickScheduler creates a scheduler of primary tick events.
func NewTickScheduler(handler Handler, engine Engine, freq Freq) *TickScheduler {
	return &TickScheduler{
		Freq:    freq,
		Engine:  engine,
		handler: handler,
	}
}

// NewSecondaryTickScheduler creates a scheduler whose ticks run after the
// primary events of the same cycle.
func NewSecondaryTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	s := NewTickScheduler(handler, engine, freq)
	s.secondary = true

	return s
}

// Now returns the time of the engine.
func (s *TickScheduler) Now() VTimeInSec {
	return s.Engine.Now()
}

// TickNow requests a tick at the current cycle, or at the next clock edge if
// now is between edges.
func (s *TickScheduler) TickNow() {
	s.request(s.Freq.ThisTick(s.Now()))
}

// TickLater requests a tick at the next clock edge.
func (s *TickScheduler) TickLater() {
	s.request(s.Freq.NextTick(s.Now()))
}

func (s *TickScheduler) request(t VTimeInSec) {
	s.lock.Lock()
	defer s.lock.Unlock()

	cycle := s.Freq.Cycle(t)
	if s.armed && s.nextCycle >= cycle {
		return
	}

	s.armed = true
	s.nextCycle = cycle

	evt := MakeTickEvent(s.handler, t)
	evt.secondary = s.secondary
	s.Engine.Schedule(evt)
}

// TickingComponent is a named component driven by a Ticker. It keeps ticking
// while the ticker makes progress.
type TickingComponent struct {
	hooking.HookableBase
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a ticking component.
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	c := &TickingComponent{name: name, ticker: ticker}
	c.TickScheduler = NewTickScheduler(c, engine, freq)

	return c
}

// Name returns the name of the component.
func (c *TickingComponent) Name() string {
	return c.name
}

// Handle runs one tick and requests the next one if progress was made.
func (c *TickingComponent) Handle(_ Event) error {
	if c.ticker.Tick() {
		c.TickLater()
	}

	return nil
}
