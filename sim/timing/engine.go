// Package timing is the discrete-event core the bus engines run on. It
// provides an event queue ordered by simulated time, a serial engine that
// drains it, and clocked components.
package timing

import "github.com/sarchlab/tlmbus/sim/hooking"

// TimeTeller tells the current simulated time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler accepts events. An event must not be due before Now.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine runs the scheduled events in time order.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run handles events until the queue is empty or a handler fails.
	Run() error

	// Pause blocks the engine before its next event until Continue.
	Pause()
	Continue()
}

// Engines invoke hooks around every event. The item of the context is the
// event.
var (
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &hooking.HookPos{Name: "AfterEvent"}
)
