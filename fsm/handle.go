package fsm

import (
	"log"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// Callback is a closure that an engine registers for one time point of a
// handle.
type Callback func()

// A Handle is the mutable state of one in-flight transaction.
//
// Handles are owned by the pool that created them and are recycled after the
// transaction finishes. A handle must not be used after its completion
// signal fired.
type Handle struct {
	TxnID     string
	Payload   *protocol.Payload
	BeatCount int
	IsSnoop   bool
	NeedsAck  bool
	State     State
	StartTime timing.VTimeInSec

	// Callbacks is the per time point callback table filled by the engine.
	Callbacks [NumTimePoints]Callback

	finish completion
}

// IsLastBeat tells if the next data beat of the handle is the final one of
// the burst.
func (h *Handle) IsLastBeat() bool {
	return h.BeatCount >= h.Payload.Beats()-1
}

// Done tells if the transaction of the handle already finished.
func (h *Handle) Done() bool {
	return h.finish.fired
}

// OnFinish registers a function to call when the transaction finishes. If it
// already finished, fn is called right away.
func (h *Handle) OnFinish(fn func()) {
	h.finish.notify(fn)
}

func (h *Handle) reset() {
	h.TxnID = ""
	h.Payload = nil
	h.BeatCount = 0
	h.IsSnoop = false
	h.NeedsAck = false
	h.State = Idle
	h.StartTime = 0
	h.Callbacks = [NumTimePoints]Callback{}
	h.finish = completion{}
}

// completion is signaled exactly once.
type completion struct {
	fired   bool
	waiters []func()
}

func (c *completion) notify(fn func()) {
	if c.fired {
		fn()
		return
	}

	c.waiters = append(c.waiters, fn)
}

func (c *completion) fire() {
	if c.fired {
		log.Panic("transaction completion signaled twice")
	}

	c.fired = true

	waiters := c.waiters
	c.waiters = nil

	for _, fn := range waiters {
		fn()
	}
}
