package timing

import (
	"log"
	"math"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/tlmbus/sim/hooking"
)

// A SerialEngine handles events one at a time on the calling goroutine.
type SerialEngine struct {
	hooking.HookableBase

	// lock guards now and queue. Handlers schedule while an event runs, so
	// it is never held across Handle.
	lock  sync.Mutex
	now   VTimeInSec
	queue eventQueue

	// gate is held while an event runs and while the engine is paused.
	gate      sync.Mutex
	pauseLock sync.Mutex
	paused    bool

	runLock sync.Mutex
	handled atomic.Uint64
}

// NewSerialEngine creates a SerialEngine at time 0.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{}
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Now returns the time of the event being handled, or of the last one.
func (e *SerialEngine) Now() VTimeInSec {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.now
}

// Schedule queues an event. Scheduling into the past panics.
func (e *SerialEngine) Schedule(evt Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if evt.Time() < e.now {
		log.Panicf("event %s due at %.12f scheduled at %.12f",
			reflect.TypeOf(evt), evt.Time(), e.now)
	}

	e.queue.push(evt)
}

// Run handles all the events. The first handler error stops the run.
func (e *SerialEngine) Run() error {
	return e.RunUntil(math.Inf(1))
}

// RunUntil handles the events due no later than t and leaves the others
// queued.
func (e *SerialEngine) RunUntil(t VTimeInSec) error {
	e.runLock.Lock()
	defer e.runLock.Unlock()

	for {
		done, err := e.step(t)
		if done || err != nil {
			return err
		}
	}
}

// Pending returns the number of queued events.
func (e *SerialEngine) Pending() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.queue.Len()
}

// Handled returns the number of events handled so far.
func (e *SerialEngine) Handled() uint64 {
	return e.handled.Load()
}

func (e *SerialEngine) step(limit VTimeInSec) (done bool, err error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	evt, ok := e.advance(limit)
	if !ok {
		return true, nil
	}

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err = evt.Handler().Handle(evt)
	e.handled.Add(1)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return false, err
}

func (e *SerialEngine) advance(limit VTimeInSec) (Event, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.queue.Len() == 0 || e.queue.peek().Time() > limit {
		return nil, false
	}

	evt := e.queue.pop()
	e.now = evt.Time()

	return evt, true
}

// Pause stops the engine before its next event. It returns once the running
// event, if any, finished.
func (e *SerialEngine) Pause() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.paused {
		return
	}

	e.gate.Lock()
	e.paused = true
}

// Continue resumes a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if !e.paused {
		return
	}

	e.paused = false
	e.gate.Unlock()
}
