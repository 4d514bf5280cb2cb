// Package fsm implements the per-transaction phase state machine shared by
// the initiator and target protocol engines.
package fsm

import (
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/hooking"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// HookPosIllegalTransition marks a rejected time point. The item of the hook
// context is the *IllegalTransitionError.
var HookPosIllegalTransition = &hooking.HookPos{Name: "IllegalTransition"}

type timePointEvent struct {
	*timing.EventBase
	handle    *Handle
	payload   *protocol.Payload
	timePoint TimePoint
}

// Base drives transaction handles through their life cycle. Engines embed a
// Base and register their behavior in the handles' callback tables.
type Base struct {
	hooking.HookableBase

	name     string
	Engine   timing.Engine
	Freq     timing.Freq
	Registry *protocol.Registry
	Logger   *zap.Logger

	pool  *Pool
	table *Table
}

// NewBase creates a Base. The setter is called for every newly tracked
// handle.
func NewBase(
	name string,
	engine timing.Engine,
	freq timing.Freq,
	registry *protocol.Registry,
	logger *zap.Logger,
	setter CallbackSetter,
) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}

	if registry == nil {
		registry = protocol.NewDefaultRegistry()
	}

	b := &Base{
		name:     name,
		Engine:   engine,
		Freq:     freq,
		Registry: registry,
		Logger:   logger.With(zap.String("component", name)),
		table:    NewTable(),
	}
	b.pool = NewPool(setter, registry)

	return b
}

// Name returns the name of the engine.
func (b *Base) Name() string {
	return b.name
}

// Pool returns the handle pool of the engine.
func (b *Base) Pool() *Pool {
	return b.pool
}

// FindOrCreate returns the handle of a payload, creating and starting the
// tracking of a new one if needed.
func (b *Base) FindOrCreate(p *protocol.Payload, isSnoop bool) *Handle {
	if h := b.pool.Find(p); h != nil {
		return h
	}

	h := b.pool.FindOrCreate(p, isSnoop)
	h.StartTime = b.Engine.Now()

	return h
}

// Find returns the handle of a payload, or nil if the payload is not in
// flight.
func (b *Base) Find(p *protocol.Payload) *Handle {
	return b.pool.Find(p)
}

// IsBusy tells if the engine has any transaction in flight.
func (b *Base) IsBusy() bool {
	return b.pool.IsBusy()
}

// React moves the transaction of the payload to the time point.
func (b *Base) React(tp TimePoint, p *protocol.Payload) error {
	h := b.pool.Find(p)
	if h == nil {
		err := &IllegalTransitionError{
			Payload:   p,
			State:     Idle,
			TimePoint: tp,
		}
		b.reject(err)

		return err
	}

	return b.Process(h, tp)
}

// Process validates the time point against the state of the handle, moves
// the handle to its next state and runs the registered callback. A handle
// that reaches the Finished state is retired.
func (b *Base) Process(h *Handle, tp TimePoint) error {
	next, ok := b.table.Next(h, tp)
	if !ok {
		err := &IllegalTransitionError{
			TxnID:     h.TxnID,
			Payload:   h.Payload,
			State:     h.State,
			TimePoint: tp,
		}
		b.reject(err)

		return err
	}

	if tp == RequestPhaseBeg {
		b.traceStart(h)
	}

	h.State = next
	b.countBeat(h, tp)
	b.traceStep(h, tp)

	if cb := h.Callbacks[tp]; cb != nil {
		cb()
	}

	if next == Finished {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    hooking.HookPosTaskEnd,
			Item:   hooking.TaskEnd{ID: h.TxnID},
			Detail: h,
		})
		b.pool.Retire(h)
	}

	return nil
}

func (b *Base) countBeat(h *Handle, tp TimePoint) {
	writeData := h.Payload.Command == protocol.Write && !h.IsSnoop

	switch tp {
	case EndPartReq, EndReq:
		if writeData {
			h.BeatCount++
		}
	case EndPartResp, EndResp:
		if !writeData {
			h.BeatCount++
		}
	}
}

func (b *Base) reject(err *IllegalTransitionError) {
	b.Logger.Error("illegal transition",
		zap.String("txn", err.TxnID),
		zap.Stringer("payload", err.Payload),
		zap.Stringer("state", err.State),
		zap.Stringer("time_point", err.TimePoint),
	)

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosIllegalTransition,
		Item:   err,
	})
}

func (b *Base) traceStart(h *Handle) {
	kind := h.Payload.Command.String()
	if h.IsSnoop {
		kind = "SNOOP"
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:     h.TxnID,
			Kind:   kind,
			Family: h.Payload.Family.String(),
			Engine: b.name,
		},
		Detail: h,
	})
}

func (b *Base) traceStep(h *Handle, tp TimePoint) {
	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    hooking.HookPosTaskStep,
		Item: hooking.TaskStep{
			ID:    h.TxnID,
			Phase: tp.String(),
		},
		Detail: h,
	})
}

// Schedule makes the handle reach the time point after the given number of
// cycles. Zero cycles schedules the time point at the current time, after
// the events that are already scheduled for now.
func (b *Base) Schedule(tp TimePoint, h *Handle, cycles int) {
	if cycles < 0 {
		log.Panicf("negative delay of %d cycles", cycles)
	}

	now := b.Engine.Now()
	t := now
	if cycles > 0 {
		t = b.Freq.NCyclesLater(cycles, now)
	}

	b.scheduleAt(tp, h, t)
}

// ScheduleDelay makes the handle reach the time point after a delay in
// simulated time.
func (b *Base) ScheduleDelay(tp TimePoint, h *Handle, delay timing.VTimeInSec) {
	if delay < 0 {
		log.Panicf("negative delay of %g", delay)
	}

	b.scheduleAt(tp, h, b.Engine.Now()+delay)
}

func (b *Base) scheduleAt(tp TimePoint, h *Handle, t timing.VTimeInSec) {
	evt := &timePointEvent{
		EventBase: timing.NewEventBase(t, b),
		handle:    h,
		payload:   h.Payload,
		timePoint: tp,
	}
	b.Engine.Schedule(evt)
}

// Handle processes the scheduled time points.
func (b *Base) Handle(e timing.Event) error {
	evt, ok := e.(*timePointEvent)
	if !ok {
		return fmt.Errorf("%s cannot handle event of %T", b.name, e)
	}

	if evt.handle.Payload != evt.payload {
		b.Logger.Warn("dropping time point of a retired transaction",
			zap.Stringer("time_point", evt.timePoint),
			zap.Stringer("payload", evt.payload),
		)

		return nil
	}

	err := b.Process(evt.handle, evt.timePoint)
	if err != nil {
		b.Logger.Debug("scheduled time point rejected", zap.Error(err))
	}

	return nil
}
