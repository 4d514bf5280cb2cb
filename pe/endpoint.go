// Package pe provides the protocol engines. An Initiator issues transactions
// toward a Target through the forward transport, and the Target answers
// through the backward transport. Both drive the transactions with the phase
// state machine of package fsm.
package pe

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// ErrNoBackward is returned when a target starts without a backward path.
var ErrNoBackward = errors.New("target has no backward transport")

// ErrNoForward is returned when an initiator starts without a forward path.
var ErrNoForward = errors.New("initiator has no forward transport")

const (
	readChannel = iota
	writeChannel
	numChannels
)

// channelOf maps a command to the channel pair that carries it. Dataless
// commands travel like reads.
func channelOf(cmd protocol.Command) int {
	if cmd == protocol.Write {
		return writeChannel
	}

	return readChannel
}

// requesterSide tells if the requester of a transaction puts the phase of
// the time point on the wire.
func requesterSide(tp fsm.TimePoint) bool {
	switch tp {
	case fsm.BegPartReq, fsm.BegReq, fsm.EndPartResp, fsm.EndResp, fsm.Ack:
		return true
	}

	return false
}

// endpoint is the part shared by the initiator and the target. It sends the
// phases the engine owns to the peer and follows the phases the peer
// answers with.
type endpoint struct {
	*fsm.Base

	initiator bool
	peer      protocol.Transport
	delays    *Delays
	onReach   func(h *fsm.Handle, tp fsm.TimePoint)

	quietHandle *fsm.Handle
	quietTP     fsm.TimePoint
}

func newEndpoint(
	name string,
	initiator bool,
	engine timing.Engine,
	freq timing.Freq,
	registry *protocol.Registry,
	logger *zap.Logger,
	delays *Delays,
) *endpoint {
	e := &endpoint{
		initiator: initiator,
		delays:    delays,
		quietTP:   fsm.TimePointUnknown,
	}
	e.Base = fsm.NewBase(name, engine, freq, registry, logger, e)

	return e
}

// SetupCallbacks registers the engine behavior for a new handle.
func (e *endpoint) SetupCallbacks(h *fsm.Handle) {
	for tp := fsm.TimePoint(0); tp < fsm.NumTimePoints; tp++ {
		tp := tp
		h.Callbacks[tp] = func() { e.reach(h, tp) }
	}
}

// owns tells if this engine puts the phase of the time point on the wire.
// Snoops flow from the target to the initiator, so the roles swap.
func (e *endpoint) owns(h *fsm.Handle, tp fsm.TimePoint) bool {
	requester := e.initiator != h.IsSnoop
	return requesterSide(tp) == requester
}

func (e *endpoint) reach(h *fsm.Handle, tp fsm.TimePoint) {
	if e.onReach != nil {
		e.onReach(h, tp)
	}

	if tp.Phase() == protocol.PhaseUnknown || !e.owns(h, tp) {
		return
	}

	if h == e.quietHandle && tp == e.quietTP {
		return
	}

	e.transmit(h.Payload, tp)
}

func (e *endpoint) transmit(p *protocol.Payload, tp fsm.TimePoint) {
	phase := tp.Phase()

	var delay timing.VTimeInSec

	status := e.peer.Transport(p, &phase, &delay)
	if status != protocol.Updated {
		return
	}

	h := e.Find(p)
	if h == nil {
		return
	}

	next := fsm.TimePointOf(phase)
	if delay > 0 {
		e.ScheduleDelay(next, h, delay)
		return
	}

	_ = e.Process(h, next)
}

// answer reaches an owned time point while the peer is still in its call,
// so that the phase goes back as the return value instead of a new call.
func (e *endpoint) answer(
	h *fsm.Handle,
	tp fsm.TimePoint,
	phase *protocol.Phase,
) protocol.SyncStatus {
	prevHandle, prevTP := e.quietHandle, e.quietTP
	e.quietHandle, e.quietTP = h, tp

	err := e.Process(h, tp)

	e.quietHandle, e.quietTP = prevHandle, prevTP

	if err != nil {
		return protocol.Accepted
	}

	*phase = tp.Phase()

	return protocol.Updated
}

// endAfter closes the handshake that the peer opened. With no delay the end
// phase is returned right away.
func (e *endpoint) endAfter(
	h *fsm.Handle,
	tp fsm.TimePoint,
	phase *protocol.Phase,
	extra timing.VTimeInSec,
) protocol.SyncStatus {
	cycles := e.delays.Of(tp)
	if cycles == 0 && extra == 0 {
		return e.answer(h, tp, phase)
	}

	e.scheduleEnd(h, tp, cycles, extra)

	return protocol.Accepted
}

func (e *endpoint) scheduleEnd(
	h *fsm.Handle,
	tp fsm.TimePoint,
	cycles int,
	extra timing.VTimeInSec,
) {
	if extra == 0 {
		e.Schedule(tp, h, cycles)
		return
	}

	e.ScheduleDelay(tp, h, extra+timing.VTimeInSec(cycles)*e.Freq.Period())
}

// openRequest tracks a request phase coming from the peer. It returns the
// handle and whether the phase started a new transaction.
func (e *endpoint) openRequest(
	p *protocol.Payload,
	tp fsm.TimePoint,
	isSnoop bool,
) (*fsm.Handle, bool, error) {
	h := e.Find(p)
	first := h == nil

	if first {
		h = e.FindOrCreate(p, isSnoop)
		if err := e.Process(h, fsm.RequestPhaseBeg); err != nil {
			return nil, false, err
		}
	}

	if err := e.Process(h, tp); err != nil {
		return nil, false, err
	}

	return h, first, nil
}

// acceptResponse handles a response phase coming from the peer and closes
// it after the configured delay.
func (e *endpoint) acceptResponse(
	p *protocol.Payload,
	phase *protocol.Phase,
	delay timing.VTimeInSec,
) protocol.SyncStatus {
	tp := fsm.TimePointOf(*phase)

	h := e.Find(p)
	if h == nil {
		_ = e.React(tp, p)
		return protocol.Accepted
	}

	if e.owns(h, tp) {
		e.rejectOwned(p, tp)
		return protocol.Accepted
	}

	if h.State == fsm.WaitResponse {
		if err := e.Process(h, fsm.ResponsePhaseBeg); err != nil {
			return protocol.Accepted
		}
	}

	if err := e.Process(h, tp); err != nil {
		return protocol.Accepted
	}

	return e.endAfter(h, fsm.TimePointOf(phase.Matching()), phase, delay)
}

// receive follows a phase that the peer put on the wire.
func (e *endpoint) receive(p *protocol.Payload, tp fsm.TimePoint) {
	if h := e.Find(p); h != nil && e.owns(h, tp) {
		e.rejectOwned(p, tp)
		return
	}

	_ = e.React(tp, p)
}

func (e *endpoint) rejectOwned(p *protocol.Payload, tp fsm.TimePoint) {
	e.Logger.Error("peer sent a phase owned by this side",
		zap.Stringer("time_point", tp),
		zap.Stringer("payload", p),
	)
}

// responseBeat returns the time point that begins the next response beat.
func (e *endpoint) responseBeat(h *fsm.Handle) fsm.TimePoint {
	if h.IsLastBeat() {
		return fsm.BegResp
	}

	return fsm.BegPartResp
}

// after runs fn once the given number of cycles passed.
func (e *endpoint) after(cycles int, fn func()) {
	now := e.Engine.Now()

	t := now
	if cycles > 0 {
		t = e.Freq.NCyclesLater(cycles, now)
	}

	e.Engine.Schedule(&deferredEvent{
		EventBase: timing.NewEventBase(t, deferredHandler{}),
		fn:        fn,
	})
}

type deferredEvent struct {
	*timing.EventBase
	fn func()
}

type deferredHandler struct{}

func (deferredHandler) Handle(e timing.Event) error {
	e.(*deferredEvent).fn()
	return nil
}
