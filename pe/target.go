package pe

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/flowcontrol"
	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// MaxLatency returned by an OperationFunc keeps the response until Respond
// is called.
const MaxLatency = math.MaxInt

// ErrNotHeld is returned by Respond for a payload that does not wait for a
// manual response.
var ErrNotHeld = errors.New("payload does not wait for a response")

// OperationFunc performs the operation of a request and returns the number
// of cycles after which the response is ready. It may set the response
// status of the payload.
type OperationFunc func(p *protocol.Payload) int

// Target is the protocol engine on the receiving side of the bus.
type Target struct {
	*endpoint

	operation  OperationFunc
	order      *ordering.Component
	interleave bool
	credits    int

	outstanding [numChannels]*flowcontrol.Semaphore
	respChannel [numChannels]*flowcontrol.Semaphore
	respIDs     [numChannels]*flowcontrol.IDLock
	snoopReq    *flowcontrol.Semaphore

	arrivals *arrivals
	held     map[*protocol.Payload]bool
}

// SetBackward sets the path toward the initiator.
func (t *Target) SetBackward(b protocol.Transport) {
	t.peer = b
}

// Start checks the connection and grants the initial request credits.
func (t *Target) Start() error {
	if t.peer == nil {
		return ErrNoBackward
	}

	if t.credits > 0 {
		t.grantCredits(t.credits)
	}

	return nil
}

// IsBusy tells if the target has work in flight.
func (t *Target) IsBusy() bool {
	return t.Base.IsBusy() || (t.order != nil && t.order.Len() > 0)
}

// Outstanding returns the outstanding transaction semaphore of a command.
func (t *Target) Outstanding(cmd protocol.Command) *flowcontrol.Semaphore {
	return t.outstanding[channelOf(cmd)]
}

// Transport receives the phases sent by the initiator.
func (t *Target) Transport(
	p *protocol.Payload,
	phase *protocol.Phase,
	delay *timing.VTimeInSec,
) protocol.SyncStatus {
	switch *phase {
	case protocol.BeginPartialReq, protocol.BeginReq:
		return t.acceptRequest(p, phase, *delay)
	case protocol.BeginPartialResp, protocol.BeginResp:
		return t.acceptResponse(p, phase, *delay)
	case protocol.Ack:
		t.receive(p, fsm.Ack)
		return protocol.Completed
	case protocol.EndReq, protocol.EndPartialReq,
		protocol.EndResp, protocol.EndPartialResp:
		t.receive(p, fsm.TimePointOf(*phase))
		return protocol.Accepted
	}

	t.Logger.Error("unexpected phase", zap.Stringer("phase", *phase),
		zap.Stringer("payload", p))

	return protocol.Accepted
}

func (t *Target) acceptRequest(
	p *protocol.Payload,
	phase *protocol.Phase,
	delay timing.VTimeInSec,
) protocol.SyncStatus {
	if p.Snoop {
		t.Logger.Error("snoop request on the forward path",
			zap.Stringer("payload", p))
		return protocol.Accepted
	}

	h, first, err := t.openRequest(p, fsm.TimePointOf(*phase), false)
	if err != nil {
		return protocol.Accepted
	}

	end := fsm.TimePointOf(phase.Matching())
	if !first {
		return t.endAfter(h, end, phase, delay)
	}

	sem := t.outstanding[channelOf(p.Command)]
	if sem.TryAcquire() {
		h.OnFinish(sem.Release)
		return t.endAfter(h, end, phase, delay)
	}

	sem.Acquire(func() {
		h.OnFinish(sem.Release)
		t.scheduleEnd(h, end, t.delays.Of(end), delay)
	})

	return protocol.Accepted
}

func (t *Target) reachTimePoint(h *fsm.Handle, tp fsm.TimePoint) {
	if h.IsSnoop {
		t.reachSnoop(h, tp)
		return
	}

	c := channelOf(h.Payload.Command)

	switch tp {
	case fsm.EndReq:
		t.requestDone(h)
	case fsm.EndPartResp:
		if t.interleave {
			t.respChannel[c].Release()
		}

		t.nextBeat(h)
	case fsm.EndResp:
		t.respChannel[c].Release()
		t.respIDs[c].Unlock(h.Payload.ID)
	}
}

func (t *Target) reachSnoop(h *fsm.Handle, tp fsm.TimePoint) {
	if tp == fsm.EndReq {
		t.snoopReq.Release()
	}
}

func (t *Target) requestDone(h *fsm.Handle) {
	p := h.Payload

	if t.credits > 0 && t.Registry.MustLookup(p).CreditBased {
		t.grantCredits(1)
	}

	t.arrivals.add(p)

	latency := t.operation(p)
	if latency >= MaxLatency {
		t.held[p] = true
		return
	}

	t.after(latency, func() { t.arrivals.markReady(p) })
}

// Respond releases the response of a payload whose operation asked to
// respond manually.
func (t *Target) Respond(p *protocol.Payload) error {
	if !t.held[p] {
		return ErrNotHeld
	}

	delete(t.held, p)
	t.arrivals.markReady(p)

	return nil
}

// release hands a response to the ordering policy, or starts it right away
// when there is none.
func (t *Target) release(p *protocol.Payload) {
	if t.order != nil {
		t.order.Push(p)
		return
	}

	c := channelOf(p.Command)
	t.respIDs[c].Lock(p.ID, func() {
		if t.interleave {
			t.startResponse(p)
			return
		}

		t.respChannel[c].Acquire(func() { t.startResponse(p) })
	})
}

// tryStartResponse is the emitter of the ordering policy.
func (t *Target) tryStartResponse(p *protocol.Payload) bool {
	c := channelOf(p.Command)

	if !t.respIDs[c].TryLock(p.ID) {
		return false
	}

	if !t.interleave && !t.respChannel[c].TryAcquire() {
		t.respIDs[c].Unlock(p.ID)
		return false
	}

	t.startResponse(p)

	return true
}

func (t *Target) startResponse(p *protocol.Payload) {
	h := t.Find(p)
	if h == nil {
		t.Logger.Error("response of an unknown transaction",
			zap.Stringer("payload", p))
		return
	}

	if err := t.Process(h, fsm.ResponsePhaseBeg); err != nil {
		return
	}

	t.nextBeat(h)
}

func (t *Target) nextBeat(h *fsm.Handle) {
	tp := t.responseBeat(h)
	cycles := t.delays.Of(tp)

	if !t.interleave {
		t.Schedule(tp, h, cycles)
		return
	}

	t.respChannel[channelOf(h.Payload.Command)].Acquire(func() {
		t.Schedule(tp, h, cycles)
	})
}

func (t *Target) grantCredits(n int) {
	p := protocol.MakePayloadBuilder().
		WithFamily(protocol.CHICredit).
		Build()
	p.Credits = n

	phase := protocol.BeginReq

	var delay timing.VTimeInSec

	t.peer.Transport(p, &phase, &delay)
}

// Snoop sends a snoop request toward the initiator. Done is called when the
// snoop response ends. A snoop on a payload that is already in flight is
// dropped and done is never called.
func (t *Target) Snoop(p *protocol.Payload, done func()) {
	p.Snoop = true

	t.snoopReq.Acquire(func() {
		fresh := t.Find(p) == nil
		h := t.FindOrCreate(p, true)

		if err := t.Process(h, fsm.RequestPhaseBeg); err != nil {
			if fresh {
				t.Pool().Retire(h)
			}

			t.snoopReq.Release()

			return
		}

		if done != nil {
			h.OnFinish(done)
		}

		t.Schedule(fsm.BegReq, h, t.delays.Of(fsm.BegReq))
	})
}
