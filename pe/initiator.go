package pe

import (
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/flowcontrol"
	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// SnoopFunc serves a snoop request and returns the number of cycles before
// the snoop response starts.
type SnoopFunc func(p *protocol.Payload) int

type pendingTxn struct {
	payload *protocol.Payload
	done    func()
}

// Initiator is the protocol engine on the issuing side of the bus.
type Initiator struct {
	*endpoint

	queue       *flowcontrol.BoundedQueue[pendingTxn]
	outstanding [numChannels]*flowcontrol.Semaphore
	reqChannel  [numChannels]*flowcontrol.Semaphore
	idLocks     [numChannels]*flowcontrol.IDLock
	credits     *flowcontrol.CreditCounter
	snoopResp   *flowcontrol.Semaphore
	snoop       SnoopFunc

	admitted       int
	issueScheduled bool
}

// SetForward sets the path toward the target.
func (i *Initiator) SetForward(f protocol.Transport) {
	i.peer = f
}

// Start checks the connection.
func (i *Initiator) Start() error {
	if i.peer == nil {
		return ErrNoForward
	}

	return nil
}

// Send queues a transaction. Done is called once the transaction finished.
// It fails with flowcontrol.ErrTooManyOutstanding if the queue is full.
func (i *Initiator) Send(p *protocol.Payload, done func()) error {
	err := i.queue.Push(pendingTxn{payload: p, done: done})
	if err != nil {
		return err
	}

	i.scheduleIssue()

	return nil
}

// IsBusy tells if the initiator has queued or in-flight transactions.
func (i *Initiator) IsBusy() bool {
	return i.queue.Len() > 0 || i.admitted > 0 || i.Base.IsBusy()
}

// Credits returns the request credits received from the target.
func (i *Initiator) Credits() *flowcontrol.CreditCounter {
	return i.credits
}

// Outstanding returns the outstanding transaction semaphore of a command.
func (i *Initiator) Outstanding(cmd protocol.Command) *flowcontrol.Semaphore {
	return i.outstanding[channelOf(cmd)]
}

func (i *Initiator) scheduleIssue() {
	if i.issueScheduled {
		return
	}

	i.issueScheduled = true
	i.after(0, i.issue)
}

// issue admits queued transactions in order while the outstanding limit of
// the head allows it.
func (i *Initiator) issue() {
	i.issueScheduled = false

	for {
		head, ok := i.queue.Peek()
		if !ok {
			return
		}

		sem := i.outstanding[channelOf(head.payload.Command)]
		if !sem.TryAcquire() {
			return
		}

		i.queue.Pop()
		i.admit(head, sem)
	}
}

func (i *Initiator) admit(txn pendingTxn, sem *flowcontrol.Semaphore) {
	p := txn.payload
	c := channelOf(p.Command)
	info := i.Registry.MustLookup(p)

	i.admitted++

	begin := func() {
		h := i.FindOrCreate(p, false)
		h.OnFinish(func() {
			i.admitted--
			sem.Release()

			if i.idLocks[c] != nil {
				i.idLocks[c].Unlock(p.ID)
			}

			if txn.done != nil {
				txn.done()
			}

			i.scheduleIssue()
		})

		if err := i.Process(h, fsm.RequestPhaseBeg); err != nil {
			return
		}

		i.requestBeat(h)
	}

	withCredit := begin
	if info.CreditBased {
		withCredit = func() { i.credits.Consume(begin) }
	}

	if i.idLocks[c] != nil {
		i.idLocks[c].Lock(p.ID, withCredit)
		return
	}

	withCredit()
}

func (i *Initiator) requestBeat(h *fsm.Handle) {
	tp := fsm.BegReq
	if h.Payload.Command == protocol.Write && !h.IsLastBeat() {
		tp = fsm.BegPartReq
	}

	cycles := i.delays.Of(tp)

	i.reqChannel[channelOf(h.Payload.Command)].Acquire(func() {
		i.Schedule(tp, h, cycles)
	})
}

func (i *Initiator) reachTimePoint(h *fsm.Handle, tp fsm.TimePoint) {
	if h.IsSnoop {
		i.reachSnoop(h, tp)
		return
	}

	c := channelOf(h.Payload.Command)

	switch tp {
	case fsm.EndPartReq:
		i.reqChannel[c].Release()
		i.requestBeat(h)
	case fsm.EndReq:
		i.reqChannel[c].Release()
	case fsm.EndResp:
		if h.NeedsAck {
			i.Schedule(fsm.Ack, h, i.delays.Of(fsm.Ack))
		}
	}
}

func (i *Initiator) reachSnoop(h *fsm.Handle, tp fsm.TimePoint) {
	switch tp {
	case fsm.EndReq:
		latency := 0
		if i.snoop != nil {
			latency = i.snoop(h.Payload)
		}

		i.after(latency, func() { i.snoopBeat(h) })
	case fsm.EndPartResp:
		i.snoopResp.Release()
		i.snoopBeat(h)
	case fsm.EndResp:
		i.snoopResp.Release()
	}
}

func (i *Initiator) snoopBeat(h *fsm.Handle) {
	if h.State == fsm.WaitResponse {
		if err := i.Process(h, fsm.ResponsePhaseBeg); err != nil {
			return
		}
	}

	tp := i.responseBeat(h)
	cycles := i.delays.Of(tp)

	i.snoopResp.Acquire(func() {
		i.Schedule(tp, h, cycles)
	})
}

// Transport receives the phases sent by the target.
func (i *Initiator) Transport(
	p *protocol.Payload,
	phase *protocol.Phase,
	delay *timing.VTimeInSec,
) protocol.SyncStatus {
	if p.Family == protocol.CHICredit {
		i.credits.Grant(p.Credits)
		return protocol.Completed
	}

	switch *phase {
	case protocol.BeginReq, protocol.BeginPartialReq:
		return i.acceptSnoop(p, phase, *delay)
	case protocol.BeginPartialResp, protocol.BeginResp:
		return i.acceptResponse(p, phase, *delay)
	case protocol.EndReq, protocol.EndPartialReq,
		protocol.EndResp, protocol.EndPartialResp:
		i.receive(p, fsm.TimePointOf(*phase))
		return protocol.Accepted
	}

	i.Logger.Error("unexpected phase", zap.Stringer("phase", *phase),
		zap.Stringer("payload", p))

	return protocol.Accepted
}

func (i *Initiator) acceptSnoop(
	p *protocol.Payload,
	phase *protocol.Phase,
	delay timing.VTimeInSec,
) protocol.SyncStatus {
	if !p.Snoop {
		i.Logger.Error("request on the backward path is not a snoop",
			zap.Stringer("payload", p))
		return protocol.Accepted
	}

	h, _, err := i.openRequest(p, fsm.TimePointOf(*phase), true)
	if err != nil {
		return protocol.Accepted
	}

	return i.endAfter(h, fsm.TimePointOf(phase.Matching()), phase, delay)
}
