package checker

import (
	"fmt"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/hooking"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// HookPosViolation is triggered for every violation. The item of the hook
// context is the Violation.
var HookPosViolation = &hooking.HookPos{Name: "ProtocolViolation"}

type pendingBegin struct {
	payload *protocol.Payload
	phase   protocol.Phase
}

type txnState struct {
	channel     Channel
	partialReq  int
	partialResp int
	reqEnded    bool
	respEnded   bool
}

type idKey struct {
	channel Channel
	id      uint32
}

// Checker tracks the phases of every transaction it observes and reports the
// ones that break the protocol. It never panics on bad input.
type Checker struct {
	hooking.HookableBase

	time     timing.TimeTeller
	registry *protocol.Registry
	reporter Reporter

	lanes [numChannels][numLanes]*pendingBegin
	txns  map[*protocol.Payload]*txnState
	byID  map[idKey][]*protocol.Payload
	count int
}

// NewChecker creates a Checker. A nil registry means the built-in families.
func NewChecker(
	time timing.TimeTeller,
	registry *protocol.Registry,
	reporter Reporter,
) *Checker {
	if registry == nil {
		registry = protocol.NewDefaultRegistry()
	}

	return &Checker{
		time:     time,
		registry: registry,
		reporter: reporter,
		txns:     make(map[*protocol.Payload]*txnState),
		byID:     make(map[idKey][]*protocol.Payload),
	}
}

// NumViolations returns the number of violations found so far.
func (c *Checker) NumViolations() int {
	return c.count
}

// Outstanding returns the number of transactions that have not finished.
func (c *Checker) Outstanding() int {
	return len(c.txns)
}

// Observe checks one phase traveling in the given direction.
func (c *Checker) Observe(
	p *protocol.Payload,
	phase protocol.Phase,
	dir Direction,
) {
	if p.Family == protocol.CHICredit {
		return
	}

	ch := channelOf(p)

	lane, ok := laneOf(phase)
	if !ok {
		c.report(p, ch, RequestLane, phase, dir, "unknown phase")
		return
	}

	if dir != expectedDirection(p, phase) {
		c.report(p, ch, lane, phase, dir, "phase sent by the wrong side")
		return
	}

	switch {
	case phase == protocol.Ack:
		c.observeAck(p, ch, dir)
	case phase.IsBegin():
		c.observeBegin(p, phase, ch, lane, dir)
	default:
		c.observeEnd(p, phase, ch, lane, dir)
	}
}

func channelOf(p *protocol.Payload) Channel {
	switch {
	case p.Snoop:
		return SnoopChannel
	case p.Command == protocol.Write:
		return WriteChannel
	}

	return ReadChannel
}

func laneOf(phase protocol.Phase) (Lane, bool) {
	switch phase {
	case protocol.BeginReq, protocol.EndReq:
		return RequestLane, true
	case protocol.BeginPartialReq, protocol.EndPartialReq,
		protocol.BeginPartialResp, protocol.EndPartialResp:
		return DataLane, true
	case protocol.BeginResp, protocol.EndResp:
		return ResponseLane, true
	case protocol.Ack:
		return AckLane, true
	}

	return 0, false
}

// expectedDirection returns the way a phase must travel. Snoops are requested
// by the target, so their phases travel the other way.
func expectedDirection(p *protocol.Payload, phase protocol.Phase) Direction {
	fromRequester := false

	switch phase {
	case protocol.BeginPartialReq, protocol.BeginReq,
		protocol.EndPartialResp, protocol.EndResp, protocol.Ack:
		fromRequester = true
	}

	if fromRequester != p.Snoop {
		return Forward
	}

	return Backward
}

func (c *Checker) observeBegin(
	p *protocol.Payload,
	phase protocol.Phase,
	ch Channel,
	lane Lane,
	dir Direction,
) {
	if pending := c.lanes[ch][lane]; pending != nil {
		c.report(p, ch, lane, phase, dir,
			fmt.Sprintf("handshake already pending on the lane (%s of %s)",
				pending.phase, pending.payload))
		return
	}

	var msg string
	if phase.IsRequest() {
		msg = c.checkRequest(p, phase, ch)
	} else {
		msg = c.checkResponse(p, phase, ch)
	}

	if msg != "" {
		c.report(p, ch, lane, phase, dir, msg)
	}

	c.lanes[ch][lane] = &pendingBegin{payload: p, phase: phase}
}

func (c *Checker) checkRequest(
	p *protocol.Payload,
	phase protocol.Phase,
	ch Channel,
) string {
	st := c.txns[p]
	if st == nil {
		st = &txnState{channel: ch}
		c.txns[p] = st

		k := idKey{channel: ch, id: p.ID}
		c.byID[k] = append(c.byID[k], p)
	}

	if st.reqEnded {
		return "request phase after the request ended"
	}

	beats := p.Beats()

	if phase == protocol.BeginPartialReq {
		switch {
		case ch == SnoopChannel:
			return "snoop requests cannot carry data beats"
		case ch != WriteChannel:
			return "partial request of a transaction without write data"
		case st.partialReq >= beats-1:
			return fmt.Sprintf("partial request beat %d reaches the burst length %d",
				st.partialReq+1, beats)
		}

		return ""
	}

	if ch == WriteChannel && st.partialReq != beats-1 {
		return fmt.Sprintf("write burst ended after %d of %d beats",
			st.partialReq+1, beats)
	}

	return ""
}

func (c *Checker) checkResponse(
	p *protocol.Payload,
	phase protocol.Phase,
	ch Channel,
) string {
	st := c.txns[p]
	if st == nil {
		return "response of an unknown transaction"
	}

	if !st.reqEnded {
		if ch == WriteChannel {
			return "write response before the final write beat ended"
		}

		return "response before the request ended"
	}

	if st.respEnded {
		return "response phase after the response ended"
	}

	q := c.byID[idKey{channel: ch, id: p.ID}]
	if len(q) == 0 || q[0] != p {
		return "response does not match the oldest outstanding request of the ID"
	}

	beats := p.Beats()

	if phase == protocol.BeginPartialResp {
		switch {
		case ch == WriteChannel:
			return "partial response of a write"
		case st.partialResp >= beats-1:
			return fmt.Sprintf("partial response beat %d reaches the burst length %d",
				st.partialResp+1, beats)
		}

		return ""
	}

	if ch != WriteChannel && st.partialResp != beats-1 {
		return fmt.Sprintf("response burst ended after %d of %d beats",
			st.partialResp+1, beats)
	}

	return ""
}

func (c *Checker) observeEnd(
	p *protocol.Payload,
	phase protocol.Phase,
	ch Channel,
	lane Lane,
	dir Direction,
) {
	pending := c.lanes[ch][lane]
	if pending == nil || pending.payload != p ||
		pending.phase.Matching() != phase {
		c.report(p, ch, lane, phase, dir,
			"end does not match the pending begin of the lane")
		return
	}

	c.lanes[ch][lane] = nil

	st := c.txns[p]
	if st == nil {
		return
	}

	switch phase {
	case protocol.EndPartialReq:
		st.partialReq++
	case protocol.EndReq:
		st.reqEnded = true
	case protocol.EndPartialResp:
		st.partialResp++
	case protocol.EndResp:
		st.respEnded = true
		c.dequeue(p, ch)

		if !c.needsAck(p, ch, lane, phase, dir) {
			delete(c.txns, p)
		}
	}
}

func (c *Checker) observeAck(p *protocol.Payload, ch Channel, dir Direction) {
	st := c.txns[p]
	if st == nil || !st.respEnded {
		c.report(p, ch, AckLane, protocol.Ack, dir,
			"acknowledge before the response ended")
		return
	}

	if !c.needsAck(p, ch, AckLane, protocol.Ack, dir) {
		c.report(p, ch, AckLane, protocol.Ack, dir,
			"acknowledge of a family that is not acknowledged")
	}

	delete(c.txns, p)
}

func (c *Checker) needsAck(
	p *protocol.Payload,
	ch Channel,
	lane Lane,
	phase protocol.Phase,
	dir Direction,
) bool {
	if p.Snoop {
		return false
	}

	info, ok := c.registry.Lookup(p.Family)
	if !ok {
		c.report(p, ch, lane, phase, dir, "unrecognized protocol extension")
		return false
	}

	return info.NeedsAck
}

func (c *Checker) dequeue(p *protocol.Payload, ch Channel) {
	k := idKey{channel: ch, id: p.ID}
	q := c.byID[k]

	for i, e := range q {
		if e != p {
			continue
		}

		q = append(q[:i], q[i+1:]...)

		break
	}

	if len(q) == 0 {
		delete(c.byID, k)
		return
	}

	c.byID[k] = q
}

func (c *Checker) report(
	p *protocol.Payload,
	ch Channel,
	lane Lane,
	phase protocol.Phase,
	dir Direction,
	msg string,
) {
	v := Violation{
		ID:        p.ID,
		Command:   p.Command,
		Address:   p.Address,
		Channel:   ch,
		Lane:      lane,
		Phase:     phase,
		Direction: dir,
		Message:   msg,
	}

	if c.time != nil {
		v.Time = c.time.Now()
	}

	c.count++

	if c.reporter != nil {
		c.reporter.Report(v)
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosViolation,
		Item:   v,
	})
}
