package fsm

// Table maps the current state of a transaction and an incoming time point to
// the next state. A Table is built once per engine and shared by all the
// handles of that engine.
type Table struct {
	next [numStates][NumTimePoints]State
}

// NewTable builds the transition table of the split-phase protocols.
func NewTable() *Table {
	t := &Table{}

	for s := range t.next {
		for tp := range t.next[s] {
			t.next[s][tp] = invalidState
		}
	}

	t.add(Idle, RequestPhaseBeg, RequestPhase)
	t.add(RequestPhase, BegPartReq, PartialReq)
	t.add(PartialReq, EndPartReq, RequestPhase)
	t.add(RequestPhase, BegReq, Req)
	t.add(Req, EndReq, WaitResponse)
	t.add(WaitResponse, ResponsePhaseBeg, ResponsePhase)
	t.add(ResponsePhase, BegPartResp, PartialResp)
	t.add(PartialResp, EndPartResp, ResponsePhase)
	t.add(ResponsePhase, BegResp, Resp)
	t.add(Resp, EndResp, WaitAck)
	t.add(WaitAck, Ack, Finished)

	return t
}

func (t *Table) add(from State, tp TimePoint, to State) {
	t.next[from][tp] = to
}

// Next returns the state the handle moves to when it reaches the time point,
// and whether the move is legal.
func (t *Table) Next(h *Handle, tp TimePoint) (State, bool) {
	if h.State < 0 || h.State >= numStates || tp < 0 || tp >= NumTimePoints {
		return invalidState, false
	}

	if h.IsSnoop && (tp == BegPartReq || tp == EndPartReq) {
		return invalidState, false
	}

	next := t.next[h.State][tp]
	if next == invalidState {
		return invalidState, false
	}

	if next == WaitAck && !h.NeedsAck {
		next = Finished
	}

	return next, true
}

// Expected lists the time points that are legal from a state.
func (t *Table) Expected(s State) []TimePoint {
	if s < 0 || s >= numStates {
		return nil
	}

	var list []TimePoint

	for tp, next := range t.next[s] {
		if next != invalidState {
			list = append(list, TimePoint(tp))
		}
	}

	return list
}
