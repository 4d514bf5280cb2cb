package fsm

import "fmt"

// State is the position of a transaction in its phase life cycle.
type State int

// The states of the phase state machine.
const (
	Idle State = iota
	RequestPhase
	PartialReq
	Req
	WaitResponse
	ResponsePhase
	PartialResp
	Resp
	WaitAck
	Finished

	numStates

	invalidState State = -1
)

var stateNames = [...]string{
	Idle:          "Idle",
	RequestPhase:  "RequestPhase",
	PartialReq:    "PartialReq",
	Req:           "Req",
	WaitResponse:  "WaitResponse",
	ResponsePhase: "ResponsePhase",
	PartialResp:   "PartialResp",
	Resp:          "Resp",
	WaitAck:       "WaitAck",
	Finished:      "Finished",
}

func (s State) String() string {
	if s < 0 || s >= numStates {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}
