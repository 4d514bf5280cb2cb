package fsm

import (
	"fmt"

	"github.com/sarchlab/tlmbus/protocol"
)

// TimePoint is a named point of a transaction's life cycle. Time points are
// the events of the phase state machine and index the per-transaction
// callback table.
type TimePoint int

// The life cycle time points, in the order a transaction passes them.
const (
	RequestPhaseBeg TimePoint = iota
	BegPartReq
	EndPartReq
	BegReq
	EndReq
	ResponsePhaseBeg
	BegPartResp
	EndPartResp
	BegResp
	EndResp
	Ack

	// NumTimePoints is the size of a callback table.
	NumTimePoints

	TimePointUnknown TimePoint = -1
)

var timePointNames = [...]string{
	RequestPhaseBeg:  "RequestPhaseBeg",
	BegPartReq:       "BegPartReq",
	EndPartReq:       "EndPartReq",
	BegReq:           "BegReq",
	EndReq:           "EndReq",
	ResponsePhaseBeg: "ResponsePhaseBeg",
	BegPartResp:      "BegPartResp",
	EndPartResp:      "EndPartResp",
	BegResp:          "BegResp",
	EndResp:          "EndResp",
	Ack:              "Ack",
}

func (t TimePoint) String() string {
	if t < 0 || t >= NumTimePoints {
		return fmt.Sprintf("TimePoint(%d)", int(t))
	}

	return timePointNames[t]
}

// Phase returns the phase that is put on the wire when a transaction reaches
// the time point. RequestPhaseBeg and ResponsePhaseBeg are internal and
// return PhaseUnknown.
func (t TimePoint) Phase() protocol.Phase {
	switch t {
	case BegPartReq:
		return protocol.BeginPartialReq
	case EndPartReq:
		return protocol.EndPartialReq
	case BegReq:
		return protocol.BeginReq
	case EndReq:
		return protocol.EndReq
	case BegPartResp:
		return protocol.BeginPartialResp
	case EndPartResp:
		return protocol.EndPartialResp
	case BegResp:
		return protocol.BeginResp
	case EndResp:
		return protocol.EndResp
	case Ack:
		return protocol.Ack
	}

	return protocol.PhaseUnknown
}

// TimePointOf returns the life cycle point a phase moves a transaction to.
func TimePointOf(p protocol.Phase) TimePoint {
	switch p {
	case protocol.BeginReq:
		return BegReq
	case protocol.EndReq:
		return EndReq
	case protocol.BeginPartialReq:
		return BegPartReq
	case protocol.EndPartialReq:
		return EndPartReq
	case protocol.BeginResp:
		return BegResp
	case protocol.EndResp:
		return EndResp
	case protocol.BeginPartialResp:
		return BegPartResp
	case protocol.EndPartialResp:
		return EndPartResp
	case protocol.Ack:
		return Ack
	}

	return TimePointUnknown
}
