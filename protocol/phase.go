// Package protocol defines the vocabulary shared by all the bus protocol
// engines: phases, life cycle time points, commands, protocol families and
// the transaction payload.
package protocol

import "fmt"

// Phase is a handshake phase that travels over a forward or backward
// transport call.
type Phase int

// All the legal protocol phases.
const (
	PhaseUnknown Phase = iota
	BeginReq
	EndReq
	BeginPartialReq
	EndPartialReq
	BeginResp
	EndResp
	BeginPartialResp
	EndPartialResp
	Ack
)

var phaseNames = [...]string{
	PhaseUnknown:     "UNKNOWN_PHASE",
	BeginReq:         "BEGIN_REQ",
	EndReq:           "END_REQ",
	BeginPartialReq:  "BEGIN_PARTIAL_REQ",
	EndPartialReq:    "END_PARTIAL_REQ",
	BeginResp:        "BEGIN_RESP",
	EndResp:          "END_RESP",
	BeginPartialResp: "BEGIN_PARTIAL_RESP",
	EndPartialResp:   "END_PARTIAL_RESP",
	Ack:              "ACK",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}

	return phaseNames[p]
}

// IsBegin tells if the phase opens a handshake.
func (p Phase) IsBegin() bool {
	switch p {
	case BeginReq, BeginPartialReq, BeginResp, BeginPartialResp:
		return true
	}

	return false
}

// IsEnd tells if the phase closes a handshake.
func (p Phase) IsEnd() bool {
	switch p {
	case EndReq, EndPartialReq, EndResp, EndPartialResp:
		return true
	}

	return false
}

// IsPartial tells if the phase is used for a non-final beat of a burst.
func (p Phase) IsPartial() bool {
	switch p {
	case BeginPartialReq, EndPartialReq, BeginPartialResp, EndPartialResp:
		return true
	}

	return false
}

// IsRequest tells if the phase belongs to the request half of a transaction.
func (p Phase) IsRequest() bool {
	switch p {
	case BeginReq, EndReq, BeginPartialReq, EndPartialReq:
		return true
	}

	return false
}

// IsResponse tells if the phase belongs to the response half of a
// transaction.
func (p Phase) IsResponse() bool {
	switch p {
	case BeginResp, EndResp, BeginPartialResp, EndPartialResp:
		return true
	}

	return false
}

// Matching returns the phase that closes (or opens) the handshake p belongs
// to. Ack and unknown phases have no match and return PhaseUnknown.
func (p Phase) Matching() Phase {
	switch p {
	case BeginReq:
		return EndReq
	case EndReq:
		return BeginReq
	case BeginPartialReq:
		return EndPartialReq
	case EndPartialReq:
		return BeginPartialReq
	case BeginResp:
		return EndResp
	case EndResp:
		return BeginResp
	case BeginPartialResp:
		return EndPartialResp
	case EndPartialResp:
		return BeginPartialResp
	}

	return PhaseUnknown
}
