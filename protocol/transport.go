package protocol

import "github.com/sarchlab/tlmbus/sim/timing"

// Transport is a non-blocking transport interface. The same signature is used
// on the forward path (initiator to target) and on the backward path (target
// to initiator).
//
// The callee reads the phase and may update it in place, in which case it
// returns Updated. The delay is an in/out time annotation that the callee may
// extend to signal added latency.
type Transport interface {
	Transport(p *Payload, phase *Phase, delay *timing.VTimeInSec) SyncStatus
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(
	p *Payload, phase *Phase, delay *timing.VTimeInSec,
) SyncStatus

// Transport calls f.
func (f TransportFunc) Transport(
	p *Payload, phase *Phase, delay *timing.VTimeInSec,
) SyncStatus {
	return f(p, phase, delay)
}
