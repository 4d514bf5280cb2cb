package checker

import (
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// Monitor sits between an initiator and a target. It passes the phases on
// both paths and lets a Checker observe them, including the phases that the
// callee answers with.
type Monitor struct {
	checker   *Checker
	target    protocol.Transport
	initiator protocol.Transport
}

// NewMonitor creates a Monitor that reports to the checker.
func NewMonitor(c *Checker) *Monitor {
	return &Monitor{checker: c}
}

// Checker returns the checker of the monitor.
func (m *Monitor) Checker() *Checker {
	return m.checker
}

// SetTarget sets where the forward path goes.
func (m *Monitor) SetTarget(t protocol.Transport) {
	m.target = t
}

// SetInitiator sets where the backward path goes.
func (m *Monitor) SetInitiator(i protocol.Transport) {
	m.initiator = i
}

// Forward returns the transport that the initiator should call.
func (m *Monitor) Forward() protocol.Transport {
	return protocol.TransportFunc(func(
		p *protocol.Payload,
		phase *protocol.Phase,
		delay *timing.VTimeInSec,
	) protocol.SyncStatus {
		return m.pass(m.target, p, phase, delay, Forward)
	})
}

// Backward returns the transport that the target should call.
func (m *Monitor) Backward() protocol.Transport {
	return protocol.TransportFunc(func(
		p *protocol.Payload,
		phase *protocol.Phase,
		delay *timing.VTimeInSec,
	) protocol.SyncStatus {
		return m.pass(m.initiator, p, phase, delay, Backward)
	})
}

func (m *Monitor) pass(
	to protocol.Transport,
	p *protocol.Payload,
	phase *protocol.Phase,
	delay *timing.VTimeInSec,
	dir Direction,
) protocol.SyncStatus {
	m.checker.Observe(p, *phase, dir)

	status := to.Transport(p, phase, delay)
	if status == protocol.Updated {
		m.checker.Observe(p, *phase, opposite(dir))
	}

	return status
}

func opposite(d Direction) Direction {
	if d == Forward {
		return Backward
	}

	return Forward
}
