package fsm

import (
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/id"
)

// CallbackSetter fills the callback table of a newly tracked handle.
type CallbackSetter interface {
	SetupCallbacks(h *Handle)
}

// Pool creates, locates and retires transaction handles. Handles are keyed by
// payload identity, not by protocol ID. Enforcing ID level exclusivity is
// left to the flow control layer.
type Pool struct {
	setter   CallbackSetter
	registry *protocol.Registry
	active   map[*protocol.Payload]*Handle
	idle     []*Handle
}

// NewPool creates a pool whose new handles are set up by setter.
func NewPool(setter CallbackSetter, registry *protocol.Registry) *Pool {
	return &Pool{
		setter:   setter,
		registry: registry,
		active:   make(map[*protocol.Payload]*Handle),
	}
}

// FindOrCreate returns the handle that tracks the payload, creating one if
// the payload is not tracked yet.
func (p *Pool) FindOrCreate(
	payload *protocol.Payload,
	isSnoop bool,
) *Handle {
	if h, ok := p.active[payload]; ok {
		return h
	}

	info := p.registry.MustLookup(payload)

	h := p.allocate()
	h.TxnID = id.Generate()
	h.Payload = payload
	h.IsSnoop = isSnoop
	h.NeedsAck = info.NeedsAck && !isSnoop
	h.State = Idle

	if p.setter != nil {
		p.setter.SetupCallbacks(h)
	}

	p.active[payload] = h

	return h
}

func (p *Pool) allocate() *Handle {
	n := len(p.idle)
	if n == 0 {
		return &Handle{}
	}

	h := p.idle[n-1]
	p.idle = p.idle[:n-1]

	return h
}

// Find returns the handle of a tracked payload, or nil.
func (p *Pool) Find(payload *protocol.Payload) *Handle {
	return p.active[payload]
}

// Retire removes the handle from the active set and fires its completion
// signal. The handle is recycled afterwards.
func (p *Pool) Retire(h *Handle) {
	if p.active[h.Payload] != h {
		return
	}

	delete(p.active, h.Payload)
	h.finish.fire()
	h.reset()
	p.idle = append(p.idle, h)
}

// Active returns the number of handles in flight.
func (p *Pool) Active() int {
	return len(p.active)
}

// IsBusy tells if any transaction is in flight.
func (p *Pool) IsBusy() bool {
	return len(p.active) > 0
}
