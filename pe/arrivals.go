package pe

import "github.com/sarchlab/tlmbus/protocol"

type arrivalKey struct {
	channel int
	id      uint32
}

type arrival struct {
	payload *protocol.Payload
	ready   bool
}

// arrivals releases ready responses in the order their requests arrived.
// Responses sharing an ID are always released in order. In strict mode, all
// the responses of a channel are.
type arrivals struct {
	strict  bool
	release func(p *protocol.Payload)

	queues    map[arrivalKey][]*arrival
	byPayload map[*protocol.Payload]*arrival
}

func newArrivals(strict bool, release func(p *protocol.Payload)) *arrivals {
	return &arrivals{
		strict:    strict,
		release:   release,
		queues:    make(map[arrivalKey][]*arrival),
		byPayload: make(map[*protocol.Payload]*arrival),
	}
}

func (a *arrivals) key(p *protocol.Payload) arrivalKey {
	k := arrivalKey{channel: channelOf(p.Command)}
	if !a.strict {
		k.id = p.ID
	}

	return k
}

func (a *arrivals) add(p *protocol.Payload) {
	e := &arrival{payload: p}
	k := a.key(p)

	a.queues[k] = append(a.queues[k], e)
	a.byPayload[p] = e
}

func (a *arrivals) markReady(p *protocol.Payload) {
	e, ok := a.byPayload[p]
	if !ok {
		return
	}

	e.ready = true

	k := a.key(p)

	for {
		q := a.queues[k]
		if len(q) == 0 || !q[0].ready {
			break
		}

		head := q[0]
		q[0] = nil

		if len(q) == 1 {
			delete(a.queues, k)
		} else {
			a.queues[k] = q[1:]
		}

		delete(a.byPayload, head.payload)
		a.release(head.payload)
	}
}
