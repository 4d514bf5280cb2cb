package ordering

import (
	"math/rand"

	"github.com/sarchlab/tlmbus/protocol"
)

// ReorderConfig configures a ReorderBuffer. Latencies are counted in ticks.
type ReorderConfig struct {
	MinLatency    int
	MaxLatency    int
	WindowSize    int
	PrioritizeQoS bool
	WeightByAge   bool

	// Rand drives the random choices. A fixed seed is used if nil.
	Rand *rand.Rand
}

type agedEntry struct {
	payload *protocol.Payload
	age     int
}

// idDeques keeps the entries of one command channel, one deque per ID. The
// order of ids is the order in which each ID first showed up.
type idDeques struct {
	byID map[uint32][]*agedEntry
	ids  []uint32
}

func (d *idDeques) push(p *protocol.Payload) {
	if _, ok := d.byID[p.ID]; !ok {
		d.ids = append(d.ids, p.ID)
	}

	d.byID[p.ID] = append(d.byID[p.ID], &agedEntry{payload: p})
}

func (d *idDeques) popHead(id uint32) {
	q := d.byID[id]
	q[0] = nil
	q = q[1:]

	if len(q) > 0 {
		d.byID[id] = q
		return
	}

	delete(d.byID, id)

	for i, v := range d.ids {
		if v == id {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			break
		}
	}
}

func (d *idDeques) heads() []*agedEntry {
	heads := make([]*agedEntry, 0, len(d.ids))
	for _, id := range d.ids {
		heads = append(heads, d.byID[id][0])
	}

	return heads
}

func (d *idDeques) age() {
	for _, q := range d.byID {
		for _, e := range q {
			e.age++
		}
	}
}

// ReorderBuffer completes the responses out of order. Responses sharing an
// ID keep their order; among IDs the choice is randomized, optionally
// favoring high QoS and old entries. An entry older than the maximum latency
// is always emitted.
type ReorderBuffer struct {
	config ReorderConfig
	emit   Emitter
	queues [len(channels)]idDeques
	size   int
}

// NewReorderBuffer creates a ReorderBuffer.
func NewReorderBuffer(c ReorderConfig) *ReorderBuffer {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}

	b := &ReorderBuffer{config: c}
	for i := range b.queues {
		b.queues[i].byID = make(map[uint32][]*agedEntry)
	}

	return b
}

// SetEmitter sets where the emitted responses go.
func (b *ReorderBuffer) SetEmitter(e Emitter) {
	b.emit = e
}

// Push adds a response.
func (b *ReorderBuffer) Push(p *protocol.Payload) {
	b.queues[channelIndex(p.Command)].push(p)
	b.size++
}

// Len returns the number of held responses.
func (b *ReorderBuffer) Len() int {
	return b.size
}

// Tick ages the entries and emits on every channel.
func (b *ReorderBuffer) Tick() bool {
	if b.size == 0 {
		return false
	}

	for c := range b.queues {
		q := &b.queues[c]
		if len(q.ids) == 0 {
			continue
		}

		q.age()

		if b.evict(q) {
			continue
		}

		b.pick(q)
	}

	return true
}

// evict emits every entry that stayed longer than the maximum latency. It
// reports whether any entry was overdue.
func (b *ReorderBuffer) evict(q *idDeques) bool {
	overdue := false

	for {
		var late []*agedEntry

		for _, h := range q.heads() {
			if h.age > b.config.MaxLatency {
				late = append(late, h)
			}
		}

		if len(late) == 0 {
			return overdue
		}

		overdue = true

		b.config.Rand.Shuffle(len(late), func(i, j int) {
			late[i], late[j] = late[j], late[i]
		})

		progress := false

		for _, e := range late {
			if !b.emit(e.payload) {
				continue
			}

			q.popHead(e.payload.ID)
			b.size--
			progress = true
		}

		if !progress {
			return overdue
		}
	}
}

// inBand reports whether an entry waited past the minimum latency but not
// past the maximum.
func (b *ReorderBuffer) inBand(e *agedEntry) bool {
	return e.age > b.config.MinLatency && e.age <= b.config.MaxLatency
}

// pick emits one entry once the in-band entries outnumber the window. Every
// queued entry counts toward the window, but only ID heads can be chosen.
func (b *ReorderBuffer) pick(q *idDeques) {
	waiting := 0

	for _, entries := range q.byID {
		for _, e := range entries {
			if b.inBand(e) {
				waiting++
			}
		}
	}

	if waiting <= b.config.WindowSize {
		return
	}

	var eligible []*agedEntry

	for _, h := range q.heads() {
		if b.inBand(h) {
			eligible = append(eligible, h)
		}
	}

	if len(eligible) == 0 {
		return
	}

	e := b.choose(eligible)
	if b.emit(e.payload) {
		q.popHead(e.payload.ID)
		b.size--
	}
}

func (b *ReorderBuffer) choose(candidates []*agedEntry) *agedEntry {
	if b.config.PrioritizeQoS {
		candidates = highestQoS(candidates)
		if len(candidates) == 1 {
			return candidates[0]
		}
	}

	if b.config.WeightByAge {
		return weightedByAge(b.config.Rand, candidates)
	}

	return candidates[b.config.Rand.Intn(len(candidates))]
}

func highestQoS(candidates []*agedEntry) []*agedEntry {
	var best []*agedEntry

	top := -1

	for _, e := range candidates {
		qos := int(e.payload.QoS)

		switch {
		case qos > top:
			top = qos
			best = append(best[:0], e)
		case qos == top:
			best = append(best, e)
		}
	}

	return best
}

func weightedByAge(r *rand.Rand, candidates []*agedEntry) *agedEntry {
	total := 0
	for _, e := range candidates {
		total += e.age
	}

	n := r.Intn(total)
	for _, e := range candidates {
		n -= e.age
		if n < 0 {
			return e
		}
	}

	return candidates[len(candidates)-1]
}
