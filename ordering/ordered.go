package ordering

import "github.com/sarchlab/tlmbus/protocol"

// OrderedBuffer emits the responses of every command channel strictly in
// arrival order, each no earlier than the minimum latency after it arrived.
type OrderedBuffer struct {
	line delayLine
	emit Emitter
}

// NewOrderedBuffer creates an OrderedBuffer. The minimum latency is counted
// in ticks.
func NewOrderedBuffer(minLatency int) *OrderedBuffer {
	return &OrderedBuffer{line: delayLine{minLatency: minLatency}}
}

// SetEmitter sets where the emitted responses go.
func (b *OrderedBuffer) SetEmitter(e Emitter) {
	b.emit = e
}

// Push adds a response.
func (b *OrderedBuffer) Push(p *protocol.Payload) {
	b.line.push(p)
}

// Len returns the number of held responses.
func (b *OrderedBuffer) Len() int {
	return b.line.size
}

// Tick ages the held responses and emits the head of each channel.
func (b *OrderedBuffer) Tick() bool {
	if b.line.size == 0 {
		return false
	}

	b.line.advance()

	for c := range channels {
		p := b.line.head(c)
		if p != nil && b.emit(p) {
			b.line.pop(c)
		}
	}

	return true
}
