// Package ordering provides the completion ordering policies. A policy holds
// the responses that are ready to be sent and decides, tick by tick, which of
// them are handed back to the protocol engine.
package ordering

import (
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// An Emitter sends a response backward. It returns false if the response
// cannot be sent right now, in which case the buffer keeps it and retries on
// a later tick.
type Emitter func(p *protocol.Payload) bool

// A Buffer is a completion ordering policy. On every tick a buffer emits at
// most one entry per command channel, except for forced evictions.
type Buffer interface {
	timing.Ticker

	// Push adds a response that is ready to be sent.
	Push(p *protocol.Payload)

	// Len returns the number of held responses.
	Len() int

	// SetEmitter sets where the emitted responses go.
	SetEmitter(e Emitter)
}

// channels is the fixed iteration order of the command channels.
var channels = [...]protocol.Command{
	protocol.Read, protocol.Write, protocol.Ignore,
}

func channelIndex(cmd protocol.Command) int {
	switch cmd {
	case protocol.Read:
		return 0
	case protocol.Write:
		return 1
	default:
		return 2
	}
}

// delayedEntry is a response waiting for its minimum latency.
type delayedEntry struct {
	payload   *protocol.Payload
	countdown int
}

// delayLine implements the per-channel minimum latency: an entry waits in a
// delay queue until its counter reaches zero and then moves to the emission
// queue of its channel.
type delayLine struct {
	minLatency int
	delay      [len(channels)][]*delayedEntry
	ready      [len(channels)][]*protocol.Payload
	size       int
}

func (l *delayLine) push(p *protocol.Payload) {
	c := channelIndex(p.Command)
	l.delay[c] = append(l.delay[c], &delayedEntry{
		payload:   p,
		countdown: l.minLatency,
	})
	l.size++
}

// advance counts one tick down for every delayed entry and moves the due
// ones to the emission queues, keeping the arrival order.
func (l *delayLine) advance() {
	for c := range l.delay {
		kept := l.delay[c][:0]

		for _, e := range l.delay[c] {
			e.countdown--
			if e.countdown <= 0 {
				l.ready[c] = append(l.ready[c], e.payload)
				continue
			}

			kept = append(kept, e)
		}

		for i := len(kept); i < len(l.delay[c]); i++ {
			l.delay[c][i] = nil
		}

		l.delay[c] = kept
	}
}

func (l *delayLine) head(c int) *protocol.Payload {
	if len(l.ready[c]) == 0 {
		return nil
	}

	return l.ready[c][0]
}

func (l *delayLine) pop(c int) {
	l.ready[c][0] = nil
	l.ready[c] = l.ready[c][1:]
	l.size--
}
