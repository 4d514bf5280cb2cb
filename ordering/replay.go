package ordering

import (
	"github.com/sarchlab/tlmbus/protocol"
	"go.uber.org/zap"
)

type replayKey struct {
	cmd protocol.Command
	id  uint32
}

// ReplayBuffer reproduces the latencies of a recorded trace. Each response
// is matched against the recorded entries that share its command and ID,
// picking the first one with the same address.
type ReplayBuffer struct {
	emit      Emitter
	logger    *zap.Logger
	sequence  map[replayKey][]ReplayEntry
	line      [len(channels)][]*delayedEntry
	size      int
	anomalies int
}

// NewReplayBuffer creates a ReplayBuffer that serves the given entries.
func NewReplayBuffer(entries []ReplayEntry, logger *zap.Logger) *ReplayBuffer {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &ReplayBuffer{
		logger:   logger,
		sequence: make(map[replayKey][]ReplayEntry),
	}

	for _, e := range entries {
		k := replayKey{cmd: e.Command, id: e.ID}
		b.sequence[k] = append(b.sequence[k], e)
	}

	return b
}

// SetEmitter sets where the emitted responses go.
func (b *ReplayBuffer) SetEmitter(e Emitter) {
	b.emit = e
}

// Push adds a response, with the latency of its recorded entry.
func (b *ReplayBuffer) Push(p *protocol.Payload) {
	latency, found := b.lookup(p)
	if !found {
		b.anomalies++
		b.logger.Warn("no recorded latency for response",
			zap.Stringer("payload", p))
	}

	c := channelIndex(p.Command)
	b.line[c] = append(b.line[c], &delayedEntry{
		payload:   p,
		countdown: latency,
	})
	b.size++
}

func (b *ReplayBuffer) lookup(p *protocol.Payload) (int, bool) {
	k := replayKey{cmd: p.Command, id: p.ID}

	seq := b.sequence[k]
	for i, e := range seq {
		if e.Address != p.Address {
			continue
		}

		b.sequence[k] = append(seq[:i], seq[i+1:]...)

		return e.Latency, true
	}

	return 0, false
}

// Len returns the number of held responses.
func (b *ReplayBuffer) Len() int {
	return b.size
}

// Anomalies returns how many responses had no recorded entry.
func (b *ReplayBuffer) Anomalies() int {
	return b.anomalies
}

// Remaining returns how many recorded entries were not used yet.
func (b *ReplayBuffer) Remaining() int {
	n := 0
	for _, seq := range b.sequence {
		n += len(seq)
	}

	return n
}

// Tick counts the latencies down and emits, per channel, the oldest due
// response that is also the oldest held response of its ID.
func (b *ReplayBuffer) Tick() bool {
	if b.size == 0 {
		return false
	}

	for c := range b.line {
		due := -1
		ahead := make(map[uint32]bool)

		for i, e := range b.line[c] {
			e.countdown--

			if due < 0 && e.countdown <= 0 && !ahead[e.payload.ID] {
				due = i
			}

			ahead[e.payload.ID] = true
		}

		if due < 0 || !b.emit(b.line[c][due].payload) {
			continue
		}

		b.line[c] = append(b.line[c][:due], b.line[c][due+1:]...)
		b.size--
	}

	return true
}
