package ordering

import (
	"errors"
	"math"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// ErrConflictingCaps is returned when a total bandwidth cap is configured
// together with per-direction caps.
var ErrConflictingCaps = errors.New(
	"total bandwidth cap cannot be combined with read or write caps")

// RateLimitConfig configures a RateLimitedBuffer. Caps are expressed as the
// time it takes to transfer one byte; zero means no cap.
type RateLimitConfig struct {
	MinLatency   int
	Period       timing.VTimeInSec
	ReadPerByte  timing.VTimeInSec
	WritePerByte timing.VTimeInSec
	TotalPerByte timing.VTimeInSec

	// Clock gives the current time. The budget is then kept in clock cycles
	// since time 0, so cycles that pass while the buffer is not ticked still
	// count. Without a clock every tick counts as one cycle.
	Clock timing.TimeTeller
}

// RateLimitedBuffer is an OrderedBuffer that also caps the bandwidth of the
// responses. Every emission reserves the channel for the time its bytes take
// on the wire. The fractional part of a reservation is carried over to the
// next one so that the cap holds over many responses.
type RateLimitedBuffer struct {
	line   delayLine
	emit   Emitter
	config RateLimitConfig

	cycle     uint64
	busyUntil [len(channels)]uint64
	residual  [len(channels)]float64
	firstEmit [len(channels)]uint64
	emitted   [len(channels)]uint64
}

// NewRateLimitedBuffer creates a RateLimitedBuffer.
func NewRateLimitedBuffer(c RateLimitConfig) (*RateLimitedBuffer, error) {
	if c.TotalPerByte > 0 && (c.ReadPerByte > 0 || c.WritePerByte > 0) {
		return nil, ErrConflictingCaps
	}

	if c.Period <= 0 {
		return nil, errors.New("rate limiter needs a positive clock period")
	}

	b := &RateLimitedBuffer{
		line:   delayLine{minLatency: c.MinLatency},
		config: c,
	}

	return b, nil
}

// SetEmitter sets where the emitted responses go.
func (b *RateLimitedBuffer) SetEmitter(e Emitter) {
	b.emit = e
}

// Push adds a response.
func (b *RateLimitedBuffer) Push(p *protocol.Payload) {
	b.line.push(p)
}

// Len returns the number of held responses.
func (b *RateLimitedBuffer) Len() int {
	return b.line.size
}

// budgetSlot tells which reservation a channel uses. With a total cap, all
// channels share slot 0.
func (b *RateLimitedBuffer) budgetSlot(c int) int {
	if b.config.TotalPerByte > 0 {
		return 0
	}

	return c
}

func (b *RateLimitedBuffer) perByte(c int) timing.VTimeInSec {
	if b.config.TotalPerByte > 0 {
		return b.config.TotalPerByte
	}

	switch channels[c] {
	case protocol.Read:
		return b.config.ReadPerByte
	case protocol.Write:
		return b.config.WritePerByte
	}

	return 0
}

// Tick ages the held responses and emits the head of every channel whose
// time budget allows it.
func (b *RateLimitedBuffer) Tick() bool {
	b.cycle = b.currentCycle()

	if b.line.size == 0 {
		return false
	}

	b.line.advance()

	for c := range channels {
		p := b.line.head(c)
		if p == nil {
			continue
		}

		slot := b.budgetSlot(c)
		if b.cycle < b.busyUntil[slot] {
			continue
		}

		if !b.emit(p) {
			continue
		}

		b.line.pop(c)
		b.reserve(slot, c, p)
	}

	return true
}

func (b *RateLimitedBuffer) currentCycle() uint64 {
	if b.config.Clock == nil {
		return b.cycle + 1
	}

	return uint64(math.Round(
		float64(b.config.Clock.Now()) / float64(b.config.Period)))
}

func (b *RateLimitedBuffer) reserve(slot, c int, p *protocol.Payload) {
	if b.emitted[slot] == 0 {
		b.firstEmit[slot] = b.cycle
	}

	b.emitted[slot]++

	perByte := b.perByte(c)
	if perByte == 0 {
		return
	}

	cost := float64(p.ByteSize())*float64(perByte)/float64(b.config.Period) +
		b.residual[slot]
	whole := math.Floor(cost)

	b.residual[slot] = cost - whole
	b.busyUntil[slot] = b.cycle + uint64(whole)
}

// Residual returns the fractional cycles carried over by a channel.
func (b *RateLimitedBuffer) Residual(cmd protocol.Command) float64 {
	return b.residual[b.budgetSlot(channelIndex(cmd))]
}

// BusyUntil returns the cycle from which the channel may emit again.
func (b *RateLimitedBuffer) BusyUntil(cmd protocol.Command) uint64 {
	return b.busyUntil[b.budgetSlot(channelIndex(cmd))]
}

// FirstEmission returns the cycle of the first emission on the channel.
func (b *RateLimitedBuffer) FirstEmission(cmd protocol.Command) uint64 {
	return b.firstEmit[b.budgetSlot(channelIndex(cmd))]
}

// Cycle returns the cycle of the last tick.
func (b *RateLimitedBuffer) Cycle() uint64 {
	return b.cycle
}
