package traffic

import (
	"errors"
	"log"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/flowcontrol"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// A Sender accepts transactions. A pe.Initiator is a Sender.
type Sender interface {
	Send(p *protocol.Payload, done func()) error
}

// Generator ticks a Source into a Sender. Transactions a full sender refuses
// are offered again on the next cycle.
type Generator struct {
	*timing.TickingComponent

	source Source
	sender Sender
	logger *zap.Logger

	pending      *protocol.Payload
	pendingCycle uint64
	exhausted    bool

	issued    int
	completed int
	retries   int
}

// NewGenerator creates a Generator.
func NewGenerator(
	name string,
	engine timing.Engine,
	freq timing.Freq,
	source Source,
	sender Sender,
	logger *zap.Logger,
) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Generator{
		source: source,
		sender: sender,
		logger: logger.Named(name),
	}
	g.TickingComponent = timing.NewTickingComponent(name, engine, freq, g)

	return g
}

// Start schedules the first tick at the current cycle.
func (g *Generator) Start() {
	g.TickNow()
}

// Tick issues every transaction that is due.
func (g *Generator) Tick() bool {
	cycle := g.Freq.Cycle(g.Now())

	for {
		if !g.fetch() {
			return false
		}

		if g.pendingCycle > cycle {
			return true
		}

		err := g.sender.Send(g.pending, g.complete)
		if errors.Is(err, flowcontrol.ErrTooManyOutstanding) {
			g.retries++
			return true
		}

		if err != nil {
			log.Panicf("cannot send %s: %v", g.pending, err)
		}

		g.logger.Debug("issued",
			zap.Stringer("payload", g.pending),
			zap.Uint64("cycle", cycle))

		g.issued++
		g.pending = nil
	}
}

func (g *Generator) fetch() bool {
	if g.pending != nil {
		return true
	}

	if g.exhausted {
		return false
	}

	p, cycle, ok := g.source.Next()
	if !ok {
		g.exhausted = true
		return false
	}

	g.pending = p
	g.pendingCycle = cycle

	return true
}

func (g *Generator) complete() {
	g.completed++
}

// Issued returns how many transactions were accepted by the sender.
func (g *Generator) Issued() int {
	return g.issued
}

// Completed returns how many issued transactions finished.
func (g *Generator) Completed() int {
	return g.completed
}

// Retries returns how many times the sender refused a transaction.
func (g *Generator) Retries() int {
	return g.retries
}

// Done tells if all the transactions were issued and finished.
func (g *Generator) Done() bool {
	return g.exhausted && g.pending == nil && g.completed == g.issued
}
