package pe

import (
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/flowcontrol"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// TargetBuilder builds targets.
type TargetBuilder struct {
	engine       timing.Engine
	freq         timing.Freq
	registry     *protocol.Registry
	logger       *zap.Logger
	delays       *Delays
	operation    OperationFunc
	buffer       ordering.Buffer
	maxReads     int
	maxWrites    int
	strictIncome bool
	interleave   bool
	credits      int
	backward     protocol.Transport
}

// MakeTargetBuilder returns a TargetBuilder with default parameters.
func MakeTargetBuilder() TargetBuilder {
	return TargetBuilder{
		freq:      1 * timing.GHz,
		maxReads:  16,
		maxWrites: 16,
	}
}

// WithEngine sets the engine that the target uses.
func (b TargetBuilder) WithEngine(e timing.Engine) TargetBuilder {
	b.engine = e
	return b
}

// WithFreq sets the frequency of the target.
func (b TargetBuilder) WithFreq(f timing.Freq) TargetBuilder {
	b.freq = f
	return b
}

// WithRegistry sets the protocol families the target understands.
func (b TargetBuilder) WithRegistry(r *protocol.Registry) TargetBuilder {
	b.registry = r
	return b
}

// WithLogger sets the logger.
func (b TargetBuilder) WithLogger(l *zap.Logger) TargetBuilder {
	b.logger = l
	return b
}

// WithDelays sets the delays of the phases the target owns.
func (b TargetBuilder) WithDelays(d *Delays) TargetBuilder {
	b.delays = d
	return b
}

// WithOperation sets the function that serves the requests.
func (b TargetBuilder) WithOperation(op OperationFunc) TargetBuilder {
	b.operation = op
	return b
}

// WithOrdering sets the completion ordering policy. Without one, responses
// start as soon as they are ready.
func (b TargetBuilder) WithOrdering(buf ordering.Buffer) TargetBuilder {
	b.buffer = buf
	return b
}

// WithMaxOutstanding sets how many reads and writes can be in flight.
func (b TargetBuilder) WithMaxOutstanding(reads, writes int) TargetBuilder {
	b.maxReads = reads
	b.maxWrites = writes

	return b
}

// WithStrictIncomeOrder makes responses leave in request arrival order.
func (b TargetBuilder) WithStrictIncomeOrder(strict bool) TargetBuilder {
	b.strictIncome = strict
	return b
}

// WithDataInterleaving lets read data beats of different IDs interleave.
func (b TargetBuilder) WithDataInterleaving(on bool) TargetBuilder {
	b.interleave = on
	return b
}

// WithCredits sets the number of request credits granted at start. Zero
// disables credit granting.
func (b TargetBuilder) WithCredits(n int) TargetBuilder {
	b.credits = n
	return b
}

// WithBackward sets the path toward the initiator.
func (b TargetBuilder) WithBackward(t protocol.Transport) TargetBuilder {
	b.backward = t
	return b
}

// Build creates a target with the given name.
func (b TargetBuilder) Build(name string) *Target {
	t := &Target{
		interleave: b.interleave,
		credits:    b.credits,
		operation:  b.operation,
		held:       make(map[*protocol.Payload]bool),
	}

	t.endpoint = newEndpoint(name, false, b.engine, b.freq,
		b.registry, b.logger, b.delays)
	t.peer = b.backward
	t.onReach = t.reachTimePoint

	if t.operation == nil {
		t.operation = func(*protocol.Payload) int { return 0 }
	}

	t.outstanding[readChannel] = flowcontrol.NewSemaphore(
		name+".OutstandingReads", b.maxReads)
	t.outstanding[writeChannel] = flowcontrol.NewSemaphore(
		name+".OutstandingWrites", b.maxWrites)
	t.respChannel[readChannel] = flowcontrol.NewSemaphore(name+".R", 1)
	t.respChannel[writeChannel] = flowcontrol.NewSemaphore(name+".B", 1)
	t.respIDs[readChannel] = flowcontrol.NewIDLock(name + ".ReadIDs")
	t.respIDs[writeChannel] = flowcontrol.NewIDLock(name + ".WriteIDs")
	t.snoopReq = flowcontrol.NewSemaphore(name+".AC", 1)

	t.arrivals = newArrivals(b.strictIncome, t.release)

	if b.buffer != nil {
		b.buffer.SetEmitter(t.tryStartResponse)
		t.order = ordering.NewComponent(name+".Ordering",
			b.engine, b.freq, b.buffer)
	}

	return t
}
