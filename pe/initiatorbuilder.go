package pe

import (
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/flowcontrol"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// InitiatorBuilder builds initiators.
type InitiatorBuilder struct {
	engine       timing.Engine
	freq         timing.Freq
	registry     *protocol.Registry
	logger       *zap.Logger
	delays       *Delays
	queueSize    int
	maxReads     int
	maxWrites    int
	serializeIDs bool
	snoop        SnoopFunc
	forward      protocol.Transport
}

// MakeInitiatorBuilder returns an InitiatorBuilder with default parameters.
func MakeInitiatorBuilder() InitiatorBuilder {
	return InitiatorBuilder{
		freq:      1 * timing.GHz,
		queueSize: 64,
		maxReads:  16,
		maxWrites: 16,
	}
}

// WithEngine sets the engine that the initiator uses.
func (b InitiatorBuilder) WithEngine(e timing.Engine) InitiatorBuilder {
	b.engine = e
	return b
}

// WithFreq sets the frequency of the initiator.
func (b InitiatorBuilder) WithFreq(f timing.Freq) InitiatorBuilder {
	b.freq = f
	return b
}

// WithRegistry sets the protocol families the initiator understands.
func (b InitiatorBuilder) WithRegistry(r *protocol.Registry) InitiatorBuilder {
	b.registry = r
	return b
}

// WithLogger sets the logger.
func (b InitiatorBuilder) WithLogger(l *zap.Logger) InitiatorBuilder {
	b.logger = l
	return b
}

// WithDelays sets the delays of the phases the initiator owns.
func (b InitiatorBuilder) WithDelays(d *Delays) InitiatorBuilder {
	b.delays = d
	return b
}

// WithQueueSize sets how many transactions can wait to be issued.
func (b InitiatorBuilder) WithQueueSize(n int) InitiatorBuilder {
	b.queueSize = n
	return b
}

// WithMaxOutstanding sets how many reads and writes can be in flight.
func (b InitiatorBuilder) WithMaxOutstanding(reads, writes int) InitiatorBuilder {
	b.maxReads = reads
	b.maxWrites = writes

	return b
}

// WithIDSerialization makes transactions sharing an ID wait for each other.
func (b InitiatorBuilder) WithIDSerialization(on bool) InitiatorBuilder {
	b.serializeIDs = on
	return b
}

// WithSnoopFunc sets the function that serves snoop requests.
func (b InitiatorBuilder) WithSnoopFunc(f SnoopFunc) InitiatorBuilder {
	b.snoop = f
	return b
}

// WithForward sets the path toward the target.
func (b InitiatorBuilder) WithForward(t protocol.Transport) InitiatorBuilder {
	b.forward = t
	return b
}

// Build creates an initiator with the given name.
func (b InitiatorBuilder) Build(name string) *Initiator {
	i := &Initiator{
		queue: flowcontrol.NewBoundedQueue[pendingTxn](
			name+".Queue", b.queueSize),
		credits:   flowcontrol.NewCreditCounter(name+".Credits", 0),
		snoopResp: flowcontrol.NewSemaphore(name+".CR", 1),
		snoop:     b.snoop,
	}

	i.endpoint = newEndpoint(name, true, b.engine, b.freq,
		b.registry, b.logger, b.delays)
	i.peer = b.forward
	i.onReach = i.reachTimePoint

	i.outstanding[readChannel] = flowcontrol.NewSemaphore(
		name+".OutstandingReads", b.maxReads)
	i.outstanding[writeChannel] = flowcontrol.NewSemaphore(
		name+".OutstandingWrites", b.maxWrites)
	i.reqChannel[readChannel] = flowcontrol.NewSemaphore(name+".AR", 1)
	i.reqChannel[writeChannel] = flowcontrol.NewSemaphore(name+".AW", 1)

	if b.serializeIDs {
		i.idLocks[readChannel] = flowcontrol.NewIDLock(name + ".ReadIDs")
		i.idLocks[writeChannel] = flowcontrol.NewIDLock(name + ".WriteIDs")
	}

	return i
}
