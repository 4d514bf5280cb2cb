package simulation

import (
	"fmt"
	"math/rand"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sarchlab/tlmbus/checker"
	"github.com/sarchlab/tlmbus/config"
	"github.com/sarchlab/tlmbus/datarecording"
	"github.com/sarchlab/tlmbus/monitoring"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/pe"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/hooking"
	"github.com/sarchlab/tlmbus/sim/timing"
	"github.com/sarchlab/tlmbus/traffic"
)

// Builder can be used to build a simulation.
type Builder struct {
	config      config.Config
	logger      *zap.Logger
	monitorAddr string
	recordPath  string
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: config.Default(),
		logger: zap.NewNop(),
	}
}

// WithConfig sets the configuration of the bus and its traffic.
func (b Builder) WithConfig(c config.Config) Builder {
	b.config = c
	b.monitorAddr = c.Metrics.Addr
	b.recordPath = c.Record

	return b
}

// WithLogger sets the logger given to every component.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// WithMonitorAddr sets the address the metrics are served on. An empty
// address disables the server.
func (b Builder) WithMonitorAddr(addr string) Builder {
	b.monitorAddr = addr
	return b
}

// WithOutputFileName sets the SQLite file transactions are recorded to. An
// empty name disables recording.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.recordPath = filename
	return b
}

// Build wires the engines, the checker and the traffic generator.
func (b Builder) Build() (*Simulation, error) {
	c := b.config

	err := c.Validate()
	if err != nil {
		return nil, err
	}

	family, err := config.ParseFamily(c.Family)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:        xid.New().String(),
		logger:    b.logger,
		engine:    timing.NewSerialEngine(),
		collector: &checker.Collector{},
		metrics:   monitoring.NewMetrics(),
	}

	if b.logger.Core().Enabled(zapcore.DebugLevel) {
		s.engine.AcceptHook(timing.NewEventLogger(b.logger.Named("engine")))
	}

	rng := rand.New(rand.NewSource(c.Seed))
	registry := protocol.NewDefaultRegistry()
	freq := c.Freq()

	reporters := checker.Reporters{
		s.collector,
		checker.LogReporter{Logger: b.logger.Named("checker")},
	}

	if b.recordPath != "" {
		s.recorder = datarecording.New(b.recordPath)
		s.txnRecorder = datarecording.NewTransactionRecorder(
			s.recorder, s.engine)
		reporters = append(reporters, s.txnRecorder)
	}

	s.checker = checker.NewChecker(s.engine, registry, reporters)
	s.checker.AcceptHook(s.metrics)
	mon := checker.NewMonitor(s.checker)

	buf, err := b.buildOrdering(s, freq, rng)
	if err != nil {
		return nil, err
	}

	initDelays, err := buildDelays(c.Initiator.Delays, rng)
	if err != nil {
		return nil, err
	}

	targetDelays, err := buildDelays(c.Target.Delays, rng)
	if err != nil {
		return nil, err
	}

	latency := c.Target.Latency
	s.target = pe.MakeTargetBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		WithRegistry(registry).
		WithLogger(b.logger).
		WithDelays(targetDelays).
		WithOperation(func(*protocol.Payload) int { return latency }).
		WithOrdering(buf).
		WithMaxOutstanding(c.Target.Outstanding.Reads,
			c.Target.Outstanding.Writes).
		WithStrictIncomeOrder(c.Target.StrictIncomeOrder).
		WithDataInterleaving(c.Target.DataInterleaving).
		WithCredits(c.Target.Credits).
		WithBackward(mon.Backward()).
		Build("Target")

	s.initiator = pe.MakeInitiatorBuilder().
		WithEngine(s.engine).
		WithFreq(freq).
		WithRegistry(registry).
		WithLogger(b.logger).
		WithDelays(initDelays).
		WithQueueSize(c.Initiator.QueueSize).
		WithMaxOutstanding(c.Initiator.Outstanding.Reads,
			c.Initiator.Outstanding.Writes).
		WithIDSerialization(c.Initiator.IDSerialization).
		WithForward(mon.Forward()).
		Build("Initiator")

	mon.SetTarget(s.target)
	mon.SetInitiator(s.initiator)

	source, count, err := b.buildSource(family, rng)
	if err != nil {
		return nil, err
	}

	s.generator = traffic.NewGenerator("Traffic", s.engine, freq,
		source, s.initiator, b.logger)

	attachHooks(s, count)

	if b.monitorAddr != "" {
		s.server = monitoring.NewServer(s.metrics, b.logger)
		s.server.AddProgressBar(s.progress)
		s.server.RegisterEngine(s.engine)
		s.server.RegisterComponent(s.initiator.Name(), s.initiator)
		s.server.RegisterComponent(s.target.Name(), s.target)
		s.server.RegisterComponent("Traffic", s.generator)

		_, err = s.server.Start(b.monitorAddr)
		if err != nil {
			return nil, fmt.Errorf("starting monitoring server: %w", err)
		}
	}

	return s, nil
}

func attachHooks(s *Simulation, count int) {
	s.latency = hooking.NewLatencyTracer(s.engine, nil)
	s.steps = hooking.NewStepCountTracer(nil)
	s.progress = monitoring.NewProgressBar("Traffic",
		uint64(count))

	s.initiator.AcceptHook(s.latency)
	s.initiator.AcceptHook(s.steps)
	s.initiator.AcceptHook(s.progress)

	for _, e := range []hooking.Hookable{s.initiator, s.target} {
		e.AcceptHook(s.metrics)

		if s.txnRecorder != nil {
			e.AcceptHook(s.txnRecorder)
		}
	}
}

func (b Builder) buildOrdering(
	s *Simulation,
	freq timing.Freq,
	rng *rand.Rand,
) (ordering.Buffer, error) {
	o := b.config.Ordering

	switch o.Policy {
	case config.PolicyOrdered:
		return ordering.NewOrderedBuffer(o.MinLatency), nil
	case config.PolicyRateLimited:
		period := freq.Period()

		return ordering.NewRateLimitedBuffer(ordering.RateLimitConfig{
			MinLatency:   o.MinLatency,
			Period:       period,
			ReadPerByte:  timing.VTimeInSec(o.Bandwidth.Read) * period,
			WritePerByte: timing.VTimeInSec(o.Bandwidth.Write) * period,
			TotalPerByte: timing.VTimeInSec(o.Bandwidth.Total) * period,
			Clock:        s.engine,
		})
	case config.PolicyReorder:
		return ordering.NewReorderBuffer(ordering.ReorderConfig{
			MinLatency:    o.MinLatency,
			MaxLatency:    o.MaxLatency,
			WindowSize:    o.Window,
			PrioritizeQoS: o.PrioritizeQoS,
			WeightByAge:   o.WeightByAge,
			Rand:          rng,
		}), nil
	case config.PolicyReplay:
		entries, err := ordering.LoadReplayFile(o.ReplayFile)
		if err != nil {
			return nil, err
		}

		buf := ordering.NewReplayBuffer(entries, b.logger.Named("replay"))
		s.replay = buf
		s.metrics.WatchReplay("Target.Ordering", buf)

		return buf, nil
	}

	return nil, nil
}

func (b Builder) buildSource(
	family protocol.Family,
	rng *rand.Rand,
) (traffic.Source, int, error) {
	t := b.config.Traffic

	if t.FromReplay {
		entries, err := ordering.LoadReplayFile(b.config.Ordering.ReplayFile)
		if err != nil {
			return nil, 0, err
		}

		return traffic.NewReplaySource(entries, family, t.BeatBytes),
			len(entries), nil
	}

	return traffic.NewRandomSource(traffic.Profile{
		Family:       family,
		Count:        t.Count,
		ReadRatio:    t.ReadRatio,
		MaxBurst:     t.MaxBurst,
		BeatBytes:    t.BeatBytes,
		IDs:          t.IDs,
		MaxQoS:       uint8(t.MaxQoS),
		AddressRange: t.AddressRange,
		Interval:     t.Interval,
	}, rng), t.Count, nil
}

func buildDelays(d config.Delays, rng *rand.Rand) (*pe.Delays, error) {
	delays := pe.NewDelays()

	for name, cycles := range d.Cycles {
		tp, err := config.ParseTimePoint(name)
		if err != nil {
			return nil, err
		}

		delays.Set(tp, cycles)
	}

	if d.Jitter > 0 {
		delays.WithJitter(d.Jitter, rng)
	}

	return delays, nil
}
