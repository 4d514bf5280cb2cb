// Package simulation puts an initiator, a checker and a target on one engine
// and drives them with generated traffic.
package simulation

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/checker"
	"github.com/sarchlab/tlmbus/datarecording"
	"github.com/sarchlab/tlmbus/logging"
	"github.com/sarchlab/tlmbus/monitoring"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/pe"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/hooking"
	"github.com/sarchlab/tlmbus/sim/timing"
	"github.com/sarchlab/tlmbus/traffic"
)

// A Simulation holds one initiator and target pair and everything that
// observes it.
type Simulation struct {
	id     string
	logger *zap.Logger
	engine *timing.SerialEngine

	initiator *pe.Initiator
	target    *pe.Target
	generator *traffic.Generator
	replay    *ordering.ReplayBuffer

	checker     *checker.Checker
	collector   *checker.Collector
	metrics     *monitoring.Metrics
	server      *monitoring.Server
	progress    *monitoring.ProgressBar
	latency     *hooking.LatencyTracer
	steps       *hooking.StepCountTracer
	recorder    datarecording.DataRecorder
	txnRecorder *datarecording.TransactionRecorder
}

// LatencyStat summarizes the latency of one kind of transactions.
type LatencyStat struct {
	Count   uint64
	Average timing.VTimeInSec
	Max     timing.VTimeInSec
}

// Summary is the outcome of a run.
type Summary struct {
	Issued          int
	Completed       int
	Retries         int
	Violations      []checker.Violation
	ReplayAnomalies int
	EndTime         timing.VTimeInSec
	Events          uint64
	PeakReads       int
	PeakWrites      int
	Latency         map[string]LatencyStat
	Steps           map[string]uint64
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() timing.Engine {
	return s.engine
}

// Initiator returns the requesting engine.
func (s *Simulation) Initiator() *pe.Initiator {
	return s.initiator
}

// Target returns the responding engine.
func (s *Simulation) Target() *pe.Target {
	return s.target
}

// Checker returns the checker that watches the pair.
func (s *Simulation) Checker() *checker.Checker {
	return s.checker
}

// Metrics returns the metrics of the simulation.
func (s *Simulation) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Server returns the metrics server, nil if monitoring is off.
func (s *Simulation) Server() *monitoring.Server {
	return s.server
}

// Run starts the engines and runs until all the traffic completed.
func (s *Simulation) Run() error {
	err := s.target.Start()
	if err != nil {
		return err
	}

	err = s.initiator.Start()
	if err != nil {
		return err
	}

	s.generator.Start()

	err = s.engine.Run()
	if err != nil {
		return err
	}

	s.logger.Info("simulation finished",
		logging.SimTime(s.engine.Now()),
		zap.Int("issued", s.generator.Issued()),
		zap.Int("completed", s.generator.Completed()),
		zap.Int("violations", s.checker.NumViolations()))

	if !s.generator.Done() || s.initiator.IsBusy() || s.target.IsBusy() {
		return fmt.Errorf("simulation stalled with %d of %d transactions done",
			s.generator.Completed(), s.generator.Issued())
	}

	return nil
}

// Summary collects the results of the run.
func (s *Simulation) Summary() Summary {
	sum := Summary{
		Issued:     s.generator.Issued(),
		Completed:  s.generator.Completed(),
		Retries:    s.generator.Retries(),
		Violations: s.collector.Violations(),
		EndTime:    s.engine.Now(),
		Events:     s.engine.Handled(),
		PeakReads:  s.initiator.Outstanding(protocol.Read).Peak(),
		PeakWrites: s.initiator.Outstanding(protocol.Write).Peak(),
		Latency:    make(map[string]LatencyStat),
		Steps:      make(map[string]uint64),
	}

	if s.replay != nil {
		sum.ReplayAnomalies = s.replay.Anomalies()
	}

	for _, kind := range s.latency.Kinds() {
		sum.Latency[kind] = LatencyStat{
			Count:   s.latency.TotalCount(kind),
			Average: s.latency.AverageTime(kind),
			Max:     s.latency.MaxTime(kind),
		}
	}

	for _, name := range s.steps.StepNames() {
		sum.Steps[name] = s.steps.StepCount(name)
	}

	return sum
}

// Terminate flushes the recording and stops the server.
func (s *Simulation) Terminate() error {
	var err error

	if s.server != nil {
		s.server.CompleteProgressBar(s.progress)
		err = multierr.Append(err, s.server.Close())
	}

	if s.recorder != nil {
		err = multierr.Append(err, s.recorder.Close())
	}

	return err
}
