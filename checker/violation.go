// Package checker verifies that the phases exchanged between an initiator and
// a target follow the split-phase protocol rules.
package checker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// Channel is the group of lanes a transaction uses.
type Channel int

// The channels observed by the checker.
const (
	ReadChannel Channel = iota
	WriteChannel
	SnoopChannel
	numChannels
)

func (c Channel) String() string {
	switch c {
	case ReadChannel:
		return "READ"
	case WriteChannel:
		return "WRITE"
	case SnoopChannel:
		return "SNOOP"
	}

	return fmt.Sprintf("Channel(%d)", int(c))
}

// Lane is a handshake lane of a channel.
type Lane int

// The lanes of a channel. Partial phases of either direction travel on the
// data lane.
const (
	RequestLane Lane = iota
	DataLane
	ResponseLane
	AckLane
	numLanes
)

func (l Lane) String() string {
	switch l {
	case RequestLane:
		return "REQUEST"
	case DataLane:
		return "DATA"
	case ResponseLane:
		return "RESPONSE"
	case AckLane:
		return "ACK"
	}

	return fmt.Sprintf("Lane(%d)", int(l))
}

// Direction tells which way a phase travels.
type Direction int

// Forward phases go from the initiator to the target.
const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "FORWARD"
	}

	return "BACKWARD"
}

// A Violation is a broken protocol rule.
type Violation struct {
	Time      timing.VTimeInSec
	ID        uint32
	Command   protocol.Command
	Address   uint64
	Channel   Channel
	Lane      Lane
	Phase     protocol.Phase
	Direction Direction
	Message   string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%.10f: %s %s %s id=%d addr=0x%x: %s",
		v.Time, v.Channel, v.Lane, v.Phase, v.ID, v.Address, v.Message)
}

// A Reporter receives the violations found by a checker.
type Reporter interface {
	Report(v Violation)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(v Violation)

// Report calls f.
func (f ReporterFunc) Report(v Violation) {
	f(v)
}

// Reporters forwards every violation to all of its members.
type Reporters []Reporter

// Report calls Report of every member.
func (rs Reporters) Report(v Violation) {
	for _, r := range rs {
		r.Report(v)
	}
}

// Collector is a Reporter that keeps all the violations.
type Collector struct {
	lock       sync.Mutex
	violations []Violation
}

// Report stores the violation.
func (c *Collector) Report(v Violation) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.violations = append(c.violations, v)
}

// Violations returns the stored violations.
func (c *Collector) Violations() []Violation {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]Violation, len(c.violations))
	copy(out, c.violations)

	return out
}

// LogReporter writes every violation to a logger.
type LogReporter struct {
	Logger *zap.Logger
}

// Report logs the violation as an error.
func (r LogReporter) Report(v Violation) {
	r.Logger.Error("protocol violation",
		zap.Float64("time", v.Time),
		zap.Stringer("channel", v.Channel),
		zap.Stringer("lane", v.Lane),
		zap.Stringer("phase", v.Phase),
		zap.Uint32("id", v.ID),
		zap.Uint64("address", v.Address),
		zap.String("message", v.Message),
	)
}
