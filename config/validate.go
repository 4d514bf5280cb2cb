package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/protocol"
)

// ParseFamily finds a built-in family by its name.
func ParseFamily(name string) (protocol.Family, error) {
	r := protocol.NewDefaultRegistry()
	for _, f := range r.Families() {
		if f.String() == name {
			return f, nil
		}
	}

	return protocol.FamilyUnknown, fmt.Errorf("unknown protocol family %q", name)
}

// ParseTimePoint finds a time point by its name.
func ParseTimePoint(name string) (fsm.TimePoint, error) {
	for tp := fsm.RequestPhaseBeg; tp < fsm.NumTimePoints; tp++ {
		if tp.String() == name {
			return tp, nil
		}
	}

	return fsm.TimePointUnknown, fmt.Errorf("unknown time point %q", name)
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	var err error

	if c.FreqMHz <= 0 {
		err = multierr.Append(err, errors.New("freq_mhz must be positive"))
	}

	family, famErr := ParseFamily(c.Family)
	err = multierr.Append(err, famErr)

	_, lvlErr := zapcore.ParseLevel(c.Log.Level)
	if lvlErr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lvlErr))
	}

	err = multierr.Append(err, c.Initiator.validate())
	err = multierr.Append(err, c.Target.validate())
	err = multierr.Append(err, c.Ordering.validate())
	err = multierr.Append(err, c.Traffic.validate())

	if family == protocol.CHICredit || family == protocol.CHISnoop {
		err = multierr.Append(err, fmt.Errorf(
			"family %s cannot carry requests", c.Family))
	}

	if info, ok := protocol.NewDefaultRegistry().Lookup(family); ok {
		if info.CreditBased && c.Target.Credits <= 0 {
			err = multierr.Append(err, fmt.Errorf(
				"target.credits must be positive for %s", c.Family))
		}
	}

	if c.Traffic.FromReplay && c.Ordering.ReplayFile == "" {
		err = multierr.Append(err, errors.New(
			"traffic.from_replay needs ordering.replay_file"))
	}

	return err
}

func (o Outstanding) validate(side string) error {
	var err error

	if o.Reads <= 0 {
		err = multierr.Append(err,
			fmt.Errorf("%s.outstanding.reads must be positive", side))
	}

	if o.Writes <= 0 {
		err = multierr.Append(err,
			fmt.Errorf("%s.outstanding.writes must be positive", side))
	}

	return err
}

func (d Delays) validate(side string) error {
	var err error

	for name, cycles := range d.Cycles {
		if _, tpErr := ParseTimePoint(name); tpErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s.delays: %w", side, tpErr))
		}

		if cycles < 0 {
			err = multierr.Append(err,
				fmt.Errorf("%s.delays.%s must not be negative", side, name))
		}
	}

	if d.Jitter < 0 {
		err = multierr.Append(err,
			fmt.Errorf("%s.delays.jitter must not be negative", side))
	}

	return err
}

func (i Initiator) validate() error {
	var err error

	if i.QueueSize <= 0 {
		err = multierr.Append(err,
			errors.New("initiator.queue_size must be positive"))
	}

	err = multierr.Append(err, i.Outstanding.validate("initiator"))
	err = multierr.Append(err, i.Delays.validate("initiator"))

	return err
}

func (t Target) validate() error {
	var err error

	if t.Latency < 0 {
		err = multierr.Append(err,
			errors.New("target.latency must not be negative"))
	}

	if t.Credits < 0 {
		err = multierr.Append(err,
			errors.New("target.credits must not be negative"))
	}

	err = multierr.Append(err, t.Outstanding.validate("target"))
	err = multierr.Append(err, t.Delays.validate("target"))

	return err
}

func (o Ordering) validate() error {
	var err error

	switch o.Policy {
	case PolicyDirect, PolicyOrdered:
	case PolicyRateLimited:
		b := o.Bandwidth
		if b.Total > 0 && (b.Read > 0 || b.Write > 0) {
			err = multierr.Append(err,
				fmt.Errorf("ordering.bandwidth: %w", ordering.ErrConflictingCaps))
		}

		if b.Read < 0 || b.Write < 0 || b.Total < 0 {
			err = multierr.Append(err,
				errors.New("ordering.bandwidth caps must not be negative"))
		}
	case PolicyReorder:
		if o.MaxLatency < o.MinLatency {
			err = multierr.Append(err, errors.New(
				"ordering.max_latency must not be below min_latency"))
		}

		if o.Window <= 0 {
			err = multierr.Append(err,
				errors.New("ordering.window must be positive"))
		}
	case PolicyReplay:
		if o.ReplayFile == "" {
			err = multierr.Append(err, errors.New(
				"ordering.replay_file is required by the replay policy"))
		}
	default:
		err = multierr.Append(err,
			fmt.Errorf("unknown ordering policy %q", o.Policy))
	}

	if o.MinLatency < 0 {
		err = multierr.Append(err,
			errors.New("ordering.min_latency must not be negative"))
	}

	return err
}

func (t Traffic) validate() error {
	var err error

	if t.Count < 0 {
		err = multierr.Append(err,
			errors.New("traffic.count must not be negative"))
	}

	if t.ReadRatio < 0 || t.ReadRatio > 1 {
		err = multierr.Append(err,
			errors.New("traffic.read_ratio must be within [0, 1]"))
	}

	if t.MaxBurst < 1 || t.MaxBurst > 256 {
		err = multierr.Append(err,
			errors.New("traffic.max_burst must be within [1, 256]"))
	}

	if t.BeatBytes <= 0 || t.BeatBytes&(t.BeatBytes-1) != 0 {
		err = multierr.Append(err,
			errors.New("traffic.beat_bytes must be a power of two"))
	}

	if t.IDs <= 0 {
		err = multierr.Append(err, errors.New("traffic.ids must be positive"))
	}

	if t.MaxQoS < 0 || t.MaxQoS > 15 {
		err = multierr.Append(err,
			errors.New("traffic.max_qos must be within [0, 15]"))
	}

	if t.AddressRange == 0 {
		err = multierr.Append(err,
			errors.New("traffic.address_range must be positive"))
	}

	if t.Interval < 0 {
		err = multierr.Append(err,
			errors.New("traffic.interval must not be negative"))
	}

	return err
}
