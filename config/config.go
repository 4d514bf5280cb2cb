// Package config loads the description of a bus simulation from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tlmbus/sim/timing"
)

// Ordering policies of the target.
const (
	PolicyDirect      = "direct"
	PolicyOrdered     = "ordered"
	PolicyRateLimited = "rate_limited"
	PolicyReorder     = "reorder"
	PolicyReplay      = "replay"
)

// Config describes one initiator and target pair and the traffic between
// them.
type Config struct {
	FreqMHz   float64   `yaml:"freq_mhz"`
	Family    string    `yaml:"family"`
	Seed      int64     `yaml:"seed"`
	Initiator Initiator `yaml:"initiator"`
	Target    Target    `yaml:"target"`
	Ordering  Ordering  `yaml:"ordering"`
	Traffic   Traffic   `yaml:"traffic"`
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`

	// Record is the path of the SQLite file transactions are written to.
	// Nothing is recorded when empty.
	Record string `yaml:"record"`
}

// Outstanding limits the transactions in flight per command.
type Outstanding struct {
	Reads  int `yaml:"reads"`
	Writes int `yaml:"writes"`
}

// Delays are per time point cycle counts, keyed by time point name such as
// EndReq or BegResp, plus a random jitter bound.
type Delays struct {
	Cycles map[string]int `yaml:"cycles"`
	Jitter int            `yaml:"jitter"`
}

// Initiator configures the requesting side.
type Initiator struct {
	QueueSize       int         `yaml:"queue_size"`
	Outstanding     Outstanding `yaml:"outstanding"`
	IDSerialization bool        `yaml:"id_serialization"`
	Delays          Delays      `yaml:"delays"`
}

// Target configures the responding side.
type Target struct {
	// Latency is the number of cycles the operation takes.
	Latency           int         `yaml:"latency"`
	Outstanding       Outstanding `yaml:"outstanding"`
	StrictIncomeOrder bool        `yaml:"strict_income_order"`
	DataInterleaving  bool        `yaml:"data_interleaving"`
	Credits           int         `yaml:"credits"`
	Delays            Delays      `yaml:"delays"`
}

// Bandwidth caps in cycles per byte. Zero means no cap.
type Bandwidth struct {
	Read  float64 `yaml:"read_cycles_per_byte"`
	Write float64 `yaml:"write_cycles_per_byte"`
	Total float64 `yaml:"total_cycles_per_byte"`
}

// Ordering selects how the target orders its responses.
type Ordering struct {
	Policy        string    `yaml:"policy"`
	MinLatency    int       `yaml:"min_latency"`
	MaxLatency    int       `yaml:"max_latency"`
	Window        int       `yaml:"window"`
	PrioritizeQoS bool      `yaml:"prioritize_qos"`
	WeightByAge   bool      `yaml:"weight_by_age"`
	Bandwidth     Bandwidth `yaml:"bandwidth"`
	ReplayFile    string    `yaml:"replay_file"`
}

// Traffic describes the generated transactions.
type Traffic struct {
	Count        int     `yaml:"count"`
	ReadRatio    float64 `yaml:"read_ratio"`
	MaxBurst     int     `yaml:"max_burst"`
	BeatBytes    int     `yaml:"beat_bytes"`
	IDs          int     `yaml:"ids"`
	MaxQoS       int     `yaml:"max_qos"`
	AddressRange uint64  `yaml:"address_range"`
	Interval     int     `yaml:"interval"`

	// FromReplay issues the entries of the replay file at their start cycle
	// instead of random transactions.
	FromReplay bool `yaml:"from_replay"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Metrics configures the metrics server. It is off when Addr is empty.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used for everything a file leaves out.
func Default() Config {
	return Config{
		FreqMHz: 1000,
		Family:  "AXI4",
		Seed:    1,
		Initiator: Initiator{
			QueueSize:   64,
			Outstanding: Outstanding{Reads: 16, Writes: 16},
		},
		Target: Target{
			Latency:     4,
			Outstanding: Outstanding{Reads: 16, Writes: 16},
			Credits:     4,
		},
		Ordering: Ordering{
			Policy:     PolicyDirect,
			MaxLatency: 100,
			Window:     2,
		},
		Traffic: Traffic{
			Count:        100,
			ReadRatio:    0.5,
			MaxBurst:     4,
			BeatBytes:    8,
			IDs:          4,
			AddressRange: 1 << 20,
			Interval:     1,
		},
		Log: Log{Level: "info"},
	}
}

// Freq returns the clock of both engines.
func (c Config) Freq() timing.Freq {
	return timing.Freq(c.FreqMHz) * timing.MHz
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are errors.
func Parse(r io.Reader) (Config, error) {
	c := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("decoding config: %w", err)
	}

	return c, c.Validate()
}

// Load reads and parses a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	return Parse(bytes.NewReader(data))
}
