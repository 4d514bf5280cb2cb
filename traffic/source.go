// Package traffic feeds initiators with transactions, either random ones or
// the ones of a replay file.
package traffic

import (
	"math/rand"
	"sort"

	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/protocol"
)

// A Source produces transactions together with the cycle they are due at.
// Cycles never decrease.
type Source interface {
	Next() (p *protocol.Payload, cycle uint64, ok bool)
}

// Profile describes random traffic.
type Profile struct {
	Family       protocol.Family
	Count        int
	ReadRatio    float64
	MaxBurst     int
	BeatBytes    int
	IDs          int
	MaxQoS       uint8
	AddressRange uint64

	// Interval is the number of cycles between two transactions.
	Interval int
}

// RandomSource generates transactions following a profile.
type RandomSource struct {
	profile Profile
	rand    *rand.Rand
	count   int
}

// NewRandomSource creates a RandomSource. A fixed seed is used if r is nil.
func NewRandomSource(p Profile, r *rand.Rand) *RandomSource {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	if p.MaxBurst < 1 {
		p.MaxBurst = 1
	}

	if p.IDs < 1 {
		p.IDs = 1
	}

	if p.BeatBytes < 1 {
		p.BeatBytes = 8
	}

	if p.Family == protocol.FamilyUnknown {
		p.Family = protocol.AXI4
	}

	return &RandomSource{profile: p, rand: r}
}

// Next returns the next random transaction.
func (s *RandomSource) Next() (*protocol.Payload, uint64, bool) {
	if s.count >= s.profile.Count {
		return nil, 0, false
	}

	p := s.profile
	cycle := uint64(s.count * p.Interval)
	s.count++

	cmd := protocol.Write
	if s.rand.Float64() < p.ReadRatio {
		cmd = protocol.Read
	}

	slots := int64(p.AddressRange / uint64(p.BeatBytes))
	if slots < 1 {
		slots = 1
	}

	b := protocol.MakePayloadBuilder().
		WithFamily(p.Family).
		WithCommand(cmd).
		WithID(uint32(s.rand.Intn(p.IDs))).
		WithAddress(uint64(s.rand.Int63n(slots)) * uint64(p.BeatBytes)).
		WithBurstLength(1 + s.rand.Intn(p.MaxBurst)).
		WithBeatBytes(p.BeatBytes).
		WithQoS(uint8(s.rand.Intn(int(p.MaxQoS) + 1)))

	return b.Build(), cycle, true
}

// ReplaySource issues the entries of a replay file at their start cycle.
type ReplaySource struct {
	entries   []ordering.ReplayEntry
	family    protocol.Family
	beatBytes int
	next      int
}

// NewReplaySource creates a ReplaySource. Entries are issued in start cycle
// order; entries of the same cycle keep their file order.
func NewReplaySource(
	entries []ordering.ReplayEntry,
	family protocol.Family,
	beatBytes int,
) *ReplaySource {
	if beatBytes < 1 {
		beatBytes = 8
	}

	sorted := make([]ordering.ReplayEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartCycle < sorted[j].StartCycle
	})

	return &ReplaySource{
		entries:   sorted,
		family:    family,
		beatBytes: beatBytes,
	}
}

// Next returns the next replayed transaction.
func (s *ReplaySource) Next() (*protocol.Payload, uint64, bool) {
	if s.next >= len(s.entries) {
		return nil, 0, false
	}

	e := s.entries[s.next]
	s.next++

	p := protocol.MakePayloadBuilder().
		WithFamily(s.family).
		WithCommand(e.Command).
		WithID(e.ID).
		WithAddress(e.Address).
		WithBeatBytes(s.beatBytes).
		Build()

	return p, e.StartCycle, true
}
