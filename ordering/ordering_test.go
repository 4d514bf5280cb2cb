package ordering

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// sink collects emitted responses together with the tick they left on.
type sink struct {
	tick     int
	accept   bool
	emitted  []*protocol.Payload
	emitTick []int
}

func newSink() *sink {
	return &sink{accept: true}
}

func (s *sink) emit(p *protocol.Payload) bool {
	if !s.accept {
		return false
	}

	s.emitted = append(s.emitted, p)
	s.emitTick = append(s.emitTick, s.tick)

	return true
}

func (s *sink) run(b Buffer, ticks int) {
	for i := 0; i < ticks; i++ {
		s.tick++
		b.Tick()
	}
}

func read(id uint32) *protocol.Payload {
	return protocol.MakePayloadBuilder().
		WithID(id).
		WithAddress(uint64(id) * 0x40).
		Build()
}

func write(id uint32) *protocol.Payload {
	return protocol.MakePayloadBuilder().
		WithCommand(protocol.Write).
		WithID(id).
		WithAddress(uint64(id) * 0x40).
		Build()
}

var _ = Describe("OrderedBuffer", func() {
	var (
		s *sink
		b *OrderedBuffer
	)

	BeforeEach(func() {
		s = newSink()
		b = NewOrderedBuffer(3)
		b.SetEmitter(s.emit)
	})

	It("should not tick when empty", func() {
		Expect(b.Tick()).To(BeFalse())
	})

	It("should hold responses for the minimum latency", func() {
		b.Push(read(1))

		s.run(b, 2)
		Expect(s.emitted).To(BeEmpty())

		s.run(b, 1)
		Expect(s.emitted).To(HaveLen(1))
		Expect(s.emitTick).To(Equal([]int{3}))
		Expect(b.Len()).To(Equal(0))
	})

	It("should emit in arrival order, one per channel per tick", func() {
		p1, p2, p3 := read(5), read(2), read(9)
		w1 := write(7)

		b.Push(p1)
		b.Push(p2)
		b.Push(w1)
		b.Push(p3)

		s.run(b, 6)

		Expect(s.emitted).To(Equal([]*protocol.Payload{p1, w1, p2, p3}))
		Expect(s.emitTick).To(Equal([]int{3, 3, 4, 5}))
	})

	It("should retry when the emitter refuses", func() {
		b.Push(read(1))

		s.accept = false
		s.run(b, 5)
		Expect(s.emitted).To(BeEmpty())
		Expect(b.Len()).To(Equal(1))

		s.accept = true
		s.run(b, 1)
		Expect(s.emitTick).To(Equal([]int{6}))
	})
})

var _ = Describe("RateLimitedBuffer", func() {
	It("should reject a total cap mixed with directional caps", func() {
		_, err := NewRateLimitedBuffer(RateLimitConfig{
			Period:       1e-9,
			ReadPerByte:  1e-10,
			TotalPerByte: 1e-10,
		})

		Expect(err).To(MatchError(ErrConflictingCaps))
	})

	It("should reject a missing clock period", func() {
		_, err := NewRateLimitedBuffer(RateLimitConfig{})

		Expect(err).To(HaveOccurred())
	})

	It("should space responses by their transfer time", func() {
		b, err := NewRateLimitedBuffer(RateLimitConfig{
			Period:      1,
			ReadPerByte: 0.25,
		})
		Expect(err).NotTo(HaveOccurred())

		s := newSink()
		b.SetEmitter(s.emit)

		for i := uint32(0); i < 3; i++ {
			b.Push(read(i))
		}

		s.run(b, 10)

		Expect(s.emitTick).To(Equal([]int{1, 3, 5}))
	})

	It("should keep the long run rate within one tick", func() {
		b, err := NewRateLimitedBuffer(RateLimitConfig{
			Period:       1,
			WritePerByte: 0.3,
		})
		Expect(err).NotTo(HaveOccurred())

		s := newSink()
		b.SetEmitter(s.emit)

		totalBytes := 0

		for i := uint32(0); i < 20; i++ {
			p := write(i)
			totalBytes += p.ByteSize()
			b.Push(p)
		}

		for b.Len() > 0 {
			s.tick++
			b.Tick()
			Expect(b.Residual(protocol.Write)).To(BeNumerically("<", 1))
		}

		elapsed := float64(b.BusyUntil(protocol.Write) -
			b.FirstEmission(protocol.Write))
		Expect(elapsed).To(BeNumerically(">=", float64(totalBytes)*0.3-1))
		Expect(elapsed).To(BeNumerically("<=", float64(totalBytes)*0.3+1e-6))
	})

	It("should share a total cap between directions", func() {
		b, err := NewRateLimitedBuffer(RateLimitConfig{
			Period:       1,
			TotalPerByte: 0.25,
		})
		Expect(err).NotTo(HaveOccurred())

		s := newSink()
		b.SetEmitter(s.emit)

		b.Push(read(1))
		b.Push(write(2))

		s.run(b, 4)

		Expect(s.emitTick).To(Equal([]int{1, 3}))
	})
})

var _ = Describe("ReorderBuffer", func() {
	var s *sink

	BeforeEach(func() {
		s = newSink()
	})

	It("should wait for the maximum latency when the window is not full", func() {
		b := NewReorderBuffer(ReorderConfig{
			MinLatency: 0,
			MaxLatency: 100,
			WindowSize: 2,
		})
		b.SetEmitter(s.emit)

		b.Push(read(1))

		s.run(b, 100)
		Expect(s.emitted).To(BeEmpty())

		s.run(b, 1)
		Expect(s.emitTick).To(Equal([]int{101}))
	})

	It("should count every queued entry of an ID toward the window", func() {
		b := NewReorderBuffer(ReorderConfig{
			MinLatency: 0,
			MaxLatency: 100,
			WindowSize: 2,
		})
		b.SetEmitter(s.emit)

		burst := []*protocol.Payload{read(7), read(7), read(7), read(7)}
		for _, p := range burst {
			b.Push(p)
		}

		s.run(b, 1)
		Expect(s.emitTick).To(Equal([]int{1}))

		s.run(b, 1)
		Expect(s.emitTick).To(Equal([]int{1, 2}))

		s.run(b, 99)
		Expect(s.emitTick).To(Equal([]int{1, 2, 101, 101}))
		Expect(s.emitted).To(Equal(burst))
	})

	It("should evict every overdue entry in the same tick", func() {
		b := NewReorderBuffer(ReorderConfig{
			MaxLatency: 5,
			WindowSize: 100,
			Rand:       rand.New(rand.NewSource(7)),
		})
		b.SetEmitter(s.emit)

		for i := uint32(0); i < 8; i++ {
			b.Push(read(i))
		}

		s.run(b, 6)

		Expect(s.emitted).To(HaveLen(8))
		for _, t := range s.emitTick {
			Expect(t).To(Equal(6))
		}
	})

	It("should drain same-ID entries behind an overdue head", func() {
		b := NewReorderBuffer(ReorderConfig{MaxLatency: 2, WindowSize: 10})
		b.SetEmitter(s.emit)

		first, second := read(3), read(3)
		b.Push(first)
		b.Push(second)

		s.run(b, 3)

		Expect(s.emitted).To(Equal([]*protocol.Payload{first, second}))
	})

	It("should prefer the highest QoS", func() {
		b := NewReorderBuffer(ReorderConfig{
			MaxLatency:    50,
			PrioritizeQoS: true,
		})
		b.SetEmitter(s.emit)

		low := protocol.MakePayloadBuilder().WithID(1).WithQoS(1).Build()
		high := protocol.MakePayloadBuilder().WithID(2).WithQoS(5).Build()
		mid := protocol.MakePayloadBuilder().WithID(3).WithQoS(2).Build()

		b.Push(low)
		b.Push(high)
		b.Push(mid)

		s.run(b, 3)

		Expect(s.emitted).To(Equal([]*protocol.Payload{high, mid, low}))
	})

	It("should keep same-ID order and never exceed the maximum latency", func() {
		r := rand.New(rand.NewSource(42))
		b := NewReorderBuffer(ReorderConfig{
			MinLatency:  2,
			MaxLatency:  12,
			WindowSize:  1,
			WeightByAge: true,
			Rand:        r,
		})
		b.SetEmitter(s.emit)

		pushTick := make(map[*protocol.Payload]int)
		seq := make(map[*protocol.Payload]int)
		pushed := 0

		for s.tick < 400 || b.Len() > 0 {
			if s.tick < 400 && r.Intn(2) == 0 {
				p := read(uint32(r.Intn(4)))
				pushTick[p] = s.tick
				seq[p] = pushed
				pushed++
				b.Push(p)
			}

			s.run(b, 1)
		}

		Expect(s.emitted).To(HaveLen(pushed))

		lastSeq := make(map[uint32]int)
		for i, p := range s.emitted {
			wait := s.emitTick[i] - pushTick[p]
			Expect(wait).To(BeNumerically(">", 2))
			Expect(wait).To(BeNumerically("<=", 13))

			if last, ok := lastSeq[p.ID]; ok {
				Expect(seq[p]).To(BeNumerically(">", last))
			}

			lastSeq[p.ID] = seq[p]
		}
	})
})

var _ = Describe("ReplayBuffer", func() {
	var (
		s *sink
		b *ReplayBuffer
	)

	BeforeEach(func() {
		s = newSink()
		b = NewReplayBuffer([]ReplayEntry{
			{Command: protocol.Write, Address: 0x1000, ID: 3,
				StartCycle: 120, Latency: 5},
		}, nil)
		b.SetEmitter(s.emit)
	})

	It("should replay the recorded latency", func() {
		p := protocol.MakePayloadBuilder().
			WithCommand(protocol.Write).
			WithID(3).
			WithAddress(0x1000).
			Build()

		b.Push(p)
		s.run(b, 6)

		Expect(s.emitTick).To(Equal([]int{5}))
		Expect(b.Anomalies()).To(Equal(0))
		Expect(b.Remaining()).To(Equal(0))
	})

	It("should keep the request order of responses sharing an ID", func() {
		b = NewReplayBuffer([]ReplayEntry{
			{Command: protocol.Read, Address: 0x0, ID: 7, Latency: 10},
			{Command: protocol.Read, Address: 0x40, ID: 7, Latency: 1},
			{Command: protocol.Read, Address: 0x80, ID: 8, Latency: 1},
		}, nil)
		b.SetEmitter(s.emit)

		slow := protocol.MakePayloadBuilder().WithID(7).WithAddress(0x0).Build()
		fast := protocol.MakePayloadBuilder().WithID(7).WithAddress(0x40).Build()
		other := protocol.MakePayloadBuilder().WithID(8).WithAddress(0x80).Build()

		b.Push(slow)
		b.Push(fast)
		b.Push(other)
		s.run(b, 12)

		Expect(s.emitted).To(Equal([]*protocol.Payload{other, slow, fast}))
		Expect(s.emitTick).To(Equal([]int{1, 10, 11}))
		Expect(b.Anomalies()).To(Equal(0))
	})

	It("should count a response without a recorded entry", func() {
		p := protocol.MakePayloadBuilder().
			WithCommand(protocol.Write).
			WithID(3).
			WithAddress(0x2000).
			Build()

		b.Push(p)
		s.run(b, 1)

		Expect(s.emitted).To(ConsistOf(p))
		Expect(b.Anomalies()).To(Equal(1))
		Expect(b.Remaining()).To(Equal(1))
	})

	It("should consume a matched entry", func() {
		p := protocol.MakePayloadBuilder().
			WithCommand(protocol.Write).
			WithID(3).
			WithAddress(0x1000).
			Build()

		b.Push(p)
		b.Push(p)

		Expect(b.Anomalies()).To(Equal(1))
	})
})

var _ = Describe("Component", func() {
	It("should tick the buffer on the clock until it drains", func() {
		engine := timing.NewSerialEngine()
		buf := NewOrderedBuffer(2)

		var times []timing.VTimeInSec

		buf.SetEmitter(func(p *protocol.Payload) bool {
			times = append(times, engine.Now())
			return true
		})

		c := NewComponent("Buffer", engine, 1*timing.GHz, buf)
		c.Push(read(1))
		c.Push(read(2))

		Expect(engine.Run()).To(Succeed())

		Expect(times).To(HaveLen(2))
		Expect(times[0]).To(BeNumerically("~", 2e-9, 1e-12))
		Expect(times[1]).To(BeNumerically("~", 3e-9, 1e-12))
		Expect(c.Len()).To(Equal(0))
	})

	It("should count idle cycles toward the rate limit budget", func() {
		engine := timing.NewSerialEngine()
		freq := 1 * timing.Hz

		buf, err := NewRateLimitedBuffer(RateLimitConfig{
			Period:      freq.Period(),
			ReadPerByte: freq.Period(),
			Clock:       engine,
		})
		Expect(err).NotTo(HaveOccurred())

		var cycles []uint64

		buf.SetEmitter(func(p *protocol.Payload) bool {
			cycles = append(cycles, freq.Cycle(engine.Now()))
			return true
		})

		c := NewComponent("Limiter", engine, freq, buf)

		burst := func(id uint32) *protocol.Payload {
			return protocol.MakePayloadBuilder().
				WithID(id).
				WithBurstLength(8).
				WithBeatBytes(8).
				Build()
		}

		c.Push(burst(1))
		engine.Schedule(timing.NewEventBase(freq.CycleTime(1000),
			timing.HandlerFunc(func(timing.Event) error {
				c.Push(burst(2))
				return nil
			})))

		Expect(engine.Run()).To(Succeed())

		Expect(cycles).To(Equal([]uint64{1, 1001}))
		Expect(buf.BusyUntil(protocol.Read)).To(Equal(uint64(1065)))
	})
})
