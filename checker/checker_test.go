package checker

import (
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tlmbus/protocol"
)

type fixedTime float64

func (t fixedTime) Now() float64 {
	return float64(t)
}

var _ = ginkgo.Describe("Checker", func() {
	var (
		collector *Collector
		c         *Checker
	)

	ginkgo.BeforeEach(func() {
		collector = &Collector{}
		c = NewChecker(fixedTime(5e-9), nil, collector)
	})

	observe := func(p *protocol.Payload, dir Direction, phases ...protocol.Phase) {
		for _, ph := range phases {
			c.Observe(p, ph, dir)
		}
	}

	readRoundTrip := func(p *protocol.Payload) {
		observe(p, Forward, protocol.BeginReq)
		observe(p, Backward, protocol.EndReq)

		for i := 0; i < p.Beats()-1; i++ {
			observe(p, Backward, protocol.BeginPartialResp)
			observe(p, Forward, protocol.EndPartialResp)
		}

		observe(p, Backward, protocol.BeginResp)
		observe(p, Forward, protocol.EndResp)
	}

	ginkgo.It("should accept a legal read burst", func() {
		p := protocol.MakePayloadBuilder().WithBurstLength(4).Build()

		readRoundTrip(p)

		Expect(collector.Violations()).To(BeEmpty())
		Expect(c.Outstanding()).To(Equal(0))
	})

	ginkgo.It("should accept a legal write burst", func() {
		p := protocol.MakePayloadBuilder().
			WithCommand(protocol.Write).
			WithBurstLength(3).
			Build()

		for i := 0; i < 2; i++ {
			observe(p, Forward, protocol.BeginPartialReq)
			observe(p, Backward, protocol.EndPartialReq)
		}

		observe(p, Forward, protocol.BeginReq)
		observe(p, Backward, protocol.EndReq)
		observe(p, Backward, protocol.BeginResp)
		observe(p, Forward, protocol.EndResp)

		Expect(collector.Violations()).To(BeEmpty())
	})

	ginkgo.It("should flag a second begin on a pending lane", func() {
		p1 := protocol.MakePayloadBuilder().WithID(1).Build()
		p2 := protocol.MakePayloadBuilder().WithID(2).Build()

		observe(p1, Forward, protocol.BeginReq)
		observe(p2, Forward, protocol.BeginReq)

		v := collector.Violations()
		Expect(v).To(HaveLen(1))
		Expect(v[0].Lane).To(Equal(RequestLane))
		Expect(v[0].ID).To(Equal(uint32(2)))
		Expect(v[0].Time).To(Equal(5e-9))
	})

	ginkgo.It("should flag an end without a matching begin", func() {
		p := protocol.MakePayloadBuilder().Build()

		observe(p, Backward, protocol.EndReq)

		Expect(collector.Violations()).To(HaveLen(1))
		Expect(collector.Violations()[0].Message).
			To(ContainSubstring("pending begin"))
	})

	ginkgo.It("should flag a response that skips the oldest request of the ID", func() {
		older := protocol.MakePayloadBuilder().WithID(3).Build()
		younger := protocol.MakePayloadBuilder().WithID(3).WithAddress(0x40).
			Build()

		observe(older, Forward, protocol.BeginReq)
		observe(older, Backward, protocol.EndReq)
		observe(younger, Forward, protocol.BeginReq)
		observe(younger, Backward, protocol.EndReq)
		observe(younger, Backward, protocol.BeginResp)

		v := collector.Violations()
		Expect(v).To(HaveLen(1))
		Expect(v[0].Message).To(ContainSubstring("oldest outstanding"))
		Expect(v[0].Address).To(Equal(uint64(0x40)))
	})

	ginkgo.It("should accept responses of different IDs in any order", func() {
		a := protocol.MakePayloadBuilder().WithID(1).Build()
		b := protocol.MakePayloadBuilder().WithID(2).Build()

		observe(a, Forward, protocol.BeginReq)
		observe(a, Backward, protocol.EndReq)
		observe(b, Forward, protocol.BeginReq)
		observe(b, Backward, protocol.EndReq)
		observe(b, Backward, protocol.BeginResp)
		observe(b, Forward, protocol.EndResp)
		observe(a, Backward, protocol.BeginResp)
		observe(a, Forward, protocol.EndResp)

		Expect(collector.Violations()).To(BeEmpty())
	})

	ginkgo.It("should flag a write response before the last beat ended", func() {
		p := protocol.MakePayloadBuilder().
			WithCommand(protocol.Write).
			WithBurstLength(2).
			Build()

		observe(p, Forward, protocol.BeginPartialReq)
		observe(p, Backward, protocol.EndPartialReq)
		observe(p, Backward, protocol.BeginResp)

		v := collector.Violations()
		Expect(v).To(HaveLen(1))
		Expect(v[0].Message).To(ContainSubstring("final write beat"))
	})

	ginkgo.It("should flag partial beats reaching the burst length", func() {
		p := protocol.MakePayloadBuilder().WithBurstLength(2).Build()

		observe(p, Forward, protocol.BeginReq)
		observe(p, Backward, protocol.EndReq)
		observe(p, Backward, protocol.BeginPartialResp)
		observe(p, Forward, protocol.EndPartialResp)
		observe(p, Backward, protocol.BeginPartialResp)

		v := collector.Violations()
		Expect(v).To(HaveLen(1))
		Expect(v[0].Lane).To(Equal(DataLane))
		Expect(v[0].Message).To(ContainSubstring("burst length"))
	})

	ginkgo.It("should flag a phase sent by the wrong side", func() {
		p := protocol.MakePayloadBuilder().Build()

		observe(p, Backward, protocol.BeginReq)

		Expect(collector.Violations()).To(HaveLen(1))
		Expect(collector.Violations()[0].Direction).To(Equal(Backward))
	})

	ginkgo.It("should require an acknowledge for ACE", func() {
		p := protocol.MakePayloadBuilder().WithFamily(protocol.ACE).Build()

		readRoundTrip(p)
		Expect(c.Outstanding()).To(Equal(1))

		observe(p, Forward, protocol.Ack)

		Expect(collector.Violations()).To(BeEmpty())
		Expect(c.Outstanding()).To(Equal(0))
	})

	ginkgo.It("should flag an acknowledge before the response ended", func() {
		p := protocol.MakePayloadBuilder().WithFamily(protocol.ACE).Build()

		observe(p, Forward, protocol.BeginReq)
		observe(p, Backward, protocol.EndReq)
		observe(p, Forward, protocol.Ack)

		Expect(collector.Violations()).To(HaveLen(1))
		Expect(collector.Violations()[0].Lane).To(Equal(AckLane))
	})

	ginkgo.It("should flag an acknowledge of an AXI transaction", func() {
		p := protocol.MakePayloadBuilder().Build()

		observe(p, Forward, protocol.BeginReq)
		observe(p, Backward, protocol.EndReq)
		observe(p, Backward, protocol.BeginResp)
		observe(p, Forward, protocol.EndResp)
		observe(p, Forward, protocol.Ack)

		Expect(collector.Violations()).To(HaveLen(1))
	})

	ginkgo.It("should check snoops in the reverse direction", func() {
		p := protocol.MakePayloadBuilder().
			WithFamily(protocol.ACE).
			AsSnoop().
			Build()

		observe(p, Backward, protocol.BeginReq)
		observe(p, Forward, protocol.EndReq)
		observe(p, Forward, protocol.BeginResp)
		observe(p, Backward, protocol.EndResp)

		Expect(collector.Violations()).To(BeEmpty())
		Expect(c.Outstanding()).To(Equal(0))
	})

	ginkgo.It("should flag data beats on a snoop request", func() {
		p := protocol.MakePayloadBuilder().AsSnoop().WithBurstLength(2).Build()

		observe(p, Backward, protocol.BeginPartialReq)

		Expect(collector.Violations()).To(HaveLen(1))
		Expect(collector.Violations()[0].Channel).To(Equal(SnoopChannel))
	})

	ginkgo.It("should report unknown families without panicking", func() {
		p := protocol.MakePayloadBuilder().
			WithFamily(protocol.FamilyUnknown).
			Build()

		Expect(func() { readRoundTrip(p) }).NotTo(Panic())
		Expect(collector.Violations()).To(HaveLen(1))
		Expect(collector.Violations()[0].Message).
			To(ContainSubstring("unrecognized"))
	})

	ginkgo.It("should ignore credit grants", func() {
		p := protocol.MakePayloadBuilder().WithFamily(protocol.CHICredit).Build()

		observe(p, Backward, protocol.BeginReq)

		Expect(collector.Violations()).To(BeEmpty())
	})
})

var _ = ginkgo.Describe("Reporter", func() {
	ginkgo.It("should receive every violation", func() {
		mockCtrl := gomock.NewController(ginkgo.GinkgoT())
		defer mockCtrl.Finish()

		reporter := NewMockReporter(mockCtrl)
		c := NewChecker(nil, nil, reporter)

		p := protocol.MakePayloadBuilder().WithID(9).Build()

		reporter.EXPECT().Report(gomock.Any()).Do(func(v Violation) {
			Expect(v.ID).To(Equal(uint32(9)))
			Expect(v.Phase).To(Equal(protocol.EndResp))
			Expect(v.Error()).To(ContainSubstring("id=9"))
		})

		c.Observe(p, protocol.EndResp, Forward)

		Expect(c.NumViolations()).To(Equal(1))
	})

	ginkgo.It("should fan out to all reporters", func() {
		a := &Collector{}
		b := &Collector{}
		c := NewChecker(nil, nil, Reporters{a, b})

		c.Observe(protocol.MakePayloadBuilder().Build(), protocol.EndResp, Forward)

		Expect(a.Violations()).To(HaveLen(1))
		Expect(b.Violations()).To(HaveLen(1))
	})
})
