package monitoring

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/tlmbus/checker"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/pe"
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Metrics", func() {
	var (
		m      *Metrics
		engine *timing.SerialEngine
		i      *pe.Initiator
		tg     *pe.Target
	)

	BeforeEach(func() {
		m = NewMetrics()
		engine = timing.NewSerialEngine()
		i = pe.MakeInitiatorBuilder().WithEngine(engine).Build("Initiator")
		tg = pe.MakeTargetBuilder().
			WithEngine(engine).
			WithOperation(func(*protocol.Payload) int { return 2 }).
			Build("Target")
		i.SetForward(tg)
		tg.SetBackward(i)
		i.AcceptHook(m)
		tg.AcceptHook(m)
	})

	It("should count started and completed transactions", func() {
		for n := uint32(0); n < 3; n++ {
			p := protocol.MakePayloadBuilder().
				WithID(n).
				WithAddress(uint64(n) * 64).
				Build()
			Expect(i.Send(p, nil)).To(Succeed())
		}

		Expect(engine.Run()).To(Succeed())

		Expect(testutil.ToFloat64(
			m.started.WithLabelValues("Initiator", "READ"))).To(Equal(3.0))
		Expect(testutil.ToFloat64(
			m.completed.WithLabelValues("Target", "READ"))).To(Equal(3.0))
		Expect(testutil.ToFloat64(
			m.outstanding.WithLabelValues("Initiator"))).To(Equal(0.0))
		Expect(testutil.ToFloat64(
			m.outstanding.WithLabelValues("Target"))).To(Equal(0.0))
	})

	It("should count violations", func() {
		c := checker.NewChecker(nil, nil, nil)
		c.AcceptHook(m)

		c.Observe(protocol.MakePayloadBuilder().WithID(2).Build(),
			protocol.EndReq, checker.Backward)

		Expect(testutil.ToFloat64(m.violations)).To(Equal(1.0))
	})

	It("should export replay anomalies", func() {
		b := ordering.NewReplayBuffer(nil, nil)
		m.WatchReplay("replay", b)

		b.Push(protocol.MakePayloadBuilder().Build())

		Expect(testutil.CollectAndCount(m.Registry(),
			"tlmbus_replay_anomalies")).To(Equal(1))
		n, err := m.Registry().Gather()
		Expect(err).NotTo(HaveOccurred())
		for _, f := range n {
			if f.GetName() == "tlmbus_replay_anomalies" {
				Expect(f.GetMetric()[0].GetGauge().GetValue()).To(Equal(1.0))
			}
		}
	})
})

var _ = Describe("ProgressBar", func() {
	It("should follow transactions", func() {
		engine := timing.NewSerialEngine()
		i := pe.MakeInitiatorBuilder().WithEngine(engine).Build("Initiator")
		tg := pe.MakeTargetBuilder().WithEngine(engine).Build("Target")
		i.SetForward(tg)
		tg.SetBackward(i)

		bar := NewProgressBar("traffic", 2)
		i.AcceptHook(bar)

		Expect(i.Send(protocol.MakePayloadBuilder().WithID(1).Build(), nil)).
			To(Succeed())
		Expect(i.Send(protocol.MakePayloadBuilder().WithID(2).Build(), nil)).
			To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(bar.Finished()).To(Equal(uint64(2)))
		Expect(bar.InProgress()).To(BeZero())
	})
})
