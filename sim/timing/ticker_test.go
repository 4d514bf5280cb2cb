package timing

import (
	"github.com/sarchlab/tlmbus/sim/hooking"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type hookFunc func(pos string)

func (f hookFunc) Func(ctx hooking.HookCtx) {
	f(ctx.Pos.Name)
}

var _ = Describe("Ticking Component", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		ticker   *MockTicker
		tc       *TickingComponent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		ticker = NewMockTicker(mockCtrl)
		tc = NewTickingComponent("TC", engine, 1, ticker)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start ticking when asked to tick later", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10))
		engine.EXPECT().Schedule(gomock.Any()).
			Do(func(e TickEvent) {
				Expect(e.Time()).To(Equal(VTimeInSec(11)))
			})

		tc.TickLater()
	})

	It("should tick when the ticker make progress in a tick", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10))
		engine.EXPECT().Schedule(gomock.Any()).
			Do(func(e TickEvent) {
				Expect(e.Time()).To(Equal(VTimeInSec(11)))
			})
		ticker.EXPECT().Tick().Return(true)

		Expect(tc.Handle(MakeTickEvent(tc, 10))).To(Succeed())
	})

	It("should not tick if there is another tick scheduled in the future", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10)).Times(2)
		engine.EXPECT().Schedule(gomock.Any()).
			Do(func(e TickEvent) {
				Expect(e.Time()).To(Equal(VTimeInSec(11)))
			})

		ticker.EXPECT().Tick().Return(true).Times(2)
		Expect(tc.Handle(MakeTickEvent(tc, 10))).To(Succeed())
		Expect(tc.Handle(MakeTickEvent(tc, 10))).To(Succeed())
	})

	It("should stop ticking if no progress is made", func() {
		ticker.EXPECT().Tick().Return(false)

		Expect(tc.Handle(MakeTickEvent(tc, 10))).To(Succeed())
	})

	It("should run with a real engine until the ticker is idle", func() {
		realEngine := NewSerialEngine()
		count := 0
		idle := &countingTicker{limit: 3, count: &count}
		comp := NewTickingComponent("Counter", realEngine, 1*GHz, idle)

		comp.TickNow()

		Expect(realEngine.Run()).To(Succeed())
		Expect(count).To(Equal(4))
		Expect(comp.Name()).To(Equal("Counter"))
	})
})

type countingTicker struct {
	limit int
	count *int
}

func (t *countingTicker) Tick() bool {
	*t.count++
	return *t.count <= t.limit
}
