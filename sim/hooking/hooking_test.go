package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubTimeTeller struct {
	now float64
}

func (t *stubTimeTeller) Now() float64 {
	return t.now
}

var _ = Describe("HookableBase", func() {
	It("should invoke hooks in registration order", func() {
		h := &HookableBase{}
		order := []int{}

		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))
		h.InvokeHook(HookCtx{})

		Expect(h.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]int{1, 2}))
	})

	It("should reject duplicated hooks", func() {
		h := &HookableBase{}
		tracer := NewStepCountTracer(nil)

		h.AcceptHook(tracer)

		Expect(func() { h.AcceptHook(tracer) }).To(Panic())
	})

	It("should filter positions", func() {
		h := &HookableBase{}
		seen := []string{}
		h.AcceptHook(OnlyAt(HookFunc(func(ctx HookCtx) {
			seen = append(seen, ctx.Pos.Name)
		}), HookPosTaskEnd))

		h.InvokeHook(HookCtx{Pos: HookPosTaskStart})
		h.InvokeHook(HookCtx{Pos: HookPosTaskEnd})

		Expect(seen).To(Equal([]string{"TaskEnd"}))
	})
})

var _ = Describe("LatencyTracer", func() {
	var (
		timeTeller *stubTimeTeller
		t          *LatencyTracer
	)

	BeforeEach(func() {
		timeTeller = &stubTimeTeller{}
		t = NewLatencyTracer(timeTeller, nil)
	})

	It("should track latency by kind", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1", Kind: "read"})
		timeTeller.now = 2
		t.StartTask(TaskStart{ID: "2", Kind: "read"})
		timeTeller.now = 3
		t.EndTask(TaskEnd{ID: "1"})
		timeTeller.now = 6
		t.EndTask(TaskEnd{ID: "2"})

		Expect(t.TotalCount("read")).To(Equal(uint64(2)))
		Expect(t.AverageTime("read")).To(Equal(3.0))
		Expect(t.MaxTime("read")).To(Equal(4.0))
		Expect(t.AverageTime("write")).To(Equal(0.0))
	})

	It("should ignore filtered tasks", func() {
		t = NewLatencyTracer(timeTeller, func(ts TaskStart) bool {
			return ts.Kind == "write"
		})

		t.Func(HookCtx{Pos: HookPosTaskStart, Item: TaskStart{ID: "1", Kind: "read"}})
		t.Func(HookCtx{Pos: HookPosTaskEnd, Item: TaskEnd{ID: "1"}})

		Expect(t.Kinds()).To(BeEmpty())
		Expect(t.Inflight()).To(Equal(0))
	})

	It("should filter by kind", func() {
		t = NewLatencyTracer(timeTeller, KindIs("WRITE", "SNOOP"))

		t.StartTask(TaskStart{ID: "1", Kind: "READ"})
		t.StartTask(TaskStart{ID: "2", Kind: "SNOOP"})
		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "1"})
		t.EndTask(TaskEnd{ID: "2"})

		Expect(t.Kinds()).To(Equal([]string{"SNOOP"}))
		Expect(t.MaxTime("SNOOP")).To(Equal(2.0))
	})
})

var _ = Describe("StepCountTracer", func() {
	It("should count steps of traced tasks", func() {
		t := NewStepCountTracer(nil)

		t.Func(HookCtx{Pos: HookPosTaskStart, Item: TaskStart{ID: "1"}})
		t.Func(HookCtx{Pos: HookPosTaskStep, Item: TaskStep{ID: "1", Phase: "BegReq"}})
		t.Func(HookCtx{Pos: HookPosTaskStep, Item: TaskStep{ID: "1", Phase: "EndReq"}})
		t.Func(HookCtx{Pos: HookPosTaskStep, Item: TaskStep{ID: "1", Phase: "EndReq"}})
		t.Func(HookCtx{Pos: HookPosTaskEnd, Item: TaskEnd{ID: "1"}})
		t.Func(HookCtx{Pos: HookPosTaskStep, Item: TaskStep{ID: "1", Phase: "EndReq"}})

		Expect(t.StepNames()).To(Equal([]string{"BegReq", "EndReq"}))
		Expect(t.StepCount("EndReq")).To(Equal(uint64(2)))
	})
})
