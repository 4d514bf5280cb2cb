package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type namedHandler struct{}

func (namedHandler) Name() string       { return "Target" }
func (namedHandler) Handle(Event) error { return nil }

var _ = Describe("EventLogger", func() {
	It("should log each event once", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		engine := NewSerialEngine()
		engine.AcceptHook(NewEventLogger(zap.New(core)))

		engine.Schedule(NewEventBase(1e-9, namedHandler{}))
		engine.Schedule(NewSecondaryEventBase(2e-9, namedHandler{}))
		Expect(engine.Run()).To(Succeed())

		entries := logs.FilterMessage("event").All()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ContextMap()).To(HaveKeyWithValue("handler", "Target"))
		Expect(entries[1].ContextMap()).To(HaveKeyWithValue("secondary", true))
	})
})
