package timing

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/sim/hooking"
)

// EventLogger writes a debug line for every event an engine is about to
// handle.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger creates an EventLogger writing to logger.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func logs the events at HookPosBeforeEvent.
func (l *EventLogger) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(Event)
	if ctx.Pos != HookPosBeforeEvent || !ok {
		return
	}

	l.logger.Debug("event",
		zap.Float64("time", evt.Time()),
		zap.Stringer("type", reflect.TypeOf(evt)),
		zap.String("handler", handlerName(evt.Handler())),
		zap.Bool("secondary", evt.IsSecondary()),
	)
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}

	return reflect.TypeOf(h).String()
}
