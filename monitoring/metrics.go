// Package monitoring exports the activity of protocol engines as prometheus
// metrics and serves them over HTTP.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/tlmbus/checker"
	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/sim/hooking"
)

const namespace = "tlmbus"

type named interface {
	Name() string
}

// Metrics is a hook that counts transactions and violations. Attach it to
// engines and checkers with AcceptHook.
type Metrics struct {
	registry *prometheus.Registry

	started     *prometheus.CounterVec
	completed   *prometheus.CounterVec
	outstanding *prometheus.GaugeVec
	illegal     *prometheus.CounterVec
	violations  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them to a fresh registry.
func NewMetrics() *Metrics {
	engineKind := []string{"engine", "kind"}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_started_total",
			Help:      "Transactions that entered the request phase.",
		}, engineKind),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_completed_total",
			Help:      "Transactions that reached the finished state.",
		}, engineKind),
		outstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions_outstanding",
			Help:      "Transactions started but not finished.",
		}, []string{"engine"}),
		illegal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "illegal_transitions_total",
			Help:      "Time points rejected by the phase state machine.",
		}, []string{"engine"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Violations reported by protocol checkers.",
		}, []string{"channel", "lane"}),
	}

	m.registry.MustRegister(
		m.started,
		m.completed,
		m.outstanding,
		m.illegal,
		m.violations,
	)

	return m
}

// Registry returns the registry that holds all the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchReplay exports the anomaly count of a replay buffer.
func (m *Metrics) WatchReplay(name string, b *ordering.ReplayBuffer) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "replay_anomalies",
		Help:        "Responses with no matching replay entry.",
		ConstLabels: prometheus.Labels{"buffer": name},
	}, func() float64 {
		return float64(b.Anomalies())
	}))
}

// Func updates the metrics.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hooking.HookPosTaskStart:
		task, ok := ctx.Item.(hooking.TaskStart)
		if !ok {
			return
		}

		m.started.WithLabelValues(task.Engine, task.Kind).Inc()
		m.outstanding.WithLabelValues(task.Engine).Inc()
	case hooking.HookPosTaskEnd:
		h, ok := ctx.Detail.(*fsm.Handle)
		if !ok {
			return
		}

		engine := domainName(ctx)
		m.completed.WithLabelValues(engine, kindOf(h)).Inc()
		m.outstanding.WithLabelValues(engine).Dec()
	case fsm.HookPosIllegalTransition:
		m.illegal.WithLabelValues(domainName(ctx)).Inc()
	case checker.HookPosViolation:
		v, ok := ctx.Item.(checker.Violation)
		if !ok {
			return
		}

		m.violations.WithLabelValues(v.Channel.String(), v.Lane.String()).Inc()
	}
}

func domainName(ctx hooking.HookCtx) string {
	if n, ok := ctx.Domain.(named); ok {
		return n.Name()
	}

	return ""
}

func kindOf(h *fsm.Handle) string {
	if h.IsSnoop {
		return "SNOOP"
	}

	return h.Payload.Command.String()
}
