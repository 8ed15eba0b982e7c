package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"reporting-scheduler/pkg/errutil"
)

var Module = fx.Module("metrics", fx.Provide(New))

// Metrics counts per-operation outcomes (success, user error, system error).
// Instrumentation only; callers never branch on it.
type Metrics struct {
	ops *prometheus.CounterVec
}

func New() *Metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "operation_total",
		Help:      "Report operations by name and outcome category.",
	}, []string{"operation", "category"})
	prometheus.DefaultRegisterer.MustRegister(ops)
	return &Metrics{ops: ops}
}

// NewUnregistered returns a Metrics not attached to the default registry, for
// tests that build services by hand.
func NewUnregistered() *Metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reporting",
		Name:      "operation_total",
	}, []string{"operation", "category"})
	return &Metrics{ops: ops}
}

func (m *Metrics) Success(operation string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(operation, "success").Inc()
}

func (m *Metrics) UserError(operation string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(operation, "user_error").Inc()
}

func (m *Metrics) SystemError(operation string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(operation, "system_error").Inc()
}

// Observe classifies err and increments the matching counter.
func (m *Metrics) Observe(operation string, err error) {
	switch {
	case err == nil:
		m.Success(operation)
	case errutil.StatusOf(err).IsUserError():
		m.UserError(operation)
	default:
		m.SystemError(operation)
	}
}
