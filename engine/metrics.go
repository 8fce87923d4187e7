package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	runsTotal          prometheus.Counter
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	deadlineExceeded   prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
// Collectors already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "algoprotocol",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Protocol runs executed",
		}),
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "algoprotocol",
			Subsystem: "engine",
			Name:      "invocations_total",
			Help:      "Method invocations by outcome",
		}, []string{"family", "method", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "algoprotocol",
			Subsystem: "engine",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of executed method invocations",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"family", "method"}),
		deadlineExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "algoprotocol",
			Subsystem: "engine",
			Name:      "deadline_exceeded_total",
			Help:      "Runs that hit the run deadline",
		}),
	}

	var err error

	m.runsTotal, err = register(reg, m.runsTotal)
	if err != nil {
		return nil, err
	}

	m.invocationsTotal, err = register(reg, m.invocationsTotal)
	if err != nil {
		return nil, err
	}

	m.invocationDuration, err = register(reg, m.invocationDuration)
	if err != nil {
		return nil, err
	}

	m.deadlineExceeded, err = register(reg, m.deadlineExceeded)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, fmt.Errorf("engine: register metrics: %w", err)
}

func (m *Metrics) observeRun(deadline bool) {
	if m == nil {
		return
	}

	m.runsTotal.Inc()

	if deadline {
		m.deadlineExceeded.Inc()
	}
}

func (m *Metrics) observeRecord(r *Record, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.invocationsTotal.WithLabelValues(string(r.Family), r.Method, string(r.Status)).Inc()

	if r.Status != StatusNotExecuted {
		m.invocationDuration.WithLabelValues(string(r.Family), r.Method).Observe(elapsed.Seconds())
	}
}
