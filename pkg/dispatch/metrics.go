package dispatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the dispatcher's Prometheus collectors.
type Metrics struct {
	generated *prometheus.CounterVec
	attempts  prometheus.Histogram
	delivered *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer means prometheus.DefaultRegisterer. Collectors that are
// already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otptoken_generated_total",
			Help: "Tokens generated, by result.",
		}, []string{"result"}), // result: ok|short|error
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "otptoken_generation_attempts",
			Help:    "Derivations spent per generated token.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otptoken_delivery_total",
			Help: "Token deliveries, by channel and result.",
		}, []string{"channel", "result"}),
	}

	var err error
	m.generated, err = register(reg, m.generated)
	if err != nil {
		return nil, err
	}
	m.attempts, err = register(reg, m.attempts)
	if err != nil {
		return nil, err
	}
	m.delivered, err = register(reg, m.delivered)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeGenerated(result string, attempts int) {
	if m == nil {
		return
	}
	m.generated.WithLabelValues(result).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
}

func (m *Metrics) observeDelivery(channel, result string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(channel, result).Inc()
}
