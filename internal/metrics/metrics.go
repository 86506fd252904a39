package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "lightsched"
	Subsystem = "client"
)

// ClientMetrics records one sample per gateway call. A nil *ClientMetrics
// is valid and records nothing.
type ClientMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered (a second gateway sharing the registry) are reused.
func New(reg prometheus.Registerer) (*ClientMetrics, error) {
	m := &ClientMetrics{}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "requests_total",
			Help:      "Total number of scheduler requests. Result is one of `success`, `status`, `transport` or `decode`.",
		}, []string{"operation", "code", "result"})

	m.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "request_latency_seconds",
			Help:      "Latency of scheduler requests, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // start from 1ms
		}, []string{"operation"})

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records a finished call. result classifies the outcome.
func (m *ClientMetrics) Observe(operation string, statusCode int, elapsed time.Duration, result string) {
	if m == nil {
		return
	}

	code := "none"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	m.requests.WithLabelValues(operation, code, result).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
