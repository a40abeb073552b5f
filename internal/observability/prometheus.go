package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver adapts the counter half of Observer onto a
// prometheus.CounterVec registered per metric name, grounded in the
// prometheus client stack present elsewhere in the retrieved corpus
// (go-mcast depends on prometheus/common; cuemby-warren on
// prometheus/client_golang directly).
type PrometheusObserver struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
}

// NewPrometheusObserver creates an observer backed by its own registry
// (callers wanting the default global registry can pass
// prometheus.DefaultRegisterer's underlying *prometheus.Registry instead).
func NewPrometheusObserver(registry *prometheus.Registry) *PrometheusObserver {
	return &PrometheusObserver{
		registry: registry,
		counters: make(map[string]*prometheus.CounterVec),
	}
}

// Warn and Info are no-ops on PrometheusObserver; pair it with
// ZerologObserver inside a Multi when both logs and counters are wanted.
func (p *PrometheusObserver) Warn(string, map[string]any) {}
func (p *PrometheusObserver) Info(string, map[string]any) {}

// CounterAdd is called from the client/server receive loop and background
// goroutines concurrently, so the lazily-created vector map needs its own
// lock distinct from prometheus's own internal metric locking.
func (p *PrometheusObserver) CounterAdd(name string, delta float64, labels map[string]string) {
	labelNames := make([]string, 0, len(labels))
	for k := range labels {
		labelNames = append(labelNames, k)
	}

	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_" + name,
			Help: "broadcast overlay counter: " + name,
		}, labelNames)
		p.registry.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.With(labels).Add(delta)
}

var _ Observer = (*PrometheusObserver)(nil)
