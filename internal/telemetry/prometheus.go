package telemetry

import (
	"net/http"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

// PrometheusSink exposes every counter/gauge update through a pull-style
// Prometheus registry. Each distinct metric name becomes a CounterVec or
// GaugeVec on first use, keyed by the label names of that first update —
// the core only ever reports a metric under one consistent label schema.
type PrometheusSink struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewPrometheusSink creates a sink with its own registry, so the caller
// controls exactly what gets exposed on /metrics.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

// Handler returns the HTTP handler that serves this sink's registry in the
// Prometheus text exposition format.
func (p *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusSink) IncrCounter(name string, delta uint64, labels Labels) {
	keys, values := splitLabels(labels)
	p.mu.Lock()
	cv, ok := p.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: sanitizeMetricName(name),
			Help: "loadgen counter " + name,
		}, keys)
		p.registry.MustRegister(cv)
		p.counters[name] = cv
	}
	p.mu.Unlock()

	cv.WithLabelValues(values...).Add(float64(delta))
}

func (p *PrometheusSink) SetGauge(name string, value float64, labels Labels) {
	keys, values := splitLabels(labels)
	p.mu.Lock()
	gv, ok := p.gauges[name]
	if !ok {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: sanitizeMetricName(name),
			Help: "loadgen gauge " + name,
		}, keys)
		p.registry.MustRegister(gv)
		p.gauges[name] = gv
	}
	p.mu.Unlock()

	gv.WithLabelValues(values...).Set(value)
}

func splitLabels(labels Labels) (keys, values []string) {
	keys = make([]string, len(labels))
	values = make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
		values[i] = l.Value
	}
	return keys, values
}

func sanitizeMetricName(name string) string {
	return invalidMetricChars.ReplaceAllString(name, "_")
}
