package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//nolint:gochecknoglobals
var (
	reg      = prometheus.NewRegistry()
	initOnce sync.Once
)

// RegisterMetric registers prometheus collector
func RegisterMetric(c prometheus.Collector) {
	_ = reg.Register(c)
}

// StartCollection registers the runtime collectors and the event listeners. Subsequent calls have no effect.
func StartCollection() {
	initOnce.Do(func() {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())

		RegisterEventListeners()
	})
}

// Handler returns the HTTP handler serving the registry in the prometheus exposition format
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// Gatherer exposes the registry
func Gatherer() prometheus.Gatherer {
	return reg
}
