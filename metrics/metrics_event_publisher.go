package metrics

import (
	"fmt"

	"github.com/0xERR0R/dnstestbed/evt"
	"github.com/0xERR0R/dnstestbed/util"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterEventListeners registers all metric handlers by the event bus
func RegisterEventListeners() {
	registerApplicationEventListeners()
	registerNodeEventListeners()
	registerCaptureEventListeners()
	registerSignerEventListeners()
}

func registerApplicationEventListeners() {
	v := versionNumberGauge()
	RegisterMetric(v)

	subscribe(evt.ApplicationStarted, func(version, buildTime string) {
		v.WithLabelValues(version, buildTime).Set(1)
	})
}

func versionNumberGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnstestbed_build_info",
			Help: "Version number and build info",
		}, []string{"version", "build_time"},
	)
}

func registerNodeEventListeners() {
	running := nodesRunningGauge()

	RegisterMetric(running)

	subscribe(evt.NodeStarted, func(role, _ string) {
		running.WithLabelValues(role).Inc()
	})

	subscribe(evt.NodeStopped, func(role, _ string) {
		running.WithLabelValues(role).Dec()
	})
}

func nodesRunningGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnstestbed_nodes_running",
			Help: "Number of running nodes",
		}, []string{"role"},
	)
}

func registerCaptureEventListeners() {
	captures := capturesCount()

	RegisterMetric(captures)

	subscribe(evt.CaptureRecorded, func(_, direction string) {
		captures.WithLabelValues(direction).Inc()
	})
}

func capturesCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnstestbed_captures_total",
			Help: "Number of DNS messages recorded by observers",
		}, []string{"direction"},
	)
}

func registerSignerEventListeners() {
	signed := zonesSignedCount()

	RegisterMetric(signed)

	subscribe(evt.ZoneSigned, func(_, algorithm string) {
		signed.WithLabelValues(algorithm).Inc()
	})
}

func zonesSignedCount() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnstestbed_zones_signed_total",
			Help: "Number of signed zones",
		}, []string{"algorithm"},
	)
}

func subscribe(topic string, fn interface{}) {
	util.FatalOnError(fmt.Sprintf("can't subscribe topic '%s'", topic), evt.Bus().Subscribe(topic, fn))
}
