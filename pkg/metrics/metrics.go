// Package metrics exposes Prometheus collectors for the realtime client.
// Collectors are always updated; call Register to export them through the
// default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	Connects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Name:      "connects_total",
		Help:      "Total number of sessions validated by the broker",
	})

	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Name:      "reconnects_total",
		Help:      "Total number of reconnect attempts",
	})

	FramesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Subsystem: "transport",
		Name:      "frames_sent_total",
		Help:      "Total number of frames written to the broker",
	})

	FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Subsystem: "transport",
		Name:      "frames_received_total",
		Help:      "Total number of frames read from the broker",
	})

	MessagesDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Name:      "messages_dispatched_total",
		Help:      "Total number of messages delivered to subscriber callbacks",
	})

	DuplicatesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Name:      "duplicates_suppressed_total",
		Help:      "Total number of redelivered messages dropped by the dedup ring",
	})

	DiscoveryRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verboo_realtime",
		Subsystem: "discovery",
		Name:      "requests_total",
		Help:      "Total balancer requests by result",
	}, []string{"result"})

	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "verboo_realtime",
		Name:      "subscriptions",
		Help:      "Number of channels currently subscribed",
	})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Connects)
		prometheus.MustRegister(Reconnects)
		prometheus.MustRegister(FramesSent)
		prometheus.MustRegister(FramesReceived)
		prometheus.MustRegister(MessagesDispatched)
		prometheus.MustRegister(DuplicatesSuppressed)
		prometheus.MustRegister(DiscoveryRequests)
		prometheus.MustRegister(Subscriptions)
	})
}
