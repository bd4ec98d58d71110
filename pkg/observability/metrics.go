// Package observability exposes the Prometheus metrics of the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	treeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fsystem",
			Name:      "tree_operations_total",
			Help:      "Total number of tree operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	eventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fsystem",
			Name:      "events_delivered_total",
			Help:      "Total number of events delivered to connections",
		},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fsystem",
			Name:      "events_dropped_total",
			Help:      "Total number of events that could not be delivered",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fsystem",
			Name:      "active_connections",
			Help:      "Number of live WebSocket connections",
		},
	)
)

// RecordTreeOperation records the outcome of one tree operation.
func RecordTreeOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	treeOperations.WithLabelValues(operation, status).Inc()
}

// RecordDelivery records fan-out delivery counts for one published event.
func RecordDelivery(delivered, dropped int) {
	if delivered > 0 {
		eventsDelivered.Add(float64(delivered))
	}
	if dropped > 0 {
		eventsDropped.Add(float64(dropped))
	}
}

// ConnectionOpened increments the live connection gauge.
func ConnectionOpened() {
	activeConnections.Inc()
}

// ConnectionClosed decrements the live connection gauge.
func ConnectionClosed() {
	activeConnections.Dec()
}
