package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venue_qr"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scanned codes by outcome (accepted, duplicate or a decode error kind).",
		},
		[]string{"result"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Booking store mutations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	persistenceWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_warnings_total",
			Help:      "Mutations kept in memory whose persistence failed.",
		},
	)

	mirrorSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_syncs_total",
			Help:      "Spreadsheet mirror attempts by outcome.",
		},
		[]string{"result"},
	)

	brokerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_events_total",
			Help:      "Events forwarded to the message broker by outcome (published, failed, dropped).",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, scans, storeOps, persistenceWarnings, mirrorSyncs, brokerEvents)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

// IncScan counts one scan outcome.
func IncScan(result string) {
	scans.WithLabelValues(result).Inc()
}

func IncStoreOp(op, result string) {
	storeOps.WithLabelValues(op, result).Inc()
}

func IncPersistenceWarning() {
	persistenceWarnings.Inc()
}

func IncMirror(result string) {
	mirrorSyncs.WithLabelValues(result).Inc()
}

func IncBroker(result string) {
	brokerEvents.WithLabelValues(result).Inc()
}
