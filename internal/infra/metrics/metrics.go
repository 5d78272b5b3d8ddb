package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		notificationsTotal,
		directoryOperationsTotal,
		serviceRequestsTotal,
	)
}

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification attempts by result (delivered, no_address, invalid_address, channel_error).",
		},
		[]string{"result"},
	)

	directoryOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_operations_total",
			Help: "Address directory operations by backend and operation.",
		},
		[]string{"backend", "op"}, // op: record, lookup_hit, lookup_miss, evict, error
	)

	serviceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_requests_total",
			Help: "Mini App service requests by service and status.",
		},
		[]string{"service", "status"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncNotification(result string) {
	notificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncDirectoryOp(backend, op string) {
	directoryOperationsTotal.WithLabelValues(norm(backend), norm(op)).Inc()
}

func IncServiceRequest(service, status string) {
	serviceRequestsTotal.WithLabelValues(norm(service), norm(status)).Inc()
}
