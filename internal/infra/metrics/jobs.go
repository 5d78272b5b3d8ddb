package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(broadcastTasksTotal) }

var broadcastTasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "broadcast_tasks_total",
		Help: "Newsletter broadcast tasks by status (queued, dropped, delivered, undelivered).",
	},
	[]string{"status"},
)

func IncBroadcastTask(status string) {
	broadcastTasksTotal.WithLabelValues(norm(status)).Inc()
}
