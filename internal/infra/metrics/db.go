package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(postgresPoolConns) }

var postgresPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "postgres_pool_connections",
		Help: "Connections of the Postgres pool holding addresses, subscribers and service requests.",
	},
	[]string{"state"},
)

// SetPostgresPool publishes one pgxpool.Stat snapshot.
func SetPostgresPool(max, total, idle, acquired int32) {
	postgresPoolConns.WithLabelValues("max").Set(float64(max))
	postgresPoolConns.WithLabelValues("total").Set(float64(total))
	postgresPoolConns.WithLabelValues("idle").Set(float64(idle))
	postgresPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}
