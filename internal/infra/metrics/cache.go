package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(directoryCacheLookups) }

// result: hit | miss | error | stale
var directoryCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "directory_cache_lookups_total",
		Help: "Address lookups served by the Redis cache in front of the Postgres directory.",
	},
	[]string{"result"},
)

func IncDirectoryCacheLookup(result string) {
	directoryCacheLookups.WithLabelValues(norm(result)).Inc()
}
