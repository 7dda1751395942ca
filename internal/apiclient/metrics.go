package apiclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwconsole",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of API requests issued",
		},
		[]string{"method", "status"},
	)

	clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uwconsole",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(clientRequestsTotal, clientRequestDuration)
}

// statusLabel keeps offline and transport failures apart from HTTP statuses.
func statusLabel(status int, err error) string {
	switch {
	case err == ErrOffline:
		return "offline"
	case status == 0:
		return "error"
	default:
		return strconv.Itoa(status)
	}
}
