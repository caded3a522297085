package httpserver

import "github.com/prometheus/client_golang/prometheus"

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensorvision_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	playlistFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorvision_playlist_fetches_total",
			Help: "Playlist loads, labelled by access kind",
		},
		[]string{"access"},
	)
)

// RegisterMetrics registers the HTTP metrics with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(requestDuration, playlistFetches)
}
