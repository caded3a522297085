package layout

import "github.com/prometheus/client_golang/prometheus"

var (
	savesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_layout_saves_total",
		Help: "Debounced widget position writes that reached the store",
	})
	saveFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_layout_save_failures_total",
		Help: "Debounced widget position writes that failed",
	})
)

// RegisterMetrics registers the layout counters with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(savesTotal, saveFailuresTotal)
}
