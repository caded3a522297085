package backup

import "github.com/prometheus/client_golang/prometheus"

var (
	snapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_backup_snapshots_total",
		Help: "Completed backup runs, including uploads when configured",
	})
	snapshotFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_backup_snapshot_failures_total",
		Help: "Backup runs that failed to snapshot, upload, or prune",
	})
)

// RegisterMetrics registers the backup counters with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(snapshotsTotal, snapshotFailuresTotal)
}
