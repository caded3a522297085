package model

import "time"

// TelemetryWriter provides append-oriented write operations for telemetry.
type TelemetryWriter interface {
	InsertTelemetryBatch(points []*TelemetryPoint) error
}

// TelemetryQuerier provides read-only queries on telemetry data.
type TelemetryQuerier interface {
	TelemetryCount() (int64, error)
	DeviceCount() (int64, error)
	VariablesForDevice(deviceID string) ([]VariableStat, error)
	SeriesForDevice(deviceID, variable string, from, to time.Time, limit int) ([]SeriesPoint, error)
}

// OpsAPI is the contract exposed over the socket RPC for operational
// tooling (sensorvisionctl). It mixes a few reads with the two maintenance
// actions operators reach for on a box.
type OpsAPI interface {
	TelemetryCount() (int64, error)
	DeviceCount() (int64, error)
	ListDevices(limit int) ([]Device, error)
	ListTrash() ([]TrashEntry, error)
	RestoreTrash(id int64) error
	RunRetentionNow() (RetentionExecution, error)
	RecentNotifications(limit int) ([]Notification, error)
}
