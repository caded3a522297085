package model

import "time"

// TelemetryPoint represents one numeric reading from a device variable.
// It is the unit of ingestion, journaling, and storage.
type TelemetryPoint struct {
	DeviceID  string            `json:"deviceId"`
	Variable  string            `json:"variable"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Source    string            `json:"source,omitempty"` // "tcp", "http", "otlp", "import"
}

// SeriesPoint is one (timestamp, value) pair of a variable series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// VariableStat summarizes one variable reported by a device.
type VariableStat struct {
	Variable  string    `json:"variable"`
	Count     int64     `json:"count"`
	LastValue float64   `json:"lastValue"`
	LastSeen  time.Time `json:"lastSeen"`
}
