package model

// IngestEnvelope carries one raw telemetry line with source metadata.
// It is the transport contract between input sources and processing.
type IngestEnvelope struct {
	Source string
	Line   string
}

// TelemetryPayload is the wire shape accepted by HTTP ingest and the
// newline-delimited TCP protocol. Timestamp is ISO-8601; when empty the
// server receive time is used. Every entry in Variables becomes one
// TelemetryPoint.
type TelemetryPayload struct {
	DeviceID  string             `json:"deviceId"`
	Timestamp string             `json:"timestamp,omitempty"`
	Variables map[string]float64 `json:"variables"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}
