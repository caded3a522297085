package telsource

import "github.com/CodeFleck/sensorvision-sub002/internal/model"

// TelemetrySource is a unified interface for all telemetry input sources (TCP, stdin, OTLP).
type TelemetrySource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of telemetry lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin", "otlp"
}
