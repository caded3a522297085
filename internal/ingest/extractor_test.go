package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/timestamp"
)

func TestParseLineTelemetry(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	line := `{"deviceId":"pump-1","timestamp":"2026-03-01T10:00:00Z","variables":{"temperature":21.5,"pressure":4.2},"metadata":{"site":"plant-7","rack":3}}`

	payload, err := ParseLine(line, "tcp", parser)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if payload.Event != nil {
		t.Fatalf("payload.Event = %+v, want nil", payload.Event)
	}
	if len(payload.Points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(payload.Points))
	}

	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first, second := payload.Points[0], payload.Points[1]
	if first.Variable != "pressure" || second.Variable != "temperature" {
		t.Errorf("variables = %q, %q, want pressure, temperature", first.Variable, second.Variable)
	}
	if first.Value != 4.2 {
		t.Errorf("pressure value = %v, want 4.2", first.Value)
	}
	if second.Value != 21.5 {
		t.Errorf("temperature value = %v, want 21.5", second.Value)
	}
	for _, pt := range payload.Points {
		if pt.DeviceID != "pump-1" {
			t.Errorf("DeviceID = %q, want pump-1", pt.DeviceID)
		}
		if pt.Source != "tcp" {
			t.Errorf("Source = %q, want tcp", pt.Source)
		}
		if !pt.Timestamp.Equal(want) {
			t.Errorf("Timestamp = %v, want %v", pt.Timestamp, want)
		}
		if pt.Metadata["site"] != "plant-7" {
			t.Errorf("metadata site = %q, want plant-7", pt.Metadata["site"])
		}
		if pt.Metadata["rack"] != "3" {
			t.Errorf("metadata rack = %q, want 3", pt.Metadata["rack"])
		}
	}
}

func TestParseLineEpochTimestamps(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	tests := []struct {
		name string
		line string
		want time.Time
	}{
		{
			name: "seconds",
			line: `{"deviceId":"d1","timestamp":1715342400,"variables":{"v":1}}`,
			want: time.Unix(1715342400, 0),
		},
		{
			name: "milliseconds",
			line: `{"deviceId":"d1","timestamp":1715342400000,"variables":{"v":1}}`,
			want: time.UnixMilli(1715342400000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := ParseLine(tt.line, "tcp", parser)
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			got := payload.Points[0].Timestamp
			if !got.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLineDefaultsTimestampToNow(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	payload, err := ParseLine(`{"deviceId":"d1","variables":{"v":1}}`, "tcp", parser)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if age := time.Since(payload.Points[0].Timestamp); age < 0 || age > 5*time.Second {
		t.Errorf("Timestamp age = %v, want within the last 5s", age)
	}
}

func TestParseLineSkipsNonNumericVariables(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	line := `{"deviceId":"d1","variables":{"temperature":20,"label":"hot","ok":true}}`
	payload, err := ParseLine(line, "tcp", parser)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if len(payload.Points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(payload.Points))
	}
	if payload.Points[0].Variable != "temperature" {
		t.Errorf("Variable = %q, want temperature", payload.Points[0].Variable)
	}
}

func TestParseLineRejects(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	tests := []struct {
		name string
		line string
		want error
	}{
		{"plain text", "hello world", ErrNotJSON},
		{"broken json", `{"deviceId": "d1"`, ErrNotJSON},
		{"missing device", `{"variables":{"v":1}}`, ErrMissingDevice},
		{"blank device", `{"deviceId":"  ","variables":{"v":1}}`, ErrMissingDevice},
		{"no variables", `{"deviceId":"d1"}`, ErrNoVariables},
		{"non-numeric only", `{"deviceId":"d1","variables":{"v":"high"}}`, ErrNoVariables},
		{"bad timestamp", `{"deviceId":"d1","timestamp":"yesterday","variables":{"v":1}}`, ErrBadTimestamp},
		{"empty event", `{"deviceId":"d1","event":"   "}`, ErrEmptyEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line, "tcp", parser)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestParseLineEvent(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	line := `{"deviceId":"pump-1","timestamp":"2026-03-01T10:00:00Z","event":"ERROR valve stuck\non line two"}`
	payload, err := ParseLine(line, "tcp", parser)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	ev := payload.Event
	if ev == nil {
		t.Fatal("payload.Event = nil, want an event")
	}
	if ev.DeviceID != "pump-1" {
		t.Errorf("DeviceID = %q, want pump-1", ev.DeviceID)
	}
	if ev.Severity != "ERROR" {
		t.Errorf("Severity = %q, want ERROR", ev.Severity)
	}
	if ev.Message != "ERROR valve stuck on line two" {
		t.Errorf("Message = %q, want the newline collapsed", ev.Message)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !ev.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", ev.CreatedAt, want)
	}
}

func TestParseLineEventSeverityField(t *testing.T) {
	t.Parallel()

	parser := timestamp.NewParser()
	tests := []struct {
		name string
		line string
		want string
	}{
		{"explicit string", `{"deviceId":"d1","event":"valve stuck","severity":"warning"}`, "WARN"},
		{"syslog number", `{"deviceId":"d1","event":"valve stuck","severity":2}`, "CRITICAL"},
		{"extracted from message", `{"deviceId":"d1","event":"FATAL valve stuck"}`, "CRITICAL"},
		{"defaulted", `{"deviceId":"d1","event":"valve stuck"}`, "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := ParseLine(tt.line, "tcp", parser)
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if payload.Event.Severity != tt.want {
				t.Errorf("Severity = %q, want %q", payload.Event.Severity, tt.want)
			}
		})
	}
}

func TestExtractStringField(t *testing.T) {
	t.Parallel()

	raw := map[string]interface{}{
		"deviceId": "",
		"device":   "pump-9",
		"count":    float64(12),
		"ratio":    1.25,
		"active":   true,
	}

	if got := ExtractStringField(raw, "deviceId", "device"); got != "pump-9" {
		t.Errorf("ExtractStringField device = %q, want pump-9", got)
	}
	if got := ExtractStringField(raw, "count"); got != "12" {
		t.Errorf("ExtractStringField count = %q, want 12", got)
	}
	if got := ExtractStringField(raw, "ratio"); got != "1.25" {
		t.Errorf("ExtractStringField ratio = %q, want 1.25", got)
	}
	if got := ExtractStringField(raw, "active"); got != "true" {
		t.Errorf("ExtractStringField active = %q, want true", got)
	}
	if got := ExtractStringField(raw, "missing"); got != "" {
		t.Errorf("ExtractStringField missing = %q, want empty", got)
	}
}
