package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/events"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/timestamp"
)

// Rejection causes surfaced by payload parsing.
var (
	ErrNotJSON       = errors.New("ingest: line is not a JSON object")
	ErrMissingDevice = errors.New("ingest: payload has no device id")
	ErrNoVariables   = errors.New("ingest: payload has no numeric variables")
	ErrBadTimestamp  = errors.New("ingest: unparseable timestamp")
	ErrEmptyEvent    = errors.New("ingest: empty event message")
)

// Payload is the outcome of parsing one ingest line: either a batch of
// telemetry points (one per variable) or a single device event.
type Payload struct {
	Points []*model.TelemetryPoint
	Event  *model.DeviceEvent
}

// ParseLine parses one raw line into a telemetry or event payload.
// The source tag is stamped onto every extracted point.
func ParseLine(line, source string, parser *timestamp.Parser) (*Payload, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrNotJSON
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	return ParseObject(raw, source, parser)
}

// ParseObject parses an already-decoded JSON object. Exposed so bulk
// importers can reuse the same field semantics without re-encoding.
func ParseObject(raw map[string]interface{}, source string, parser *timestamp.Parser) (*Payload, error) {
	deviceID := strings.TrimSpace(ExtractStringField(raw, "deviceId", "device_id", "device"))
	if deviceID == "" {
		return nil, ErrMissingDevice
	}

	ts := time.Now().UTC()
	if value, ok := raw["timestamp"]; ok && value != nil {
		parsed, ok := parser.ParseTimestamp(value)
		if !ok {
			return nil, ErrBadTimestamp
		}
		ts = parsed.UTC()
	}

	if value, ok := raw["event"]; ok {
		return parseEvent(raw, deviceID, value, ts)
	}

	variables, _ := raw["variables"].(map[string]interface{})
	names := make([]string, 0, len(variables))
	for name, value := range variables {
		if _, ok := value.(float64); ok && strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoVariables
	}
	sort.Strings(names)

	metadata := parseMetadata(raw["metadata"])
	points := make([]*model.TelemetryPoint, 0, len(names))
	for _, name := range names {
		points = append(points, &model.TelemetryPoint{
			DeviceID:  deviceID,
			Variable:  name,
			Value:     variables[name].(float64),
			Timestamp: ts,
			Metadata:  metadata,
			Source:    source,
		})
	}
	return &Payload{Points: points}, nil
}

func parseEvent(raw map[string]interface{}, deviceID string, value interface{}, ts time.Time) (*Payload, error) {
	message := sanitizeMessage(stringifyValue(value))
	if message == "" {
		return nil, ErrEmptyEvent
	}

	var severity string
	switch sv := raw["severity"].(type) {
	case float64:
		severity = events.SyslogLevelToSeverity(int(sv))
	case string:
		severity = events.NormalizeSeverity(sv)
	default:
		severity = events.ExtractSeverity(message)
	}

	return &Payload{Event: &model.DeviceEvent{
		DeviceID:  deviceID,
		Severity:  severity,
		Message:   message,
		CreatedAt: ts,
	}}, nil
}

// ExtractStringField returns the first non-empty string under any of
// the given keys.
func ExtractStringField(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if s := stringifyValue(value); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseMetadata(value interface{}) map[string]string {
	obj, ok := value.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for key, v := range obj {
		if s := stringifyValue(v); s != "" {
			out[key] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringifyValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// sanitizeMessage collapses control characters so multi-line event text
// stores and renders as a single line.
func sanitizeMessage(message string) string {
	replacer := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
	return strings.TrimSpace(replacer.Replace(message))
}
