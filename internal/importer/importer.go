// Package importer handles bulk telemetry uploads: CSV files exported
// from other systems and JSON arrays of ingest payloads. Rows are
// validated one at a time so a bad record never sinks the batch.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/ingest"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/timestamp"
)

// maxReportedErrors caps the error list in a summary; failures past the
// cap are still counted.
const maxReportedErrors = 20

var csvHeader = []string{"device_id", "variable", "value", "timestamp"}

// ErrMissingHeader is returned for CSV input without the expected header row.
var ErrMissingHeader = fmt.Errorf("importer: first row must start with %s", strings.Join(csvHeader, ","))

// PointSink receives the accepted telemetry points.
type PointSink interface {
	Add(point *model.TelemetryPoint)
}

// Summary reports the outcome of one bulk import. Imported counts
// telemetry points written; Failed counts rejected rows or items.
type Summary struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *Summary) reject(format string, args ...interface{}) {
	s.Failed++
	if len(s.Errors) < maxReportedErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}

// Importer validates bulk uploads and feeds the accepted points to a sink.
type Importer struct {
	sink   PointSink
	parser *timestamp.Parser
}

// New builds an importer feeding the given sink.
func New(sink PointSink) *Importer {
	return &Importer{sink: sink, parser: timestamp.NewParser()}
}

// ImportCSV reads rows of `device_id,variable,value,timestamp`; any
// further header columns become metadata keys. An empty timestamp cell
// means now. The returned error covers unreadable input only; row
// problems land in the summary.
func (im *Importer) ImportCSV(r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrMissingHeader
	}
	if len(header) < len(csvHeader) {
		return nil, ErrMissingHeader
	}
	for i, want := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, ErrMissingHeader
		}
	}
	metaCols := header[len(csvHeader):]

	summary := &Summary{}
	row := 1
	for {
		row++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				summary.reject("row %d: %v", row, parseErr.Err)
				continue
			}
			return nil, fmt.Errorf("importer: read csv: %w", err)
		}

		point, problem := im.parseRow(record, metaCols)
		if problem != "" {
			summary.reject("row %d: %s", row, problem)
			continue
		}
		im.sink.Add(point)
		summary.Imported++
	}
	return summary, nil
}

func (im *Importer) parseRow(record []string, metaCols []string) (*model.TelemetryPoint, string) {
	deviceID := strings.TrimSpace(record[0])
	if deviceID == "" {
		return nil, "empty device_id"
	}
	variable := strings.TrimSpace(record[1])
	if variable == "" {
		return nil, "empty variable"
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return nil, fmt.Sprintf("bad value %q", record[2])
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Sprintf("non-finite value %q", record[2])
	}

	ts := time.Now().UTC()
	if raw := strings.TrimSpace(record[3]); raw != "" {
		parsed, ok := im.parser.ParseTimestamp(raw)
		if !ok {
			return nil, fmt.Sprintf("bad timestamp %q", raw)
		}
		ts = parsed.UTC()
	}

	var metadata map[string]string
	for i, col := range metaCols {
		cell := ""
		if idx := len(csvHeader) + i; idx < len(record) {
			cell = strings.TrimSpace(record[idx])
		}
		if cell == "" {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string, len(metaCols))
		}
		metadata[strings.TrimSpace(col)] = cell
	}

	return &model.TelemetryPoint{
		DeviceID:  deviceID,
		Variable:  variable,
		Value:     value,
		Timestamp: ts,
		Metadata:  metadata,
		Source:    "import",
	}, ""
}

// ImportJSON reads a JSON array of ingest payloads, each in the same
// shape the line protocol accepts. Event payloads are not importable.
func (im *Importer) ImportJSON(r io.Reader) (*Summary, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("importer: body must be a JSON array: %w", err)
	}

	summary := &Summary{}
	for i, item := range items {
		var raw map[string]interface{}
		if err := json.Unmarshal(item, &raw); err != nil {
			summary.reject("item %d: not a JSON object", i+1)
			continue
		}
		payload, err := ingest.ParseObject(raw, "import", im.parser)
		if err != nil {
			summary.reject("item %d: %v", i+1, err)
			continue
		}
		if payload.Event != nil {
			summary.reject("item %d: event payloads are not importable", i+1)
			continue
		}
		for _, point := range payload.Points {
			im.sink.Add(point)
		}
		summary.Imported += len(payload.Points)
	}
	return summary, nil
}
