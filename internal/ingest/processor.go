package ingest

import (
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/timestamp"
)

var (
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorvision_ingest_records_total",
			Help: "Telemetry points accepted, labelled by source",
		},
		[]string{"source"},
	)
	rejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorvision_ingest_rejects_total",
			Help: "Ingest lines rejected, labelled by source",
		},
		[]string{"source"},
	)
	deviceEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorvision_ingest_events_total",
			Help: "Device events accepted, labelled by source",
		},
		[]string{"source"},
	)
)

// RegisterMetrics registers the ingest counters with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(recordsTotal, rejectsTotal, deviceEventsTotal)
}

const (
	defaultSeenDevices = 1024

	// maxAccumulatedJSON caps a multi-line object that never closes.
	maxAccumulatedJSON = 1 << 20
)

// PointSink receives accepted telemetry points.
type PointSink interface {
	Add(point *model.TelemetryPoint)
}

// EventSink stores accepted device events.
type EventSink interface {
	InsertDeviceEvent(ev *model.DeviceEvent) error
}

// MessageClusterer learns recurring event message patterns.
type MessageClusterer interface {
	Add(message string)
}

// Config wires the processor's optional collaborators.
type Config struct {
	Events    EventSink
	Clusterer MessageClusterer

	// SeenDevices bounds the cache used to log each device's first
	// appearance. Zero means the default size.
	SeenDevices int
}

// Result is the outcome of one complete processed line. A nil Result
// means the line was buffered as part of a multi-line object.
type Result struct {
	Points []*model.TelemetryPoint
	Event  *model.DeviceEvent
	Err    error
}

// Processor turns raw ingest lines into telemetry points and device
// events, routing them to the configured sinks. It is driven by a
// single goroutine draining the merged source channel, so it does no
// locking of its own.
type Processor struct {
	points    PointSink
	events    EventSink
	clusterer MessageClusterer
	parser    *timestamp.Parser
	seen      *lru.Cache[string, struct{}]
	accum     map[string]*jsonAccumulator
}

// NewProcessor builds a processor feeding the given point sink.
func NewProcessor(points PointSink, conf ...Config) *Processor {
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	size := c.SeenDevices
	if size <= 0 {
		size = defaultSeenDevices
	}
	seen, _ := lru.New[string, struct{}](size)
	return &Processor{
		points:    points,
		events:    c.Events,
		clusterer: c.Clusterer,
		parser:    timestamp.NewParser(),
		seen:      seen,
		accum:     make(map[string]*jsonAccumulator),
	}
}

// ProcessEnvelope handles one line from a tagged source. Multi-line
// JSON objects are buffered per source until balanced, so interleaved
// sources do not corrupt each other's objects.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *Result {
	line, complete := p.accumulate(env)
	if !complete {
		return nil
	}

	payload, err := ParseLine(line, env.Source, p.parser)
	if err != nil {
		rejectsTotal.WithLabelValues(env.Source).Inc()
		return &Result{Err: err}
	}

	if payload.Event != nil {
		if p.events != nil {
			if err := p.events.InsertDeviceEvent(payload.Event); err != nil {
				log.Printf("ingest: store device event: %v", err)
			}
		}
		if p.clusterer != nil {
			p.clusterer.Add(payload.Event.Message)
		}
		deviceEventsTotal.WithLabelValues(env.Source).Inc()
		p.noteDevice(payload.Event.DeviceID, env.Source)
		return &Result{Event: payload.Event}
	}

	for _, point := range payload.Points {
		p.points.Add(point)
	}
	recordsTotal.WithLabelValues(env.Source).Add(float64(len(payload.Points)))
	p.noteDevice(payload.Points[0].DeviceID, env.Source)
	return &Result{Points: payload.Points}
}

func (p *Processor) noteDevice(deviceID, source string) {
	if p.seen == nil {
		return
	}
	if _, ok := p.seen.Get(deviceID); ok {
		return
	}
	p.seen.Add(deviceID, struct{}{})
	log.Printf("ingest: first sight of device %s via %s", deviceID, source)
}

type jsonAccumulator struct {
	buf   strings.Builder
	depth int
}

// accumulate returns the line unchanged when it stands alone, or
// buffers it until the enclosing JSON object balances.
func (p *Processor) accumulate(env model.IngestEnvelope) (string, bool) {
	acc := p.accum[env.Source]
	if acc == nil {
		trimmed := strings.TrimSpace(env.Line)
		if !strings.HasPrefix(trimmed, "{") {
			return env.Line, true
		}
		depth := CountJSONDepth(env.Line)
		if depth <= 0 {
			return env.Line, true
		}
		acc = &jsonAccumulator{depth: depth}
		acc.buf.WriteString(env.Line)
		acc.buf.WriteString("\n")
		p.accum[env.Source] = acc
		return "", false
	}

	acc.buf.WriteString(env.Line)
	acc.buf.WriteString("\n")
	acc.depth += CountJSONDepth(env.Line)
	if acc.depth <= 0 || acc.buf.Len() > maxAccumulatedJSON {
		delete(p.accum, env.Source)
		return strings.TrimSpace(acc.buf.String()), true
	}
	return "", false
}

// CountJSONDepth reports the net brace and bracket nesting of a line,
// ignoring any that appear inside string literals.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range line {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}
	return depth
}
