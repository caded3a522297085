package otlpingest

import (
	"context"
	"sync"
	"testing"
	"time"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

type fakeSink struct {
	mu     sync.Mutex
	points []*model.TelemetryPoint
}

func (f *fakeSink) Add(point *model.TelemetryPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point)
}

func (f *fakeSink) all() []*model.TelemetryPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.TelemetryPoint(nil), f.points...)
}

func deviceResource(deviceID string) *resourcepb.Resource {
	if deviceID == "" {
		return &resourcepb.Resource{}
	}
	return &resourcepb.Resource{Attributes: []*commonpb.KeyValue{{
		Key:   "device.id",
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: deviceID}},
	}}}
}

func gaugeMetric(name, unit string, value float64, tsNano uint64) *metricspb.Metric {
	return &metricspb.Metric{
		Name: name,
		Unit: unit,
		Data: &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
			DataPoints: []*metricspb.NumberDataPoint{{
				TimeUnixNano: tsNano,
				Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: value},
			}},
		}},
	}
}

func exportRequest(deviceID string, metrics ...*metricspb.Metric) *colmetricspb.ExportMetricsServiceRequest {
	return &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource:     deviceResource(deviceID),
			ScopeMetrics: []*metricspb.ScopeMetrics{{Metrics: metrics}},
		}},
	}
}

func TestReceiverMapsGaugeDatapoints(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	r := NewReceiver(sink)

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resp, err := r.Export(context.Background(), exportRequest("pump-1",
		gaugeMetric("temperature", "celsius", 21.5, uint64(ts.UnixNano()))))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.GetPartialSuccess() != nil {
		t.Errorf("PartialSuccess = %+v, want nil", resp.GetPartialSuccess())
	}

	points := sink.all()
	if len(points) != 1 {
		t.Fatalf("sink received %d points, want 1", len(points))
	}
	pt := points[0]
	if pt.DeviceID != "pump-1" || pt.Variable != "temperature" || pt.Value != 21.5 {
		t.Errorf("point = %+v, want pump-1/temperature/21.5", pt)
	}
	if !pt.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", pt.Timestamp, ts)
	}
	if pt.Metadata["unit"] != "celsius" {
		t.Errorf("metadata unit = %q, want celsius", pt.Metadata["unit"])
	}
	if pt.Source != "otlp" {
		t.Errorf("Source = %q, want otlp", pt.Source)
	}
}

func TestReceiverMapsSumAsInt(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	r := NewReceiver(sink)

	req := exportRequest("pump-1", &metricspb.Metric{
		Name: "restarts",
		Data: &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			DataPoints: []*metricspb.NumberDataPoint{{
				Value: &metricspb.NumberDataPoint_AsInt{AsInt: 7},
			}},
		}},
	})
	if _, err := r.Export(context.Background(), req); err != nil {
		t.Fatalf("Export: %v", err)
	}

	points := sink.all()
	if len(points) != 1 {
		t.Fatalf("sink received %d points, want 1", len(points))
	}
	if points[0].Value != 7 {
		t.Errorf("Value = %v, want 7", points[0].Value)
	}
	if age := time.Since(points[0].Timestamp); age < 0 || age > 5*time.Second {
		t.Errorf("Timestamp age = %v, want defaulted to now", age)
	}
}

func TestReceiverRejectsMissingDeviceID(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	r := NewReceiver(sink)

	resp, err := r.Export(context.Background(), exportRequest("",
		gaugeMetric("temperature", "", 20, 0)))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Errorf("sink received %d points, want 0", len(sink.all()))
	}
	if got := resp.GetPartialSuccess().GetRejectedDataPoints(); got != 1 {
		t.Errorf("RejectedDataPoints = %d, want 1", got)
	}
}

func TestReceiverRejectsUnsupportedMetricTypes(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	r := NewReceiver(sink)

	req := exportRequest("pump-1", &metricspb.Metric{
		Name: "latency",
		Data: &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{}},
	})
	resp, err := r.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Errorf("sink received %d points, want 0", len(sink.all()))
	}
	if got := resp.GetPartialSuccess().GetRejectedDataPoints(); got != 1 {
		t.Errorf("RejectedDataPoints = %d, want 1", got)
	}
}

func TestServerRoundTrip(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	srv := NewServer("127.0.0.1:0", sink)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := colmetricspb.NewMetricsServiceClient(conn)
	_, err = client.Export(ctx, exportRequest("pump-1",
		gaugeMetric("pressure", "bar", 4.2, 0)))
	if err != nil {
		t.Fatalf("Export over gRPC: %v", err)
	}

	points := sink.all()
	if len(points) != 1 {
		t.Fatalf("sink received %d points, want 1", len(points))
	}
	if points[0].DeviceID != "pump-1" || points[0].Variable != "pressure" {
		t.Errorf("point = %+v, want pump-1/pressure", points[0])
	}
}
