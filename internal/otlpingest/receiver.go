package otlpingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// deviceIDAttribute is the resource attribute carrying the device identity.
const deviceIDAttribute = "device.id"

var (
	datapointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_otlp_datapoints_total",
		Help: "OTLP number datapoints accepted",
	})
	rejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorvision_otlp_rejected_total",
		Help: "OTLP datapoints rejected for missing device identity or unsupported type",
	})
)

// RegisterMetrics registers the OTLP receiver counters with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(datapointsTotal, rejectedTotal)
}

// PointSink receives telemetry points mapped from OTLP exports.
type PointSink interface {
	Add(point *model.TelemetryPoint)
}

// Receiver implements the OTLP MetricsService, mapping exported gauge
// and sum datapoints onto telemetry points. The resource attribute
// "device.id" becomes the device, the metric name the variable.
type Receiver struct {
	colmetricspb.UnimplementedMetricsServiceServer

	points PointSink
}

// NewReceiver builds a receiver feeding the given sink.
func NewReceiver(points PointSink) *Receiver {
	return &Receiver{points: points}
}

// Export handles one OTLP metrics export request. Datapoints from
// resources without a device.id, and metric types other than gauge and
// sum, are counted as rejected via the response's partial success.
func (r *Receiver) Export(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	var accepted, rejected int64

	for _, rm := range req.GetResourceMetrics() {
		deviceID := attributeValue(rm.GetResource().GetAttributes(), deviceIDAttribute)
		if deviceID == "" {
			rejected += countDataPoints(rm)
			continue
		}
		for _, sm := range rm.GetScopeMetrics() {
			for _, metric := range sm.GetMetrics() {
				var points []*metricspb.NumberDataPoint
				switch {
				case metric.GetGauge() != nil:
					points = metric.GetGauge().GetDataPoints()
				case metric.GetSum() != nil:
					points = metric.GetSum().GetDataPoints()
				default:
					rejected++
					continue
				}
				for _, dp := range points {
					value, ok := numberValue(dp)
					if !ok {
						rejected++
						continue
					}
					r.points.Add(&model.TelemetryPoint{
						DeviceID:  deviceID,
						Variable:  metric.GetName(),
						Value:     value,
						Timestamp: datapointTime(dp),
						Metadata:  datapointMetadata(metric, dp),
						Source:    "otlp",
					})
					accepted++
				}
			}
		}
	}

	datapointsTotal.Add(float64(accepted))
	resp := &colmetricspb.ExportMetricsServiceResponse{}
	if rejected > 0 {
		rejectedTotal.Add(float64(rejected))
		resp.PartialSuccess = &colmetricspb.ExportMetricsPartialSuccess{
			RejectedDataPoints: rejected,
			ErrorMessage:       fmt.Sprintf("missing %s resource attribute or unsupported metric type", deviceIDAttribute),
		}
	}
	return resp, nil
}

func attributeValue(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

func numberValue(dp *metricspb.NumberDataPoint) (float64, bool) {
	switch v := dp.GetValue().(type) {
	case *metricspb.NumberDataPoint_AsDouble:
		return v.AsDouble, true
	case *metricspb.NumberDataPoint_AsInt:
		return float64(v.AsInt), true
	default:
		return 0, false
	}
}

func datapointTime(dp *metricspb.NumberDataPoint) time.Time {
	if ns := dp.GetTimeUnixNano(); ns > 0 {
		return time.Unix(0, int64(ns)).UTC()
	}
	return time.Now().UTC()
}

func datapointMetadata(metric *metricspb.Metric, dp *metricspb.NumberDataPoint) map[string]string {
	attrs := dp.GetAttributes()
	if len(attrs) == 0 && metric.GetUnit() == "" {
		return nil
	}
	out := make(map[string]string, len(attrs)+1)
	for _, kv := range attrs {
		if value := kv.GetValue().GetStringValue(); value != "" {
			out[kv.GetKey()] = value
		}
	}
	if unit := metric.GetUnit(); unit != "" {
		out["unit"] = unit
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func countDataPoints(rm *metricspb.ResourceMetrics) int64 {
	var n int64
	for _, sm := range rm.GetScopeMetrics() {
		for _, metric := range sm.GetMetrics() {
			switch {
			case metric.GetGauge() != nil:
				n += int64(len(metric.GetGauge().GetDataPoints()))
			case metric.GetSum() != nil:
				n += int64(len(metric.GetSum().GetDataPoints()))
			default:
				n++
			}
		}
	}
	return n
}
