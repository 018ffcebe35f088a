// Package metrics records capture pipeline measurements through the
// OpenTelemetry metrics API. A Prometheus bridge is available via
// NewProvider so the numbers can be scraped from /metrics.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/RyanBlaney/mic-spectrum/pkg/capture"
)

const meterName = "github.com/RyanBlaney/mic-spectrum"

// analysisBuckets are histogram boundaries in seconds for one frame
// analysis. A 1024-point transform normally lands well under a millisecond.
var analysisBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// Pipeline holds the instruments of one capture pipeline and implements
// capture.Recorder. Every method is safe to call from the audio callback.
type Pipeline struct {
	Samples        metric.Int64Counter
	Frames         metric.Int64Counter
	AnalysisTime   metric.Float64Histogram
	DeliveryErrors metric.Int64Counter
	StatusEvents   metric.Int64Counter
	StreamErrors   metric.Int64Counter

	droppedAttrs metric.AddOption
	failedAttrs  metric.AddOption
	overflow     metric.AddOption
	underflow    metric.AddOption
}

var _ capture.Recorder = (*Pipeline)(nil)

// NewPipeline creates the pipeline instruments on mp
func NewPipeline(mp metric.MeterProvider) (*Pipeline, error) {
	m := mp.Meter(meterName)
	var err error
	p := &Pipeline{
		droppedAttrs: metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "dropped"))),
		failedAttrs:  metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "failed"))),
		overflow:     metric.WithAttributeSet(attribute.NewSet(attribute.String("status", "input_overflow"))),
		underflow:    metric.WithAttributeSet(attribute.NewSet(attribute.String("status", "input_underflow"))),
	}

	if p.Samples, err = m.Int64Counter("mic_spectrum.capture.samples",
		metric.WithDescription("Single-channel samples taken from the input stream."),
		metric.WithUnit("{sample}"),
	); err != nil {
		return nil, err
	}
	if p.Frames, err = m.Int64Counter("mic_spectrum.capture.frames",
		metric.WithDescription("Frames completed and analyzed."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if p.AnalysisTime, err = m.Float64Histogram("mic_spectrum.analysis.duration",
		metric.WithDescription("Time spent transforming one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if p.DeliveryErrors, err = m.Int64Counter("mic_spectrum.delivery.errors",
		metric.WithDescription("Spectrum frames the sink did not accept."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if p.StatusEvents, err = m.Int64Counter("mic_spectrum.capture.status_events",
		metric.WithDescription("Input buffers flagged with overflow or underflow."),
		metric.WithUnit("{buffer}"),
	); err != nil {
		return nil, err
	}
	if p.StreamErrors, err = m.Int64Counter("mic_spectrum.capture.stream_errors",
		metric.WithDescription("Errors reported by the input stream."),
	); err != nil {
		return nil, err
	}

	return p, nil
}

// RecordSamples counts samples extracted from one buffer
func (p *Pipeline) RecordSamples(n int) {
	p.Samples.Add(context.Background(), int64(n))
}

// RecordFrame counts a completed frame and its analysis time
func (p *Pipeline) RecordFrame(analysis time.Duration) {
	ctx := context.Background()
	p.Frames.Add(ctx, 1)
	p.AnalysisTime.Record(ctx, analysis.Seconds())
}

// RecordDeliveryError counts a frame the sink refused
func (p *Pipeline) RecordDeliveryError(dropped bool) {
	if dropped {
		p.DeliveryErrors.Add(context.Background(), 1, p.droppedAttrs)
		return
	}
	p.DeliveryErrors.Add(context.Background(), 1, p.failedAttrs)
}

// RecordStatus counts a flagged buffer once per condition
func (p *Pipeline) RecordStatus(status capture.StatusFlags) {
	ctx := context.Background()
	if status&capture.StatusInputOverflow != 0 {
		p.StatusEvents.Add(ctx, 1, p.overflow)
	}
	if status&capture.StatusInputUnderflow != 0 {
		p.StatusEvents.Add(ctx, 1, p.underflow)
	}
}

// RecordStreamError counts a stream-level error
func (p *Pipeline) RecordStreamError() {
	p.StreamErrors.Add(context.Background(), 1)
}
