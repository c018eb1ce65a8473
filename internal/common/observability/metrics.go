package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records pipeline stage timings and upload outcomes through the OpenTelemetry
// metric SDK. New exports them on the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	stageDuration otelmetric.Float64Histogram
	stageErrors   otelmetric.Int64Counter
	uploads       otelmetric.Int64Counter
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	o, err := NewWithReader(serviceName, exporter)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(o.meterProvider)
	return o, nil
}

// NewWithReader builds the instruments on a provider fed by reader.
func NewWithReader(serviceName string, reader metric.Reader) (*Observability, error) {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter(serviceName)

	stageDuration, err := meter.Float64Histogram(
		"pipeline.stage.duration",
		otelmetric.WithDescription("Ingest pipeline stage duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter(
		"pipeline.stage.errors",
		otelmetric.WithDescription("Ingest pipeline stages that returned an error"),
	)
	if err != nil {
		return nil, err
	}

	uploads, err := meter.Int64Counter(
		"pipeline.uploads",
		otelmetric.WithDescription("Uploads processed by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		stageDuration: stageDuration,
		stageErrors:   stageErrors,
		uploads:       uploads,
	}, nil
}

func (o *Observability) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	attrs := otelmetric.WithAttributes(attribute.String("stage", stage))
	o.stageDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		o.stageErrors.Add(ctx, 1, attrs)
	}
}

// RecordUpload counts one finished upload. errorCode is empty on success.
func (o *Observability) RecordUpload(ctx context.Context, platform string, merged bool, errorCode string) {
	status := "succeeded"
	if errorCode != "" {
		status = "failed"
	}
	o.uploads.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.String("platform", platform),
		attribute.Bool("merged", merged),
		attribute.String("error_code", errorCode),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
