package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricDocuments  = "csdl.documents"
	MetricErrors     = "csdl.errors"
	MetricReferences = "csdl.references"
	MetricDuration   = "csdl.operation.duration"
)

const attrOperation = attribute.Key("csdl.operation")

// Metrics holds the instruments recorded by the reader, validator and writer.
type Metrics struct {
	documents  metric.Int64Counter
	errors     metric.Int64Counter
	references metric.Int64Counter
	duration   metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	documents, err := meter.Int64Counter(MetricDocuments,
		metric.WithDescription("Documents read or written"),
		metric.WithUnit("{document}"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDocuments, err)
	}
	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Model errors reported by parsing and validation"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricErrors, err)
	}
	references, err := meter.Int64Counter(MetricReferences,
		metric.WithDescription("Referenced documents handled by outcome"),
		metric.WithUnit("{reference}"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricReferences, err)
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of parse, validate and write operations"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricDuration, err)
	}
	return &Metrics{documents: documents, errors: errs, references: references, duration: duration}, nil
}

// RecordOperation records one parse, validate or write run with the number of model
// errors it found.
func (m *Metrics) RecordOperation(ctx context.Context, operation, format string, errorCount int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attrOperation.String(operation), AttrFormat.String(format))
	if operation != "validate" {
		m.documents.Add(ctx, 1, attrs)
	}
	if errorCount > 0 {
		m.errors.Add(ctx, int64(errorCount), attrs)
	}
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordReference counts one referenced document by outcome.
func (m *Metrics) RecordReference(ctx context.Context, outcome string) {
	m.references.Add(ctx, 1, metric.WithAttributes(OutcomeAttr(outcome)))
}
