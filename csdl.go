// Package csdl reads, validates and writes OData CSDL documents in their XML and JSON
// representations.
//
// A document is read into an [edm.Model]: type names, base types, navigation partners,
// navigation property bindings, annotation targets and referenced documents are resolved,
// and every problem found along the way is returned as an [edm.Errors] list rather than
// aborting the read. Only input that is not a CSDL document at all fails with a
// [*ParseError].
//
// # Example
//
//	m, errs, err := csdl.Parse(strings.NewReader(doc))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if ok, verrs := csdl.Validate(m); !ok {
//	    errs = append(errs, verrs...)
//	}
//	var out bytes.Buffer
//	_ = csdl.WriteJSON(&out, m)
package csdl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nlstn/go-csdl/internal/observability"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Format identifies a CSDL representation.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// ParseFormat maps a format name or media type to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "xml", "application/xml", "text/xml":
		return FormatXML, nil
	case "json", "application/json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ObservabilityConfig configures tracing and metrics for a Reader, Writer or Validator.
// All providers are optional; when nil, the corresponding feature is disabled.
type ObservabilityConfig struct {
	// TracerProvider provides the tracer for csdl.parse, csdl.resolve_reference,
	// csdl.validate and csdl.write spans.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the meter for document, error and duration metrics.
	MeterProvider metric.MeterProvider

	// ServiceName identifies the caller in telemetry data.
	// Defaults to "go-csdl" if not specified.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string

	// EnableServerTiming records parse and write phases in the Server-Timing header of
	// HTTP responses whose request context carries one.
	EnableServerTiming bool
}

func newObservability(cfg ObservabilityConfig, logger *slog.Logger) (*observability.Config, error) {
	opts := []observability.Option{observability.WithLogger(logger)}
	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}
	if cfg.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}
	obs := observability.NewConfig(opts...)
	if err := obs.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger.Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"server_timing_enabled", cfg.EnableServerTiming,
		"service_name", obs.ServiceName(),
	)
	return obs, nil
}

// instrumented holds the logger and observability configuration shared by Reader,
// Writer and Validator.
type instrumented struct {
	logger *slog.Logger
	obs    *observability.Config
}

func newInstrumented() instrumented {
	return instrumented{logger: slog.Default(), obs: observability.Default()}
}

// SetLogger sets the logger. If logger is nil, slog.Default() is used.
func (i *instrumented) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	i.logger = logger
}

// SetObservability enables OpenTelemetry tracing and metrics.
func (i *instrumented) SetObservability(cfg ObservabilityConfig) error {
	obs, err := newObservability(cfg, i.logger)
	if err != nil {
		return err
	}
	i.obs = obs
	return nil
}

// ServerTimingMetric times a phase for the Server-Timing HTTP response header.
type ServerTimingMetric = observability.ServerTimingMetric

// StartServerTiming starts a Server-Timing metric with the given name. If ctx carries no
// server timing header, the returned metric is a no-op that is safe to Stop.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return observability.StartServerTiming(ctx, name)
}
