// Package observability wraps OpenTelemetry tracing and metrics for reading, resolving,
// validating and writing CSDL documents. Providers default to no-op implementations, so
// instrumented code never has to check whether observability is configured.
package observability

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// InstrumentationName is the name reported by the tracer and the meter.
	InstrumentationName = "github.com/nlstn/go-csdl"

	defaultServiceName = "go-csdl"
)

// Config holds the providers and the instruments derived from them.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         *slog.Logger
	serverTiming   bool

	tracer  *Tracer
	metrics *Metrics
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the provider instruments are created from.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name attached to every span.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version attached to every span.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used to report instrument setup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithServerTiming records phase durations in the Server-Timing header of HTTP responses
// whose request context carries a server timing header.
func WithServerTiming() Option {
	return func(c *Config) { c.serverTiming = true }
}

// NewConfig applies opts over no-op defaults. Initialize must be called before use.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		serviceName:    defaultServiceName,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns an initialized configuration backed by no-op providers.
func Default() *Config {
	c := NewConfig()
	// No-op instruments cannot fail to register.
	_ = c.Initialize()
	return c
}

// Initialize creates the tracer and the metric instruments.
func (c *Config) Initialize() error {
	c.tracer = newTracer(c.tracerProvider.Tracer(InstrumentationName, trace.WithInstrumentationVersion(c.serviceVersion)), c.serviceName, c.serviceVersion)
	m, err := newMetrics(c.meterProvider.Meter(InstrumentationName))
	if err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}
	c.metrics = m
	c.logger.Debug("Observability initialized", "service_name", c.serviceName, "server_timing", c.serverTiming)
	return nil
}

// Tracer returns the span factory. A nil or uninitialized config yields a no-op tracer.
func (c *Config) Tracer() *Tracer {
	if c == nil || c.tracer == nil {
		return noopTracer
	}
	return c.tracer
}

// Metrics returns the metric instruments. A nil or uninitialized config yields no-op
// instruments.
func (c *Config) Metrics() *Metrics {
	if c == nil || c.metrics == nil {
		return noopMetrics
	}
	return c.metrics
}

// ServerTimingEnabled reports whether Server-Timing metrics are recorded.
func (c *Config) ServerTimingEnabled() bool {
	return c != nil && c.serverTiming
}

// ServiceName returns the configured service name.
func (c *Config) ServiceName() string {
	if c == nil {
		return defaultServiceName
	}
	return c.serviceName
}

var (
	noopTracer     = newTracer(tracenoop.NewTracerProvider().Tracer(InstrumentationName), defaultServiceName, "")
	noopMetrics, _ = newMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
)
