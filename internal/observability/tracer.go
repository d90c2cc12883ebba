package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanParse            = "csdl.parse"
	SpanResolveReference = "csdl.resolve_reference"
	SpanValidate         = "csdl.validate"
	SpanWrite            = "csdl.write"
)

// Attribute keys.
const (
	AttrServiceName    = attribute.Key("service.name")
	AttrServiceVersion = attribute.Key("service.version")
	AttrFormat         = attribute.Key("csdl.format")
	AttrSource         = attribute.Key("csdl.source")
	AttrReferenceURI   = attribute.Key("csdl.reference.uri")
	AttrErrorCount     = attribute.Key("csdl.error.count")
	AttrValid          = attribute.Key("csdl.valid")
	AttrOutcome        = attribute.Key("csdl.outcome")
)

// Tracer starts spans for the phases of document processing.
type Tracer struct {
	tracer trace.Tracer
	common []attribute.KeyValue
}

func newTracer(t trace.Tracer, serviceName, serviceVersion string) *Tracer {
	common := []attribute.KeyValue{AttrServiceName.String(serviceName)}
	if serviceVersion != "" {
		common = append(common, AttrServiceVersion.String(serviceVersion))
	}
	return &Tracer{tracer: t, common: common}
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append(append([]attribute.KeyValue(nil), t.common...), attrs...)
	return t.tracer.Start(ctx, name, trace.WithAttributes(all...))
}

// StartParse starts the span covering reading and resolving one document.
func (t *Tracer) StartParse(ctx context.Context, format, source string) (context.Context, trace.Span) {
	return t.start(ctx, SpanParse, AttrFormat.String(format), AttrSource.String(source))
}

// StartResolveReference starts the span covering loading one referenced document.
func (t *Tracer) StartResolveReference(ctx context.Context, uri string) (context.Context, trace.Span) {
	return t.start(ctx, SpanResolveReference, AttrReferenceURI.String(uri))
}

// StartValidate starts the span covering one validation run.
func (t *Tracer) StartValidate(ctx context.Context) (context.Context, trace.Span) {
	return t.start(ctx, SpanValidate)
}

// StartWrite starts the span covering writing one model.
func (t *Tracer) StartWrite(ctx context.Context, format string) (context.Context, trace.Span) {
	return t.start(ctx, SpanWrite, AttrFormat.String(format))
}

// RecordError marks span as failed. A nil error leaves the span untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ErrorCountAttr reports how many model errors a phase found.
func ErrorCountAttr(n int) attribute.KeyValue {
	return AttrErrorCount.Int(n)
}

// ValidAttr reports the outcome of validation.
func ValidAttr(valid bool) attribute.KeyValue {
	return AttrValid.Bool(valid)
}

// OutcomeAttr reports how a reference was handled: loaded, skipped or failed.
func OutcomeAttr(outcome string) attribute.KeyValue {
	return AttrOutcome.String(outcome)
}
