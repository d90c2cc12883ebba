package csdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/csdljson"
	"github.com/nlstn/go-csdl/internal/csdlxml"
	"github.com/nlstn/go-csdl/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilModel is returned when a nil model is written.
var ErrNilModel = errors.New("model is nil")

// Writer serializes models as XML or JSON CSDL. Output is deterministic: namespaces and
// elements keep their declaration order and out-of-line annotations are grouped by target.
type Writer struct {
	instrumented
}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{instrumented: newInstrumented()}
}

// Write serializes m in the given format.
func (w *Writer) Write(ctx context.Context, out io.Writer, m *edm.Model, format Format) error {
	if m == nil {
		return ErrNilModel
	}
	start := time.Now()
	ctx, span := w.obs.Tracer().StartWrite(ctx, string(format))
	defer span.End()
	timing := w.obs.StartPhase(ctx, "write")
	defer timing.Stop()

	var err error
	switch format {
	case FormatXML:
		err = csdlxml.Write(out, m)
	case FormatJSON:
		err = csdljson.Write(out, m)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	w.finish(ctx, span, format, start, err)
	if err != nil {
		return fmt.Errorf("failed to write %s CSDL: %w", format, err)
	}
	return nil
}

// WriteXML serializes m as XML CSDL.
func (w *Writer) WriteXML(ctx context.Context, out io.Writer, m *edm.Model) error {
	return w.Write(ctx, out, m, FormatXML)
}

// WriteJSON serializes m as JSON CSDL.
func (w *Writer) WriteJSON(ctx context.Context, out io.Writer, m *edm.Model) error {
	return w.Write(ctx, out, m, FormatJSON)
}

// WriteXMLAsync serializes m as XML CSDL and copies it to out without blocking the caller.
// The returned channel receives exactly one value, nil or the write error, and is then
// closed. Cancelling ctx stops the copy between chunks.
func (w *Writer) WriteXMLAsync(ctx context.Context, out io.Writer, m *edm.Model) <-chan error {
	result := make(chan error, 1)
	if m == nil {
		result <- ErrNilModel
		close(result)
		return result
	}
	start := time.Now()
	ctx, span := w.obs.Tracer().StartWrite(ctx, string(FormatXML))
	done := csdlxml.WriteAsync(ctx, out, m)
	go func() {
		defer close(result)
		defer span.End()
		err := <-done
		w.finish(ctx, span, FormatXML, start, err)
		result <- err
	}()
	return result
}

func (w *Writer) finish(ctx context.Context, span trace.Span, format Format, start time.Time, err error) {
	errorCount := 0
	if err != nil {
		errorCount = 1
		observability.RecordError(span, err)
		w.logger.Error("Failed to write CSDL document", "format", format, "error", err)
	} else {
		w.logger.Debug("Wrote CSDL document", "format", format)
	}
	w.obs.Metrics().RecordOperation(ctx, "write", string(format), errorCount, time.Since(start))
}

// WriteXML serializes m as XML CSDL with a default Writer.
func WriteXML(out io.Writer, m *edm.Model) error {
	return NewWriter().WriteXML(context.Background(), out, m)
}

// WriteJSON serializes m as JSON CSDL with a default Writer.
func WriteJSON(out io.Writer, m *edm.Model) error {
	return NewWriter().WriteJSON(context.Background(), out, m)
}
