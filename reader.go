package csdl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
	"github.com/nlstn/go-csdl/internal/csdljson"
	"github.com/nlstn/go-csdl/internal/csdlxml"
	"github.com/nlstn/go-csdl/internal/observability"
	"github.com/nlstn/go-csdl/internal/semantics"
)

// ErrSkipReference may be returned by a ReferenceLoader to leave a reference unloaded
// without reporting an error.
var ErrSkipReference = semantics.ErrSkipReference

// ReferenceLoader fetches the document an edmx:Reference or $Reference points to. The
// document may be XML or JSON.
type ReferenceLoader interface {
	LoadReference(ctx context.Context, uri string) ([]byte, error)
}

// ReferenceLoaderFunc adapts a function to ReferenceLoader.
type ReferenceLoaderFunc func(ctx context.Context, uri string) ([]byte, error)

// LoadReference calls f.
func (f ReferenceLoaderFunc) LoadReference(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// FSLoader loads references with relative URIs from fsys. Absolute URIs are skipped.
func FSLoader(fsys fs.FS) ReferenceLoader {
	return ReferenceLoaderFunc(func(_ context.Context, uri string) ([]byte, error) {
		if strings.Contains(uri, "://") || path.IsAbs(uri) {
			return nil, ErrSkipReference
		}
		return fs.ReadFile(fsys, path.Clean(uri))
	})
}

// Reader reads CSDL documents into resolved models. A Reader may be used concurrently
// once configured.
type Reader struct {
	instrumented
	refs ReferenceLoader
}

// NewReader creates a Reader without a reference loader: references stay unloaded, except
// that the Core vocabulary is built in.
func NewReader() *Reader {
	return &Reader{instrumented: newInstrumented()}
}

// SetReferenceLoader sets the loader used for referenced documents. A nil loader leaves
// references unloaded.
func (r *Reader) SetReferenceLoader(l ReferenceLoader) {
	r.refs = l
}

// Read reads an XML or JSON document, detected from its first character.
//
// The model is returned together with every read and resolution error; callers must check
// the list even when err is nil. A non-nil err is a *ParseError and means no model could
// be produced.
//
// # Example
//
//	r := csdl.NewReader()
//	r.SetReferenceLoader(csdl.FSLoader(os.DirFS("schemas")))
//	m, errs, err := r.Read(ctx, file, "service.xml")
func (r *Reader) Read(ctx context.Context, in io.Reader, source string) (*edm.Model, edm.Errors, error) {
	br := bufio.NewReader(in)
	format, err := sniff(br)
	if err != nil {
		return nil, nil, &ParseError{Source: source, Err: err}
	}
	return r.read(ctx, br, format, source)
}

// ReadXML reads an XML CSDL document.
func (r *Reader) ReadXML(ctx context.Context, in io.Reader, source string) (*edm.Model, edm.Errors, error) {
	return r.read(ctx, in, FormatXML, source)
}

// ReadJSON reads a JSON CSDL document.
func (r *Reader) ReadJSON(ctx context.Context, in io.Reader, source string) (*edm.Model, edm.Errors, error) {
	return r.read(ctx, in, FormatJSON, source)
}

func (r *Reader) read(ctx context.Context, in io.Reader, format Format, source string) (*edm.Model, edm.Errors, error) {
	start := time.Now()
	ctx, span := r.obs.Tracer().StartParse(ctx, string(format), source)
	defer span.End()
	timing := r.obs.StartPhase(ctx, "parse")
	defer timing.Stop()

	doc, errs, err := readDocument(in, format, source)
	if err != nil {
		perr := &ParseError{Source: source, Errors: errs, Err: err}
		observability.RecordError(span, perr)
		r.obs.Metrics().RecordOperation(ctx, "parse", string(format), len(errs), time.Since(start))
		r.logger.Debug("Document is not CSDL", "source", source, "format", format, "error", err)
		return nil, errs, perr
	}

	m, resolveErrs := semantics.Resolve(ctx, doc, semantics.Options{Loader: r.loader(), Logger: r.logger})
	errs = append(errs, resolveErrs...)

	span.SetAttributes(observability.ErrorCountAttr(len(errs)))
	r.obs.Metrics().RecordOperation(ctx, "parse", string(format), len(errs), time.Since(start))
	r.logger.Debug("Read CSDL document", "source", source, "format", format, "version", m.Version(), "errors", len(errs))
	return m, errs, nil
}

func readDocument(in io.Reader, format Format, source string) (*ast.Document, edm.Errors, error) {
	switch format {
	case FormatXML:
		return csdlxml.Read(in, source)
	case FormatJSON:
		return csdljson.Read(in, source)
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// loader adapts the reference loader to the resolver, tracing each referenced document.
func (r *Reader) loader() semantics.Loader {
	if r.refs == nil {
		return nil
	}
	return func(ctx context.Context, uri string) (*ast.Document, error) {
		ctx, span := r.obs.Tracer().StartResolveReference(ctx, uri)
		defer span.End()

		doc, outcome, err := r.loadReference(ctx, uri)
		span.SetAttributes(observability.OutcomeAttr(outcome))
		r.obs.Metrics().RecordReference(ctx, outcome)
		if outcome == "failed" {
			observability.RecordError(span, err)
		}
		return doc, err
	}
}

func (r *Reader) loadReference(ctx context.Context, uri string) (*ast.Document, string, error) {
	data, err := r.refs.LoadReference(ctx, uri)
	if errors.Is(err, ErrSkipReference) {
		return nil, "skipped", err
	}
	if err != nil {
		return nil, "failed", err
	}
	br := bufio.NewReader(bytes.NewReader(data))
	format, err := sniff(br)
	if err != nil {
		return nil, "failed", err
	}
	doc, errs, err := readDocument(br, format, uri)
	if err != nil {
		return nil, "failed", err
	}
	if len(errs) > 0 {
		r.logger.Warn("Referenced document has read errors", "uri", uri, "errors", len(errs))
	}
	return doc, "loaded", nil
}

// sniff consumes leading whitespace and a byte order mark and reports the format implied
// by the first significant character.
func sniff(br *bufio.Reader) (Format, error) {
	for {
		c, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			return "", ErrEmptyDocument
		}
		if err != nil {
			return "", err
		}
		switch {
		case c == '\uFEFF' || unicode.IsSpace(c):
			continue
		case c == '<':
			return FormatXML, br.UnreadRune()
		case c == '{':
			return FormatJSON, br.UnreadRune()
		}
		return "", fmt.Errorf("%w: document starts with %q", ErrUnknownFormat, c)
	}
}

// Parse reads an XML or JSON document with a default Reader.
func Parse(in io.Reader) (*edm.Model, edm.Errors, error) {
	return NewReader().Read(context.Background(), in, "")
}

// ParseXML reads an XML document with a default Reader.
func ParseXML(in io.Reader) (*edm.Model, edm.Errors, error) {
	return NewReader().ReadXML(context.Background(), in, "")
}

// ParseJSON reads a JSON document with a default Reader.
func ParseJSON(in io.Reader) (*edm.Model, edm.Errors, error) {
	return NewReader().ReadJSON(context.Background(), in, "")
}
