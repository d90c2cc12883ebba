// Package semantics turns unresolved CSDL trees into edm models. It resolves type names,
// base types, navigation partners and bindings, annotation targets, terms and values, and
// loads referenced documents through a caller supplied Loader.
package semantics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/edm/vocabularies"
	"github.com/nlstn/go-csdl/internal/ast"
)

// Loader fetches and parses the document a reference points to. Returning ErrSkipReference
// leaves the reference unloaded without reporting an error.
type Loader func(ctx context.Context, uri string) (*ast.Document, error)

// ErrSkipReference tells the resolver to leave a reference unloaded.
var ErrSkipReference = errors.New("skip reference")

// Options configures Resolve.
type Options struct {
	// Loader loads referenced documents. Without a loader references stay unloaded,
	// except that the built-in Core vocabulary is always available.
	Loader Loader
	Logger *slog.Logger
}

type resolver struct {
	ctx    context.Context
	loader Loader
	logger *slog.Logger
	// loaded guards against reference cycles: a URI is registered before its document is
	// resolved.
	loaded map[string]*edm.Model
}

// Resolve builds an immutable model from doc. The model is returned even when errors were
// found; the same errors are recorded on the model as resolution errors.
func Resolve(ctx context.Context, doc *ast.Document, opts Options) (*edm.Model, edm.Errors) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &resolver{ctx: ctx, loader: opts.Loader, logger: logger, loaded: map[string]*edm.Model{}}
	b := r.newBuilder(doc)
	b.build()
	return b.m, b.errs
}

// loadReference returns the model of a referenced document, or nil with the reason the
// reference stays unloaded. A nil error with a nil model means the reference was skipped.
func (r *resolver) loadReference(uri string) (*edm.Model, error) {
	if m, ok := r.loaded[uri]; ok {
		return m, nil
	}
	if r.loader == nil {
		r.logger.Debug("No loader configured, leaving reference unloaded", "uri", uri)
		return nil, nil
	}
	r.logger.Debug("Loading reference", "uri", uri)
	doc, err := r.loader(r.ctx, uri)
	if errors.Is(err, ErrSkipReference) {
		r.logger.Debug("Skipping reference", "uri", uri)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("loader returned no document")
	}
	b := r.newBuilder(doc)
	r.loaded[uri] = b.m
	b.build()
	if len(b.errs) > 0 {
		r.logger.Warn("Referenced document has errors", "uri", uri, "errors", len(b.errs))
	}
	return b.m, nil
}

// resolveReferences records the references of the document and loads their models. A
// reference including the Core vocabulary falls back to the built-in Core model when it
// cannot be loaded.
func (b *builder) resolveReferences() {
	for _, ar := range b.doc.References {
		ref := &edm.Reference{URI: ar.URI}
		core := false
		for _, inc := range ar.Includes {
			ref.Includes = append(ref.Includes, edm.Include{Namespace: inc.Namespace, Alias: inc.Alias})
			if inc.Namespace == vocabularies.CoreNamespace {
				core = true
			}
		}
		for _, ia := range ar.IncludeAnnotations {
			ref.IncludeAnnotations = append(ref.IncludeAnnotations, edm.IncludeAnnotations{
				TermNamespace:   ia.TermNamespace,
				Qualifier:       ia.Qualifier,
				TargetNamespace: ia.TargetNamespace,
			})
		}
		m, err := b.r.loadReference(ar.URI)
		switch {
		case m != nil:
			ref.Model = m
		case core:
			ref.Model = vocabularies.Core()
			if err != nil {
				b.r.logger.Debug("Using built-in Core vocabulary", "uri", ar.URI, "error", err)
			}
		case err != nil:
			b.r.logger.Warn("Failed to load reference", "uri", ar.URI, "error", err)
			b.errorf(edm.ErrReferenceLoadFailed, ar.Loc, "cannot load referenced document %s: %v", ar.URI, err)
		}
		if err := b.m.AddReference(ref); err != nil {
			b.errorf(edm.ErrReferenceLoadFailed, ar.Loc, "%v", err)
		}
	}
}
