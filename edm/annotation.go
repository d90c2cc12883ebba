package edm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SerializationLocation tells writers where to put an annotation.
type SerializationLocation int

const (
	// OutOfLine annotations are written in an Annotations group keyed by target string.
	OutOfLine SerializationLocation = iota
	// Inline annotations are written as children of the annotated element.
	Inline
)

func (l SerializationLocation) String() string {
	if l == Inline {
		return "Inline"
	}
	return "OutOfLine"
}

// Annotation applies a term, with an optional qualifier and value, to a target.
type Annotation struct {
	located
	target      Annotatable
	term        *Term
	qualifier   string
	value       Expression
	usesDefault bool
	location    SerializationLocation
	namespace   string
}

// NewAnnotation creates an out-of-line annotation. A nil value takes the default value of
// the term; a Boolean term without declared default takes true. Such an annotation reports
// UsesDefault.
func NewAnnotation(target Annotatable, term *Term, qualifier string, value Expression) (*Annotation, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: annotation target", ErrNilArgument)
	}
	if term == nil {
		return nil, fmt.Errorf("%w: annotation term", ErrNilArgument)
	}
	a := &Annotation{target: target, term: term, qualifier: qualifier, value: value}
	if value == nil {
		a.value, a.usesDefault = defaultValueOf(term)
	}
	if _, ok := target.(*TargetPath); ok {
		a.location = OutOfLine
	}
	return a, nil
}

func defaultValueOf(term *Term) (Expression, bool) {
	if text, ok := term.DefaultValue(); ok {
		v, err := ConvertLiteral(term.Type(), text)
		if err != nil {
			return &StringConstant{Value: text}, true
		}
		return v, true
	}
	if term.Type().IsBoolean() {
		return &BooleanConstant{Value: true}, true
	}
	return nil, false
}

// Target returns the annotated element.
func (a *Annotation) Target() Annotatable { return a.target }

// Term returns the applied term.
func (a *Annotation) Term() *Term { return a.term }

// Qualifier returns the qualifier or "".
func (a *Annotation) Qualifier() string { return a.qualifier }

// Value returns the annotation value. It is nil for a term without default when no value
// was given.
func (a *Annotation) Value() Expression { return a.value }

// UsesDefault reports whether the value was taken from the term default.
func (a *Annotation) UsesDefault() bool { return a.usesDefault }

// SerializationLocation returns where writers put the annotation.
func (a *Annotation) SerializationLocation() SerializationLocation { return a.location }

// SetSerializationLocation chooses inline or out-of-line placement. Annotations targeting a
// TargetPath cannot be inline.
func (a *Annotation) SetSerializationLocation(loc SerializationLocation) error {
	if _, ok := a.target.(*TargetPath); ok && loc == Inline {
		return fmt.Errorf("%w: %s", ErrTargetPathInline, TargetString(a.target))
	}
	a.location = loc
	return nil
}

// Namespace returns the schema the annotation is written in when out of line.
func (a *Annotation) Namespace() string { return a.namespace }

// SetNamespace chooses the schema the annotation is written in when out of line.
func (a *Annotation) SetNamespace(ns string) { a.namespace = ns }

func (a *Annotation) String() string {
	s := "@" + a.term.FullName()
	if a.qualifier != "" {
		s += "#" + a.qualifier
	}
	return TargetString(a.target) + s
}

// SetVocabularyAnnotation adds an annotation to the model.
func (m *Model) SetVocabularyAnnotation(a *Annotation) error {
	if a == nil {
		return fmt.Errorf("%w: annotation", ErrNilArgument)
	}
	if m.immutable {
		return fmt.Errorf("%w: cannot add annotation %s", ErrImmutableModel, a)
	}
	if a.namespace == "" {
		a.namespace = m.defaultAnnotationNamespace(a.target)
	}
	m.annotations = append(m.annotations, a)
	return nil
}

func (m *Model) defaultAnnotationNamespace(target Annotatable) string {
	ns := targetNamespace(TargetString(target))
	for _, s := range m.schemas {
		if s.namespace == ns {
			return ns
		}
	}
	if len(m.schemas) > 0 {
		return m.schemas[0].namespace
	}
	return ns
}

// targetNamespace returns the namespace of the first segment of a target string.
func targetNamespace(target string) string {
	first, _, _ := strings.Cut(target, "/")
	first, _, _ = strings.Cut(first, "(")
	ns, _ := SplitQualifiedName(first)
	return ns
}

// VocabularyAnnotations returns the annotations declared in this model, in insertion order.
func (m *Model) VocabularyAnnotations() []*Annotation {
	return append([]*Annotation(nil), m.annotations...)
}

// FindVocabularyAnnotations returns every annotation targeting the element: those of this
// model and those included from referenced models.
func (m *Model) FindVocabularyAnnotations(target Annotatable) []*Annotation {
	if target == nil {
		return nil
	}
	return m.findAnnotations(TargetString(target))
}

// FindVocabularyAnnotationsByPath is FindVocabularyAnnotations for a target string such as
// "NS.Default/Customers/Address/Street". Aliases are accepted.
func (m *Model) FindVocabularyAnnotationsByPath(target string) []*Annotation {
	return m.findAnnotations(m.normalizeTarget(target))
}

// FindTermAnnotations returns the annotations of target with the given term (qualified by
// namespace or alias) and exact qualifier.
func (m *Model) FindTermAnnotations(target Annotatable, term, qualifier string) []*Annotation {
	term = m.resolveAlias(term)
	var out []*Annotation
	for _, a := range m.FindVocabularyAnnotations(target) {
		if a.term.FullName() == term && a.qualifier == qualifier {
			out = append(out, a)
		}
	}
	return out
}

func (m *Model) findAnnotations(target string) []*Annotation {
	if !m.immutable {
		return m.collectAnnotations(target, map[*Model]bool{})
	}
	return m.cache.get(target, func() []*Annotation {
		return m.collectAnnotations(target, map[*Model]bool{})
	})
}

func (m *Model) collectAnnotations(target string, seen map[*Model]bool) []*Annotation {
	if seen[m] {
		return nil
	}
	seen[m] = true
	var out []*Annotation
	for _, a := range m.annotations {
		if TargetString(a.target) == target {
			out = append(out, a)
		}
	}
	for _, ref := range m.references {
		if ref.Model == nil || len(ref.IncludeAnnotations) == 0 {
			continue
		}
		for _, a := range ref.Model.collectAnnotations(target, seen) {
			if ref.includesAnnotation(a) {
				out = append(out, a)
			}
		}
	}
	return out
}

// annotationCache memoizes per-target annotation lists of an immutable model. Entries are
// keyed by the xxhash of the target string and verified against the string itself.
type annotationCache struct {
	mu      sync.RWMutex
	entries map[uint64][]cacheEntry
}

type cacheEntry struct {
	target      string
	annotations []*Annotation
}

func newAnnotationCache() *annotationCache {
	return &annotationCache{entries: map[uint64][]cacheEntry{}}
}

func (c *annotationCache) get(target string, compute func() []*Annotation) []*Annotation {
	key := xxhash.Sum64String(target)
	c.mu.RLock()
	for _, e := range c.entries[key] {
		if e.target == target {
			c.mu.RUnlock()
			return e.annotations
		}
	}
	c.mu.RUnlock()

	anns := compute()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries[key] {
		if e.target == target {
			return e.annotations
		}
	}
	c.entries[key] = append(c.entries[key], cacheEntry{target: target, annotations: anns})
	return anns
}

func (c *annotationCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, es := range c.entries {
		n += len(es)
	}
	return n
}
