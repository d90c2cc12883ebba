// Package edm is the in-memory Entity Data Model: schema types, properties, operations,
// entity containers and vocabulary annotations, together with the lookups consumers use
// to navigate a model.
//
// Models are either read from CSDL documents, in which case they are returned immutable,
// or built with the construction API:
//
//	m := edm.NewModel()
//	person := edm.NewEntityType("NS", "Person")
//	id, _ := person.AddStructuralProperty("ID", edm.NewTypeRef(edm.Int32Type, false))
//	_ = person.SetKey(id)
//	_ = m.AddElement(person)
//
// A model may be read concurrently once MarkImmutable has been called. Mutation is not safe
// for concurrent use.
package edm

import (
	"fmt"
	"strings"
)

// Supported CSDL versions.
const (
	Version40  = "4.0"
	Version401 = "4.01"
)

type schemaInfo struct {
	namespace string
	alias     string
	elements  []SchemaElement
}

// Model is an EDM model: schemas, at most one entity container, references to other
// models and vocabulary annotations.
type Model struct {
	version     string
	schemas     []*schemaInfo
	byName      map[string][]SchemaElement
	container   *EntityContainer
	references  []*Reference
	annotations []*Annotation
	immutable   bool
	cache       *annotationCache
	errors      Errors
}

// NewModel creates an empty, mutable model of version 4.01.
func NewModel() *Model {
	return &Model{version: Version401, byName: map[string][]SchemaElement{}}
}

// Version returns the CSDL version of the model.
func (m *Model) Version() string { return m.version }

// SetVersion sets the CSDL version.
func (m *Model) SetVersion(v string) error {
	if m.immutable {
		return fmt.Errorf("%w: cannot set version", ErrImmutableModel)
	}
	m.version = v
	return nil
}

// MarkImmutable freezes the model. Further mutation fails with ErrImmutableModel and
// annotation lookups are memoized.
func (m *Model) MarkImmutable() {
	if m.immutable {
		return
	}
	m.immutable = true
	m.cache = newAnnotationCache()
}

// IsImmutable reports whether MarkImmutable was called.
func (m *Model) IsImmutable() bool { return m.immutable }

// RecordError attaches a resolution error to the model.
func (m *Model) RecordError(e Error) { m.errors = append(m.errors, e) }

// ResolutionErrors returns the errors found while the model was read.
func (m *Model) ResolutionErrors() Errors { return append(Errors(nil), m.errors...) }

// AddSchema declares a namespace, optionally with an alias. Declaring an existing namespace
// again only updates a non-empty alias.
func (m *Model) AddSchema(namespace, alias string) error {
	if m.immutable {
		return fmt.Errorf("%w: cannot add schema %s", ErrImmutableModel, namespace)
	}
	if namespace == "" {
		return fmt.Errorf("%w: schema namespace", ErrNilArgument)
	}
	s := m.schema(namespace)
	if alias != "" {
		s.alias = alias
	}
	return nil
}

func (m *Model) schema(namespace string) *schemaInfo {
	for _, s := range m.schemas {
		if s.namespace == namespace {
			return s
		}
	}
	s := &schemaInfo{namespace: namespace}
	m.schemas = append(m.schemas, s)
	return s
}

// Namespaces returns the declared namespaces in declaration order.
func (m *Model) Namespaces() []string {
	out := make([]string, len(m.schemas))
	for i, s := range m.schemas {
		out[i] = s.namespace
	}
	return out
}

// NamespaceAlias returns the alias of a declared namespace, or "".
func (m *Model) NamespaceAlias(namespace string) string {
	for _, s := range m.schemas {
		if s.namespace == namespace {
			return s.alias
		}
	}
	return ""
}

// SchemaElements returns the elements of a namespace in insertion order.
func (m *Model) SchemaElements(namespace string) []SchemaElement {
	for _, s := range m.schemas {
		if s.namespace == namespace {
			return append([]SchemaElement(nil), s.elements...)
		}
	}
	return nil
}

// AllSchemaElements returns the elements of every namespace.
func (m *Model) AllSchemaElements() []SchemaElement {
	var out []SchemaElement
	for _, s := range m.schemas {
		out = append(out, s.elements...)
	}
	return out
}

// AddElement adds a schema element. Full names must be unique, except that operations of
// the same kind may be overloaded; a model holds at most one entity container.
func (m *Model) AddElement(e SchemaElement) error {
	if e == nil {
		return fmt.Errorf("%w: schema element", ErrNilArgument)
	}
	if m.immutable {
		return fmt.Errorf("%w: cannot add %s", ErrImmutableModel, e.FullName())
	}
	if e.Namespace() == "" || e.Name() == "" {
		return fmt.Errorf("%w: schema element needs a namespace and a name", ErrInvalidArgument)
	}
	if owner := e.owner(); owner != nil && owner != m {
		return fmt.Errorf("%w: %s belongs to another model", ErrInvalidArgument, e.FullName())
	}
	if c, ok := e.(*EntityContainer); ok && m.container != nil {
		return fmt.Errorf("%w: %s and %s", ErrMultipleContainers, m.container.FullName(), c.FullName())
	}
	for _, existing := range m.byName[e.FullName()] {
		if existing == e {
			return fmt.Errorf("%w: %s", ErrDuplicateElement, e.FullName())
		}
		if !overloadable(existing, e) {
			return fmt.Errorf("%w: %s", ErrDuplicateElement, e.FullName())
		}
	}
	e.bind(m)
	s := m.schema(e.Namespace())
	s.elements = append(s.elements, e)
	m.byName[e.FullName()] = append(m.byName[e.FullName()], e)
	if c, ok := e.(*EntityContainer); ok {
		m.container = c
	}
	return nil
}

func overloadable(a, b SchemaElement) bool {
	oa, ok1 := a.(*Operation)
	ob, ok2 := b.(*Operation)
	return ok1 && ok2 && oa.function == ob.function
}

// FindSchemaElement returns the declared element with the given qualified name (namespace
// or alias). For overloaded operations the first overload is returned.
func (m *Model) FindSchemaElement(name string) SchemaElement {
	if els := m.byName[m.resolveAlias(name)]; len(els) > 0 {
		return els[0]
	}
	return nil
}

// FindVisibleElement resolves a qualified element name against this model and the models
// it references.
func (m *Model) FindVisibleElement(name string) SchemaElement {
	return m.findVisible(m.resolveAlias(name))
}

// FindDeclaredType returns a type declared in this model.
func (m *Model) FindDeclaredType(name string) Type {
	if t, ok := m.FindSchemaElement(name).(Type); ok {
		return t
	}
	return nil
}

// FindType resolves a qualified type name against this model, the models it references
// (transitively, restricted to included namespaces) and the built-in Edm types.
func (m *Model) FindType(name string) Type {
	name = m.resolveAlias(name)
	if p, ok := BuiltinType(name); ok && strings.HasPrefix(name, EdmNamespace+".") {
		return p
	}
	if t, ok := m.findVisible(name).(Type); ok {
		return t
	}
	return nil
}

// FindDeclaredTerm returns a term declared in this model.
func (m *Model) FindDeclaredTerm(name string) *Term {
	t, _ := m.FindSchemaElement(name).(*Term)
	return t
}

// FindTerm resolves a qualified term name against this model and its references.
func (m *Model) FindTerm(name string) *Term {
	t, _ := m.findVisible(m.resolveAlias(name)).(*Term)
	return t
}

// FindDeclaredOperations returns the overloads of an operation declared in this model.
func (m *Model) FindDeclaredOperations(name string) []*Operation {
	var out []*Operation
	for _, e := range m.byName[m.resolveAlias(name)] {
		if o, ok := e.(*Operation); ok {
			out = append(out, o)
		}
	}
	return out
}

// FindOperations returns the overloads visible from this model, declared ones first.
func (m *Model) FindOperations(name string) []*Operation {
	name = m.resolveAlias(name)
	var out []*Operation
	m.walkVisible(func(vm *Model) bool {
		out = append(out, vm.FindDeclaredOperations(name)...)
		return false
	}, name)
	return out
}

// FindBoundOperations returns the visible bound operations whose binding parameter type is
// bindingType, a collection of it, or a base type of it.
func (m *Model) FindBoundOperations(bindingType Type) []*Operation {
	var out []*Operation
	for _, vm := range m.visibleModels() {
		for _, e := range vm.AllSchemaElements() {
			o, ok := e.(*Operation)
			if !ok || !o.bound || len(o.params) == 0 {
				continue
			}
			if bindsTo(o.params[0].typ, bindingType) {
				out = append(out, o)
			}
		}
	}
	return out
}

func bindsTo(param TypeRef, t Type) bool {
	def := param.Definition
	if c, ok := t.(*CollectionType); ok {
		pc, ok := def.(*CollectionType)
		if !ok {
			return false
		}
		return bindsTo(pc.Element, c.Element.Definition)
	}
	if def == t {
		return true
	}
	if st, ok := t.(StructuredType); ok {
		if pst, ok := def.(StructuredType); ok {
			return st.InheritsFrom(pst)
		}
	}
	return false
}

// EntityContainer returns the entity container, or nil.
func (m *Model) EntityContainer() *EntityContainer { return m.container }

// FindNavigationSource resolves an entity set or singleton name, or a containment path such
// as "Root/SetB", in the model's container.
func (m *Model) FindNavigationSource(path string) NavigationSource {
	if m.container == nil {
		return nil
	}
	src, err := m.container.ResolveNavigationSourcePath(ParsePath(path))
	if err != nil {
		return nil
	}
	return src
}

// DerivedTypes returns the visible types whose direct base type is t.
func (m *Model) DerivedTypes(t StructuredType) []StructuredType {
	var out []StructuredType
	for _, st := range m.visibleStructuredTypes() {
		if st.BaseType() == t {
			out = append(out, st)
		}
	}
	return out
}

func (m *Model) findContainer(name string) *EntityContainer {
	if m.container != nil && (m.container.Name() == name || m.container.FullName() == m.resolveAlias(name)) {
		return m.container
	}
	if IsQualifiedName(name) {
		return nil
	}
	for _, vm := range m.visibleModels() {
		if c := vm.container; c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

// findVisible returns the first declared element with the given full name in this model or,
// for included namespaces, in referenced models.
func (m *Model) findVisible(name string) SchemaElement {
	var found SchemaElement
	m.walkVisible(func(vm *Model) bool {
		found = vm.FindSchemaElement(name)
		return found != nil
	}, name)
	return found
}

// walkVisible visits m and then, depth first, every referenced model through which a
// qualified name is visible. The walk stops when visit returns true.
func (m *Model) walkVisible(visit func(*Model) bool, name string) {
	ns, _ := SplitQualifiedName(name)
	seen := map[*Model]bool{}
	var walk func(vm *Model) bool
	walk = func(vm *Model) bool {
		if seen[vm] {
			return false
		}
		seen[vm] = true
		if visit(vm) {
			return true
		}
		for _, r := range vm.references {
			if r.Model != nil && (name == "" || r.includesNamespace(ns)) && walk(r.Model) {
				return true
			}
		}
		return false
	}
	walk(m)
}

// visibleModels returns m and every transitively referenced model.
func (m *Model) visibleModels() []*Model {
	var out []*Model
	m.walkVisible(func(vm *Model) bool {
		out = append(out, vm)
		return false
	}, "")
	return out
}

func (m *Model) visibleStructuredTypes() []StructuredType {
	var out []StructuredType
	for _, vm := range m.visibleModels() {
		for _, e := range vm.AllSchemaElements() {
			if st, ok := e.(StructuredType); ok {
				out = append(out, st)
			}
		}
	}
	return out
}

// resolveAlias replaces an alias prefix of a qualified name with its namespace. Names in
// Collection(...) are handled as well.
func (m *Model) resolveAlias(name string) string {
	if inner, ok := strings.CutPrefix(name, "Collection("); ok && strings.HasSuffix(inner, ")") {
		return "Collection(" + m.resolveAlias(strings.TrimSuffix(inner, ")")) + ")"
	}
	ns, simple := SplitQualifiedName(name)
	if ns == "" {
		return name
	}
	if full, ok := m.aliasNamespace(ns); ok {
		return full + "." + simple
	}
	return name
}

func (m *Model) aliasNamespace(alias string) (string, bool) {
	for _, s := range m.schemas {
		if s.alias == alias {
			return s.namespace, true
		}
	}
	for _, r := range m.references {
		for _, inc := range r.Includes {
			if inc.Alias == alias {
				return inc.Namespace, true
			}
		}
	}
	return "", false
}

// ResolveAlias replaces an alias prefix of a qualified name with its namespace.
func (m *Model) ResolveAlias(name string) string { return m.resolveAlias(name) }

// NormalizeTarget rewrites a target string with namespaces in place of aliases, including
// the parameter types of an overload-qualified operation.
func (m *Model) NormalizeTarget(target string) string { return m.normalizeTarget(target) }

// normalizeTarget resolves aliases in every segment of a target string, including the
// parameter type list of an overload-qualified operation.
func (m *Model) normalizeTarget(target string) string {
	segs := strings.Split(target, "/")
	for i, seg := range segs {
		name, args, hasArgs := strings.Cut(seg, "(")
		name = m.resolveAlias(name)
		if !hasArgs {
			segs[i] = name
			continue
		}
		args = strings.TrimSuffix(args, ")")
		var parts []string
		if args != "" {
			parts = splitTypeList(args)
		}
		for j, p := range parts {
			parts[j] = m.resolveAlias(strings.TrimSpace(p))
		}
		segs[i] = name + "(" + strings.Join(parts, ",") + ")"
	}
	return strings.Join(segs, "/")
}

// splitTypeList splits "A,Collection(B),C" at top-level commas.
func splitTypeList(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
