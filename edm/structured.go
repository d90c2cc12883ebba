package edm

import (
	"fmt"
)

// StructuredType is implemented by *EntityType and *ComplexType.
type StructuredType interface {
	SchemaElement
	Type
	BaseType() StructuredType
	IsAbstract() bool
	IsOpen() bool
	DeclaredProperties() []Property
	Properties() []Property
	FindProperty(name string) Property
	DeclaredNavigationProperties() []*NavigationProperty
	NavigationProperties() []*NavigationProperty
	AddStructuralProperty(name string, t TypeRef) (*StructuralProperty, error)
	AddNavigationProperty(info NavigationPropertyInfo) (*NavigationProperty, error)
	SetBaseType(base StructuredType) error
	SetAbstract(abstract bool) error
	SetOpen(open bool) error
	InheritsFrom(other StructuredType) bool
	core() *structured
}

type structured struct {
	named
	self     StructuredType
	baseType StructuredType
	abstract bool
	open     bool
	props    []Property
}

func (s *structured) core() *structured { return s }

// BaseType returns the direct base type or nil.
func (s *structured) BaseType() StructuredType { return s.baseType }

// IsAbstract reports whether the type is abstract.
func (s *structured) IsAbstract() bool { return s.abstract }

// IsOpen reports whether the type is open.
func (s *structured) IsOpen() bool { return s.open }

// SetBaseType sets the base type. A base type that would close a cycle is rejected.
func (s *structured) SetBaseType(base StructuredType) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if base != nil {
		if base.TypeKind() != s.self.TypeKind() {
			return fmt.Errorf("%w: base type %s of %s must be the same kind", ErrInvalidArgument, base.FullName(), s.FullName())
		}
		if base == s.self || base.InheritsFrom(s.self) {
			return fmt.Errorf("%w: base type %s of %s creates a cycle", ErrInvalidArgument, base.FullName(), s.FullName())
		}
	}
	s.baseType = base
	return nil
}

// SetAbstract marks the type as abstract.
func (s *structured) SetAbstract(abstract bool) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.abstract = abstract
	return nil
}

// SetOpen marks the type as open.
func (s *structured) SetOpen(open bool) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.open = open
	return nil
}

// ancestors returns the base type chain, nearest first. The walk stops at the first
// repeated type.
func (s *structured) ancestors() []StructuredType {
	var out []StructuredType
	seen := map[*structured]bool{s: true}
	for b := s.baseType; b != nil; b = b.BaseType() {
		if seen[b.core()] {
			break
		}
		seen[b.core()] = true
		out = append(out, b)
	}
	return out
}

// InheritsFrom reports whether other is a proper ancestor of the type.
func (s *structured) InheritsFrom(other StructuredType) bool {
	if other == nil {
		return false
	}
	for _, a := range s.ancestors() {
		if a == other {
			return true
		}
	}
	return false
}

// DeclaredProperties returns the properties declared on this type, in declaration order.
func (s *structured) DeclaredProperties() []Property {
	return append([]Property(nil), s.props...)
}

// Properties returns all properties, inherited ones first.
func (s *structured) Properties() []Property {
	chain := s.ancestors()
	var out []Property
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].core().props...)
	}
	return append(out, s.props...)
}

// FindProperty looks a property up on the type and its base types.
func (s *structured) FindProperty(name string) Property {
	for _, p := range s.props {
		if p.Name() == name {
			return p
		}
	}
	for _, a := range s.ancestors() {
		for _, p := range a.core().props {
			if p.Name() == name {
				return p
			}
		}
	}
	return nil
}

// DeclaredNavigationProperties returns the navigation properties declared on this type.
func (s *structured) DeclaredNavigationProperties() []*NavigationProperty {
	return navigationsOf(s.props)
}

// NavigationProperties returns all navigation properties, inherited ones first.
func (s *structured) NavigationProperties() []*NavigationProperty {
	return navigationsOf(s.Properties())
}

func navigationsOf(props []Property) []*NavigationProperty {
	var out []*NavigationProperty
	for _, p := range props {
		if n, ok := p.(*NavigationProperty); ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *structured) addProperty(p Property) error {
	if err := s.mutable(); err != nil {
		return err
	}
	for _, existing := range s.props {
		if existing.Name() == p.Name() {
			return fmt.Errorf("%w: property %s on %s", ErrDuplicateElement, p.Name(), s.FullName())
		}
	}
	s.props = append(s.props, p)
	return nil
}

// AddStructuralProperty declares a structural property.
func (s *structured) AddStructuralProperty(name string, t TypeRef) (*StructuralProperty, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: property name on %s", ErrNilArgument, s.FullName())
	}
	if t.Definition == nil {
		return nil, fmt.Errorf("%w: type of property %s on %s", ErrNilArgument, name, s.FullName())
	}
	p := &StructuralProperty{name: name, typ: t, declaring: s.self}
	if err := s.addProperty(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddNavigationProperty declares a navigation property.
func (s *structured) AddNavigationProperty(info NavigationPropertyInfo) (*NavigationProperty, error) {
	if info.Name == "" {
		return nil, fmt.Errorf("%w: navigation property name on %s", ErrNilArgument, s.FullName())
	}
	if info.Type.Definition == nil {
		return nil, fmt.Errorf("%w: type of navigation property %s on %s", ErrNilArgument, info.Name, s.FullName())
	}
	n := &NavigationProperty{
		name:           info.Name,
		typ:            info.Type,
		declaring:      s.self,
		containsTarget: info.ContainsTarget,
		partnerPath:    info.PartnerPath,
		onDelete:       info.OnDelete,
		constraints:    append([]ReferentialConstraint(nil), info.Constraints...),
	}
	if err := s.addProperty(n); err != nil {
		return nil, err
	}
	return n, nil
}

// EntityType is a structured type with a key and identity.
type EntityType struct {
	structured
	key       []PropertyRef
	hasStream bool
}

// NewEntityType creates an entity type that is not yet part of a model.
func NewEntityType(namespace, name string) *EntityType {
	t := &EntityType{}
	t.namespace, t.name = namespace, name
	t.self = t
	return t
}

// SchemaElementKind implements SchemaElement.
func (t *EntityType) SchemaElementKind() SchemaElementKind { return KindEntityType }

// TypeKind implements Type.
func (t *EntityType) TypeKind() TypeKind { return TypeKindEntity }

// HasStream reports whether the entity is a media entity.
func (t *EntityType) HasStream() bool { return t.hasStream }

// SetHasStream marks the entity type as a media entity.
func (t *EntityType) SetHasStream(v bool) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.hasStream = v
	return nil
}

// BaseEntityType returns the base type as an entity type.
func (t *EntityType) BaseEntityType() *EntityType {
	b, _ := t.baseType.(*EntityType)
	return b
}

// PropertyRef is one entry of an entity key: a property path plus optional alias.
type PropertyRef struct {
	Name  string
	Alias string
}

// SetKey declares the key from properties of the type.
func (t *EntityType) SetKey(props ...*StructuralProperty) error {
	refs := make([]PropertyRef, 0, len(props))
	for _, p := range props {
		if p == nil {
			return fmt.Errorf("%w: key property of %s", ErrNilArgument, t.FullName())
		}
		refs = append(refs, PropertyRef{Name: p.Name()})
	}
	return t.SetKeyRefs(refs)
}

// SetKeyRefs declares the key from property paths.
func (t *EntityType) SetKeyRefs(refs []PropertyRef) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.key = append([]PropertyRef(nil), refs...)
	return nil
}

// DeclaredKey returns the key declared on this type.
func (t *EntityType) DeclaredKey() []PropertyRef {
	return append([]PropertyRef(nil), t.key...)
}

// Key returns the effective key: the declared key or the nearest inherited one.
func (t *EntityType) Key() []PropertyRef {
	if len(t.key) > 0 {
		return t.DeclaredKey()
	}
	for _, a := range t.ancestors() {
		if et, ok := a.(*EntityType); ok && len(et.key) > 0 {
			return et.DeclaredKey()
		}
	}
	return nil
}

// KeyProperties resolves the effective key to properties. Unresolvable entries are
// returned as *UnresolvedProperty.
func (t *EntityType) KeyProperties() []Property {
	var out []Property
	for _, ref := range t.Key() {
		out = append(out, resolvePropertyPath(t, ParsePath(ref.Name)))
	}
	return out
}

func resolvePropertyPath(t StructuredType, path Path) Property {
	var cur = t
	var p Property
	for i, seg := range path {
		if cur == nil {
			return &UnresolvedProperty{name: seg, declaring: t}
		}
		p = cur.FindProperty(seg)
		if p == nil {
			return &UnresolvedProperty{name: seg, declaring: cur}
		}
		if i < len(path)-1 {
			cur = p.Type().StructuredDefinition()
		}
	}
	if p == nil {
		return &UnresolvedProperty{declaring: t}
	}
	return p
}

// ComplexType is a structured type without identity.
type ComplexType struct {
	structured
}

// NewComplexType creates a complex type that is not yet part of a model.
func NewComplexType(namespace, name string) *ComplexType {
	t := &ComplexType{}
	t.namespace, t.name = namespace, name
	t.self = t
	return t
}

// SchemaElementKind implements SchemaElement.
func (t *ComplexType) SchemaElementKind() SchemaElementKind { return KindComplexType }

// TypeKind implements Type.
func (t *ComplexType) TypeKind() TypeKind { return TypeKindComplex }

// PropertyKind classifies a Property.
type PropertyKind int

const (
	PropertyStructural PropertyKind = iota + 1
	PropertyNavigation
	PropertyUnresolved
)

// Property is a structural or navigation property, or a placeholder for one that could
// not be resolved.
type Property interface {
	Annotatable
	Name() string
	Type() TypeRef
	DeclaringType() StructuredType
	PropertyKind() PropertyKind
}

func propertyTarget(declaring StructuredType, name string) string {
	if declaring == nil {
		return name
	}
	return declaring.FullName() + "/" + name
}

// StructuralProperty is a property of primitive, enum, complex or collection type.
type StructuralProperty struct {
	located
	name         string
	typ          TypeRef
	declaring    StructuredType
	defaultValue string
	hasDefault   bool
}

func (p *StructuralProperty) Name() string                  { return p.name }
func (p *StructuralProperty) Type() TypeRef                 { return p.typ }
func (p *StructuralProperty) DeclaringType() StructuredType { return p.declaring }
func (p *StructuralProperty) PropertyKind() PropertyKind    { return PropertyStructural }
func (p *StructuralProperty) targetString() string          { return propertyTarget(p.declaring, p.name) }

// DefaultValue returns the declared default value literal.
func (p *StructuralProperty) DefaultValue() (string, bool) { return p.defaultValue, p.hasDefault }

// SetDefaultValue declares a default value literal.
func (p *StructuralProperty) SetDefaultValue(v string) error {
	if err := p.declaring.core().mutable(); err != nil {
		return err
	}
	p.defaultValue, p.hasDefault = v, true
	return nil
}

// OnDeleteAction is the action taken on related entities when the source is deleted.
type OnDeleteAction string

const (
	OnDeleteUnspecified OnDeleteAction = ""
	OnDeleteNone        OnDeleteAction = "None"
	OnDeleteCascade     OnDeleteAction = "Cascade"
	OnDeleteSetNull     OnDeleteAction = "SetNull"
	OnDeleteSetDefault  OnDeleteAction = "SetDefault"
)

// Valid reports whether the action is one of the defined values.
func (a OnDeleteAction) Valid() bool {
	switch a {
	case OnDeleteUnspecified, OnDeleteNone, OnDeleteCascade, OnDeleteSetNull, OnDeleteSetDefault:
		return true
	}
	return false
}

// ReferentialConstraint pairs a dependent property with the principal property it refers to.
type ReferentialConstraint struct {
	Property           string
	ReferencedProperty string
}

// Multiplicity of the target of a navigation property.
type Multiplicity int

const (
	MultiplicityOne Multiplicity = iota + 1
	MultiplicityZeroOrOne
	MultiplicityMany
)

// NavigationPropertyInfo describes a navigation property to add.
type NavigationPropertyInfo struct {
	Name           string
	Type           TypeRef
	ContainsTarget bool
	PartnerPath    Path
	OnDelete       OnDeleteAction
	Constraints    []ReferentialConstraint
}

// NavigationProperty relates an entity or complex type to an entity type.
type NavigationProperty struct {
	located
	name           string
	typ            TypeRef
	declaring      StructuredType
	containsTarget bool
	partnerPath    Path
	onDelete       OnDeleteAction
	constraints    []ReferentialConstraint
}

func (n *NavigationProperty) Name() string                  { return n.name }
func (n *NavigationProperty) Type() TypeRef                 { return n.typ }
func (n *NavigationProperty) DeclaringType() StructuredType { return n.declaring }
func (n *NavigationProperty) PropertyKind() PropertyKind    { return PropertyNavigation }
func (n *NavigationProperty) targetString() string          { return propertyTarget(n.declaring, n.name) }

// ContainsTarget reports whether the target entities are contained.
func (n *NavigationProperty) ContainsTarget() bool { return n.containsTarget }

// OnDelete returns the declared delete action.
func (n *NavigationProperty) OnDelete() OnDeleteAction { return n.onDelete }

// ReferentialConstraints returns the declared constraints.
func (n *NavigationProperty) ReferentialConstraints() []ReferentialConstraint {
	return append([]ReferentialConstraint(nil), n.constraints...)
}

// TargetType returns the entity type at the other end, or nil if it is not resolved.
func (n *NavigationProperty) TargetType() *EntityType {
	return n.typ.EntityDefinition()
}

// Multiplicity derives the target multiplicity from the type reference.
func (n *NavigationProperty) Multiplicity() Multiplicity {
	switch {
	case n.typ.IsCollection():
		return MultiplicityMany
	case n.typ.Nullable:
		return MultiplicityZeroOrOne
	}
	return MultiplicityOne
}

// PartnerPath returns the declared partner path.
func (n *NavigationProperty) PartnerPath() Path {
	return append(Path(nil), n.partnerPath...)
}

// SetPartnerPath declares the partner path without touching the partner's own path.
func (n *NavigationProperty) SetPartnerPath(p Path) error {
	if err := n.declaring.core().mutable(); err != nil {
		return err
	}
	n.partnerPath = append(Path(nil), p...)
	return nil
}

// UnresolvedProperty stands in for a property name that does not exist on its type.
type UnresolvedProperty struct {
	name      string
	declaring StructuredType
}

// NewUnresolvedProperty creates a placeholder for a property that could not be found.
func NewUnresolvedProperty(declaring StructuredType, name string) *UnresolvedProperty {
	return &UnresolvedProperty{name: name, declaring: declaring}
}

func (p *UnresolvedProperty) Name() string                  { return p.name }
func (p *UnresolvedProperty) Type() TypeRef                 { return TypeRef{Definition: &BadType{Name: p.name}} }
func (p *UnresolvedProperty) DeclaringType() StructuredType { return p.declaring }
func (p *UnresolvedProperty) PropertyKind() PropertyKind    { return PropertyUnresolved }
func (p *UnresolvedProperty) targetString() string          { return propertyTarget(p.declaring, p.name) }

// UnresolvedNavigationPropertyPath is the navigation property of a binding whose path
// could not be followed, for example because it traverses a non-containment navigation
// property before its last segment.
type UnresolvedNavigationPropertyPath struct {
	path      Path
	declaring StructuredType
}

// NewUnresolvedNavigationPropertyPath creates the sentinel for an unfollowable binding path.
func NewUnresolvedNavigationPropertyPath(declaring StructuredType, path Path) *UnresolvedNavigationPropertyPath {
	return &UnresolvedNavigationPropertyPath{path: append(Path(nil), path...), declaring: declaring}
}

func (p *UnresolvedNavigationPropertyPath) Name() string { return p.path.String() }
func (p *UnresolvedNavigationPropertyPath) Type() TypeRef {
	return TypeRef{Definition: &BadType{Name: p.path.String()}}
}
func (p *UnresolvedNavigationPropertyPath) DeclaringType() StructuredType { return p.declaring }
func (p *UnresolvedNavigationPropertyPath) PropertyKind() PropertyKind    { return PropertyUnresolved }
func (p *UnresolvedNavigationPropertyPath) targetString() string {
	return propertyTarget(p.declaring, p.path.String())
}

// Path returns the path as written.
func (p *UnresolvedNavigationPropertyPath) Path() Path { return append(Path(nil), p.path...) }
