package edm

import (
	"fmt"
)

// EntityContainer groups the entity sets, singletons and operation imports of a service.
type EntityContainer struct {
	named
	extends  *EntityContainer
	elements []ContainerElement
}

// NewEntityContainer creates an entity container.
func NewEntityContainer(namespace, name string) *EntityContainer {
	return &EntityContainer{named: named{namespace: namespace, name: name}}
}

// SchemaElementKind implements SchemaElement.
func (c *EntityContainer) SchemaElementKind() SchemaElementKind { return KindEntityContainer }

// Extends returns the container this one extends, or nil.
func (c *EntityContainer) Extends() *EntityContainer { return c.extends }

// SetExtends makes c extend base; lookups fall back to base.
func (c *EntityContainer) SetExtends(base *EntityContainer) error {
	if err := c.mutable(); err != nil {
		return err
	}
	if base == c {
		return fmt.Errorf("%w: container %s cannot extend itself", ErrInvalidArgument, c.FullName())
	}
	c.extends = base
	return nil
}

// Elements returns the container children in declaration order.
func (c *EntityContainer) Elements() []ContainerElement {
	return append([]ContainerElement(nil), c.elements...)
}

// EntitySets returns the declared entity sets.
func (c *EntityContainer) EntitySets() []*EntitySet {
	var out []*EntitySet
	for _, e := range c.elements {
		if s, ok := e.(*EntitySet); ok {
			out = append(out, s)
		}
	}
	return out
}

// Singletons returns the declared singletons.
func (c *EntityContainer) Singletons() []*Singleton {
	var out []*Singleton
	for _, e := range c.elements {
		if s, ok := e.(*Singleton); ok {
			out = append(out, s)
		}
	}
	return out
}

// OperationImports returns the declared action and function imports.
func (c *EntityContainer) OperationImports() []*OperationImport {
	var out []*OperationImport
	for _, e := range c.elements {
		if s, ok := e.(*OperationImport); ok {
			out = append(out, s)
		}
	}
	return out
}

// FindElement returns the first child with the given name, looking into extended
// containers.
func (c *EntityContainer) FindElement(name string) ContainerElement {
	seen := map[*EntityContainer]bool{}
	for cur := c; cur != nil && !seen[cur]; cur = cur.extends {
		seen[cur] = true
		for _, e := range cur.elements {
			if e.Name() == name {
				return e
			}
		}
	}
	return nil
}

// FindEntitySet returns the entity set with the given name.
func (c *EntityContainer) FindEntitySet(name string) *EntitySet {
	s, _ := c.FindElement(name).(*EntitySet)
	return s
}

// FindSingleton returns the singleton with the given name.
func (c *EntityContainer) FindSingleton(name string) *Singleton {
	s, _ := c.FindElement(name).(*Singleton)
	return s
}

// FindOperationImports returns all imports with the given name.
func (c *EntityContainer) FindOperationImports(name string) []*OperationImport {
	var out []*OperationImport
	for _, e := range c.elements {
		if oi, ok := e.(*OperationImport); ok && oi.name == name {
			out = append(out, oi)
		}
	}
	return out
}

// FindNavigationSource returns the entity set or singleton with the given name.
func (c *EntityContainer) FindNavigationSource(name string) NavigationSource {
	if ns, ok := c.FindElement(name).(NavigationSource); ok {
		return ns
	}
	return nil
}

func (c *EntityContainer) add(e ContainerElement) error {
	if err := c.mutable(); err != nil {
		return err
	}
	c.elements = append(c.elements, e)
	return nil
}

// AddEntitySet declares an entity set of the given entity type. Names are not checked for
// uniqueness here; validation reports duplicates.
func (c *EntityContainer) AddEntitySet(name string, t Type) (*EntitySet, error) {
	if name == "" || t == nil {
		return nil, fmt.Errorf("%w: entity set in %s", ErrNilArgument, c.FullName())
	}
	s := &EntitySet{sourceBase: sourceBase{name: name, typ: t, container: c}, includeInServiceDocument: true}
	s.self = s
	if err := c.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddSingleton declares a singleton of the given entity type.
func (c *EntityContainer) AddSingleton(name string, t Type) (*Singleton, error) {
	if name == "" || t == nil {
		return nil, fmt.Errorf("%w: singleton in %s", ErrNilArgument, c.FullName())
	}
	s := &Singleton{sourceBase: sourceBase{name: name, typ: t, container: c}}
	s.self = s
	if err := c.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddActionImport imports an unbound action.
func (c *EntityContainer) AddActionImport(name string, action *Operation) (*OperationImport, error) {
	if name == "" || action == nil {
		return nil, fmt.Errorf("%w: action import in %s", ErrNilArgument, c.FullName())
	}
	if action.IsFunction() {
		return nil, fmt.Errorf("%w: %s is not an action", ErrInvalidArgument, action.FullName())
	}
	oi := &OperationImport{name: name, container: c, operationName: action.FullName(), operation: action}
	if err := c.add(oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// AddFunctionImport imports an unbound function (all of its overloads).
func (c *EntityContainer) AddFunctionImport(name string, function *Operation) (*OperationImport, error) {
	if name == "" || function == nil {
		return nil, fmt.Errorf("%w: function import in %s", ErrNilArgument, c.FullName())
	}
	if !function.IsFunction() {
		return nil, fmt.Errorf("%w: %s is not a function", ErrInvalidArgument, function.FullName())
	}
	oi := &OperationImport{name: name, container: c, function: true, operationName: function.FullName(), operation: function}
	if err := c.add(oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// AddUnresolvedOperationImport declares an import whose operation could not be found.
func (c *EntityContainer) AddUnresolvedOperationImport(name, operationName string, function bool) (*OperationImport, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: operation import in %s", ErrNilArgument, c.FullName())
	}
	oi := &OperationImport{name: name, container: c, function: function, operationName: operationName}
	if err := c.add(oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// ResolveNavigationSourcePath resolves a binding target such as "Set", "Root/SetB" or
// "NS.Other/Set". The first segment names an entity set or singleton, optionally preceded
// by a qualified container name; every further segment must be a containment navigation
// property (type-cast segments are allowed in between) and yields a *ContainedEntitySet.
func (c *EntityContainer) ResolveNavigationSourcePath(p Path) (NavigationSource, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty navigation source path", ErrUnresolvedPath)
	}
	container := c
	segs := p
	if IsQualifiedName(segs[0]) && len(segs) > 1 {
		container = c.findContainer(segs[0])
		if container == nil {
			return nil, fmt.Errorf("%w: no entity container %s", ErrUnresolvedPath, segs[0])
		}
		segs = segs[1:]
	}
	root := container.FindNavigationSource(segs[0])
	if root == nil {
		return nil, fmt.Errorf("%w: no entity set or singleton %s in %s", ErrUnresolvedPath, segs[0], container.FullName())
	}
	var cur NavigationSource = root
	var curType StructuredType = root.EntityType()
	for _, seg := range segs[1:] {
		if curType == nil {
			return nil, fmt.Errorf("%w: %s has no entity type", ErrUnresolvedPath, cur.Name())
		}
		if IsQualifiedName(seg) {
			cast := findVisibleStructuredType(curType, curType, seg)
			if cast == nil {
				return nil, fmt.Errorf("%w: %s does not derive from %s", ErrUnresolvedPath, seg, curType.FullName())
			}
			curType = cast
			continue
		}
		nav, ok := findPropertyInHierarchy(curType, curType, seg).(*NavigationProperty)
		if !ok || !nav.ContainsTarget() {
			return nil, fmt.Errorf("%w: %s is not a containment navigation property of %s", ErrUnresolvedPath, seg, curType.FullName())
		}
		cur = NewContainedEntitySet(cur, nav)
		curType = nav.TargetType()
	}
	return cur, nil
}

func (c *EntityContainer) findContainer(fullName string) *EntityContainer {
	if c.FullName() == fullName {
		return c
	}
	if c.model == nil {
		return nil
	}
	full := c.model.resolveAlias(fullName)
	for _, m := range c.model.visibleModels() {
		if ec := m.EntityContainer(); ec != nil && ec.FullName() == full {
			return ec
		}
	}
	return nil
}

// ContainerElementKind identifies the variant of a ContainerElement.
type ContainerElementKind int

const (
	ContainerEntitySet ContainerElementKind = iota + 1
	ContainerSingleton
	ContainerActionImport
	ContainerFunctionImport
)

// ContainerElement is a child of an entity container.
type ContainerElement interface {
	Annotatable
	Name() string
	Container() *EntityContainer
	ContainerElementKind() ContainerElementKind
	Location() Location
}

// NavigationSource is an entity set, a singleton, a contained entity set, or a placeholder
// for a binding target that could not be resolved.
type NavigationSource interface {
	Annotatable
	Name() string
	Path() Path
	Type() Type
	EntityType() *EntityType
	NavigationPropertyBindings() []*NavigationPropertyBinding
	FindNavigationTarget(nav Property, bindingPath Path) NavigationSource
}

// NavigationPropertyBinding states which navigation source a navigation property reached
// through Path leads to.
type NavigationPropertyBinding struct {
	located
	path       Path
	navigation Property
	target     NavigationSource
}

// Path returns the binding path, for example ["EntityA","EntityAToB"].
func (b *NavigationPropertyBinding) Path() Path { return append(Path(nil), b.path...) }

// NavigationProperty returns the bound navigation property. It is an
// *UnresolvedNavigationPropertyPath when the path could not be followed.
func (b *NavigationPropertyBinding) NavigationProperty() Property { return b.navigation }

// Target returns the target navigation source.
func (b *NavigationPropertyBinding) Target() NavigationSource { return b.target }

type sourceBase struct {
	located
	self      NavigationSource
	name      string
	typ       Type
	container *EntityContainer
	bindings  []*NavigationPropertyBinding
}

func (s *sourceBase) Name() string                { return s.name }
func (s *sourceBase) Path() Path                  { return Path{s.name} }
func (s *sourceBase) Type() Type                  { return s.typ }
func (s *sourceBase) Container() *EntityContainer { return s.container }
func (s *sourceBase) targetString() string        { return s.container.FullName() + "/" + s.name }

func (s *sourceBase) EntityType() *EntityType {
	et, _ := s.typ.(*EntityType)
	return et
}

func (s *sourceBase) NavigationPropertyBindings() []*NavigationPropertyBinding {
	return append([]*NavigationPropertyBinding(nil), s.bindings...)
}

// AddNavigationTarget binds nav to target. The binding path is the navigation property
// name, preceded by a type cast when nav is declared on a type derived from the source type.
func (s *sourceBase) AddNavigationTarget(nav *NavigationProperty, target NavigationSource) (*NavigationPropertyBinding, error) {
	if nav == nil {
		return nil, fmt.Errorf("%w: navigation property bound in %s", ErrNilArgument, s.name)
	}
	path := Path{nav.Name()}
	if st, ok := s.typ.(StructuredType); ok && nav.declaring != st && !st.InheritsFrom(nav.declaring) {
		path = Path{nav.declaring.FullName(), nav.Name()}
	}
	return s.AddNavigationTargetWithPath(nav, path, target)
}

// AddNavigationTargetWithPath binds the navigation property reached through path to target.
func (s *sourceBase) AddNavigationTargetWithPath(nav Property, path Path, target NavigationSource) (*NavigationPropertyBinding, error) {
	if nav == nil || target == nil || len(path) == 0 {
		return nil, fmt.Errorf("%w: navigation property binding in %s", ErrNilArgument, s.name)
	}
	if err := s.container.mutable(); err != nil {
		return nil, err
	}
	b := &NavigationPropertyBinding{path: append(Path(nil), path...), navigation: nav, target: target}
	s.bindings = append(s.bindings, b)
	return b, nil
}

// FindNavigationTarget returns the target bound for nav (and bindingPath, when given). An
// unbound containment navigation property yields its contained entity set.
func (s *sourceBase) FindNavigationTarget(nav Property, bindingPath Path) NavigationSource {
	return findNavigationTarget(s.self, s.bindings, nav, bindingPath)
}

func findNavigationTarget(src NavigationSource, bindings []*NavigationPropertyBinding, nav Property, bindingPath Path) NavigationSource {
	for _, b := range bindings {
		if b.navigation == nav && (bindingPath == nil || b.path.Equal(bindingPath)) {
			return b.target
		}
	}
	if n, ok := nav.(*NavigationProperty); ok && n.ContainsTarget() {
		return NewContainedEntitySet(src, n)
	}
	return nil
}

// EntitySet is a collection of entities addressable from the container.
type EntitySet struct {
	sourceBase
	includeInServiceDocument bool
}

// ContainerElementKind implements ContainerElement.
func (s *EntitySet) ContainerElementKind() ContainerElementKind { return ContainerEntitySet }

// IncludeInServiceDocument reports whether the set is advertised in the service document.
func (s *EntitySet) IncludeInServiceDocument() bool { return s.includeInServiceDocument }

// SetIncludeInServiceDocument controls whether the set is advertised in the service document.
func (s *EntitySet) SetIncludeInServiceDocument(v bool) error {
	if err := s.container.mutable(); err != nil {
		return err
	}
	s.includeInServiceDocument = v
	return nil
}

// Singleton is a single entity addressable from the container.
type Singleton struct {
	sourceBase
	nullable bool
}

// ContainerElementKind implements ContainerElement.
func (s *Singleton) ContainerElementKind() ContainerElementKind { return ContainerSingleton }

// IsNullable reports whether the singleton may be null.
func (s *Singleton) IsNullable() bool { return s.nullable }

// SetNullable controls whether the singleton may be null.
func (s *Singleton) SetNullable(v bool) error {
	if err := s.container.mutable(); err != nil {
		return err
	}
	s.nullable = v
	return nil
}

// ContainedEntitySet is the navigation source reached through a containment navigation
// property. Its path is absolute: the root entity set or singleton followed by the
// containment chain.
type ContainedEntitySet struct {
	parent     NavigationSource
	navigation *NavigationProperty
	path       Path
	bindings   []*NavigationPropertyBinding
}

// NewContainedEntitySet creates the contained entity set of nav under parent.
func NewContainedEntitySet(parent NavigationSource, nav *NavigationProperty) *ContainedEntitySet {
	path := append(parent.Path(), nav.Name())
	return &ContainedEntitySet{parent: parent, navigation: nav, path: path}
}

func (s *ContainedEntitySet) Name() string  { return s.navigation.Name() }
func (s *ContainedEntitySet) Path() Path    { return append(Path(nil), s.path...) }
func (s *ContainedEntitySet) Type() Type    { return s.navigation.Type().Definition }
func (s *ContainedEntitySet) EntityType() *EntityType {
	return s.navigation.TargetType()
}

// Parent returns the navigation source the containment navigation starts from.
func (s *ContainedEntitySet) Parent() NavigationSource { return s.parent }

// NavigationProperty returns the containment navigation property.
func (s *ContainedEntitySet) NavigationProperty() *NavigationProperty { return s.navigation }

func (s *ContainedEntitySet) NavigationPropertyBindings() []*NavigationPropertyBinding {
	return append([]*NavigationPropertyBinding(nil), s.bindings...)
}

func (s *ContainedEntitySet) FindNavigationTarget(nav Property, bindingPath Path) NavigationSource {
	return findNavigationTarget(s, s.bindings, nav, bindingPath)
}

func (s *ContainedEntitySet) targetString() string {
	root := s.parent
	for {
		c, ok := root.(*ContainedEntitySet)
		if !ok {
			break
		}
		root = c.parent
	}
	if ce, ok := root.(ContainerElement); ok {
		return ce.Container().FullName() + "/" + s.path.String()
	}
	return s.path.String()
}

// UnresolvedNavigationSource stands in for a binding target that could not be resolved.
type UnresolvedNavigationSource struct {
	path Path
}

// NewUnresolvedNavigationSource creates the placeholder for an unresolvable target path.
func NewUnresolvedNavigationSource(path Path) *UnresolvedNavigationSource {
	return &UnresolvedNavigationSource{path: append(Path(nil), path...)}
}

func (s *UnresolvedNavigationSource) Name() string {
	if len(s.path) == 0 {
		return ""
	}
	return s.path[len(s.path)-1]
}
func (s *UnresolvedNavigationSource) Path() Path              { return append(Path(nil), s.path...) }
func (s *UnresolvedNavigationSource) Type() Type              { return &BadType{Name: s.path.String()} }
func (s *UnresolvedNavigationSource) EntityType() *EntityType { return nil }
func (s *UnresolvedNavigationSource) NavigationPropertyBindings() []*NavigationPropertyBinding {
	return nil
}
func (s *UnresolvedNavigationSource) FindNavigationTarget(Property, Path) NavigationSource {
	return nil
}
func (s *UnresolvedNavigationSource) targetString() string { return s.path.String() }

// OperationImport exposes an unbound action or function through the container.
type OperationImport struct {
	located
	name                     string
	container                *EntityContainer
	function                 bool
	operationName            string
	operation                *Operation
	entitySet                string
	includeInServiceDocument bool
}

func (oi *OperationImport) Name() string                { return oi.name }
func (oi *OperationImport) Container() *EntityContainer { return oi.container }
func (oi *OperationImport) targetString() string        { return oi.container.FullName() + "/" + oi.name }

// ContainerElementKind implements ContainerElement.
func (oi *OperationImport) ContainerElementKind() ContainerElementKind {
	if oi.function {
		return ContainerFunctionImport
	}
	return ContainerActionImport
}

// IsFunctionImport reports whether a function is imported.
func (oi *OperationImport) IsFunctionImport() bool { return oi.function }

// OperationName returns the qualified name of the imported operation.
func (oi *OperationImport) OperationName() string { return oi.operationName }

// Operation returns the imported operation (the first overload for functions), or nil if
// it could not be resolved.
func (oi *OperationImport) Operation() *Operation { return oi.operation }

// EntitySet returns the entity set path of the result, if declared.
func (oi *OperationImport) EntitySet() string { return oi.entitySet }

// SetEntitySet declares the entity set (or path to one) of the result.
func (oi *OperationImport) SetEntitySet(path string) error {
	if err := oi.container.mutable(); err != nil {
		return err
	}
	oi.entitySet = path
	return nil
}

// IncludeInServiceDocument reports whether a function import is advertised in the service
// document.
func (oi *OperationImport) IncludeInServiceDocument() bool { return oi.includeInServiceDocument }

// SetIncludeInServiceDocument controls whether a function import is advertised.
func (oi *OperationImport) SetIncludeInServiceDocument(v bool) error {
	if err := oi.container.mutable(); err != nil {
		return err
	}
	oi.includeInServiceDocument = v
	return nil
}
