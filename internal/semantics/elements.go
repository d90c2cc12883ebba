package semantics

import (
	"errors"
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
)

const (
	unresolved = iota
	inProgress
	resolved
)

// builder resolves one document into one model.
type builder struct {
	r    *resolver
	doc  *ast.Document
	m    *edm.Model
	errs edm.Errors

	structured  []*structuredNode
	byType      map[edm.StructuredType]*structuredNode
	terms       map[*ast.Term]*edm.Term
	operations  map[*ast.Operation]*edm.Operation
	containers  map[*ast.EntityContainer]*edm.EntityContainer
	enums       map[*ast.EnumType]*edm.EnumType
	typeDefs    map[*ast.TypeDefinition]*edm.TypeDefinition
	unknownTerm map[string]*edm.Term
	// sources remembers the navigation source built for each container element.
	sources map[*ast.ContainerElement]bindable
	imports map[*ast.ContainerElement]*edm.OperationImport
}

type structuredNode struct {
	node   *ast.StructuredType
	schema *ast.Schema
	typ    edm.StructuredType
	state  int
	props  map[*ast.Property]edm.Property
}

// bindable is an entity set or singleton.
type bindable interface {
	edm.NavigationSource
	AddNavigationTargetWithPath(nav edm.Property, path edm.Path, target edm.NavigationSource) (*edm.NavigationPropertyBinding, error)
}

func (r *resolver) newBuilder(doc *ast.Document) *builder {
	return &builder{
		r:           r,
		doc:         doc,
		m:           edm.NewModel(),
		byType:      map[edm.StructuredType]*structuredNode{},
		terms:       map[*ast.Term]*edm.Term{},
		operations:  map[*ast.Operation]*edm.Operation{},
		containers:  map[*ast.EntityContainer]*edm.EntityContainer{},
		enums:       map[*ast.EnumType]*edm.EnumType{},
		typeDefs:    map[*ast.TypeDefinition]*edm.TypeDefinition{},
		unknownTerm: map[string]*edm.Term{},
		sources:     map[*ast.ContainerElement]bindable{},
		imports:     map[*ast.ContainerElement]*edm.OperationImport{},
	}
}

func (b *builder) errorf(code edm.ErrorCode, loc edm.Location, format string, args ...any) {
	b.errs = append(b.errs, edm.NewError(code, loc, format, args...))
}

// build runs the resolution phases. Element shells are declared before references are
// loaded so that a document referencing this one back can already see its names.
func (b *builder) build() {
	if b.doc.Version != "" {
		_ = b.m.SetVersion(b.doc.Version)
	}
	b.declare()
	b.resolveReferences()
	for _, sn := range b.structured {
		b.resolveBaseType(sn)
	}
	for _, sn := range b.structured {
		b.resolveProperties(sn)
	}
	for _, sn := range b.structured {
		b.checkPartners(sn)
	}
	b.forEachElement(func(_ *ast.Schema, el ast.Element) {
		switch n := el.(type) {
		case *ast.Term:
			if term := b.terms[n]; term != nil {
				b.resolveTerm(n, term)
			}
		case *ast.Operation:
			if op := b.operations[n]; op != nil {
				b.resolveOperation(n, op)
			}
		}
	})
	b.forEachContainer(b.resolveContainer)
	b.forEachContainer(b.resolveBindings)
	b.resolveAnnotations()
	for _, e := range b.errs {
		b.m.RecordError(e)
	}
	b.m.MarkImmutable()
	b.r.logger.Debug("Resolved document", "source", b.doc.Source, "errors", len(b.errs))
}

func (b *builder) forEachElement(visit func(*ast.Schema, ast.Element)) {
	for _, s := range b.doc.Schemas {
		for _, el := range s.Elements {
			visit(s, el)
		}
	}
}

// forEachContainer visits the accepted containers in document order.
func (b *builder) forEachContainer(visit func(*ast.EntityContainer, *edm.EntityContainer)) {
	b.forEachElement(func(_ *ast.Schema, el ast.Element) {
		if ac, ok := el.(*ast.EntityContainer); ok {
			if c := b.containers[ac]; c != nil {
				visit(ac, c)
			}
		}
	})
}

// declare adds schemas and one shell per schema element.
func (b *builder) declare() {
	for _, s := range b.doc.Schemas {
		if err := b.m.AddSchema(s.Namespace, s.Alias); err != nil {
			b.errorf(edm.ErrInvalidQualifiedName, s.Loc, "%v", err)
			continue
		}
		for _, el := range s.Elements {
			b.declareElement(s, el)
		}
	}
}

func (b *builder) declareElement(s *ast.Schema, el ast.Element) {
	ns := s.Namespace
	var e edm.SchemaElement
	switch n := el.(type) {
	case *ast.StructuredType:
		var st edm.StructuredType
		if n.Entity {
			et := edm.NewEntityType(ns, n.Name)
			_ = et.SetHasStream(n.HasStream)
			st = et
		} else {
			st = edm.NewComplexType(ns, n.Name)
		}
		_ = st.SetAbstract(n.Abstract)
		_ = st.SetOpen(n.Open)
		e = st
	case *ast.EnumType:
		e = b.declareEnum(ns, n)
	case *ast.TypeDefinition:
		underlying, ok := edm.BuiltinType(n.Underlying.Name)
		if !ok || underlying.TypeKind() != edm.TypeKindPrimitive {
			b.errorf(edm.ErrInvalidUnderlyingType, n.Loc, "type definition %s.%s: %s is not a primitive type", ns, n.Name, n.Underlying.Name)
			underlying = edm.StringType
		}
		e = edm.NewTypeDefinition(ns, n.Name, underlying, facetsOf(n.Underlying))
	case *ast.Term:
		e = edm.NewTerm(ns, n.Name, edm.NewTypeRef(edm.UntypedType, true))
	case *ast.Operation:
		if n.Function {
			e = edm.NewFunction(ns, n.Name, n.IsBound, n.IsComposable)
		} else {
			e = edm.NewAction(ns, n.Name, n.IsBound)
		}
	case *ast.EntityContainer:
		e = edm.NewEntityContainer(ns, n.Name)
	default:
		return
	}
	setLocation(e, el.Location())
	if err := b.m.AddElement(e); err != nil {
		switch {
		case errors.Is(err, edm.ErrMultipleContainers):
			b.errorf(edm.ErrMultipleContainersSchema, el.Location(), "%v", err)
		default:
			b.errorf(edm.ErrAlreadyDefined, el.Location(), "%v", err)
		}
		return
	}
	switch n := el.(type) {
	case *ast.StructuredType:
		sn := &structuredNode{node: n, schema: s, typ: e.(edm.StructuredType), props: map[*ast.Property]edm.Property{}}
		b.structured = append(b.structured, sn)
		b.byType[sn.typ] = sn
	case *ast.EnumType:
		b.enums[n] = e.(*edm.EnumType)
	case *ast.TypeDefinition:
		b.typeDefs[n] = e.(*edm.TypeDefinition)
	case *ast.Term:
		b.terms[n] = e.(*edm.Term)
	case *ast.Operation:
		b.operations[n] = e.(*edm.Operation)
	case *ast.EntityContainer:
		b.containers[n] = e.(*edm.EntityContainer)
	}
}

func (b *builder) declareEnum(ns string, n *ast.EnumType) *edm.EnumType {
	var underlying *edm.PrimitiveType
	if n.UnderlyingType != "" {
		p, ok := edm.BuiltinType(n.UnderlyingType)
		if !ok || !p.IsIntegral() {
			b.errorf(edm.ErrInvalidUnderlyingType, n.Loc, "enum %s.%s: %s is not an integral type", ns, n.Name, n.UnderlyingType)
		} else {
			underlying = p
		}
	}
	e := edm.NewEnumType(ns, n.Name, underlying, n.IsFlags)
	for _, am := range n.Members {
		var (
			member *edm.EnumMember
			err    error
		)
		if am.Value != nil {
			member, err = e.AddMember(am.Name, *am.Value)
		} else {
			member, err = e.AddMemberAuto(am.Name)
		}
		if err != nil {
			b.errorf(edm.ErrDuplicateEnumMember, am.Loc, "%v", err)
			continue
		}
		member.SetLocation(am.Loc)
	}
	return e
}

type locatable interface {
	SetLocation(edm.Location)
}

func setLocation(e any, loc edm.Location) {
	if l, ok := e.(locatable); ok {
		l.SetLocation(loc)
	}
}

func facetsOf(t ast.TypeRef) edm.Facets {
	return edm.Facets{MaxLength: t.MaxLength, Precision: t.Precision, Scale: t.Scale, SRID: t.SRID, Unicode: t.Unicode}
}

// typeRef resolves a type reference. Unknown names become a *edm.BadType and are reported.
func (b *builder) typeRef(t ast.TypeRef, loc edm.Location) edm.TypeRef {
	name := t.Name
	collection := false
	if inner, ok := strings.CutPrefix(name, "Collection("); ok && strings.HasSuffix(inner, ")") {
		name, collection = strings.TrimSuffix(inner, ")"), true
	}
	def := b.m.FindType(name)
	if def == nil {
		b.errorf(edm.ErrBadUnresolvedType, loc, "type %s cannot be resolved", name)
		def = &edm.BadType{Name: b.m.ResolveAlias(name)}
	}
	ref := edm.TypeRef{Definition: def, Nullable: t.Nullable, Facets: facetsOf(t)}
	if collection {
		return edm.CollectionOf(ref)
	}
	return ref
}

// resolveBaseType sets the base type of a structured type, resolving the base first. A type
// met again while its own base is being resolved closes a cycle; it keeps no base type.
func (b *builder) resolveBaseType(sn *structuredNode) {
	switch sn.state {
	case resolved:
		return
	case inProgress:
		b.errorf(edm.ErrCycleInTypeHierarchy, sn.node.Loc, "type %s inherits from itself", sn.typ.FullName())
		return
	}
	sn.state = inProgress
	defer func() { sn.state = resolved }()
	if sn.node.BaseType == "" {
		return
	}
	base, ok := b.m.FindType(sn.node.BaseType).(edm.StructuredType)
	if !ok {
		b.errorf(edm.ErrBadUnresolvedType, sn.node.Loc, "base type %s of %s cannot be resolved", sn.node.BaseType, sn.typ.FullName())
		return
	}
	if base.TypeKind() != sn.typ.TypeKind() {
		b.errorf(edm.ErrInvalidTypeKindForBaseType, sn.node.Loc, "base type %s of %s must be of the same kind", base.FullName(), sn.typ.FullName())
		return
	}
	if bn := b.byType[base]; bn != nil {
		if bn.state == inProgress {
			b.errorf(edm.ErrCycleInTypeHierarchy, sn.node.Loc, "type %s inherits from itself", sn.typ.FullName())
			return
		}
		b.resolveBaseType(bn)
	}
	if err := sn.typ.SetBaseType(base); err != nil {
		b.errorf(edm.ErrCycleInTypeHierarchy, sn.node.Loc, "%v", err)
	}
}

func (b *builder) resolveProperties(sn *structuredNode) {
	for _, ap := range sn.node.Properties {
		var (
			p   edm.Property
			err error
		)
		t := b.typeRef(ap.Type, ap.Loc)
		if ap.Navigation {
			if t.EntityDefinition() == nil && !t.IsBad() {
				b.errorf(edm.ErrNavigationPropertyTypeNotEntity, ap.Loc, "navigation property %s of %s must target an entity type", ap.Name, sn.typ.FullName())
			}
			info := edm.NavigationPropertyInfo{
				Name:           ap.Name,
				Type:           t,
				ContainsTarget: ap.ContainsTarget,
				PartnerPath:    edm.ParsePath(ap.Partner),
				OnDelete:       edm.OnDeleteAction(ap.OnDelete),
			}
			for _, rc := range ap.ReferentialConstraints {
				info.Constraints = append(info.Constraints, edm.ReferentialConstraint{Property: rc.Property, ReferencedProperty: rc.ReferencedProperty})
			}
			p, err = sn.typ.AddNavigationProperty(info)
		} else {
			var sp *edm.StructuralProperty
			sp, err = sn.typ.AddStructuralProperty(ap.Name, t)
			if err == nil && ap.DefaultValue != nil {
				_ = sp.SetDefaultValue(*ap.DefaultValue)
			}
			p = sp
		}
		if err != nil {
			b.errorf(edm.ErrDuplicateProperty, ap.Loc, "%v", err)
			continue
		}
		setLocation(p, ap.Loc)
		sn.props[ap] = p
	}
	if et, ok := sn.typ.(*edm.EntityType); ok && len(sn.node.Key) > 0 {
		refs := make([]edm.PropertyRef, len(sn.node.Key))
		for i, k := range sn.node.Key {
			refs[i] = edm.PropertyRef{Name: k.Name, Alias: k.Alias}
		}
		_ = et.SetKeyRefs(refs)
	}
}

func (b *builder) checkPartners(sn *structuredNode) {
	for _, ap := range sn.node.Properties {
		nav, ok := sn.props[ap].(*edm.NavigationProperty)
		if !ok || ap.Partner == "" {
			continue
		}
		if _, err := nav.ResolvePartner(); err != nil {
			b.errorf(edm.ErrBadUnresolvedNavigationPartner, ap.Loc, "%v", err)
		}
	}
}

func (b *builder) resolveTerm(at *ast.Term, term *edm.Term) {
	_ = term.SetType(b.typeRef(at.Type, at.Loc))
	if at.DefaultValue != nil {
		_ = term.SetDefaultValue(*at.DefaultValue)
	}
	if len(at.AppliesTo) > 0 {
		_ = term.SetAppliesTo(at.AppliesTo...)
	}
	if at.BaseTerm != "" {
		_ = term.SetBaseTerm(b.m.ResolveAlias(at.BaseTerm))
	}
}

func (b *builder) resolveOperation(ao *ast.Operation, op *edm.Operation) {
	for _, ap := range ao.Parameters {
		p, err := op.AddParameter(ap.Name, b.typeRef(ap.Type, ap.Loc))
		if err != nil {
			b.errorf(edm.ErrDuplicateParameter, ap.Loc, "%v", err)
			continue
		}
		p.SetLocation(ap.Loc)
	}
	if ao.ReturnType != nil {
		if rt, err := op.SetReturnType(b.typeRef(ao.ReturnType.Type, ao.ReturnType.Loc)); err == nil {
			rt.SetLocation(ao.ReturnType.Loc)
		}
	}
	if ao.EntitySetPath != "" {
		_ = op.SetEntitySetPath(edm.ParsePath(ao.EntitySetPath))
	}
}

func (b *builder) resolveContainer(ac *ast.EntityContainer, c *edm.EntityContainer) {
	if ac.Extends != "" {
		base, ok := b.m.FindVisibleElement(ac.Extends).(*edm.EntityContainer)
		if !ok {
			b.errorf(edm.ErrBadUnresolvedEntityContainer, ac.Loc, "extended container %s cannot be resolved", ac.Extends)
		} else if err := c.SetExtends(base); err != nil {
			b.errorf(edm.ErrBadUnresolvedEntityContainer, ac.Loc, "%v", err)
		}
	}
	for _, el := range ac.Elements {
		switch el.Kind {
		case ast.EntitySet, ast.Singleton:
			b.addNavigationSource(c, el)
		case ast.ActionImport, ast.FunctionImport:
			b.addOperationImport(c, el)
		}
	}
}

func (b *builder) sourceType(el *ast.ContainerElement) edm.Type {
	t := b.m.FindType(el.Type)
	switch {
	case t == nil:
		b.errorf(edm.ErrBadUnresolvedType, el.Loc, "type %s of %s cannot be resolved", el.Type, el.Name)
		return &edm.BadType{Name: b.m.ResolveAlias(el.Type)}
	case t.TypeKind() != edm.TypeKindEntity:
		b.errorf(edm.ErrEntitySetTypeNotEntity, el.Loc, "type %s of %s is not an entity type", el.Type, el.Name)
	}
	return t
}

func (b *builder) addNavigationSource(c *edm.EntityContainer, el *ast.ContainerElement) {
	t := b.sourceType(el)
	var src bindable
	if el.Kind == ast.EntitySet {
		set, err := c.AddEntitySet(el.Name, t)
		if err != nil {
			b.errorf(edm.ErrMissingAttribute, el.Loc, "%v", err)
			return
		}
		if el.IncludeInServiceDocument != nil {
			_ = set.SetIncludeInServiceDocument(*el.IncludeInServiceDocument)
		}
		set.SetLocation(el.Loc)
		src = set
	} else {
		single, err := c.AddSingleton(el.Name, t)
		if err != nil {
			b.errorf(edm.ErrMissingAttribute, el.Loc, "%v", err)
			return
		}
		_ = single.SetNullable(el.Nullable)
		single.SetLocation(el.Loc)
		src = single
	}
	b.sources[el] = src
}

func (b *builder) addOperationImport(c *edm.EntityContainer, el *ast.ContainerElement) {
	function := el.Kind == ast.FunctionImport
	var op *edm.Operation
	for _, candidate := range b.m.FindOperations(el.Operation) {
		if candidate.IsFunction() == function {
			op = candidate
			break
		}
	}
	var (
		imp *edm.OperationImport
		err error
	)
	switch {
	case op == nil:
		b.errorf(edm.ErrBadUnresolvedOperation, el.Loc, "operation %s of import %s cannot be resolved", el.Operation, el.Name)
		imp, err = c.AddUnresolvedOperationImport(el.Name, b.m.ResolveAlias(el.Operation), function)
	case function:
		imp, err = c.AddFunctionImport(el.Name, op)
	default:
		imp, err = c.AddActionImport(el.Name, op)
	}
	if err != nil {
		b.errorf(edm.ErrMissingAttribute, el.Loc, "%v", err)
		return
	}
	imp.SetLocation(el.Loc)
	b.imports[el] = imp
	if el.EntitySet != "" {
		_ = imp.SetEntitySet(el.EntitySet)
	}
	if function && el.IncludeInServiceDocument != nil {
		_ = imp.SetIncludeInServiceDocument(*el.IncludeInServiceDocument)
	}
}

func (b *builder) resolveBindings(ac *ast.EntityContainer, c *edm.EntityContainer) {
	for _, el := range ac.Elements {
		src := b.sources[el]
		if src == nil {
			continue
		}
		for _, ab := range el.Bindings {
			path := edm.ParsePath(ab.Path)
			if len(path) == 0 {
				b.errorf(edm.ErrMissingAttribute, ab.Loc, "navigation property binding of %s has no path", el.Name)
				continue
			}
			nav := b.bindingProperty(src, path, ab.Loc)
			target, err := c.ResolveNavigationSourcePath(edm.ParsePath(ab.Target))
			if err != nil {
				b.errorf(edm.ErrBadUnresolvedNavigationTarget, ab.Loc, "binding target %s of %s: %v", ab.Target, el.Name, err)
				target = edm.NewUnresolvedNavigationSource(edm.ParsePath(ab.Target))
			}
			binding, err := src.AddNavigationTargetWithPath(nav, path, target)
			if err != nil {
				b.errorf(edm.ErrBadUnresolvedNavigationTarget, ab.Loc, "%v", err)
				continue
			}
			binding.SetLocation(ab.Loc)
		}
	}
}

// bindingProperty follows a binding path from the entity type of src. Every segment but the
// last must be a type cast, a complex property or a containment navigation property; a
// path crossing a non-containment navigation property yields the unresolved path sentinel
// without an error.
func (b *builder) bindingProperty(src bindable, path edm.Path, loc edm.Location) edm.Property {
	et := src.EntityType()
	if et == nil {
		return edm.NewUnresolvedNavigationPropertyPath(nil, path)
	}
	var cur edm.StructuredType = et
	for i, seg := range path {
		last := i == len(path)-1
		if edm.IsQualifiedName(seg) {
			cast, ok := b.m.FindType(seg).(edm.StructuredType)
			if !ok || (cast != cur && !cast.InheritsFrom(cur)) || last {
				b.errorf(edm.ErrUnresolvedNavigationPropertyPath, loc, "binding path %s of %s: invalid type cast %s", path, src.Name(), seg)
				return edm.NewUnresolvedNavigationPropertyPath(et, path)
			}
			cur = cast
			continue
		}
		p := cur.FindProperty(seg)
		if p == nil {
			b.errorf(edm.ErrUnresolvedNavigationPropertyPath, loc, "binding path %s of %s: no property %s on %s", path, src.Name(), seg, cur.FullName())
			return edm.NewUnresolvedNavigationPropertyPath(et, path)
		}
		nav, isNav := p.(*edm.NavigationProperty)
		if last {
			if !isNav {
				b.errorf(edm.ErrUnresolvedNavigationPropertyPath, loc, "binding path %s of %s: %s is not a navigation property", path, src.Name(), seg)
				return edm.NewUnresolvedNavigationPropertyPath(et, path)
			}
			return nav
		}
		if isNav && !nav.ContainsTarget() {
			return edm.NewUnresolvedNavigationPropertyPath(et, path)
		}
		cur = p.Type().StructuredDefinition()
		if cur == nil {
			b.errorf(edm.ErrUnresolvedNavigationPropertyPath, loc, "binding path %s of %s: cannot descend into %s", path, src.Name(), seg)
			return edm.NewUnresolvedNavigationPropertyPath(et, path)
		}
	}
	return edm.NewUnresolvedNavigationPropertyPath(et, path)
}
