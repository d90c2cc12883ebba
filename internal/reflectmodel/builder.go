// Package reflectmodel builds EDM models from tagged Go structs.
//
// Every registered struct becomes an entity type with an entity set or singleton. Fields
// map to properties: registered structs become navigation properties, other structs
// complex types, types implementing Enum enum types, and the remaining Go types their
// Edm primitive counterparts. The odata struct tag refines the mapping:
//
//	type Product struct {
//	    ID       uint      `odata:"key"`
//	    Name     string    `odata:"maxlength=100,annotation:Core.Description=Product name"`
//	    Category *Category `odata:"foreignKey:CategoryID,partner=Products"`
//	}
package reflectmodel

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/edm/vocabularies"
)

// Builder collects Go struct types and turns them into a model.
type Builder struct {
	namespace string
	container string
	logger    *slog.Logger

	sources []*sourceInfo
}

type sourceInfo struct {
	goType    reflect.Type
	name      string
	singleton bool
}

// New creates a builder for the given schema namespace and entity container name.
func New(namespace, container string) *Builder {
	return &Builder{namespace: namespace, container: container, logger: slog.Default()}
}

// SetLogger sets the logger. If logger is nil, slog.Default() is used.
func (b *Builder) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = logger
}

// AddEntity registers a struct as an entity type exposed through an entity set. The set
// is named by an EntitySetName() string method or the pluralized type name.
func (b *Builder) AddEntity(entity any) error {
	t, err := structType(entity)
	if err != nil {
		return err
	}
	return b.add(&sourceInfo{goType: t, name: entitySetName(t)})
}

// AddSingleton registers a struct as an entity type exposed through a singleton.
func (b *Builder) AddSingleton(entity any, name string) error {
	t, err := structType(entity)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("singleton of %s needs a name", t.Name())
	}
	return b.add(&sourceInfo{goType: t, name: name, singleton: true})
}

func (b *Builder) add(src *sourceInfo) error {
	for _, s := range b.sources {
		if s.name == src.name {
			return fmt.Errorf("%s is already registered", src.name)
		}
	}
	b.sources = append(b.sources, src)
	return nil
}

func structType(entity any) (reflect.Type, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	t := dereference(reflect.TypeOf(entity))
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", t.Kind())
	}
	return t, nil
}

// build holds the state of one Build call.
type build struct {
	*Builder
	m        *edm.Model
	entities map[reflect.Type]*edm.EntityType
	complex  map[reflect.Type]*edm.ComplexType
	enums    map[reflect.Type]*edm.EnumType
	elements []edm.SchemaElement
	pending  []pendingAnnotation
}

type pendingAnnotation struct {
	target edm.Annotatable
	tag    tagAnnotation
}

// Build creates a mutable model with one schema and one entity container. Navigation
// properties are bound when their target type is exposed by exactly one entity set or
// singleton.
func (b *Builder) Build() (*edm.Model, error) {
	st := &build{
		Builder:  b,
		m:        edm.NewModel(),
		entities: map[reflect.Type]*edm.EntityType{},
		complex:  map[reflect.Type]*edm.ComplexType{},
		enums:    map[reflect.Type]*edm.EnumType{},
	}
	if err := st.m.AddSchema(b.namespace, ""); err != nil {
		return nil, err
	}
	for _, src := range b.sources {
		if _, ok := st.entities[src.goType]; ok {
			continue
		}
		et := edm.NewEntityType(b.namespace, src.goType.Name())
		st.entities[src.goType] = et
		st.elements = append(st.elements, et)
	}
	for _, src := range b.sources {
		et := st.entities[src.goType]
		if len(et.Properties()) > 0 {
			continue
		}
		if err := st.entityProperties(et, src.goType); err != nil {
			return nil, err
		}
	}
	for _, e := range st.elements {
		if err := st.m.AddElement(e); err != nil {
			return nil, err
		}
	}
	if err := st.containerAndBindings(); err != nil {
		return nil, err
	}
	if err := st.annotations(); err != nil {
		return nil, err
	}
	b.logger.Debug("Built model from structs", "namespace", b.namespace, "types", len(st.elements), "sources", len(b.sources))
	return st.m, nil
}

func (st *build) entityProperties(et *edm.EntityType, t reflect.Type) error {
	fields, err := analyzeFields(t)
	if err != nil {
		return fmt.Errorf("entity %s: %w", t.Name(), err)
	}
	var keys []*edm.StructuralProperty
	explicitKey := false
	for _, fi := range fields {
		explicitKey = explicitKey || fi.key
	}
	for _, fi := range fields {
		if !explicitKey && fi.name == "ID" {
			fi.key = true
		}
		p, err := st.property(et, fi)
		if err != nil {
			return fmt.Errorf("entity %s: %w", t.Name(), err)
		}
		if sp, ok := p.(*edm.StructuralProperty); ok && fi.key {
			keys = append(keys, sp)
		}
		if fi.auto || fi.isAutoIncrementKey() {
			st.ensure(p, vocabularies.Computed)
		}
		if fi.immutable {
			st.ensure(p, vocabularies.Immutable)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("entity %s must have at least one key property (use `odata:\"key\"` tag or name field 'ID')", t.Name())
	}
	return et.SetKey(keys...)
}

// property declares the property for one field on owner.
func (st *build) property(owner edm.StructuredType, fi fieldInfo) (edm.Property, error) {
	if target, ok := st.entities[fi.goType]; ok || fi.nav {
		if !ok {
			return nil, fmt.Errorf("navigation property %s targets %s, which is not registered", fi.name, fi.goType)
		}
		nav, err := owner.AddNavigationProperty(edm.NavigationPropertyInfo{
			Name:           fi.name,
			Type:           collectionOf(edm.NewTypeRef(target, !fi.collection && fi.isNullable()), fi.collection),
			ContainsTarget: fi.contains,
			PartnerPath:    edm.ParsePath(fi.partner),
			Constraints:    fi.constraints(),
		})
		if err != nil {
			return nil, err
		}
		st.queue(nav, fi.annotations)
		return nav, nil
	}

	def, err := st.typeFor(fi)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", fi.name, err)
	}
	ref := edm.NewTypeRef(def, fi.isNullable())
	ref.Facets = fi.facets()
	sp, err := owner.AddStructuralProperty(fi.name, collectionOf(ref, fi.collection))
	if err != nil {
		return nil, err
	}
	if fi.defaultValue != "" {
		if err := sp.SetDefaultValue(fi.defaultValue); err != nil {
			return nil, err
		}
	}
	st.queue(sp, fi.annotations)
	return sp, nil
}

func collectionOf(element edm.TypeRef, collection bool) edm.TypeRef {
	if collection {
		return edm.CollectionOf(element)
	}
	return element
}

// typeFor maps the Go type of a structural field to an enum, complex or primitive type.
func (st *build) typeFor(fi fieldInfo) (edm.Type, error) {
	if members, ok := enumMembers(fi.goType); ok {
		return st.enumType(fi, members)
	}
	if p := primitiveFor(fi.goType); p != nil {
		return p, nil
	}
	if fi.goType.Kind() == reflect.Struct {
		return st.complexType(fi.goType)
	}
	return nil, fmt.Errorf("unsupported Go type %s", fi.goType)
}

func (st *build) enumType(fi fieldInfo, members []EnumMember) (*edm.EnumType, error) {
	if e, ok := st.enums[fi.goType]; ok {
		return e, nil
	}
	underlying, err := enumUnderlyingType(fi.goType)
	if err != nil {
		return nil, err
	}
	name := fi.enumName
	if name == "" {
		name = fi.goType.Name()
	}
	e := edm.NewEnumType(st.namespace, name, underlying, fi.flags)
	for _, m := range members {
		if _, err := e.AddMember(m.Name, m.Value); err != nil {
			return nil, fmt.Errorf("enum %s: %w", name, err)
		}
	}
	st.enums[fi.goType] = e
	st.elements = append(st.elements, e)
	return e, nil
}

func (st *build) complexType(t reflect.Type) (*edm.ComplexType, error) {
	if ct, ok := st.complex[t]; ok {
		return ct, nil
	}
	ct := edm.NewComplexType(st.namespace, t.Name())
	// Registered before its properties so self-referencing types terminate.
	st.complex[t] = ct
	st.elements = append(st.elements, ct)
	fields, err := analyzeFields(t)
	if err != nil {
		return nil, fmt.Errorf("complex type %s: %w", t.Name(), err)
	}
	for _, fi := range fields {
		if _, err := st.property(ct, fi); err != nil {
			return nil, fmt.Errorf("complex type %s: %w", t.Name(), err)
		}
	}
	return ct, nil
}

func (st *build) containerAndBindings() error {
	c := edm.NewEntityContainer(st.namespace, st.container)
	if err := st.m.AddElement(c); err != nil {
		return err
	}
	sources := make([]edm.NavigationSource, len(st.sources))
	byType := map[*edm.EntityType][]edm.NavigationSource{}
	for i, src := range st.sources {
		et := st.entities[src.goType]
		var (
			ns  edm.NavigationSource
			err error
		)
		if src.singleton {
			ns, err = c.AddSingleton(src.name, et)
		} else {
			ns, err = c.AddEntitySet(src.name, et)
		}
		if err != nil {
			return err
		}
		sources[i] = ns
		byType[et] = append(byType[et], ns)
	}
	for _, ns := range sources {
		binder, ok := ns.(interface {
			AddNavigationTarget(*edm.NavigationProperty, edm.NavigationSource) (*edm.NavigationPropertyBinding, error)
		})
		if !ok {
			continue
		}
		for _, nav := range ns.EntityType().NavigationProperties() {
			targets := byType[nav.TargetType()]
			if nav.ContainsTarget() || len(targets) != 1 {
				continue
			}
			if _, err := binder.AddNavigationTarget(nav, targets[0]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *build) queue(target edm.Annotatable, tags []tagAnnotation) {
	for _, tag := range tags {
		st.pending = append(st.pending, pendingAnnotation{target: target, tag: tag})
	}
}

// ensure queues a valueless annotation unless the target already has one for term.
func (st *build) ensure(target edm.Annotatable, term string) {
	for _, p := range st.pending {
		if p.target == target && vocabularies.FindTerm(p.tag.term) == vocabularies.FindTerm(term) {
			return
		}
	}
	st.pending = append(st.pending, pendingAnnotation{target: target, tag: tagAnnotation{term: term}})
}

// annotations applies the queued annotations inline and references the Core vocabulary
// when one of its terms is used.
func (st *build) annotations() error {
	usesCore := false
	for _, p := range st.pending {
		term := vocabularies.FindTerm(p.tag.term)
		if term == nil {
			return fmt.Errorf("unknown annotation term %s on %s", p.tag.term, edm.TargetString(p.target))
		}
		var value edm.Expression
		if p.tag.hasValue {
			v, err := edm.ConvertLiteral(term.Type(), p.tag.value)
			if err != nil {
				return fmt.Errorf("annotation %s on %s: %w", p.tag.term, edm.TargetString(p.target), err)
			}
			value = v
		}
		a, err := edm.NewAnnotation(p.target, term, "", value)
		if err != nil {
			return err
		}
		if err := a.SetSerializationLocation(edm.Inline); err != nil {
			return err
		}
		if err := st.m.SetVocabularyAnnotation(a); err != nil {
			return err
		}
		usesCore = usesCore || term.Namespace() == vocabularies.CoreNamespace
	}
	if !usesCore {
		return nil
	}
	return st.m.AddReference(&edm.Reference{
		URI:      vocabularies.CoreURI,
		Includes: []edm.Include{{Namespace: vocabularies.CoreNamespace, Alias: vocabularies.CoreAlias}},
		Model:    vocabularies.Core(),
	})
}
