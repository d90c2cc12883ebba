package csdlxml

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/writeplan"
	"github.com/nlstn/go-csdl/literal"
)

// asyncChunkSize is the number of bytes copied to the destination between context checks.
const asyncChunkSize = 32 * 1024

type attr struct {
	name, value string
}

// elem is an output element. Elements without children and text are self-closing.
type elem struct {
	name     string
	attrs    []attr
	children []*elem
	text     string
	hasText  bool
}

func newElem(name string, attrs ...attr) *elem {
	return &elem{name: name, attrs: attrs}
}

func (e *elem) set(name, value string) *elem {
	e.attrs = append(e.attrs, attr{name, value})
	return e
}

func (e *elem) setIf(cond bool, name, value string) *elem {
	if cond {
		e.set(name, value)
	}
	return e
}

func (e *elem) add(children ...*elem) *elem {
	for _, c := range children {
		if c != nil {
			e.children = append(e.children, c)
		}
	}
	return e
}

func (e *elem) render(b *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(e.name)
	for _, a := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		_ = xml.EscapeText(b, []byte(a.value))
		b.WriteByte('"')
	}
	switch {
	case e.hasText:
		b.WriteByte('>')
		_ = xml.EscapeText(b, []byte(e.text))
		b.WriteString("</" + e.name + ">\n")
	case len(e.children) == 0:
		b.WriteString(" />\n")
	default:
		b.WriteString(">\n")
		for _, c := range e.children {
			c.render(b, depth+1)
		}
		b.WriteString(indent + "</" + e.name + ">\n")
	}
}

// Write serializes m as an XML CSDL document.
func Write(w io.Writer, m *edm.Model) error {
	var b bytes.Buffer
	encode(&b, m)
	_, err := w.Write(b.Bytes())
	return err
}

// WriteAsync serializes m and copies the document to w in chunks, checking ctx between
// chunks. The result channel receives exactly one value and is then closed.
func WriteAsync(ctx context.Context, w io.Writer, m *edm.Model) <-chan error {
	result := make(chan error, 1)
	var b bytes.Buffer
	encode(&b, m)
	go func() {
		defer close(result)
		data := b.Bytes()
		for len(data) > 0 {
			if err := ctx.Err(); err != nil {
				result <- err
				return
			}
			n := min(asyncChunkSize, len(data))
			if _, err := w.Write(data[:n]); err != nil {
				result <- err
				return
			}
			data = data[n:]
		}
		result <- nil
	}()
	return result
}

func encode(b *bytes.Buffer, m *edm.Model) {
	x := &xmlEncoder{plan: writeplan.New(m)}
	b.WriteString(xml.Header)
	x.document().render(b, 0)
}

type xmlEncoder struct {
	plan *writeplan.Plan
}

func (x *xmlEncoder) document() *elem {
	m := x.plan.Model
	root := newElem("edmx:Edmx", attr{"Version", m.Version()}, attr{"xmlns:edmx", EdmxNamespace})
	for _, ref := range m.References() {
		r := newElem("edmx:Reference", attr{"Uri", ref.URI})
		for _, inc := range ref.Includes {
			r.add(newElem("edmx:Include", attr{"Namespace", inc.Namespace}).setIf(inc.Alias != "", "Alias", inc.Alias))
		}
		for _, ia := range ref.IncludeAnnotations {
			r.add(newElem("edmx:IncludeAnnotations", attr{"TermNamespace", ia.TermNamespace}).
				setIf(ia.Qualifier != "", "Qualifier", ia.Qualifier).
				setIf(ia.TargetNamespace != "", "TargetNamespace", ia.TargetNamespace))
		}
		root.add(r)
	}
	ds := newElem("edmx:DataServices")
	for _, ns := range m.Namespaces() {
		ds.add(x.schema(ns))
	}
	return root.add(ds)
}

func (x *xmlEncoder) schema(ns string) *elem {
	m := x.plan.Model
	s := newElem("Schema", attr{"Namespace", ns})
	s.setIf(m.NamespaceAlias(ns) != "", "Alias", m.NamespaceAlias(ns))
	s.set("xmlns", EdmNamespace)
	for _, el := range m.SchemaElements(ns) {
		switch v := el.(type) {
		case *edm.EntityType:
			s.add(x.structured("EntityType", v))
		case *edm.ComplexType:
			s.add(x.structured("ComplexType", v))
		case *edm.EnumType:
			s.add(x.enum(v))
		case *edm.TypeDefinition:
			s.add(x.typeDefinition(v))
		case *edm.Term:
			s.add(x.term(v))
		case *edm.Operation:
			s.add(x.operation(v))
		}
	}
	if c := x.plan.SchemaContainer(ns); c != nil {
		s.add(x.container(c))
	}
	for _, g := range x.plan.Groups(ns) {
		group := newElem("Annotations", attr{"Target", g.Target})
		for _, a := range g.Annotations {
			group.add(x.annotation(a))
		}
		s.add(group)
	}
	return s
}

// annotate appends the inline annotations of target to e.
func (x *xmlEncoder) annotate(e *elem, target edm.Annotatable) *elem {
	for _, a := range x.plan.Inline(target) {
		e.add(x.annotation(a))
	}
	return e
}

// typeAttrs writes Type, Nullable and the facets. XML omits Nullable="true".
func (x *xmlEncoder) typeAttrs(e *elem, attrName string, t edm.TypeRef, writeNullable bool) *elem {
	e.set(attrName, x.plan.TypeName(t))
	el := t.ElementType()
	e.setIf(writeNullable && !el.Nullable, "Nullable", "false")
	return facetAttrs(e, el.Facets)
}

func facetAttrs(e *elem, f edm.Facets) *elem {
	e.setIf(f.MaxLength != "", "MaxLength", f.MaxLength)
	e.setIf(f.Precision != "", "Precision", f.Precision)
	e.setIf(f.Scale != "", "Scale", f.Scale)
	e.setIf(f.SRID != "", "SRID", f.SRID)
	if f.Unicode != nil {
		e.set("Unicode", boolText(*f.Unicode))
	}
	return e
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (x *xmlEncoder) structured(kind string, t edm.StructuredType) *elem {
	e := newElem(kind, attr{"Name", t.(edm.SchemaElement).Name()})
	if base := t.BaseType(); base != nil {
		e.set("BaseType", x.plan.Qualify(base.(edm.SchemaElement).FullName()))
	}
	e.setIf(t.IsAbstract(), "Abstract", "true")
	e.setIf(t.IsOpen(), "OpenType", "true")
	if et, ok := t.(*edm.EntityType); ok {
		e.setIf(et.HasStream(), "HasStream", "true")
		if key := et.DeclaredKey(); len(key) > 0 {
			k := newElem("Key")
			for _, ref := range key {
				k.add(newElem("PropertyRef", attr{"Name", ref.Name}).setIf(ref.Alias != "", "Alias", ref.Alias))
			}
			e.add(k)
		}
	}
	for _, p := range t.DeclaredProperties() {
		switch v := p.(type) {
		case *edm.StructuralProperty:
			pe := x.typeAttrs(newElem("Property", attr{"Name", v.Name()}), "Type", v.Type(), true)
			if def, ok := v.DefaultValue(); ok {
				pe.set("DefaultValue", def)
			}
			e.add(x.annotate(pe, v))
		case *edm.NavigationProperty:
			e.add(x.navigation(v))
		}
	}
	return x.annotate(e, t)
}

func (x *xmlEncoder) navigation(n *edm.NavigationProperty) *elem {
	e := newElem("NavigationProperty", attr{"Name", n.Name()}, attr{"Type", x.plan.TypeName(n.Type())})
	e.setIf(!n.Type().IsCollection() && !n.Type().Nullable, "Nullable", "false")
	if partner := n.PartnerPath(); len(partner) > 0 {
		e.set("Partner", x.plan.Target(partner.String()))
	}
	e.setIf(n.ContainsTarget(), "ContainsTarget", "true")
	for _, rc := range n.ReferentialConstraints() {
		e.add(newElem("ReferentialConstraint", attr{"Property", rc.Property}, attr{"ReferencedProperty", rc.ReferencedProperty}))
	}
	if n.OnDelete() != edm.OnDeleteUnspecified {
		e.add(newElem("OnDelete", attr{"Action", string(n.OnDelete())}))
	}
	return x.annotate(e, n)
}

func (x *xmlEncoder) enum(t *edm.EnumType) *elem {
	e := newElem("EnumType", attr{"Name", t.Name()})
	if u := t.UnderlyingType(); u != nil && u != edm.Int32Type {
		e.set("UnderlyingType", u.FullName())
	}
	e.setIf(t.IsFlags(), "IsFlags", "true")
	for _, m := range t.Members() {
		me := newElem("Member", attr{"Name", m.Name()}, attr{"Value", literal.FormatInt(m.Value())})
		e.add(x.annotate(me, m))
	}
	return x.annotate(e, t)
}

func (x *xmlEncoder) typeDefinition(t *edm.TypeDefinition) *elem {
	e := newElem("TypeDefinition", attr{"Name", t.Name()}, attr{"UnderlyingType", t.UnderlyingType().FullName()})
	return x.annotate(facetAttrs(e, t.Facets()), t)
}

func (x *xmlEncoder) term(t *edm.Term) *elem {
	e := x.typeAttrs(newElem("Term", attr{"Name", t.Name()}), "Type", t.Type(), true)
	e.setIf(t.BaseTerm() != "", "BaseTerm", x.plan.Qualify(t.BaseTerm()))
	if def, ok := t.DefaultValue(); ok {
		e.set("DefaultValue", def)
	}
	if applies := t.AppliesTo(); len(applies) > 0 {
		e.set("AppliesTo", strings.Join(applies, " "))
	}
	return x.annotate(e, t)
}

func (x *xmlEncoder) operation(o *edm.Operation) *elem {
	kind := "Action"
	if o.IsFunction() {
		kind = "Function"
	}
	e := newElem(kind, attr{"Name", o.Name()})
	e.setIf(o.IsBound(), "IsBound", "true")
	e.setIf(o.IsComposable(), "IsComposable", "true")
	if path := o.EntitySetPath(); len(path) > 0 {
		e.set("EntitySetPath", path.String())
	}
	for _, p := range o.Parameters() {
		pe := x.typeAttrs(newElem("Parameter", attr{"Name", p.Name()}), "Type", p.Type(), true)
		e.add(x.annotate(pe, p))
	}
	if rt := o.ReturnType(); rt != nil {
		re := x.typeAttrs(newElem("ReturnType"), "Type", rt.Type(), true)
		e.add(x.annotate(re, rt))
	}
	return x.annotate(e, o)
}

func (x *xmlEncoder) container(c *edm.EntityContainer) *elem {
	e := newElem("EntityContainer", attr{"Name", c.Name()})
	if ext := c.Extends(); ext != nil {
		e.set("Extends", x.plan.Qualify(ext.FullName()))
	}
	for _, el := range c.Elements() {
		switch v := el.(type) {
		case *edm.EntitySet:
			se := newElem("EntitySet", attr{"Name", v.Name()}, attr{"EntityType", x.plan.Qualify(v.Type().FullName())})
			se.setIf(!v.IncludeInServiceDocument(), "IncludeInServiceDocument", "false")
			e.add(x.annotate(x.bindings(se, v.NavigationPropertyBindings()), v))
		case *edm.Singleton:
			se := newElem("Singleton", attr{"Name", v.Name()}, attr{"Type", x.plan.Qualify(v.Type().FullName())})
			se.setIf(v.IsNullable(), "Nullable", "true")
			e.add(x.annotate(x.bindings(se, v.NavigationPropertyBindings()), v))
		case *edm.OperationImport:
			var ie *elem
			if v.IsFunctionImport() {
				ie = newElem("FunctionImport", attr{"Name", v.Name()}, attr{"Function", x.plan.Qualify(v.OperationName())})
			} else {
				ie = newElem("ActionImport", attr{"Name", v.Name()}, attr{"Action", x.plan.Qualify(v.OperationName())})
			}
			ie.setIf(v.EntitySet() != "", "EntitySet", v.EntitySet())
			ie.setIf(v.IsFunctionImport() && v.IncludeInServiceDocument(), "IncludeInServiceDocument", "true")
			e.add(x.annotate(ie, v))
		}
	}
	return x.annotate(e, c)
}

func (x *xmlEncoder) bindings(e *elem, bindings []*edm.NavigationPropertyBinding) *elem {
	for _, b := range bindings {
		e.add(newElem("NavigationPropertyBinding",
			attr{"Path", x.plan.Target(b.Path().String())},
			attr{"Target", x.plan.BindingTarget(b.Target())}))
	}
	return e
}

func (x *xmlEncoder) annotation(a *edm.Annotation) *elem {
	e := newElem("Annotation", attr{"Term", x.plan.Term(a)})
	e.setIf(a.Qualifier() != "", "Qualifier", a.Qualifier())
	if writeplan.WritesValue(a) {
		x.value(e, a.Value())
	}
	return e
}

// value writes v as an attribute of e when it is a constant or path, and as a child
// element otherwise.
func (x *xmlEncoder) value(e *elem, v edm.Expression) {
	if name, text, ok := x.attrForm(v); ok {
		e.set(name, text)
		return
	}
	e.add(x.expression(v))
}

func (x *xmlEncoder) attrForm(v edm.Expression) (string, string, bool) {
	switch c := v.(type) {
	case *edm.EnumMemberExpression:
		parts := strings.Fields(c.PathText())
		for i, p := range parts {
			parts[i] = x.plan.Target(p)
		}
		return "EnumMember", strings.Join(parts, " "), true
	case *edm.PathExpression:
		return edm.PathKindName(c.Kind), x.plan.Target(c.Path.String()), true
	case *edm.UntypedConstant:
		return "String", c.Text, true
	}
	if kind := edm.ConstantKindName(v.ExpressionKind()); kind != "" {
		text, _ := edm.LiteralText(v)
		return kind, text, true
	}
	return "", "", false
}

func (x *xmlEncoder) expression(v edm.Expression) *elem {
	if v == nil {
		return nil
	}
	if name, text, ok := x.attrForm(v); ok {
		return &elem{name: name, text: text, hasText: true}
	}
	switch c := v.(type) {
	case *edm.NullExpression:
		return newElem("Null")
	case *edm.CollectionExpression:
		e := newElem("Collection")
		for _, item := range c.Items {
			e.add(x.expression(item))
		}
		return e
	case *edm.RecordExpression:
		e := newElem("Record")
		e.setIf(c.TypeName != "", "Type", x.plan.Qualify(c.TypeName))
		for _, p := range c.Properties {
			pv := newElem("PropertyValue", attr{"Property", p.Name})
			if p.Value != nil {
				x.value(pv, p.Value)
			}
			e.add(pv)
		}
		return e
	case *edm.IfExpression:
		e := newElem("If").add(x.expression(c.Test), x.expression(c.Then))
		if c.Else != nil {
			e.add(x.expression(c.Else))
		}
		return e
	case *edm.ApplyExpression:
		e := newElem("Apply", attr{"Function", c.Function})
		for _, arg := range c.Arguments {
			e.add(x.expression(arg))
		}
		return e
	case *edm.CastExpression:
		return x.typeAttrs(newElem("Cast"), "Type", c.Type, false).add(x.expression(c.Operand))
	case *edm.IsOfExpression:
		return x.typeAttrs(newElem("IsOf"), "Type", c.Type, false).add(x.expression(c.Operand))
	case *edm.LabeledElement:
		e := newElem("LabeledElement", attr{"Name", c.Name})
		if c.Value != nil {
			x.value(e, c.Value)
		}
		return e
	case *edm.LabeledElementReference:
		return &elem{name: "LabeledElementReference", text: x.plan.Qualify(c.Name), hasText: true}
	case *edm.UrlRefExpression:
		e := newElem("UrlRef")
		if c.Value != nil {
			x.value(e, c.Value)
		}
		return e
	case *edm.OperatorExpression:
		e := newElem(c.Operator)
		for _, op := range c.Operands {
			e.add(x.expression(op))
		}
		return e
	}
	return nil
}
