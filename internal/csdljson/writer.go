package csdljson

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/writeplan"
	"github.com/nlstn/go-csdl/literal"
)

type orderedMember struct {
	key   string
	value any
}

// object is a JSON object that keeps member order when marshaled.
type object struct {
	members []orderedMember
}

func newObject() *object { return &object{} }

func (o *object) set(key string, value any) *object {
	o.members = append(o.members, orderedMember{key, value})
	return o
}

func (o *object) setIf(cond bool, key string, value any) *object {
	if cond {
		o.set(key, value)
	}
	return o
}

func (o *object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, m := range o.members {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := marshal(m.key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		value, err := marshal(m.value)
		if err != nil {
			return nil, err
		}
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// Write serializes m as a JSON CSDL document.
func Write(w io.Writer, m *edm.Model) error {
	j := &jsonEncoder{plan: writeplan.New(m)}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(j.document())
}

type jsonEncoder struct {
	plan *writeplan.Plan
}

func (j *jsonEncoder) document() *object {
	m := j.plan.Model
	doc := newObject().set("$Version", m.Version())
	if c := m.EntityContainer(); c != nil {
		doc.set("$EntityContainer", c.FullName())
	}
	if refs := m.References(); len(refs) > 0 {
		refObj := newObject()
		for _, ref := range refs {
			r := newObject()
			if len(ref.Includes) > 0 {
				includes := make([]any, 0, len(ref.Includes))
				for _, inc := range ref.Includes {
					includes = append(includes, newObject().set("$Namespace", inc.Namespace).setIf(inc.Alias != "", "$Alias", inc.Alias))
				}
				r.set("$Include", includes)
			}
			if len(ref.IncludeAnnotations) > 0 {
				includes := make([]any, 0, len(ref.IncludeAnnotations))
				for _, ia := range ref.IncludeAnnotations {
					includes = append(includes, newObject().set("$TermNamespace", ia.TermNamespace).
						setIf(ia.Qualifier != "", "$Qualifier", ia.Qualifier).
						setIf(ia.TargetNamespace != "", "$TargetNamespace", ia.TargetNamespace))
				}
				r.set("$IncludeAnnotations", includes)
			}
			refObj.set(ref.URI, r)
		}
		doc.set("$Reference", refObj)
	}
	for _, ns := range m.Namespaces() {
		doc.set(ns, j.schema(ns))
	}
	return doc
}

func (j *jsonEncoder) schema(ns string) *object {
	m := j.plan.Model
	s := newObject()
	s.setIf(m.NamespaceAlias(ns) != "", "$Alias", m.NamespaceAlias(ns))
	overloads := map[string][]any{}
	var order []string
	elements := map[string]any{}
	for _, el := range m.SchemaElements(ns) {
		switch v := el.(type) {
		case *edm.Operation:
			if _, seen := overloads[v.Name()]; !seen {
				order = append(order, v.Name())
			}
			overloads[v.Name()] = append(overloads[v.Name()], j.operation(v))
		case *edm.EntityContainer:
		default:
			order = append(order, el.Name())
			elements[el.Name()] = j.element(el)
		}
	}
	for _, name := range order {
		if ops, ok := overloads[name]; ok {
			s.set(name, ops)
		} else {
			s.set(name, elements[name])
		}
	}
	if c := j.plan.SchemaContainer(ns); c != nil {
		s.set(c.Name(), j.container(c))
	}
	if groups := j.plan.Groups(ns); len(groups) > 0 {
		annotations := newObject()
		for _, g := range groups {
			group := newObject()
			for _, a := range g.Annotations {
				j.annotation(group, "", a)
			}
			annotations.set(g.Target, group)
		}
		s.set("$Annotations", annotations)
	}
	return s
}

func (j *jsonEncoder) element(el edm.SchemaElement) *object {
	switch v := el.(type) {
	case *edm.EntityType:
		return j.structured("EntityType", v)
	case *edm.ComplexType:
		return j.structured("ComplexType", v)
	case *edm.EnumType:
		return j.enum(v)
	case *edm.TypeDefinition:
		o := newObject().set("$Kind", "TypeDefinition").set("$UnderlyingType", v.UnderlyingType().FullName())
		return j.annotate(facets(o, v.Facets()), "", v)
	case *edm.Term:
		return j.term(v)
	}
	return newObject()
}

// annotate writes the inline annotations of target into o, prefixed with owner.
func (j *jsonEncoder) annotate(o *object, owner string, target edm.Annotatable) *object {
	for _, a := range j.plan.Inline(target) {
		j.annotation(o, owner, a)
	}
	return o
}

func (j *jsonEncoder) annotation(o *object, owner string, a *edm.Annotation) {
	key := owner + "@" + j.plan.Term(a)
	if a.Qualifier() != "" {
		key += "#" + a.Qualifier()
	}
	if a.Value() == nil {
		o.set(key, nil)
		return
	}
	o.set(key, j.expression(a.Value()))
}

// typeMembers writes $Type (omitted for Edm.String), $Collection, $Nullable and the facets.
// JSON omits $Nullable false.
func (j *jsonEncoder) typeMembers(o *object, t edm.TypeRef, writeNullable bool) *object {
	el := t.ElementType()
	if name := j.plan.TypeName(el); name != "Edm.String" {
		o.set("$Type", name)
	}
	o.setIf(t.IsCollection(), "$Collection", true)
	o.setIf(writeNullable && el.Nullable, "$Nullable", true)
	return facets(o, el.Facets)
}

// facetValue writes numeric facets as numbers and symbolic ones ("max", "variable") as strings.
func facetValue(s string) any {
	if _, err := strconv.Atoi(s); err == nil {
		return json.Number(s)
	}
	return s
}

func facets(o *object, f edm.Facets) *object {
	o.setIf(f.MaxLength != "", "$MaxLength", facetValue(f.MaxLength))
	o.setIf(f.Precision != "", "$Precision", facetValue(f.Precision))
	o.setIf(f.Scale != "", "$Scale", facetValue(f.Scale))
	o.setIf(f.SRID != "", "$SRID", facetValue(f.SRID))
	if f.Unicode != nil {
		o.set("$Unicode", *f.Unicode)
	}
	return o
}

func (j *jsonEncoder) structured(kind string, t edm.StructuredType) *object {
	o := newObject().set("$Kind", kind)
	if base := t.BaseType(); base != nil {
		o.set("$BaseType", j.plan.Qualify(base.(edm.SchemaElement).FullName()))
	}
	o.setIf(t.IsAbstract(), "$Abstract", true)
	o.setIf(t.IsOpen(), "$OpenType", true)
	if et, ok := t.(*edm.EntityType); ok {
		o.setIf(et.HasStream(), "$HasStream", true)
		if key := et.DeclaredKey(); len(key) > 0 {
			refs := make([]any, 0, len(key))
			for _, ref := range key {
				if ref.Alias != "" {
					refs = append(refs, newObject().set(ref.Alias, ref.Name))
				} else {
					refs = append(refs, ref.Name)
				}
			}
			o.set("$Key", refs)
		}
	}
	for _, p := range t.DeclaredProperties() {
		switch v := p.(type) {
		case *edm.StructuralProperty:
			po := j.typeMembers(newObject(), v.Type(), true)
			if def, ok := v.DefaultValue(); ok {
				po.set("$DefaultValue", def)
			}
			o.set(v.Name(), j.annotate(po, "", v))
		case *edm.NavigationProperty:
			o.set(v.Name(), j.navigation(v))
		}
	}
	return j.annotate(o, "", t)
}

func (j *jsonEncoder) navigation(n *edm.NavigationProperty) *object {
	o := newObject().set("$Kind", "NavigationProperty")
	j.typeMembers(o, n.Type(), !n.Type().IsCollection())
	if partner := n.PartnerPath(); len(partner) > 0 {
		o.set("$Partner", j.plan.Target(partner.String()))
	}
	o.setIf(n.ContainsTarget(), "$ContainsTarget", true)
	if rcs := n.ReferentialConstraints(); len(rcs) > 0 {
		rc := newObject()
		for _, c := range rcs {
			rc.set(c.Property, c.ReferencedProperty)
		}
		o.set("$ReferentialConstraint", rc)
	}
	o.setIf(n.OnDelete() != edm.OnDeleteUnspecified, "$OnDelete", string(n.OnDelete()))
	return j.annotate(o, "", n)
}

func (j *jsonEncoder) enum(t *edm.EnumType) *object {
	o := newObject().set("$Kind", "EnumType")
	if u := t.UnderlyingType(); u != nil && u != edm.Int32Type {
		o.set("$UnderlyingType", u.FullName())
	}
	o.setIf(t.IsFlags(), "$IsFlags", true)
	for _, m := range t.Members() {
		o.set(m.Name(), m.Value())
		j.annotate(o, m.Name(), m)
	}
	return j.annotate(o, "", t)
}

func (j *jsonEncoder) term(t *edm.Term) *object {
	o := j.typeMembers(newObject().set("$Kind", "Term"), t.Type(), true)
	o.setIf(t.BaseTerm() != "", "$BaseTerm", j.plan.Qualify(t.BaseTerm()))
	if def, ok := t.DefaultValue(); ok {
		o.set("$DefaultValue", def)
	}
	if applies := t.AppliesTo(); len(applies) > 0 {
		o.set("$AppliesTo", applies)
	}
	return j.annotate(o, "", t)
}

func (j *jsonEncoder) operation(op *edm.Operation) *object {
	kind := "Action"
	if op.IsFunction() {
		kind = "Function"
	}
	o := newObject().set("$Kind", kind)
	o.setIf(op.IsBound(), "$IsBound", true)
	o.setIf(op.IsComposable(), "$IsComposable", true)
	if path := op.EntitySetPath(); len(path) > 0 {
		o.set("$EntitySetPath", path.String())
	}
	if params := op.Parameters(); len(params) > 0 {
		list := make([]any, 0, len(params))
		for _, p := range params {
			po := j.typeMembers(newObject().set("$Name", p.Name()), p.Type(), true)
			list = append(list, j.annotate(po, "", p))
		}
		o.set("$Parameter", list)
	}
	if rt := op.ReturnType(); rt != nil {
		o.set("$ReturnType", j.annotate(j.typeMembers(newObject(), rt.Type(), true), "", rt))
	}
	return j.annotate(o, "", op)
}

func (j *jsonEncoder) container(c *edm.EntityContainer) *object {
	o := newObject().set("$Kind", "EntityContainer")
	if ext := c.Extends(); ext != nil {
		o.set("$Extends", j.plan.Qualify(ext.FullName()))
	}
	for _, el := range c.Elements() {
		switch v := el.(type) {
		case *edm.EntitySet:
			so := newObject().set("$Collection", true).set("$Type", j.plan.Qualify(v.Type().FullName()))
			so.setIf(!v.IncludeInServiceDocument(), "$IncludeInServiceDocument", false)
			o.set(v.Name(), j.annotate(j.bindings(so, v.NavigationPropertyBindings()), "", v))
		case *edm.Singleton:
			so := newObject().set("$Type", j.plan.Qualify(v.Type().FullName()))
			so.setIf(v.IsNullable(), "$Nullable", true)
			o.set(v.Name(), j.annotate(j.bindings(so, v.NavigationPropertyBindings()), "", v))
		case *edm.OperationImport:
			imp := newObject()
			if v.IsFunctionImport() {
				imp.set("$Function", j.plan.Qualify(v.OperationName()))
			} else {
				imp.set("$Action", j.plan.Qualify(v.OperationName()))
			}
			imp.setIf(v.EntitySet() != "", "$EntitySet", v.EntitySet())
			imp.setIf(v.IsFunctionImport() && v.IncludeInServiceDocument(), "$IncludeInServiceDocument", true)
			o.set(v.Name(), j.annotate(imp, "", v))
		}
	}
	return j.annotate(o, "", c)
}

func (j *jsonEncoder) bindings(o *object, bindings []*edm.NavigationPropertyBinding) *object {
	if len(bindings) == 0 {
		return o
	}
	b := newObject()
	for _, binding := range bindings {
		b.set(j.plan.Target(binding.Path().String()), j.plan.BindingTarget(binding.Target()))
	}
	return o.set("$NavigationPropertyBinding", b)
}

func (j *jsonEncoder) expression(v edm.Expression) any {
	switch c := v.(type) {
	case nil:
		return nil
	case *edm.NullExpression:
		return nil
	case *edm.BooleanConstant:
		return c.Value
	case *edm.IntegerConstant:
		return c.Value
	case *edm.FloatingConstant:
		if math.IsInf(c.Value, 0) || math.IsNaN(c.Value) {
			return literal.FormatFloat(c.Value)
		}
		return json.Number(literal.FormatFloat(c.Value))
	case *edm.DecimalConstant:
		return json.Number(literal.FormatDecimal(c.Value))
	case *edm.EnumMemberExpression:
		return c.NameText()
	case *edm.UntypedConstant:
		switch c.Kind {
		case edm.UntypedNumber:
			return json.Number(c.Text)
		case edm.UntypedBool:
			return c.Text == "true"
		}
		return c.Text
	case *edm.PathExpression:
		return newObject().set("$"+edm.PathKindName(c.Kind), j.plan.Target(c.Path.String()))
	case *edm.CollectionExpression:
		items := make([]any, 0, len(c.Items))
		for _, item := range c.Items {
			items = append(items, j.expression(item))
		}
		return items
	case *edm.RecordExpression:
		o := newObject()
		o.setIf(c.TypeName != "", "@type", "#"+j.plan.Qualify(c.TypeName))
		for _, p := range c.Properties {
			o.set(p.Name, j.expression(p.Value))
		}
		return o
	case *edm.IfExpression:
		items := []any{j.expression(c.Test), j.expression(c.Then)}
		if c.Else != nil {
			items = append(items, j.expression(c.Else))
		}
		return newObject().set("$If", items)
	case *edm.ApplyExpression:
		args := make([]any, 0, len(c.Arguments))
		for _, arg := range c.Arguments {
			args = append(args, j.expression(arg))
		}
		return newObject().set("$Apply", args).set("$Function", c.Function)
	case *edm.CastExpression:
		return j.typeMembers(newObject().set("$Cast", j.expression(c.Operand)), c.Type, false)
	case *edm.IsOfExpression:
		return j.typeMembers(newObject().set("$IsOf", j.expression(c.Operand)), c.Type, false)
	case *edm.LabeledElement:
		return newObject().set("$LabeledElement", j.expression(c.Value)).set("$Name", c.Name)
	case *edm.LabeledElementReference:
		return newObject().set("$LabeledElementReference", j.plan.Qualify(c.Name))
	case *edm.UrlRefExpression:
		return newObject().set("$UrlRef", j.expression(c.Value))
	case *edm.OperatorExpression:
		if len(c.Operands) == 1 {
			return newObject().set("$"+c.Operator, j.expression(c.Operands[0]))
		}
		ops := make([]any, 0, len(c.Operands))
		for _, op := range c.Operands {
			ops = append(ops, j.expression(op))
		}
		return newObject().set("$"+c.Operator, ops)
	}
	if text, ok := edm.LiteralText(v); ok {
		return text
	}
	return nil
}
