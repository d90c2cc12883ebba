// Package csdlxml reads and writes the XML representation of CSDL.
package csdlxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
	"github.com/nlstn/go-csdl/literal"
)

// XML namespaces of CSDL 4.0 and 4.01 documents.
const (
	EdmxNamespace = "http://docs.oasis-open.org/odata/ns/edmx"
	EdmNamespace  = "http://docs.oasis-open.org/odata/ns/edm"
)

// ErrNotCSDL is returned when the input is not an XML CSDL document at all.
var ErrNotCSDL = errors.New("not an XML CSDL document")

// node is one element of the token stream, with its children.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
	loc      edm.Location
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// tokenize streams the document into a node tree. Only well-formedness is checked here.
func tokenize(r io.Reader, source string) (*node, error) {
	dec := xml.NewDecoder(r)
	var stack []*node
	var root *node
	for {
		line, col := dec.InputPos()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: t.Copy().Attr, loc: edm.Location{Source: source, Line: line, Column: col}}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("line %d: more than one root element", line)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

type reader struct {
	source  string
	version string
	errs    edm.Errors
}

// Read parses an XML CSDL document into an unresolved tree. Recoverable problems are
// returned in the error list; a non-nil error means no tree could be produced.
func Read(r io.Reader, source string) (*ast.Document, edm.Errors, error) {
	root, err := tokenize(r, source)
	if err != nil {
		e := edm.NewError(edm.ErrInvalidXML, edm.Location{Source: source}, "%v", err)
		return nil, edm.Errors{e}, fmt.Errorf("%w: %v", ErrNotCSDL, err)
	}
	if root.name.Local != "Edmx" || root.name.Space != EdmxNamespace {
		e := edm.NewError(edm.ErrUnexpectedXMLElement, root.loc, "root element must be edmx:Edmx, found %s", root.name.Local)
		return nil, edm.Errors{e}, fmt.Errorf("%w: root element %s", ErrNotCSDL, root.name.Local)
	}
	rd := &reader{source: source}
	doc := rd.readEdmx(root)
	return doc, rd.errs, nil
}

func (r *reader) errorf(code edm.ErrorCode, n *node, format string, args ...any) {
	r.errs = append(r.errs, edm.NewError(code, n.loc, format, args...))
}

func (r *reader) unexpected(n *node, parent string) {
	r.errorf(edm.ErrUnexpectedXMLElement, n, "unexpected element %s in %s", n.name.Local, parent)
}

func (r *reader) required(n *node, name string) (string, bool) {
	v, ok := n.attr(name)
	if !ok {
		r.errorf(edm.ErrMissingAttribute, n, "%s is missing the required attribute %s", n.name.Local, name)
	}
	return v, ok
}

func (r *reader) boolAttr(n *node, name string, def bool) bool {
	v, ok := n.attr(name)
	if !ok {
		return def
	}
	b, err := literal.ParseBool(v)
	if err != nil {
		r.errorf(edm.ErrInvalidBoolean, n, "attribute %s of %s: %q is not a boolean", name, n.name.Local, v)
		return def
	}
	return b
}

func (r *reader) optionalBool(n *node, name string) *bool {
	if _, ok := n.attr(name); !ok {
		return nil
	}
	b := r.boolAttr(n, name, false)
	return &b
}

func (r *reader) readEdmx(root *node) *ast.Document {
	doc := &ast.Document{Source: r.source, Loc: root.loc}
	if v, ok := r.required(root, "Version"); ok {
		if v != edm.Version40 && v != edm.Version401 {
			r.errorf(edm.ErrInvalidVersion, root, "unsupported CSDL version %q", v)
		}
		doc.Version = v
	}
	r.version = doc.Version
	for _, c := range root.children {
		switch c.name.Local {
		case "Reference":
			if ref := r.readReference(c); ref != nil {
				doc.References = append(doc.References, ref)
			}
		case "DataServices":
			for _, s := range c.children {
				if s.name.Local != "Schema" {
					r.unexpected(s, "DataServices")
					continue
				}
				if schema := r.readSchema(s); schema != nil {
					doc.Schemas = append(doc.Schemas, schema)
				}
			}
		default:
			r.unexpected(c, "Edmx")
		}
	}
	return doc
}

func (r *reader) readReference(n *node) *ast.Reference {
	uri, ok := r.required(n, "Uri")
	if !ok {
		return nil
	}
	ref := &ast.Reference{URI: uri, Loc: n.loc}
	for _, c := range n.children {
		switch c.name.Local {
		case "Include":
			ns, ok := r.required(c, "Namespace")
			if !ok {
				continue
			}
			alias, _ := c.attr("Alias")
			ref.Includes = append(ref.Includes, ast.Include{Namespace: ns, Alias: alias, Loc: c.loc})
		case "IncludeAnnotations":
			tns, ok := r.required(c, "TermNamespace")
			if !ok {
				continue
			}
			q, _ := c.attr("Qualifier")
			target, _ := c.attr("TargetNamespace")
			ref.IncludeAnnotations = append(ref.IncludeAnnotations, ast.IncludeAnnotations{TermNamespace: tns, Qualifier: q, TargetNamespace: target, Loc: c.loc})
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				ref.Annotations = append(ref.Annotations, a)
			}
		default:
			r.unexpected(c, "Reference")
		}
	}
	return ref
}

func (r *reader) readSchema(n *node) *ast.Schema {
	ns, ok := r.required(n, "Namespace")
	if !ok {
		return nil
	}
	alias, _ := n.attr("Alias")
	s := &ast.Schema{Namespace: ns, Alias: alias, Loc: n.loc}
	for _, c := range n.children {
		var el ast.Element
		switch c.name.Local {
		case "EntityType":
			el = r.readStructured(c, true)
		case "ComplexType":
			el = r.readStructured(c, false)
		case "EnumType":
			el = r.readEnum(c)
		case "TypeDefinition":
			el = r.readTypeDefinition(c)
		case "Term":
			el = r.readTerm(c)
		case "Action":
			el = r.readOperation(c, false)
		case "Function":
			el = r.readOperation(c, true)
		case "EntityContainer":
			el = r.readContainer(c)
		case "Annotations":
			if g := r.readAnnotationGroup(c); g != nil {
				s.AnnotationGroups = append(s.AnnotationGroups, g)
			}
			continue
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				s.Annotations = append(s.Annotations, a)
			}
			continue
		default:
			r.unexpected(c, "Schema")
			continue
		}
		if el != nil && !isNilElement(el) {
			s.Elements = append(s.Elements, el)
		}
	}
	return s
}

// isNilElement reports whether el holds a typed nil pointer.
func isNilElement(el ast.Element) bool {
	switch v := el.(type) {
	case *ast.StructuredType:
		return v == nil
	case *ast.EnumType:
		return v == nil
	case *ast.TypeDefinition:
		return v == nil
	case *ast.Term:
		return v == nil
	case *ast.Operation:
		return v == nil
	case *ast.EntityContainer:
		return v == nil
	}
	return el == nil
}

// typeRef reads the Type attribute (or attr) with its facets. XML defaults Nullable to true.
func (r *reader) typeRef(n *node, attr string) (ast.TypeRef, bool) {
	name, ok := r.required(n, attr)
	if !ok {
		return ast.TypeRef{}, false
	}
	t := r.facets(n)
	t.Name = name
	t.Nullable = r.boolAttr(n, "Nullable", true)
	return t, true
}

func (r *reader) facets(n *node) ast.TypeRef {
	var t ast.TypeRef
	t.MaxLength, _ = n.attr("MaxLength")
	t.Precision, _ = n.attr("Precision")
	t.Scale, _ = n.attr("Scale")
	t.SRID, _ = n.attr("SRID")
	t.Unicode = r.optionalBool(n, "Unicode")
	return t
}

func (r *reader) readStructured(n *node, entity bool) *ast.StructuredType {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	st := &ast.StructuredType{Entity: entity, Name: name, Loc: n.loc}
	st.BaseType, _ = n.attr("BaseType")
	st.Abstract = r.boolAttr(n, "Abstract", false)
	st.Open = r.boolAttr(n, "OpenType", false)
	if entity {
		st.HasStream = r.boolAttr(n, "HasStream", false)
	}
	explicitNullable := map[string]bool{}
	for _, c := range n.children {
		switch c.name.Local {
		case "Key":
			if !entity {
				r.unexpected(c, n.name.Local)
				continue
			}
			for _, pr := range c.children {
				if pr.name.Local != "PropertyRef" {
					r.unexpected(pr, "Key")
					continue
				}
				if pn, ok := r.required(pr, "Name"); ok {
					alias, _ := pr.attr("Alias")
					st.Key = append(st.Key, ast.PropertyRef{Name: pn, Alias: alias, Loc: pr.loc})
				}
			}
		case "Property":
			if p := r.readProperty(c); p != nil {
				_, explicitNullable[p.Name] = c.attr("Nullable")
				st.Properties = append(st.Properties, p)
			}
		case "NavigationProperty":
			if p := r.readNavigationProperty(c); p != nil {
				st.Properties = append(st.Properties, p)
			}
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				st.Annotations = append(st.Annotations, a)
			}
		default:
			r.unexpected(c, n.name.Local)
		}
	}
	if r.version == edm.Version401 {
		for _, k := range st.Key {
			for _, p := range st.Properties {
				if p.Name == k.Name && !p.Navigation && !explicitNullable[p.Name] {
					p.Type.Nullable = false
				}
			}
		}
	}
	return st
}

func (r *reader) readProperty(n *node) *ast.Property {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	t, ok := r.typeRef(n, "Type")
	if !ok {
		return nil
	}
	p := &ast.Property{Name: name, Type: t, Loc: n.loc}
	if v, ok := n.attr("DefaultValue"); ok {
		p.DefaultValue = &v
	}
	p.Annotations = r.childAnnotations(n, nil)
	return p
}

func (r *reader) readNavigationProperty(n *node) *ast.Property {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	t, ok := r.typeRef(n, "Type")
	if !ok {
		return nil
	}
	p := &ast.Property{Name: name, Type: t, Navigation: true, Loc: n.loc}
	p.Partner, _ = n.attr("Partner")
	p.ContainsTarget = r.boolAttr(n, "ContainsTarget", false)
	for _, c := range n.children {
		switch c.name.Local {
		case "ReferentialConstraint":
			prop, ok1 := r.required(c, "Property")
			ref, ok2 := r.required(c, "ReferencedProperty")
			if ok1 && ok2 {
				p.ReferentialConstraints = append(p.ReferentialConstraints, ast.ReferentialConstraint{Property: prop, ReferencedProperty: ref, Loc: c.loc})
			}
		case "OnDelete":
			if action, ok := r.required(c, "Action"); ok {
				if !edm.OnDeleteAction(action).Valid() || action == "" {
					r.errorf(edm.ErrInvalidOnDelete, c, "invalid OnDelete action %q", action)
					continue
				}
				p.OnDelete = action
			}
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				p.Annotations = append(p.Annotations, a)
			}
		default:
			r.unexpected(c, "NavigationProperty")
		}
	}
	return p
}

// childAnnotations reads the Annotation children of n; other children are reported unless
// allowed says otherwise.
func (r *reader) childAnnotations(n *node, allowed func(*node) bool) []*ast.Annotation {
	var out []*ast.Annotation
	for _, c := range n.children {
		if c.name.Local == "Annotation" {
			if a := r.readAnnotation(c); a != nil {
				out = append(out, a)
			}
			continue
		}
		if allowed == nil || !allowed(c) {
			r.unexpected(c, n.name.Local)
		}
	}
	return out
}

func (r *reader) readEnum(n *node) *ast.EnumType {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	e := &ast.EnumType{Name: name, Loc: n.loc}
	e.UnderlyingType, _ = n.attr("UnderlyingType")
	e.IsFlags = r.boolAttr(n, "IsFlags", false)
	for _, c := range n.children {
		switch c.name.Local {
		case "Member":
			mn, ok := r.required(c, "Name")
			if !ok {
				continue
			}
			m := &ast.EnumMember{Name: mn, Loc: c.loc}
			if v, ok := c.attr("Value"); ok {
				iv, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				if err != nil {
					r.errorf(edm.ErrInvalidInteger, c, "value of member %s: %q is not an integer", mn, v)
				} else {
					m.Value = &iv
				}
			}
			m.Annotations = r.childAnnotations(c, nil)
			e.Members = append(e.Members, m)
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				e.Annotations = append(e.Annotations, a)
			}
		default:
			r.unexpected(c, "EnumType")
		}
	}
	return e
}

func (r *reader) readTypeDefinition(n *node) *ast.TypeDefinition {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	underlying, ok := r.required(n, "UnderlyingType")
	if !ok {
		return nil
	}
	td := &ast.TypeDefinition{Name: name, Loc: n.loc}
	td.Underlying = r.facets(n)
	td.Underlying.Name = underlying
	td.Underlying.Nullable = true
	td.Annotations = r.childAnnotations(n, nil)
	return td
}

func (r *reader) readTerm(n *node) *ast.Term {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	t, ok := r.typeRef(n, "Type")
	if !ok {
		return nil
	}
	term := &ast.Term{Name: name, Type: t, Loc: n.loc}
	term.BaseTerm, _ = n.attr("BaseTerm")
	if v, ok := n.attr("DefaultValue"); ok {
		term.DefaultValue = &v
	}
	if v, ok := n.attr("AppliesTo"); ok {
		term.AppliesTo = strings.Fields(v)
	}
	term.Annotations = r.childAnnotations(n, nil)
	return term
}

func (r *reader) readOperation(n *node, function bool) *ast.Operation {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	op := &ast.Operation{Function: function, Name: name, Loc: n.loc}
	op.IsBound = r.boolAttr(n, "IsBound", false)
	if function {
		op.IsComposable = r.boolAttr(n, "IsComposable", false)
	}
	op.EntitySetPath, _ = n.attr("EntitySetPath")
	for _, c := range n.children {
		switch c.name.Local {
		case "Parameter":
			pn, ok := r.required(c, "Name")
			if !ok {
				continue
			}
			t, ok := r.typeRef(c, "Type")
			if !ok {
				continue
			}
			op.Parameters = append(op.Parameters, &ast.Parameter{Name: pn, Type: t, Annotations: r.childAnnotations(c, nil), Loc: c.loc})
		case "ReturnType":
			t, ok := r.typeRef(c, "Type")
			if !ok {
				continue
			}
			op.ReturnType = &ast.ReturnType{Type: t, Annotations: r.childAnnotations(c, nil), Loc: c.loc}
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				op.Annotations = append(op.Annotations, a)
			}
		default:
			r.unexpected(c, n.name.Local)
		}
	}
	return op
}

func (r *reader) readContainer(n *node) *ast.EntityContainer {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	ec := &ast.EntityContainer{Name: name, Loc: n.loc}
	ec.Extends, _ = n.attr("Extends")
	for _, c := range n.children {
		var el *ast.ContainerElement
		switch c.name.Local {
		case "EntitySet":
			el = r.readContainerElement(c, ast.EntitySet, "EntityType")
		case "Singleton":
			el = r.readContainerElement(c, ast.Singleton, "Type")
		case "ActionImport":
			el = r.readContainerElement(c, ast.ActionImport, "Action")
		case "FunctionImport":
			el = r.readContainerElement(c, ast.FunctionImport, "Function")
		case "Annotation":
			if a := r.readAnnotation(c); a != nil {
				ec.Annotations = append(ec.Annotations, a)
			}
			continue
		default:
			r.unexpected(c, "EntityContainer")
			continue
		}
		if el != nil {
			ec.Elements = append(ec.Elements, el)
		}
	}
	return ec
}

func (r *reader) readContainerElement(n *node, kind ast.ContainerKind, refAttr string) *ast.ContainerElement {
	name, ok := r.required(n, "Name")
	if !ok {
		return nil
	}
	ref, ok := r.required(n, refAttr)
	if !ok {
		return nil
	}
	el := &ast.ContainerElement{Kind: kind, Name: name, Loc: n.loc}
	switch kind {
	case ast.EntitySet, ast.Singleton:
		el.Type = ref
	default:
		el.Operation = ref
		el.EntitySet, _ = n.attr("EntitySet")
	}
	if kind == ast.Singleton {
		el.Nullable = r.boolAttr(n, "Nullable", false)
	}
	if kind == ast.EntitySet || kind == ast.FunctionImport {
		el.IncludeInServiceDocument = r.optionalBool(n, "IncludeInServiceDocument")
	}
	el.Annotations = r.childAnnotations(n, func(c *node) bool {
		if c.name.Local != "NavigationPropertyBinding" || (kind != ast.EntitySet && kind != ast.Singleton) {
			return false
		}
		path, ok1 := r.required(c, "Path")
		target, ok2 := r.required(c, "Target")
		if ok1 && ok2 {
			el.Bindings = append(el.Bindings, &ast.NavigationPropertyBinding{Path: path, Target: target, Loc: c.loc})
		}
		return true
	})
	return el
}

func (r *reader) readAnnotationGroup(n *node) *ast.AnnotationGroup {
	target, ok := r.required(n, "Target")
	if !ok {
		return nil
	}
	g := &ast.AnnotationGroup{Target: target, Loc: n.loc}
	g.Qualifier, _ = n.attr("Qualifier")
	g.Annotations = r.childAnnotations(n, nil)
	return g
}

func (r *reader) readAnnotation(n *node) *ast.Annotation {
	term, ok := r.required(n, "Term")
	if !ok {
		return nil
	}
	a := &ast.Annotation{Term: term, Loc: n.loc}
	a.Qualifier, _ = n.attr("Qualifier")
	a.Value = r.valueOf(n)
	return a
}

var constantNames = map[string]bool{
	"Binary": true, "Bool": true, "Date": true, "DateTimeOffset": true, "Decimal": true,
	"Duration": true, "EnumMember": true, "Float": true, "Guid": true, "Int": true,
	"String": true, "TimeOfDay": true,
}

// valueOf returns the expression of an element that carries one either as an attribute
// (constant or path) or as its first non-annotation child element.
func (r *reader) valueOf(n *node) *ast.Expression {
	for _, a := range n.attrs {
		if a.Name.Space != "" {
			continue
		}
		if constantNames[a.Name.Local] {
			return &ast.Expression{Kind: ast.ExprConstant, Name: a.Name.Local, Value: a.Value, Loc: n.loc}
		}
		if _, ok := edm.PathKindByName(a.Name.Local); ok {
			return &ast.Expression{Kind: ast.ExprPath, Name: a.Name.Local, Value: a.Value, Loc: n.loc}
		}
	}
	for _, c := range n.children {
		if c.name.Local == "Annotation" {
			continue
		}
		return r.readExpression(c)
	}
	return nil
}

func (r *reader) operands(n *node) []*ast.Expression {
	var out []*ast.Expression
	for _, c := range n.children {
		if c.name.Local == "Annotation" {
			continue
		}
		if e := r.readExpression(c); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *reader) readExpression(n *node) *ast.Expression {
	local := n.name.Local
	e := &ast.Expression{Loc: n.loc}
	switch {
	case constantNames[local]:
		e.Kind, e.Name = ast.ExprConstant, local
		e.Value = n.text.String()
		if local != "String" {
			e.Value = strings.TrimSpace(e.Value)
		}
	case isPathName(local):
		e.Kind, e.Name, e.Value = ast.ExprPath, local, strings.TrimSpace(n.text.String())
	case local == "Null":
		e.Kind = ast.ExprNull
	case local == "Collection":
		e.Kind, e.Items = ast.ExprCollection, r.operands(n)
	case local == "Record":
		e.Kind = ast.ExprRecord
		e.Name, _ = n.attr("Type")
		for _, c := range n.children {
			switch c.name.Local {
			case "PropertyValue":
				prop, ok := r.required(c, "Property")
				if !ok {
					continue
				}
				e.Properties = append(e.Properties, &ast.PropertyValue{Name: prop, Value: r.valueOf(c), Loc: c.loc})
			case "Annotation":
			default:
				r.unexpected(c, "Record")
			}
		}
	case local == "If":
		e.Kind, e.Items = ast.ExprIf, r.operands(n)
		if len(e.Items) < 2 || len(e.Items) > 3 {
			r.errorf(edm.ErrUnexpectedXMLElement, n, "If needs a test, a then and an optional else expression")
		}
	case local == "Apply":
		e.Kind = ast.ExprApply
		e.Name, _ = r.required(n, "Function")
		e.Items = r.operands(n)
	case local == "Cast" || local == "IsOf":
		e.Kind = ast.ExprCast
		if local == "IsOf" {
			e.Kind = ast.ExprIsOf
		}
		t, ok := r.typeRef(n, "Type")
		if !ok {
			return nil
		}
		e.Type = &t
		e.Items = r.operands(n)
	case local == "LabeledElement":
		e.Kind = ast.ExprLabeledElement
		e.Name, _ = r.required(n, "Name")
		if v := r.valueOf(n); v != nil {
			e.Items = []*ast.Expression{v}
		}
	case local == "LabeledElementReference":
		e.Kind, e.Name = ast.ExprLabeledElementReference, strings.TrimSpace(n.text.String())
	case local == "UrlRef":
		e.Kind = ast.ExprUrlRef
		if v := r.valueOf(n); v != nil {
			e.Items = []*ast.Expression{v}
		}
	case edm.IsOperator(local):
		e.Kind, e.Name, e.Items = ast.ExprOperator, local, r.operands(n)
	default:
		r.unexpected(n, "expression")
		return nil
	}
	return e
}

func isPathName(s string) bool {
	_, ok := edm.PathKindByName(s)
	return ok
}
