// Package csdljson reads and writes the JSON representation of CSDL.
package csdljson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
)

// ErrNotCSDL is returned when the input is not a JSON CSDL document at all.
var ErrNotCSDL = errors.New("not a JSON CSDL document")

type jkind int

const (
	jObject jkind = iota + 1
	jArray
	jString
	jNumber
	jBool
	jNull
)

type member struct {
	key   string
	value *jvalue
}

// jvalue is a decoded JSON value that keeps object member order.
type jvalue struct {
	kind    jkind
	members []member
	items   []*jvalue
	text    string
	b       bool
	path    string
}

func (v *jvalue) get(key string) (*jvalue, bool) {
	for _, m := range v.members {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

func pointer(parent, key string) string {
	key = strings.ReplaceAll(key, "~", "~0")
	return parent + "/" + strings.ReplaceAll(key, "/", "~1")
}

func decodeValue(dec *json.Decoder, path string) (*jvalue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok, path)
}

func decodeToken(dec *json.Decoder, tok json.Token, path string) (*jvalue, error) {
	v := &jvalue{path: path}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v.kind = jObject
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("%s: expected member name", path)
				}
				child, err := decodeValue(dec, pointer(path, key))
				if err != nil {
					return nil, err
				}
				v.members = append(v.members, member{key, child})
			}
		case '[':
			v.kind = jArray
			for i := 0; dec.More(); i++ {
				child, err := decodeValue(dec, pointer(path, strconv.Itoa(i)))
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, child)
			}
		default:
			return nil, fmt.Errorf("%s: unexpected %v", path, t)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	case string:
		v.kind, v.text = jString, t
	case json.Number:
		v.kind, v.text = jNumber, t.String()
	case bool:
		v.kind, v.b = jBool, t
		v.text = strconv.FormatBool(t)
	case nil:
		v.kind = jNull
	}
	return v, nil
}

type reader struct {
	source string
	errs   edm.Errors
}

// Read parses a JSON CSDL document into an unresolved tree. Recoverable problems are
// returned in the error list; a non-nil error means no tree could be produced.
func Read(r io.Reader, source string) (*ast.Document, edm.Errors, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	root, err := decodeValue(dec, "")
	if err == nil {
		if _, extra := dec.Token(); extra != io.EOF {
			err = errors.New("unexpected data after the document")
		}
	}
	if err != nil {
		e := edm.NewError(edm.ErrInvalidJSON, edm.Location{Source: source}, "%v", err)
		return nil, edm.Errors{e}, fmt.Errorf("%w: %v", ErrNotCSDL, err)
	}
	if root.kind != jObject {
		e := edm.NewError(edm.ErrInvalidJSONShape, edm.Location{Source: source}, "document must be a JSON object")
		return nil, edm.Errors{e}, fmt.Errorf("%w: root is not an object", ErrNotCSDL)
	}
	rd := &reader{source: source}
	return rd.readDocument(root), rd.errs, nil
}

func (r *reader) loc(v *jvalue) edm.Location {
	return edm.Location{Source: r.source, Path: v.path}
}

func (r *reader) errorf(code edm.ErrorCode, v *jvalue, format string, args ...any) {
	r.errs = append(r.errs, edm.NewError(code, r.loc(v), format, args...))
}

func (r *reader) object(v *jvalue, what string) bool {
	if v.kind != jObject {
		r.errorf(edm.ErrInvalidJSONShape, v, "%s must be an object", what)
		return false
	}
	return true
}

func (r *reader) str(v *jvalue, key string) (string, bool) {
	m, ok := v.get(key)
	if !ok {
		return "", false
	}
	if m.kind != jString {
		r.errorf(edm.ErrInvalidJSONShape, m, "%s must be a string", key)
		return "", false
	}
	return m.text, true
}

func (r *reader) boolean(v *jvalue, key string, def bool) bool {
	m, ok := v.get(key)
	if !ok {
		return def
	}
	if m.kind != jBool {
		r.errorf(edm.ErrInvalidBoolean, m, "%s must be a boolean", key)
		return def
	}
	return m.b
}

// scalarText returns the text of a string or number member.
func (r *reader) scalarText(v *jvalue, key string) string {
	m, ok := v.get(key)
	if !ok {
		return ""
	}
	switch m.kind {
	case jString, jNumber, jBool:
		return m.text
	}
	r.errorf(edm.ErrInvalidJSONShape, m, "%s must be a scalar", key)
	return ""
}

// isAnnotationKey reports whether key is "@Term" or "target@Term"; the target is returned.
func isAnnotationKey(key string) (string, string, bool) {
	i := strings.IndexByte(key, '@')
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// annotation converts "@Term#Qualifier": value. Annotations of annotations are skipped.
func (r *reader) annotation(termPart string, v *jvalue) *ast.Annotation {
	if strings.Contains(termPart, "@") {
		return nil
	}
	if strings.HasPrefix(termPart, "odata.") || termPart == "type" {
		return nil
	}
	term, qualifier, _ := strings.Cut(termPart, "#")
	return &ast.Annotation{Term: term, Qualifier: qualifier, Value: r.expression(v), Loc: r.loc(v)}
}

func (r *reader) readDocument(root *jvalue) *ast.Document {
	doc := &ast.Document{Source: r.source, Loc: r.loc(root)}
	for _, m := range root.members {
		switch {
		case m.key == "$Version":
			if m.value.kind != jString {
				r.errorf(edm.ErrInvalidVersion, m.value, "$Version must be a string")
				continue
			}
			if m.value.text != edm.Version40 && m.value.text != edm.Version401 {
				r.errorf(edm.ErrInvalidVersion, m.value, "unsupported CSDL version %q", m.value.text)
			}
			doc.Version = m.value.text
		case m.key == "$EntityContainer":
			doc.EntityContainer, _ = r.str(root, m.key)
		case m.key == "$Reference":
			if r.object(m.value, "$Reference") {
				for _, ref := range m.value.members {
					if rf := r.readReference(ref.key, ref.value); rf != nil {
						doc.References = append(doc.References, rf)
					}
				}
			}
		case strings.HasPrefix(m.key, "$"):
			r.errorf(edm.ErrUnexpectedJSONMember, m.value, "unexpected member %s", m.key)
		case strings.HasPrefix(m.key, "@"):
		default:
			if s := r.readSchema(m.key, m.value); s != nil {
				doc.Schemas = append(doc.Schemas, s)
			}
		}
	}
	if doc.Version == "" {
		r.errorf(edm.ErrMissingAttribute, root, "document has no $Version")
	}
	return doc
}

func (r *reader) readReference(uri string, v *jvalue) *ast.Reference {
	if !r.object(v, "reference") {
		return nil
	}
	ref := &ast.Reference{URI: uri, Loc: r.loc(v)}
	for _, m := range v.members {
		switch m.key {
		case "$Include":
			if m.value.kind != jArray {
				r.errorf(edm.ErrInvalidJSONShape, m.value, "$Include must be an array")
				continue
			}
			for _, item := range m.value.items {
				if !r.object(item, "include") {
					continue
				}
				ns, ok := r.str(item, "$Namespace")
				if !ok {
					r.errorf(edm.ErrMissingAttribute, item, "include has no $Namespace")
					continue
				}
				alias, _ := r.str(item, "$Alias")
				ref.Includes = append(ref.Includes, ast.Include{Namespace: ns, Alias: alias, Loc: r.loc(item)})
			}
		case "$IncludeAnnotations":
			if m.value.kind != jArray {
				r.errorf(edm.ErrInvalidJSONShape, m.value, "$IncludeAnnotations must be an array")
				continue
			}
			for _, item := range m.value.items {
				if !r.object(item, "include annotations") {
					continue
				}
				tns, ok := r.str(item, "$TermNamespace")
				if !ok {
					r.errorf(edm.ErrMissingAttribute, item, "include annotations has no $TermNamespace")
					continue
				}
				q, _ := r.str(item, "$Qualifier")
				target, _ := r.str(item, "$TargetNamespace")
				ref.IncludeAnnotations = append(ref.IncludeAnnotations, ast.IncludeAnnotations{TermNamespace: tns, Qualifier: q, TargetNamespace: target, Loc: r.loc(item)})
			}
		default:
			if _, term, ok := isAnnotationKey(m.key); ok {
				if a := r.annotation(term, m.value); a != nil {
					ref.Annotations = append(ref.Annotations, a)
				}
				continue
			}
			r.errorf(edm.ErrUnexpectedJSONMember, m.value, "unexpected member %s", m.key)
		}
	}
	return ref
}

func (r *reader) readSchema(ns string, v *jvalue) *ast.Schema {
	if !r.object(v, "namespace "+ns) {
		return nil
	}
	s := &ast.Schema{Namespace: ns, Loc: r.loc(v)}
	for _, m := range v.members {
		switch {
		case m.key == "$Alias":
			s.Alias, _ = r.str(v, m.key)
		case m.key == "$Annotations":
			if !r.object(m.value, "$Annotations") {
				continue
			}
			for _, g := range m.value.members {
				if !r.object(g.value, "annotation group") {
					continue
				}
				group := &ast.AnnotationGroup{Target: g.key, Loc: r.loc(g.value)}
				group.Annotations = r.annotations(g.value, "")
				s.AnnotationGroups = append(s.AnnotationGroups, group)
			}
		case strings.HasPrefix(m.key, "$"):
			r.errorf(edm.ErrUnexpectedJSONMember, m.value, "unexpected member %s", m.key)
		case strings.HasPrefix(m.key, "@"):
			if a := r.annotation(m.key[1:], m.value); a != nil {
				s.Annotations = append(s.Annotations, a)
			}
		case m.value.kind == jArray:
			for _, item := range m.value.items {
				if op := r.readOperation(m.key, item); op != nil {
					s.Elements = append(s.Elements, op)
				}
			}
		case m.value.kind == jObject:
			if el := r.readElement(m.key, m.value); el != nil {
				s.Elements = append(s.Elements, el)
			}
		default:
			r.errorf(edm.ErrInvalidJSONShape, m.value, "schema element %s must be an object or an array", m.key)
		}
	}
	return s
}

// annotations collects the annotations of an object whose member names target owner;
// owner "" selects "@Term" members.
func (r *reader) annotations(v *jvalue, owner string) []*ast.Annotation {
	var out []*ast.Annotation
	for _, m := range v.members {
		target, term, ok := isAnnotationKey(m.key)
		if !ok || target != owner {
			continue
		}
		if a := r.annotation(term, m.value); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (r *reader) readElement(name string, v *jvalue) ast.Element {
	kind, hasKind := r.str(v, "$Kind")
	if !hasKind {
		if _, ok := v.get("$Key"); ok || hasProperties(v) {
			kind = "EntityType"
		} else {
			r.errorf(edm.ErrInvalidJSONShape, v, "schema element %s has no $Kind", name)
			return nil
		}
	}
	switch kind {
	case "EntityType":
		return r.readStructured(name, v, true)
	case "ComplexType":
		return r.readStructured(name, v, false)
	case "EnumType":
		return r.readEnum(name, v)
	case "TypeDefinition":
		return r.readTypeDefinition(name, v)
	case "Term":
		return r.readTerm(name, v)
	case "EntityContainer":
		return r.readContainer(name, v)
	case "Action", "Function":
		r.errorf(edm.ErrInvalidJSONShape, v, "%s %s must be an array of overloads", kind, name)
	default:
		r.errorf(edm.ErrInvalidJSONShape, v, "unknown $Kind %q of %s", kind, name)
	}
	return nil
}

func hasProperties(v *jvalue) bool {
	for _, m := range v.members {
		if !strings.HasPrefix(m.key, "$") && !strings.Contains(m.key, "@") && m.value.kind == jObject {
			return true
		}
	}
	return false
}

// typeRef reads $Type, $Collection, $Nullable and the facets. JSON defaults $Type to
// Edm.String and $Nullable to false.
func (r *reader) typeRef(v *jvalue) ast.TypeRef {
	t := r.facets(v)
	t.Name = "Edm.String"
	if name, ok := r.str(v, "$Type"); ok {
		t.Name = name
	}
	if r.boolean(v, "$Collection", false) {
		t.Name = "Collection(" + t.Name + ")"
	}
	t.Nullable = r.boolean(v, "$Nullable", false)
	return t
}

func (r *reader) facets(v *jvalue) ast.TypeRef {
	var t ast.TypeRef
	t.MaxLength = r.scalarText(v, "$MaxLength")
	t.Precision = r.scalarText(v, "$Precision")
	t.Scale = r.scalarText(v, "$Scale")
	t.SRID = r.scalarText(v, "$SRID")
	if _, ok := v.get("$Unicode"); ok {
		b := r.boolean(v, "$Unicode", true)
		t.Unicode = &b
	}
	return t
}

var typeMembers = map[string]bool{
	"$Kind": true, "$Type": true, "$Collection": true, "$Nullable": true, "$MaxLength": true,
	"$Precision": true, "$Scale": true, "$SRID": true, "$Unicode": true,
}

// checkMembers reports "$" members of v that are neither type members nor in allowed.
func (r *reader) checkMembers(v *jvalue, allowed ...string) {
	for _, m := range v.members {
		if !strings.HasPrefix(m.key, "$") || typeMembers[m.key] {
			continue
		}
		known := false
		for _, a := range allowed {
			if a == m.key {
				known = true
				break
			}
		}
		if !known {
			r.errorf(edm.ErrUnexpectedJSONMember, m.value, "unexpected member %s", m.key)
		}
	}
}

func (r *reader) readStructured(name string, v *jvalue, entity bool) *ast.StructuredType {
	r.checkMembers(v, "$BaseType", "$Abstract", "$OpenType", "$HasStream", "$Key")
	st := &ast.StructuredType{Entity: entity, Name: name, Loc: r.loc(v)}
	st.BaseType, _ = r.str(v, "$BaseType")
	st.Abstract = r.boolean(v, "$Abstract", false)
	st.Open = r.boolean(v, "$OpenType", false)
	st.HasStream = r.boolean(v, "$HasStream", false)
	if key, ok := v.get("$Key"); ok {
		if key.kind != jArray {
			r.errorf(edm.ErrInvalidJSONShape, key, "$Key must be an array")
		}
		for _, item := range key.items {
			switch item.kind {
			case jString:
				st.Key = append(st.Key, ast.PropertyRef{Name: item.text, Loc: r.loc(item)})
			case jObject:
				for _, m := range item.members {
					if m.value.kind == jString {
						st.Key = append(st.Key, ast.PropertyRef{Name: m.value.text, Alias: m.key, Loc: r.loc(item)})
					}
				}
			default:
				r.errorf(edm.ErrInvalidJSONShape, item, "key entries must be strings or objects")
			}
		}
	}
	for _, m := range v.members {
		if strings.HasPrefix(m.key, "$") || strings.Contains(m.key, "@") {
			continue
		}
		if !r.object(m.value, "property "+m.key) {
			continue
		}
		p := r.readProperty(m.key, m.value)
		p.Annotations = append(p.Annotations, r.annotations(v, m.key)...)
		st.Properties = append(st.Properties, p)
	}
	st.Annotations = r.annotations(v, "")
	return st
}

func (r *reader) readProperty(name string, v *jvalue) *ast.Property {
	p := &ast.Property{Name: name, Type: r.typeRef(v), Loc: r.loc(v)}
	kind, _ := r.str(v, "$Kind")
	switch kind {
	case "", "Property":
		r.checkMembers(v, "$DefaultValue")
		if _, ok := v.get("$DefaultValue"); ok {
			def := r.scalarText(v, "$DefaultValue")
			p.DefaultValue = &def
		}
	case "NavigationProperty":
		r.checkMembers(v, "$Partner", "$ContainsTarget", "$OnDelete", "$ReferentialConstraint")
		p.Navigation = true
		p.Partner, _ = r.str(v, "$Partner")
		p.ContainsTarget = r.boolean(v, "$ContainsTarget", false)
		if action, ok := r.str(v, "$OnDelete"); ok {
			if action == "" || !edm.OnDeleteAction(action).Valid() {
				r.errorf(edm.ErrInvalidOnDelete, v, "invalid $OnDelete %q", action)
			} else {
				p.OnDelete = action
			}
		}
		if rc, ok := v.get("$ReferentialConstraint"); ok && r.object(rc, "$ReferentialConstraint") {
			for _, m := range rc.members {
				if strings.Contains(m.key, "@") || m.value.kind != jString {
					continue
				}
				p.ReferentialConstraints = append(p.ReferentialConstraints, ast.ReferentialConstraint{Property: m.key, ReferencedProperty: m.value.text, Loc: r.loc(m.value)})
			}
		}
	default:
		r.errorf(edm.ErrInvalidJSONShape, v, "unknown property $Kind %q", kind)
	}
	p.Annotations = r.annotations(v, "")
	return p
}

func (r *reader) readEnum(name string, v *jvalue) *ast.EnumType {
	r.checkMembers(v, "$UnderlyingType", "$IsFlags")
	e := &ast.EnumType{Name: name, Loc: r.loc(v)}
	e.UnderlyingType, _ = r.str(v, "$UnderlyingType")
	e.IsFlags = r.boolean(v, "$IsFlags", false)
	for _, m := range v.members {
		if strings.HasPrefix(m.key, "$") || strings.Contains(m.key, "@") {
			continue
		}
		member := &ast.EnumMember{Name: m.key, Loc: r.loc(m.value)}
		if m.value.kind != jNumber {
			r.errorf(edm.ErrInvalidInteger, m.value, "value of member %s must be an integer", m.key)
		} else if iv, err := strconv.ParseInt(m.value.text, 10, 64); err != nil {
			r.errorf(edm.ErrInvalidInteger, m.value, "value of member %s: %q is not an integer", m.key, m.value.text)
		} else {
			member.Value = &iv
		}
		member.Annotations = r.annotations(v, m.key)
		e.Members = append(e.Members, member)
	}
	e.Annotations = r.annotations(v, "")
	return e
}

func (r *reader) readTypeDefinition(name string, v *jvalue) *ast.TypeDefinition {
	r.checkMembers(v, "$UnderlyingType")
	td := &ast.TypeDefinition{Name: name, Loc: r.loc(v)}
	td.Underlying = r.facets(v)
	underlying, ok := r.str(v, "$UnderlyingType")
	if !ok {
		r.errorf(edm.ErrMissingAttribute, v, "type definition %s has no $UnderlyingType", name)
		return nil
	}
	td.Underlying.Name = underlying
	td.Underlying.Nullable = true
	td.Annotations = r.annotations(v, "")
	return td
}

func (r *reader) readTerm(name string, v *jvalue) *ast.Term {
	r.checkMembers(v, "$BaseTerm", "$DefaultValue", "$AppliesTo")
	term := &ast.Term{Name: name, Type: r.typeRef(v), Loc: r.loc(v)}
	term.BaseTerm, _ = r.str(v, "$BaseTerm")
	if _, ok := v.get("$DefaultValue"); ok {
		def := r.scalarText(v, "$DefaultValue")
		term.DefaultValue = &def
	}
	if applies, ok := v.get("$AppliesTo"); ok {
		if applies.kind != jArray {
			r.errorf(edm.ErrInvalidJSONShape, applies, "$AppliesTo must be an array")
		}
		for _, item := range applies.items {
			if item.kind == jString {
				term.AppliesTo = append(term.AppliesTo, item.text)
			}
		}
	}
	term.Annotations = r.annotations(v, "")
	return term
}

func (r *reader) readOperation(name string, v *jvalue) *ast.Operation {
	if !r.object(v, "operation "+name) {
		return nil
	}
	kind, _ := r.str(v, "$Kind")
	if kind != "Action" && kind != "Function" {
		r.errorf(edm.ErrInvalidJSONShape, v, "overload of %s must have $Kind Action or Function", name)
		return nil
	}
	r.checkMembers(v, "$IsBound", "$IsComposable", "$EntitySetPath", "$Parameter", "$ReturnType")
	op := &ast.Operation{Function: kind == "Function", Name: name, Loc: r.loc(v)}
	op.IsBound = r.boolean(v, "$IsBound", false)
	op.IsComposable = r.boolean(v, "$IsComposable", false)
	op.EntitySetPath, _ = r.str(v, "$EntitySetPath")
	if params, ok := v.get("$Parameter"); ok {
		if params.kind != jArray {
			r.errorf(edm.ErrInvalidJSONShape, params, "$Parameter must be an array")
		}
		for _, item := range params.items {
			if !r.object(item, "parameter") {
				continue
			}
			pn, ok := r.str(item, "$Name")
			if !ok {
				r.errorf(edm.ErrMissingAttribute, item, "parameter has no $Name")
				continue
			}
			r.checkMembers(item, "$Name")
			op.Parameters = append(op.Parameters, &ast.Parameter{Name: pn, Type: r.typeRef(item), Annotations: r.annotations(item, ""), Loc: r.loc(item)})
		}
	}
	if rt, ok := v.get("$ReturnType"); ok && r.object(rt, "$ReturnType") {
		r.checkMembers(rt)
		op.ReturnType = &ast.ReturnType{Type: r.typeRef(rt), Annotations: r.annotations(rt, ""), Loc: r.loc(rt)}
	}
	op.Annotations = r.annotations(v, "")
	return op
}

func (r *reader) readContainer(name string, v *jvalue) *ast.EntityContainer {
	r.checkMembers(v, "$Extends")
	ec := &ast.EntityContainer{Name: name, Loc: r.loc(v)}
	ec.Extends, _ = r.str(v, "$Extends")
	for _, m := range v.members {
		if strings.HasPrefix(m.key, "$") || strings.Contains(m.key, "@") {
			continue
		}
		if !r.object(m.value, "container element "+m.key) {
			continue
		}
		if el := r.readContainerElement(m.key, m.value); el != nil {
			el.Annotations = append(el.Annotations, r.annotations(v, m.key)...)
			ec.Elements = append(ec.Elements, el)
		}
	}
	ec.Annotations = r.annotations(v, "")
	return ec
}

func (r *reader) readContainerElement(name string, v *jvalue) *ast.ContainerElement {
	el := &ast.ContainerElement{Name: name, Loc: r.loc(v)}
	if action, ok := r.str(v, "$Action"); ok {
		r.checkMembers(v, "$Action", "$EntitySet")
		el.Kind, el.Operation = ast.ActionImport, action
		el.EntitySet, _ = r.str(v, "$EntitySet")
	} else if function, ok := r.str(v, "$Function"); ok {
		r.checkMembers(v, "$Function", "$EntitySet", "$IncludeInServiceDocument")
		el.Kind, el.Operation = ast.FunctionImport, function
		el.EntitySet, _ = r.str(v, "$EntitySet")
		el.IncludeInServiceDocument = r.optionalBool(v, "$IncludeInServiceDocument")
	} else {
		typ, ok := r.str(v, "$Type")
		if !ok {
			r.errorf(edm.ErrMissingAttribute, v, "container element %s has no $Type", name)
			return nil
		}
		el.Type = typ
		if r.boolean(v, "$Collection", false) {
			r.checkMembers(v, "$NavigationPropertyBinding", "$IncludeInServiceDocument")
			el.Kind = ast.EntitySet
			el.IncludeInServiceDocument = r.optionalBool(v, "$IncludeInServiceDocument")
		} else {
			r.checkMembers(v, "$NavigationPropertyBinding")
			el.Kind = ast.Singleton
			el.Nullable = r.boolean(v, "$Nullable", false)
		}
		if b, ok := v.get("$NavigationPropertyBinding"); ok && r.object(b, "$NavigationPropertyBinding") {
			for _, m := range b.members {
				if m.value.kind != jString {
					r.errorf(edm.ErrInvalidJSONShape, m.value, "binding target must be a string")
					continue
				}
				el.Bindings = append(el.Bindings, &ast.NavigationPropertyBinding{Path: m.key, Target: m.value.text, Loc: r.loc(m.value)})
			}
		}
	}
	el.Annotations = r.annotations(v, "")
	return el
}

func (r *reader) optionalBool(v *jvalue, key string) *bool {
	if _, ok := v.get(key); !ok {
		return nil
	}
	b := r.boolean(v, key, false)
	return &b
}

// expression converts an annotation value. Scalars stay untyped until the term is known.
func (r *reader) expression(v *jvalue) *ast.Expression {
	e := &ast.Expression{Loc: r.loc(v)}
	switch v.kind {
	case jNull:
		e.Kind = ast.ExprNull
	case jString:
		e.Kind, e.Untyped, e.Value = ast.ExprUntyped, edm.UntypedString, v.text
	case jNumber:
		e.Kind, e.Untyped, e.Value = ast.ExprUntyped, edm.UntypedNumber, v.text
	case jBool:
		e.Kind, e.Untyped, e.Value = ast.ExprUntyped, edm.UntypedBool, v.text
	case jArray:
		e.Kind = ast.ExprCollection
		for _, item := range v.items {
			e.Items = append(e.Items, r.expression(item))
		}
	case jObject:
		return r.objectExpression(v, e)
	}
	return e
}

func (r *reader) objectExpression(v *jvalue, e *ast.Expression) *ast.Expression {
	for _, m := range v.members {
		if !strings.HasPrefix(m.key, "$") {
			continue
		}
		name := m.key[1:]
		if _, ok := edm.PathKindByName(name); ok {
			e.Kind, e.Name, e.Value = ast.ExprPath, name, m.value.text
			return e
		}
		switch {
		case name == "Cast" || name == "IsOf":
			e.Kind = ast.ExprCast
			if name == "IsOf" {
				e.Kind = ast.ExprIsOf
			}
			t := r.typeRef(v)
			t.Nullable = true
			e.Type = &t
			e.Items = []*ast.Expression{r.expression(m.value)}
		case name == "If":
			e.Kind = ast.ExprIf
			e.Items = r.operandList(m.value)
			if len(e.Items) < 2 || len(e.Items) > 3 {
				r.errorf(edm.ErrInvalidJSONShape, m.value, "$If needs a test, a then and an optional else expression")
			}
		case name == "Apply":
			e.Kind = ast.ExprApply
			e.Name, _ = r.str(v, "$Function")
			e.Items = r.operandList(m.value)
		case name == "LabeledElement":
			e.Kind = ast.ExprLabeledElement
			e.Name, _ = r.str(v, "$Name")
			e.Items = []*ast.Expression{r.expression(m.value)}
		case name == "LabeledElementReference":
			e.Kind, e.Name = ast.ExprLabeledElementReference, m.value.text
		case name == "UrlRef":
			e.Kind = ast.ExprUrlRef
			e.Items = []*ast.Expression{r.expression(m.value)}
		case edm.IsOperator(name):
			e.Kind, e.Name = ast.ExprOperator, name
			e.Items = r.operandList(m.value)
		default:
			continue
		}
		return e
	}
	e.Kind = ast.ExprRecord
	for _, m := range v.members {
		switch {
		case m.key == "@type" || m.key == "@odata.type":
			_, typeName, found := strings.Cut(m.value.text, "#")
			if !found {
				typeName = m.value.text
			}
			e.Name = typeName
		case strings.HasPrefix(m.key, "$") || strings.Contains(m.key, "@"):
		default:
			e.Properties = append(e.Properties, &ast.PropertyValue{Name: m.key, Value: r.expression(m.value), Loc: r.loc(m.value)})
		}
	}
	return e
}

// operandList accepts an array of operands, or a single operand for unary forms.
func (r *reader) operandList(v *jvalue) []*ast.Expression {
	if v.kind != jArray {
		return []*ast.Expression{r.expression(v)}
	}
	out := make([]*ast.Expression, 0, len(v.items))
	for _, item := range v.items {
		out = append(out, r.expression(item))
	}
	return out
}
