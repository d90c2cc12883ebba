package semantics

import (
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/edm/vocabularies"
	"github.com/nlstn/go-csdl/internal/ast"
)

var untypedRef = edm.NewTypeRef(edm.UntypedType, true)

func (b *builder) resolveAnnotations() {
	for _, sn := range b.structured {
		ns := sn.schema.Namespace
		b.annotateAll(sn.typ, sn.node.Annotations, ns)
		for _, ap := range sn.node.Properties {
			if p := sn.props[ap]; p != nil {
				b.annotateAll(p, ap.Annotations, ns)
			}
		}
	}
	b.forEachElement(func(s *ast.Schema, el ast.Element) {
		ns := s.Namespace
		switch n := el.(type) {
		case *ast.EnumType:
			e := b.enums[n]
			if e == nil {
				return
			}
			b.annotateAll(e, n.Annotations, ns)
			for _, am := range n.Members {
				if member := e.FindMember(am.Name); member != nil {
					b.annotateAll(member, am.Annotations, ns)
				}
			}
		case *ast.TypeDefinition:
			if d := b.typeDefs[n]; d != nil {
				b.annotateAll(d, n.Annotations, ns)
			}
		case *ast.Term:
			if t := b.terms[n]; t != nil {
				b.annotateAll(t, n.Annotations, ns)
			}
		case *ast.Operation:
			op := b.operations[n]
			if op == nil {
				return
			}
			b.annotateAll(op, n.Annotations, ns)
			for _, ap := range n.Parameters {
				if p := op.FindParameter(ap.Name); p != nil {
					b.annotateAll(p, ap.Annotations, ns)
				}
			}
			if n.ReturnType != nil && op.ReturnType() != nil {
				b.annotateAll(op.ReturnType(), n.ReturnType.Annotations, ns)
			}
		case *ast.EntityContainer:
			c := b.containers[n]
			if c == nil {
				return
			}
			b.annotateAll(c, n.Annotations, ns)
			for _, ce := range n.Elements {
				if src := b.sources[ce]; src != nil {
					b.annotateAll(src, ce.Annotations, ns)
				} else if imp := b.imports[ce]; imp != nil {
					b.annotateAll(imp, ce.Annotations, ns)
				}
			}
		}
	})
	for _, s := range b.doc.Schemas {
		if len(s.Annotations) > 0 {
			target := edm.NewUnresolvedTarget(s.Namespace)
			for _, aa := range s.Annotations {
				b.annotate(target, aa, "", s.Namespace, false)
			}
		}
		for _, g := range s.AnnotationGroups {
			target := b.resolveTarget(g.Target, g.Loc)
			for _, aa := range g.Annotations {
				b.annotate(target, aa, g.Qualifier, s.Namespace, false)
			}
		}
	}
}

func (b *builder) annotateAll(target edm.Annotatable, annotations []*ast.Annotation, ns string) {
	for _, aa := range annotations {
		b.annotate(target, aa, "", ns, true)
	}
}

// annotate adds one annotation to the model. An annotation without qualifier takes the
// qualifier of its group.
func (b *builder) annotate(target edm.Annotatable, aa *ast.Annotation, groupQualifier, ns string, inline bool) {
	term := b.findTerm(aa.Term)
	qualifier := aa.Qualifier
	if qualifier == "" {
		qualifier = groupQualifier
	}
	var value edm.Expression
	if aa.Value != nil {
		value = b.expression(aa.Value, term.Type())
	}
	a, err := edm.NewAnnotation(target, term, qualifier, value)
	if err != nil {
		b.errorf(edm.ErrBadUnresolvedTarget, aa.Loc, "%v", err)
		return
	}
	a.SetLocation(aa.Loc)
	if inline {
		if err := a.SetSerializationLocation(edm.Inline); err != nil {
			b.errorf(edm.ErrBadUnresolvedTarget, aa.Loc, "%v", err)
		}
	}
	a.SetNamespace(ns)
	if err := b.m.SetVocabularyAnnotation(a); err != nil {
		b.errorf(edm.ErrBadUnresolvedTarget, aa.Loc, "%v", err)
		return
	}
	if p, ok := target.(*edm.Parameter); ok && term.FullName() == vocabularies.OptionalParameter {
		_ = p.MakeOptional(optionalDefault(a.Value()))
	}
}

func optionalDefault(v edm.Expression) string {
	rec, ok := v.(*edm.RecordExpression)
	if !ok {
		return ""
	}
	text, _ := edm.LiteralText(rec.FindProperty("DefaultValue"))
	return text
}

// findTerm looks a term up in the model, its references and the built-in vocabularies. An
// unknown term yields a placeholder term typed Edm.Untyped, shared by all its uses.
func (b *builder) findTerm(name string) *edm.Term {
	if t := b.m.FindTerm(name); t != nil {
		return t
	}
	full := b.m.ResolveAlias(name)
	if t := vocabularies.FindTerm(full); t != nil {
		return t
	}
	if t := vocabularies.FindTerm(name); t != nil {
		return t
	}
	if t, ok := b.unknownTerm[full]; ok {
		return t
	}
	b.r.logger.Debug("Unknown annotation term", "term", full)
	t := edm.NewUnresolvedTerm(full)
	b.unknownTerm[full] = t
	return t
}

// resolveTarget resolves the target of an annotation group. Targets that cannot be
// resolved are reported and kept as *edm.UnresolvedTarget.
func (b *builder) resolveTarget(target string, loc edm.Location) edm.Annotatable {
	t, failedAt := b.findTarget(target)
	if t != nil {
		return t
	}
	if failedAt > 0 {
		b.errorf(edm.ErrBadUnresolvedProperty, loc, "annotation target %s: segment %d cannot be resolved", target, failedAt+1)
	}
	b.errorf(edm.ErrBadUnresolvedTarget, loc, "annotation target %s cannot be resolved", target)
	return edm.NewUnresolvedTarget(target)
}

// findTarget returns the element a target string names, or the index of the first segment
// that could not be resolved.
func (b *builder) findTarget(target string) (edm.Annotatable, int) {
	segs := strings.Split(b.m.NormalizeTarget(target), "/")
	head := segs[0]
	if name, _, overload := strings.Cut(head, "("); overload {
		for _, op := range b.m.FindOperations(name) {
			if op.QualifiedTarget() == head {
				return operationMember(op, segs[1:])
			}
		}
		return nil, 0
	}
	switch el := b.m.FindVisibleElement(head).(type) {
	case nil:
		return nil, 0
	case *edm.EntityContainer:
		switch len(segs) {
		case 1:
			return el, 0
		case 2:
			if child := el.FindElement(segs[1]); child != nil {
				return child, 0
			}
			return nil, 1
		}
		tp, err := b.m.ResolveTargetPath(strings.Join(segs, "/"))
		if err != nil {
			if el.FindNavigationSource(segs[1]) == nil {
				return nil, 1
			}
			return nil, 2
		}
		return tp, 0
	case edm.StructuredType:
		return structuredMember(b.m, el, segs[1:])
	case *edm.EnumType:
		switch len(segs) {
		case 1:
			return el, 0
		case 2:
			if m := el.FindMember(segs[1]); m != nil {
				return m, 0
			}
		}
		return nil, 1
	case *edm.Operation:
		// Without a parameter list the first overload declaring the member is taken.
		for _, op := range b.m.FindOperations(head) {
			if t, _ := operationMember(op, segs[1:]); t != nil {
				return t, 0
			}
		}
		return nil, 1
	default:
		if len(segs) == 1 {
			return el, 0
		}
		return nil, 1
	}
}

func operationMember(op *edm.Operation, rest []string) (edm.Annotatable, int) {
	switch {
	case len(rest) == 0:
		return op, 0
	case len(rest) > 1:
		return nil, 1
	case rest[0] == "$ReturnType":
		if rt := op.ReturnType(); rt != nil {
			return rt, 0
		}
	default:
		if p := op.FindParameter(rest[0]); p != nil {
			return p, 0
		}
	}
	return nil, 1
}

// structuredMember follows property and type-cast segments from a structured type.
func structuredMember(m *edm.Model, st edm.StructuredType, rest []string) (edm.Annotatable, int) {
	var cur edm.Annotatable = st
	for i, seg := range rest {
		if st == nil {
			return nil, i + 1
		}
		if edm.IsQualifiedName(seg) {
			cast, ok := m.FindType(seg).(edm.StructuredType)
			if !ok || (cast != st && !cast.InheritsFrom(st)) {
				return nil, i + 1
			}
			st, cur = cast, cast
			continue
		}
		p := st.FindProperty(seg)
		if p == nil {
			return nil, i + 1
		}
		cur = p
		st = p.Type().StructuredDefinition()
	}
	return cur, 0
}

// expression converts an annotation value. t is the type the value is expected to have.
func (b *builder) expression(ae *ast.Expression, t edm.TypeRef) edm.Expression {
	switch ae.Kind {
	case ast.ExprConstant:
		return b.constant(ae, t)
	case ast.ExprUntyped:
		return b.untyped(ae, t)
	case ast.ExprNull:
		return &edm.NullExpression{}
	case ast.ExprPath:
		kind, ok := edm.PathKindByName(ae.Name)
		if !ok {
			kind = edm.ExprPath
		}
		return &edm.PathExpression{Kind: kind, Path: edm.ParsePath(ae.Value)}
	case ast.ExprCollection:
		c := &edm.CollectionExpression{}
		for _, item := range ae.Items {
			c.Items = append(c.Items, b.expression(item, t.ElementType()))
		}
		return c
	case ast.ExprRecord:
		return b.record(ae, t)
	case ast.ExprIf:
		e := &edm.IfExpression{}
		if len(ae.Items) > 0 {
			e.Test = b.expression(ae.Items[0], edm.NewTypeRef(edm.BooleanType, false))
		}
		if len(ae.Items) > 1 {
			e.Then = b.expression(ae.Items[1], t)
		}
		if len(ae.Items) > 2 {
			e.Else = b.expression(ae.Items[2], t)
		}
		return e
	case ast.ExprApply:
		return &edm.ApplyExpression{Function: ae.Name, Arguments: b.operands(ae.Items)}
	case ast.ExprCast, ast.ExprIsOf:
		var typ edm.TypeRef
		if ae.Type != nil {
			typ = b.typeRef(*ae.Type, ae.Loc)
		} else {
			typ = untypedRef
		}
		var operand edm.Expression
		if len(ae.Items) > 0 {
			operand = b.expression(ae.Items[0], typ)
		}
		if ae.Kind == ast.ExprCast {
			return &edm.CastExpression{Type: typ, Operand: operand}
		}
		return &edm.IsOfExpression{Type: typ, Operand: operand}
	case ast.ExprLabeledElement:
		e := &edm.LabeledElement{Name: ae.Name}
		if len(ae.Items) > 0 {
			e.Value = b.expression(ae.Items[0], t)
		}
		return e
	case ast.ExprLabeledElementReference:
		return &edm.LabeledElementReference{Name: b.m.ResolveAlias(ae.Name)}
	case ast.ExprUrlRef:
		e := &edm.UrlRefExpression{}
		if len(ae.Items) > 0 {
			e.Value = b.expression(ae.Items[0], edm.NewTypeRef(edm.StringType, false))
		}
		return e
	case ast.ExprOperator:
		return &edm.OperatorExpression{Operator: ae.Name, Operands: b.operands(ae.Items)}
	}
	return &edm.NullExpression{}
}

func (b *builder) operands(items []*ast.Expression) []edm.Expression {
	out := make([]edm.Expression, len(items))
	for i, item := range items {
		out[i] = b.expression(item, untypedRef)
	}
	return out
}

// constant converts a constant of explicit kind. Integer and string constants given for an
// enum-typed value are read as member values.
func (b *builder) constant(ae *ast.Expression, t edm.TypeRef) edm.Expression {
	enum, _ := t.ElementType().Definition.(*edm.EnumType)
	if ae.Name == "EnumMember" {
		return b.enumMember(ae, enum)
	}
	if enum != nil && (ae.Name == "Int" || ae.Name == "String") {
		members, err := enum.ParseMembers(ae.Value)
		if err == nil {
			return &edm.EnumMemberExpression{Type: enum, Members: members}
		}
		b.errorf(edm.ErrInvalidLiteralValue, ae.Loc, "%v", err)
	}
	v, err := edm.ParseConstant(ae.Name, ae.Value)
	if err != nil {
		b.errorf(edm.ErrInvalidLiteralValue, ae.Loc, "invalid %s value %q: %v", ae.Name, ae.Value, err)
		return &edm.StringConstant{Value: ae.Value}
	}
	return v
}

// enumMember reads a member list. Paths name their enum type; bare member names need the
// expected enum type.
func (b *builder) enumMember(ae *ast.Expression, expected *edm.EnumType) edm.Expression {
	enum := expected
	if fields := strings.Fields(ae.Value); len(fields) > 0 {
		if typeName, _, ok := strings.Cut(fields[0], "/"); ok {
			enum, _ = b.m.FindType(typeName).(*edm.EnumType)
		}
	}
	if enum == nil {
		b.errorf(edm.ErrInvalidEnumMemberPath, ae.Loc, "enum member %q does not name an enum type", ae.Value)
		return &edm.StringConstant{Value: ae.Value}
	}
	members, err := enum.ParseMembers(ae.Value)
	if err != nil {
		b.errorf(edm.ErrInvalidEnumMemberPath, ae.Loc, "%v", err)
		return &edm.StringConstant{Value: ae.Value}
	}
	return &edm.EnumMemberExpression{Type: enum, Members: members}
}

// untyped converts a JSON constant using the expected type. A token that cannot be a value
// of that type is converted by its own shape and left for validation to report.
func (b *builder) untyped(ae *ast.Expression, t edm.TypeRef) edm.Expression {
	el := t.ElementType()
	if isOpen(el) || !tokenFits(ae.Untyped, el) {
		return natural(ae.Untyped, ae.Value)
	}
	v, err := edm.ConvertLiteral(el, ae.Value)
	if err != nil {
		b.errorf(edm.ErrInvalidLiteralValue, ae.Loc, "value %q is not valid for %s: %v", ae.Value, el.FullName(), err)
		return natural(ae.Untyped, ae.Value)
	}
	return v
}

func isOpen(t edm.TypeRef) bool {
	switch d := t.Definition.(type) {
	case nil, *edm.BadType:
		return true
	case *edm.PrimitiveType:
		return d == edm.UntypedType || d == edm.AbstractPrimitiveType
	}
	return false
}

func tokenFits(kind edm.UntypedKind, t edm.TypeRef) bool {
	switch kind {
	case edm.UntypedBool:
		return t.IsBoolean()
	case edm.UntypedNumber:
		if _, ok := t.Definition.(*edm.EnumType); ok {
			return true
		}
		p, ok := t.Primitive()
		if !ok {
			return false
		}
		switch p.Kind() {
		case edm.PrimitiveByte, edm.PrimitiveSByte, edm.PrimitiveInt16, edm.PrimitiveInt32, edm.PrimitiveInt64,
			edm.PrimitiveDouble, edm.PrimitiveSingle, edm.PrimitiveDecimal:
			return true
		}
		return false
	}
	return !t.IsBoolean() && t.StructuredDefinition() == nil
}

// natural converts a JSON constant by its token kind alone.
func natural(kind edm.UntypedKind, text string) edm.Expression {
	switch kind {
	case edm.UntypedBool:
		return &edm.BooleanConstant{Value: text == "true"}
	case edm.UntypedNumber:
		for _, k := range []string{"Int", "Decimal", "Float"} {
			if v, err := edm.ParseConstant(k, text); err == nil {
				return v
			}
		}
	}
	return &edm.StringConstant{Value: text}
}

// record converts a record. Member values are typed by the record type, which is the
// explicit type of the record or the expected type.
func (b *builder) record(ae *ast.Expression, t edm.TypeRef) edm.Expression {
	r := &edm.RecordExpression{}
	st := t.StructuredDefinition()
	if ae.Name != "" {
		r.TypeName = b.m.ResolveAlias(ae.Name)
		if explicit, ok := b.m.FindType(r.TypeName).(edm.StructuredType); ok {
			st = explicit
		} else if found := vocabularies.Core().FindType(r.TypeName); found != nil {
			st, _ = found.(edm.StructuredType)
		}
	}
	for _, pv := range ae.Properties {
		pt := untypedRef
		if st != nil {
			if p := st.FindProperty(pv.Name); p != nil {
				pt = p.Type()
			}
		}
		var value edm.Expression = &edm.NullExpression{}
		if pv.Value != nil {
			value = b.expression(pv.Value, pt)
		}
		r.Properties = append(r.Properties, &edm.PropertyValue{Name: pv.Name, Value: value})
	}
	return r
}
