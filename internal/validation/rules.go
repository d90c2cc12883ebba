package validation

import (
	"slices"

	"github.com/nlstn/go-csdl/edm"
)

func validateResolutionErrors(v *validator) {
	v.errs = append(v.errs, v.m.ResolutionErrors()...)
}

// validateDuplicateContainers reports a container whose full name is also declared by a
// referenced model.
func validateDuplicateContainers(v *validator) {
	c := v.m.EntityContainer()
	if c == nil {
		return
	}
	for _, rm := range v.m.ReferencedModels() {
		if other := rm.EntityContainer(); other != nil && other.FullName() == c.FullName() {
			v.errorf(edm.ErrDuplicateEntityContainer, c, "entity container %s is also declared by a referenced document", c.FullName())
		}
	}
}

// validateDuplicateElements reports elements that clash with a declaration of a referenced
// model. Operations of the same kind overload rather than clash.
func validateDuplicateElements(v *validator) {
	for _, e := range v.m.AllSchemaElements() {
		for _, rm := range v.m.ReferencedModels() {
			other := rm.FindSchemaElement(e.FullName())
			if other == nil || other == e {
				continue
			}
			if op, ok := e.(*edm.Operation); ok {
				if otherOp, ok := other.(*edm.Operation); ok && op.IsFunction() == otherOp.IsFunction() {
					continue
				}
			}
			v.errorf(edm.ErrAlreadyDefined, e, "%s is also declared by a referenced document", e.FullName())
		}
	}
}

func validateKeys(v *validator) {
	for _, st := range v.structuredTypes() {
		et, ok := st.(*edm.EntityType)
		if !ok {
			continue
		}
		if len(et.Key()) == 0 {
			if !et.IsAbstract() {
				v.errorf(edm.ErrKeyMissingOnEntityType, et, "entity type %s has no key", et.FullName())
			}
			continue
		}
		if base := et.BaseEntityType(); base != nil && len(et.DeclaredKey()) > 0 && len(base.Key()) > 0 {
			v.errorf(edm.ErrInvalidKey, et, "entity type %s redeclares the key inherited from %s", et.FullName(), base.FullName())
		}
		if len(et.DeclaredKey()) == 0 {
			continue
		}
		for i, p := range et.KeyProperties() {
			name := et.DeclaredKey()[i].Name
			sp, ok := p.(*edm.StructuralProperty)
			if !ok {
				v.errorf(edm.ErrInvalidKey, et, "key property %s of %s is not a structural property", name, et.FullName())
				continue
			}
			if sp.Type().Nullable {
				v.errorf(edm.ErrInvalidKey, sp, "key property %s of %s must not be nullable", name, et.FullName())
			}
			if !isKeyType(sp.Type()) {
				v.errorf(edm.ErrInvalidKey, sp, "key property %s of %s has type %s, which cannot be part of a key", name, et.FullName(), sp.Type().FullName())
			}
		}
	}
}

func isKeyType(t edm.TypeRef) bool {
	if t.IsCollection() {
		return false
	}
	if _, ok := t.Definition.(*edm.EnumType); ok {
		return true
	}
	p, ok := t.Primitive()
	return ok && p.TypeKind() == edm.TypeKindPrimitive && !p.IsSpatial() && p != edm.StreamType && p != edm.AbstractPrimitiveType
}

// validateInheritedProperties reports declared properties hiding a property of a base type.
func validateInheritedProperties(v *validator) {
	for _, st := range v.structuredTypes() {
		base := st.BaseType()
		if base == nil {
			continue
		}
		for _, p := range st.DeclaredProperties() {
			if base.FindProperty(p.Name()) != nil {
				v.errorf(edm.ErrDuplicateProperty, p, "property %s of %s is already declared by base type %s", p.Name(), st.FullName(), base.FullName())
			}
		}
	}
}

func validateOpenTypes(v *validator) {
	for _, st := range v.structuredTypes() {
		if base := st.BaseType(); base != nil && base.IsOpen() && !st.IsOpen() {
			v.errorf(edm.ErrOpenTypeBaseNotOpen, st, "type %s derives from open type %s and must be open", st.FullName(), base.FullName())
		}
	}
}

// validatePartners checks that partners point back at each other. Unresolvable partner
// paths are resolution errors and are not reported again.
func validatePartners(v *validator) {
	for _, st := range v.structuredTypes() {
		for _, nav := range st.DeclaredNavigationProperties() {
			if len(nav.PartnerPath()) == 0 {
				continue
			}
			partner, err := nav.ResolvePartner()
			if err != nil || partner == nil {
				continue
			}
			if len(partner.PartnerPath()) > 0 {
				if back, err := partner.ResolvePartner(); err == nil && back != nav {
					v.errorf(edm.ErrInvalidNavigationPartner, nav, "partner %s of %s/%s does not name it as its partner", partner.Name(), st.FullName(), nav.Name())
					continue
				}
			}
			if target := partner.TargetType(); target != nil && !sameOrDerived(st, target) && !sameOrDerived(target, st) {
				v.errorf(edm.ErrInvalidNavigationPartner, nav, "partner %s of %s/%s targets unrelated type %s", partner.Name(), st.FullName(), nav.Name(), target.FullName())
			}
		}
	}
}

func sameOrDerived(t, base edm.StructuredType) bool {
	return t == base || t.InheritsFrom(base)
}

// validateBindings checks that binding targets hold entities of the navigation target type
// and that containment navigation properties are not bound.
func validateBindings(v *validator) {
	for _, src := range v.navigationSources() {
		for _, b := range src.NavigationPropertyBindings() {
			nav, ok := b.NavigationProperty().(*edm.NavigationProperty)
			if !ok {
				continue
			}
			if nav.ContainsTarget() {
				v.errorf(edm.ErrContainmentNavigationSourceTarget, b, "containment navigation property %s of %s cannot be bound", b.Path(), src.Name())
				continue
			}
			want, got := nav.TargetType(), b.Target().EntityType()
			if want == nil || got == nil {
				continue
			}
			if !sameOrDerived(got, want) && !sameOrDerived(want, got) {
				v.errorf(edm.ErrBindingTargetTypeMismatch, b, "binding %s of %s targets %s, whose type %s does not match %s",
					b.Path(), src.Name(), b.Target().Name(), got.FullName(), want.FullName())
			}
		}
	}
}

func validateEnumMembers(v *validator) {
	for _, e := range v.m.AllSchemaElements() {
		enum, ok := e.(*edm.EnumType)
		if !ok {
			continue
		}
		lo, hi, ok := enum.UnderlyingType().IntegralRange()
		if !ok {
			continue
		}
		for _, m := range enum.Members() {
			if m.Value() < lo || m.Value() > hi || (enum.IsFlags() && m.Value() < 0) {
				v.errorf(edm.ErrEnumMemberValueOutOfRange, m, "value %d of %s/%s is out of range for %s",
					m.Value(), enum.FullName(), m.Name(), enum.UnderlyingType().FullName())
			}
		}
	}
}

// validateDefaultValues checks that property and term defaults are literals of their type.
func validateDefaultValues(v *validator) {
	check := func(at any, owner string, t edm.TypeRef, text string) {
		if t.IsBad() {
			return
		}
		if _, err := edm.ConvertLiteral(t, text); err != nil {
			v.errorf(edm.ErrInvalidDefaultValue, at, "default value %q of %s is not a valid %s", text, owner, t.FullName())
		}
	}
	for _, e := range v.m.AllSchemaElements() {
		switch el := e.(type) {
		case edm.StructuredType:
			for _, p := range el.DeclaredProperties() {
				sp, ok := p.(*edm.StructuralProperty)
				if !ok {
					continue
				}
				if text, ok := sp.DefaultValue(); ok {
					check(sp, el.FullName()+"/"+sp.Name(), sp.Type(), text)
				}
			}
		case *edm.Term:
			if text, ok := el.DefaultValue(); ok {
				check(el, el.FullName(), el.Type(), text)
			}
		}
	}
}

// validatePathProperties reports path-typed properties reachable from the entity type of
// an entity set or singleton, directly or through complex properties.
func validatePathProperties(v *validator) {
	for _, src := range v.navigationSources() {
		et := src.EntityType()
		if et == nil {
			continue
		}
		visited := map[edm.StructuredType]bool{}
		var walk func(st edm.StructuredType, prefix string)
		walk = func(st edm.StructuredType, prefix string) {
			if visited[st] {
				return
			}
			visited[st] = true
			for _, p := range st.Properties() {
				if _, ok := p.(*edm.StructuralProperty); !ok {
					continue
				}
				t := p.Type().ElementType()
				if t.Definition != nil && t.Definition.TypeKind() == edm.TypeKindPath {
					v.errorf(edm.ErrPathPropertyOnNavigationSource, p, "property %s%s of %s has path type %s",
						prefix, p.Name(), src.Name(), t.FullName())
					continue
				}
				if ct, ok := t.Definition.(*edm.ComplexType); ok {
					walk(ct, prefix+p.Name()+"/")
				}
			}
		}
		walk(et, "")
	}
}

func validateOperations(v *validator) {
	seen := map[string]*edm.Operation{}
	for _, op := range v.operations() {
		params := op.Parameters()
		if op.IsBound() && len(params) == 0 {
			v.errorf(edm.ErrBoundOperationWithoutParameters, op, "bound operation %s has no binding parameter", op.FullName())
		}
		if op.IsFunction() && op.ReturnType() == nil {
			v.errorf(edm.ErrFunctionWithoutReturnType, op, "function %s has no return type", op.FullName())
		}
		optional := false
		for _, p := range params {
			if p.IsOptional() {
				optional = true
			} else if optional {
				v.errorf(edm.ErrOptionalParameterBeforeRequired, p, "required parameter %s of %s follows an optional parameter", p.Name(), op.FullName())
				break
			}
		}
		key := op.QualifiedTarget()
		if op.IsBound() {
			key = "bound:" + key
		}
		if first, ok := seen[key]; ok && first.IsFunction() == op.IsFunction() {
			v.errorf(edm.ErrDuplicateOperationOverload, op, "overload %s is declared more than once", op.QualifiedTarget())
			continue
		}
		seen[key] = op
	}
}

func validateOperationImports(v *validator) {
	c := v.m.EntityContainer()
	if c == nil {
		return
	}
	for _, imp := range c.OperationImports() {
		if op := imp.Operation(); op != nil && op.IsBound() {
			v.errorf(edm.ErrOperationImportOfBoundOperation, imp, "import %s imports bound operation %s", imp.Name(), op.FullName())
		}
	}
}

func validateContainerMembers(v *validator) {
	c := v.m.EntityContainer()
	if c == nil {
		return
	}
	seen := map[string]bool{}
	for _, el := range c.Elements() {
		if seen[el.Name()] {
			v.errorf(edm.ErrDuplicateContainerMemberName, el, "%s declares %s more than once", c.FullName(), el.Name())
		}
		seen[el.Name()] = true
	}
}

// validateAppliesTo reports annotations whose term does not apply to the kind of their
// target. Unresolved targets and terms are resolution errors and are skipped.
func validateAppliesTo(v *validator) {
	for _, a := range v.m.VocabularyAnnotations() {
		applies := a.Term().AppliesTo()
		if len(applies) == 0 || a.Term().IsUnresolved() {
			continue
		}
		kind := targetKind(a.Target())
		if kind == "" || slices.Contains(applies, kind) {
			continue
		}
		v.errorf(edm.ErrAnnotationNotApplicable, a, "term %s cannot be applied to %s %s", a.Term().FullName(), kind, edm.TargetString(a.Target()))
	}
}

// targetKind returns the CSDL element name of an annotation target, as used by AppliesTo.
func targetKind(t edm.Annotatable) string {
	switch el := t.(type) {
	case edm.SchemaElement:
		return el.SchemaElementKind().String()
	case *edm.StructuralProperty:
		return "Property"
	case *edm.NavigationProperty:
		return "NavigationProperty"
	case *edm.EnumMember:
		return "Member"
	case *edm.Parameter:
		return "Parameter"
	case *edm.ReturnType:
		return "ReturnType"
	case *edm.EntitySet:
		return "EntitySet"
	case *edm.Singleton:
		return "Singleton"
	case *edm.OperationImport:
		if el.IsFunctionImport() {
			return "FunctionImport"
		}
		return "ActionImport"
	case *edm.TargetPath:
		if p := el.Property(); p != nil {
			return targetKind(p)
		}
		return targetKind(el.NavigationSource())
	}
	return ""
}

func validateDuplicateAnnotations(v *validator) {
	type key struct{ target, term, qualifier string }
	seen := map[key]bool{}
	for _, a := range v.m.VocabularyAnnotations() {
		k := key{edm.TargetString(a.Target()), a.Term().FullName(), a.Qualifier()}
		if seen[k] {
			v.errorf(edm.ErrDuplicateAnnotation, a, "term %s is applied to %s more than once with qualifier %q", k.term, k.target, k.qualifier)
			continue
		}
		seen[k] = true
	}
}

// validateAnnotationValues reports constant values that cannot be values of the term type.
func validateAnnotationValues(v *validator) {
	for _, a := range v.m.VocabularyAnnotations() {
		if a.Value() == nil || a.Term().IsUnresolved() {
			continue
		}
		if !edm.ConstantMatchesType(a.Value(), a.Term().Type()) {
			v.errorf(edm.ErrAnnotationValueTypeMismatch, a, "value of %s on %s is not a valid %s", a.Term().FullName(), edm.TargetString(a.Target()), a.Term().Type().FullName())
		}
	}
}
