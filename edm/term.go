package edm

import "fmt"

// Term declares a vocabulary term: the type of its annotation values, an optional default
// value and the element kinds it applies to.
type Term struct {
	named
	typ          TypeRef
	baseTerm     string
	defaultValue string
	hasDefault   bool
	appliesTo    []string
	unresolved   bool
}

// NewTerm creates a term.
func NewTerm(namespace, name string, t TypeRef) *Term {
	return &Term{named: named{namespace: namespace, name: name}, typ: t}
}

// NewUnresolvedTerm creates a placeholder for a term name that no loaded schema declares.
// Its type is Edm.Untyped.
func NewUnresolvedTerm(fullName string) *Term {
	ns, name := SplitQualifiedName(fullName)
	return &Term{named: named{namespace: ns, name: name}, typ: NewTypeRef(UntypedType, true), unresolved: true}
}

// SchemaElementKind implements SchemaElement.
func (t *Term) SchemaElementKind() SchemaElementKind { return KindTerm }

// Type returns the type of annotation values.
func (t *Term) Type() TypeRef { return t.typ }

// SetType changes the type of annotation values.
func (t *Term) SetType(typ TypeRef) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if typ.Definition == nil {
		return fmt.Errorf("%w: type of term %s", ErrNilArgument, t.FullName())
	}
	t.typ = typ
	return nil
}

// IsUnresolved reports whether the term is a placeholder.
func (t *Term) IsUnresolved() bool { return t.unresolved }

// DefaultValue returns the declared default value literal.
func (t *Term) DefaultValue() (string, bool) { return t.defaultValue, t.hasDefault }

// SetDefaultValue declares the default value literal.
func (t *Term) SetDefaultValue(v string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.defaultValue, t.hasDefault = v, true
	return nil
}

// AppliesTo returns the element kinds (as CSDL names such as "EntityType" or "Property")
// the term may be applied to. An empty list means any.
func (t *Term) AppliesTo() []string { return append([]string(nil), t.appliesTo...) }

// SetAppliesTo restricts the element kinds the term may be applied to.
func (t *Term) SetAppliesTo(kinds ...string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.appliesTo = append([]string(nil), kinds...)
	return nil
}

// BaseTerm returns the qualified name of the base term, if any.
func (t *Term) BaseTerm() string { return t.baseTerm }

// SetBaseTerm records the qualified name of the base term.
func (t *Term) SetBaseTerm(name string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.baseTerm = name
	return nil
}

func (t *Term) String() string {
	return fmt.Sprintf("Term(%s: %s)", t.FullName(), t.typ.FullName())
}
