package edm

import (
	"fmt"
	"strings"
)

// SchemaElementKind identifies the variant of a SchemaElement.
type SchemaElementKind int

const (
	KindNone SchemaElementKind = iota
	KindEntityType
	KindComplexType
	KindEnumType
	KindTypeDefinition
	KindTerm
	KindAction
	KindFunction
	KindEntityContainer
)

func (k SchemaElementKind) String() string {
	switch k {
	case KindEntityType:
		return "EntityType"
	case KindComplexType:
		return "ComplexType"
	case KindEnumType:
		return "EnumType"
	case KindTypeDefinition:
		return "TypeDefinition"
	case KindTerm:
		return "Term"
	case KindAction:
		return "Action"
	case KindFunction:
		return "Function"
	case KindEntityContainer:
		return "EntityContainer"
	}
	return "None"
}

// SchemaElement is a named, namespace-qualified element of a schema.
type SchemaElement interface {
	Annotatable
	Name() string
	Namespace() string
	FullName() string
	SchemaElementKind() SchemaElementKind
	Location() Location
	bind(m *Model)
	owner() *Model
}

// Annotatable is anything a vocabulary annotation can target.
type Annotatable interface {
	targetString() string
}

// TargetString returns the canonical out-of-line target string of an annotatable element,
// using namespaces rather than aliases.
func TargetString(a Annotatable) string {
	if a == nil {
		return ""
	}
	return a.targetString()
}

type located struct {
	loc Location
}

// Location returns where the element was declared, if it was read from a document.
func (l *located) Location() Location { return l.loc }

// SetLocation records where the element was declared.
func (l *located) SetLocation(loc Location) { l.loc = loc }

type named struct {
	located
	namespace string
	name      string
	model     *Model
}

func (n *named) Name() string      { return n.name }
func (n *named) Namespace() string { return n.namespace }
func (n *named) FullName() string  { return qualify(n.namespace, n.name) }
func (n *named) bind(m *Model)     { n.model = m }
func (n *named) owner() *Model     { return n.model }

// Model returns the model the element was added to, or nil.
func (n *named) Model() *Model { return n.model }

func (n *named) targetString() string { return n.FullName() }

func (n *named) mutable() error {
	if n.model != nil && n.model.immutable {
		return fmt.Errorf("%w: cannot modify %s", ErrImmutableModel, n.FullName())
	}
	return nil
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// SplitQualifiedName splits "NS.Sub.Name" into ("NS.Sub", "Name").
func SplitQualifiedName(full string) (namespace, name string) {
	i := strings.LastIndex(full, ".")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

// IsQualifiedName reports whether s looks like a namespace-qualified name.
func IsQualifiedName(s string) bool {
	ns, name := SplitQualifiedName(s)
	return ns != "" && name != ""
}
