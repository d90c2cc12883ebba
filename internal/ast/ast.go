// Package ast holds the unresolved CSDL tree produced by the XML and JSON readers. Names
// and paths are kept as written; nothing is looked up until the semantics package builds a
// model from the tree.
package ast

import "github.com/nlstn/go-csdl/edm"

// Document is one CSDL document.
type Document struct {
	Source     string
	Version    string
	References []*Reference
	Schemas    []*Schema
	// EntityContainer is the qualified container name announced by a JSON document.
	EntityContainer string
	Loc             edm.Location
}

// Reference is an edmx:Reference or a $Reference member.
type Reference struct {
	URI                string
	Includes           []Include
	IncludeAnnotations []IncludeAnnotations
	Annotations        []*Annotation
	Loc                edm.Location
}

// Include is an edmx:Include.
type Include struct {
	Namespace string
	Alias     string
	Loc       edm.Location
}

// IncludeAnnotations is an edmx:IncludeAnnotations.
type IncludeAnnotations struct {
	TermNamespace   string
	Qualifier       string
	TargetNamespace string
	Loc             edm.Location
}

// Schema is a Schema element or a namespace member.
type Schema struct {
	Namespace        string
	Alias            string
	Elements         []Element
	AnnotationGroups []*AnnotationGroup
	Annotations      []*Annotation
	Loc              edm.Location
}

// Element is a schema child: *StructuredType, *EnumType, *TypeDefinition, *Term,
// *Operation or *EntityContainer.
type Element interface {
	ElementName() string
	Location() edm.Location
}

// TypeRef is a type reference as written. Nullable already carries the format default.
type TypeRef struct {
	Name      string
	Nullable  bool
	MaxLength string
	Precision string
	Scale     string
	SRID      string
	Unicode   *bool
}

// PropertyRef is a Key/PropertyRef.
type PropertyRef struct {
	Name  string
	Alias string
	Loc   edm.Location
}

// StructuredType is an EntityType or ComplexType.
type StructuredType struct {
	Entity      bool
	Name        string
	BaseType    string
	Abstract    bool
	Open        bool
	HasStream   bool
	Key         []PropertyRef
	Properties  []*Property
	Annotations []*Annotation
	Loc         edm.Location
}

func (t *StructuredType) ElementName() string    { return t.Name }
func (t *StructuredType) Location() edm.Location { return t.Loc }

// Property is a structural or (when Navigation is set) navigation property.
type Property struct {
	Name         string
	Type         TypeRef
	Navigation   bool
	DefaultValue *string

	ContainsTarget         bool
	Partner                string
	OnDelete               string
	ReferentialConstraints []ReferentialConstraint

	Annotations []*Annotation
	Loc         edm.Location
}

// ReferentialConstraint is a ReferentialConstraint element or $ReferentialConstraint member.
type ReferentialConstraint struct {
	Property           string
	ReferencedProperty string
	Loc                edm.Location
}

// EnumType is an EnumType element.
type EnumType struct {
	Name           string
	UnderlyingType string
	IsFlags        bool
	Members        []*EnumMember
	Annotations    []*Annotation
	Loc            edm.Location
}

func (t *EnumType) ElementName() string    { return t.Name }
func (t *EnumType) Location() edm.Location { return t.Loc }

// EnumMember is an enum member; Value is nil when omitted.
type EnumMember struct {
	Name        string
	Value       *int64
	Annotations []*Annotation
	Loc         edm.Location
}

// TypeDefinition is a TypeDefinition element. Facets carries the facets; its Name is the
// underlying type.
type TypeDefinition struct {
	Name        string
	Underlying  TypeRef
	Annotations []*Annotation
	Loc         edm.Location
}

func (t *TypeDefinition) ElementName() string    { return t.Name }
func (t *TypeDefinition) Location() edm.Location { return t.Loc }

// Term is a Term element.
type Term struct {
	Name         string
	Type         TypeRef
	BaseTerm     string
	DefaultValue *string
	AppliesTo    []string
	Annotations  []*Annotation
	Loc          edm.Location
}

func (t *Term) ElementName() string    { return t.Name }
func (t *Term) Location() edm.Location { return t.Loc }

// Operation is an Action or Function element (one overload).
type Operation struct {
	Function      bool
	Name          string
	IsBound       bool
	IsComposable  bool
	EntitySetPath string
	Parameters    []*Parameter
	ReturnType    *ReturnType
	Annotations   []*Annotation
	Loc           edm.Location
}

func (o *Operation) ElementName() string    { return o.Name }
func (o *Operation) Location() edm.Location { return o.Loc }

// Parameter is an operation parameter.
type Parameter struct {
	Name        string
	Type        TypeRef
	Annotations []*Annotation
	Loc         edm.Location
}

// ReturnType is an operation return type.
type ReturnType struct {
	Type        TypeRef
	Annotations []*Annotation
	Loc         edm.Location
}

// EntityContainer is an EntityContainer element.
type EntityContainer struct {
	Name        string
	Extends     string
	Elements    []*ContainerElement
	Annotations []*Annotation
	Loc         edm.Location
}

func (c *EntityContainer) ElementName() string    { return c.Name }
func (c *EntityContainer) Location() edm.Location { return c.Loc }

// ContainerKind identifies the variant of a ContainerElement.
type ContainerKind int

const (
	EntitySet ContainerKind = iota + 1
	Singleton
	ActionImport
	FunctionImport
)

// ContainerElement is an entity set, singleton or operation import.
type ContainerElement struct {
	Kind ContainerKind
	Name string
	// Type is the entity type of an entity set or singleton.
	Type     string
	Nullable bool
	// Operation is the qualified action or function name of an import.
	Operation                string
	EntitySet                string
	IncludeInServiceDocument *bool
	Bindings                 []*NavigationPropertyBinding
	Annotations              []*Annotation
	Loc                      edm.Location
}

// NavigationPropertyBinding is a NavigationPropertyBinding element or binding member.
type NavigationPropertyBinding struct {
	Path   string
	Target string
	Loc    edm.Location
}

// AnnotationGroup is an out-of-line Annotations element or $Annotations member.
type AnnotationGroup struct {
	Target      string
	Qualifier   string
	Annotations []*Annotation
	Loc         edm.Location
}

// Annotation is an Annotation element or "@Term#Qualifier" member. Value is nil when the
// annotation has no value.
type Annotation struct {
	Term      string
	Qualifier string
	Value     *Expression
	Loc       edm.Location
}

// ExprKind identifies the variant of an Expression.
type ExprKind int

const (
	ExprConstant ExprKind = iota + 1
	ExprUntyped
	ExprNull
	ExprPath
	ExprCollection
	ExprRecord
	ExprIf
	ExprApply
	ExprCast
	ExprIsOf
	ExprLabeledElement
	ExprLabeledElementReference
	ExprUrlRef
	ExprOperator
)

// Expression is an unresolved annotation expression.
//
// Name is the constant kind ("Bool", "Int", "EnumMember", ...) for constants, the path kind
// ("Path", "PropertyPath", ...) for paths, the operator for operators, the function for
// Apply, the label for labeled elements and references, and the type for records.
type Expression struct {
	Kind       ExprKind
	Name       string
	Value      string
	Untyped    edm.UntypedKind
	Type       *TypeRef
	Items      []*Expression
	Properties []*PropertyValue
	Loc        edm.Location
}

// PropertyValue is a member of a record expression.
type PropertyValue struct {
	Name  string
	Value *Expression
	Loc   edm.Location
}
