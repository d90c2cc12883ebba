package edm

import (
	"strconv"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind int

const (
	TypeKindNone TypeKind = iota
	TypeKindPrimitive
	TypeKindEntity
	TypeKindComplex
	TypeKindEnum
	TypeKindTypeDefinition
	TypeKindCollection
	TypeKindPath
	TypeKindUntyped
)

func (k TypeKind) String() string {
	switch k {
	case TypeKindPrimitive:
		return "Primitive"
	case TypeKindEntity:
		return "Entity"
	case TypeKindComplex:
		return "Complex"
	case TypeKindEnum:
		return "Enum"
	case TypeKindTypeDefinition:
		return "TypeDefinition"
	case TypeKindCollection:
		return "Collection"
	case TypeKindPath:
		return "Path"
	case TypeKindUntyped:
		return "Untyped"
	}
	return "None"
}

// Type is the definition side of a type reference: a built-in type, a schema type or a
// collection.
type Type interface {
	TypeKind() TypeKind
	FullName() string
}

// PrimitiveKind identifies a built-in Edm type.
type PrimitiveKind int

const (
	PrimitiveNone PrimitiveKind = iota
	PrimitiveBinary
	PrimitiveBoolean
	PrimitiveByte
	PrimitiveDate
	PrimitiveDateTimeOffset
	PrimitiveDecimal
	PrimitiveDouble
	PrimitiveDuration
	PrimitiveGuid
	PrimitiveInt16
	PrimitiveInt32
	PrimitiveInt64
	PrimitiveSByte
	PrimitiveSingle
	PrimitiveStream
	PrimitiveString
	PrimitiveTimeOfDay
	PrimitiveGeography
	PrimitiveGeographyPoint
	PrimitiveGeographyLineString
	PrimitiveGeographyPolygon
	PrimitiveGeographyMultiPoint
	PrimitiveGeographyMultiLineString
	PrimitiveGeographyMultiPolygon
	PrimitiveGeographyCollection
	PrimitiveGeometry
	PrimitiveGeometryPoint
	PrimitiveGeometryLineString
	PrimitiveGeometryPolygon
	PrimitiveGeometryMultiPoint
	PrimitiveGeometryMultiLineString
	PrimitiveGeometryMultiPolygon
	PrimitiveGeometryCollection
	// PrimitiveAbstract is Edm.PrimitiveType.
	PrimitiveAbstract
	PrimitiveAnnotationPath
	PrimitivePropertyPath
	PrimitiveNavigationPropertyPath
	PrimitiveAnyPropertyPath
	PrimitiveModelElementPath
	PrimitiveUntyped
	// PrimitiveEntityType and PrimitiveComplexType are the abstract Edm.EntityType and
	// Edm.ComplexType.
	PrimitiveEntityType
	PrimitiveComplexType
)

// PrimitiveType is one of the built-in types in the Edm namespace.
type PrimitiveType struct {
	kind PrimitiveKind
	name string
}

// Kind returns the primitive kind.
func (p *PrimitiveType) Kind() PrimitiveKind { return p.kind }

// Name returns the unqualified name, for example "String".
func (p *PrimitiveType) Name() string { return p.name }

// FullName returns the qualified name, for example "Edm.String".
func (p *PrimitiveType) FullName() string { return EdmNamespace + "." + p.name }

// TypeKind implements Type.
func (p *PrimitiveType) TypeKind() TypeKind {
	switch p.kind {
	case PrimitiveAnnotationPath, PrimitivePropertyPath, PrimitiveNavigationPropertyPath,
		PrimitiveAnyPropertyPath, PrimitiveModelElementPath:
		return TypeKindPath
	case PrimitiveUntyped:
		return TypeKindUntyped
	case PrimitiveEntityType:
		return TypeKindEntity
	case PrimitiveComplexType:
		return TypeKindComplex
	}
	return TypeKindPrimitive
}

// IsIntegral reports whether values of the type are integers.
func (p *PrimitiveType) IsIntegral() bool {
	switch p.kind {
	case PrimitiveByte, PrimitiveSByte, PrimitiveInt16, PrimitiveInt32, PrimitiveInt64:
		return true
	}
	return false
}

// IntegralRange returns the inclusive value range of an integral type.
func (p *PrimitiveType) IntegralRange() (lo, hi int64, ok bool) {
	switch p.kind {
	case PrimitiveByte:
		return 0, 255, true
	case PrimitiveSByte:
		return -128, 127, true
	case PrimitiveInt16:
		return -1 << 15, 1<<15 - 1, true
	case PrimitiveInt32:
		return -1 << 31, 1<<31 - 1, true
	case PrimitiveInt64:
		return -1 << 63, 1<<63 - 1, true
	}
	return 0, 0, false
}

// IsSpatial reports whether the type is one of the Geography or Geometry types.
func (p *PrimitiveType) IsSpatial() bool {
	return p.kind >= PrimitiveGeography && p.kind <= PrimitiveGeometryCollection
}

// EdmNamespace is the namespace of all built-in types.
const EdmNamespace = "Edm"

var builtinTypes = map[string]*PrimitiveType{}

func builtin(kind PrimitiveKind, name string) *PrimitiveType {
	p := &PrimitiveType{kind: kind, name: name}
	builtinTypes[name] = p
	return p
}

// Built-in types.
var (
	BinaryType                    = builtin(PrimitiveBinary, "Binary")
	BooleanType                   = builtin(PrimitiveBoolean, "Boolean")
	ByteType                      = builtin(PrimitiveByte, "Byte")
	DateType                      = builtin(PrimitiveDate, "Date")
	DateTimeOffsetType            = builtin(PrimitiveDateTimeOffset, "DateTimeOffset")
	DecimalType                   = builtin(PrimitiveDecimal, "Decimal")
	DoubleType                    = builtin(PrimitiveDouble, "Double")
	DurationType                  = builtin(PrimitiveDuration, "Duration")
	GuidType                      = builtin(PrimitiveGuid, "Guid")
	Int16Type                     = builtin(PrimitiveInt16, "Int16")
	Int32Type                     = builtin(PrimitiveInt32, "Int32")
	Int64Type                     = builtin(PrimitiveInt64, "Int64")
	SByteType                     = builtin(PrimitiveSByte, "SByte")
	SingleType                    = builtin(PrimitiveSingle, "Single")
	StreamType                    = builtin(PrimitiveStream, "Stream")
	StringType                    = builtin(PrimitiveString, "String")
	TimeOfDayType                 = builtin(PrimitiveTimeOfDay, "TimeOfDay")
	GeographyType                 = builtin(PrimitiveGeography, "Geography")
	GeographyPointType            = builtin(PrimitiveGeographyPoint, "GeographyPoint")
	GeographyLineStringType       = builtin(PrimitiveGeographyLineString, "GeographyLineString")
	GeographyPolygonType          = builtin(PrimitiveGeographyPolygon, "GeographyPolygon")
	GeographyMultiPointType       = builtin(PrimitiveGeographyMultiPoint, "GeographyMultiPoint")
	GeographyMultiLineStringType  = builtin(PrimitiveGeographyMultiLineString, "GeographyMultiLineString")
	GeographyMultiPolygonType     = builtin(PrimitiveGeographyMultiPolygon, "GeographyMultiPolygon")
	GeographyCollectionType       = builtin(PrimitiveGeographyCollection, "GeographyCollection")
	GeometryType                  = builtin(PrimitiveGeometry, "Geometry")
	GeometryPointType             = builtin(PrimitiveGeometryPoint, "GeometryPoint")
	GeometryLineStringType        = builtin(PrimitiveGeometryLineString, "GeometryLineString")
	GeometryPolygonType           = builtin(PrimitiveGeometryPolygon, "GeometryPolygon")
	GeometryMultiPointType        = builtin(PrimitiveGeometryMultiPoint, "GeometryMultiPoint")
	GeometryMultiLineStringType   = builtin(PrimitiveGeometryMultiLineString, "GeometryMultiLineString")
	GeometryMultiPolygonType      = builtin(PrimitiveGeometryMultiPolygon, "GeometryMultiPolygon")
	GeometryCollectionType        = builtin(PrimitiveGeometryCollection, "GeometryCollection")
	AbstractPrimitiveType         = builtin(PrimitiveAbstract, "PrimitiveType")
	AnnotationPathType            = builtin(PrimitiveAnnotationPath, "AnnotationPath")
	PropertyPathType              = builtin(PrimitivePropertyPath, "PropertyPath")
	NavigationPropertyPathType    = builtin(PrimitiveNavigationPropertyPath, "NavigationPropertyPath")
	AnyPropertyPathType           = builtin(PrimitiveAnyPropertyPath, "AnyPropertyPath")
	ModelElementPathType          = builtin(PrimitiveModelElementPath, "ModelElementPath")
	UntypedType                   = builtin(PrimitiveUntyped, "Untyped")
	AbstractEntityType            = builtin(PrimitiveEntityType, "EntityType")
	AbstractComplexType           = builtin(PrimitiveComplexType, "ComplexType")
)

// BuiltinType returns the built-in type with the given qualified ("Edm.String") or
// unqualified name.
func BuiltinType(name string) (*PrimitiveType, bool) {
	p, ok := builtinTypes[strings.TrimPrefix(name, EdmNamespace+".")]
	return p, ok
}

// CollectionType is Collection(T).
type CollectionType struct {
	Element TypeRef
}

// TypeKind implements Type.
func (c *CollectionType) TypeKind() TypeKind { return TypeKindCollection }

// FullName implements Type.
func (c *CollectionType) FullName() string {
	return "Collection(" + c.Element.FullName() + ")"
}

// BadType stands in for a type name that could not be resolved.
type BadType struct {
	Name string
}

// TypeKind implements Type.
func (b *BadType) TypeKind() TypeKind { return TypeKindNone }

// FullName implements Type.
func (b *BadType) FullName() string { return b.Name }

// Facets are the optional type facets of a type reference. Values keep their document form
// so symbolic values such as "max" and "variable" survive a round trip.
type Facets struct {
	MaxLength string
	Precision string
	Scale     string
	SRID      string
	Unicode   *bool
}

// IsZero reports whether no facet is set.
func (f Facets) IsZero() bool {
	return f.MaxLength == "" && f.Precision == "" && f.Scale == "" && f.SRID == "" && f.Unicode == nil
}

// PrecisionValue returns the precision facet as an integer.
func (f Facets) PrecisionValue() (int, bool) {
	v, err := strconv.Atoi(f.Precision)
	return v, err == nil
}

// TypeRef is a use of a type: the definition plus nullability and facets. For a
// collection the element reference carries nullability and facets.
type TypeRef struct {
	Definition Type
	Nullable   bool
	Facets     Facets
}

// NewTypeRef returns a reference to t.
func NewTypeRef(t Type, nullable bool) TypeRef {
	return TypeRef{Definition: t, Nullable: nullable}
}

// CollectionOf returns a reference to Collection(element).
func CollectionOf(element TypeRef) TypeRef {
	return TypeRef{Definition: &CollectionType{Element: element}}
}

// IsZero reports whether the reference has no definition.
func (r TypeRef) IsZero() bool { return r.Definition == nil }

// IsCollection reports whether the reference is a collection.
func (r TypeRef) IsCollection() bool {
	_, ok := r.Definition.(*CollectionType)
	return ok
}

// ElementType returns the element reference of a collection, or r itself.
func (r TypeRef) ElementType() TypeRef {
	if c, ok := r.Definition.(*CollectionType); ok {
		return c.Element
	}
	return r
}

// IsBad reports whether the reference, or its collection element, is unresolved.
func (r TypeRef) IsBad() bool {
	_, ok := r.ElementType().Definition.(*BadType)
	return ok || r.Definition == nil
}

// FullName returns the qualified type name, for example "Collection(Edm.String)".
func (r TypeRef) FullName() string {
	if r.Definition == nil {
		return ""
	}
	return r.Definition.FullName()
}

// Primitive returns the primitive type behind the reference, following type definitions.
// Enum types report false.
func (r TypeRef) Primitive() (*PrimitiveType, bool) {
	switch d := r.ElementType().Definition.(type) {
	case *PrimitiveType:
		return d, true
	case *TypeDefinition:
		return d.UnderlyingType(), d.UnderlyingType() != nil
	}
	return nil, false
}

// IsBoolean reports whether the reference is Edm.Boolean, directly or through a type
// definition.
func (r TypeRef) IsBoolean() bool {
	p, ok := r.Primitive()
	return ok && !r.IsCollection() && p.Kind() == PrimitiveBoolean
}

// StructuredDefinition returns the entity or complex type behind the reference.
func (r TypeRef) StructuredDefinition() StructuredType {
	st, _ := r.ElementType().Definition.(StructuredType)
	return st
}

// EntityDefinition returns the entity type behind the reference.
func (r TypeRef) EntityDefinition() *EntityType {
	et, _ := r.ElementType().Definition.(*EntityType)
	return et
}
