package edm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-csdl/literal"
	"github.com/shopspring/decimal"
)

// ExpressionKind identifies the variant of an Expression.
type ExpressionKind int

const (
	ExprNone ExpressionKind = iota
	ExprNull
	ExprBoolean
	ExprInteger
	ExprFloating
	ExprDecimal
	ExprString
	ExprGuid
	ExprBinary
	ExprDate
	ExprDateTimeOffset
	ExprDuration
	ExprTimeOfDay
	ExprEnumMember
	ExprUntyped
	ExprPath
	ExprAnnotationPath
	ExprPropertyPath
	ExprNavigationPropertyPath
	ExprModelElementPath
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

// Expression is an annotation value.
type Expression interface {
	ExpressionKind() ExpressionKind
}

type (
	// NullExpression is the null value.
	NullExpression struct{}
	// BooleanConstant is an Edm.Boolean value.
	BooleanConstant struct{ Value bool }
	// IntegerConstant is an integral value.
	IntegerConstant struct{ Value int64 }
	// FloatingConstant is an Edm.Double or Edm.Single value.
	FloatingConstant struct{ Value float64 }
	// DecimalConstant is an Edm.Decimal value.
	DecimalConstant struct{ Value decimal.Decimal }
	// StringConstant is an Edm.String value.
	StringConstant struct{ Value string }
	// GuidConstant is an Edm.Guid value.
	GuidConstant struct{ Value uuid.UUID }
	// BinaryConstant is an Edm.Binary value.
	BinaryConstant struct{ Value []byte }
	// DateConstant is an Edm.Date value.
	DateConstant struct{ Value literal.Date }
	// DateTimeOffsetConstant is an Edm.DateTimeOffset value.
	DateTimeOffsetConstant struct{ Value time.Time }
	// DurationConstant is an Edm.Duration value.
	DurationConstant struct{ Value time.Duration }
	// TimeOfDayConstant is an Edm.TimeOfDay value.
	TimeOfDayConstant struct{ Value literal.TimeOfDay }
)

func (*NullExpression) ExpressionKind() ExpressionKind         { return ExprNull }
func (*BooleanConstant) ExpressionKind() ExpressionKind        { return ExprBoolean }
func (*IntegerConstant) ExpressionKind() ExpressionKind        { return ExprInteger }
func (*FloatingConstant) ExpressionKind() ExpressionKind       { return ExprFloating }
func (*DecimalConstant) ExpressionKind() ExpressionKind        { return ExprDecimal }
func (*StringConstant) ExpressionKind() ExpressionKind         { return ExprString }
func (*GuidConstant) ExpressionKind() ExpressionKind           { return ExprGuid }
func (*BinaryConstant) ExpressionKind() ExpressionKind         { return ExprBinary }
func (*DateConstant) ExpressionKind() ExpressionKind           { return ExprDate }
func (*DateTimeOffsetConstant) ExpressionKind() ExpressionKind { return ExprDateTimeOffset }
func (*DurationConstant) ExpressionKind() ExpressionKind       { return ExprDuration }
func (*TimeOfDayConstant) ExpressionKind() ExpressionKind      { return ExprTimeOfDay }

// EnumMemberExpression is a value of an enum type: one member, or several for flags.
type EnumMemberExpression struct {
	Type    *EnumType
	Members []*EnumMember
}

func (*EnumMemberExpression) ExpressionKind() ExpressionKind { return ExprEnumMember }

// PathText renders the members as XML does: space-separated member paths.
func (e *EnumMemberExpression) PathText() string {
	parts := make([]string, len(e.Members))
	for i, m := range e.Members {
		parts[i] = m.targetString()
	}
	return strings.Join(parts, " ")
}

// NameText renders the members as JSON does: comma-separated member names.
func (e *EnumMemberExpression) NameText() string {
	parts := make([]string, len(e.Members))
	for i, m := range e.Members {
		parts[i] = m.name
	}
	return strings.Join(parts, ",")
}

// UntypedKind is the JSON token kind of an UntypedConstant.
type UntypedKind int

const (
	UntypedString UntypedKind = iota + 1
	UntypedNumber
	UntypedBool
)

// UntypedConstant is a JSON constant whose type is only known once the annotation term is
// resolved. It is replaced by a typed constant during resolution.
type UntypedConstant struct {
	Kind UntypedKind
	Text string
}

func (*UntypedConstant) ExpressionKind() ExpressionKind { return ExprUntyped }

// PathExpression is one of the path expressions; Kind tells which.
type PathExpression struct {
	Kind ExpressionKind
	Path Path
}

func (p *PathExpression) ExpressionKind() ExpressionKind { return p.Kind }

// CollectionExpression is a collection of values.
type CollectionExpression struct {
	Items []Expression
}

func (*CollectionExpression) ExpressionKind() ExpressionKind { return ExprCollection }

// PropertyValue is a member of a record.
type PropertyValue struct {
	Name  string
	Value Expression
}

// RecordExpression is a structured value. TypeName may be empty.
type RecordExpression struct {
	TypeName   string
	Properties []*PropertyValue
}

func (*RecordExpression) ExpressionKind() ExpressionKind { return ExprRecord }

// FindProperty returns the value of the named member.
func (r *RecordExpression) FindProperty(name string) Expression {
	for _, p := range r.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

// IfExpression is a conditional value.
type IfExpression struct {
	Test, Then, Else Expression
}

func (*IfExpression) ExpressionKind() ExpressionKind { return ExprIf }

// ApplyExpression applies a client-side function.
type ApplyExpression struct {
	Function  string
	Arguments []Expression
}

func (*ApplyExpression) ExpressionKind() ExpressionKind { return ExprApply }

// CastExpression casts its operand.
type CastExpression struct {
	Type    TypeRef
	Operand Expression
}

func (*CastExpression) ExpressionKind() ExpressionKind { return ExprCast }

// IsOfExpression tests the type of its operand.
type IsOfExpression struct {
	Type    TypeRef
	Operand Expression
}

func (*IsOfExpression) ExpressionKind() ExpressionKind { return ExprIsOf }

// LabeledElement names an expression for reuse.
type LabeledElement struct {
	Name  string
	Value Expression
}

func (*LabeledElement) ExpressionKind() ExpressionKind { return ExprLabeledElement }

// LabeledElementReference refers to a labeled element by qualified name.
type LabeledElementReference struct {
	Name string
}

func (*LabeledElementReference) ExpressionKind() ExpressionKind { return ExprLabeledElementReference }

// UrlRefExpression is a reference to a URL.
type UrlRefExpression struct {
	Value Expression
}

func (*UrlRefExpression) ExpressionKind() ExpressionKind { return ExprUrlRef }

// Operators of an OperatorExpression.
const (
	OpAnd   = "And"
	OpOr    = "Or"
	OpNot   = "Not"
	OpEq    = "Eq"
	OpNe    = "Ne"
	OpGt    = "Gt"
	OpGe    = "Ge"
	OpLt    = "Lt"
	OpLe    = "Le"
	OpHas   = "Has"
	OpIn    = "In"
	OpAdd   = "Add"
	OpSub   = "Sub"
	OpNeg   = "Neg"
	OpMul   = "Mul"
	OpDiv   = "Div"
	OpDivBy = "DivBy"
	OpMod   = "Mod"
)

// IsOperator reports whether name is a logical, comparison or arithmetic operator.
func IsOperator(name string) bool {
	switch name {
	case OpAnd, OpOr, OpNot, OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpHas, OpIn,
		OpAdd, OpSub, OpNeg, OpMul, OpDiv, OpDivBy, OpMod:
		return true
	}
	return false
}

// OperatorExpression is a logical, comparison or arithmetic expression.
type OperatorExpression struct {
	Operator string
	Operands []Expression
}

func (*OperatorExpression) ExpressionKind() ExpressionKind { return ExprOperator }

// PathKindByName maps the CSDL name of a path expression to its kind.
func PathKindByName(name string) (ExpressionKind, bool) {
	switch name {
	case "Path":
		return ExprPath, true
	case "AnnotationPath":
		return ExprAnnotationPath, true
	case "PropertyPath":
		return ExprPropertyPath, true
	case "NavigationPropertyPath":
		return ExprNavigationPropertyPath, true
	case "ModelElementPath":
		return ExprModelElementPath, true
	}
	return ExprNone, false
}

// PathKindName returns the CSDL name of a path expression kind.
func PathKindName(k ExpressionKind) string {
	switch k {
	case ExprPath:
		return "Path"
	case ExprAnnotationPath:
		return "AnnotationPath"
	case ExprPropertyPath:
		return "PropertyPath"
	case ExprNavigationPropertyPath:
		return "NavigationPropertyPath"
	case ExprModelElementPath:
		return "ModelElementPath"
	}
	return ""
}

// ConstantKindName returns the CSDL element name of a constant kind ("Bool", "Int", ...).
func ConstantKindName(k ExpressionKind) string {
	switch k {
	case ExprBoolean:
		return "Bool"
	case ExprInteger:
		return "Int"
	case ExprFloating:
		return "Float"
	case ExprDecimal:
		return "Decimal"
	case ExprString:
		return "String"
	case ExprGuid:
		return "Guid"
	case ExprBinary:
		return "Binary"
	case ExprDate:
		return "Date"
	case ExprDateTimeOffset:
		return "DateTimeOffset"
	case ExprDuration:
		return "Duration"
	case ExprTimeOfDay:
		return "TimeOfDay"
	case ExprEnumMember:
		return "EnumMember"
	}
	return ""
}

// LiteralText renders a constant expression in its canonical literal form. Enum members
// use the XML path form.
func LiteralText(e Expression) (string, bool) {
	switch v := e.(type) {
	case *BooleanConstant:
		return literal.FormatBool(v.Value), true
	case *IntegerConstant:
		return literal.FormatInt(v.Value), true
	case *FloatingConstant:
		return literal.FormatFloat(v.Value), true
	case *DecimalConstant:
		return literal.FormatDecimal(v.Value), true
	case *StringConstant:
		return v.Value, true
	case *GuidConstant:
		return literal.FormatGuid(v.Value), true
	case *BinaryConstant:
		return literal.FormatBinary(v.Value), true
	case *DateConstant:
		return literal.FormatDate(v.Value), true
	case *DateTimeOffsetConstant:
		return literal.FormatDateTimeOffset(v.Value), true
	case *DurationConstant:
		return literal.FormatDuration(v.Value), true
	case *TimeOfDayConstant:
		return literal.FormatTimeOfDay(v.Value), true
	case *EnumMemberExpression:
		return v.PathText(), true
	case *UntypedConstant:
		return v.Text, true
	}
	return "", false
}

// ParseConstant parses a constant of the given CSDL constant element name ("Bool", "Int",
// "String", ...). EnumMember is not handled here because it needs the enum type.
func ParseConstant(kind, text string) (Expression, error) {
	switch kind {
	case "Bool":
		v, err := literal.ParseBool(text)
		return &BooleanConstant{Value: v}, err
	case "Int":
		v, err := literal.ParseInt(text)
		return &IntegerConstant{Value: v}, err
	case "Float":
		v, err := literal.ParseFloat(text)
		return &FloatingConstant{Value: v}, err
	case "Decimal":
		v, err := literal.ParseDecimal(text)
		return &DecimalConstant{Value: v}, err
	case "String":
		return &StringConstant{Value: text}, nil
	case "Guid":
		v, err := literal.ParseGuid(text)
		return &GuidConstant{Value: v}, err
	case "Binary":
		v, err := literal.ParseBinary(text)
		return &BinaryConstant{Value: v}, err
	case "Date":
		v, err := literal.ParseDate(text)
		return &DateConstant{Value: v}, err
	case "DateTimeOffset":
		v, err := literal.ParseDateTimeOffset(text)
		return &DateTimeOffsetConstant{Value: v}, err
	case "Duration":
		v, err := literal.ParseDuration(text)
		return &DurationConstant{Value: v}, err
	case "TimeOfDay":
		v, err := literal.ParseTimeOfDay(text)
		return &TimeOfDayConstant{Value: v}, err
	}
	return nil, fmt.Errorf("%w: unknown constant kind %s", ErrInvalidArgument, kind)
}

// ConvertLiteral parses text as a value of type t. Enum values accept member names,
// member paths and integers; path types yield path expressions; Edm.Untyped, abstract and
// unresolved types yield a string constant.
func ConvertLiteral(t TypeRef, text string) (Expression, error) {
	def := t.ElementType().Definition
	switch d := def.(type) {
	case *EnumType:
		members, err := d.ParseMembers(text)
		if err != nil {
			return nil, err
		}
		return &EnumMemberExpression{Type: d, Members: members}, nil
	case *TypeDefinition:
		return ConvertLiteral(NewTypeRef(d.UnderlyingType(), t.Nullable), text)
	case *PrimitiveType:
		switch d.TypeKind() {
		case TypeKindPath:
			return &PathExpression{Kind: pathKindOf(d), Path: ParsePath(text)}, nil
		case TypeKindPrimitive:
			if kind := constantKindOf(d); kind != "" {
				return ParseConstant(kind, text)
			}
		}
	}
	return &StringConstant{Value: text}, nil
}

func pathKindOf(p *PrimitiveType) ExpressionKind {
	switch p.Kind() {
	case PrimitiveAnnotationPath:
		return ExprAnnotationPath
	case PrimitivePropertyPath, PrimitiveAnyPropertyPath:
		return ExprPropertyPath
	case PrimitiveNavigationPropertyPath:
		return ExprNavigationPropertyPath
	case PrimitiveModelElementPath:
		return ExprModelElementPath
	}
	return ExprPath
}

func constantKindOf(p *PrimitiveType) string {
	switch p.Kind() {
	case PrimitiveBoolean:
		return "Bool"
	case PrimitiveByte, PrimitiveSByte, PrimitiveInt16, PrimitiveInt32, PrimitiveInt64:
		return "Int"
	case PrimitiveDouble, PrimitiveSingle:
		return "Float"
	case PrimitiveDecimal:
		return "Decimal"
	case PrimitiveString:
		return "String"
	case PrimitiveGuid:
		return "Guid"
	case PrimitiveBinary:
		return "Binary"
	case PrimitiveDate:
		return "Date"
	case PrimitiveDateTimeOffset:
		return "DateTimeOffset"
	case PrimitiveDuration:
		return "Duration"
	case PrimitiveTimeOfDay:
		return "TimeOfDay"
	}
	return ""
}

// ConstantMatchesType reports whether a constant expression can be a value of t. Non
// constant expressions, abstract and untyped types always match.
func ConstantMatchesType(e Expression, t TypeRef) bool {
	if _, isNull := e.(*NullExpression); isNull {
		return t.Nullable || t.IsCollection()
	}
	if c, ok := e.(*CollectionExpression); ok {
		if !t.IsCollection() {
			return isOpenType(t)
		}
		for _, item := range c.Items {
			if !ConstantMatchesType(item, t.ElementType()) {
				return false
			}
		}
		return true
	}
	if isOpenType(t) {
		return true
	}
	def := t.ElementType().Definition
	switch v := e.(type) {
	case *EnumMemberExpression:
		return def == Type(v.Type)
	case *RecordExpression:
		return t.StructuredDefinition() != nil || t.IsCollection()
	}
	kind := ConstantKindName(e.ExpressionKind())
	if kind == "" || kind == "EnumMember" {
		if pk := PathKindName(e.ExpressionKind()); pk != "" {
			p, ok := def.(*PrimitiveType)
			return ok && (p.TypeKind() == TypeKindPath || p.Kind() == PrimitiveString)
		}
		return true
	}
	p, ok := t.Primitive()
	if !ok {
		return false
	}
	want := constantKindOf(p)
	if want == kind {
		return true
	}
	// Integers are valid values of floating and decimal types.
	return kind == "Int" && (want == "Float" || want == "Decimal")
}

func isOpenType(t TypeRef) bool {
	switch d := t.ElementType().Definition.(type) {
	case nil, *BadType:
		return true
	case *PrimitiveType:
		switch d.Kind() {
		case PrimitiveUntyped, PrimitiveAbstract:
			return true
		}
	}
	return false
}
