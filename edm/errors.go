package edm

import (
	"errors"
	"fmt"
	"strings"
)

// Construction errors returned by the direct-construction API. They report caller bugs,
// not data problems, and are always wrapped with the offending name.
var (
	ErrImmutableModel     = errors.New("model is immutable")
	ErrDuplicateElement   = errors.New("element already defined")
	ErrMultipleContainers = errors.New("model already has an entity container")
	ErrNilArgument        = errors.New("argument must not be nil")
	ErrTargetPathInline   = errors.New("annotations targeting a path can only be serialized out of line")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ErrorCode identifies the kind of a parse, resolution or validation error.
type ErrorCode string

const (
	// Syntax and document structure.
	ErrInvalidXML               ErrorCode = "InvalidXml"
	ErrInvalidJSON              ErrorCode = "InvalidJson"
	ErrUnexpectedXMLElement     ErrorCode = "UnexpectedXmlElement"
	ErrUnexpectedXMLAttribute   ErrorCode = "UnexpectedXmlAttribute"
	ErrUnexpectedJSONMember     ErrorCode = "UnexpectedJsonMember"
	ErrInvalidJSONShape         ErrorCode = "InvalidJsonShape"
	ErrMissingAttribute         ErrorCode = "MissingAttribute"
	ErrInvalidBoolean           ErrorCode = "InvalidBoolean"
	ErrInvalidInteger           ErrorCode = "InvalidInteger"
	ErrInvalidVersion           ErrorCode = "InvalidVersionNumber"
	ErrInvalidQualifiedName     ErrorCode = "InvalidQualifiedName"
	ErrInvalidOnDelete          ErrorCode = "InvalidOnDelete"
	ErrEmptySchema              ErrorCode = "EmptySchemaElement"
	ErrMultipleContainersSchema ErrorCode = "SchemaCannotHaveMoreThanOneEntityContainer"

	// Reference resolution.
	ErrAlreadyDefined                   ErrorCode = "AlreadyDefined"
	ErrBadUnresolvedType                ErrorCode = "BadUnresolvedType"
	ErrBadUnresolvedProperty            ErrorCode = "BadUnresolvedProperty"
	ErrBadUnresolvedTarget              ErrorCode = "BadUnresolvedTarget"
	ErrBadUnresolvedTerm                ErrorCode = "BadUnresolvedTerm"
	ErrBadUnresolvedEnumMember          ErrorCode = "BadUnresolvedEnumMember"
	ErrBadUnresolvedOperation           ErrorCode = "BadUnresolvedOperation"
	ErrBadUnresolvedEntityContainer     ErrorCode = "BadUnresolvedEntityContainer"
	ErrBadUnresolvedNavigationPartner   ErrorCode = "BadUnresolvedNavigationPropertyPartner"
	ErrBadUnresolvedNavigationTarget    ErrorCode = "BadUnresolvedNavigationTarget"
	ErrCycleInTypeHierarchy             ErrorCode = "CycleInTypeHierarchy"
	ErrReferenceLoadFailed              ErrorCode = "UnresolvedReferenceUriInEdmxReference"
	ErrInvalidLiteralValue              ErrorCode = "InvalidValue"
	ErrInvalidEnumMemberPath            ErrorCode = "InvalidEnumMemberPath"
	ErrInvalidTypeKindForBaseType       ErrorCode = "BaseTypeMustHaveSameTypeKind"
	ErrInvalidUnderlyingType            ErrorCode = "InvalidUnderlyingType"
	ErrNavigationPropertyTypeNotEntity  ErrorCode = "NavigationPropertyTypeMustBeEntity"
	ErrEntitySetTypeNotEntity           ErrorCode = "EntitySetTypeMustBeEntityType"
	ErrUnresolvedNavigationPropertyPath ErrorCode = "UnresolvedNavigationPropertyPath"

	// Semantic validation.
	ErrDuplicateEntityContainer          ErrorCode = "DuplicateEntityContainerName"
	ErrDuplicateContainerMemberName      ErrorCode = "DuplicateEntityContainerMemberName"
	ErrKeyMissingOnEntityType            ErrorCode = "KeyMissingOnEntityType"
	ErrInvalidKey                        ErrorCode = "InvalidKey"
	ErrDuplicateProperty                 ErrorCode = "DuplicatePropertyName"
	ErrDuplicateEnumMember               ErrorCode = "DuplicateEnumMemberName"
	ErrEnumMemberValueOutOfRange         ErrorCode = "EnumMemberValueOutOfRange"
	ErrInvalidNavigationPartner          ErrorCode = "InvalidNavigationPropertyPartner"
	ErrBindingTargetTypeMismatch         ErrorCode = "NavigationPropertyMappingMustPointToValidTargetForProperty"
	ErrAnnotationNotApplicable           ErrorCode = "AnnotationInapplicableToTarget"
	ErrDuplicateAnnotation               ErrorCode = "DuplicateAnnotation"
	ErrAnnotationValueTypeMismatch       ErrorCode = "ExpressionNotValidForTheAssertedType"
	ErrPathPropertyOnNavigationSource    ErrorCode = "DeclaringTypeOfNavigationSourceCannotHavePathProperty"
	ErrBoundOperationWithoutParameters   ErrorCode = "BoundOperationMustHaveParameters"
	ErrFunctionWithoutReturnType         ErrorCode = "FunctionMustHaveReturnType"
	ErrOptionalParameterBeforeRequired   ErrorCode = "RequiredParametersMustPrecedeOptional"
	ErrDuplicateOperationOverload        ErrorCode = "DuplicateOperationOverload"
	ErrDuplicateParameter                ErrorCode = "DuplicateParameterName"
	ErrOperationImportOfBoundOperation   ErrorCode = "OperationImportCannotImportBoundOperation"
	ErrInvalidDefaultValue               ErrorCode = "InvalidDefaultValue"
	ErrOpenTypeBaseNotOpen               ErrorCode = "OpenTypeBaseMustBeOpen"
	ErrContainmentNavigationSourceTarget ErrorCode = "NavigationPropertyBindingTargetIsContainment"
)

// Location identifies where in a source document an element was declared. Line and
// Column are 1-based for XML input; JSON input records the member path instead.
type Location struct {
	Source string
	Line   int
	Column int
	Path   string
}

// IsZero reports whether no location was recorded.
func (l Location) IsZero() bool {
	return l == Location{}
}

func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.Source)
	if l.Line > 0 {
		fmt.Fprintf(&b, "(%d,%d)", l.Line, l.Column)
	}
	if l.Path != "" {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(l.Path)
	}
	return b.String()
}

// Error is a single parse, resolution or validation error.
type Error struct {
	Code     ErrorCode
	Message  string
	Location Location
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, loc Location, format string, args ...any) Error {
	return Error{Code: code, Message: fmt.Sprintf(format, args...), Location: loc}
}

func (e Error) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Code, e.Message)
}

// Errors is an ordered list of errors. A non-empty list is itself an error.
type Errors []Error

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "no errors"
	case 1:
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e), strings.Join(parts, "; "))
}

// Has reports whether the list contains an error with the given code.
func (e Errors) Has(code ErrorCode) bool {
	for _, err := range e {
		if err.Code == code {
			return true
		}
	}
	return false
}

// WithCode returns the errors with the given code.
func (e Errors) WithCode(code ErrorCode) Errors {
	var out Errors
	for _, err := range e {
		if err.Code == code {
			out = append(out, err)
		}
	}
	return out
}

// Err returns nil for an empty list and the list itself otherwise.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
