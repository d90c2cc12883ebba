package edm

import (
	"fmt"
	"strings"
)

// Operation is an action or a function. Overloads share a full name.
type Operation struct {
	named
	function      bool
	bound         bool
	composable    bool
	entitySetPath Path
	params        []*Parameter
	ret           *ReturnType
}

// NewAction creates an action.
func NewAction(namespace, name string, bound bool) *Operation {
	return &Operation{named: named{namespace: namespace, name: name}, bound: bound}
}

// NewFunction creates a function.
func NewFunction(namespace, name string, bound, composable bool) *Operation {
	return &Operation{named: named{namespace: namespace, name: name}, function: true, bound: bound, composable: composable}
}

// SchemaElementKind implements SchemaElement.
func (o *Operation) SchemaElementKind() SchemaElementKind {
	if o.function {
		return KindFunction
	}
	return KindAction
}

// IsFunction reports whether the operation is a function.
func (o *Operation) IsFunction() bool { return o.function }

// IsAction reports whether the operation is an action.
func (o *Operation) IsAction() bool { return !o.function }

// IsBound reports whether the first parameter is the binding parameter.
func (o *Operation) IsBound() bool { return o.bound }

// IsComposable reports whether a function may be followed by further path segments.
func (o *Operation) IsComposable() bool { return o.composable }

// EntitySetPath returns the entity set path of the result, if declared.
func (o *Operation) EntitySetPath() Path { return append(Path(nil), o.entitySetPath...) }

// SetEntitySetPath declares the entity set path of the result.
func (o *Operation) SetEntitySetPath(p Path) error {
	if err := o.mutable(); err != nil {
		return err
	}
	o.entitySetPath = append(Path(nil), p...)
	return nil
}

// Parameters returns the parameters in order.
func (o *Operation) Parameters() []*Parameter { return append([]*Parameter(nil), o.params...) }

// FindParameter returns the parameter with the given name.
func (o *Operation) FindParameter(name string) *Parameter {
	for _, p := range o.params {
		if p.name == name {
			return p
		}
	}
	return nil
}

// BindingParameter returns the first parameter of a bound operation.
func (o *Operation) BindingParameter() *Parameter {
	if !o.bound || len(o.params) == 0 {
		return nil
	}
	return o.params[0]
}

// AddParameter appends a required parameter.
func (o *Operation) AddParameter(name string, t TypeRef) (*Parameter, error) {
	return o.addParameter(&Parameter{name: name, typ: t, operation: o})
}

// AddOptionalParameter appends an optional parameter with an optional default value
// literal. An empty default means none.
func (o *Operation) AddOptionalParameter(name string, t TypeRef, defaultValue string) (*Parameter, error) {
	return o.addParameter(&Parameter{name: name, typ: t, operation: o, optional: true, defaultValue: defaultValue})
}

func (o *Operation) addParameter(p *Parameter) (*Parameter, error) {
	if err := o.mutable(); err != nil {
		return nil, err
	}
	if p.name == "" || p.typ.Definition == nil {
		return nil, fmt.Errorf("%w: parameter of %s", ErrNilArgument, o.FullName())
	}
	if o.FindParameter(p.name) != nil {
		return nil, fmt.Errorf("%w: parameter %s on %s", ErrDuplicateElement, p.name, o.FullName())
	}
	o.params = append(o.params, p)
	return p, nil
}

// ReturnType returns the return type, or nil for actions without a result.
func (o *Operation) ReturnType() *ReturnType { return o.ret }

// SetReturnType declares the return type.
func (o *Operation) SetReturnType(t TypeRef) (*ReturnType, error) {
	if err := o.mutable(); err != nil {
		return nil, err
	}
	if t.Definition == nil {
		return nil, fmt.Errorf("%w: return type of %s", ErrNilArgument, o.FullName())
	}
	o.ret = &ReturnType{typ: t, operation: o}
	return o.ret, nil
}

// OverloadSignature returns the parameter type list that identifies the overload in
// annotation targets: all parameter types for functions, only the binding parameter type
// for actions.
func (o *Operation) OverloadSignature() []string {
	var types []string
	for i, p := range o.params {
		if !o.function && (!o.bound || i > 0) {
			break
		}
		types = append(types, p.typ.FullName())
	}
	return types
}

// QualifiedTarget returns the overload-qualified name, for example "NS.F(Edm.String)".
func (o *Operation) QualifiedTarget() string {
	return o.FullName() + "(" + strings.Join(o.OverloadSignature(), ",") + ")"
}

func (o *Operation) targetString() string {
	if o.model != nil && len(o.model.FindDeclaredOperations(o.FullName())) > 1 {
		return o.QualifiedTarget()
	}
	return o.FullName()
}

// Parameter is an operation parameter. Optional parameters may carry a default value.
type Parameter struct {
	located
	name         string
	typ          TypeRef
	operation    *Operation
	optional     bool
	defaultValue string
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Type returns the parameter type.
func (p *Parameter) Type() TypeRef { return p.typ }

// Operation returns the declaring operation.
func (p *Parameter) Operation() *Operation { return p.operation }

// IsOptional reports whether the parameter is optional.
func (p *Parameter) IsOptional() bool { return p.optional }

// DefaultValue returns the default value literal of an optional parameter.
func (p *Parameter) DefaultValue() string { return p.defaultValue }

// MakeOptional turns the parameter into an optional parameter.
func (p *Parameter) MakeOptional(defaultValue string) error {
	if err := p.operation.mutable(); err != nil {
		return err
	}
	p.optional, p.defaultValue = true, defaultValue
	return nil
}

func (p *Parameter) targetString() string { return p.operation.QualifiedTarget() + "/" + p.name }

// ReturnType is the result of an operation.
type ReturnType struct {
	located
	typ       TypeRef
	operation *Operation
}

// Type returns the result type.
func (r *ReturnType) Type() TypeRef { return r.typ }

// Operation returns the declaring operation.
func (r *ReturnType) Operation() *Operation { return r.operation }

func (r *ReturnType) targetString() string { return r.operation.QualifiedTarget() + "/$ReturnType" }
