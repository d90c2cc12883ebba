// Package validation runs semantic rules over a resolved model. Every rule runs to
// completion; the result lists all violations at once.
package validation

import (
	"log/slog"

	"github.com/nlstn/go-csdl/edm"
)

// Options configures Validate.
type Options struct {
	Logger *slog.Logger
}

type rule struct {
	name  string
	check func(v *validator)
}

// rules is the fixed battery run by Validate, in reporting order.
var rules = []rule{
	{"ResolutionErrors", validateResolutionErrors},
	{"DuplicateEntityContainer", validateDuplicateContainers},
	{"DuplicateSchemaElement", validateDuplicateElements},
	{"EntityKey", validateKeys},
	{"InheritedPropertyName", validateInheritedProperties},
	{"OpenTypeBase", validateOpenTypes},
	{"NavigationPartner", validatePartners},
	{"NavigationBinding", validateBindings},
	{"EnumMember", validateEnumMembers},
	{"DefaultValue", validateDefaultValues},
	{"PathProperty", validatePathProperties},
	{"Operation", validateOperations},
	{"OperationImport", validateOperationImports},
	{"ContainerMemberName", validateContainerMembers},
	{"AnnotationAppliesTo", validateAppliesTo},
	{"DuplicateAnnotation", validateDuplicateAnnotations},
	{"AnnotationValue", validateAnnotationValues},
}

type validator struct {
	m    *edm.Model
	errs edm.Errors
}

func (v *validator) errorf(code edm.ErrorCode, at any, format string, args ...any) {
	v.errs = append(v.errs, edm.NewError(code, locationOf(at), format, args...))
}

func locationOf(at any) edm.Location {
	if l, ok := at.(interface{ Location() edm.Location }); ok {
		return l.Location()
	}
	return edm.Location{}
}

// Validate checks m and reports whether it is valid together with every violation found.
// Resolution errors recorded on the model are included.
func Validate(m *edm.Model, opts Options) (bool, edm.Errors) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := &validator{m: m}
	for _, r := range rules {
		before := len(v.errs)
		r.check(v)
		if n := len(v.errs) - before; n > 0 {
			logger.Debug("Validation rule failed", "rule", r.name, "errors", n)
		}
	}
	return len(v.errs) == 0, v.errs
}

func (v *validator) structuredTypes() []edm.StructuredType {
	var out []edm.StructuredType
	for _, e := range v.m.AllSchemaElements() {
		if st, ok := e.(edm.StructuredType); ok {
			out = append(out, st)
		}
	}
	return out
}

func (v *validator) operations() []*edm.Operation {
	var out []*edm.Operation
	for _, e := range v.m.AllSchemaElements() {
		if op, ok := e.(*edm.Operation); ok {
			out = append(out, op)
		}
	}
	return out
}

// navigationSources returns the entity sets and singletons of the model's container.
func (v *validator) navigationSources() []edm.NavigationSource {
	c := v.m.EntityContainer()
	if c == nil {
		return nil
	}
	var out []edm.NavigationSource
	for _, el := range c.Elements() {
		if src, ok := el.(edm.NavigationSource); ok {
			out = append(out, src)
		}
	}
	return out
}
