// Package vocabularies provides built-in vocabulary models that documents may use without
// referencing them.
package vocabularies

import (
	"fmt"
	"sync"

	"github.com/nlstn/go-csdl/edm"
)

// Core vocabulary identifiers.
const (
	CoreNamespace = "Org.OData.Core.V1"
	CoreAlias     = "Core"
	CoreURI       = "https://oasis-tcs.github.io/odata-vocabularies/vocabularies/Org.OData.Core.V1.xml"
)

// Qualified names of the Core terms the readers and writers rely on.
const (
	Description         = CoreNamespace + ".Description"
	LongDescription     = CoreNamespace + ".LongDescription"
	OptionalParameter   = CoreNamespace + ".OptionalParameter"
	Computed            = CoreNamespace + ".Computed"
	Immutable           = CoreNamespace + ".Immutable"
	Permissions         = CoreNamespace + ".Permissions"
	IsLanguageDependent = CoreNamespace + ".IsLanguageDependent"
	RequiresType        = CoreNamespace + ".RequiresType"
)

var (
	coreOnce  sync.Once
	coreModel *edm.Model
)

// Core returns the immutable Core vocabulary model.
func Core() *edm.Model {
	coreOnce.Do(func() {
		m, err := buildCore()
		if err != nil {
			panic(fmt.Sprintf("vocabularies: building core vocabulary: %v", err))
		}
		m.MarkImmutable()
		coreModel = m
	})
	return coreModel
}

// FindTerm looks up a term of a built-in vocabulary by qualified name. The Core alias is
// accepted in place of the namespace.
func FindTerm(name string) *edm.Term {
	ns, simple := edm.SplitQualifiedName(name)
	if ns == CoreAlias {
		name = CoreNamespace + "." + simple
	}
	return Core().FindDeclaredTerm(name)
}

// IsBuiltinNamespace reports whether a namespace (or alias) is served by this package.
func IsBuiltinNamespace(ns string) bool {
	return ns == CoreNamespace || ns == CoreAlias
}

func buildCore() (*edm.Model, error) {
	m := edm.NewModel()
	if err := m.AddSchema(CoreNamespace, CoreAlias); err != nil {
		return nil, err
	}

	optionalParameterType := edm.NewComplexType(CoreNamespace, "OptionalParameterType")
	if _, err := optionalParameterType.AddStructuralProperty("DefaultValue", edm.NewTypeRef(edm.StringType, true)); err != nil {
		return nil, err
	}
	permission := edm.NewEnumType(CoreNamespace, "Permission", nil, true)
	for _, member := range []struct {
		name  string
		value int64
	}{{"None", 0}, {"Read", 1}, {"Write", 2}, {"ReadWrite", 3}, {"Invoke", 4}} {
		if _, err := permission.AddMember(member.name, member.value); err != nil {
			return nil, err
		}
	}
	for _, e := range []edm.SchemaElement{optionalParameterType, permission} {
		if err := m.AddElement(e); err != nil {
			return nil, err
		}
	}

	terms := []struct {
		name      string
		typ       edm.TypeRef
		def       string
		appliesTo []string
	}{
		{"Description", edm.NewTypeRef(edm.StringType, true), "", nil},
		{"LongDescription", edm.NewTypeRef(edm.StringType, true), "", nil},
		{"OptionalParameter", edm.NewTypeRef(optionalParameterType, true), "", []string{"Parameter"}},
		{"Computed", edm.NewTypeRef(edm.BooleanType, true), "true", []string{"Property"}},
		{"Immutable", edm.NewTypeRef(edm.BooleanType, true), "true", []string{"Property"}},
		{"Permissions", edm.NewTypeRef(permission, true), "", []string{"Property", "ComplexType", "TypeDefinition", "EntityType", "EntitySet", "NavigationProperty", "Action", "Function"}},
		{"IsLanguageDependent", edm.NewTypeRef(edm.BooleanType, true), "true", []string{"Term", "Property"}},
		{"RequiresType", edm.NewTypeRef(edm.StringType, true), "", []string{"Term"}},
	}
	for _, def := range terms {
		term := edm.NewTerm(CoreNamespace, def.name, def.typ)
		if def.def != "" {
			if err := term.SetDefaultValue(def.def); err != nil {
				return nil, err
			}
		}
		if len(def.appliesTo) > 0 {
			if err := term.SetAppliesTo(def.appliesTo...); err != nil {
				return nil, err
			}
		}
		if err := m.AddElement(term); err != nil {
			return nil, err
		}
	}
	return m, nil
}
