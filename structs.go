package csdl

import (
	"fmt"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/reflectmodel"
)

// Enum is implemented by named integer types that should map to an enum type. EnumMembers
// is called on the zero value.
type Enum = reflectmodel.Enum

// EnumMember is one named value of an Enum.
type EnumMember = reflectmodel.EnumMember

// ModelFromStructs builds a model with one schema and a container named Default from
// tagged Go structs. Each entity gets an entity set named by its EntitySetName() method
// or the pluralized type name.
//
// Supported odata tag parts: key, auto, immutable, nullable, required, maxlength=N,
// precision=N, scale=N, default=V, enum=Name, flags, contains, partner=Path,
// foreignKey:Field, references:Field and annotation:Term[=value].
//
// # Example
//
//	type Product struct {
//	    ID    uint   `odata:"key"`
//	    Name  string `odata:"maxlength=100"`
//	}
//	m, err := csdl.ModelFromStructs("Shop", &Product{})
func ModelFromStructs(namespace string, entities ...any) (*edm.Model, error) {
	b := reflectmodel.New(namespace, "Default")
	for _, e := range entities {
		if err := b.AddEntity(e); err != nil {
			return nil, fmt.Errorf("failed to register entity: %w", err)
		}
	}
	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build model from structs: %w", err)
	}
	return m, nil
}
