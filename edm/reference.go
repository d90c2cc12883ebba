package edm

import "fmt"

// Reference points to another CSDL document and states which of its namespaces and
// annotations are visible.
type Reference struct {
	URI                string
	Includes           []Include
	IncludeAnnotations []IncludeAnnotations
	// Model is the referenced model once loaded, or nil.
	Model *Model
}

// Include makes a namespace of the referenced document visible, optionally under an alias.
type Include struct {
	Namespace string
	Alias     string
}

// IncludeAnnotations selects annotations of the referenced document by term namespace,
// and optionally by qualifier and target namespace.
type IncludeAnnotations struct {
	TermNamespace   string
	Qualifier       string
	TargetNamespace string
}

// includesNamespace reports whether types of namespace ns are visible through r. A
// reference without includes exposes every namespace.
func (r *Reference) includesNamespace(ns string) bool {
	if len(r.Includes) == 0 {
		return true
	}
	for _, inc := range r.Includes {
		if inc.Namespace == ns {
			return true
		}
	}
	return false
}

func (r *Reference) includesAnnotation(a *Annotation) bool {
	for _, ia := range r.IncludeAnnotations {
		if ia.TermNamespace != a.term.Namespace() {
			continue
		}
		if ia.Qualifier != "" && ia.Qualifier != a.qualifier {
			continue
		}
		if ia.TargetNamespace != "" && ia.TargetNamespace != targetNamespace(TargetString(a.target)) {
			continue
		}
		return true
	}
	return false
}

// AddReference records a reference to another document.
func (m *Model) AddReference(r *Reference) error {
	if r == nil {
		return fmt.Errorf("%w: reference", ErrNilArgument)
	}
	if m.immutable {
		return fmt.Errorf("%w: cannot add reference %s", ErrImmutableModel, r.URI)
	}
	m.references = append(m.references, r)
	return nil
}

// References returns the references in declaration order.
func (m *Model) References() []*Reference {
	return append([]*Reference(nil), m.references...)
}

// ReferencedModels returns the loaded models of all references.
func (m *Model) ReferencedModels() []*Model {
	var out []*Model
	for _, r := range m.references {
		if r.Model != nil {
			out = append(out, r.Model)
		}
	}
	return out
}
