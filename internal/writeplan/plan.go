// Package writeplan computes what the XML and JSON writers share: alias-qualified names,
// the placement of every annotation, and the synthesized optional-parameter annotations.
package writeplan

import (
	"strings"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/edm/vocabularies"
)

// Group is an out-of-line annotation group.
type Group struct {
	// Target is the alias-qualified target string.
	Target      string
	Annotations []*edm.Annotation
}

// Plan is the write plan of one model.
type Plan struct {
	Model *edm.Model

	aliases map[string]string
	inline  map[edm.Annotatable][]*edm.Annotation
	groups  map[string][]*Group
}

// New plans the serialization of m.
func New(m *edm.Model) *Plan {
	p := &Plan{
		Model:   m,
		aliases: map[string]string{},
		inline:  map[edm.Annotatable][]*edm.Annotation{},
		groups:  map[string][]*Group{},
	}
	for _, ref := range m.References() {
		for _, inc := range ref.Includes {
			if inc.Alias != "" {
				p.aliases[inc.Namespace] = inc.Alias
			}
		}
	}
	for _, ns := range m.Namespaces() {
		if alias := m.NamespaceAlias(ns); alias != "" {
			p.aliases[ns] = alias
		}
	}
	p.placeAnnotations()
	return p
}

func (p *Plan) placeAnnotations() {
	namespaces := p.Model.Namespaces()
	declared := map[string]bool{}
	for _, ns := range namespaces {
		declared[ns] = true
	}
	explicitOptional := map[*edm.Parameter]bool{}
	index := map[string]map[string]*Group{}
	for _, a := range p.Model.VocabularyAnnotations() {
		if param, ok := a.Target().(*edm.Parameter); ok && a.Term().FullName() == vocabularies.OptionalParameter {
			explicitOptional[param] = true
		}
		if a.SerializationLocation() == edm.Inline {
			if _, isPath := a.Target().(*edm.TargetPath); !isPath {
				p.inline[a.Target()] = append(p.inline[a.Target()], a)
				continue
			}
		}
		ns := a.Namespace()
		if !declared[ns] && len(namespaces) > 0 {
			ns = namespaces[0]
		}
		target := p.Target(edm.TargetString(a.Target()))
		if index[ns] == nil {
			index[ns] = map[string]*Group{}
		}
		g, ok := index[ns][target]
		if !ok {
			g = &Group{Target: target}
			index[ns][target] = g
			p.groups[ns] = append(p.groups[ns], g)
		}
		g.Annotations = append(g.Annotations, a)
	}
	p.synthesizeOptionalParameters(explicitOptional)
}

// synthesizeOptionalParameters adds an inline Core.OptionalParameter annotation to every
// optional parameter that has no explicit one.
func (p *Plan) synthesizeOptionalParameters(explicit map[*edm.Parameter]bool) {
	term := vocabularies.FindTerm(vocabularies.OptionalParameter)
	for _, el := range p.Model.AllSchemaElements() {
		op, ok := el.(*edm.Operation)
		if !ok {
			continue
		}
		for _, param := range op.Parameters() {
			if !param.IsOptional() || explicit[param] {
				continue
			}
			record := &edm.RecordExpression{}
			if def := param.DefaultValue(); def != "" {
				record.Properties = append(record.Properties, &edm.PropertyValue{Name: "DefaultValue", Value: &edm.StringConstant{Value: def}})
			}
			a, err := edm.NewAnnotation(param, term, "", record)
			if err != nil {
				continue
			}
			_ = a.SetSerializationLocation(edm.Inline)
			p.inline[param] = append(p.inline[param], a)
		}
	}
}

// Inline returns the annotations written as children of target.
func (p *Plan) Inline(target edm.Annotatable) []*edm.Annotation {
	return p.inline[target]
}

// Groups returns the out-of-line annotation groups of a namespace in first-seen order.
func (p *Plan) Groups(namespace string) []*Group {
	return p.groups[namespace]
}

// WritesValue reports whether the value of a is serialized. Annotations taking the term
// default are written without value, except for Boolean terms.
func WritesValue(a *edm.Annotation) bool {
	if a.Value() == nil {
		return false
	}
	return !a.UsesDefault() || a.Term().Type().IsBoolean()
}

// Qualify replaces the namespace of a qualified name with its alias, if one is declared.
// Collection(...) wrappers are preserved.
func (p *Plan) Qualify(name string) string {
	if inner, ok := strings.CutPrefix(name, "Collection("); ok && strings.HasSuffix(inner, ")") {
		return "Collection(" + p.Qualify(strings.TrimSuffix(inner, ")")) + ")"
	}
	ns, simple := edm.SplitQualifiedName(name)
	if alias, ok := p.aliases[ns]; ok && ns != "" {
		return alias + "." + simple
	}
	return name
}

// TypeName returns the alias-qualified name of a type reference.
func (p *Plan) TypeName(t edm.TypeRef) string {
	return p.Qualify(t.FullName())
}

// Term returns the alias-qualified name of an annotation term.
func (p *Plan) Term(a *edm.Annotation) string {
	return p.Qualify(a.Term().FullName())
}

// Target alias-qualifies every segment of a target string, including the parameter types
// of an overload-qualified operation.
func (p *Plan) Target(target string) string {
	segs := strings.Split(target, "/")
	for i, seg := range segs {
		name, args, hasArgs := strings.Cut(seg, "(")
		if !hasArgs {
			segs[i] = p.Qualify(seg)
			continue
		}
		parts := splitTypeList(strings.TrimSuffix(args, ")"))
		for j, part := range parts {
			parts[j] = p.Qualify(part)
		}
		segs[i] = p.Qualify(name) + "(" + strings.Join(parts, ",") + ")"
	}
	return strings.Join(segs, "/")
}

func splitTypeList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// BindingTarget renders the target of a navigation property binding in compact form:
// "Set" or "Root/Nav" inside the model's container, "NS.Container/Set" otherwise.
func (p *Plan) BindingTarget(target edm.NavigationSource) string {
	root := target
	for {
		c, ok := root.(*edm.ContainedEntitySet)
		if !ok {
			break
		}
		root = c.Parent()
	}
	path := target.Path().String()
	var container *edm.EntityContainer
	switch r := root.(type) {
	case *edm.EntitySet:
		container = r.Container()
	case *edm.Singleton:
		container = r.Container()
	}
	if container == nil || container == p.Model.EntityContainer() {
		return path
	}
	return p.Qualify(container.FullName()) + "/" + path
}

// SchemaContainer returns the container when it is declared in namespace.
func (p *Plan) SchemaContainer(namespace string) *edm.EntityContainer {
	c := p.Model.EntityContainer()
	if c != nil && c.Namespace() == namespace {
		return c
	}
	return nil
}
