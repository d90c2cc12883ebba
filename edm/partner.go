package edm

import (
	"errors"
	"fmt"
)

// ErrUnresolvedPath is wrapped by errors from path resolution.
var ErrUnresolvedPath = errors.New("path cannot be resolved")

// Partner returns the partner navigation property, or nil. The partner is resolved from
// the declared partner path on every call; a navigation property without a path finds the
// property on its target type whose path leads back to it.
func (n *NavigationProperty) Partner() *NavigationProperty {
	if len(n.partnerPath) > 0 {
		p, _ := n.ResolvePartner()
		return p
	}
	for _, cand := range n.partnerCandidates() {
		if len(cand.partnerPath) == 0 || cand == n {
			continue
		}
		if back, err := cand.ResolvePartner(); err == nil && back == n {
			return cand
		}
	}
	return nil
}

// partnerCandidates lists the navigation properties visible on the target type and its
// derived types.
func (n *NavigationProperty) partnerCandidates() []*NavigationProperty {
	target := n.TargetType()
	if target == nil {
		return nil
	}
	out := target.NavigationProperties()
	for _, d := range visibleDerivedTypes(n.declaring, target) {
		out = append(out, d.DeclaredNavigationProperties()...)
	}
	return out
}

// ResolvePartner follows the declared partner path from the target type. Type-cast
// segments narrow to a derived type; one intermediate structural property of complex type
// may be traversed; the last segment must name a navigation property.
func (n *NavigationProperty) ResolvePartner() (*NavigationProperty, error) {
	if len(n.partnerPath) == 0 {
		return nil, nil
	}
	target := n.TargetType()
	if target == nil {
		return nil, fmt.Errorf("%w: target type of %s is not an entity type", ErrUnresolvedPath, n.name)
	}
	var cur StructuredType = target
	intermediates := 0
	for i, seg := range n.partnerPath {
		last := i == len(n.partnerPath)-1
		if IsQualifiedName(seg) {
			cast := findVisibleStructuredType(n.declaring, cur, seg)
			if cast == nil || last {
				return nil, fmt.Errorf("%w: partner path %s of %s: type cast %s", ErrUnresolvedPath, n.partnerPath, n.name, seg)
			}
			cur = cast
			continue
		}
		p := findPropertyInHierarchy(n.declaring, cur, seg)
		if p == nil {
			return nil, fmt.Errorf("%w: partner path %s of %s: no property %s on %s", ErrUnresolvedPath, n.partnerPath, n.name, seg, cur.FullName())
		}
		if last {
			nav, ok := p.(*NavigationProperty)
			if !ok {
				return nil, fmt.Errorf("%w: partner path %s of %s: %s is not a navigation property", ErrUnresolvedPath, n.partnerPath, n.name, seg)
			}
			return nav, nil
		}
		_, structural := p.(*StructuralProperty)
		next := p.Type().StructuredDefinition()
		intermediates++
		if !structural || next == nil || intermediates > 1 {
			return nil, fmt.Errorf("%w: partner path %s of %s: cannot traverse %s", ErrUnresolvedPath, n.partnerPath, n.name, seg)
		}
		cur = next
	}
	return nil, fmt.Errorf("%w: partner path %s of %s", ErrUnresolvedPath, n.partnerPath, n.name)
}

// findPropertyInHierarchy looks name up on cur and its base types, then on the types derived
// from cur. Among several derived declarations it prefers the one whose target is the
// originating type, then one targeting an ancestor of the originating type.
func findPropertyInHierarchy(origin, cur StructuredType, name string) Property {
	if p := cur.FindProperty(name); p != nil {
		return p
	}
	var candidates []Property
	for _, d := range visibleDerivedTypes(origin, cur) {
		for _, p := range d.DeclaredProperties() {
			if p.Name() == name {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	for _, p := range candidates {
		if p.Type().StructuredDefinition() == origin {
			return p
		}
	}
	for _, p := range candidates {
		if t := p.Type().StructuredDefinition(); t != nil && origin != nil && origin.InheritsFrom(t) {
			return p
		}
	}
	for _, p := range candidates {
		if t := p.Type().StructuredDefinition(); t != nil && origin != nil && t.InheritsFrom(origin) {
			return p
		}
	}
	return candidates[0]
}

// visibleDerivedTypes returns every type deriving from base, directly or not, that is
// visible from the models of origin or base.
func visibleDerivedTypes(origin, base StructuredType) []StructuredType {
	var out []StructuredType
	seen := map[StructuredType]bool{}
	for _, m := range []*Model{modelOf(origin), modelOf(base)} {
		if m == nil {
			continue
		}
		for _, t := range m.visibleStructuredTypes() {
			if !seen[t] && t.InheritsFrom(base) {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func findVisibleStructuredType(origin, cur StructuredType, fullName string) StructuredType {
	if cur.FullName() == fullName {
		return cur
	}
	for _, m := range []*Model{modelOf(origin), modelOf(cur)} {
		if m == nil {
			continue
		}
		if t, ok := m.FindType(fullName).(StructuredType); ok && (t == cur || t.InheritsFrom(cur)) {
			return t
		}
	}
	return nil
}

func modelOf(t StructuredType) *Model {
	if t == nil {
		return nil
	}
	return t.owner()
}

// partnerPathTo computes the path from the target type of from to partner: the partner name,
// preceded by a type cast when the partner is declared on a derived type.
func partnerPathTo(from, partner *NavigationProperty) Path {
	target := from.TargetType()
	if target != nil && partner.declaring != StructuredType(target) && !target.InheritsFrom(partner.declaring) {
		return Path{partner.declaring.FullName(), partner.name}
	}
	return Path{partner.name}
}

// SetNavigationPropertyPartner makes a and b partners of each other.
func SetNavigationPropertyPartner(a, b *NavigationProperty) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: navigation partner", ErrNilArgument)
	}
	if err := a.SetPartnerPath(partnerPathTo(a, b)); err != nil {
		return err
	}
	return b.SetPartnerPath(partnerPathTo(b, a))
}

// AddBidirectionalNavigation declares info on t and partnerInfo on the target type of info,
// and makes the two partners. When partnerInfo has no type, a single-valued nullable
// reference to t is used.
func AddBidirectionalNavigation(t StructuredType, info, partnerInfo NavigationPropertyInfo) (*NavigationProperty, *NavigationProperty, error) {
	if t == nil {
		return nil, nil, fmt.Errorf("%w: declaring type", ErrNilArgument)
	}
	target := info.Type.EntityDefinition()
	if target == nil {
		return nil, nil, fmt.Errorf("%w: navigation %s must target an entity type", ErrInvalidArgument, info.Name)
	}
	if partnerInfo.Type.Definition == nil {
		partnerInfo.Type = NewTypeRef(t, true)
	}
	nav, err := t.AddNavigationProperty(info)
	if err != nil {
		return nil, nil, err
	}
	partner, err := target.AddNavigationProperty(partnerInfo)
	if err != nil {
		return nil, nil, err
	}
	if err := SetNavigationPropertyPartner(nav, partner); err != nil {
		return nil, nil, err
	}
	return nav, partner, nil
}
