package edm

import (
	"fmt"
	"strings"
)

// Path is a sequence of segments. A segment is a property name or a qualified type name
// acting as a type cast.
type Path []string

// ParsePath splits a slash-separated path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "/"))
}

func (p Path) String() string { return strings.Join(p, "/") }

// Equal reports whether both paths have the same segments.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// TargetPath addresses an element without a global name, such as a property of a complex
// property of an entity set: container / navigation source / [type cast] / property chain.
type TargetPath struct {
	container *EntityContainer
	source    NavigationSource
	segments  Path
	elements  []any
}

// Container returns the container the path starts from.
func (t *TargetPath) Container() *EntityContainer { return t.container }

// NavigationSource returns the entity set or singleton named by the path.
func (t *TargetPath) NavigationSource() NavigationSource { return t.source }

// Segments returns the segments after the navigation source, type casts included.
func (t *TargetPath) Segments() Path { return append(Path(nil), t.segments...) }

// Elements returns the resolved segments: a StructuredType for each type cast and a
// Property for each property segment.
func (t *TargetPath) Elements() []any { return append([]any(nil), t.elements...) }

// Property returns the property addressed by the last segment, or nil.
func (t *TargetPath) Property() Property {
	if len(t.elements) == 0 {
		return nil
	}
	p, _ := t.elements[len(t.elements)-1].(Property)
	return p
}

func (t *TargetPath) String() string {
	parts := append(Path{t.container.FullName(), t.source.Name()}, t.segments...)
	return parts.String()
}

func (t *TargetPath) targetString() string { return t.String() }

// ResolveTargetPath parses a target path such as "NS.Default/Customers/Address/Street".
// The container may be given by qualified name (namespace or alias) or simple name.
func (m *Model) ResolveTargetPath(s string) (*TargetPath, error) {
	segs := ParsePath(s)
	if len(segs) < 2 {
		return nil, fmt.Errorf("%w: target path %q needs a container and a navigation source", ErrUnresolvedPath, s)
	}
	container := m.findContainer(segs[0])
	if container == nil {
		return nil, fmt.Errorf("%w: target path %q: no entity container %s", ErrUnresolvedPath, s, segs[0])
	}
	source := container.FindNavigationSource(segs[1])
	if source == nil {
		return nil, fmt.Errorf("%w: target path %q: no entity set or singleton %s", ErrUnresolvedPath, s, segs[1])
	}
	tp := &TargetPath{container: container, source: source}
	var cur StructuredType
	if et := source.EntityType(); et != nil {
		cur = et
	}
	for _, seg := range segs[2:] {
		if cur == nil {
			return nil, fmt.Errorf("%w: target path %q: cannot descend into %s", ErrUnresolvedPath, s, seg)
		}
		if IsQualifiedName(seg) {
			cast, _ := m.FindType(seg).(StructuredType)
			if cast == nil || (cast != cur && !cast.InheritsFrom(cur)) {
				return nil, fmt.Errorf("%w: target path %q: %s does not derive from %s", ErrUnresolvedPath, s, seg, cur.FullName())
			}
			tp.segments = append(tp.segments, cast.FullName())
			tp.elements = append(tp.elements, cast)
			cur = cast
			continue
		}
		p := cur.FindProperty(seg)
		if p == nil {
			return nil, fmt.Errorf("%w: target path %q: no property %s on %s", ErrUnresolvedPath, s, seg, cur.FullName())
		}
		tp.segments = append(tp.segments, seg)
		tp.elements = append(tp.elements, p)
		cur = p.Type().StructuredDefinition()
	}
	return tp, nil
}

// UnresolvedTarget keeps annotations whose target string could not be resolved.
type UnresolvedTarget struct {
	target string
}

// NewUnresolvedTarget creates the placeholder target for an unresolvable target string.
func NewUnresolvedTarget(target string) *UnresolvedTarget {
	return &UnresolvedTarget{target: target}
}

// Target returns the target string as written.
func (u *UnresolvedTarget) Target() string { return u.target }

func (u *UnresolvedTarget) targetString() string { return u.target }
