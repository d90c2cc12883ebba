package edm

import (
	"fmt"
	"strconv"
	"strings"
)

// EnumType is an enumeration over an integral underlying type.
type EnumType struct {
	named
	underlying *PrimitiveType
	flags      bool
	members    []*EnumMember
}

// NewEnumType creates an enum type. A nil underlying type means Edm.Int32.
func NewEnumType(namespace, name string, underlying *PrimitiveType, flags bool) *EnumType {
	if underlying == nil {
		underlying = Int32Type
	}
	return &EnumType{named: named{namespace: namespace, name: name}, underlying: underlying, flags: flags}
}

// SchemaElementKind implements SchemaElement.
func (e *EnumType) SchemaElementKind() SchemaElementKind { return KindEnumType }

// TypeKind implements Type.
func (e *EnumType) TypeKind() TypeKind { return TypeKindEnum }

// UnderlyingType returns the integral type of member values.
func (e *EnumType) UnderlyingType() *PrimitiveType { return e.underlying }

// IsFlags reports whether members may be combined.
func (e *EnumType) IsFlags() bool { return e.flags }

// Members returns the members in declaration order.
func (e *EnumType) Members() []*EnumMember {
	return append([]*EnumMember(nil), e.members...)
}

// FindMember returns the member with the given name.
func (e *EnumType) FindMember(name string) *EnumMember {
	for _, m := range e.members {
		if m.name == name {
			return m
		}
	}
	return nil
}

// AddMember declares a member with an explicit value.
func (e *EnumType) AddMember(name string, value int64) (*EnumMember, error) {
	if err := e.mutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: member name on %s", ErrNilArgument, e.FullName())
	}
	if e.FindMember(name) != nil {
		return nil, fmt.Errorf("%w: member %s on %s", ErrDuplicateElement, name, e.FullName())
	}
	m := &EnumMember{name: name, value: value, declaring: e}
	e.members = append(e.members, m)
	return m, nil
}

// AddMemberAuto declares a member whose value follows the previous one: one more than the
// previous value, or the next unused bit for flags enums.
func (e *EnumType) AddMemberAuto(name string) (*EnumMember, error) {
	return e.AddMember(name, e.nextValue())
}

func (e *EnumType) nextValue() int64 {
	if len(e.members) == 0 {
		if e.flags {
			return 1
		}
		return 0
	}
	if !e.flags {
		return e.members[len(e.members)-1].value + 1
	}
	var used int64
	for _, m := range e.members {
		used |= m.value
	}
	next := int64(1)
	for next != 0 && next <= used {
		next <<= 1
	}
	return next
}

// MembersForValue maps a value to members. A member whose value matches exactly wins;
// otherwise a flags enum decomposes the value into members in declaration order, each
// member consuming its bits. The result is nil when the value cannot be represented.
func (e *EnumType) MembersForValue(v int64) []*EnumMember {
	for _, m := range e.members {
		if m.value == v {
			return []*EnumMember{m}
		}
	}
	if !e.flags || v == 0 {
		return nil
	}
	var out []*EnumMember
	rest := v
	for _, m := range e.members {
		if m.value != 0 && rest&m.value == m.value {
			out = append(out, m)
			rest &^= m.value
		}
	}
	if rest != 0 {
		return nil
	}
	return out
}

// ParseMembers parses a member list as written in documents: member names or paths
// ("NS.Color/Red") separated by spaces or commas, or a single integer value.
func (e *EnumType) ParseMembers(text string) ([]*EnumMember, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty enum value for %s", ErrInvalidArgument, e.FullName())
	}
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		members := e.MembersForValue(v)
		if members == nil {
			return nil, fmt.Errorf("%w: value %d is not valid for %s", ErrInvalidArgument, v, e.FullName())
		}
		return members, nil
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) > 1 && !e.flags {
		return nil, fmt.Errorf("%w: %s is not a flags enum", ErrInvalidArgument, e.FullName())
	}
	var out []*EnumMember
	for _, f := range fields {
		name := f
		if i := strings.LastIndex(f, "/"); i >= 0 {
			name = f[i+1:]
		}
		m := e.FindMember(name)
		if m == nil {
			return nil, fmt.Errorf("%w: %s has no member %s", ErrInvalidArgument, e.FullName(), name)
		}
		out = append(out, m)
	}
	return out, nil
}

// EnumMember is a named value of an enum type.
type EnumMember struct {
	located
	name      string
	value     int64
	declaring *EnumType
}

// Name returns the member name.
func (m *EnumMember) Name() string { return m.name }

// Value returns the member value.
func (m *EnumMember) Value() int64 { return m.value }

// DeclaringType returns the enum type.
func (m *EnumMember) DeclaringType() *EnumType { return m.declaring }

func (m *EnumMember) targetString() string { return m.declaring.FullName() + "/" + m.name }

// TypeDefinition names a primitive type with fixed facets.
type TypeDefinition struct {
	named
	underlying *PrimitiveType
	facets     Facets
}

// NewTypeDefinition creates a type definition.
func NewTypeDefinition(namespace, name string, underlying *PrimitiveType, facets Facets) *TypeDefinition {
	return &TypeDefinition{named: named{namespace: namespace, name: name}, underlying: underlying, facets: facets}
}

// SchemaElementKind implements SchemaElement.
func (d *TypeDefinition) SchemaElementKind() SchemaElementKind { return KindTypeDefinition }

// TypeKind implements Type.
func (d *TypeDefinition) TypeKind() TypeKind { return TypeKindTypeDefinition }

// UnderlyingType returns the primitive type being named.
func (d *TypeDefinition) UnderlyingType() *PrimitiveType { return d.underlying }

// Facets returns the facets fixed by the definition.
func (d *TypeDefinition) Facets() Facets { return d.facets }
