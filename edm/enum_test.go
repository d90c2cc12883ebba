package edm

import (
	"errors"
	"testing"
)

func newPermissionEnum(t *testing.T) *EnumType {
	t.Helper()
	e := NewEnumType("NS", "Permission", nil, true)
	for _, m := range []struct {
		name  string
		value int64
	}{{"None", 1}, {"Read", 2}, {"Write", 4}, {"Invoke", 8}, {"ReadInvoke", 10}} {
		if _, err := e.AddMember(m.name, m.value); err != nil {
			t.Fatalf("AddMember(%s): %v", m.name, err)
		}
	}
	return e
}

func memberNames(members []*EnumMember) []string {
	var out []string
	for _, m := range members {
		out = append(out, m.Name())
	}
	return out
}

func TestMembersForValue(t *testing.T) {
	e := newPermissionEnum(t)
	tests := []struct {
		value    int64
		expected []string
	}{
		{13, []string{"None", "Write", "Invoke"}},
		{10, []string{"ReadInvoke"}},
		{2, []string{"Read"}},
		{6, []string{"Read", "Write"}},
		{16, nil},
	}
	for _, tt := range tests {
		got := memberNames(e.MembersForValue(tt.value))
		if len(got) != len(tt.expected) {
			t.Errorf("Value %d: expected %v, got %v", tt.value, tt.expected, got)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("Value %d: expected %v, got %v", tt.value, tt.expected, got)
				break
			}
		}
	}
}

func TestParseMembers(t *testing.T) {
	e := newPermissionEnum(t)

	got, err := e.ParseMembers("NS.Permission/Read NS.Permission/Write")
	if err != nil {
		t.Fatalf("ParseMembers: %v", err)
	}
	if names := memberNames(got); len(names) != 2 || names[0] != "Read" || names[1] != "Write" {
		t.Errorf("Expected [Read Write], got %v", names)
	}

	got, err = e.ParseMembers("Read,Invoke")
	if err != nil {
		t.Fatalf("ParseMembers: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 members, got %d", len(got))
	}

	got, err = e.ParseMembers("13")
	if err != nil {
		t.Fatalf("ParseMembers numeric: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 members for 13, got %d", len(got))
	}

	if _, err := e.ParseMembers("Delete"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown member, got %v", err)
	}
}

func TestAddMemberAuto(t *testing.T) {
	color := NewEnumType("NS", "Color", nil, false)
	for _, name := range []string{"Red", "Green", "Blue"} {
		if _, err := color.AddMemberAuto(name); err != nil {
			t.Fatalf("AddMemberAuto: %v", err)
		}
	}
	if v := color.FindMember("Blue").Value(); v != 2 {
		t.Errorf("Expected Blue=2, got %d", v)
	}
	if _, err := color.AddMemberAuto("Red"); !errors.Is(err, ErrDuplicateElement) {
		t.Errorf("Expected ErrDuplicateElement, got %v", err)
	}

	flags := NewEnumType("NS", "Flags", ByteType, true)
	for _, name := range []string{"A", "B", "C"} {
		if _, err := flags.AddMemberAuto(name); err != nil {
			t.Fatalf("AddMemberAuto: %v", err)
		}
	}
	if v := flags.FindMember("C").Value(); v != 4 {
		t.Errorf("Expected C=4, got %d", v)
	}
	if flags.UnderlyingType() != ByteType {
		t.Errorf("Expected underlying Edm.Byte")
	}
}

func TestConvertLiteralForEnum(t *testing.T) {
	e := newPermissionEnum(t)
	v, err := ConvertLiteral(NewTypeRef(e, false), "10")
	if err != nil {
		t.Fatalf("ConvertLiteral: %v", err)
	}
	em, ok := v.(*EnumMemberExpression)
	if !ok {
		t.Fatalf("Expected *EnumMemberExpression, got %T", v)
	}
	if em.PathText() != "NS.Permission/ReadInvoke" {
		t.Errorf("Expected NS.Permission/ReadInvoke, got %s", em.PathText())
	}
	if em.NameText() != "ReadInvoke" {
		t.Errorf("Expected ReadInvoke, got %s", em.NameText())
	}
}
