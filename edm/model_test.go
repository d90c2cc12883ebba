package edm

import (
	"errors"
	"testing"
)

func newPersonModel(t *testing.T) (*Model, *EntityType) {
	t.Helper()
	m := NewModel()
	person := NewEntityType("NS", "Person")
	id, err := person.AddStructuralProperty("ID", NewTypeRef(Int32Type, false))
	if err != nil {
		t.Fatalf("AddStructuralProperty: %v", err)
	}
	if _, err := person.AddStructuralProperty("Name", NewTypeRef(StringType, true)); err != nil {
		t.Fatalf("AddStructuralProperty: %v", err)
	}
	if err := person.SetKey(id); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := m.AddElement(person); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	return m, person
}

func TestAddElementRejectsDuplicates(t *testing.T) {
	m, _ := newPersonModel(t)

	err := m.AddElement(NewComplexType("NS", "Person"))
	if !errors.Is(err, ErrDuplicateElement) {
		t.Fatalf("Expected ErrDuplicateElement, got %v", err)
	}

	if err := m.AddElement(NewFunction("NS", "F", false, false)); err != nil {
		t.Fatalf("AddElement function: %v", err)
	}
	if err := m.AddElement(NewFunction("NS", "F", false, false)); err != nil {
		t.Errorf("Expected function overload to be accepted, got %v", err)
	}
	if err := m.AddElement(NewAction("NS", "F", false)); !errors.Is(err, ErrDuplicateElement) {
		t.Errorf("Expected action with function name to be rejected, got %v", err)
	}
	if got := len(m.FindDeclaredOperations("NS.F")); got != 2 {
		t.Errorf("Expected 2 overloads, got %d", got)
	}
}

func TestAddElementRejectsSecondContainer(t *testing.T) {
	m := NewModel()
	if err := m.AddElement(NewEntityContainer("NS", "Default")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	err := m.AddElement(NewEntityContainer("NS", "Other"))
	if !errors.Is(err, ErrMultipleContainers) {
		t.Fatalf("Expected ErrMultipleContainers, got %v", err)
	}
	if m.EntityContainer().Name() != "Default" {
		t.Errorf("Expected container Default, got %s", m.EntityContainer().Name())
	}
}

func TestImmutableModelRejectsMutation(t *testing.T) {
	m, person := newPersonModel(t)
	m.MarkImmutable()

	if err := m.AddElement(NewComplexType("NS", "Address")); !errors.Is(err, ErrImmutableModel) {
		t.Errorf("Expected ErrImmutableModel from AddElement, got %v", err)
	}
	if _, err := person.AddStructuralProperty("Age", NewTypeRef(Int32Type, true)); !errors.Is(err, ErrImmutableModel) {
		t.Errorf("Expected ErrImmutableModel from AddStructuralProperty, got %v", err)
	}
	if err := person.SetAbstract(true); !errors.Is(err, ErrImmutableModel) {
		t.Errorf("Expected ErrImmutableModel from SetAbstract, got %v", err)
	}
}

func TestFindTypeUsesAliasesAndBuiltins(t *testing.T) {
	m, person := newPersonModel(t)
	if err := m.AddSchema("NS", "Self"); err != nil {
		t.Fatalf("AddSchema: %v", err)
	}

	if got := m.FindType("Self.Person"); got != Type(person) {
		t.Errorf("Expected alias lookup to find Person, got %v", got)
	}
	if got := m.FindType("Edm.Int32"); got != Type(Int32Type) {
		t.Errorf("Expected Edm.Int32, got %v", got)
	}
	if got := m.FindType("NS.Missing"); got != nil {
		t.Errorf("Expected nil for unknown type, got %v", got)
	}
}

func TestFindTypeThroughReferences(t *testing.T) {
	other := NewModel()
	address := NewComplexType("Other", "Address")
	if err := other.AddElement(address); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	hidden := NewComplexType("Hidden", "Secret")
	if err := other.AddElement(hidden); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	m := NewModel()
	err := m.AddReference(&Reference{
		URI:      "http://example.org/other.xml",
		Includes: []Include{{Namespace: "Other", Alias: "O"}},
		Model:    other,
	})
	if err != nil {
		t.Fatalf("AddReference: %v", err)
	}

	if got := m.FindType("O.Address"); got != Type(address) {
		t.Errorf("Expected referenced Address, got %v", got)
	}
	if got := m.FindType("Hidden.Secret"); got != nil {
		t.Errorf("Expected namespace outside Includes to be invisible, got %v", got)
	}
}

func TestEntityKeyInheritance(t *testing.T) {
	m, person := newPersonModel(t)
	employee := NewEntityType("NS", "Employee")
	if err := employee.SetBaseType(person); err != nil {
		t.Fatalf("SetBaseType: %v", err)
	}
	if _, err := employee.AddStructuralProperty("Salary", NewTypeRef(DecimalType, true)); err != nil {
		t.Fatalf("AddStructuralProperty: %v", err)
	}
	if err := m.AddElement(employee); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	key := employee.Key()
	if len(key) != 1 || key[0].Name != "ID" {
		t.Fatalf("Expected inherited key [ID], got %v", key)
	}
	props := employee.Properties()
	if len(props) != 3 || props[0].Name() != "ID" || props[2].Name() != "Salary" {
		t.Errorf("Expected inherited properties first, got %d properties", len(props))
	}
	if len(m.DerivedTypes(person)) != 1 {
		t.Errorf("Expected one derived type of Person")
	}
	if err := person.SetBaseType(employee); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected cycle to be rejected, got %v", err)
	}
}

func TestNavigationMultiplicity(t *testing.T) {
	_, person := newPersonModel(t)
	friends, err := person.AddNavigationProperty(NavigationPropertyInfo{
		Name: "Friends",
		Type: CollectionOf(NewTypeRef(person, false)),
	})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	manager, err := person.AddNavigationProperty(NavigationPropertyInfo{
		Name: "Manager",
		Type: NewTypeRef(person, true),
	})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	if friends.Multiplicity() != MultiplicityMany {
		t.Errorf("Expected Many, got %v", friends.Multiplicity())
	}
	if manager.Multiplicity() != MultiplicityZeroOrOne {
		t.Errorf("Expected ZeroOrOne, got %v", manager.Multiplicity())
	}
	if friends.TargetType() != person {
		t.Errorf("Expected target Person")
	}
}
