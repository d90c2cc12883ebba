package edm

import "testing"

func TestBidirectionalNavigationIsSymmetric(t *testing.T) {
	m := NewModel()
	customer := NewEntityType("NS", "Customer")
	order := NewEntityType("NS", "Order")
	for _, e := range []SchemaElement{customer, order} {
		if err := m.AddElement(e); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}

	orders, back, err := AddBidirectionalNavigation(customer,
		NavigationPropertyInfo{Name: "Orders", Type: CollectionOf(NewTypeRef(order, false))},
		NavigationPropertyInfo{Name: "Customer", Type: NewTypeRef(customer, false)})
	if err != nil {
		t.Fatalf("AddBidirectionalNavigation: %v", err)
	}

	if orders.Partner() != back {
		t.Errorf("Expected Orders.Partner to be Customer")
	}
	if back.Partner() != orders {
		t.Errorf("Expected Customer.Partner to be Orders")
	}
	if got := orders.PartnerPath().String(); got != "Customer" {
		t.Errorf("Expected partner path Customer, got %s", got)
	}
}

func TestPartnerFallsBackToReverseLookup(t *testing.T) {
	m := NewModel()
	a := NewEntityType("NS", "A")
	b := NewEntityType("NS", "B")
	for _, e := range []SchemaElement{a, b} {
		if err := m.AddElement(e); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}
	toB, err := a.AddNavigationProperty(NavigationPropertyInfo{Name: "ToB", Type: NewTypeRef(b, true)})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	toA, err := b.AddNavigationProperty(NavigationPropertyInfo{Name: "ToA", Type: NewTypeRef(a, true), PartnerPath: Path{"ToB"}})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}

	if toA.Partner() != toB {
		t.Errorf("Expected ToA.Partner to be ToB")
	}
	if toB.Partner() != toA {
		t.Errorf("Expected ToB.Partner to be found from ToA's path")
	}
}

// buildOfficeModel declares Person <- Employee <- Manager, with Manager.Office partnered
// to Office.Occupant, which is typed as the base type Person.
func buildOfficeModel(t *testing.T, occupantPartner Path) (*NavigationProperty, *NavigationProperty) {
	t.Helper()
	m := NewModel()
	person := NewEntityType("NS", "Person")
	employee := NewEntityType("NS", "Employee")
	manager := NewEntityType("NS", "Manager")
	office := NewEntityType("NS", "Office")
	if err := employee.SetBaseType(person); err != nil {
		t.Fatalf("SetBaseType: %v", err)
	}
	if err := manager.SetBaseType(employee); err != nil {
		t.Fatalf("SetBaseType: %v", err)
	}
	for _, e := range []SchemaElement{person, employee, manager, office} {
		if err := m.AddElement(e); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}
	occupant, err := office.AddNavigationProperty(NavigationPropertyInfo{
		Name:        "Occupant",
		Type:        NewTypeRef(person, true),
		PartnerPath: occupantPartner,
	})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	officeNav, err := manager.AddNavigationProperty(NavigationPropertyInfo{
		Name:        "Office",
		Type:        NewTypeRef(office, true),
		PartnerPath: Path{"Occupant"},
	})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	return occupant, officeNav
}

func TestPartnerAcrossMultiLevelInheritance(t *testing.T) {
	tests := []struct {
		name string
		path Path
	}{
		{"type cast", Path{"NS.Manager", "Office"}},
		{"derived lookup", Path{"Office"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occupant, officeNav := buildOfficeModel(t, tt.path)
			got, err := occupant.ResolvePartner()
			if err != nil {
				t.Fatalf("ResolvePartner: %v", err)
			}
			if got != officeNav {
				t.Errorf("Expected Occupant.Partner to be Manager.Office")
			}
			if officeNav.Partner() != occupant {
				t.Errorf("Expected Manager.Office.Partner to be Occupant")
			}
		})
	}
}

func TestSetPartnerAddsTypeCastForDerivedDeclaration(t *testing.T) {
	occupant, officeNav := buildOfficeModel(t, nil)
	if err := SetNavigationPropertyPartner(occupant, officeNav); err != nil {
		t.Fatalf("SetNavigationPropertyPartner: %v", err)
	}
	if got := occupant.PartnerPath().String(); got != "NS.Manager/Office" {
		t.Errorf("Expected NS.Manager/Office, got %s", got)
	}
	if occupant.Partner() != officeNav {
		t.Errorf("Expected Occupant.Partner to be Manager.Office")
	}
}

func TestPartnerThroughComplexProperty(t *testing.T) {
	m := NewModel()
	order := NewEntityType("NS", "Order")
	info := NewComplexType("NS", "OrderInfo")
	customer := NewEntityType("NS", "Customer")
	for _, e := range []SchemaElement{order, info, customer} {
		if err := m.AddElement(e); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}
	if _, err := order.AddStructuralProperty("Info", NewTypeRef(info, false)); err != nil {
		t.Fatalf("AddStructuralProperty: %v", err)
	}
	buyer, err := info.AddNavigationProperty(NavigationPropertyInfo{Name: "Buyer", Type: NewTypeRef(customer, true)})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	orders, err := customer.AddNavigationProperty(NavigationPropertyInfo{
		Name:        "Orders",
		Type:        CollectionOf(NewTypeRef(order, false)),
		PartnerPath: Path{"Info", "Buyer"},
	})
	if err != nil {
		t.Fatalf("AddNavigationProperty: %v", err)
	}
	got, err := orders.ResolvePartner()
	if err != nil {
		t.Fatalf("ResolvePartner: %v", err)
	}
	if got != buyer {
		t.Errorf("Expected partner Info/Buyer")
	}

	if err := orders.SetPartnerPath(Path{"Info", "Missing"}); err != nil {
		t.Fatalf("SetPartnerPath: %v", err)
	}
	if _, err := orders.ResolvePartner(); err == nil {
		t.Errorf("Expected error for unknown partner segment")
	}
}
