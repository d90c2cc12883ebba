package csdlxml

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/edm/vocabularies"
)

func buildOrderModel(t *testing.T) *edm.Model {
	t.Helper()
	m := edm.NewModel()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Failed to build model: %v", err)
		}
	}
	must(m.SetVersion(edm.Version40))
	must(m.AddSchema("Sales", "S"))

	order := edm.NewEntityType("Sales", "Order")
	id, err := order.AddStructuralProperty("ID", edm.NewTypeRef(edm.Int32Type, false))
	must(err)
	must(order.SetKey(id))
	name, err := order.AddStructuralProperty("Name", edm.TypeRef{Definition: edm.StringType, Nullable: true, Facets: edm.Facets{MaxLength: "40"}})
	must(err)
	parent, err := order.AddNavigationProperty(edm.NavigationPropertyInfo{Name: "Parent", Type: edm.NewTypeRef(order, true)})
	must(err)
	must(m.AddElement(order))

	top := edm.NewFunction("Sales", "Top", false, false)
	_, err = top.AddParameter("Count", edm.NewTypeRef(edm.Int32Type, false))
	must(err)
	_, err = top.AddOptionalParameter("Skip", edm.NewTypeRef(edm.Int32Type, true), "0")
	must(err)
	_, err = top.SetReturnType(edm.CollectionOf(edm.NewTypeRef(order, false)))
	must(err)
	must(m.AddElement(top))

	c := edm.NewEntityContainer("Sales", "Default")
	must(m.AddElement(c))
	orders, err := c.AddEntitySet("Orders", order)
	must(err)
	_, err = orders.AddNavigationTarget(parent, orders)
	must(err)
	_, err = c.AddFunctionImport("Top", top)
	must(err)

	desc, err := edm.NewAnnotation(order, vocabularies.FindTerm(vocabularies.Description), "", &edm.StringConstant{Value: "An order"})
	must(err)
	must(desc.SetSerializationLocation(edm.Inline))
	must(m.SetVocabularyAnnotation(desc))
	computed, err := edm.NewAnnotation(name, vocabularies.FindTerm(vocabularies.Computed), "", nil)
	must(err)
	must(m.SetVocabularyAnnotation(computed))
	return m
}

const expectedOrderDocument = `<?xml version="1.0" encoding="UTF-8"?>
<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="Sales" Alias="S" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <EntityType Name="Order">
        <Key>
          <PropertyRef Name="ID" />
        </Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
        <Property Name="Name" Type="Edm.String" MaxLength="40" />
        <NavigationProperty Name="Parent" Type="S.Order" />
        <Annotation Term="Org.OData.Core.V1.Description" String="An order" />
      </EntityType>
      <Function Name="Top">
        <Parameter Name="Count" Type="Edm.Int32" Nullable="false" />
        <Parameter Name="Skip" Type="Edm.Int32">
          <Annotation Term="Org.OData.Core.V1.OptionalParameter">
            <Record>
              <PropertyValue Property="DefaultValue" String="0" />
            </Record>
          </Annotation>
        </Parameter>
        <ReturnType Type="Collection(S.Order)" Nullable="false" />
      </Function>
      <EntityContainer Name="Default">
        <EntitySet Name="Orders" EntityType="S.Order">
          <NavigationPropertyBinding Path="Parent" Target="Orders" />
        </EntitySet>
        <FunctionImport Name="Top" Function="S.Top" />
      </EntityContainer>
      <Annotations Target="S.Order/Name">
        <Annotation Term="Org.OData.Core.V1.Computed" Bool="true" />
      </Annotations>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>
`

func TestWriteDocument(t *testing.T) {
	m := buildOrderModel(t)
	var b bytes.Buffer
	if err := Write(&b, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if b.String() != expectedOrderDocument {
		t.Errorf("Unexpected document:\n%s", b.String())
	}
}

func TestWriteOutputIsReadable(t *testing.T) {
	var b bytes.Buffer
	if err := Write(&b, buildOrderModel(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	doc, errs, err := Read(&b, "written.xml")
	if err != nil || len(errs) != 0 {
		t.Fatalf("Expected written document to read cleanly, got %v %v", err, errs)
	}
	if len(doc.Schemas) != 1 || len(doc.Schemas[0].AnnotationGroups) != 1 {
		t.Errorf("Expected one schema with one annotation group")
	}
}

func TestWriteAsync(t *testing.T) {
	m := buildOrderModel(t)
	var b bytes.Buffer
	if err := <-WriteAsync(context.Background(), &b, m); err != nil {
		t.Fatalf("WriteAsync failed: %v", err)
	}
	if b.String() != expectedOrderDocument {
		t.Errorf("Expected async output to match synchronous output")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var discarded bytes.Buffer
	err := <-WriteAsync(ctx, &discarded, m)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if discarded.Len() != 0 {
		t.Errorf("Expected nothing written after cancellation, got %d bytes", discarded.Len())
	}
}

func TestWriteEscapesValues(t *testing.T) {
	m := edm.NewModel()
	if err := m.AddSchema("NS", ""); err != nil {
		t.Fatalf("AddSchema: %v", err)
	}
	ct := edm.NewComplexType("NS", "Note")
	if err := m.AddElement(ct); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	a, _ := edm.NewAnnotation(ct, vocabularies.FindTerm(vocabularies.Description), "", &edm.StringConstant{Value: `"a" < b & c`})
	_ = a.SetSerializationLocation(edm.Inline)
	if err := m.SetVocabularyAnnotation(a); err != nil {
		t.Fatalf("SetVocabularyAnnotation: %v", err)
	}
	var b bytes.Buffer
	if err := Write(&b, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(b.String(), `String="&#34;a&#34; &lt; b &amp; c"`) {
		t.Errorf("Expected escaped attribute, got:\n%s", b.String())
	}
}
