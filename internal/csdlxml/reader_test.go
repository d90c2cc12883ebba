package csdlxml

import (
	"errors"
	"strings"
	"testing"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
)

const sampleDocument = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx Version="4.01" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:Reference Uri="https://example.com/Vocab.xml">
    <edmx:Include Namespace="Org.Example.Vocab" Alias="Vocab" />
    <edmx:IncludeAnnotations TermNamespace="Org.Example.Vocab" Qualifier="Tablet" />
  </edmx:Reference>
  <edmx:DataServices>
    <Schema Namespace="Sales" Alias="S" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <EntityType Name="Order" OpenType="true">
        <Key><PropertyRef Name="ID" /></Key>
        <Property Name="ID" Type="Edm.Int32" />
        <Property Name="Note" Type="Edm.String" MaxLength="max" DefaultValue="none" />
        <NavigationProperty Name="Lines" Type="Collection(S.Line)" Partner="Order" ContainsTarget="true">
          <OnDelete Action="Cascade" />
        </NavigationProperty>
      </EntityType>
      <EntityType Name="Line">
        <Key><PropertyRef Name="No" /></Key>
        <Property Name="No" Type="Edm.Int32" Nullable="false" />
        <NavigationProperty Name="Order" Type="S.Order" Nullable="false" Partner="Lines">
          <ReferentialConstraint Property="OrderID" ReferencedProperty="ID" />
        </NavigationProperty>
      </EntityType>
      <EnumType Name="Color" IsFlags="true">
        <Member Name="Red" Value="1" />
        <Member Name="Blue" Value="4">
          <Annotation Term="Core.Description" String="blue" />
        </Member>
      </EnumType>
      <Function Name="Top" IsComposable="true">
        <Parameter Name="Count" Type="Edm.Int32" />
        <ReturnType Type="Collection(S.Order)" Nullable="false" />
      </Function>
      <EntityContainer Name="Default">
        <EntitySet Name="Orders" EntityType="S.Order">
          <NavigationPropertyBinding Path="Lines/Order" Target="Orders" />
        </EntitySet>
        <Singleton Name="Latest" Type="S.Order" />
        <FunctionImport Name="Top" Function="S.Top" IncludeInServiceDocument="true" />
      </EntityContainer>
      <Annotations Target="S.Order/Note" Qualifier="Phone">
        <Annotation Term="Core.Computed" />
        <Annotation Term="Vocab.Sizes">
          <Collection><Int>1</Int><Int>2</Int></Collection>
        </Annotation>
        <Annotation Term="Vocab.Rule">
          <If><Path>Note</Path><String> a </String><Null /></If>
        </Annotation>
      </Annotations>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

func readSample(t *testing.T) *ast.Document {
	t.Helper()
	doc, errs, err := Read(strings.NewReader(sampleDocument), "sample.xml")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}
	return doc
}

func TestReadDocumentStructure(t *testing.T) {
	doc := readSample(t)
	if doc.Version != "4.01" {
		t.Errorf("Expected version 4.01, got %q", doc.Version)
	}
	if len(doc.References) != 1 {
		t.Fatalf("Expected 1 reference, got %d", len(doc.References))
	}
	ref := doc.References[0]
	if len(ref.Includes) != 1 || ref.Includes[0].Alias != "Vocab" {
		t.Errorf("Expected include with alias Vocab, got %+v", ref.Includes)
	}
	if len(ref.IncludeAnnotations) != 1 || ref.IncludeAnnotations[0].Qualifier != "Tablet" {
		t.Errorf("Expected include annotations with qualifier Tablet, got %+v", ref.IncludeAnnotations)
	}
	if len(doc.Schemas) != 1 {
		t.Fatalf("Expected 1 schema, got %d", len(doc.Schemas))
	}
	schema := doc.Schemas[0]
	if schema.Namespace != "Sales" || schema.Alias != "S" {
		t.Errorf("Expected Sales/S, got %s/%s", schema.Namespace, schema.Alias)
	}
	if len(schema.Elements) != 5 {
		t.Fatalf("Expected 5 elements, got %d", len(schema.Elements))
	}
	names := []string{"Order", "Line", "Color", "Top", "Default"}
	for i, el := range schema.Elements {
		if el.ElementName() != names[i] {
			t.Errorf("Expected element %d to be %s, got %s", i, names[i], el.ElementName())
		}
	}
}

func TestReadStructuredTypes(t *testing.T) {
	doc := readSample(t)
	order := doc.Schemas[0].Elements[0].(*ast.StructuredType)
	if !order.Entity || !order.Open {
		t.Errorf("Expected open entity type")
	}
	if order.Loc.Line != 9 {
		t.Errorf("Expected Order on line 9, got %d", order.Loc.Line)
	}
	id := order.Properties[0]
	if id.Type.Nullable {
		t.Errorf("Expected 4.01 key property without Nullable to be non-nullable")
	}
	note := order.Properties[1]
	if !note.Type.Nullable || note.Type.MaxLength != "max" {
		t.Errorf("Expected nullable property with MaxLength max, got %+v", note.Type)
	}
	if note.DefaultValue == nil || *note.DefaultValue != "none" {
		t.Errorf("Expected default value none")
	}
	lines := order.Properties[2]
	if !lines.Navigation || !lines.ContainsTarget || lines.Partner != "Order" || lines.OnDelete != "Cascade" {
		t.Errorf("Unexpected navigation property %+v", lines)
	}
	line := doc.Schemas[0].Elements[1].(*ast.StructuredType)
	nav := line.Properties[1]
	if nav.Type.Nullable {
		t.Errorf("Expected explicit Nullable=false")
	}
	if len(nav.ReferentialConstraints) != 1 || nav.ReferentialConstraints[0].ReferencedProperty != "ID" {
		t.Errorf("Expected referential constraint, got %+v", nav.ReferentialConstraints)
	}
}

func TestReadEnumOperationContainer(t *testing.T) {
	doc := readSample(t)
	color := doc.Schemas[0].Elements[2].(*ast.EnumType)
	if !color.IsFlags || len(color.Members) != 2 {
		t.Fatalf("Expected flags enum with 2 members")
	}
	if color.Members[1].Value == nil || *color.Members[1].Value != 4 {
		t.Errorf("Expected Blue = 4")
	}
	if len(color.Members[1].Annotations) != 1 || color.Members[1].Annotations[0].Value.Value != "blue" {
		t.Errorf("Expected inline member annotation")
	}

	top := doc.Schemas[0].Elements[3].(*ast.Operation)
	if !top.Function || !top.IsComposable || len(top.Parameters) != 1 {
		t.Errorf("Unexpected function %+v", top)
	}
	if top.ReturnType == nil || top.ReturnType.Type.Name != "Collection(S.Order)" || top.ReturnType.Type.Nullable {
		t.Errorf("Unexpected return type %+v", top.ReturnType)
	}

	c := doc.Schemas[0].Elements[4].(*ast.EntityContainer)
	if len(c.Elements) != 3 {
		t.Fatalf("Expected 3 container elements, got %d", len(c.Elements))
	}
	set := c.Elements[0]
	if set.Kind != ast.EntitySet || len(set.Bindings) != 1 || set.Bindings[0].Path != "Lines/Order" {
		t.Errorf("Unexpected entity set %+v", set)
	}
	if c.Elements[1].Kind != ast.Singleton || c.Elements[1].Nullable {
		t.Errorf("Expected non-nullable singleton")
	}
	imp := c.Elements[2]
	if imp.Kind != ast.FunctionImport || imp.Operation != "S.Top" || imp.IncludeInServiceDocument == nil || !*imp.IncludeInServiceDocument {
		t.Errorf("Unexpected function import %+v", imp)
	}
}

func TestReadAnnotationExpressions(t *testing.T) {
	doc := readSample(t)
	groups := doc.Schemas[0].AnnotationGroups
	if len(groups) != 1 || groups[0].Target != "S.Order/Note" || groups[0].Qualifier != "Phone" {
		t.Fatalf("Unexpected annotation groups %+v", groups)
	}
	annotations := groups[0].Annotations
	if annotations[0].Value != nil {
		t.Errorf("Expected annotation without value")
	}
	sizes := annotations[1].Value
	if sizes.Kind != ast.ExprCollection || len(sizes.Items) != 2 || sizes.Items[1].Value != "2" {
		t.Errorf("Unexpected collection %+v", sizes)
	}
	rule := annotations[2].Value
	if rule.Kind != ast.ExprIf || len(rule.Items) != 3 {
		t.Fatalf("Unexpected If expression %+v", rule)
	}
	if rule.Items[0].Kind != ast.ExprPath || rule.Items[0].Value != "Note" {
		t.Errorf("Expected path test, got %+v", rule.Items[0])
	}
	if rule.Items[1].Value != " a " {
		t.Errorf("Expected string whitespace to be kept, got %q", rule.Items[1].Value)
	}
	if rule.Items[2].Kind != ast.ExprNull {
		t.Errorf("Expected null else branch")
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code edm.ErrorCode
	}{
		{"unexpected element", `<Schema Namespace="NS"><Bogus /></Schema>`, edm.ErrUnexpectedXMLElement},
		{"missing attribute", `<Schema Namespace="NS"><EntityType /></Schema>`, edm.ErrMissingAttribute},
		{"invalid boolean", `<Schema Namespace="NS"><ComplexType Name="C" Abstract="yes" /></Schema>`, edm.ErrInvalidBoolean},
		{"invalid integer", `<Schema Namespace="NS"><EnumType Name="E"><Member Name="A" Value="x" /></EnumType></Schema>`, edm.ErrInvalidInteger},
		{"invalid on delete", `<Schema Namespace="NS"><EntityType Name="E"><NavigationProperty Name="N" Type="NS.E"><OnDelete Action="Explode" /></NavigationProperty></EntityType></Schema>`, edm.ErrInvalidOnDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := `<edmx:Edmx Version="4.0" xmlns:edmx="` + EdmxNamespace + `"><edmx:DataServices>` +
				strings.Replace(tt.body, "<Schema ", `<Schema xmlns="`+EdmNamespace+`" `, 1) +
				`</edmx:DataServices></edmx:Edmx>`
			doc, errs, err := Read(strings.NewReader(input), "test.xml")
			if err != nil {
				t.Fatalf("Expected recoverable errors, got %v", err)
			}
			if doc == nil {
				t.Fatalf("Expected a document")
			}
			if !errs.Has(tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, errs)
			}
		})
	}
}

func TestReadFatal(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong root", `<Schema Namespace="NS" />`},
		{"malformed", `<edmx:Edmx Version="4.0" xmlns:edmx="` + EdmxNamespace + `">`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, errs, err := Read(strings.NewReader(tt.input), "bad.xml")
			if err == nil || !errors.Is(err, ErrNotCSDL) {
				t.Fatalf("Expected ErrNotCSDL, got %v", err)
			}
			if doc != nil {
				t.Errorf("Expected no document")
			}
			if len(errs) != 1 {
				t.Errorf("Expected 1 error, got %d", len(errs))
			}
		})
	}
}
