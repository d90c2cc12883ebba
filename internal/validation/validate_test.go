package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
	"github.com/nlstn/go-csdl/internal/csdlxml"
	"github.com/nlstn/go-csdl/internal/semantics"
)

func document(t *testing.T, ns, body string) *ast.Document {
	t.Helper()
	input := `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx Version="4.01" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="` + ns + `" xmlns="http://docs.oasis-open.org/odata/ns/edm">
` + body + `
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`
	doc, errs, err := csdlxml.Read(strings.NewReader(input), "test.xml")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Expected no read errors, got %v", errs)
	}
	return doc
}

func model(t *testing.T, body string) *edm.Model {
	t.Helper()
	m, _ := semantics.Resolve(context.Background(), document(t, "NS", body), semantics.Options{})
	return m
}

const validSchema = `
      <EntityType Name="Person">
        <Key><PropertyRef Name="ID" /></Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
        <Property Name="Name" Type="Edm.String" DefaultValue="anonymous" />
        <NavigationProperty Name="Orders" Type="Collection(NS.Order)" Partner="Customer" />
        <Annotation Term="Core.Description" String="A customer" />
      </EntityType>
      <EntityType Name="Order">
        <Key><PropertyRef Name="ID" /></Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
        <NavigationProperty Name="Customer" Type="NS.Person" Partner="Orders" />
      </EntityType>
      <EnumType Name="Color" UnderlyingType="Edm.Byte">
        <Member Name="Red" Value="1" />
        <Member Name="Blue" Value="2" />
      </EnumType>
      <Function Name="Count" IsBound="true">
        <Parameter Name="people" Type="Collection(NS.Person)" />
        <ReturnType Type="Edm.Int32" />
      </Function>
      <Action Name="Reset" />
      <EntityContainer Name="Default">
        <EntitySet Name="People" EntityType="NS.Person">
          <NavigationPropertyBinding Path="Orders" Target="Orders" />
        </EntitySet>
        <EntitySet Name="Orders" EntityType="NS.Order">
          <NavigationPropertyBinding Path="Customer" Target="People" />
        </EntitySet>
        <ActionImport Name="Reset" Action="NS.Reset" />
      </EntityContainer>
      <Annotations Target="NS.Person/Name">
        <Annotation Term="Core.Computed" />
      </Annotations>`

func TestValidModel(t *testing.T) {
	ok, errs := Validate(model(t, validSchema), Options{})
	if !ok || len(errs) != 0 {
		t.Errorf("Expected valid model, got %v", errs)
	}
}

func TestRules(t *testing.T) {
	tests := []struct {
		name string
		body string
		code edm.ErrorCode
	}{
		{
			name: "missing key",
			body: `<EntityType Name="E"><Property Name="ID" Type="Edm.Int32" /></EntityType>`,
			code: edm.ErrKeyMissingOnEntityType,
		},
		{
			name: "nullable key",
			body: `<EntityType Name="E"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" /></EntityType>`,
			code: edm.ErrInvalidKey,
		},
		{
			name: "collection key",
			body: `<EntityType Name="E"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Collection(Edm.Int32)" Nullable="false" /></EntityType>`,
			code: edm.ErrInvalidKey,
		},
		{
			name: "unknown key property",
			body: `<EntityType Name="E"><Key><PropertyRef Name="Missing" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" /></EntityType>`,
			code: edm.ErrInvalidKey,
		},
		{
			name: "redeclared key",
			body: `<EntityType Name="B"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" /></EntityType>
			       <EntityType Name="D" BaseType="NS.B"><Key><PropertyRef Name="ID2" /></Key><Property Name="ID2" Type="Edm.Int32" Nullable="false" /></EntityType>`,
			code: edm.ErrInvalidKey,
		},
		{
			name: "property hides base property",
			body: `<ComplexType Name="B"><Property Name="P" Type="Edm.String" /></ComplexType>
			       <ComplexType Name="D" BaseType="NS.B"><Property Name="P" Type="Edm.String" /></ComplexType>`,
			code: edm.ErrDuplicateProperty,
		},
		{
			name: "closed type with open base",
			body: `<ComplexType Name="B" OpenType="true" /><ComplexType Name="D" BaseType="NS.B" />`,
			code: edm.ErrOpenTypeBaseNotOpen,
		},
		{
			name: "asymmetric partner",
			body: `<EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" />
			         <NavigationProperty Name="ToB" Type="NS.B" Partner="ToA" />
			         <NavigationProperty Name="Other" Type="NS.B" />
			       </EntityType>
			       <EntityType Name="B"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" />
			         <NavigationProperty Name="ToA" Type="NS.A" Partner="Other" />
			       </EntityType>`,
			code: edm.ErrInvalidNavigationPartner,
		},
		{
			name: "binding target of wrong type",
			body: `<EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" />
			         <NavigationProperty Name="ToB" Type="NS.B" />
			       </EntityType>
			       <EntityType Name="B"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" /></EntityType>
			       <EntityContainer Name="C">
			         <EntitySet Name="As" EntityType="NS.A"><NavigationPropertyBinding Path="ToB" Target="As" /></EntitySet>
			       </EntityContainer>`,
			code: edm.ErrBindingTargetTypeMismatch,
		},
		{
			name: "bound containment navigation",
			body: `<EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" />
			         <NavigationProperty Name="Kids" Type="Collection(NS.A)" ContainsTarget="true" />
			       </EntityType>
			       <EntityContainer Name="C">
			         <EntitySet Name="As" EntityType="NS.A"><NavigationPropertyBinding Path="Kids" Target="As" /></EntitySet>
			       </EntityContainer>`,
			code: edm.ErrContainmentNavigationSourceTarget,
		},
		{
			name: "enum value out of range",
			body: `<EnumType Name="E" UnderlyingType="Edm.Byte"><Member Name="Big" Value="300" /></EnumType>`,
			code: edm.ErrEnumMemberValueOutOfRange,
		},
		{
			name: "invalid property default",
			body: `<ComplexType Name="C"><Property Name="N" Type="Edm.Int32" DefaultValue="many" /></ComplexType>`,
			code: edm.ErrInvalidDefaultValue,
		},
		{
			name: "invalid term default",
			body: `<Term Name="T" Type="Edm.Boolean" DefaultValue="maybe" />`,
			code: edm.ErrInvalidDefaultValue,
		},
		{
			name: "path property on entity set",
			body: `<ComplexType Name="Inner"><Property Name="Ref" Type="Edm.PropertyPath" /></ComplexType>
			       <EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" />
			         <Property Name="Inner" Type="NS.Inner" />
			       </EntityType>
			       <EntityContainer Name="C"><EntitySet Name="As" EntityType="NS.A" /></EntityContainer>`,
			code: edm.ErrPathPropertyOnNavigationSource,
		},
		{
			name: "bound operation without parameters",
			body: `<Action Name="Go" IsBound="true" />`,
			code: edm.ErrBoundOperationWithoutParameters,
		},
		{
			name: "function without return type",
			body: `<Function Name="F"><Parameter Name="p" Type="Edm.Int32" /></Function>`,
			code: edm.ErrFunctionWithoutReturnType,
		},
		{
			name: "required parameter after optional",
			body: `<Function Name="F">
			         <Parameter Name="a" Type="Edm.Int32"><Annotation Term="Core.OptionalParameter" /></Parameter>
			         <Parameter Name="b" Type="Edm.Int32" />
			         <ReturnType Type="Edm.Int32" />
			       </Function>`,
			code: edm.ErrOptionalParameterBeforeRequired,
		},
		{
			name: "duplicate overload",
			body: `<Function Name="F"><Parameter Name="a" Type="Edm.Int32" /><ReturnType Type="Edm.Int32" /></Function>
			       <Function Name="F"><Parameter Name="b" Type="Edm.Int32" /><ReturnType Type="Edm.String" /></Function>`,
			code: edm.ErrDuplicateOperationOverload,
		},
		{
			name: "import of bound action",
			body: `<EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" /></EntityType>
			       <Action Name="Go" IsBound="true"><Parameter Name="a" Type="NS.A" /></Action>
			       <EntityContainer Name="C"><ActionImport Name="Go" Action="NS.Go" /></EntityContainer>`,
			code: edm.ErrOperationImportOfBoundOperation,
		},
		{
			name: "duplicate container member",
			body: `<EntityType Name="A"><Key><PropertyRef Name="ID" /></Key><Property Name="ID" Type="Edm.Int32" Nullable="false" /></EntityType>
			       <EntityContainer Name="C"><EntitySet Name="As" EntityType="NS.A" /><Singleton Name="As" Type="NS.A" /></EntityContainer>`,
			code: edm.ErrDuplicateContainerMemberName,
		},
		{
			name: "term not applicable",
			body: `<ComplexType Name="C"><Annotation Term="Core.Computed" /></ComplexType>`,
			code: edm.ErrAnnotationNotApplicable,
		},
		{
			name: "duplicate annotation",
			body: `<ComplexType Name="C"><Annotation Term="Core.Description" String="a" /></ComplexType>
			       <Annotations Target="NS.C"><Annotation Term="Core.Description" String="b" /></Annotations>`,
			code: edm.ErrDuplicateAnnotation,
		},
		{
			name: "annotation value of wrong type",
			body: `<ComplexType Name="C"><Annotation Term="Core.Description" Int="5" /></ComplexType>`,
			code: edm.ErrAnnotationValueTypeMismatch,
		},
		{
			name: "resolution error",
			body: `<ComplexType Name="C"><Property Name="P" Type="NS.Missing" /></ComplexType>`,
			code: edm.ErrBadUnresolvedType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := Validate(model(t, tt.body), Options{})
			if ok {
				t.Fatalf("Expected invalid model")
			}
			if !errs.Has(tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, errs)
			}
		})
	}
}

func TestQualifiedAnnotationsAreDistinct(t *testing.T) {
	ok, errs := Validate(model(t, `
      <ComplexType Name="C">
        <Annotation Term="Core.Description" String="a" />
        <Annotation Term="Core.Description" Qualifier="Phone" String="b" />
      </ComplexType>`), Options{})
	if !ok {
		t.Errorf("Expected valid model, got %v", errs)
	}
}

func TestAbstractTypeWithoutKey(t *testing.T) {
	ok, errs := Validate(model(t, `
      <EntityType Name="Base" Abstract="true" />
      <EntityType Name="Derived" BaseType="NS.Base">
        <Key><PropertyRef Name="ID" /></Key>
        <Property Name="ID" Type="Edm.Guid" Nullable="false" />
      </EntityType>`), Options{})
	if !ok {
		t.Errorf("Expected valid model, got %v", errs)
	}
}

func TestErrorsCarryLocations(t *testing.T) {
	_, errs := Validate(model(t, `<EntityType Name="E" />`), Options{})
	found := errs.WithCode(edm.ErrKeyMissingOnEntityType)
	if len(found) != 1 {
		t.Fatalf("Expected 1 missing key error, got %v", errs)
	}
	if found[0].Location.Source != "test.xml" || found[0].Location.Line == 0 {
		t.Errorf("Expected location in test.xml, got %+v", found[0].Location)
	}
}

func TestReferencedModelClashes(t *testing.T) {
	shared := `
      <ComplexType Name="Address" />
      <EntityContainer Name="Default" />`
	input := `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx Version="4.01" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:Reference Uri="other.xml">
    <edmx:Include Namespace="NS" />
  </edmx:Reference>
  <edmx:DataServices>
    <Schema Namespace="NS" xmlns="http://docs.oasis-open.org/odata/ns/edm">` + shared + `
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`
	doc, _, err := csdlxml.Read(strings.NewReader(input), "main.xml")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	loader := func(context.Context, string) (*ast.Document, error) {
		return document(t, "NS", shared), nil
	}
	m, _ := semantics.Resolve(context.Background(), doc, semantics.Options{Loader: loader})
	_, errs := Validate(m, Options{})
	if !errs.Has(edm.ErrDuplicateEntityContainer) {
		t.Errorf("Expected %s, got %v", edm.ErrDuplicateEntityContainer, errs)
	}
	if !errs.Has(edm.ErrAlreadyDefined) {
		t.Errorf("Expected %s, got %v", edm.ErrAlreadyDefined, errs)
	}
}
