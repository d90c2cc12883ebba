package csdljson

import (
	"errors"
	"strings"
	"testing"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/ast"
)

const sampleDocument = `{
  "$Version": "4.01",
  "$EntityContainer": "Sales.Default",
  "$Reference": {
    "https://example.com/Vocab.json": {
      "$Include": [{"$Namespace": "Org.Example.Vocab", "$Alias": "Vocab"}],
      "$IncludeAnnotations": [{"$TermNamespace": "Org.Example.Vocab", "$TargetNamespace": "Sales"}]
    }
  },
  "Sales": {
    "$Alias": "S",
    "Order": {
      "$Key": ["ID", {"Code": "Info/Code"}],
      "ID": {"$Type": "Edm.Int32"},
      "Note": {"$Nullable": true, "$MaxLength": 40, "$DefaultValue": "none"},
      "Note@Core.Description": "free text",
      "Lines": {"$Kind": "NavigationProperty", "$Type": "S.Line", "$Collection": true, "$ContainsTarget": true, "$Partner": "Order"}
    },
    "Line": {
      "$Kind": "EntityType",
      "$Key": ["No"],
      "No": {"$Type": "Edm.Int32"},
      "Order": {"$Kind": "NavigationProperty", "$Type": "S.Order", "$ReferentialConstraint": {"OrderID": "ID"}, "$OnDelete": "Cascade"}
    },
    "Color": {"$Kind": "EnumType", "$IsFlags": true, "Red": 1, "Green": 2, "Green@Core.Description": "green"},
    "Top": [
      {"$Kind": "Function", "$Parameter": [{"$Name": "Count", "$Type": "Edm.Int32"}], "$ReturnType": {"$Type": "S.Order", "$Collection": true}},
      {"$Kind": "Function", "$Parameter": [{"$Name": "Name"}], "$ReturnType": {"$Type": "S.Order"}}
    ],
    "Default": {
      "$Kind": "EntityContainer",
      "Orders": {"$Collection": true, "$Type": "S.Order", "$NavigationPropertyBinding": {"Lines/Order": "Orders"}},
      "Latest": {"$Type": "S.Order", "$Nullable": true},
      "Reset": {"$Action": "S.Reset"},
      "Top": {"$Function": "S.Top", "$IncludeInServiceDocument": true}
    },
    "$Annotations": {
      "S.Order": {
        "@Vocab.Tag#Phone": "short",
        "@Vocab.Size": 12.5,
        "@Vocab.Flag": false,
        "@Vocab.Rule": {"$If": [{"$Path": "Note"}, "a", null]},
        "@Vocab.Info": {"@type": "#Vocab.InfoType", "Label": "x", "Parts": [1, 2]},
        "@Vocab.Check": {"$And": [true, {"$Not": false}]},
        "@Vocab.Tag@Core.Description": "nested annotations are skipped"
      }
    }
  }
}`

func readSample(t *testing.T) *ast.Document {
	t.Helper()
	doc, errs, err := Read(strings.NewReader(sampleDocument), "sample.json")
	if err != nil {
		t.Fatalf("Failed to read document: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}
	return doc
}

func TestReadDocument(t *testing.T) {
	doc := readSample(t)
	if doc.Version != "4.01" || doc.EntityContainer != "Sales.Default" {
		t.Errorf("Unexpected header %q %q", doc.Version, doc.EntityContainer)
	}
	if len(doc.References) != 1 || doc.References[0].Includes[0].Alias != "Vocab" {
		t.Fatalf("Unexpected references %+v", doc.References)
	}
	if ia := doc.References[0].IncludeAnnotations; len(ia) != 1 || ia[0].TargetNamespace != "Sales" {
		t.Errorf("Unexpected include annotations %+v", ia)
	}
	schema := doc.Schemas[0]
	if schema.Alias != "S" {
		t.Errorf("Expected alias S, got %q", schema.Alias)
	}
	names := []string{"Order", "Line", "Color", "Top", "Top", "Default"}
	if len(schema.Elements) != len(names) {
		t.Fatalf("Expected %d elements, got %d", len(names), len(schema.Elements))
	}
	for i, el := range schema.Elements {
		if el.ElementName() != names[i] {
			t.Errorf("Expected element %d to be %s, got %s", i, names[i], el.ElementName())
		}
	}
}

func TestReadImpliedEntityType(t *testing.T) {
	doc := readSample(t)
	order := doc.Schemas[0].Elements[0].(*ast.StructuredType)
	if !order.Entity {
		t.Fatalf("Expected object with $Key and no $Kind to be an entity type")
	}
	if order.Loc.Path != "/Sales/Order" {
		t.Errorf("Expected location /Sales/Order, got %q", order.Loc.Path)
	}
	if len(order.Key) != 2 || order.Key[1].Alias != "Code" || order.Key[1].Name != "Info/Code" {
		t.Errorf("Unexpected key %+v", order.Key)
	}
	id := order.Properties[0]
	if id.Type.Nullable {
		t.Errorf("Expected $Nullable to default to false")
	}
	note := order.Properties[1]
	if note.Type.Name != "Edm.String" || !note.Type.Nullable || note.Type.MaxLength != "40" {
		t.Errorf("Unexpected type %+v", note.Type)
	}
	if len(note.Annotations) != 1 || note.Annotations[0].Term != "Core.Description" {
		t.Errorf("Expected property annotation from sibling member, got %+v", note.Annotations)
	}
	lines := order.Properties[2]
	if !lines.Navigation || lines.Type.Name != "Collection(S.Line)" || !lines.ContainsTarget {
		t.Errorf("Unexpected navigation property %+v", lines)
	}
	line := doc.Schemas[0].Elements[1].(*ast.StructuredType)
	nav := line.Properties[1]
	if nav.OnDelete != "Cascade" || len(nav.ReferentialConstraints) != 1 {
		t.Errorf("Unexpected navigation property %+v", nav)
	}
}

func TestReadEnumOperationsContainer(t *testing.T) {
	doc := readSample(t)
	color := doc.Schemas[0].Elements[2].(*ast.EnumType)
	if len(color.Members) != 2 || *color.Members[1].Value != 2 || len(color.Members[1].Annotations) != 1 {
		t.Errorf("Unexpected enum %+v", color)
	}
	second := doc.Schemas[0].Elements[4].(*ast.Operation)
	if second.Parameters[0].Type.Name != "Edm.String" {
		t.Errorf("Expected parameter type to default to Edm.String, got %s", second.Parameters[0].Type.Name)
	}
	c := doc.Schemas[0].Elements[5].(*ast.EntityContainer)
	kinds := []ast.ContainerKind{ast.EntitySet, ast.Singleton, ast.ActionImport, ast.FunctionImport}
	for i, el := range c.Elements {
		if el.Kind != kinds[i] {
			t.Errorf("Expected kind %d for %s, got %d", kinds[i], el.Name, el.Kind)
		}
	}
	if !c.Elements[1].Nullable {
		t.Errorf("Expected nullable singleton")
	}
	if b := c.Elements[0].Bindings; len(b) != 1 || b[0].Path != "Lines/Order" || b[0].Target != "Orders" {
		t.Errorf("Unexpected bindings %+v", b)
	}
}

func TestReadAnnotationValues(t *testing.T) {
	doc := readSample(t)
	group := doc.Schemas[0].AnnotationGroups[0]
	if group.Target != "S.Order" {
		t.Fatalf("Expected target S.Order, got %s", group.Target)
	}
	if len(group.Annotations) != 6 {
		t.Fatalf("Expected 6 annotations, got %d", len(group.Annotations))
	}
	tag := group.Annotations[0]
	if tag.Term != "Vocab.Tag" || tag.Qualifier != "Phone" || tag.Value.Untyped != edm.UntypedString {
		t.Errorf("Unexpected annotation %+v", tag)
	}
	if size := group.Annotations[1].Value; size.Untyped != edm.UntypedNumber || size.Value != "12.5" {
		t.Errorf("Unexpected number %+v", size)
	}
	if flag := group.Annotations[2].Value; flag.Untyped != edm.UntypedBool || flag.Value != "false" {
		t.Errorf("Unexpected boolean %+v", flag)
	}
	rule := group.Annotations[3].Value
	if rule.Kind != ast.ExprIf || len(rule.Items) != 3 || rule.Items[0].Kind != ast.ExprPath || rule.Items[2].Kind != ast.ExprNull {
		t.Errorf("Unexpected If %+v", rule)
	}
	info := group.Annotations[4].Value
	if info.Kind != ast.ExprRecord || info.Name != "Vocab.InfoType" || len(info.Properties) != 2 {
		t.Errorf("Unexpected record %+v", info)
	}
	check := group.Annotations[5].Value
	if check.Kind != ast.ExprOperator || check.Name != "And" || check.Items[1].Name != "Not" {
		t.Errorf("Unexpected operator %+v", check)
	}
}

func TestReadShapeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  edm.ErrorCode
	}{
		{"element without kind", `{"$Version": "4.01", "NS": {"Thing": {"$Abstract": true}}}`, edm.ErrInvalidJSONShape},
		{"scalar element", `{"$Version": "4.01", "NS": {"Thing": 3}}`, edm.ErrInvalidJSONShape},
		{"bad boolean", `{"$Version": "4.01", "NS": {"C": {"$Kind": "ComplexType", "$Abstract": "yes"}}}`, edm.ErrInvalidBoolean},
		{"bad member value", `{"$Version": "4.01", "NS": {"E": {"$Kind": "EnumType", "A": "one"}}}`, edm.ErrInvalidInteger},
		{"unknown member", `{"$Version": "4.01", "NS": {"C": {"$Kind": "ComplexType", "$Bogus": 1}}}`, edm.ErrUnexpectedJSONMember},
		{"missing version", `{"NS": {}}`, edm.ErrMissingAttribute},
		{"bad version", `{"$Version": "5.0"}`, edm.ErrInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, errs, err := Read(strings.NewReader(tt.input), "test.json")
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
	for _, input := range []string{`[1, 2]`, `{"$Version": `, `"text"`, `{} {}`} {
		doc, _, err := Read(strings.NewReader(input), "bad.json")
		if !errors.Is(err, ErrNotCSDL) {
			t.Errorf("Expected ErrNotCSDL for %q, got %v", input, err)
		}
		if doc != nil {
			t.Errorf("Expected no document for %q", input)
		}
	}
}
