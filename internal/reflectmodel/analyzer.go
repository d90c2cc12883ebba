package reflectmodel

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/literal"
	"github.com/shopspring/decimal"
)

// Enum is implemented by named integer types that map to enum types.
type Enum interface {
	EnumMembers() []EnumMember
}

// EnumMember is one named value of an Enum.
type EnumMember struct {
	Name  string
	Value int64
}

// fieldInfo is what the struct tags and the Go type of one field say about its property.
type fieldInfo struct {
	name       string
	goType     reflect.Type // element type with pointers removed
	collection bool
	pointer    bool

	key          bool
	auto         bool
	immutable    bool
	flags        bool
	contains     bool
	nav          bool
	nullable     *bool
	maxLength    string
	precision    string
	scale        string
	defaultValue string
	enumName     string
	partner      string
	foreignKey   string
	references   string
	annotations  []tagAnnotation
	// tags holds the lowercased odata and gorm tags for marker lookups.
	tags string
}

// tagAnnotation is an annotation:Term or annotation:Term=value tag part.
type tagAnnotation struct {
	term     string
	value    string
	hasValue bool
}

// analyzeFields returns the fields of a struct type that become properties. Fields of
// anonymous embedded structs are promoted.
func analyzeFields(t reflect.Type) ([]fieldInfo, error) {
	var out []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("odata") == "-" || jsonName(field) == "-" {
			continue
		}
		if field.Anonymous && dereference(field.Type).Kind() == reflect.Struct && !isPrimitiveStruct(dereference(field.Type)) {
			promoted, err := analyzeFields(dereference(field.Type))
			if err != nil {
				return nil, err
			}
			out = append(out, promoted...)
			continue
		}
		fi, err := analyzeField(field)
		if err != nil {
			return nil, fmt.Errorf("error analyzing field %s: %w", field.Name, err)
		}
		out = append(out, fi)
	}
	return out, nil
}

func analyzeField(field reflect.StructField) (fieldInfo, error) {
	fi := fieldInfo{name: field.Name, tags: strings.ToLower(field.Tag.Get("odata") + ";" + field.Tag.Get("gorm"))}
	ft := field.Type
	if ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
		fi.collection = true
		ft = ft.Elem()
	}
	if ft.Kind() == reflect.Ptr {
		fi.pointer = true
	}
	fi.goType = dereference(ft)

	if tag := field.Tag.Get("odata"); tag != "" {
		for _, part := range strings.Split(tag, ",") {
			if err := processTagPart(&fi, strings.TrimSpace(part)); err != nil {
				return fieldInfo{}, err
			}
		}
	}
	if fi.nullable != nil && *fi.nullable && !isTypeNullable(field.Type) {
		return fieldInfo{}, fmt.Errorf("property %s is marked as nullable with odata:\"nullable\" tag, but has non-nullable Go type %s (use *%s to make it nullable)",
			fi.name, field.Type, field.Type)
	}
	return fi, nil
}

// processTagPart applies one comma separated part of an odata struct tag.
func processTagPart(fi *fieldInfo, part string) error {
	switch {
	case part == "key":
		fi.key = true
	case part == "auto":
		fi.auto = true
	case part == "immutable":
		fi.immutable = true
	case part == "nullable":
		nullable := true
		fi.nullable = &nullable
	case part == "nullable=false", part == "required":
		nullable := false
		fi.nullable = &nullable
	case strings.HasPrefix(part, "maxlength="):
		fi.maxLength = strings.TrimPrefix(part, "maxlength=")
	case strings.HasPrefix(part, "precision="):
		fi.precision = strings.TrimPrefix(part, "precision=")
	case strings.HasPrefix(part, "scale="):
		fi.scale = strings.TrimPrefix(part, "scale=")
	case strings.HasPrefix(part, "default="):
		fi.defaultValue = strings.TrimPrefix(part, "default=")
	case strings.HasPrefix(part, "default:"):
		fi.defaultValue = strings.TrimPrefix(part, "default:")
	case strings.HasPrefix(part, "enum="):
		fi.enumName = strings.TrimPrefix(part, "enum=")
	case part == "flags":
		fi.flags = true
	case part == "contains":
		fi.contains = true
		fi.nav = true
	case strings.HasPrefix(part, "partner="):
		fi.partner = strings.TrimPrefix(part, "partner=")
		fi.nav = true
	case strings.HasPrefix(part, "foreignKey:"):
		fi.foreignKey = strings.TrimPrefix(part, "foreignKey:")
		fi.nav = true
	case strings.HasPrefix(part, "references:"):
		fi.references = strings.TrimPrefix(part, "references:")
		fi.nav = true
	case strings.HasPrefix(part, "many2many:"):
		fi.nav = true
	case strings.HasPrefix(part, "annotation:"):
		a, err := parseAnnotationTag(strings.TrimPrefix(part, "annotation:"))
		if err != nil {
			return err
		}
		fi.annotations = append(fi.annotations, a)
	}
	return nil
}

// parseAnnotationTag parses Core.Computed or Org.OData.Core.V1.Description=Some text.
func parseAnnotationTag(s string) (tagAnnotation, error) {
	term, value, hasValue := strings.Cut(s, "=")
	term = strings.TrimSpace(term)
	if !edm.IsQualifiedName(term) {
		return tagAnnotation{}, fmt.Errorf("invalid annotation tag %q: term must be a qualified name", s)
	}
	return tagAnnotation{term: term, value: value, hasValue: hasValue}, nil
}

func (fi fieldInfo) constraints() []edm.ReferentialConstraint {
	if fi.foreignKey == "" {
		return nil
	}
	refs := fi.references
	if refs == "" {
		refs = "ID"
	}
	return []edm.ReferentialConstraint{{Property: fi.foreignKey, ReferencedProperty: refs}}
}

func (fi fieldInfo) facets() edm.Facets {
	return edm.Facets{MaxLength: fi.maxLength, Precision: fi.precision, Scale: fi.scale}
}

// isNullable decides nullability: an explicit tag wins, keys and collections are never
// nullable, otherwise a property is nullable when its Go type can hold nil.
func (fi fieldInfo) isNullable() bool {
	if fi.nullable != nil {
		return *fi.nullable
	}
	if fi.key || fi.collection {
		return false
	}
	return fi.pointer
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	durationType  = reflect.TypeOf(time.Duration(0))
	uuidType      = reflect.TypeOf(uuid.UUID{})
	decimalType   = reflect.TypeOf(decimal.Decimal{})
	dateType      = reflect.TypeOf(literal.Date{})
	timeOfDayType = reflect.TypeOf(literal.TimeOfDay{})
	enumInterface = reflect.TypeOf((*Enum)(nil)).Elem()
)

// primitiveFor maps a Go type to an Edm primitive type, or nil.
func primitiveFor(t reflect.Type) *edm.PrimitiveType {
	switch t {
	case timeType:
		return edm.DateTimeOffsetType
	case durationType:
		return edm.DurationType
	case uuidType:
		return edm.GuidType
	case decimalType:
		return edm.DecimalType
	case dateType:
		return edm.DateType
	case timeOfDayType:
		return edm.TimeOfDayType
	}
	switch t.Kind() {
	case reflect.String:
		return edm.StringType
	case reflect.Bool:
		return edm.BooleanType
	case reflect.Int8:
		return edm.SByteType
	case reflect.Uint8:
		return edm.ByteType
	case reflect.Int16:
		return edm.Int16Type
	case reflect.Int32, reflect.Uint16:
		return edm.Int32Type
	case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64:
		return edm.Int64Type
	case reflect.Float32:
		return edm.SingleType
	case reflect.Float64:
		return edm.DoubleType
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return edm.BinaryType
		}
	}
	return nil
}

func isPrimitiveStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && primitiveFor(t) != nil
}

// enumUnderlyingType maps the kind of a Go enum type to the Edm underlying type.
func enumUnderlyingType(t reflect.Type) (*edm.PrimitiveType, error) {
	switch t.Kind() {
	case reflect.Int8:
		return edm.SByteType, nil
	case reflect.Uint8:
		return edm.ByteType, nil
	case reflect.Int16:
		return edm.Int16Type, nil
	case reflect.Int32, reflect.Uint16:
		return edm.Int32Type, nil
	case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64:
		return edm.Int64Type, nil
	}
	return nil, fmt.Errorf("enum type %s must have an integer kind, got %s", t, t.Kind())
}

// enumMembers calls EnumMembers on a zero value of t, trying value and pointer receivers.
func enumMembers(t reflect.Type) ([]EnumMember, bool) {
	if t.Implements(enumInterface) {
		return reflect.Zero(t).Interface().(Enum).EnumMembers(), true
	}
	if reflect.PointerTo(t).Implements(enumInterface) {
		return reflect.New(t).Interface().(Enum).EnumMembers(), true
	}
	return nil, false
}

// isAutoIncrementKey reports whether a key is generated by the store: unsigned integer
// keys always are, signed ones when tagged autoincrement.
func (fi fieldInfo) isAutoIncrementKey() bool {
	if !fi.key {
		return false
	}
	if strings.Contains(fi.tags, "autoincrement:false") {
		return false
	}
	switch fi.goType.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strings.Contains(fi.tags, "autoincrement")
	}
	return false
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return field.Name
}

func isTypeNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

func dereference(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// pluralize creates a simple plural of an entity type name for its entity set.
func pluralize(word string) string {
	if word == "" {
		return word
	}
	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(rune(word[len(word)-2])):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") || strings.HasSuffix(word, "z") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	}
	return word + "s"
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// entitySetName calls an EntitySetName() string method when the type declares one, with
// a value or pointer receiver, and pluralizes the type name otherwise.
func entitySetName(t reflect.Type) string {
	for _, candidate := range []reflect.Value{reflect.New(t).Elem(), reflect.New(t)} {
		method := candidate.MethodByName("EntitySetName")
		if !method.IsValid() {
			continue
		}
		mt := method.Type()
		if mt.NumIn() != 0 || mt.NumOut() != 1 || mt.Out(0).Kind() != reflect.String {
			continue
		}
		if name := method.Call(nil)[0].String(); name != "" {
			return name
		}
	}
	return pluralize(t.Name())
}
