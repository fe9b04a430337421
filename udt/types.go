package udt

import (
	"fmt"
	"strings"
)

// GenericTypeName is the descriptor name that accepts any number of fields.
// Conversion against it always uses the first declared field.
const GenericTypeName = "ObjectType"

// TypeTag identifies the declared type of a record field.
type TypeTag int

const (
	TagUnknown TypeTag = iota
	TagInt
	TagFloat
	TagDecimal
	TagString
	TagBoolean
	TagObject
	TagRecord
	TagBytes
	TagTime
	TagArray
	TagJSON
)

var tagNames = map[TypeTag]string{
	TagUnknown: "unknown",
	TagInt:     "int",
	TagFloat:   "float",
	TagDecimal: "decimal",
	TagString:  "string",
	TagBoolean: "boolean",
	TagObject:  "object",
	TagRecord:  "record",
	TagBytes:   "bytes",
	TagTime:    "time",
	TagArray:   "array",
	TagJSON:    "json",
}

func (t TypeTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// IsStructured reports whether values of this tag are nested records.
func (t TypeTag) IsStructured() bool {
	return t == TagObject || t == TagRecord
}

func (t TypeTag) MarshalText() ([]byte, error) {
	name, ok := tagNames[t]
	if !ok {
		return nil, fmt.Errorf("udt: invalid type tag %d", int(t))
	}
	return []byte(name), nil
}

func (t *TypeTag) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for tag, n := range tagNames {
		if n == name {
			*t = tag
			return nil
		}
	}
	return fmt.Errorf("udt: unknown type tag %q", string(text))
}

// Field is a named, typed member of a StructType.
type Field struct {
	Name string  `json:"name"`
	Tag  TypeTag `json:"tag"`
	// Type describes the nested record for object and record fields. It may be
	// nil, in which case nested values are converted with the enclosing type.
	Type *StructType `json:"type,omitempty"`
}

// StructType describes a user-defined structured type as the caller expects
// to receive it.
type StructType struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// IsGeneric reports whether st is the generic ObjectType marker.
func (st *StructType) IsGeneric() bool {
	return st != nil && st.Name == GenericTypeName
}

// Field returns the field with the given name, compared case-insensitively.
func (st *StructType) Field(name string) (*Field, bool) {
	if st == nil {
		return nil, false
	}
	for i := range st.Fields {
		if strings.EqualFold(st.Fields[i].Name, name) {
			return &st.Fields[i], true
		}
	}
	return nil, false
}

// Generic returns a generic descriptor whose single field carries the given
// name and tag.
func Generic(fieldName string, tag TypeTag) *StructType {
	return &StructType{
		Name:   GenericTypeName,
		Fields: []Field{{Name: fieldName, Tag: tag}},
	}
}

// RawStruct is a driver-provided structured value. It is only read for the
// duration of a single conversion.
type RawStruct interface {
	// SQLTypeName returns the database name of the structured type.
	SQLTypeName() (string, error)
	// Attributes returns the attribute values in declaration order.
	Attributes() ([]any, error)
}

// Record is a converted structured value: a single field name mapped to the
// converted attribute values.
type Record map[string][]any

// FieldName returns the name of the record's field.
func (r Record) FieldName() string {
	for name := range r {
		return name
	}
	return ""
}

// Values returns the converted attribute values.
func (r Record) Values() []any {
	for _, values := range r {
		return values
	}
	return nil
}

// AsRawStruct reports whether v is a structured value.
func AsRawStruct(v any) (RawStruct, bool) {
	raw, ok := v.(RawStruct)
	return raw, ok
}
