// Package udt converts Oracle user-defined (object) type values into records.
//
// A structured value is read from the driver as a RawStruct and converted
// against a StructType that declares a single field. Every attribute of the
// raw value is coerced with the tag of that field and collected, in order,
// under the field's name:
//
//	st := &udt.StructType{Name: "Point", Fields: []udt.Field{{Name: "coords", Tag: udt.TagFloat}}}
//	rec, err := udt.Convert(raw, st) // udt.Record{"coords": {1.5, 2.25}}
//
// Nested object attributes are converted recursively. All failures are
// reported as *ApplicationError and no partial record is returned.
package udt

import (
	"math"
	"reflect"

	"github.com/shopspring/decimal"
)

// Marshaler is the stateless conversion strategy handed to result processors.
type Marshaler interface {
	Convert(raw RawStruct, st *StructType) (Record, error)
}

// StructMarshaler is the default Marshaler.
type StructMarshaler struct{}

var _ Marshaler = StructMarshaler{}

// Convert implements Marshaler.
func (StructMarshaler) Convert(raw RawStruct, st *StructType) (Record, error) {
	return Convert(raw, st)
}

// Convert converts raw into a Record described by st. A nil raw value
// converts to a nil Record without error.
func Convert(raw RawStruct, st *StructType) (Record, error) {
	if isNil(raw) {
		return nil, nil
	}
	if st == nil {
		return nil, &ApplicationError{
			Kind:    KindSchemaMismatch,
			Message: "no structured type declared for struct value",
		}
	}
	if len(st.Fields) == 0 || (!st.IsGeneric() && len(st.Fields) != 1) {
		return nil, schemaMismatch(st)
	}
	field := st.Fields[0]

	attrs, err := raw.Attributes()
	if err != nil {
		return nil, withSQLType(dataAccess(st, err), raw)
	}

	values := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		v, err := coerce(attr, field, st)
		if err != nil {
			return nil, withSQLType(err, raw)
		}
		values = append(values, v)
	}
	return Record{field.Name: values}, nil
}

// withSQLType records the database type name of raw on err unless a nested
// conversion already did.
func withSQLType(err error, raw RawStruct) error {
	appErr, ok := err.(*ApplicationError)
	if !ok || appErr.SQLType != "" {
		return err
	}
	if name, nerr := raw.SQLTypeName(); nerr == nil {
		appErr.SQLType = name
	}
	return err
}

func coerce(value any, field Field, st *StructType) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Tag {
	case TagInt:
		if d, ok := value.(decimal.Decimal); ok {
			whole := d.Truncate(0)
			if !whole.Equal(decimal.NewFromInt(whole.IntPart())) {
				return nil, unsupported(st, field.Tag, value)
			}
			return whole.IntPart(), nil
		}
		return value, nil
	case TagFloat:
		if d, ok := value.(decimal.Decimal); ok {
			return d.InexactFloat64(), nil
		}
		return value, nil
	case TagDecimal:
		if d, ok := toDecimal(value); ok {
			return d, nil
		}
		return nil, unsupported(st, field.Tag, value)
	case TagString:
		return value, nil
	case TagBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		if d, ok := integerLike(value); ok {
			return d.Equal(decimal.NewFromInt(1)), nil
		}
		return nil, unsupported(st, field.Tag, value)
	case TagObject, TagRecord:
		nested, ok := AsRawStruct(value)
		if !ok {
			return nil, unsupported(st, field.Tag, value)
		}
		target := st
		if field.Type != nil {
			target = field.Type
		}
		rec, err := Convert(nested, target)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		return rec, nil
	default:
		return nil, unsupported(st, field.Tag, value)
	}
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Decimal{}, false
		}
		return *v, true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	}
	if n, ok := integerValue(value); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}

// integerLike accepts Go integers and integral floats or decimals.
func integerLike(value any) (decimal.Decimal, bool) {
	if n, ok := integerValue(value); ok {
		return decimal.NewFromInt(n), true
	}
	switch v := value.(type) {
	case decimal.Decimal:
		if v.IsInteger() {
			return v, true
		}
	case float64:
		if v == math.Trunc(v) {
			return decimal.NewFromFloat(v), true
		}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return decimal.NewFromFloat32(v), true
		}
	}
	return decimal.Decimal{}, false
}

func integerValue(value any) (int64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func isNil(raw RawStruct) bool {
	if raw == nil {
		return true
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
