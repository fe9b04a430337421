// Package godrorudt exposes godror object values as udt.RawStruct.
//
// It lives apart from package udt so that guest builds, which never see a
// native driver, do not link the cgo-based godror driver.
package godrorudt

import (
	"errors"
	"fmt"
	"sort"

	"github.com/godror/godror"
	"github.com/shopspring/decimal"

	"github.com/tomyedwab/oracledb/udt"
)

// Object adapts a *godror.Object. Nested objects read by Attributes are
// owned by their parent and released by its Close.
type Object struct {
	obj      *godror.Object
	children []*Object
}

var _ udt.RawStruct = (*Object)(nil)

// Wrap returns obj as a udt.RawStruct. A nil obj yields a nil *Object, which
// udt.Convert treats as a NULL struct.
func Wrap(obj *godror.Object) *Object {
	if obj == nil {
		return nil
	}
	return &Object{obj: obj}
}

// Adapt recognizes godror objects and values that already are raw structs.
func Adapt(v any) (udt.RawStruct, bool) {
	switch o := v.(type) {
	case *godror.Object:
		if o == nil {
			return (*Object)(nil), true
		}
		return Wrap(o), true
	case udt.RawStruct:
		return o, true
	}
	return nil, false
}

// SQLTypeName implements udt.RawStruct.
func (o *Object) SQLTypeName() (string, error) {
	if o.obj.ObjectType == nil {
		return "", fmt.Errorf("godrorudt: object has no type information")
	}
	return o.obj.ObjectType.FullName(), nil
}

// Attributes implements udt.RawStruct. Values are returned in the order the
// attributes are declared in the type.
func (o *Object) Attributes() ([]any, error) {
	if o.obj.ObjectType == nil {
		return nil, fmt.Errorf("godrorudt: object has no type information")
	}
	attrs := make([]godror.ObjectAttribute, 0, len(o.obj.Attributes))
	for _, attr := range o.obj.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Sequence < attrs[j].Sequence })

	values := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		v, err := o.obj.Get(attr.Name)
		if err != nil {
			return nil, fmt.Errorf("godrorudt: get attribute %s.%s: %w", o.obj.Name, attr.Name, err)
		}
		nv, err := o.normalize(v)
		if err != nil {
			return nil, fmt.Errorf("godrorudt: attribute %s.%s: %w", o.obj.Name, attr.Name, err)
		}
		values = append(values, nv)
	}
	return values, nil
}

// Close releases the object and every nested object read from it. Closing
// a nil or already closed Object is a no-op.
func (o *Object) Close() error {
	if o == nil || o.obj == nil {
		return nil
	}
	var errs []error
	for _, child := range o.children {
		errs = append(errs, child.Close())
	}
	o.children = nil
	errs = append(errs, o.obj.Close())
	o.obj = nil
	return errors.Join(errs...)
}

func (o *Object) normalize(v any) (any, error) {
	switch t := v.(type) {
	case godror.Number:
		if t == "" {
			return nil, nil
		}
		return decimal.NewFromString(string(t))
	case *godror.Object:
		if t == nil {
			return nil, nil
		}
		child := Wrap(t)
		o.children = append(o.children, child)
		return child, nil
	default:
		return v, nil
	}
}
