package host

import (
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/tomyedwab/oracledb/udt"
)

// ResultProcessor turns a value scanned from the native driver into a value
// that can be sent to the guest. field is the row-type field declared for the
// column, or nil when the request carried no row type.
type ResultProcessor interface {
	ProcessValue(value any, field *udt.Field) (any, error)
}

// DefaultProcessor makes driver values JSON friendly.
type DefaultProcessor struct{}

// ProcessValue implements ResultProcessor.
func (DefaultProcessor) ProcessValue(value any, field *udt.Field) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return v, nil
	}
}

// GenericFieldName names the record field of struct values converted
// without a row-type field.
const GenericFieldName = "attributes"

// OracleProcessor converts Oracle object values into udt records and falls
// back to DefaultProcessor for everything else.
type OracleProcessor struct {
	// Marshaler converts structured values. A nil Marshaler uses
	// udt.StructMarshaler.
	Marshaler udt.Marshaler
	// Adapt recognizes native driver struct values. A nil Adapt only accepts
	// values that already implement udt.RawStruct.
	Adapt func(v any) (udt.RawStruct, bool)
}

// ProcessValue implements ResultProcessor. Struct values are converted with
// the field's declared type. Without one they are converted with the generic
// marker, keeping the attribute values as the driver returned them.
// Adapted values that implement io.Closer are closed once converted.
func (p OracleProcessor) ProcessValue(value any, field *udt.Field) (result any, err error) {
	raw, ok := p.adapt(value)
	if !ok {
		return DefaultProcessor{}.ProcessValue(value, field)
	}
	if c, ok := raw.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				result, err = nil, fmt.Errorf("close struct value: %w", cerr)
			}
		}()
	}

	rec, err := p.marshaler().Convert(raw, descriptorFor(field))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return p.processRecord(rec)
}

func (p OracleProcessor) adapt(v any) (udt.RawStruct, bool) {
	if p.Adapt == nil {
		return udt.AsRawStruct(v)
	}
	return p.Adapt(v)
}

func (p OracleProcessor) marshaler() udt.Marshaler {
	if p.Marshaler == nil {
		return udt.StructMarshaler{}
	}
	return p.Marshaler
}

// descriptorFor returns the struct type declared by field, or the generic
// marker when there is none.
func descriptorFor(field *udt.Field) *udt.StructType {
	if field != nil && field.Type != nil {
		return field.Type
	}
	name := GenericFieldName
	if field != nil && field.Name != "" {
		name = field.Name
	}
	return udt.Generic(name, udt.TagString)
}

// processRecord applies the default conversions to scalar record values so
// that the record marshals cleanly. Struct values left unconverted by a
// string-tagged field are converted with the generic marker.
func (p OracleProcessor) processRecord(rec udt.Record) (udt.Record, error) {
	out := make(udt.Record, len(rec))
	for name, values := range rec {
		converted := make([]any, len(values))
		for i, v := range values {
			var err error
			if nested, ok := v.(udt.Record); ok {
				converted[i], err = p.processRecord(nested)
			} else {
				converted[i], err = p.ProcessValue(v, nil)
			}
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
		}
		out[name] = converted
	}
	return out, nil
}
