package host

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomyedwab/oracledb/udt"
)

type fakeStruct struct {
	attrs []any
	err   error
}

func (f *fakeStruct) SQLTypeName() (string, error) { return "FAKE_T", nil }

func (f *fakeStruct) Attributes() ([]any, error) { return f.attrs, f.err }

func TestDefaultProcessor(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 8, time.UTC)
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "nil", value: nil, want: nil},
		{name: "bytes", value: []byte("hi"), want: "aGk="},
		{name: "time", value: ts, want: "2021-03-04T05:06:07.000000008Z"},
		{name: "int", value: int64(5), want: int64(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultProcessor{}.ProcessValue(tt.value, nil)
			if err != nil {
				t.Fatalf("ProcessValue returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestOracleProcessorConvertsStructs(t *testing.T) {
	field := &udt.Field{Name: "SHAPE", Tag: udt.TagObject, Type: &udt.StructType{
		Name:   "Shape",
		Fields: []udt.Field{{Name: "dims", Tag: udt.TagDecimal}},
	}}
	raw := &fakeStruct{attrs: []any{decimal.RequireFromString("1.25"), int64(2)}}

	got, err := OracleProcessor{}.ProcessValue(raw, field)
	if err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	rec, ok := got.(udt.Record)
	if !ok {
		t.Fatalf("expected udt.Record, got %T", got)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"dims":["1.25","2"]}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestOracleProcessorNestedBytes(t *testing.T) {
	field := &udt.Field{Name: "DOC", Tag: udt.TagObject, Type: &udt.StructType{
		Name:   "Doc",
		Fields: []udt.Field{{Name: "parts", Tag: udt.TagRecord}},
	}}
	raw := &fakeStruct{attrs: []any{&fakeStruct{attrs: []any{}}}}
	got, err := OracleProcessor{}.ProcessValue(raw, field)
	if err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	data, _ := json.Marshal(got)
	if string(data) != `{"parts":[{"parts":[]}]}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestOracleProcessorFallsBack(t *testing.T) {
	got, err := OracleProcessor{}.ProcessValue([]byte("x"), nil)
	if err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	if got != "eA==" {
		t.Errorf("expected default processing, got %#v", got)
	}
}

func TestOracleProcessorNullStruct(t *testing.T) {
	var raw *fakeStruct
	got, err := OracleProcessor{}.ProcessValue(raw, &udt.Field{Name: "X", Tag: udt.TagObject})
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestOracleProcessorWithoutRowTypeUsesGenericMarker(t *testing.T) {
	tests := []struct {
		name  string
		field *udt.Field
		want  string
	}{
		{name: "no row type", field: nil, want: `{"attributes":["a",2]}`},
		{name: "field without type", field: &udt.Field{Name: "SHAPE", Tag: udt.TagObject}, want: `{"SHAPE":["a",2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OracleProcessor{}.ProcessValue(&fakeStruct{attrs: []any{"a", int64(2)}}, tt.field)
			if err != nil {
				t.Fatalf("ProcessValue returned error: %v", err)
			}
			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, data)
			}
		})
	}
}

func TestOracleProcessorGenericNestedStruct(t *testing.T) {
	inner := &closingStruct{fakeStruct: fakeStruct{attrs: []any{[]byte("x")}}}
	got, err := OracleProcessor{}.ProcessValue(&fakeStruct{attrs: []any{inner}}, nil)
	if err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	data, _ := json.Marshal(got)
	if string(data) != `{"attributes":[{"attributes":["eA=="]}]}` {
		t.Errorf("unexpected JSON %s", data)
	}
	if inner.closed != 1 {
		t.Errorf("expected nested value to be closed once, got %d", inner.closed)
	}
}

func TestOracleProcessorGenericNestedError(t *testing.T) {
	cause := errors.New("ORA-03113")
	got, err := OracleProcessor{}.ProcessValue(&fakeStruct{attrs: []any{"ok", &fakeStruct{err: cause}}}, nil)
	if got != nil {
		t.Errorf("expected no partial record, got %#v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected nested error to be returned, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "attributes[1]: ") {
		t.Errorf("expected error to name the failing value, got %q", err)
	}
}

// closingStruct records Close calls.
type closingStruct struct {
	fakeStruct
	closed   int
	closeErr error
}

func (c *closingStruct) Close() error {
	c.closed++
	return c.closeErr
}

func TestOracleProcessorClosesStructs(t *testing.T) {
	field := &udt.Field{Name: "X", Tag: udt.TagObject, Type: udt.Generic("n", udt.TagInt)}

	raw := &closingStruct{fakeStruct: fakeStruct{attrs: []any{int64(1)}}}
	if _, err := (OracleProcessor{}).ProcessValue(raw, field); err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	if raw.closed != 1 {
		t.Errorf("expected struct to be closed once, got %d", raw.closed)
	}

	failing := &closingStruct{fakeStruct: fakeStruct{err: errors.New("ORA-03113")}}
	if _, err := (OracleProcessor{}).ProcessValue(failing, field); err == nil {
		t.Fatal("expected conversion error")
	}
	if failing.closed != 1 {
		t.Errorf("expected struct to be closed after a failed conversion, got %d", failing.closed)
	}

	closeErr := errors.New("ORA-22922")
	bad := &closingStruct{fakeStruct: fakeStruct{attrs: []any{int64(1)}}, closeErr: closeErr}
	got, err := OracleProcessor{}.ProcessValue(bad, field)
	if !errors.Is(err, closeErr) || got != nil {
		t.Errorf("expected close error, got (%v, %v)", got, err)
	}
}

func TestOracleProcessorDataAccessError(t *testing.T) {
	cause := errors.New("ORA-01013")
	field := &udt.Field{Name: "X", Tag: udt.TagObject, Type: udt.Generic("attrs", udt.TagString)}
	_, err := OracleProcessor{}.ProcessValue(&fakeStruct{err: cause}, field)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

// countingMarshaler verifies the injected strategy is used.
type countingMarshaler struct {
	calls int
}

func (m *countingMarshaler) Convert(raw udt.RawStruct, st *udt.StructType) (udt.Record, error) {
	m.calls++
	return udt.Record{"n": {m.calls}}, nil
}

func TestOracleProcessorInjectedStrategy(t *testing.T) {
	m := &countingMarshaler{}
	adapted := 0
	p := OracleProcessor{
		Marshaler: m,
		Adapt: func(v any) (udt.RawStruct, bool) {
			if s, ok := v.(string); ok && s == "OBJ" {
				adapted++
				return &fakeStruct{}, true
			}
			return nil, false
		},
	}
	if _, err := p.ProcessValue("OBJ", nil); err != nil {
		t.Fatalf("ProcessValue returned error: %v", err)
	}
	if got, _ := p.ProcessValue("plain", nil); got != "plain" {
		t.Errorf("expected plain string to pass through, got %v", got)
	}
	if m.calls != 1 || adapted != 1 {
		t.Errorf("expected one adapted conversion, got calls=%d adapted=%d", m.calls, adapted)
	}
}
