package oracledb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tomyedwab/oracledb/udt"
)

// Rows iterates over a query result.
type Rows struct {
	rows    *sql.Rows
	rowType *udt.StructType
	columns []string
}

// Next prepares the next row for Record or Scan.
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Err returns the error, if any, that was encountered during iteration.
func (r *Rows) Err() error {
	return r.rows.Err()
}

// Close closes the rows.
func (r *Rows) Close() error {
	return r.rows.Close()
}

// Columns returns the column names.
func (r *Rows) Columns() []string {
	return r.columns
}

// Scan copies the current row into dest, as sql.Rows.Scan does.
func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Record returns the current row keyed by column name. Object columns are
// returned as udt.Record with values typed by the row type.
func (r *Rows) Record() (map[string]any, error) {
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("oracledb: scan: %w", err)
	}

	row := make(map[string]any, len(r.columns))
	for i, name := range r.columns {
		field, _ := r.rowType.Field(name)
		v, err := decodeValue(values[i], field, r.rowType)
		if err != nil {
			return nil, fmt.Errorf("oracledb: column %s: %w", name, err)
		}
		row[name] = v
	}
	return row, nil
}

// decodeValue restores a value received from the host. Only record values
// need work; scalars were already narrowed by the driver.
func decodeValue(v any, field *udt.Field, enclosing *udt.StructType) (any, error) {
	m, ok := v.(map[string]any)
	if !ok || field == nil || !field.Tag.IsStructured() {
		return v, nil
	}
	st := field.Type
	if st == nil {
		st = enclosing
	}
	return decodeRecord(m, st)
}

func decodeRecord(m map[string]any, st *udt.StructType) (udt.Record, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("record for %s has %d fields, want 1", st.Name, len(m))
	}
	if len(st.Fields) == 0 {
		return nil, fmt.Errorf("record type %s declares no fields", st.Name)
	}
	field := st.Fields[0]

	for name, raw := range m {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("record %s: field %s is %T, want a list", st.Name, name, raw)
		}
		values := make([]any, len(list))
		for i, item := range list {
			v, err := decodeAttribute(item, field, st)
			if err != nil {
				return nil, fmt.Errorf("record %s: value %d: %w", st.Name, i, err)
			}
			values[i] = v
		}
		return udt.Record{name: values}, nil
	}
	return nil, nil
}

func decodeAttribute(v any, field udt.Field, st *udt.StructType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch field.Tag {
	case udt.TagInt:
		if n, ok := v.(json.Number); ok {
			return n.Int64()
		}
	case udt.TagFloat:
		if n, ok := v.(json.Number); ok {
			return n.Float64()
		}
	case udt.TagDecimal:
		switch t := v.(type) {
		case string:
			return decimal.NewFromString(t)
		case json.Number:
			return decimal.NewFromString(t.String())
		}
	case udt.TagObject, udt.TagRecord:
		if m, ok := v.(map[string]any); ok {
			target := st
			if field.Type != nil {
				target = field.Type
			}
			return decodeRecord(m, target)
		}
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}
