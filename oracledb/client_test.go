package oracledb

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tomyedwab/oracledb/sqlproxy/driver"
	"github.com/tomyedwab/oracledb/sqlproxy/host"
	"github.com/tomyedwab/oracledb/udt"
)

// shapeValue stands in for a native object value. The test database stores
// shapes as text like "dims:1.25,2".
type shapeValue struct {
	attrs []any
}

func (s *shapeValue) SQLTypeName() (string, error) { return "DRAW.SHAPE_T", nil }
func (s *shapeValue) Attributes() ([]any, error)   { return s.attrs, nil }

func adaptShape(v any) (udt.RawStruct, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "dims:") {
		return nil, false
	}
	var attrs []any
	for _, part := range strings.Split(strings.TrimPrefix(s, "dims:"), ",") {
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			attrs = append(attrs, part)
			continue
		}
		attrs = append(attrs, f)
	}
	return &shapeValue{attrs: attrs}, true
}

var (
	shapeType = &udt.StructType{
		Name:   "Shape",
		Fields: []udt.Field{{Name: "dims", Tag: udt.TagDecimal}},
	}
	drawingType = &udt.StructType{
		Name: "Drawing",
		Fields: []udt.Field{
			{Name: "id", Tag: udt.TagInt},
			{Name: "shape", Tag: udt.TagObject, Type: shapeType},
		},
	}
)

func setupClient(t *testing.T) *Client {
	hostDB, err := host.Open("sqlite3", path.Join(t.TempDir(), "oracledb.db"))
	if err != nil {
		t.Fatalf("host.Open returned error: %v", err)
	}
	hostDB.MustExec(`CREATE TABLE drawings (id INTEGER PRIMARY KEY, shape TEXT)`)
	sqlHost := host.NewSQLHost(hostDB, host.WithResultProcessor(host.OracleProcessor{Adapt: adaptShape}))

	previous := driver.CallHost
	driver.SetHostHandler(sqlHost.HandleRequest)

	client, err := Open()
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	client.DB().SetMaxOpenConns(1)
	t.Cleanup(func() {
		client.Close()
		hostDB.Close()
		driver.CallHost = previous
	})
	return client
}

func TestQueryReturnsRecords(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	if _, err := client.Execute(ctx, "INSERT INTO drawings (shape) VALUES (?)", "dims:1.25,2"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if _, err := client.Execute(ctx, "INSERT INTO drawings (shape) VALUES (NULL)"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	rows, err := client.Query(ctx, "SELECT id, shape FROM drawings ORDER BY id", drawingType)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	defer rows.Close()

	var got []map[string]any
	for rows.Next() {
		row, err := rows.Record()
		if err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
		got = append(got, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err returned error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0]["id"] != int64(1) {
		t.Errorf("expected id 1, got %#v", got[0]["id"])
	}
	rec, ok := got[0]["shape"].(udt.Record)
	if !ok {
		t.Fatalf("expected udt.Record, got %T", got[0]["shape"])
	}
	if rec.FieldName() != "dims" {
		t.Errorf("expected field dims, got %q", rec.FieldName())
	}
	values := rec.Values()
	want := []decimal.Decimal{decimal.RequireFromString("1.25"), decimal.RequireFromString("2")}
	if len(values) != len(want) {
		t.Fatalf("expected %d values, got %v", len(want), values)
	}
	for i, w := range want {
		d, ok := values[i].(decimal.Decimal)
		if !ok || !d.Equal(w) {
			t.Errorf("value %d: expected %s, got %#v", i, w, values[i])
		}
	}
	if got[1]["shape"] != nil {
		t.Errorf("expected nil shape for NULL column, got %#v", got[1]["shape"])
	}
}

func TestQueryWithoutRowTypeUsesGenericRecord(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	if _, err := client.Execute(ctx, "INSERT INTO drawings (shape) VALUES (?)", "dims:1"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	rows, err := client.Query(ctx, "SELECT shape FROM drawings", nil)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatalf("expected a row, got none (err %v)", rows.Err())
	}
	row, err := rows.Record()
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	m, ok := row["shape"].(map[string]any)
	if !ok {
		t.Fatalf("expected a generic record, got %T", row["shape"])
	}
	values, ok := m[host.GenericFieldName].([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("expected one value under %q, got %#v", host.GenericFieldName, m)
	}
	if n, ok := values[0].(json.Number); !ok || n.String() != "1" {
		t.Errorf("expected the attribute as returned by the driver, got %#v", values[0])
	}
}

func TestQueryUnsupportedAttribute(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	if _, err := client.Execute(ctx, "INSERT INTO drawings (shape) VALUES (?)", "dims:wide"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	_, err := client.Query(ctx, "SELECT id, shape FROM drawings", drawingType)
	if err == nil {
		t.Fatal("expected error for a non-numeric decimal attribute")
	}
	if !strings.Contains(err.Error(), "Shape") {
		t.Errorf("expected error to name the structured type, got %v", err)
	}
}

func TestCall(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	res, err := client.Call(ctx, "INSERT INTO drawings (shape) VALUES (?)", nil, "dims:3")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if res.Rows != nil || res.Result == nil {
		t.Fatalf("expected an exec result, got %+v", res)
	}
	if n, _ := res.Result.RowsAffected(); n != 1 {
		t.Errorf("expected 1 row affected, got %d", n)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	res, err = client.Call(ctx, "SELECT id, shape FROM drawings", drawingType)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	defer res.Close()
	if res.Rows == nil {
		t.Fatal("expected rows from a call with a return type")
	}
	if !res.Rows.Next() {
		t.Fatal("expected a row")
	}
	row, err := res.Rows.Record()
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if rec, ok := row["shape"].(udt.Record); !ok || len(rec.Values()) != 1 {
		t.Errorf("unexpected shape %#v", row["shape"])
	}
}

func TestExecuteError(t *testing.T) {
	client := setupClient(t)
	if _, err := client.Execute(context.Background(), "DELETE FROM missing"); err == nil {
		t.Fatal("expected error from host")
	}
}

func TestDecodeRecord(t *testing.T) {
	inner := &udt.StructType{Name: "Inner", Fields: []udt.Field{{Name: "n", Tag: udt.TagInt}}}
	outer := &udt.StructType{Name: "Outer", Fields: []udt.Field{{Name: "items", Tag: udt.TagObject, Type: inner}}}

	rec, err := decodeRecord(map[string]any{
		"items": []any{map[string]any{"n": []any{json.Number("7"), nil}}},
	}, outer)
	if err != nil {
		t.Fatalf("decodeRecord returned error: %v", err)
	}
	nested, ok := rec.Values()[0].(udt.Record)
	if !ok {
		t.Fatalf("expected nested record, got %#v", rec.Values()[0])
	}
	if v := nested.Values(); v[0] != int64(7) || v[1] != nil {
		t.Errorf("unexpected nested values %#v", v)
	}

	if _, err := decodeRecord(map[string]any{"a": []any{}, "b": []any{}}, inner); err == nil {
		t.Error("expected error for a record with two fields")
	}
	if _, err := decodeRecord(map[string]any{"n": "x"}, inner); err == nil {
		t.Error("expected error for a field that is not a list")
	}
}

func TestDecodeRecordReusesEnclosingType(t *testing.T) {
	tree := &udt.StructType{Name: "Tree", Fields: []udt.Field{{Name: "children", Tag: udt.TagRecord}}}
	rec, err := decodeRecord(map[string]any{
		"children": []any{map[string]any{"children": []any{}}},
	}, tree)
	if err != nil {
		t.Fatalf("decodeRecord returned error: %v", err)
	}
	child, ok := rec.Values()[0].(udt.Record)
	if !ok || child.FieldName() != "children" || len(child.Values()) != 0 {
		t.Errorf("unexpected child %#v", rec.Values()[0])
	}
}

func TestDecodeValueLeavesScalars(t *testing.T) {
	field := &udt.Field{Name: "id", Tag: udt.TagInt}
	v, err := decodeValue(int64(3), field, drawingType)
	if err != nil || v != int64(3) {
		t.Errorf("expected scalar to pass through, got %#v, %v", v, err)
	}
	m := map[string]any{"k": 1}
	if v, _ := decodeValue(m, nil, nil); v == nil {
		t.Error("expected maps without a field to pass through")
	}
}

func TestOpenWithoutHandler(t *testing.T) {
	previous := driver.CallHost
	driver.CallHost = nil
	defer func() { driver.CallHost = previous }()

	client, err := Open()
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer client.Close()
	_, err = client.Execute(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error without a host handler")
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
