// Package oracledb is the guest-side client for an Oracle database served by
// a sqlproxy host.
//
// Queries take an optional row type. When a result column holds an Oracle
// object value, the host converts it with the row type's field for that
// column and the client hands it back as a udt.Record:
//
//	client, err := oracledb.Open()
//	rowType := &udt.StructType{Name: "Drawing", Fields: []udt.Field{
//		{Name: "ID", Tag: udt.TagInt},
//		{Name: "SHAPE", Tag: udt.TagObject, Type: shapeType},
//	}}
//	rows, err := client.Query(ctx, "SELECT id, shape FROM drawings", rowType)
package oracledb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomyedwab/oracledb/sqlproxy/driver"
	"github.com/tomyedwab/oracledb/udt"
)

// Client runs statements through a database/sql handle.
type Client struct {
	db *sql.DB
}

// Open connects to the host through the sqlproxy driver. The host handler
// must already be installed.
func Open() (*Client, error) {
	db, err := sql.Open(driver.DriverName, "")
	if err != nil {
		return nil, fmt.Errorf("oracledb: open: %w", err)
	}
	return NewClient(db), nil
}

// NewClient wraps an existing database handle.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying handle.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the underlying handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// Query runs a query. rowType may be nil when no column holds an object value.
func (c *Client) Query(ctx context.Context, query string, rowType *udt.StructType, args ...any) (*Rows, error) {
	if rowType != nil {
		args = append([]any{rowType}, args...)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("oracledb: query: %w", err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("oracledb: columns: %w", err)
	}
	return &Rows{rows: rows, rowType: rowType, columns: columns}, nil
}

// Execute runs a statement that returns no rows.
func (c *Client) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("oracledb: execute: %w", err)
	}
	return res, nil
}

// CallResult is the outcome of Call. Exactly one of Result and Rows is set.
type CallResult struct {
	Result sql.Result
	Rows   *Rows
}

// Close releases the rows of the call, if any.
func (r *CallResult) Close() error {
	if r.Rows == nil {
		return nil
	}
	return r.Rows.Close()
}

// Call runs a procedure call. With a returnType the call is expected to
// produce rows, which are shaped like Query results; without one it is
// executed for its side effects only.
func (c *Client) Call(ctx context.Context, query string, returnType *udt.StructType, args ...any) (*CallResult, error) {
	if returnType == nil {
		res, err := c.Execute(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return &CallResult{Result: res}, nil
	}
	rows, err := c.Query(ctx, query, returnType, args...)
	if err != nil {
		return nil, err
	}
	return &CallResult{Rows: rows}, nil
}
