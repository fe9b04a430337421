package driver

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tomyedwab/oracledb/sqlproxy/types"
	"github.com/tomyedwab/oracledb/udt"
)

// CallHost is a function provided by the WASI host environment to handle SQL proxy requests.
// This function must be set by the user of this driver in the WASI environment.
var CallHost func(requestPayload []byte) (responsePayload []byte, err error)

// SetHostHandler allows the WASI application to set the function
// used to proxy queries to the host. This must be called before
// any database operations.
func SetHostHandler(handler func(requestPayload []byte) (responsePayload []byte, err error)) {
	CallHost = handler
}

// DriverName is the name the driver is registered under.
const DriverName = "sqlproxy"

func init() {
	sql.Register(DriverName, &Driver{})
}

// errorResponse is implemented by every response type.
type errorResponse interface {
	hostError() string
}

type generalResponse struct{ types.GeneralResponse }
type queryResponse struct{ types.QueryResponse }
type execResponse struct{ types.ExecResponse }

func (r *generalResponse) hostError() string { return r.Error }
func (r *queryResponse) hostError() string   { return r.Error }
func (r *execResponse) hostError() string    { return r.Error }

// roundTrip sends req to the host and decodes the reply into resp.
func roundTrip(req types.SQLRequest, resp errorResponse) error {
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("sqlproxy: failed to marshal %s request: %w", req.Command, err)
	}

	respPayload, err := CallHost(reqPayload)
	if err != nil {
		return fmt.Errorf("sqlproxy: CallHost for %s failed: %w", req.Command, err)
	}

	dec := json.NewDecoder(bytes.NewReader(respPayload))
	dec.UseNumber()
	if err := dec.Decode(resp); err != nil {
		return fmt.Errorf("sqlproxy: failed to unmarshal %s response: %w", req.Command, err)
	}

	if msg := resp.hostError(); msg != "" {
		return fmt.Errorf("sqlproxy: host %s error: %s", req.Command, msg)
	}
	return nil
}

// --- Driver implementation ---

// Driver is the SQL driver for the proxy.
type Driver struct{}

// Open returns a new connection to the database.
// If name is non-empty, then there is a transaction being passed from the host
// environment.
func (d *Driver) Open(name string) (driver.Conn, error) {
	if CallHost == nil {
		return nil, fmt.Errorf("sqlproxy: CallHost function is not set")
	}
	return &Conn{HostTxID: name}, nil
}

// --- Connection implementation ---

// Conn implements the driver.Conn interface.
type Conn struct {
	HostTxID    string // For transactions initiated by the host and passed via DSN
	currentTxID string // For transactions initiated by driver.Begin()
}

var _ driver.NamedValueChecker = (*Conn)(nil)

// CheckNamedValue accepts a *udt.StructType argument as the row type of a
// query. All other values get the default conversion.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if _, ok := nv.Value.(*udt.StructType); ok {
		return nil
	}
	return driver.ErrSkip
}

// Prepare returns a prepared statement, suitable for query or execution.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	var resp generalResponse
	if err := roundTrip(types.SQLRequest{Command: "prepare", SQL: query, TxID: c.currentTxID}, &resp); err != nil {
		return nil, err
	}
	if resp.StmtID == "" {
		return nil, fmt.Errorf("sqlproxy: host did not return a StmtID for prepare")
	}

	return &Stmt{conn: c, query: query, stmtID: resp.StmtID, txID: c.currentTxID}, nil
}

// Close invalidates and potentially releases resources associated with the connection.
func (c *Conn) Close() error {
	return roundTrip(types.SQLRequest{Command: "close_conn"}, &generalResponse{})
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	if c.currentTxID != "" {
		return nil, fmt.Errorf("sqlproxy: transaction already active on this connection (TxID: %s)", c.currentTxID)
	}

	if c.HostTxID != "" {
		c.currentTxID = c.HostTxID
		return &Tx{conn: c, txID: c.HostTxID}, nil
	}

	var resp generalResponse
	if err := roundTrip(types.SQLRequest{Command: "begin_tx"}, &resp); err != nil {
		return nil, err
	}
	if resp.TxID == "" {
		return nil, fmt.Errorf("sqlproxy: host did not return a transaction ID for begin_tx")
	}

	c.currentTxID = resp.TxID
	return &Tx{conn: c, txID: resp.TxID}, nil
}

// --- Statement implementation ---

// Stmt implements the driver.Stmt interface.
type Stmt struct {
	conn   *Conn
	query  string // Original query, mainly for context/debugging
	stmtID string // Host-provided statement ID
	txID   string // Transaction ID if this statement was prepared within a transaction
}

// Close closes the statement.
func (s *Stmt) Close() error {
	if err := roundTrip(types.SQLRequest{Command: "close_stmt", StmtID: s.stmtID}, &generalResponse{}); err != nil {
		return err
	}
	s.stmtID = ""
	return nil
}

// NumInput returns -1; the host validates the placeholder count.
func (s *Stmt) NumInput() int {
	return -1
}

// splitArgs separates the optional row type from the SQL arguments and makes
// the remaining values JSON friendly.
func splitArgs(args []driver.Value) (*udt.StructType, []interface{}, error) {
	var rowType *udt.StructType
	converted := make([]interface{}, 0, len(args))
	for _, v := range args {
		switch val := v.(type) {
		case *udt.StructType:
			if rowType != nil {
				return nil, nil, fmt.Errorf("sqlproxy: more than one row type given")
			}
			rowType = val
		case time.Time:
			converted = append(converted, val.Format(time.RFC3339Nano))
		default:
			// []byte travels as base64, as encoding/json does by default.
			converted = append(converted, v)
		}
	}
	return rowType, converted, nil
}

// Exec executes a prepared statement with the given arguments and returns a Result.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	_, convertedArgs, err := splitArgs(args)
	if err != nil {
		return nil, err
	}

	var resp execResponse
	req := types.SQLRequest{Command: "exec", StmtID: s.stmtID, TxID: s.txID, Args: convertedArgs}
	if err := roundTrip(req, &resp); err != nil {
		return nil, err
	}

	return &sqlProxyResult{lastInsertID: resp.LastInsertID, rowsAffected: resp.RowsAffected}, nil
}

// Query executes a prepared statement with the given arguments and returns Rows.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	rowType, convertedArgs, err := splitArgs(args)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	req := types.SQLRequest{Command: "query", StmtID: s.stmtID, TxID: s.txID, Args: convertedArgs, RowType: rowType}
	if err := roundTrip(req, &resp); err != nil {
		return nil, err
	}

	return &sqlProxyRows{columns: resp.Columns, data: resp.Rows}, nil
}

// --- Transaction implementation ---

// Tx implements the driver.Tx interface.
type Tx struct {
	conn *Conn
	txID string // Host-provided transaction ID
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.txID == "" {
		return fmt.Errorf("sqlproxy: transaction already committed or rolled back")
	}
	err := roundTrip(types.SQLRequest{Command: "commit", TxID: t.txID}, &generalResponse{})

	// A failed commit leaves the host transaction in an unknown state, so the
	// connection no longer tracks it either way.
	t.conn.currentTxID = ""
	if err != nil {
		return fmt.Errorf("%w (TxID: %s)", err, t.txID)
	}
	t.txID = ""
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if t.txID == "" {
		return fmt.Errorf("sqlproxy: transaction already committed or rolled back")
	}
	err := roundTrip(types.SQLRequest{Command: "rollback", TxID: t.txID}, &generalResponse{})

	t.conn.currentTxID = ""
	txID := t.txID
	t.txID = ""
	if err != nil {
		return fmt.Errorf("%w (TxID: %s)", err, txID)
	}
	return nil
}

// --- Result implementation ---

// sqlProxyResult implements the driver.Result interface.
type sqlProxyResult struct {
	lastInsertID int64
	rowsAffected int64
}

// LastInsertId returns the database's auto-generated ID after, for example, an INSERT into a table with primary key.
func (r *sqlProxyResult) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

// RowsAffected returns the number of rows affected by the query.
func (r *sqlProxyResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// --- Rows implementation ---

// sqlProxyRows implements the driver.Rows interface.
type sqlProxyRows struct {
	columns         []string
	data            [][]interface{} // All rows data, pre-fetched
	currentRowIndex int
}

// Columns returns the names of the columns.
func (r *sqlProxyRows) Columns() []string {
	return r.columns
}

// Close closes the Rows, preventing further enumeration. All rows were
// fetched with the query, so nothing is sent to the host.
func (r *sqlProxyRows) Close() error {
	r.data = nil
	r.currentRowIndex = 0
	return nil
}

// Next is called to populate the next row of data into the provided slice.
// Next should return io.EOF when there are no more rows.
func (r *sqlProxyRows) Next(dest []driver.Value) error {
	if r.currentRowIndex >= len(r.data) {
		return io.EOF
	}

	rowData := r.data[r.currentRowIndex]
	if len(rowData) != len(dest) {
		return fmt.Errorf("sqlproxy: column count mismatch. Expected %d, got %d", len(dest), len(rowData))
	}

	// Strings, bools and nil arrive as valid driver values. Numbers arrive
	// as json.Number; records and their nested values are left for
	// oracledb.Rows to rebuild.
	for i, val := range rowData {
		dest[i] = narrowNumber(val)
	}

	r.currentRowIndex++
	return nil
}

// narrowNumber converts a json.Number into int64 when it is integral and
// float64 otherwise.
func narrowNumber(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
