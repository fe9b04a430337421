// Package driver implements a database/sql/driver for proxying SQL queries
// from a Go application running in a WebAssembly System Interface (WASI) module
// to a host environment.
//
// The host owns the real database connection, usually an Oracle database
// reached through a native driver, and returns result values that have already
// been shaped for the guest: byte slices as base64, timestamps as RFC 3339
// strings, and Oracle object values as records.
//
// Usage:
//
//  1. Import the driver package. This will register the driver with the name "sqlproxy".
//     import _ "github.com/tomyedwab/oracledb/sqlproxy/driver"
//
//  2. Before opening a database connection, set the function that carries a
//     request to the host and returns its reply:
//
//     driver.SetHostHandler(func(requestPayload []byte) ([]byte, error) {
//     // ... send requestPayload to the host and receive the response ...
//     })
//
//  3. Open a database connection using sql.Open("sqlproxy", ""). A non-empty
//     DSN names a transaction the host has already started.
//
// Row types:
//
// A *udt.StructType passed among the query arguments is not sent as a bind
// value. It travels in the request as the row type that tells the host how to
// convert object-typed columns:
//
//	rows, err := db.Query("SELECT id, shape FROM drawings", rowType)
//
// Communication Protocol:
//
// The driver sends JSON-encoded `SQLRequest` structs and expects JSON-encoded
// `QueryResponse`, `ExecResponse` or `GeneralResponse` values in return.
// JSON numbers are decoded as int64 when integral and float64 otherwise.
//
// Limitations:
//
//   - SQL execution, connection management and transaction integrity are
//     entirely up to the host.
//   - Context-aware interfaces are not implemented; database/sql falls back to
//     the non-context methods.
//   - All result rows are fetched with the query.
package driver
