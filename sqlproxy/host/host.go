package host

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/oracledb/sqlproxy/types"
	"github.com/tomyedwab/oracledb/udt"
)

// SQLHost handles proxy requests against a native database driver.
// It manages prepared statements and transactions, and shapes every result
// value through its ResultProcessor.
type SQLHost struct {
	db        *sqlx.DB
	processor ResultProcessor
	logger    *slog.Logger
	stmts     map[string]*sqlx.Stmt
	txs       map[string]*sqlx.Tx
	mu        sync.Mutex
}

// Option configures an SQLHost.
type Option func(*SQLHost)

// WithResultProcessor sets the processor applied to every result value.
// The default is DefaultProcessor.
func WithResultProcessor(p ResultProcessor) Option {
	return func(h *SQLHost) { h.processor = p }
}

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(h *SQLHost) { h.logger = logger }
}

// Open connects to the database and verifies the connection.
func Open(driverName, dataSourceName string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	return db, nil
}

// NewSQLHost creates a new SQLHost instance.
// The provided db must be an active connection; its lifetime is managed by
// the caller.
func NewSQLHost(db *sqlx.DB, opts ...Option) *SQLHost {
	h := &SQLHost{
		db:        db,
		processor: DefaultProcessor{},
		logger:    slog.Default(),
		stmts:     make(map[string]*sqlx.Stmt),
		txs:       make(map[string]*sqlx.Tx),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleRequest processes a raw SQL request payload and returns a raw response payload.
// This is the main entry point for host-side SQL proxying logic.
func (h *SQLHost) HandleRequest(requestPayload []byte) ([]byte, error) {
	var req types.SQLRequest
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	var responseData interface{}
	var opErr error

	switch req.Command {
	case "prepare":
		responseData, opErr = h.handlePrepare(&req)
	case "query":
		responseData, opErr = h.handleQuery(&req)
	case "exec":
		responseData, opErr = h.handleExec(&req)
	case "begin_tx":
		responseData, opErr = h.handleBeginTx(&req)
	case "commit":
		responseData, opErr = h.handleCommit(&req)
	case "rollback":
		responseData, opErr = h.handleRollback(&req)
	case "close_stmt":
		responseData, opErr = h.handleCloseStmt(&req)
	case "close_conn":
		responseData, opErr = h.handleCloseConn(&req)
	default:
		opErr = fmt.Errorf("unknown command: %s", req.Command)
	}

	if opErr != nil {
		h.logger.Warn("sql request failed", "command", req.Command, "error", opErr)
		return marshalErrorResponse(opErr.Error())
	}

	return json.Marshal(responseData)
}

func marshalErrorResponse(errMsg string) ([]byte, error) {
	resp := types.GeneralResponse{Error: errMsg}
	payload, err := json.Marshal(resp)
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":"critical: failed to marshal error response for: %s"}`, errMsg)),
			fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	// Operational errors travel in the payload; HandleRequest itself succeeded.
	return payload, nil
}

func (h *SQLHost) handlePrepare(req *types.SQLRequest) (types.GeneralResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stmt *sqlx.Stmt
	var err error
	if req.TxID != "" {
		tx, ok := h.txs[req.TxID]
		if !ok {
			return types.GeneralResponse{}, fmt.Errorf("transaction not found for statement preparation: %s", req.TxID)
		}
		stmt, err = tx.Preparex(req.SQL)
	} else {
		stmt, err = h.db.Preparex(req.SQL)
	}
	if err != nil {
		return types.GeneralResponse{}, fmt.Errorf("prepare failed: %w", err)
	}

	stmtID := uuid.NewString()
	h.stmts[stmtID] = stmt
	return types.GeneralResponse{StmtID: stmtID}, nil
}

// lookup resolves the statement and transaction named by a request.
func (h *SQLHost) lookup(req *types.SQLRequest) (*sqlx.Stmt, *sqlx.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stmt *sqlx.Stmt
	var tx *sqlx.Tx
	if req.StmtID != "" {
		s, ok := h.stmts[req.StmtID]
		if !ok {
			return nil, nil, fmt.Errorf("statement not found: %s", req.StmtID)
		}
		stmt = s
	}
	if req.TxID != "" {
		t, ok := h.txs[req.TxID]
		if !ok {
			return nil, nil, fmt.Errorf("transaction not found: %s", req.TxID)
		}
		tx = t
	}
	return stmt, tx, nil
}

func (h *SQLHost) handleExec(req *types.SQLRequest) (types.ExecResponse, error) {
	stmt, tx, err := h.lookup(req)
	if err != nil {
		return types.ExecResponse{}, err
	}

	var res sql.Result
	switch {
	case stmt != nil && tx != nil:
		txStmt := tx.Stmtx(stmt)
		res, err = txStmt.Exec(req.Args...)
		_ = txStmt.Close()
	case stmt != nil:
		res, err = stmt.Exec(req.Args...)
	case tx != nil:
		res, err = tx.Exec(req.SQL, req.Args...)
	default:
		res, err = h.db.Exec(req.SQL, req.Args...)
	}
	if err != nil {
		return types.ExecResponse{}, fmt.Errorf("exec failed: %w", err)
	}

	// Not every driver reports these; Oracle drivers have no last insert id.
	lastInsertID, _ := res.LastInsertId()
	rowsAffected, _ := res.RowsAffected()

	return types.ExecResponse{LastInsertID: lastInsertID, RowsAffected: rowsAffected}, nil
}

func (h *SQLHost) handleQuery(req *types.SQLRequest) (types.QueryResponse, error) {
	stmt, tx, err := h.lookup(req)
	if err != nil {
		return types.QueryResponse{}, err
	}

	var rows *sqlx.Rows
	switch {
	case stmt != nil && tx != nil:
		txStmt := tx.Stmtx(stmt)
		rows, err = txStmt.Queryx(req.Args...)
		defer txStmt.Close()
	case stmt != nil:
		rows, err = stmt.Queryx(req.Args...)
	case tx != nil:
		rows, err = tx.Queryx(req.SQL, req.Args...)
	default:
		rows, err = h.db.Queryx(req.SQL, req.Args...)
	}
	if err != nil {
		return types.QueryResponse{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return types.QueryResponse{}, fmt.Errorf("failed to get columns: %w", err)
	}
	fields := columnFields(columns, req.RowType)

	results := [][]interface{}{}
	for rows.Next() {
		rawRow, err := rows.SliceScan()
		if err != nil {
			return types.QueryResponse{}, fmt.Errorf("failed to scan row: %w", err)
		}
		processedRow, err := h.processRowValues(rawRow, fields)
		if err != nil {
			return types.QueryResponse{}, fmt.Errorf("failed to process row values: %w", err)
		}
		results = append(results, processedRow)
	}

	if err := rows.Err(); err != nil {
		return types.QueryResponse{}, fmt.Errorf("error iterating rows: %w", err)
	}

	return types.QueryResponse{Columns: columns, Rows: results}, nil
}

// columnFields matches each column to its row-type field, if any.
func columnFields(columns []string, rowType *udt.StructType) []*udt.Field {
	fields := make([]*udt.Field, len(columns))
	for i, name := range columns {
		if f, ok := rowType.Field(name); ok {
			fields[i] = f
		}
	}
	return fields
}

func (h *SQLHost) processRowValues(rawRow []interface{}, fields []*udt.Field) ([]interface{}, error) {
	processedRow := make([]interface{}, len(rawRow))
	for i, val := range rawRow {
		v, err := h.processor.ProcessValue(val, fields[i])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		processedRow[i] = v
	}
	return processedRow, nil
}

// RegisterTx makes a host-owned transaction addressable by guests.
func (h *SQLHost) RegisterTx(tx *sqlx.Tx) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	txID := uuid.NewString()
	h.txs[txID] = tx
	return txID
}

func (h *SQLHost) handleBeginTx(req *types.SQLRequest) (types.GeneralResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Beginx()
	if err != nil {
		return types.GeneralResponse{}, fmt.Errorf("begin transaction failed: %w", err)
	}

	txID := uuid.NewString()
	h.txs[txID] = tx
	return types.GeneralResponse{TxID: txID}, nil
}

func (h *SQLHost) takeTx(txID string) (*sqlx.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, ok := h.txs[txID]
	if !ok {
		return nil, fmt.Errorf("transaction not found or already closed: %s", txID)
	}
	delete(h.txs, txID)
	return tx, nil
}

func (h *SQLHost) handleCommit(req *types.SQLRequest) (types.GeneralResponse, error) {
	tx, err := h.takeTx(req.TxID)
	if err != nil {
		return types.GeneralResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("commit failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleRollback(req *types.SQLRequest) (types.GeneralResponse, error) {
	tx, err := h.takeTx(req.TxID)
	if err != nil {
		return types.GeneralResponse{}, err
	}
	if err := tx.Rollback(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("rollback failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleCloseStmt(req *types.SQLRequest) (types.GeneralResponse, error) {
	h.mu.Lock()
	stmt, exists := h.stmts[req.StmtID]
	if exists {
		delete(h.stmts, req.StmtID)
	}
	h.mu.Unlock()

	// Closing an unknown statement is a no-op, like database/sql.
	if !exists {
		return types.GeneralResponse{}, nil
	}

	if err := stmt.Close(); err != nil {
		return types.GeneralResponse{}, fmt.Errorf("close statement failed: %w", err)
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleCloseConn(req *types.SQLRequest) (types.GeneralResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, stmt := range h.stmts {
		_ = stmt.Close()
		delete(h.stmts, id)
	}
	for id, tx := range h.txs {
		_ = tx.Rollback()
		delete(h.txs, id)
	}

	// h.db is owned by the caller and stays open.
	return types.GeneralResponse{}, nil
}
