package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tomyedwab/mobetta/sqlproxy/types"
)

// HostFunc sends one request payload to the host and returns its response.
type HostFunc func(requestPayload []byte) (responsePayload []byte, err error)

// CallHost is the host function used by connections opened through sql.Open.
// It must be set before any database operations.
var CallHost HostFunc

// SetHostHandler sets the function used to proxy queries to the host by
// connections opened through sql.Open("sqlproxy", ...).
func SetHostHandler(handler func(requestPayload []byte) (responsePayload []byte, err error)) {
	CallHost = handler
}

const driverName = "sqlproxy"

// ErrArgsNotSupported is returned when a query is given parameters.
var ErrArgsNotSupported = errors.New("sqlproxy: parameter binding is not supported")

func init() {
	sql.Register(driverName, &Driver{})
}

// --- Driver implementation ---

// Driver is the SQL driver for the proxy.
type Driver struct{}

// Open returns a new connection to the database. The name is ignored.
func (d *Driver) Open(name string) (driver.Conn, error) {
	if CallHost == nil {
		return nil, fmt.Errorf("sqlproxy: CallHost function is not set")
	}
	return &Conn{call: CallHost}, nil
}

// Connector opens connections that talk to a fixed host function. Use it with
// sql.OpenDB when more than one host lives in the same process.
type Connector struct {
	call HostFunc
}

// NewConnector returns a Connector for call.
func NewConnector(call HostFunc) *Connector {
	return &Connector{call: call}
}

// Connect implements driver.Connector.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.call == nil {
		return nil, fmt.Errorf("sqlproxy: host function is not set")
	}
	return &Conn{call: c.call}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver { return &Driver{} }

// roundTrip sends req and decodes the reply into resp, which must embed
// types.ErrorInfo.
func roundTrip(call HostFunc, req types.SQLRequest, resp interface{ errorInfo() types.ErrorInfo }) error {
	reqPayload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("sqlproxy: failed to marshal %s request: %w", req.Command, err)
	}

	respPayload, err := call(reqPayload)
	if err != nil {
		return fmt.Errorf("sqlproxy: CallHost for %s failed: %w", req.Command, err)
	}

	if err := json.Unmarshal(respPayload, resp); err != nil {
		return fmt.Errorf("sqlproxy: failed to unmarshal %s response: %w", req.Command, err)
	}

	if info := resp.errorInfo(); info.Error != "" {
		return fmt.Errorf("sqlproxy: %w", &types.HostError{Command: req.Command, Kind: info.Kind, Message: info.Error})
	}
	return nil
}

type generalResponse struct{ types.GeneralResponse }

func (r *generalResponse) errorInfo() types.ErrorInfo { return r.ErrorInfo }

type execResponse struct{ types.ExecResponse }

func (r *execResponse) errorInfo() types.ErrorInfo { return r.ErrorInfo }

type rowResponse struct{ types.RowResponse }

func (r *rowResponse) errorInfo() types.ErrorInfo { return r.ErrorInfo }

// --- Connection implementation ---

// Conn implements the driver.Conn interface.
type Conn struct {
	call HostFunc
	inTx bool
}

var (
	_ driver.Conn          = (*Conn)(nil)
	_ driver.ExecerContext = (*Conn)(nil)
)

// Prepare returns a prepared statement, suitable for query or execution.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	var resp generalResponse
	if err := roundTrip(c.call, types.SQLRequest{Command: types.CmdPrepare, SQL: query}, &resp); err != nil {
		return nil, err
	}
	if resp.StmtID == "" {
		return nil, fmt.Errorf("sqlproxy: host did not return a StmtID for prepare")
	}
	return &Stmt{conn: c, query: query, stmtID: resp.StmtID, columns: resp.Columns}, nil
}

// ExecContext runs query on the host without preparing it first. Several
// statements separated by semicolons are allowed.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if len(args) > 0 {
		return nil, ErrArgsNotSupported
	}
	return c.exec(query)
}

func (c *Conn) exec(query string) (driver.Result, error) {
	var resp execResponse
	if err := roundTrip(c.call, types.SQLRequest{Command: types.CmdExec, SQL: query}, &resp); err != nil {
		return nil, err
	}
	return &sqlProxyResult{lastInsertID: resp.LastInsertID, rowsAffected: resp.RowsAffected}, nil
}

// Close releases every statement the host prepared for this connection.
func (c *Conn) Close() error {
	var resp generalResponse
	return roundTrip(c.call, types.SQLRequest{Command: types.CmdCloseConn}, &resp)
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	if c.inTx {
		return nil, fmt.Errorf("sqlproxy: transaction already active on this connection")
	}
	if _, err := c.exec("BEGIN"); err != nil {
		return nil, err
	}
	c.inTx = true
	return &Tx{conn: c}, nil
}

// --- Statement implementation ---

// Stmt implements the driver.Stmt interface.
type Stmt struct {
	conn    *Conn
	query   string // Original query, mainly for context/debugging
	stmtID  string // Host-provided statement ID
	columns []string
}

// Close finalizes the statement on the host.
func (s *Stmt) Close() error {
	if s.stmtID == "" {
		return nil
	}
	var resp generalResponse
	if err := roundTrip(s.conn.call, types.SQLRequest{Command: types.CmdFinalize, StmtID: s.stmtID}, &resp); err != nil {
		return err
	}
	s.stmtID = "" // Mark as closed
	return nil
}

// NumInput returns -1: the driver does not know the placeholder count, and
// any arguments are rejected at execution.
func (s *Stmt) NumInput() int {
	return -1
}

// rewind puts the host statement back at its first row, so that a Stmt can
// be run any number of times.
func (s *Stmt) rewind() error {
	var resp generalResponse
	return roundTrip(s.conn.call, types.SQLRequest{Command: types.CmdReset, StmtID: s.stmtID}, &resp)
}

// Exec runs the statement to completion.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	if len(args) > 0 {
		return nil, ErrArgsNotSupported
	}
	if err := s.rewind(); err != nil {
		return nil, err
	}
	for {
		var resp rowResponse
		if err := roundTrip(s.conn.call, types.SQLRequest{Command: types.CmdNext, StmtID: s.stmtID}, &resp); err != nil {
			return nil, err
		}
		if resp.Done {
			break
		}
	}
	var resp execResponse
	if err := roundTrip(s.conn.call, types.SQLRequest{Command: types.CmdChanges}, &resp); err != nil {
		return nil, err
	}
	return &sqlProxyResult{lastInsertID: resp.LastInsertID, rowsAffected: resp.RowsAffected}, nil
}

// Query starts the statement from its first row. Rows are fetched from the
// host one at a time.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, ErrArgsNotSupported
	}
	if err := s.rewind(); err != nil {
		return nil, err
	}
	return &sqlProxyRows{stmt: s}, nil
}

// --- Transaction implementation ---

// Tx implements the driver.Tx interface.
type Tx struct {
	conn *Conn
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.finish("COMMIT")
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.finish("ROLLBACK")
}

func (t *Tx) finish(query string) error {
	if t.done {
		return fmt.Errorf("sqlproxy: transaction already committed or rolled back")
	}
	// Whatever the host says, the transaction is no longer active from the
	// client's point of view.
	t.done = true
	t.conn.inTx = false
	_, err := t.conn.exec(query)
	return err
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

// sqlProxyRows implements the driver.Rows interface over a host statement.
type sqlProxyRows struct {
	stmt *Stmt
	done bool
}

// Columns returns the names of the columns.
func (r *sqlProxyRows) Columns() []string {
	return r.stmt.columns
}

// Close rewinds the host statement so that it holds no read position.
func (r *sqlProxyRows) Close() error {
	if r.stmt.stmtID == "" {
		return nil
	}
	r.done = true
	return r.stmt.rewind()
}

// Next fetches the next row from the host into dest. It returns io.EOF when
// there are no more rows.
func (r *sqlProxyRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	var resp rowResponse
	if err := roundTrip(r.stmt.conn.call, types.SQLRequest{Command: types.CmdNext, StmtID: r.stmt.stmtID}, &resp); err != nil {
		return err
	}
	if resp.Done {
		r.done = true
		return io.EOF
	}

	if len(resp.Row) != len(dest) {
		return fmt.Errorf("sqlproxy: column count mismatch. Expected %d, got %d", len(dest), len(resp.Row))
	}
	for i, val := range resp.Row {
		dest[i] = val.Interface()
	}
	return nil
}
