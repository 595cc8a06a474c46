package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tomyedwab/mobetta/column"
	"github.com/tomyedwab/mobetta/database"
	"github.com/tomyedwab/mobetta/sqlproxy/types"
)

// SQLHost serves proxy requests against one database connection.
// It keeps the statements prepared by its clients keyed by an opaque ID.
type SQLHost struct {
	conn   *database.Conn
	stmts  map[string]*database.Stmt
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSQLHost creates a new SQLHost instance. The connection stays owned by the
// caller; close_conn only finalizes the statements the host created.
func NewSQLHost(conn *database.Conn, logger *slog.Logger) *SQLHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLHost{
		conn:   conn,
		stmts:  make(map[string]*database.Stmt),
		logger: logger,
	}
}

// HandleRequest processes a raw SQL request payload and returns a raw response payload.
// Requests are served one at a time.
func (h *SQLHost) HandleRequest(requestPayload []byte) ([]byte, error) {
	var req types.SQLRequest
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return marshalErrorResponse(types.KindProtocol, fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var responseData interface{}
	var opErr error

	switch req.Command {
	case types.CmdExec:
		responseData, opErr = h.handleExec(&req)
	case types.CmdPrepare:
		responseData, opErr = h.handlePrepare(&req)
	case types.CmdStep:
		responseData, opErr = h.handleStep(&req)
	case types.CmdGet:
		responseData, opErr = h.handleGet(&req)
	case types.CmdRow:
		responseData, opErr = h.handleRow(&req)
	case types.CmdNext:
		responseData, opErr = h.handleNext(&req)
	case types.CmdReset:
		responseData, opErr = h.handleReset(&req)
	case types.CmdFinalize:
		responseData, opErr = h.handleFinalize(&req)
	case types.CmdChanges:
		responseData, opErr = h.lastChanges()
	case types.CmdCloseConn:
		responseData, opErr = h.handleCloseConn(&req)
	default:
		opErr = protocolError{fmt.Sprintf("unknown command: %s", req.Command)}
	}

	if opErr != nil {
		h.logger.Debug("sql request failed", "command", req.Command, "error", opErr)
		return marshalErrorResponse(ErrorKind(opErr), opErr.Error())
	}

	return json.Marshal(responseData)
}

type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

// ErrorKind classifies err into one of the types.Kind constants.
func ErrorKind(err error) string {
	var (
		openErr    *database.OpenError
		prepareErr *database.PrepareError
		queryErr   *database.QueryError
		stepErr    *database.StepError
	)
	switch {
	case errors.Is(err, database.ErrUseAfterClose):
		return types.KindClosed
	case errors.As(err, &openErr):
		return types.KindOpen
	case errors.As(err, &prepareErr):
		return types.KindPrepare
	case errors.As(err, &queryErr):
		return types.KindQuery
	case errors.As(err, &stepErr):
		return types.KindStep
	case errors.Is(err, database.ErrUseAfterFinalize):
		return types.KindFinalized
	case errors.Is(err, database.ErrNoCurrentRow):
		return types.KindNoCurrentRow
	case errors.Is(err, database.ErrUnknownColumn):
		return types.KindUnknownColumn
	case errors.Is(err, database.ErrIndexOutOfRange):
		return types.KindIndexRange
	case errors.Is(err, database.ErrIntegerOverflow):
		return types.KindOverflow
	default:
		return types.KindProtocol
	}
}

func marshalErrorResponse(kind, errMsg string) ([]byte, error) {
	resp := types.GeneralResponse{ErrorInfo: types.ErrorInfo{Error: errMsg, Kind: kind}}
	payload, err := json.Marshal(resp)
	if err != nil {
		// Can't even marshal the error response.
		return []byte(fmt.Sprintf(`{"error":"critical: failed to marshal error response","kind":%q}`, kind)),
			fmt.Errorf("failed to marshal error response for '%s': %w", errMsg, err)
	}
	// The operational error is packaged in the payload.
	return payload, nil
}

func (h *SQLHost) stmt(req *types.SQLRequest) (*database.Stmt, error) {
	stmt, ok := h.stmts[req.StmtID]
	if !ok {
		return nil, protocolError{fmt.Sprintf("statement not found: %s", req.StmtID)}
	}
	return stmt, nil
}

func (h *SQLHost) handleExec(req *types.SQLRequest) (types.ExecResponse, error) {
	if err := h.conn.Exec(req.SQL); err != nil {
		return types.ExecResponse{}, err
	}
	return h.lastChanges()
}

// lastChanges reports the rows changed by the most recent statement and the
// last inserted rowid.
func (h *SQLHost) lastChanges() (types.ExecResponse, error) {
	stmt, err := h.conn.Prepare("SELECT changes(), last_insert_rowid()")
	if err != nil {
		return types.ExecResponse{}, err
	}
	defer stmt.Finalize()
	if _, err := stmt.Step(); err != nil {
		return types.ExecResponse{}, err
	}
	row, err := stmt.Row()
	if err != nil {
		return types.ExecResponse{}, err
	}
	var resp types.ExecResponse
	if v, err := row.Index(0); err == nil {
		resp.RowsAffected, _ = v.Int64()
	}
	if v, err := row.Index(1); err == nil {
		resp.LastInsertID, _ = v.Int64()
	}
	return resp, nil
}

func (h *SQLHost) handlePrepare(req *types.SQLRequest) (types.GeneralResponse, error) {
	stmt, err := h.conn.Prepare(req.SQL)
	if err != nil {
		return types.GeneralResponse{}, err
	}

	stmtID := uuid.NewString()
	h.stmts[stmtID] = stmt
	return types.GeneralResponse{StmtID: stmtID, Columns: stmt.Columns()}, nil
}

func (h *SQLHost) handleStep(req *types.SQLRequest) (types.StepResponse, error) {
	stmt, err := h.stmt(req)
	if err != nil {
		return types.StepResponse{}, err
	}
	ok, err := stmt.Step()
	if err != nil {
		return types.StepResponse{}, err
	}
	return types.StepResponse{HasRow: ok}, nil
}

func (h *SQLHost) handleGet(req *types.SQLRequest) (types.ValueResponse, error) {
	stmt, err := h.stmt(req)
	if err != nil {
		return types.ValueResponse{}, err
	}
	var v column.Value
	if req.Name != "" {
		v, err = stmt.Lookup(req.Name)
	} else {
		v, err = stmt.Column(req.Column)
	}
	if err != nil {
		return types.ValueResponse{}, err
	}
	return types.ValueResponse{Value: types.FromColumn(v)}, nil
}

func (h *SQLHost) handleRow(req *types.SQLRequest) (types.RowResponse, error) {
	stmt, err := h.stmt(req)
	if err != nil {
		return types.RowResponse{}, err
	}
	row, err := stmt.Row()
	if err != nil {
		return types.RowResponse{}, err
	}
	return types.RowResponse{Row: types.FromRow(row.Values())}, nil
}

// handleNext is step followed by row, saving a round trip per row.
func (h *SQLHost) handleNext(req *types.SQLRequest) (types.RowResponse, error) {
	stmt, err := h.stmt(req)
	if err != nil {
		return types.RowResponse{}, err
	}
	ok, err := stmt.Step()
	if err != nil {
		return types.RowResponse{}, err
	}
	if !ok {
		return types.RowResponse{Done: true}, nil
	}
	row, err := stmt.Row()
	if err != nil {
		return types.RowResponse{}, err
	}
	return types.RowResponse{Row: types.FromRow(row.Values())}, nil
}

func (h *SQLHost) handleReset(req *types.SQLRequest) (types.GeneralResponse, error) {
	stmt, err := h.stmt(req)
	if err != nil {
		return types.GeneralResponse{}, err
	}
	if err := stmt.Reset(); err != nil {
		return types.GeneralResponse{}, err
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleFinalize(req *types.SQLRequest) (types.GeneralResponse, error) {
	stmt, exists := h.stmts[req.StmtID]
	if !exists {
		// Finalizing twice is not an error.
		return types.GeneralResponse{}, nil
	}
	delete(h.stmts, req.StmtID)

	if err := stmt.Finalize(); err != nil {
		return types.GeneralResponse{}, err
	}
	return types.GeneralResponse{}, nil
}

func (h *SQLHost) handleCloseConn(req *types.SQLRequest) (types.GeneralResponse, error) {
	// Finalize every statement this host prepared. The connection itself is
	// managed by whoever created the host.
	for id, stmt := range h.stmts {
		_ = stmt.Finalize()
		delete(h.stmts, id)
	}
	return types.GeneralResponse{}, nil
}

// OpenStatements returns the number of statements the host is holding.
func (h *SQLHost) OpenStatements() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stmts)
}
