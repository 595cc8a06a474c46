package database

import (
	"errors"
	"fmt"

	"github.com/tomyedwab/mobetta/column"
	"github.com/tomyedwab/mobetta/engine"
)

var (
	// ErrNoCurrentRow is returned when a column is read while the statement
	// is not positioned on a row.
	ErrNoCurrentRow = errors.New("no current row")

	// ErrUnknownColumn is returned for a column name that is not part of the
	// statement's result.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrIndexOutOfRange is returned for a column index outside
	// [0, ColumnCount()).
	ErrIndexOutOfRange = errors.New("column index out of range")

	// ErrUseAfterFinalize is returned by every operation on a finalized
	// statement except Finalize itself.
	ErrUseAfterFinalize = errors.New("statement is finalized")

	// ErrUseAfterClose is returned by operations on a closed connection, and
	// on statements that were still open when their connection was closed.
	ErrUseAfterClose = errors.New("connection is closed")

	// ErrEmptyStatement is wrapped by the PrepareError for SQL that holds
	// only whitespace, comments and semicolons.
	ErrEmptyStatement = engine.ErrEmptyStatement

	// ErrIntegerOverflow is returned when the engine produced an integer that
	// does not fit in int64.
	ErrIntegerOverflow = column.ErrIntegerOverflow
)

// OpenError reports a failure to open a database file.
type OpenError struct {
	Path    string
	Message string // engine diagnostic, verbatim
	Err     error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %s", e.Path, e.Message)
}

func (e *OpenError) Unwrap() error { return e.Err }

// PrepareError reports a statement that could not be compiled.
type PrepareError struct {
	SQL     string
	Message string // engine diagnostic, verbatim
	Err     error
}

func (e *PrepareError) Error() string {
	return "prepare: " + e.Message
}

func (e *PrepareError) Unwrap() error { return e.Err }

// QueryError reports a failure of Conn.Exec.
type QueryError struct {
	SQL     string
	Message string // engine diagnostic, verbatim
	Err     error
}

func (e *QueryError) Error() string {
	return "exec: " + e.Message
}

func (e *QueryError) Unwrap() error { return e.Err }

// StepError reports an execution failure while advancing or rewinding a
// statement. The statement is left in StateDone; Reset starts it over.
type StepError struct {
	SQL     string
	Message string // engine diagnostic, verbatim
	Err     error
}

func (e *StepError) Error() string {
	return "step: " + e.Message
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorCode returns the SQLite result code carried by err, if any.
func ErrorCode(err error) (int, bool) {
	code, ok := engine.Code(err)
	return int(code), ok
}
