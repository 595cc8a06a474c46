package types

import (
	"github.com/tomyedwab/mobetta/column"
)

// --- JSON structures for host communication ---

// Commands understood by the host.
const (
	CmdExec      = "exec"
	CmdPrepare   = "prepare"
	CmdStep      = "step"
	CmdGet       = "get"
	CmdRow       = "row"
	CmdNext      = "next"
	CmdReset     = "reset"
	CmdFinalize  = "finalize"
	CmdChanges   = "changes"
	CmdCloseConn = "close_conn"
)

// Error kinds carried in responses, so that clients can tell failures apart
// without parsing messages.
const (
	KindOpen          = "open"
	KindPrepare       = "prepare"
	KindQuery         = "query"
	KindStep          = "step"
	KindNoCurrentRow  = "no_current_row"
	KindUnknownColumn = "unknown_column"
	KindIndexRange    = "index_out_of_range"
	KindFinalized     = "finalized"
	KindClosed        = "closed"
	KindOverflow      = "integer_overflow"
	KindProtocol      = "protocol"
)

// SQLRequest defines the structure for requests sent to the host.
type SQLRequest struct {
	Command string `json:"command"`
	SQL     string `json:"sql,omitempty"`
	StmtID  string `json:"stmt_id,omitempty"`

	// Column selects a column for 'get' by index. Name is used instead when
	// it is non-empty.
	Column int    `json:"column,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ErrorInfo is embedded in every response. Kind is one of the Kind constants.
type ErrorInfo struct {
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// GeneralResponse is used for commands that return no row data (prepare,
// reset, finalize, close_conn).
type GeneralResponse struct {
	StmtID  string   `json:"stmt_id,omitempty"` // For 'prepare' command, host returns a statement ID
	Columns []string `json:"columns,omitempty"` // For 'prepare', the result column names
	ErrorInfo
}

// ExecResponse defines the structure for responses from 'exec' and 'changes'
// commands.
type ExecResponse struct {
	LastInsertID int64 `json:"last_insert_id"`
	RowsAffected int64 `json:"rows_affected"`
	ErrorInfo
}

// StepResponse is the reply to 'step'.
type StepResponse struct {
	HasRow bool `json:"has_row"`
	ErrorInfo
}

// ValueResponse is the reply to 'get'.
type ValueResponse struct {
	Value Value `json:"value"`
	ErrorInfo
}

// RowResponse is the reply to 'row' and 'next'. For 'next', Done is set
// instead of Row once the statement has no more rows.
type RowResponse struct {
	Done bool    `json:"done,omitempty"`
	Row  []Value `json:"row,omitempty"`
	ErrorInfo
}

// Value is a column value on the wire. Blob is base64 encoded by
// encoding/json.
type Value struct {
	Kind string  `json:"kind"`
	Int  int64   `json:"int,omitempty"`
	Real float64 `json:"real,omitempty"`
	Text string  `json:"text,omitempty"`
	Blob []byte  `json:"blob,omitempty"`
}

// FromColumn converts v to its wire form. Text is copied out of the row
// buffer.
func FromColumn(v column.Value) Value {
	out := Value{Kind: v.Kind().String()}
	switch v.Kind() {
	case column.KindInteger:
		out.Int, _ = v.Int64()
	case column.KindReal:
		out.Real, _ = v.Float64()
	case column.KindText:
		s, _ := v.Text()
		out.Text = s.String()
	case column.KindBlob:
		out.Blob, _ = v.Bytes()
	}
	return out
}

// FromRow converts every value of a row.
func FromRow(values []column.Value) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = FromColumn(v)
	}
	return out
}

// Interface returns the value as nil, int64, float64, string or []byte, the
// set of types database/sql/driver accepts.
func (v Value) Interface() any {
	switch v.Kind {
	case column.KindInteger.String():
		return v.Int
	case column.KindReal.String():
		return v.Real
	case column.KindText.String():
		return v.Text
	case column.KindBlob.String():
		if v.Blob == nil {
			return []byte{}
		}
		return v.Blob
	default:
		return nil
	}
}

// HostError is an error reported by the host.
type HostError struct {
	Command string
	Kind    string
	Message string
}

func (e *HostError) Error() string {
	return "host " + e.Command + " error: " + e.Message
}
