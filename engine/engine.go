// Package engine defines the narrow column-access contract between the cursor
// layer and the relational engine that actually executes SQL, and provides the
// SQLite implementation of that contract.
//
// Text and blob columns of the current row are returned as slices into memory
// the cursor controls. A cursor that ReusesBuffer rewrites that memory on the
// next Step; callers that need a column past that point must copy it, or ask
// the cursor to Detach the buffer so that the next Step writes somewhere else.
// A cursor that does not reuse its buffer hands out memory that is never
// written again.
package engine

import "context"

// Type is the storage class of a column value in the current row.
type Type uint8

const (
	Null Type = iota
	Integer
	Float
	Text
	Blob
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	case Blob:
		return "blob"
	default:
		return "unknown"
	}
}

// Column is one column of the current row as the engine produced it.
//
// Bytes aliases the cursor's row memory for Text and Blob columns and must not
// be modified. When the cursor reuses its buffer it is only valid until the
// cursor moves (Step, Reset, Close) unless the buffer was detached first.
type Column struct {
	Type  Type
	Int   int64
	Float float64
	Bytes []byte

	// Wide marks an integer that does not fit in int64. Its magnitude is held
	// in Uint and Int is meaningless.
	Wide bool
	Uint uint64
}

// Conn is a handle to one open engine connection.
type Conn interface {
	// Exec runs SQL that produces no row set. Several statements separated by
	// semicolons are allowed.
	Exec(ctx context.Context, query string) error

	// Prepare compiles a single statement into a cursor positioned before the
	// first row.
	Prepare(ctx context.Context, query string) (Cursor, error)

	Close() error
}

// Cursor is a compiled statement and its position in the result set.
// A Cursor is not safe for concurrent use.
type Cursor interface {
	// Columns returns the result column names. The slice is fixed at prepare
	// time and must not be modified.
	Columns() []string

	// Step advances to the next row. It returns false once the result set is
	// exhausted.
	Step() (bool, error)

	// Column returns column i of the current row. i must be in range and the
	// last Step must have returned true.
	Column(i int) Column

	// Reset rewinds the cursor so that the next Step re-executes the
	// statement from the start.
	Reset() error

	// ReusesBuffer reports whether Step rewrites the memory behind the
	// Bytes of earlier rows.
	ReusesBuffer() bool

	// Detach gives up ownership of the current row buffer. Slices already
	// handed out stay valid and are never written again; the next Step
	// allocates a fresh buffer.
	Detach()

	Close() error
}
