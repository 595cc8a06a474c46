package database

import (
	"fmt"
	"log/slog"

	"github.com/tomyedwab/mobetta/column"
	"github.com/tomyedwab/mobetta/engine"
	"github.com/tomyedwab/mobetta/extstring"
)

// State is the position of a Stmt in its lifecycle.
type State uint8

const (
	// StateReady means the statement is compiled and the next Step starts
	// execution from the beginning.
	StateReady State = iota
	// StateHasRow means the last Step produced a row that can be read.
	StateHasRow
	// StateDone means the result set is exhausted or execution failed. Step
	// keeps returning false until Reset.
	StateDone
	// StateFinalized is terminal.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateHasRow:
		return "has-row"
	case StateDone:
		return "done"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// columnMap resolves column names. With duplicate names the first column wins.
type columnMap struct {
	names []string
	index map[string]int
}

func newColumnMap(names []string) *columnMap {
	m := &columnMap{names: names, index: make(map[string]int, len(names))}
	for i, name := range names {
		if _, ok := m.index[name]; !ok {
			m.index[name] = i
		}
	}
	return m
}

func (m *columnMap) lookup(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return i, nil
}

func (m *columnMap) check(i int) error {
	if i < 0 || i >= len(m.names) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(m.names))
	}
	return nil
}

// Stmt is a prepared statement and its cursor over the result set.
//
// Values read from the current row stay valid after the statement moves on;
// see the package documentation. A Stmt must not be used from more than one
// goroutine at a time.
type Stmt struct {
	id     string
	conn   *Conn
	sql    string
	cur    engine.Cursor
	binder *extstring.Binder
	cols   *columnMap
	logger *slog.Logger

	state        State
	closedByConn bool

	// values caches the decoded columns of the current row.
	values  []column.Value
	decoded []bool

	iter *Iterator
}

func newStmt(c *Conn, id, query string, cur engine.Cursor) *Stmt {
	logger := c.logger.With("stmt", id)
	names := cur.Columns()
	return &Stmt{
		id:   id,
		conn: c,
		sql:  query,
		cur:  cur,
		binder: extstring.NewBinder(cur, extstring.Options{
			MinAliasLen: c.minAlias,
			Stable:      !cur.ReusesBuffer(),
			Logger:      logger,
		}),
		cols:    newColumnMap(names),
		logger:  logger,
		values:  make([]column.Value, len(names)),
		decoded: make([]bool, len(names)),
	}
}

// SQL returns the statement text as it was prepared.
func (s *Stmt) SQL() string { return s.sql }

// State returns the current lifecycle state.
func (s *Stmt) State() State { return s.state }

// Columns returns the result column names in order. The slice must not be
// modified.
func (s *Stmt) Columns() []string { return s.cols.names }

// ColumnCount returns the number of result columns.
func (s *Stmt) ColumnCount() int { return len(s.cols.names) }

// Generation returns the number of the row the statement is serving. It grows
// every time the statement leaves a row.
func (s *Stmt) Generation() uint64 { return s.binder.Generation() }

// AliasStats returns the text aliasing counters of the statement.
func (s *Stmt) AliasStats() extstring.Stats { return s.binder.Stats() }

// Step advances to the next row and reports whether there is one. Once the
// result set is exhausted Step keeps returning false without running the
// statement again; call Reset to start over. An execution failure is returned
// as a *StepError and leaves the statement in StateDone.
func (s *Stmt) Step() (bool, error) {
	if err := s.usable(); err != nil {
		return false, err
	}
	if s.state == StateDone {
		return false, nil
	}
	s.leaveRow()
	ok, err := s.cur.Step()
	if err != nil {
		s.state = StateDone
		s.logger.Debug("step failed", "error", err)
		return false, &StepError{SQL: s.sql, Message: engine.Diagnostic(err), Err: err}
	}
	if !ok {
		s.state = StateDone
		return false, nil
	}
	s.state = StateHasRow
	return true, nil
}

// Reset rewinds the statement so that the next Step runs it from the
// beginning. It is allowed in any state but StateFinalized, including after a
// failed Step.
func (s *Stmt) Reset() error {
	if err := s.usable(); err != nil {
		return err
	}
	s.leaveRow()
	if s.iter != nil {
		s.iter.rewind()
	}
	if err := s.cur.Reset(); err != nil {
		s.state = StateDone
		return &StepError{SQL: s.sql, Message: engine.Diagnostic(err), Err: err}
	}
	s.state = StateReady
	return nil
}

// Finalize releases the compiled statement. Calling it again, or after the
// connection was closed, is a no-op.
func (s *Stmt) Finalize() error {
	if s.state == StateFinalized {
		return nil
	}
	err := s.release()
	s.conn.forget(s.id)
	return err
}

// release moves the statement to StateFinalized without touching the
// connection's registry.
func (s *Stmt) release() error {
	s.leaveRow()
	s.state = StateFinalized
	s.iter = nil
	if err := s.cur.Close(); err != nil {
		s.logger.Debug("closing cursor failed", "error", err)
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

// leaveRow makes every value read from the current row independent of the row
// buffer and forgets the cached columns.
func (s *Stmt) leaveRow() {
	if s.state != StateHasRow {
		return
	}
	s.binder.Invalidate()
	clear(s.values)
	clear(s.decoded)
}

func (s *Stmt) usable() error {
	if s.state != StateFinalized {
		return nil
	}
	if s.closedByConn {
		return ErrUseAfterClose
	}
	return ErrUseAfterFinalize
}

func (s *Stmt) readable() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.state != StateHasRow {
		return ErrNoCurrentRow
	}
	return nil
}

// Column returns column i of the current row. Text values may alias the row
// buffer; reading the same column twice returns the same value.
func (s *Stmt) Column(i int) (column.Value, error) {
	if err := s.readable(); err != nil {
		return column.Value{}, err
	}
	if err := s.cols.check(i); err != nil {
		return column.Value{}, err
	}
	return s.decode(i)
}

// Lookup returns the column of the current row called name. With duplicate
// column names the first one is returned.
func (s *Stmt) Lookup(name string) (column.Value, error) {
	if err := s.readable(); err != nil {
		return column.Value{}, err
	}
	i, err := s.cols.lookup(name)
	if err != nil {
		return column.Value{}, err
	}
	return s.decode(i)
}

// Get reads a column of the current row by index (an int) or by name (a
// string).
func (s *Stmt) Get(key any) (column.Value, error) {
	switch k := key.(type) {
	case string:
		return s.Lookup(k)
	case int:
		return s.Column(k)
	case int64:
		return s.Column(int(k))
	case int32:
		return s.Column(int(k))
	case uint:
		return s.Column(int(k))
	default:
		if err := s.readable(); err != nil {
			return column.Value{}, err
		}
		return column.Value{}, fmt.Errorf("unsupported column key type %T", key)
	}
}

// Row returns every column of the current row.
func (s *Stmt) Row() (Row, error) {
	if err := s.readable(); err != nil {
		return Row{}, err
	}
	values := make([]column.Value, len(s.values))
	for i := range values {
		v, err := s.decode(i)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return Row{cols: s.cols, values: values}, nil
}

func (s *Stmt) decode(i int) (column.Value, error) {
	if s.decoded[i] {
		return s.values[i], nil
	}
	v, err := column.Decode(s.cur.Column(i), s.binder)
	if err != nil {
		return column.Value{}, fmt.Errorf("column %q: %w", s.cols.names[i], err)
	}
	s.values[i] = v
	s.decoded[i] = true
	return v, nil
}
