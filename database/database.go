package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tomyedwab/mobetta/engine"
)

// Memory is the path that opens a private in-memory database.
const Memory = engine.Memory

// Conn is an open database connection. It tracks the statements prepared on
// it so that Close can finalize them.
type Conn struct {
	path     string
	encoding string
	logger   *slog.Logger
	minAlias int

	mu     sync.Mutex
	eng    engine.Conn
	stmts  map[string]*Stmt
	closed bool
}

// Open opens the SQLite database at path, creating it if needed. Pass Memory
// for a private in-memory database.
func Open(path string, opts ...Option) (*Conn, error) {
	o := buildOptions(opts)
	enc, err := engine.NormalizeEncoding(o.encoding)
	if err != nil {
		return nil, &OpenError{Path: path, Message: err.Error(), Err: err}
	}
	eng, err := engine.OpenSQLite(path, engine.SQLiteConfig{Encoding: enc})
	if err != nil {
		return nil, &OpenError{Path: path, Message: engine.Diagnostic(err), Err: err}
	}
	o.logger.Debug("database opened", "path", path, "encoding", enc)
	o.encoding = enc
	return newConn(path, eng, o), nil
}

// NewConn wraps an already open engine connection. The Conn takes ownership of
// eng and closes it on Close.
func NewConn(path string, eng engine.Conn, opts ...Option) *Conn {
	return newConn(path, eng, buildOptions(opts))
}

func newConn(path string, eng engine.Conn, o options) *Conn {
	enc := o.encoding
	if n, err := engine.NormalizeEncoding(enc); err == nil {
		enc = n
	}
	return &Conn{
		path:     path,
		encoding: enc,
		logger:   o.logger.With("db", path),
		minAlias: o.minAliasLen,
		eng:      eng,
		stmts:    make(map[string]*Stmt),
	}
}

// Path returns the path the connection was opened with.
func (c *Conn) Path() string { return c.path }

// Exec runs one or more SQL statements that produce no rows.
func (c *Conn) Exec(query string) error {
	return c.ExecContext(context.Background(), query)
}

// ExecContext is Exec with a context.
func (c *Conn) ExecContext(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &QueryError{SQL: query, Message: ErrUseAfterClose.Error(), Err: ErrUseAfterClose}
	}
	if err := c.eng.Exec(ctx, query); err != nil {
		return &QueryError{SQL: query, Message: engine.Diagnostic(err), Err: err}
	}
	return nil
}

// Prepare compiles a single SQL statement. The returned Stmt is positioned
// before the first row and must be finalized by the caller, or by Close.
func (c *Conn) Prepare(query string) (*Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext is Prepare with a context. The context only bounds the
// compilation; stepping is not interruptible.
func (c *Conn) PrepareContext(ctx context.Context, query string) (*Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &PrepareError{SQL: query, Message: ErrUseAfterClose.Error(), Err: ErrUseAfterClose}
	}
	cur, err := c.eng.Prepare(ctx, query)
	if err != nil {
		return nil, &PrepareError{SQL: query, Message: engine.Diagnostic(err), Err: err}
	}
	s := newStmt(c, uuid.NewString(), query, cur)
	c.stmts[s.id] = s
	c.logger.Debug("statement prepared", "stmt", s.id, "columns", len(s.cols.names))
	return s, nil
}

// OpenStatements returns the number of statements prepared on the connection
// that have not been finalized.
func (c *Conn) OpenStatements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// Encoding reports the text encoding of the open database as SQLite names it,
// for example "UTF-8" or "UTF-16le".
func (c *Conn) Encoding() (string, error) {
	s, err := c.Prepare("PRAGMA encoding")
	if err != nil {
		return "", err
	}
	defer s.Finalize()
	ok, err := s.Step()
	if err != nil {
		return "", err
	}
	if !ok {
		return c.encoding, nil
	}
	v, err := s.Column(0)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Close finalizes every statement still open on the connection and closes it.
// Those statements report ErrUseAfterClose from then on. Closing twice is a
// no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if n := len(c.stmts); n > 0 {
		c.logger.Debug("finalizing open statements", "count", n)
	}
	for id, s := range c.stmts {
		s.closedByConn = true
		s.release()
		delete(c.stmts, id)
	}
	err := c.eng.Close()
	c.logger.Debug("database closed")
	return err
}

// forget drops a finalized statement from the connection's table.
func (c *Conn) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stmts, id)
}
