package engine

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"unsafe"

	"github.com/mattn/go-sqlite3"
)

// Memory is the path that opens a private in-memory database.
const Memory = ":memory:"

var encodings = map[string]string{
	"":         "UTF-8",
	"utf8":     "UTF-8",
	"utf-8":    "UTF-8",
	"utf16":    "UTF-16",
	"utf-16":   "UTF-16",
	"utf-16le": "UTF-16le",
	"utf-16be": "UTF-16be",
}

// NormalizeEncoding maps a user supplied encoding name to the spelling SQLite
// accepts in PRAGMA encoding. The empty string means UTF-8.
func NormalizeEncoding(name string) (string, error) {
	enc, ok := encodings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unsupported text encoding %q", name)
	}
	return enc, nil
}

// SQLiteConfig controls how OpenSQLite sets up a connection.
type SQLiteConfig struct {
	// Encoding is the text encoding requested for the database. SQLite only
	// honours it before the database has any content; an existing file keeps
	// the encoding it was created with.
	Encoding string
}

// SQLiteConn is an engine.Conn backed by a single go-sqlite3 connection.
type SQLiteConn struct {
	conn *sqlite3.SQLiteConn
}

var _ Conn = (*SQLiteConn)(nil)

// OpenSQLite opens the database at path (or Memory). The schema is read once
// before returning so that a corrupt or foreign file fails here rather than on
// the first query.
func OpenSQLite(path string, cfg SQLiteConfig) (*SQLiteConn, error) {
	enc, err := NormalizeEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	drv := &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			_, err := c.Exec(fmt.Sprintf("PRAGMA encoding = '%s'", enc), nil)
			return err
		},
	}
	dc, err := drv.Open(path)
	if err != nil {
		return nil, err
	}
	conn, ok := dc.(*sqlite3.SQLiteConn)
	if !ok {
		_ = dc.Close()
		return nil, fmt.Errorf("unexpected driver connection type %T", dc)
	}

	if _, err := conn.Exec("SELECT count(*) FROM sqlite_master", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLiteConn{conn: conn}, nil
}

// Exec implements Conn.
func (c *SQLiteConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query, nil)
	return err
}

// ErrEmptyStatement is returned by Prepare for SQL that holds nothing but
// whitespace, comments and semicolons.
var ErrEmptyStatement = errors.New("statement contains no SQL")

// Prepare implements Conn. The returned cursor already knows its column names
// but has not executed anything yet. Leading comments and empty statements are
// skipped, since SQLite compiles them to no statement at all.
func (c *SQLiteConn) Prepare(ctx context.Context, query string) (Cursor, error) {
	off := statementStart(query)
	if off == len(query) {
		return nil, ErrEmptyStatement
	}
	st, err := c.conn.PrepareContext(ctx, query[off:])
	if err != nil {
		return nil, err
	}
	stmt, ok := st.(*sqlite3.SQLiteStmt)
	if !ok {
		_ = st.Close()
		return nil, fmt.Errorf("unexpected driver statement type %T", st)
	}

	cur := &sqliteCursor{stmt: stmt}
	if err := cur.open(); err != nil {
		_ = stmt.Close()
		return nil, err
	}
	cur.columns = append([]string(nil), cur.rows.Columns()...)
	cur.dest = make([]driver.Value, len(cur.columns))
	cur.row = make([]Column, len(cur.columns))
	return cur, nil
}

// statementStart returns the offset of the first token of query, past
// whitespace, comments and semicolons. It returns len(query) when no token is
// left. An unterminated block comment runs to the end of the input, as it does
// in SQLite.
func statementStart(query string) int {
	i := 0
	for i < len(query) {
		switch c := query[i]; {
		case c == ';' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				return len(query)
			}
			i += end + 1
		case strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return len(query)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// Close implements Conn. Cursors must be closed first; SQLite keeps the
// connection alive as a zombie until they are.
func (c *SQLiteConn) Close() error {
	return c.conn.Close()
}

// sqliteCursor hands out the values go-sqlite3 decoded for the current row.
// go-sqlite3 allocates every text and blob value afresh per row, so the
// cursor's Bytes alias memory that no later Step writes.
type sqliteCursor struct {
	stmt    *sqlite3.SQLiteStmt
	rows    *sqlite3.SQLiteRows
	columns []string
	dest    []driver.Value
	row     []Column
	closed  bool
}

func (c *sqliteCursor) open() error {
	r, err := c.stmt.QueryContext(context.Background(), nil)
	if err != nil {
		return err
	}
	rows, ok := r.(*sqlite3.SQLiteRows)
	if !ok {
		_ = r.Close()
		return fmt.Errorf("unexpected driver rows type %T", r)
	}
	if err := plainDeclTypes(rows, len(rows.Columns())); err != nil {
		_ = rows.Close()
		return err
	}
	c.rows = rows
	return nil
}

var declTypesType = reflect.TypeOf([]string(nil))

// plainDeclTypes fills go-sqlite3's declared type cache with empty types
// before the first row is read, so that values are decoded by storage class
// alone. Left to itself go-sqlite3 turns DATE, DATETIME and TIMESTAMP values
// into time.Time (the zero time when text does not parse) and BOOLEAN
// integers into bool.
func plainDeclTypes(rows *sqlite3.SQLiteRows, n int) error {
	f := reflect.ValueOf(rows).Elem().FieldByName("decltype")
	if !f.IsValid() || f.Type() != declTypesType {
		return errors.New("go-sqlite3 rows have no declared type cache")
	}
	reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem().Set(reflect.ValueOf(make([]string, n)))
	return nil
}

func (c *sqliteCursor) Columns() []string { return c.columns }

func (c *sqliteCursor) Step() (bool, error) {
	if c.closed || c.rows == nil {
		return false, errors.New("cursor is closed")
	}
	err := c.rows.Next(c.dest)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.load()
	return true, nil
}

// load turns the driver values of the current row into columns. Text aliases
// the string go-sqlite3 built for it; nothing is copied.
func (c *sqliteCursor) load() {
	for i, v := range c.dest {
		col := Column{}
		switch v := v.(type) {
		case nil:
			col.Type = Null
		case int64:
			col.Type = Integer
			col.Int = v
		case uint64:
			col.Type = Integer
			if v > math.MaxInt64 {
				col.Wide = true
				col.Uint = v
			} else {
				col.Int = int64(v)
			}
		case float64:
			col.Type = Float
			col.Float = v
		case string:
			col.Type = Text
			col.Bytes = unsafe.Slice(unsafe.StringData(v), len(v))
		case []byte:
			col.Type = Blob
			col.Bytes = v
		default:
			col.Type = Text
			col.Bytes = fmt.Append(nil, v)
		}
		c.row[i] = col
		c.dest[i] = nil
	}
}

func (c *sqliteCursor) Column(i int) Column { return c.row[i] }

func (c *sqliteCursor) Reset() error {
	if c.closed {
		return errors.New("cursor is closed")
	}
	clear(c.row)
	// Closing the rows resets the statement. sqlite3_reset repeats the error
	// of a failed step, which Step has already reported.
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	return c.open()
}

func (c *sqliteCursor) ReusesBuffer() bool { return false }

// Detach is a no-op; no row memory is ever reused.
func (c *sqliteCursor) Detach() {}

func (c *sqliteCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	return c.stmt.Close()
}

// Diagnostic returns the engine's own message for err, or err.Error() when err
// did not come from SQLite.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}

// Code returns the primary SQLite result code carried by err.
func Code(err error) (sqlite3.ErrNo, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
