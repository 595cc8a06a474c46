package export

import (
	"bufio"
	"io"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/tomyedwab/mobetta/column"
	"github.com/tomyedwab/mobetta/database"
)

// CSVEncoder writes RFC 4180 CSV. Fields are assembled in a reused scratch
// buffer, so text columns go from the row buffer to the output without an
// intermediate string.
type CSVEncoder struct {
	buf     *bufio.Writer
	scratch []byte
	field   []byte
	err     error
}

// NewCSVEncoder creates a new CSV encoder that writes to w through a 64KB
// buffer.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{buf: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader writes the CSV header row.
func (e *CSVEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.scratch = e.scratch[:0]
	for i, name := range columns {
		if i > 0 {
			e.scratch = append(e.scratch, ',')
		}
		e.scratch = appendField(e.scratch, []byte(name))
	}
	return e.writeLine()
}

// WriteRow writes a single row.
func (e *CSVEncoder) WriteRow(row database.Row) error {
	if e.err != nil {
		return e.err
	}
	e.scratch = e.scratch[:0]
	for i, v := range row.Values() {
		if i > 0 {
			e.scratch = append(e.scratch, ',')
		}
		e.field = appendValue(e.field[:0], v)
		e.scratch = appendField(e.scratch, e.field)
	}
	return e.writeLine()
}

func (e *CSVEncoder) writeLine() error {
	e.scratch = append(e.scratch, '\r', '\n')
	if _, err := e.buf.Write(e.scratch); err != nil {
		e.err = err
	}
	return e.err
}

// Flush ensures all data is written to the underlying writer.
func (e *CSVEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.buf.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

// Error returns the first write error.
func (e *CSVEncoder) Error() error {
	return e.err
}

// Close flushes and satisfies io.Closer.
func (e *CSVEncoder) Close() error {
	return e.Flush()
}

// appendValue renders v as CSV cell text. Null is written as NULL and blobs as
// their raw bytes.
func appendValue(dst []byte, v column.Value) []byte {
	switch v.Kind() {
	case column.KindInteger:
		n, _ := v.Int64()
		return strconv.AppendInt(dst, n, 10)
	case column.KindReal:
		f, _ := v.Float64()
		return strconv.AppendFloat(dst, f, 'f', -1, 64)
	case column.KindText:
		s, _ := v.Text()
		start := len(dst)
		return guardFormula(s.AppendTo(dst), start)
	case column.KindBlob:
		b, _ := v.Bytes()
		return append(dst, b...)
	default:
		return append(dst, "NULL"...)
	}
}

// guardFormula prefixes the text in s[start:] with a single quote when a
// spreadsheet would evaluate it as a formula.
func guardFormula(s []byte, start int) []byte {
	if len(s) == start {
		return s
	}
	switch s[start] {
	case '=', '+', '-', '@':
		s = append(s, 0)
		copy(s[start+1:], s[start:])
		s[start] = '\''
	}
	return s
}

// appendField appends f to dst, quoting it when it holds a separator, a quote
// or a line break, when it starts with a Unicode space, or when it is \. alone.
// These are the fields encoding/csv quotes too.
func appendField(dst, f []byte) []byte {
	if !needsQuotes(f) {
		return append(dst, f...)
	}
	dst = append(dst, '"')
	for _, c := range f {
		if c == '"' {
			dst = append(dst, '"')
		}
		dst = append(dst, c)
	}
	return append(dst, '"')
}

func needsQuotes(f []byte) bool {
	if len(f) == 0 {
		return false
	}
	if string(f) == `\.` {
		return true
	}
	if r, _ := utf8.DecodeRune(f); unicode.IsSpace(r) {
		return true
	}
	for _, c := range f {
		switch c {
		case ',', '"', '\r', '\n':
			return true
		}
	}
	return false
}
