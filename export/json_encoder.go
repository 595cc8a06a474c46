package export

import (
	"bufio"
	"io"

	"github.com/tomyedwab/mobetta/database"
)

// JSONEncoder implements RowEncoder for JSON Lines. Each row is an object on
// its own line with keys in column order.
type JSONEncoder struct {
	w   *bufio.Writer
	err error
}

// NewJSONEncoder creates a new JSON Lines encoder.
func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader is a no-op; every row carries its own column names.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	return e.err
}

func (e *JSONEncoder) WriteRow(row database.Row) error {
	if e.err != nil {
		return e.err
	}

	data, err := row.MarshalJSON()
	if err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write(data); err != nil {
		e.err = err
		return err
	}
	if err := e.w.WriteByte('\n'); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
