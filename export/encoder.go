// Package export streams the rows of a statement to CSV or JSON Lines without
// holding the result set in memory.
package export

import (
	"io"

	"github.com/tomyedwab/mobetta/database"
)

// RowEncoder is implemented by every output format.
type RowEncoder interface {
	// WriteHeader receives the column names. It is called exactly once,
	// before any row.
	WriteHeader(columns []string) error

	// WriteRow writes one row. Text columns may still alias the statement's
	// row buffer; encoders write them out before returning and do not keep
	// them.
	WriteRow(row database.Row) error

	// Flush writes buffered data to the underlying writer.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	io.Closer
}

// Format names an output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// NewEncoder returns the encoder for format writing to w.
func NewEncoder(format Format, w io.Writer) (RowEncoder, error) {
	switch format {
	case FormatCSV:
		return NewCSVEncoder(w), nil
	case FormatJSONL, "json":
		return NewJSONEncoder(w), nil
	default:
		return nil, &UnknownFormatError{Format: string(format)}
	}
}

// UnknownFormatError is returned by NewEncoder.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return "unknown export format: " + e.Format
}
