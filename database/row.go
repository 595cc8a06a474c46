package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/tomyedwab/mobetta/column"
)

// Row holds every column of one result row. It stays valid after the
// statement that produced it moves on.
type Row struct {
	cols   *columnMap
	values []column.Value
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Columns returns the column names in order. The slice must not be modified.
func (r Row) Columns() []string {
	if r.cols == nil {
		return nil
	}
	return r.cols.names
}

// Index returns column i.
func (r Row) Index(i int) (column.Value, error) {
	if i < 0 || i >= len(r.values) {
		return column.Value{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(r.values))
	}
	return r.values[i], nil
}

// Lookup returns the column called name, the first one if the name repeats.
func (r Row) Lookup(name string) (column.Value, error) {
	if r.cols == nil {
		return column.Value{}, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	i, err := r.cols.lookup(name)
	if err != nil {
		return column.Value{}, err
	}
	return r.values[i], nil
}

// Get reads a column by index or by name.
func (r Row) Get(key any) (column.Value, error) {
	switch k := key.(type) {
	case string:
		return r.Lookup(k)
	case int:
		return r.Index(k)
	case int64:
		return r.Index(int(k))
	default:
		return column.Value{}, fmt.Errorf("unsupported column key type %T", key)
	}
}

// Values returns the column values in order. The slice must not be modified.
func (r Row) Values() []column.Value { return r.values }

// Map returns the row keyed by column name. When names repeat the last column
// wins, as it would in a JSON object.
func (r Row) Map() map[string]column.Value {
	m := make(map[string]column.Value, len(r.values))
	for i, name := range r.Columns() {
		m[name] = r.values[i]
	}
	return m
}

// All yields the columns as name, value pairs in result order.
func (r Row) All() iter.Seq2[string, column.Value] {
	return func(yield func(string, column.Value) bool) {
		for i, name := range r.Columns() {
			if !yield(name, r.values[i]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the row as an object with the keys in column order.
// Blobs are base64 encoded.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalValue(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v column.Value) ([]byte, error) {
	if s, ok := v.Text(); ok {
		// MarshalText copies without promoting the alias.
		return json.Marshal(s)
	}
	return json.Marshal(v.Interface())
}
