package column

import (
	"bytes"
	"fmt"

	"github.com/tomyedwab/mobetta/engine"
	"github.com/tomyedwab/mobetta/extstring"
)

// TextBinder decides whether text is aliased or copied. *extstring.Binder
// implements it.
type TextBinder interface {
	Bind(p []byte) extstring.String
}

// Decode converts one engine column of the current row into a Value. Text goes
// through tb; with a nil tb it is copied. Blobs are always copied.
func Decode(col engine.Column, tb TextBinder) (Value, error) {
	switch col.Type {
	case engine.Null:
		return Null(), nil
	case engine.Integer:
		if col.Wide {
			return Value{}, fmt.Errorf("%w: %d", ErrIntegerOverflow, col.Uint)
		}
		return Integer(col.Int), nil
	case engine.Float:
		return Real(col.Float), nil
	case engine.Text:
		if tb == nil {
			return TextString(string(col.Bytes)), nil
		}
		return Text(tb.Bind(col.Bytes)), nil
	case engine.Blob:
		b := bytes.Clone(col.Bytes)
		return Blob(b), nil
	default:
		return Value{}, fmt.Errorf("unknown column type %d", col.Type)
	}
}
