// Package column maps the engine's native column representation to the
// values callers see: null, 64-bit integer, double, text or blob.
package column

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/tomyedwab/mobetta/extstring"
)

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ErrIntegerOverflow is returned when the engine produced an integer outside
// the int64 range.
var ErrIntegerOverflow = errors.New("integer overflows int64")

// Value is a single column value. The zero Value is null.
//
// Integers, reals and blobs are owned by the Value. Text may alias the row
// buffer of the statement that produced it; see extstring.String.
type Value struct {
	kind Kind
	i    int64
	f    float64
	text extstring.String
	blob []byte
}

func Null() Value { return Value{} }

func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }

func Real(v float64) Value { return Value{kind: KindReal, f: v} }

func Text(s extstring.String) Value { return Value{kind: KindText, text: s} }

// TextString returns a text Value that owns s.
func TextString(s string) Value { return Text(extstring.Owned(s)) }

// Blob returns a blob Value holding b. The slice is not copied.
func Blob(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBlob, blob: b}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v Value) Float64() (float64, bool) {
	return v.f, v.kind == KindReal
}

func (v Value) Text() (extstring.String, bool) {
	return v.text, v.kind == KindText
}

func (v Value) Bytes() ([]byte, bool) {
	return v.blob, v.kind == KindBlob
}

// Interface returns the value as a plain Go value that owns its memory: nil,
// int64, float64, string or []byte.
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.text.String()
	case KindBlob:
		return v.blob
	default:
		return nil
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindReal:
		return v.f == o.f
	case KindText:
		return v.text.EqualString(o.text)
	case KindBlob:
		return bytes.Equal(v.blob, o.blob)
	default:
		return true
	}
}

// String formats the value for display. Blobs are shown base64 encoded.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.text.String()
	case KindBlob:
		return base64.StdEncoding.EncodeToString(v.blob)
	default:
		return "NULL"
	}
}

// GoString makes %#v output readable in test failures.
func (v Value) GoString() string {
	if v.kind == KindText {
		return fmt.Sprintf("column.Text(%q)", v.text.String())
	}
	return fmt.Sprintf("column.%s(%s)", v.kind, v.String())
}
