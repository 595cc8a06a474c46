package extstring

import (
	"io"
	"strings"
	"unsafe"
)

// ref is the shared state of one issued alias.
type ref struct {
	b   *Binder
	gen uint64

	// view is the text. It points into the row buffer while the generation
	// is current. Afterwards it points into a snapshot or a detached buffer,
	// or stays where it was when the buffer is stable.
	view []byte

	// str caches the owned copy once String has been called.
	str   string
	owned bool
}

func (r *ref) bytes() []byte {
	if r.owned {
		return unsafe.Slice(unsafe.StringData(r.str), len(r.str))
	}
	return r.view
}

// String is a text column value. The zero value is the empty string.
//
// A String may alias the row buffer of the statement that produced it. All
// methods are safe to call at any time, before or after the statement moves
// on; only Unsafe hands out memory that is shared with the buffer.
type String struct {
	r *ref
	s string
}

// Owned returns a String that holds s directly.
func Owned(s string) String { return String{s: s} }

// Len returns the length of the text in bytes.
func (s String) Len() int {
	if s.r == nil {
		return len(s.s)
	}
	if s.r.owned {
		return len(s.r.str)
	}
	return len(s.r.view)
}

// String returns an owned copy of the text. The copy is made once and cached,
// so calling String repeatedly, or after the row is gone, does not copy again.
func (s String) String() string {
	if s.r == nil {
		return s.s
	}
	r := s.r
	if !r.owned {
		r.str = string(r.view)
		r.owned = true
		r.view = nil
		r.b.stats.Promoted++
	}
	return r.str
}

// view returns a string header over the current bytes for a read that does not
// escape the calling method.
func (s String) view() string {
	if s.r == nil {
		return s.s
	}
	if s.r.owned {
		return s.r.str
	}
	return unsafe.String(unsafe.SliceData(s.r.view), len(s.r.view))
}

// Equal reports whether the text equals t without copying it.
func (s String) Equal(t string) bool {
	return s.view() == t
}

// EqualString reports whether both texts hold the same bytes. Neither side is
// copied or promoted.
func (s String) EqualString(t String) bool {
	return s.view() == t.view()
}

// Compare compares the text with t lexicographically by bytes, without copying.
func (s String) Compare(t string) int {
	return strings.Compare(s.view(), t)
}

// Contains reports whether substr occurs in the text, without copying.
func (s String) Contains(substr string) bool {
	return strings.Contains(s.view(), substr)
}

// AppendTo appends the text to dst.
func (s String) AppendTo(dst []byte) []byte {
	if s.r == nil {
		return append(dst, s.s...)
	}
	return append(dst, s.r.bytes()...)
}

// WriteTo writes the text to w straight from wherever it currently lives.
func (s String) WriteTo(w io.Writer) (int64, error) {
	if s.Len() == 0 {
		return 0, nil
	}
	var n int
	var err error
	if s.r == nil {
		n, err = io.WriteString(w, s.s)
	} else {
		n, err = w.Write(s.r.bytes())
	}
	return int64(n), err
}

// MarshalText implements encoding.TextMarshaler. The result is a fresh copy.
func (s String) MarshalText() ([]byte, error) {
	return s.AppendTo(make([]byte, 0, s.Len())), nil
}

// Unsafe returns the text as a string that shares memory with the row buffer
// when the value is still live. A binder over a reused buffer then detaches
// the buffer instead of reusing it, so the returned string stays valid and
// unchanged for as long as it is referenced.
func (s String) Unsafe() string {
	if s.r == nil {
		return s.s
	}
	r := s.r
	if r.owned {
		return r.str
	}
	if r.gen == r.b.gen {
		r.b.pin()
	}
	return unsafe.String(unsafe.SliceData(r.view), len(r.view))
}

// Aliased reports whether the text currently points into the row buffer of
// the statement that produced it.
func (s String) Aliased() bool {
	return s.r != nil && !s.r.owned && s.r.gen == s.r.b.gen
}

// Stale reports whether the statement has moved past the row this value came
// from. Stale values remain readable.
func (s String) Stale() bool {
	return s.r != nil && s.r.gen != s.r.b.gen
}

// Generation is the binder generation the value was produced in. Values that
// were copied at bind time report zero.
func (s String) Generation() uint64 {
	if s.r == nil {
		return 0
	}
	return s.r.gen
}
