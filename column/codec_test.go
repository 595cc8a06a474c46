package column

import (
	"errors"
	"math"
	"testing"

	"github.com/tomyedwab/mobetta/engine"
	"github.com/tomyedwab/mobetta/extstring"
)

type nopBuffer struct{}

func (nopBuffer) Detach() {}

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name string
		col  engine.Column
		want Value
	}{
		{"null", engine.Column{Type: engine.Null}, Null()},
		{"integer", engine.Column{Type: engine.Integer, Int: -7}, Integer(-7)},
		{"max integer", engine.Column{Type: engine.Integer, Int: math.MaxInt64}, Integer(math.MaxInt64)},
		{"real", engine.Column{Type: engine.Float, Float: 2.25}, Real(2.25)},
		{"text without binder", engine.Column{Type: engine.Text, Bytes: []byte("abc")}, TextString("abc")},
		{"blob", engine.Column{Type: engine.Blob, Bytes: []byte{1, 2, 3}}, Blob([]byte{1, 2, 3})},
		{"empty blob", engine.Column{Type: engine.Blob}, Blob(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.col, nil)
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeWideIntegerOverflows(t *testing.T) {
	_, err := Decode(engine.Column{Type: engine.Integer, Wide: true, Uint: math.MaxUint64}, nil)
	if !errors.Is(err, ErrIntegerOverflow) {
		t.Fatalf("expected ErrIntegerOverflow, got %v", err)
	}
}

func TestDecodeBlobIsCopied(t *testing.T) {
	buf := []byte{9, 9, 9}
	v, err := Decode(engine.Column{Type: engine.Blob, Bytes: buf}, nil)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	buf[0] = 0
	b, ok := v.Bytes()
	if !ok || b[0] != 9 {
		t.Fatalf("blob shares memory with the row buffer: %v", b)
	}
	if b2, _ := Blob(nil).Bytes(); b2 == nil {
		t.Fatal("empty blob should be a non-nil slice")
	}
}

func TestDecodeTextUsesBinder(t *testing.T) {
	binder := extstring.NewBinder(nopBuffer{}, extstring.Options{MinAliasLen: 1})
	buf := []byte("aliased text")

	v, err := Decode(engine.Column{Type: engine.Text, Bytes: buf}, binder)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	s, ok := v.Text()
	if !ok {
		t.Fatalf("expected text, got %s", v.Kind())
	}
	if !s.Aliased() {
		t.Fatal("expected the binder to alias the text")
	}
	if !s.Equal("aliased text") {
		t.Fatalf("text = %q", s.String())
	}
}

func TestValueAccessorsAndInterface(t *testing.T) {
	if _, ok := Integer(1).Float64(); ok {
		t.Error("Float64 should fail on an integer")
	}
	if _, ok := Real(1).Int64(); ok {
		t.Error("Int64 should fail on a real")
	}
	if !Null().IsNull() || Null().Interface() != nil {
		t.Error("null value misbehaves")
	}
	if got := Integer(5).Interface(); got != int64(5) {
		t.Errorf("Interface() = %#v", got)
	}
	if got := TextString("hi").Interface(); got != "hi" {
		t.Errorf("Interface() = %#v", got)
	}
	if got := Null().String(); got != "NULL" {
		t.Errorf("String() = %q", got)
	}
	if got := Real(0.5).String(); got != "0.5" {
		t.Errorf("String() = %q", got)
	}
	if Integer(1).Equal(Real(1)) {
		t.Error("values of different kinds should not be equal")
	}
}

func TestEqualDoesNotPromoteText(t *testing.T) {
	binder := extstring.NewBinder(nopBuffer{}, extstring.Options{MinAliasLen: 1})
	a := Text(binder.Bind([]byte("same text in both")))
	b := Text(binder.Bind([]byte("same text in both")))
	c := Text(binder.Bind([]byte("different text")))

	if !a.Equal(b) || !b.Equal(a) {
		t.Fatal("aliases with the same bytes should be equal")
	}
	if a.Equal(c) {
		t.Fatal("aliases with different bytes should not be equal")
	}
	if !a.Equal(TextString("same text in both")) {
		t.Fatal("an alias should equal an owned value with the same text")
	}
	if st := binder.Stats(); st.Promoted != 0 {
		t.Errorf("Promoted = %d, Equal should not copy", st.Promoted)
	}
	if s, _ := b.Text(); !s.Aliased() {
		t.Error("the compared value lost its alias")
	}
}
