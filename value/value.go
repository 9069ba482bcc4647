// Package value defines the structured value model carried by JSON-RPC
// parameters and results.
//
// A Value is a tagged union: exactly one of Null, Boolean, Integer, Float,
// String, Array or Struct is active. Values are immutable once built; the
// accessors that expose containers return copies.
package value

import (
	"fmt"
	"maps"
	"slices"
)

// Kind identifies the active variant of a Value.
type Kind uint8

const (
	Null Kind = iota
	Boolean
	Integer
	Float
	String
	Array
	Struct
)

var kindNames = [...]string{
	Null:    "null",
	Boolean: "boolean",
	Integer: "integer",
	Float:   "float",
	String:  "string",
	Array:   "array",
	Struct:  "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one JSON-RPC payload value. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	st   map[string]Value
}

func NewNull() Value { return Value{} }

func NewBool(b bool) Value { return Value{kind: Boolean, b: b} }

func NewInt(i int64) Value { return Value{kind: Integer, i: i} }

func NewFloat(f float64) Value { return Value{kind: Float, f: f} }

func NewString(s string) Value { return Value{kind: String, s: s} }

// NewArray builds an Array from the given elements in order.
func NewArray(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, arr: slices.Clone(elems)}
}

// NewStruct builds a Struct. The map is copied.
func NewStruct(members map[string]Value) Value {
	st := make(map[string]Value, len(members))
	maps.Copy(st, members)
	return Value{kind: Struct, st: st}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Boolean }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == Integer }

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == Float }

func (v Value) AsString() (string, bool) { return v.s, v.kind == String }

// AsNumber reports the value as a float64 when it is an Integer or a Float.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case Integer:
		return float64(v.i), true
	case Float:
		return v.f, true
	}
	return 0, false
}

// AsArray returns a copy of the elements of an Array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	return slices.Clone(v.arr), true
}

// AsStruct returns a copy of the members of a Struct.
func (v Value) AsStruct() (map[string]Value, bool) {
	if v.kind != Struct {
		return nil, false
	}
	return maps.Clone(v.st), true
}

// Len is the element count of an Array or the member count of a Struct,
// and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Struct:
		return len(v.st)
	}
	return 0
}

// Index returns the i-th element of an Array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Member returns the named member of a Struct.
func (v Value) Member(name string) (Value, bool) {
	if v.kind != Struct {
		return Value{}, false
	}
	m, ok := v.st[name]
	return m, ok
}

// Keys returns the member names of a Struct in sorted order.
func (v Value) Keys() []string {
	if v.kind != Struct {
		return nil
	}
	return slices.Sorted(maps.Keys(v.st))
}

// Equal reports deep equality. Integer and Float never compare equal to each
// other, and NaN is not equal to itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Boolean:
		return v.b == o.b
	case Integer:
		return v.i == o.i
	case Float:
		return v.f == o.f
	case String:
		return v.s == o.s
	case Array:
		return slices.EqualFunc(v.arr, o.arr, Value.Equal)
	case Struct:
		return maps.EqualFunc(v.st, o.st, Value.Equal)
	}
	return false
}

// String renders the value as JSON text, for logs and diagnostics.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}
