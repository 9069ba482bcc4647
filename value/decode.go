package value

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Interface returns v as plain Go data: nil, bool, int64, float64, string,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case Boolean:
		return v.b
	case Integer:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case Struct:
		out := make(map[string]any, len(v.st))
		for k, m := range v.st {
			out[k] = m.Interface()
		}
		return out
	}
	return nil
}

// Decode stores v into the Go value target points to. It is the inverse of
// From: Integer fits any integer kind it does not overflow (an integral
// Float is accepted too), Struct fills maps and structs, Array fills slices
// and arrays of matching length, and Null zeroes the target.
func (v Value) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("value: Decode needs a non-nil pointer, got %T", target)
	}
	return decode(v, rv.Elem())
}

func mismatch(v Value, t reflect.Type) error {
	return fmt.Errorf("value: cannot use %s as %s", v.kind, t)
}

func decode(v Value, rv reflect.Value) error {
	t := rv.Type()
	if t == valueType {
		rv.Set(reflect.ValueOf(v))
		return nil
	}
	if v.kind == Null {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			rv.Set(reflect.Zero(t))
			return nil
		}
		return mismatch(v, t)
	}

	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return mismatch(v, t)
		}
		rv.Set(reflect.ValueOf(v.Interface()))
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			rv.Set(reflect.New(t.Elem()))
		}
		return decode(v, rv.Elem())
	case reflect.Bool:
		if v.kind != Boolean {
			return mismatch(v, t)
		}
		rv.SetBool(v.b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := integral(v)
		if !ok {
			return mismatch(v, t)
		}
		if rv.OverflowInt(i) {
			return fmt.Errorf("value: %d overflows %s", i, t)
		}
		rv.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := integral(v)
		if !ok {
			return mismatch(v, t)
		}
		if i < 0 || rv.OverflowUint(uint64(i)) {
			return fmt.Errorf("value: %d overflows %s", i, t)
		}
		rv.SetUint(uint64(i))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := v.AsNumber()
		if !ok {
			return mismatch(v, t)
		}
		if rv.OverflowFloat(f) {
			return fmt.Errorf("value: %g overflows %s", f, t)
		}
		rv.SetFloat(f)
		return nil
	case reflect.String:
		if v.kind != String {
			return mismatch(v, t)
		}
		rv.SetString(v.s)
		return nil
	case reflect.Slice:
		if v.kind != Array {
			return mismatch(v, t)
		}
		s := reflect.MakeSlice(t, len(v.arr), len(v.arr))
		for i, e := range v.arr {
			if err := decode(e, s.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		rv.Set(s)
		return nil
	case reflect.Array:
		if v.kind != Array || len(v.arr) != t.Len() {
			return mismatch(v, t)
		}
		for i, e := range v.arr {
			if err := decode(e, rv.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case reflect.Map:
		if v.kind != Struct || t.Key().Kind() != reflect.String {
			return mismatch(v, t)
		}
		m := reflect.MakeMapWithSize(t, len(v.st))
		for k, member := range v.st {
			elem := reflect.New(t.Elem()).Elem()
			if err := decode(member, elem); err != nil {
				return fmt.Errorf("member %q: %w", k, err)
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		rv.Set(m)
		return nil
	case reflect.Struct:
		if v.kind != Struct {
			return mismatch(v, t)
		}
		for _, f := range structFields(t) {
			member, ok := lookupMember(v.st, f.name)
			if !ok {
				continue
			}
			if err := decode(member, rv.FieldByIndex(f.index)); err != nil {
				return fmt.Errorf("field %s: %w", f.name, err)
			}
		}
		return nil
	}
	return mismatch(v, t)
}

// lookupMember prefers an exact key and falls back to a case-insensitive
// match, the way encoding/json does.
func lookupMember(st map[string]Value, name string) (Value, bool) {
	if m, ok := st[name]; ok {
		return m, true
	}
	for k, m := range st {
		if strings.EqualFold(k, name) {
			return m, true
		}
	}
	return Value{}, false
}

func integral(v Value) (int64, bool) {
	switch v.kind {
	case Integer:
		return v.i, true
	case Float:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), true
		}
	}
	return 0, false
}
