package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// From converts a Go value into a Value.
//
// Supported inputs are nil, Value, bool, the integer and float kinds, string,
// json.Number, and slices, arrays, string-keyed maps and structs of
// supported inputs. Struct fields are named by their json tag when present;
// unexported fields and fields tagged "-" are skipped. Pointers and
// interfaces are followed; a nil pointer becomes Null.
// Unsigned integers above math.MaxInt64 are rejected.
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case int:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case float64:
		return NewFloat(t), nil
	case string:
		return NewString(t), nil
	case []Value:
		return NewArray(t...), nil
	case map[string]Value:
		return NewStruct(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return NewInt(i), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid number %q", string(t))
		}
		return NewFloat(f), nil
	}
	var c converter
	return c.from(reflect.ValueOf(x))
}

// MustFrom is like From but panics on unsupported input. It is meant for
// literals in tests and examples.
func MustFrom(x any) Value {
	v, err := From(x)
	if err != nil {
		panic(err)
	}
	return v
}

var valueType = reflect.TypeOf(Value{})

// ErrCycle is returned by From for input that refers back to itself.
var ErrCycle = errors.New("value: input contains a cycle")

// Cycle tracking only starts once nesting gets this deep, so ordinary
// input never pays for it.
const startDetectingCyclesAfter = 1000

// converter walks one input. Pointers, maps and slices on the current path
// are remembered once the walk is deep enough to suspect a cycle.
type converter struct {
	level int
	seen  map[any]struct{}
}

type sliceKey struct {
	ptr uintptr
	len int
}

// enter marks a reference on the current path; leave must follow when the
// walk returns from it.
func (c *converter) enter(rv reflect.Value) (leave func(), err error) {
	c.level++
	if c.level <= startDetectingCyclesAfter {
		return func() { c.level-- }, nil
	}
	var key any = rv.Pointer()
	if rv.Kind() == reflect.Slice {
		key = sliceKey{ptr: rv.Pointer(), len: rv.Len()}
	}
	if c.seen == nil {
		c.seen = make(map[any]struct{})
	}
	if _, ok := c.seen[key]; ok {
		c.level--
		return nil, fmt.Errorf("%w through %s", ErrCycle, rv.Type())
	}
	c.seen[key] = struct{}{}
	return func() {
		delete(c.seen, key)
		c.level--
	}, nil
}

func (c *converter) from(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Value{}, nil
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return c.from(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return Value{}, nil
		}
		leave, err := c.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.from(rv.Elem())
	case reflect.Bool:
		return NewBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("value: unsigned %d overflows integer", u)
		}
		return NewInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(rv.Float()), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Value{}, nil
		}
		leave, err := c.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.array(rv)
	case reflect.Array:
		return c.array(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("value: map key type %s is not a string", rv.Type().Key())
		}
		if rv.IsNil() {
			return Value{}, nil
		}
		leave, err := c.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		st := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m, err := c.from(iter.Value())
			if err != nil {
				return Value{}, fmt.Errorf("member %q: %w", iter.Key().String(), err)
			}
			st[iter.Key().String()] = m
		}
		return Value{kind: Struct, st: st}, nil
	case reflect.Struct:
		st := make(map[string]Value)
		for _, f := range structFields(rv.Type()) {
			m, err := c.from(rv.FieldByIndex(f.index))
			if err != nil {
				return Value{}, fmt.Errorf("field %s: %w", f.name, err)
			}
			st[f.name] = m
		}
		return Value{kind: Struct, st: st}, nil
	}
	return Value{}, fmt.Errorf("value: unsupported Go type %s", rv.Type())
}

func (c *converter) array(rv reflect.Value) (Value, error) {
	elems := make([]Value, rv.Len())
	for i := range elems {
		e, err := c.from(rv.Index(i))
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		elems[i] = e
	}
	return Value{kind: Array, arr: elems}, nil
}

type field struct {
	name  string
	index []int
}

// structFields lists the exported, non-embedded fields of t with their
// wire names.
func structFields(t reflect.Type) []field {
	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, field{name: name, index: sf.Index})
	}
	return fields
}
