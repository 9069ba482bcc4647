package dispatcher

import (
	"context"
	"fmt"
	"reflect"

	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/value"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// methodType is a reflected function together with its wire-facing shape.
type methodType struct {
	fn        reflect.Value
	hasCtx    bool
	argTypes  []reflect.Type
	hasResult bool
}

// inspect checks that t is one of
//
//	func([ctx context.Context,] args...) (R, error)
//	func([ctx context.Context,] args...) error
//
// where fn is bound (receiver already applied).
func inspect(fn reflect.Value) (*methodType, error) {
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("dispatcher: %s is not a function", t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("dispatcher: variadic %s is not supported", t)
	}
	switch {
	case t.NumOut() == 1 && t.Out(0) == errorType:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("dispatcher: %s must return (R, error) or error", t)
	}

	m := &methodType{fn: fn, hasResult: t.NumOut() == 2}
	first := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		m.hasCtx = true
		first = 1
	}
	for i := first; i < t.NumIn(); i++ {
		m.argTypes = append(m.argTypes, t.In(i))
	}
	return m, nil
}

// call converts params, invokes the function and converts its result.
func (m *methodType) call(ctx context.Context, params message.Params) (value.Value, error) {
	if len(params) != len(m.argTypes) {
		return value.Value{}, fault.Newf(fault.CodeInvalidParams,
			"want %d params, got %d", len(m.argTypes), len(params))
	}

	in := make([]reflect.Value, 0, len(m.argTypes)+1)
	if m.hasCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, t := range m.argTypes {
		argv := reflect.New(t)
		if err := params[i].Decode(argv.Interface()); err != nil {
			return value.Value{}, fault.Newf(fault.CodeInvalidParams, "param %d: %v", i, err)
		}
		in = append(in, argv.Elem())
	}

	out := m.fn.Call(in)
	if errv := out[len(out)-1]; !errv.IsNil() {
		return value.Value{}, errv.Interface().(error)
	}
	if !m.hasResult {
		return value.NewNull(), nil
	}
	result, err := value.From(out[0].Interface())
	if err != nil {
		return value.Value{}, fault.NewInternalError(err.Error())
	}
	return result, nil
}

// Func adapts an ordinary Go function to a MethodFunc. Arguments are
// converted with value.Decode and a count or type mismatch is reported as
// an invalid-params fault; the result is converted with value.From.
func Func(fn any) (MethodFunc, error) {
	m, err := inspect(reflect.ValueOf(fn))
	if err != nil {
		return nil, err
	}
	return m.call, nil
}

// RegisterFunc is Register(name, Func(fn)).
func (d *Dispatcher) RegisterFunc(name string, fn any) error {
	mf, err := Func(fn)
	if err != nil {
		return fmt.Errorf("dispatcher: %s: %w", name, err)
	}
	return d.Register(name, mf)
}

// RegisterService registers every exported method of rcvr that has a
// supported signature as "namespace.Method". An empty namespace defaults to
// the receiver's type name. Methods with other signatures are skipped; a
// receiver without any usable method is an error.
func (d *Dispatcher) RegisterService(namespace string, rcvr any) error {
	rv := reflect.ValueOf(rcvr)
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return fmt.Errorf("dispatcher: nil service receiver")
	}
	typ := rv.Type()
	if namespace == "" {
		namespace = reflect.Indirect(rv).Type().Name()
	}
	if namespace == "" {
		return fmt.Errorf("dispatcher: anonymous receiver type %s needs a namespace", typ)
	}

	registered := 0
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		m, err := inspect(rv.Method(i))
		if err != nil {
			continue
		}
		if err := d.Register(namespace+"."+method.Name, m.call); err != nil {
			return err
		}
		registered++
	}
	if registered == 0 {
		return fmt.Errorf("dispatcher: %s has no exported methods with a supported signature", typ)
	}
	return nil
}
