// Package dispatcher resolves method names to handlers and invokes them.
//
// Handlers are closures with one calling convention:
//
//	func(ctx context.Context, params message.Params) (value.Value, error)
//
// Register adds a closure directly. RegisterService binds the exported
// methods of a Go value by reflection, building one closure per method that
// checks and converts the positional arguments.
//
// Every invocation runs through the middleware chain installed with Use.
// Errors become fault responses: a *fault.Fault keeps its code, any other
// error is an internal error.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/middleware"
	"lean-rpc/value"
)

// MethodFunc implements one remote method.
type MethodFunc func(ctx context.Context, params message.Params) (value.Value, error)

// Dispatcher is a method table. It is safe for concurrent use; methods and
// middleware may be added while calls are in flight.
type Dispatcher struct {
	mu          sync.RWMutex
	methods     map[string]MethodFunc
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
}

func New() *Dispatcher {
	d := &Dispatcher{methods: make(map[string]MethodFunc)}
	d.handler = d.call
	return d
}

// Register adds fn under name. Registering a name twice is an error.
func (d *Dispatcher) Register(name string, fn MethodFunc) error {
	if name == "" {
		return fmt.Errorf("dispatcher: empty method name")
	}
	if fn == nil {
		return fmt.Errorf("dispatcher: nil handler for %q", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.methods[name]; dup {
		return fmt.Errorf("dispatcher: method %q already registered", name)
	}
	d.methods[name] = fn
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (d *Dispatcher) MustRegister(name string, fn MethodFunc) {
	if err := d.Register(name, fn); err != nil {
		panic(err)
	}
}

// Use appends middlewares. They apply in the order they are added.
func (d *Dispatcher) Use(mws ...middleware.Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mws...)
	d.handler = middleware.Chain(d.middlewares...)(d.call)
}

// Methods lists the registered method names.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	return names
}

// Invoke calls method with params and returns its response for id. It never
// fails: unknown methods and handler errors come back as fault responses.
func (d *Dispatcher) Invoke(ctx context.Context, method string, params message.Params, id int32) message.Response {
	return d.Handle(ctx, message.NewRequest(method, params, message.NewID(id)))
}

// Handle is Invoke for an already-built request.
func (d *Dispatcher) Handle(ctx context.Context, req message.Request) message.Response {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()
	return h(ctx, req)
}

// call is the innermost handler of the chain.
func (d *Dispatcher) call(ctx context.Context, req message.Request) message.Response {
	id := req.ID().Value()

	d.mu.RLock()
	fn, ok := d.methods[req.Method()]
	d.mu.RUnlock()
	if !ok {
		return message.FromError(fault.NewMethodNotFound("method not found: "+req.Method()), id)
	}

	result, err := fn(ctx, req.Params())
	if err != nil {
		return message.FromError(err, id)
	}
	return message.NewResult(result, id)
}
