package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-rpc/fault"
	"lean-rpc/message"
	"lean-rpc/middleware"
	"lean-rpc/value"
)

type Args struct {
	A, B int
}

type Arith struct {
	calls int
}

func (a *Arith) Add(x, y int) (int, error) {
	a.calls++
	return x + y, nil
}

func (a *Arith) Div(ctx context.Context, x, y float64) (float64, error) {
	if y == 0 {
		return 0, fault.New(1001, "division by zero")
	}
	return x / y, nil
}

func (a *Arith) Sum(args Args) (map[string]int, error) {
	return map[string]int{"result": args.A + args.B}, nil
}

func (a *Arith) Reset() error {
	a.calls = 0
	return nil
}

func (a *Arith) Broken() (int, error) {
	return 0, errors.New("disk on fire")
}

// Skipped: wrong signature.
func (a *Arith) Helper() int { return 0 }

func ints(xs ...int64) message.Params {
	p := make(message.Params, len(xs))
	for i, x := range xs {
		p[i] = value.NewInt(x)
	}
	return p
}

func TestInvokeClosure(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("add", func(ctx context.Context, params message.Params) (value.Value, error) {
		var sum int64
		for _, p := range params {
			n, ok := p.AsInt()
			if !ok {
				return value.Value{}, fault.NewInvalidParams("add takes integers")
			}
			sum += n
		}
		return value.NewInt(sum), nil
	}))

	resp := d.Invoke(context.Background(), "add", ints(2, 3), 1)
	require.False(t, resp.IsFault())
	assert.True(t, value.NewInt(5).Equal(resp.Result()))
	assert.Equal(t, int32(1), resp.ID())

	resp = d.Invoke(context.Background(), "add", message.Params{value.NewString("x")}, 2)
	assert.True(t, errors.Is(resp.Err(), fault.InvalidParams))
}

func TestRegisterDuplicate(t *testing.T) {
	d := New()
	fn := func(context.Context, message.Params) (value.Value, error) { return value.NewNull(), nil }
	require.NoError(t, d.Register("m", fn))
	assert.Error(t, d.Register("m", fn))
	assert.Error(t, d.Register("", fn))
	assert.Error(t, d.Register("nil", nil))
	assert.Panics(t, func() { d.MustRegister("m", fn) })
}

func TestMethodNotFoundKeepsID(t *testing.T) {
	resp := New().Invoke(context.Background(), "nope", nil, 42)
	require.True(t, resp.IsFault())
	code, msg := resp.Fault()
	assert.Equal(t, fault.CodeMethodNotFound, code)
	assert.Contains(t, msg, "nope")
	assert.Equal(t, int32(42), resp.ID())
}

func TestRegisterService(t *testing.T) {
	d := New()
	arith := &Arith{}
	require.NoError(t, d.RegisterService("", arith))
	assert.ElementsMatch(t,
		[]string{"Arith.Add", "Arith.Div", "Arith.Sum", "Arith.Reset", "Arith.Broken"},
		d.Methods())

	ctx := context.Background()

	resp := d.Invoke(ctx, "Arith.Add", ints(2, 3), 1)
	require.NoError(t, resp.Err())
	assert.True(t, value.NewInt(5).Equal(resp.Result()))
	assert.Equal(t, 1, arith.calls)

	resp = d.Invoke(ctx, "Arith.Div", message.Params{value.NewInt(3), value.NewFloat(2)}, 2)
	require.NoError(t, resp.Err())
	assert.True(t, value.NewFloat(1.5).Equal(resp.Result()))

	resp = d.Invoke(ctx, "Arith.Div", ints(1, 0), 3)
	code, msg := resp.Fault()
	assert.Equal(t, 1001, code)
	assert.Equal(t, "division by zero", msg)

	resp = d.Invoke(ctx, "Arith.Sum", message.Params{value.MustFrom(map[string]int{"a": 4, "b": 5})}, 4)
	require.NoError(t, resp.Err())
	assert.True(t, value.MustFrom(map[string]int{"result": 9}).Equal(resp.Result()))

	resp = d.Invoke(ctx, "Arith.Reset", nil, 5)
	require.NoError(t, resp.Err())
	assert.True(t, resp.Result().IsNull())
	assert.Equal(t, 0, arith.calls)

	resp = d.Invoke(ctx, "Arith.Broken", nil, 6)
	code, msg = resp.Fault()
	assert.Equal(t, fault.CodeInternalError, code)
	assert.Equal(t, "disk on fire", msg)
}

func TestServiceArgumentChecks(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterService("math", &Arith{}))
	ctx := context.Background()

	tests := []struct {
		name   string
		params message.Params
	}{
		{"too few", ints(1)},
		{"too many", ints(1, 2, 3)},
		{"wrong type", message.Params{value.NewString("1"), value.NewInt(2)}},
		{"fractional", message.Params{value.NewFloat(1.5), value.NewInt(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Invoke(ctx, "math.Add", tt.params, 7)
			assert.True(t, errors.Is(resp.Err(), fault.InvalidParams), "got %v", resp.Err())
			assert.Equal(t, int32(7), resp.ID())
		})
	}
}

func TestRegisterServiceRejects(t *testing.T) {
	d := New()
	assert.Error(t, d.RegisterService("", nil))
	assert.Error(t, d.RegisterService("", (*Arith)(nil)))
	assert.Error(t, d.RegisterService("x", struct{}{}))
}

func TestRegisterFunc(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterFunc("echo", func(s string) (string, error) { return s, nil }))
	assert.Error(t, d.RegisterFunc("bad", func(s string) string { return s }))
	assert.Error(t, d.RegisterFunc("variadic", func(xs ...int) error { return nil }))
	assert.Error(t, d.RegisterFunc("notfunc", 3))

	resp := d.Invoke(context.Background(), "echo", message.Params{value.NewString("hi")}, 1)
	require.NoError(t, resp.Err())
	assert.True(t, value.NewString("hi").Equal(resp.Result()))
}

func TestUseWrapsEveryCall(t *testing.T) {
	d := New()
	d.MustRegister("m", func(context.Context, message.Params) (value.Value, error) {
		panic("handler bug")
	})

	var seen []string
	d.Use(func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req message.Request) message.Response {
			seen = append(seen, req.Method())
			return next(ctx, req)
		}
	}, middleware.RecoverMiddleware(nil))

	resp := d.Invoke(context.Background(), "m", nil, 3)
	assert.True(t, errors.Is(resp.Err(), fault.InternalError))
	resp = d.Invoke(context.Background(), "missing", nil, 4)
	assert.True(t, errors.Is(resp.Err(), fault.MethodNotFound))
	assert.Equal(t, []string{"m", "missing"}, seen)
}
