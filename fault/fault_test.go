package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{-32700, ParseError},
		{-32600, InvalidRequest},
		{-32601, MethodNotFound},
		{-32602, InvalidParams},
		{-32603, InternalError},
		{-32000, ServerError},
		{-32099, ServerError},
		{-32050, ServerError},
		{-32100, PreDefined},
		{-32768, PreDefined},
		{-32604, PreDefined},
		{-32769, Application},
		{-31999, Application},
		{0, Application},
		{42, Application},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code))
		})
	}
}

func TestFaultIsKind(t *testing.T) {
	err := fmt.Errorf("calling: %w", NewMethodNotFound("no such method"))

	assert.True(t, errors.Is(err, MethodNotFound))
	assert.False(t, errors.Is(err, InvalidParams))

	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, CodeMethodNotFound, f.Code)
	assert.Equal(t, "no such method", f.Message)
}

func TestFaultIsByCode(t *testing.T) {
	assert.True(t, errors.Is(New(7, "a"), New(7, "b")))
	assert.False(t, errors.Is(New(7, "a"), New(8, "a")))
}

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, "invalid request", NewInvalidRequest("").Message)
	assert.Equal(t, "application error", New(5, "").Message)
}

func TestServerErrorClamp(t *testing.T) {
	assert.Equal(t, -32010, NewServerError(-32010, "x").Code)
	assert.Equal(t, ServerErrorCodeMax, NewServerError(12, "x").Code)
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	f := From(errors.New("disk on fire"))
	assert.Equal(t, CodeInternalError, f.Code)
	assert.Equal(t, "disk on fire", f.Message)

	orig := NewInvalidParams("want 2 args")
	assert.Same(t, orig, From(fmt.Errorf("wrap: %w", orig)))

	assert.Equal(t, CodeMethodNotFound, From(MethodNotFound).Code)
}
