package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Label string  `json:"label,omitempty"`
	Skip  string  `json:"-"`
	Scale float64 // no tag
	inner int
}

func TestFromStruct(t *testing.T) {
	v, err := From(point{X: 1, Y: 2, Label: "p", Skip: "ignored", Scale: 0.5, inner: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"Scale", "label", "x", "y"}, v.Keys())

	x, _ := v.Member("x")
	assert.True(t, x.Equal(NewInt(1)))
}

func TestDecodeScalars(t *testing.T) {
	var i8 int8
	require.NoError(t, NewInt(-5).Decode(&i8))
	assert.Equal(t, int8(-5), i8)
	assert.Error(t, NewInt(300).Decode(&i8))

	var u uint16
	require.NoError(t, NewFloat(7).Decode(&u))
	assert.Equal(t, uint16(7), u)
	assert.Error(t, NewInt(-1).Decode(&u))
	assert.Error(t, NewFloat(1.5).Decode(&u))

	var f float64
	require.NoError(t, NewInt(3).Decode(&f))
	assert.Equal(t, 3.0, f)

	var s string
	assert.Error(t, NewInt(3).Decode(&s))
	require.NoError(t, NewString("ok").Decode(&s))
	assert.Equal(t, "ok", s)

	var b bool
	require.NoError(t, NewBool(true).Decode(&b))
	assert.True(t, b)
}

func TestDecodeContainers(t *testing.T) {
	var xs []int
	require.NoError(t, MustFrom([]any{1, 2, 3}).Decode(&xs))
	assert.Equal(t, []int{1, 2, 3}, xs)

	var pair [2]string
	assert.Error(t, MustFrom([]string{"a"}).Decode(&pair))
	require.NoError(t, MustFrom([]string{"a", "b"}).Decode(&pair))
	assert.Equal(t, [2]string{"a", "b"}, pair)

	var m map[string]float64
	require.NoError(t, MustFrom(map[string]any{"a": 1, "b": 2.5}).Decode(&m))
	assert.Equal(t, map[string]float64{"a": 1, "b": 2.5}, m)

	var p point
	require.NoError(t, MustFrom(map[string]any{"x": 4, "Y": 5, "scale": 2.0}).Decode(&p))
	assert.Equal(t, point{X: 4, Y: 5, Scale: 2}, p)

	var pp *point
	require.NoError(t, NewNull().Decode(&pp))
	assert.Nil(t, pp)
	require.NoError(t, MustFrom(map[string]any{"x": 1}).Decode(&pp))
	require.NotNil(t, pp)
	assert.Equal(t, 1, pp.X)
}

func TestDecodeInterfaceAndValue(t *testing.T) {
	var a any
	require.NoError(t, MustFrom([]any{1, "s", nil}).Decode(&a))
	assert.Equal(t, []any{int64(1), "s", nil}, a)

	var v Value
	in := MustFrom(map[string]any{"k": []int{1}})
	require.NoError(t, in.Decode(&v))
	assert.True(t, in.Equal(v))
}

func TestDecodeNeedsPointer(t *testing.T) {
	var i int
	assert.Error(t, NewInt(1).Decode(i))
	assert.Error(t, NewInt(1).Decode((*int)(nil)))
	assert.Error(t, NewNull().Decode(&i))
}
