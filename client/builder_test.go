package client

import (
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-rpc/codec"
	"lean-rpc/message"
	"lean-rpc/value"
)

func TestBuildRequestWire(t *testing.T) {
	b := NewBuilder()
	data, err := b.BuildRequest("add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`, data.String())
	assert.Equal(t, int32(1), data.ID())

	data, err = b.BuildRequestParams("echo", message.Params{value.NewString("hi")})
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"echo","params":["hi"],"id":2}`, data.String())
}

func TestBuildNotificationLeavesCounterAlone(t *testing.T) {
	b := NewBuilder()
	_, err := b.BuildRequest("a")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, err := b.BuildNotification("log", "x")
		require.NoError(t, err)
		assert.Equal(t, `{"jsonrpc":"2.0","method":"log","params":["x"],"id":0}`, data.String())
		assert.Equal(t, int32(0), data.ID())
	}

	data, err := b.BuildRequest("b")
	require.NoError(t, err)
	assert.Equal(t, int32(2), data.ID())
}

func TestBuildRequestRejectsUnsupportedArgs(t *testing.T) {
	b := NewBuilder()
	_, err := b.BuildRequest("m", make(chan int))
	assert.Error(t, err)
	_, err = b.BuildNotification("m", func() {})
	assert.Error(t, err)

	// A failed build does not consume an id.
	data, err := b.BuildRequest("m")
	require.NoError(t, err)
	assert.Equal(t, int32(1), data.ID())
}

func TestConcurrentIDsAreDistinct(t *testing.T) {
	b := NewBuilder()
	const workers, perWorker = 8, 250

	var (
		mu  sync.Mutex
		all []int32
		wg  sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int32
			ids := make([]int32, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				data, err := b.BuildRequest("m", i)
				if !assert.NoError(t, err) {
					return
				}
				id := data.ID()
				assert.Greater(t, id, last, "ids must increase in per-goroutine call order")
				last = id
				ids = append(ids, id)
			}
			mu.Lock()
			all = append(all, ids...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, all, workers*perWorker)
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, id := range all {
		assert.Equal(t, int32(i+1), id)
	}
}

func TestIDWraparoundSkipsZero(t *testing.T) {
	b := NewBuilder()
	b.counter.Store(math.MaxInt32 - 1)
	assert.Equal(t, int32(math.MaxInt32), b.NextID())
	assert.Equal(t, int32(math.MinInt32), b.NextID())

	b.counter.Store(-2)
	assert.Equal(t, int32(-1), b.NextID())
	assert.Equal(t, int32(1), b.NextID())
}

func TestBuiltRequestParsesBack(t *testing.T) {
	b := NewBuilder()
	data, err := b.BuildRequest("mix", 1, 2.5, "s", true, nil, []int{1}, map[string]any{"k": "v"})
	require.NoError(t, err)

	r, err := codec.NewReader(data.Bytes())
	require.NoError(t, err)
	req, err := r.ParseRequest()
	require.NoError(t, err)
	assert.Equal(t, "mix", req.Method())
	assert.Equal(t, data.ID(), req.ID().Value())

	params := req.Params()
	require.Len(t, params, 7)
	assert.Equal(t, value.Integer, params[0].Kind())
	assert.Equal(t, value.Float, params[1].Kind())
	assert.Equal(t, value.Null, params[4].Kind())
	assert.Equal(t, value.Struct, params[6].Kind())
}
