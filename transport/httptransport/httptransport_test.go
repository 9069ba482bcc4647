package httptransport_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lean-rpc/client"
	"lean-rpc/dispatcher"
	"lean-rpc/fault"
	"lean-rpc/server"
	"lean-rpc/transport"
	"lean-rpc/transport/httptransport"
)

func newServer(t *testing.T, opts ...httptransport.HandlerOption) *httptest.Server {
	t.Helper()
	d := dispatcher.New()
	require.NoError(t, d.RegisterFunc("add", func(a, b int) (int, error) { return a + b, nil }))
	require.NoError(t, d.RegisterFunc("log", func(msg string) error { return nil }))

	srv := server.New(nil, d)

	ts := httptest.NewServer(httptransport.Handler(srv, opts...))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, contentType, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHandlerRequest(t *testing.T) {
	ts := newServer(t)
	resp, body := post(t, ts.URL, "application/json", `{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":5}`, body)
}

func TestHandlerNotification(t *testing.T) {
	ts := newServer(t)
	resp, body := post(t, ts.URL, "application/json", `{"jsonrpc":"2.0","method":"log","params":["x"]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)
}

func TestHandlerFaultIsStillOK(t *testing.T) {
	ts := newServer(t)
	resp, body := post(t, ts.URL, "application/json; charset=utf-8", `{"jsonrpc":"2.0",`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"code":-32700`)
	assert.Contains(t, body, `"id":0`)
}

func TestHandlerRejects(t *testing.T) {
	ts := newServer(t, httptransport.WithMaxBodyBytes(64))

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))

	resp, _ = post(t, ts.URL, "text/plain", `{}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = post(t, ts.URL, "application/json", `{"jsonrpc":"2.0","method":"log","params":["`+strings.Repeat("x", 100)+`"]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHandlerPath(t *testing.T) {
	ts := newServer(t, httptransport.WithPath("/rpc"))
	resp, _ := post(t, ts.URL+"/rpc", "", `{"jsonrpc":"2.0","method":"add","params":[1,1],"id":2}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = post(t, ts.URL+"/other", "", `{"jsonrpc":"2.0","method":"add","params":[1,1],"id":2}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCORS(t *testing.T) {
	ts := newServer(t, httptransport.WithCORS("https://app.example"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClientAdapterWithCaller(t *testing.T) {
	ts := newServer(t)
	adapter := httptransport.NewClientAdapter(ts.URL, httptransport.WithHTTPClient(ts.Client()))
	caller := client.NewCaller(adapter)

	v, err := caller.Call(context.Background(), "add", 20, 22)
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, err = caller.Call(context.Background(), "missing")
	assert.True(t, errors.Is(err, fault.MethodNotFound), "got %v", err)

	require.NoError(t, caller.Notify("log", "hi"))

	require.NoError(t, adapter.Close())
	assert.ErrorIs(t, caller.Err(), transport.ErrClosed)
	assert.ErrorIs(t, adapter.Transmit([]byte(`{}`)), transport.ErrClosed)
}

func TestClientAdapterHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	adapter := httptransport.NewClientAdapter(ts.URL)
	caller := client.NewCaller(adapter)
	_, err := caller.Call(context.Background(), "add", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
	assert.NoError(t, caller.Err(), "an HTTP failure must not disconnect the caller")
}

func TestClientAdapterHonorsCallContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	adapter := httptransport.NewClientAdapter(ts.URL)
	caller := client.NewCaller(adapter)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := caller.Call(ctx, "add", 1, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, caller.Err())

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, caller.NotifyContext(ctx, "log", "x"), context.DeadlineExceeded)
}
