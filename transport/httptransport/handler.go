// Package httptransport carries lean-rpc messages over HTTP: one request
// envelope per POST body, the response (if any) in the reply body.
package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"lean-rpc/codec"
)

// DefaultMaxBodyBytes bounds a request body unless WithMaxBodyBytes says
// otherwise.
const DefaultMaxBodyBytes = 1 << 20

// RequestHandler turns one raw request into its encoded response. An empty
// result means no response is sent. *server.Server implements it.
type RequestHandler interface {
	HandleRequest(ctx context.Context, msg []byte) *codec.Data
}

type handlerConfig struct {
	path        string
	corsOrigins []string
	maxBody     int64
	logger      *slog.Logger
}

type HandlerOption func(*handlerConfig)

// WithPath mounts the endpoint somewhere other than "/".
func WithPath(path string) HandlerOption {
	return func(c *handlerConfig) { c.path = path }
}

// WithCORS answers preflight requests from the given origins.
func WithCORS(origins ...string) HandlerOption {
	return func(c *handlerConfig) { c.corsOrigins = origins }
}

func WithMaxBodyBytes(n int64) HandlerOption {
	return func(c *handlerConfig) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// Handler serves h over HTTP.
//
//	POST, JSON body → 200 application/json with the response
//	POST, notification → 204
//	other methods → 405, non-JSON Content-Type → 415
func Handler(h RequestHandler, opts ...HandlerOption) http.Handler {
	cfg := &handlerConfig{
		path:    "/",
		maxBody: DefaultMaxBodyBytes,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	if len(cfg.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Post(cfg.path, func(w http.ResponseWriter, req *http.Request) {
		serve(w, req, h, cfg)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "JSON-RPC requires POST method", http.StatusMethodNotAllowed)
	})
	return r
}

func serve(w http.ResponseWriter, req *http.Request, h RequestHandler, cfg *handlerConfig) {
	contentType := req.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, cfg.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		cfg.logger.Warn("httptransport: read body", "remote", req.RemoteAddr, "error", err)
		http.Error(w, "cannot read request body", http.StatusBadRequest)
		return
	}

	data := h.HandleRequest(req.Context(), body)
	if data.IsEmpty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data.Bytes()); err != nil {
		cfg.logger.Warn("httptransport: write response", "remote", req.RemoteAddr, "error", err)
	}
}
