package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lean-rpc/config"
	"lean-rpc/dispatcher"
	"lean-rpc/logs"
	"lean-rpc/middleware"
	"lean-rpc/registry"
	"lean-rpc/server"
	"lean-rpc/transport"
	"lean-rpc/transport/httptransport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo methods over framed TCP, and HTTP when configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, logger, nil)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) (*dispatcher.Dispatcher, error) {
	d := dispatcher.New()
	mws := []middleware.Middleware{
		middleware.RecoverMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	}
	if cfg.Limits.Rate > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Limits.Rate, cfg.Limits.Burst))
	}
	d.Use(mws...)
	if err := demoMethods(d, logger); err != nil {
		return nil, err
	}
	return d, nil
}

// runServe serves until ctx ends or a listener fails. ready, when not nil,
// receives the bound TCP address once connections are accepted.
//
// Shutdown order: deregister → stop HTTP → stop TCP (wait for connections).
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready chan<- net.Addr) error {
	d, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}

	ln, err := transport.Listen(cfg.Server.Network, cfg.Server.Address, cfg.Server.MaxConns, transport.WithListenerLogger(logger))
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() {
		errc <- ln.Serve(func(ctx context.Context, nc net.Conn) {
			err := transport.ServeConn(ctx, nc, func(c *transport.Conn) {
				server.New(c, d, server.WithLogger(logger), server.WithContext(ctx)).Enable()
			}, transport.WithConnLogger(logger))
			if err != nil {
				logger.Warn("connection ended", "remote", nc.RemoteAddr().String(), "error", err)
			}
		})
	}()

	var httpSrv *http.Server
	if cfg.Server.HTTPAddress != "" {
		opts := []httptransport.HandlerOption{httptransport.WithLogger(logger)}
		if len(cfg.Server.CORSOrigins) > 0 {
			opts = append(opts, httptransport.WithCORS(cfg.Server.CORSOrigins...))
		}
		httpSrv = &http.Server{
			Addr:              cfg.Server.HTTPAddress,
			Handler:           httptransport.Handler(server.New(nil, d, server.WithLogger(logger)), opts...),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.New(&logs.SlogWriter{Logger: logger, Level: slog.LevelError}, "", 0),
		}
		go func() {
			logger.Info("serving HTTP", "addr", cfg.Server.HTTPAddress)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	var (
		reg  *registry.EtcdRegistry
		inst registry.ServiceInstance
	)
	if len(cfg.Registry.Endpoints) > 0 {
		reg, inst, err = announce(ctx, cfg, ln.Addr().String(), logger)
		if err != nil {
			shutdownServers(cfg, logger, ln, httpSrv)
			return err
		}
	}

	if ready != nil {
		ready <- ln.Addr()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("server failed", "error", err)
	}

	// Deregister first so that clients stop picking this node.
	if reg != nil {
		dctx, cancel := context.WithTimeout(context.Background(), cfg.Registry.DialTimeout)
		if derr := reg.Deregister(dctx, cfg.Registry.Service, inst.ID); derr != nil {
			logger.Warn("deregister failed", "error", derr)
		}
		cancel()
		reg.Close()
	}
	shutdownServers(cfg, logger, ln, httpSrv)
	return err
}

// announce registers this node in etcd. The advertised address defaults to
// the bound one, so port 0 works.
func announce(ctx context.Context, cfg *config.Config, bound string, logger *slog.Logger) (*registry.EtcdRegistry, registry.ServiceInstance, error) {
	reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints, cfg.Registry.DialTimeout, logger)
	if err != nil {
		return nil, registry.ServiceInstance{}, err
	}
	addr := cfg.Server.Advertise
	if addr == "" {
		addr = bound
	}
	inst := registry.NewInstance(addr, cfg.Registry.Weight, cfg.Registry.Version)

	rctx, cancel := context.WithTimeout(ctx, cfg.Registry.DialTimeout)
	defer cancel()
	if err := reg.Register(rctx, cfg.Registry.Service, inst, cfg.Registry.TTL); err != nil {
		reg.Close()
		return nil, registry.ServiceInstance{}, err
	}
	return reg, inst, nil
}

func shutdownServers(cfg *config.Config, logger *slog.Logger, ln *transport.Listener, httpSrv *http.Server) {
	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("HTTP shutdown", "error", err)
		}
		cancel()
	}
	if err := ln.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("TCP shutdown", "error", err)
	}
	logger.Info("bye")
}
