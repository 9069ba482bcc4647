package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"lean-rpc/client"
	"lean-rpc/codec"
	"lean-rpc/config"
	"lean-rpc/loadbalance"
	"lean-rpc/registry"
	"lean-rpc/transport/httptransport"
	"lean-rpc/value"
)

var (
	callAddr    string
	callHTTP    string
	callService string
)

var callCmd = &cobra.Command{
	Use:   "call <method> [json-arg...]",
	Short: "Call a method and print its result as JSON",
	Long: `Call a method and print its result as JSON.

Each argument is parsed as JSON; anything that is not valid JSON is sent as
a string. The target is --http, else --addr, else a node of --service found
through registry.endpoints, else server.address.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, false)
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <method> [json-arg...]",
	Short: "Send a notification; nothing is printed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{callCmd, notifyCmd} {
		c.Flags().StringVarP(&callAddr, "addr", "a", "", "framed TCP address of the server")
		c.Flags().StringVar(&callHTTP, "http", "", "HTTP endpoint URL of the server")
		c.Flags().StringVarP(&callService, "service", "s", "", "service name to discover (default registry.service)")
		rootCmd.AddCommand(c)
	}
}

// target is a connected endpoint, whichever way it was reached.
type target struct {
	call   func(ctx context.Context, method string, args ...any) (value.Value, error)
	notify func(ctx context.Context, method string, args ...any) error
	close  func()
}

func runCall(cmd *cobra.Command, args []string, notification bool) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.Timeout)
	defer cancel()

	t, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer t.close()

	method, params := args[0], parseArgs(args[1:])
	if notification {
		return t.notify(ctx, method, params...)
	}
	result, err := t.call(ctx, method, params...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return nil
}

func parseArgs(args []string) []any {
	params := make([]any, len(args))
	for i, a := range args {
		v, err := codec.ParseValue([]byte(a))
		if err != nil {
			v = value.NewString(a)
		}
		params[i] = v
	}
	return params
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*target, error) {
	switch {
	case callHTTP != "":
		adapter := httptransport.NewClientAdapter(callHTTP, httptransport.WithClientLogger(logger))
		c := client.NewCaller(adapter, client.WithCallerLogger(logger))
		return &target{
			call: c.Call,
			notify: func(_ context.Context, method string, args ...any) error {
				return c.Notify(method, args...)
			},
			close: func() { adapter.Close() },
		}, nil

	case callAddr != "" || len(cfg.Registry.Endpoints) == 0:
		addr := callAddr
		if addr == "" {
			addr = cfg.AdvertiseAddr()
		}
		c, conn, err := client.Dial(ctx, cfg.Server.Network, addr, client.WithCallerLogger(logger))
		if err != nil {
			return nil, err
		}
		return &target{
			call: c.Call,
			notify: func(_ context.Context, method string, args ...any) error {
				return c.Notify(method, args...)
			},
			close: func() { conn.Close() },
		}, nil
	}

	reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints, cfg.Registry.DialTimeout, logger)
	if err != nil {
		return nil, err
	}
	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		reg.Close()
		return nil, err
	}
	service := callService
	if service == "" {
		service = cfg.Registry.Service
	}
	cli := client.NewClient(reg, bal, service,
		client.WithPoolSize(cfg.Client.PoolSize),
		client.WithDialTimeout(cfg.Registry.DialTimeout),
		client.WithLogger(logger))
	return &target{
		call:   cli.Call,
		notify: cli.Notify,
		close: func() {
			cli.Close()
			reg.Close()
		},
	}, nil
}
