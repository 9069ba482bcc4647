package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lean-rpc/config"
	"lean-rpc/logs"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "leanrpc",
	Short: "lean-rpc JSON-RPC 2.0 node and client",
	Long: `leanrpc serves a small demo method table over framed TCP and HTTP,
and calls methods on any lean-rpc server found by address or through etcd.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json); LEANRPC_* variables override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", fmt.Sprintf("log level (%s), overrides log.level", strings.Join(logs.Levels.Available, ", ")))
}

// setup loads the configuration and installs the process logger. The
// returned cleanup closes the log output.
func setup() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, closer := logs.Setup(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, func() { closer.Close() }, nil
}
