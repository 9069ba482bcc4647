// Package config loads lean-rpc settings. Environment variables override
// the config file, which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lean-rpc/loadbalance"
)

// EnvPrefix prefixes every environment override, e.g.
// LEANRPC_SERVER_ADDRESS for server.address.
const EnvPrefix = "LEANRPC"

type Config struct {
	Server   Server   `mapstructure:"server"`
	Registry Registry `mapstructure:"registry"`
	Limits   Limits   `mapstructure:"limits"`
	Log      Log      `mapstructure:"log"`
	Client   Client   `mapstructure:"client"`
}

type Server struct {
	Network         string        `mapstructure:"network"`
	Address         string        `mapstructure:"address"`
	Advertise       string        `mapstructure:"advertise"` // address announced to the registry; defaults to the bound address
	MaxConns        int           `mapstructure:"max_conns"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HTTPAddress     string        `mapstructure:"http_address"` // empty disables the HTTP endpoint
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type Registry struct {
	Endpoints   []string      `mapstructure:"endpoints"` // empty disables etcd
	Service     string        `mapstructure:"service"`
	TTL         int64         `mapstructure:"ttl"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Weight      int           `mapstructure:"weight"`
	Version     string        `mapstructure:"version"`
}

type Limits struct {
	Rate  float64 `mapstructure:"rate"` // calls per second; 0 disables rate limiting
	Burst int     `mapstructure:"burst"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	Output     string `mapstructure:"output"` // stdout, stderr or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Client struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Balancer string        `mapstructure:"balancer"`
	PoolSize int           `mapstructure:"pool_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.network", "tcp")
	v.SetDefault("server.address", "127.0.0.1:7070")
	v.SetDefault("server.advertise", "")
	v.SetDefault("server.max_conns", 1024)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.http_address", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("registry.endpoints", []string{})
	v.SetDefault("registry.service", "leanrpc")
	v.SetDefault("registry.ttl", 10)
	v.SetDefault("registry.dial_timeout", "3s")
	v.SetDefault("registry.weight", 1)
	v.SetDefault("registry.version", "")
	v.SetDefault("limits.rate", 0)
	v.SetDefault("limits.burst", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
	v.SetDefault("client.timeout", "10s")
	v.SetDefault("client.balancer", loadbalance.RoundRobin)
	v.SetDefault("client.pool_size", 1)
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads path (any format viper understands; empty skips the file),
// applies LEANRPC_* environment overrides and validates the result. A
// ".env" file in the working directory is loaded into the environment
// first when present.
func Load(path string) (*Config, error) {
	// Missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address must not be empty"))
	}
	switch c.Server.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		errs = append(errs, fmt.Errorf("server.network %q is not a stream network", c.Server.Network))
	}
	if c.Server.MaxConns < 0 {
		errs = append(errs, errors.New("server.max_conns must not be negative"))
	}
	if c.Limits.Rate < 0 {
		errs = append(errs, errors.New("limits.rate must not be negative"))
	}
	if c.Limits.Rate > 0 && c.Limits.Burst <= 0 {
		errs = append(errs, errors.New("limits.burst must be positive when rate limiting is enabled"))
	}
	if len(c.Registry.Endpoints) > 0 {
		if c.Registry.Service == "" {
			errs = append(errs, errors.New("registry.service must not be empty"))
		}
		if c.Registry.TTL <= 0 {
			errs = append(errs, errors.New("registry.ttl must be positive"))
		}
	}
	if _, err := loadbalance.New(c.Client.Balancer); err != nil {
		errs = append(errs, fmt.Errorf("client.balancer: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// AdvertiseAddr is the address announced to the registry.
func (c *Config) AdvertiseAddr() string {
	if c.Server.Advertise != "" {
		return c.Server.Advertise
	}
	return c.Server.Address
}
