// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package config loads CertLedger settings from defaults, a YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/logging"
	"github.com/certledger/certledger/internal/xdg"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// DatabaseURLEnv fills database.url when no other source sets it.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Session  SessionConfig  `koanf:"session"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr                 string        `koanf:"addr"`
	Prefix               string        `koanf:"prefix"`
	CookieName           string        `koanf:"cookie_name"`
	CookieSecure         bool          `koanf:"cookie_secure"`
	CORSOrigin           string        `koanf:"cors_origin"`
	MaxBodyBytes         int64         `koanf:"max_body_bytes"`
	ExposeInternalErrors bool          `koanf:"expose_internal_errors"`
	TrustProxyHeaders    bool          `koanf:"trust_proxy_headers"`
	LoginRatePerSecond   float64       `koanf:"login_rate_per_second"`
	LoginBurst           int           `koanf:"login_burst"`
	ShutdownTimeout      time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// SessionConfig selects the session store and lifetime.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// AuthConfig configures password hashing and registration.
type AuthConfig struct {
	Hasher     string `koanf:"hasher"`
	BcryptCost int    `koanf:"bcrypt_cost"`
	AutoLogin  bool   `koanf:"auto_login"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			Prefix:             "/api",
			CookieName:         "sid",
			MaxBodyBytes:       16 << 10,
			LoginRatePerSecond: 5,
			LoginBurst:         10,
			ShutdownTimeout:    10 * time.Second,
		},
		Database: DatabaseConfig{
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "certledger:",
		},
		Session: SessionConfig{
			Backend:       BackendPostgres,
			TTL:           auth.DefaultSessionTTL,
			SweepInterval: auth.DefaultSweepInterval,
		},
		Auth: AuthConfig{
			Hasher:     auth.HasherBcrypt,
			BcryptCost: auth.DefaultBcryptCost,
			AutoLogin:  true,
		},
		Log: LogConfig{
			Format: logging.FormatJSON,
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"metrics-addr":    "metrics.addr",
	"database-url":    "database.url",
	"session-backend": "session.backend",
	"session-ttl":     "session.ttl",
	"redis-addr":      "redis.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"auto-migrate":    "database.auto_migrate",
}

// RegisterFlags adds the flags Load understands to flags. Flag defaults are
// only descriptive; unset flags never override the file or built-in defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.Server.Addr, "HTTP API listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	flags.String("session-backend", d.Session.Backend, "session store: postgres, redis or memory")
	flags.Duration("session-ttl", d.Session.TTL, "session lifetime")
	flags.String("redis-addr", d.Redis.Addr, "Redis address for the redis session backend")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.Bool("auto-migrate", false, "apply pending migrations on startup")
}

// Load builds the configuration. path names a YAML file; when empty the XDG
// config file is used if it exists. flags may be nil.
// Precedence, lowest first: defaults, file, $DATABASE_URL, changed flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
// Database and Redis settings are only required by the backends that use them.
func (c Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return invalid("server.addr", "server.addr %q is not host:port", c.Server.Addr)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid("metrics.addr", "metrics.addr %q is not host:port", c.Metrics.Addr)
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("server.max_body_bytes", "server.max_body_bytes must be positive")
	}
	if c.Server.LoginRatePerSecond < 0 {
		return invalid("server.login_rate_per_second", "server.login_rate_per_second must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "server.shutdown_timeout must be positive")
	}

	switch c.Session.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database.url is required for the postgres session backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "redis.addr is required for the redis session backend")
		}
	case BackendMemory:
	default:
		return invalid("session.backend", "session.backend must be postgres, redis or memory, got %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session.ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", "session.sweep_interval must be positive")
	}

	switch c.Auth.Hasher {
	case auth.HasherBcrypt:
		if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
			return invalid("auth.bcrypt_cost", "auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case auth.HasherArgon2id:
	default:
		return invalid("auth.hasher", "auth.hasher must be %s or %s, got %q", auth.HasherBcrypt, auth.HasherArgon2id, c.Auth.Hasher)
	}

	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a level", c.Log.Level)
	}
	return nil
}
