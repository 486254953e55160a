package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joeshaw/envdecode"
)

// Config holds every setting of the binary. Values come from the environment
// and may be overridden by flags.
type Config struct {
	Port            int           `env:"PORT,default=8787"`
	Host            string        `env:"MCP_HOST"`
	MaxBodySize     string        `env:"MCP_MAX_BODY_SIZE,default=4MiB"`
	KeepAlive       time.Duration `env:"MCP_SSE_KEEPALIVE,default=25s"`
	ShutdownTimeout time.Duration `env:"MCP_SHUTDOWN_TIMEOUT,default=10s"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPrefix     string        `env:"MCP_REDIS_PREFIX,default=mcp:relay:"`
	RedisClaimTTL   time.Duration `env:"MCP_REDIS_CLAIM_TTL,default=24h"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	LogFormat       string        `env:"LOG_FORMAT,default=json"`
	Metrics         bool          `env:"MCP_METRICS,default=true"`
}

// LoadConfig decodes Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("invalid keep-alive interval %s", c.KeepAlive)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %s", c.ShutdownTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q (want json or text)", c.LogFormat)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MaxBodyBytes parses MaxBodySize, accepting values like "4MiB" or "512KB".
func (c Config) MaxBodyBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxBodySize)
	if err != nil {
		return 0, fmt.Errorf("invalid max body size %q: %w", c.MaxBodySize, err)
	}
	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("invalid max body size %q", c.MaxBodySize)
	}
	return int64(n), nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
