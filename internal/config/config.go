// Package config loads the service configuration once at startup. Components
// receive the values they need explicitly and never read the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	// GRPCAddr serves the gRPC health service; empty disables it.
	GRPCAddr string `yaml:"grpc_addr"`
	// TrustedProxies are addresses or CIDR ranges whose X-Forwarded-For
	// header is believed when identifying clients.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig holds token signing and login behaviour.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	Issuer           string `yaml:"issuer"`
	UnifyLoginErrors bool   `yaml:"unify_login_errors"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// RateLimitConfig configures the per-client login limiter.
type RateLimitConfig struct {
	Burst     int `yaml:"burst"`
	PerSecond int `yaml:"per_second"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			GRPCAddr:        ":5001",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer: "alliance-admin",
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "prod",
		},
		RateLimit: RateLimitConfig{
			Burst:     10,
			PerSecond: 1,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
	}
}

// Load reads the optional YAML file at path, applies AF_* environment
// overrides from lookup and validates the result.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("AF_HTTP_ADDR", &cfg.Server.Addr)
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		cfg.Server.Addr = ":" + strings.TrimSpace(port)
	}
	dur("AF_HTTP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur("AF_HTTP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	dur("AF_HTTP_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	str("AF_GRPC_ADDR", &cfg.Server.GRPCAddr)
	if v, ok := lookup("AF_TRUSTED_PROXIES"); ok {
		cfg.Server.TrustedProxies = splitList(v)
	}

	str("AF_PG_DSN", &cfg.Database.DSN)
	num("AF_PG_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	str("AF_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("AF_JWT_ISSUER", &cfg.Auth.Issuer)
	flag("AF_UNIFY_LOGIN_ERRORS", &cfg.Auth.UnifyLoginErrors)

	str("AF_LOG_LEVEL", &cfg.Log.Level)
	str("AF_ENV", &cfg.Log.Environment)

	num("AF_RATE_BURST", &cfg.RateLimit.Burst)
	num("AF_RATE_PER_SEC", &cfg.RateLimit.PerSecond)

	if v, ok := lookup("AF_CORS_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

// Validate checks if the configuration is valid. A missing JWT secret is not
// an error here: the service starts and reports a server error on use.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server addr is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max_body_bytes must be positive")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if err := validateProxy(proxy); err != nil {
			return err
		}
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.PerSecond <= 0 {
		return errors.New("rate_limit burst and per_second must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

func validateProxy(raw string) error {
	raw = strings.TrimSpace(raw)
	var err error
	if strings.Contains(raw, "/") {
		_, err = netip.ParsePrefix(raw)
	} else {
		_, err = netip.ParseAddr(raw)
	}
	if err != nil {
		return fmt.Errorf("server trusted_proxies: %q is not an address or CIDR range", raw)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
