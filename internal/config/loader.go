package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var current atomic.Pointer[Config]

// Get returns the current in-memory config (hot-reloaded when the file
// changes).
func Get() *Config { return current.Load() }

// Set sets the current in-memory config. Used at startup and by the file
// watcher.
func Set(c *Config) {
	if c != nil {
		current.Store(c)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML config at path, expands ${ENV} references, applies
// defaults, then lets CHATWIRE_* environment variables override individual
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration, with env overrides applied.
func Default() (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = "ws://localhost:19900/ws"
	}
	if cfg.API.URL == "" {
		cfg.API.URL = "http://localhost:19900/api"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.DelaySeconds <= 0 {
		cfg.Retry.DelaySeconds = 2
	}
	if cfg.Retry.HandshakeTimeoutSeconds <= 0 {
		cfg.Retry.HandshakeTimeoutSeconds = 20
	}
	if cfg.Stub.Port <= 0 {
		cfg.Stub.Port = 19900
	}
	if cfg.Stub.JanitorSchedule == "" {
		cfg.Stub.JanitorSchedule = "@every 5m"
	}
	if cfg.Stub.IdleTTLMinutes <= 0 {
		cfg.Stub.IdleTTLMinutes = 60
	}
}

func (r RetryConfig) RetryDelay() time.Duration {
	return time.Duration(r.DelaySeconds) * time.Second
}

func (r RetryConfig) HandshakeTimeout() time.Duration {
	return time.Duration(r.HandshakeTimeoutSeconds) * time.Second
}

func (s StubConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLMinutes) * time.Minute
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// ResolveHome returns the chatwire home directory.
// Priority: CHATWIRE_HOME env > ~/.chatwire/
func ResolveHome() string {
	if home := os.Getenv("CHATWIRE_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".chatwire"
	}
	return filepath.Join(userHome, ".chatwire")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > CHATWIRE_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}
