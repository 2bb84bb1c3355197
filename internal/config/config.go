// Package config loads the application's pool/runtime configuration from a
// TOML file, overridable by environment variables, matching the precedence
// flags > env > file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/ldi/taskpool/pkg/pool"
)

// Config is the application's runtime configuration: the pool's
// constructor parameters plus the ambient components built around it.
type Config struct {
	MaxThreads    int    `toml:"max_threads"`
	MaxQueueLen   int    `toml:"max_queue_len"`
	IdleTimeoutMs int64  `toml:"idle_timeout_ms"`
	StackSizeKB   int    `toml:"stack_size_kb"`
	AuditDBPath   string `toml:"audit_db_path"`
	MCPListen     string `toml:"mcp_listen"`
	LogLevel      string `toml:"log_level"`
}

// IdleTimeout converts the configured millisecond idle timeout into a
// time.Duration for pool.New.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// Default returns the configuration spec.md §6 documents as the pool's
// defaults, plus this module's own ambient-component defaults.
func Default() Config {
	return Config{
		MaxThreads:    pool.DefaultMaxThreads,
		MaxQueueLen:   pool.DefaultMaxQueueLen,
		IdleTimeoutMs: pool.DefaultIdleMillis,
		StackSizeKB:   0,
		AuditDBPath:   "taskpool-audit.db",
		MCPListen:     "127.0.0.1:7711",
		LogLevel:      "info",
	}
}

// Load reads path (falling back to $XDG_CONFIG_HOME/taskpool/config.toml
// then ./taskpool.toml if path is empty and neither exists), applies any
// .env file in the working directory, then applies TASKPOOL_* environment
// overrides on top. A missing TOML file is not an error: Load returns
// Default() overridden by whatever env vars are set.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = resolvePath()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load() // best-effort; absent .env is not an error

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func resolvePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate := filepath.Join(xdg, "taskpool", "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("taskpool.toml"); err == nil {
		return "taskpool.toml"
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupInt("TASKPOOL_MAX_THREADS"); ok {
		cfg.MaxThreads = v
	}
	if v, ok := lookupInt("TASKPOOL_MAX_QUEUE_LEN"); ok {
		cfg.MaxQueueLen = v
	}
	if v, ok := lookupInt64("TASKPOOL_IDLE_TIMEOUT_MS"); ok {
		cfg.IdleTimeoutMs = v
	}
	if v, ok := lookupInt("TASKPOOL_STACK_SIZE_KB"); ok {
		cfg.StackSizeKB = v
	}
	if v := os.Getenv("TASKPOOL_AUDIT_DB_PATH"); v != "" {
		cfg.AuditDBPath = v
	}
	if v := os.Getenv("TASKPOOL_MCP_LISTEN"); v != "" {
		cfg.MCPListen = v
	}
	if v := os.Getenv("TASKPOOL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func lookupInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lookupInt64(name string) (int64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
