// Package config loads application configuration from environment variables.
// All variables use the APTIS_ prefix.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Session    SessionConfig
	Log        LogConfig
	LevelsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	Host        string
	MaxUploadMB int
	CORSOrigins []string
}

// BackendConfig holds the question-bank backend settings.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables
// the audit table.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL keeps sessions
// in memory.
type CacheConfig struct {
	URL string
}

// SessionConfig holds preview session settings. With Dedupe set, uploading
// the same file for the same part again returns the existing session.
type SessionConfig struct {
	TTL    time.Duration
	Dedupe bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with APTIS_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        envInt("APTIS_SERVER_PORT", 8080),
			Host:        envStr("APTIS_SERVER_HOST", "0.0.0.0"),
			MaxUploadMB: envInt("APTIS_MAX_UPLOAD_MB", 20),
			CORSOrigins: envList("APTIS_CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Backend: BackendConfig{
			URL:     envStr("APTIS_BACKEND_URL", "http://localhost:4000/api"),
			Timeout: envDuration("APTIS_BACKEND_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("APTIS_DATABASE_URL", ""),
			MaxConns: envInt("APTIS_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("APTIS_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("APTIS_CACHE_URL", ""),
		},
		Session: SessionConfig{
			TTL:    envDuration("APTIS_SESSION_TTL", 24*time.Hour),
			Dedupe: envBool("APTIS_SESSION_DEDUPE", true),
		},
		Log: LogConfig{
			Level:  envStr("APTIS_LOG_LEVEL", "info"),
			Format: envStr("APTIS_LOG_FORMAT", "json"),
		},
		LevelsPath: envStr("APTIS_LEVELS_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("APTIS_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("APTIS_BACKEND_URL must be an http(s) URL, got %q", c.Backend.URL)
	}

	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("APTIS_MAX_UPLOAD_MB must be positive, got %d", c.Server.MaxUploadMB)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("APTIS_SESSION_TTL must be positive, got %s", c.Session.TTL)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("APTIS_DATABASE_MIN_CONNS (%d) exceeds APTIS_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("APTIS_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma-separated list, dropping blank entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
