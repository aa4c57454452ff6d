/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://192.168.195.6:8080)
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Schedule engine configuration
	ExpansionHorizon time.Duration // How far ahead occurrences are materialized.
	EngineTick       time.Duration // Interval between playback decision re-evaluations.

	// Auth configuration
	JWTSigningKey     string
	AdminUser         string
	AdminPasswordHash string // bcrypt hash; empty disables password login.
	TokenTTL          time.Duration

	// Export archive configuration. S3 when a bucket is set, local
	// filesystem otherwise.
	ExportDir         string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Snapshot cache configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Event fanout configuration
	NATSURL           string
	NATSSubjectPrefix string

	InstanceID        string
	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"GRIMNIRPLAYER_ENV", "PLAYER_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"GRIMNIRPLAYER_HTTP_BIND", "PLAYER_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"GRIMNIRPLAYER_HTTP_PORT", "PLAYER_HTTP_PORT"}, 8080),
		BaseURL:     getEnvAny([]string{"GRIMNIRPLAYER_BASE_URL", "PLAYER_BASE_URL"}, ""),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"GRIMNIRPLAYER_DB_BACKEND", "PLAYER_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"GRIMNIRPLAYER_DB_DSN", "PLAYER_DB_DSN"}, ""),
		MetricsBind: getEnvAny([]string{"GRIMNIRPLAYER_METRICS_BIND", "PLAYER_METRICS_BIND"}, "127.0.0.1:9000"),

		// Schedule engine configuration
		ExpansionHorizon: time.Duration(getEnvIntAny([]string{"GRIMNIRPLAYER_EXPANSION_HORIZON_DAYS", "PLAYER_EXPANSION_HORIZON_DAYS"}, 14)) * 24 * time.Hour,
		EngineTick:       time.Duration(getEnvIntAny([]string{"GRIMNIRPLAYER_ENGINE_TICK_SECONDS", "PLAYER_ENGINE_TICK_SECONDS"}, 5)) * time.Second,

		// Auth configuration
		JWTSigningKey:     getEnvAny([]string{"GRIMNIRPLAYER_JWT_SIGNING_KEY", "PLAYER_JWT_SIGNING_KEY"}, ""),
		AdminUser:         getEnvAny([]string{"GRIMNIRPLAYER_ADMIN_USER", "PLAYER_ADMIN_USER"}, "admin"),
		AdminPasswordHash: getEnvAny([]string{"GRIMNIRPLAYER_ADMIN_PASSWORD_HASH", "PLAYER_ADMIN_PASSWORD_HASH"}, ""),
		TokenTTL:          time.Duration(getEnvIntAny([]string{"GRIMNIRPLAYER_TOKEN_TTL_MINUTES", "PLAYER_TOKEN_TTL_MINUTES"}, 720)) * time.Minute,

		// Export archive configuration
		ExportDir:         getEnvAny([]string{"GRIMNIRPLAYER_EXPORT_DIR", "PLAYER_EXPORT_DIR"}, "./exports"),
		S3AccessKeyID:     getEnvAny([]string{"GRIMNIRPLAYER_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"GRIMNIRPLAYER_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"GRIMNIRPLAYER_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"GRIMNIRPLAYER_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"GRIMNIRPLAYER_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"GRIMNIRPLAYER_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"GRIMNIRPLAYER_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"GRIMNIRPLAYER_TRACING_ENABLED", "PLAYER_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GRIMNIRPLAYER_OTLP_ENDPOINT", "PLAYER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GRIMNIRPLAYER_TRACING_SAMPLE_RATE", "PLAYER_TRACING_SAMPLE_RATE"}, 1.0),

		// Snapshot cache configuration
		RedisAddr:     getEnvAny([]string{"GRIMNIRPLAYER_REDIS_ADDR", "PLAYER_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"GRIMNIRPLAYER_REDIS_PASSWORD", "PLAYER_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"GRIMNIRPLAYER_REDIS_DB", "PLAYER_REDIS_DB"}, 0),
		CacheTTL:      time.Duration(getEnvIntAny([]string{"GRIMNIRPLAYER_CACHE_TTL_SECONDS", "PLAYER_CACHE_TTL_SECONDS"}, 30)) * time.Second,

		// Event fanout configuration
		NATSURL:           getEnvAny([]string{"GRIMNIRPLAYER_NATS_URL", "PLAYER_NATS_URL"}, ""),
		NATSSubjectPrefix: getEnvAny([]string{"GRIMNIRPLAYER_NATS_SUBJECT_PREFIX", "PLAYER_NATS_SUBJECT_PREFIX"}, "grimnirplayer"),

		InstanceID: getEnvAny([]string{"GRIMNIRPLAYER_INSTANCE_ID", "PLAYER_INSTANCE_ID"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("GRIMNIRPLAYER_DB_DSN or PLAYER_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("GRIMNIRPLAYER_JWT_SIGNING_KEY or PLAYER_JWT_SIGNING_KEY must be provided")
	}

	if cfg.ExpansionHorizon <= 0 {
		return nil, fmt.Errorf("GRIMNIRPLAYER_EXPANSION_HORIZON_DAYS must be positive")
	}

	if cfg.EngineTick <= 0 {
		return nil, fmt.Errorf("GRIMNIRPLAYER_ENGINE_TICK_SECONDS must be positive")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.AdminPasswordHash == "" {
			return nil, fmt.Errorf("GRIMNIRPLAYER_ADMIN_PASSWORD_HASH must be set in production")
		}

		if len(cfg.JWTSigningKey) < 32 {
			return nil, fmt.Errorf("GRIMNIRPLAYER_JWT_SIGNING_KEY must be at least 32 bytes in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use GRIMNIRPLAYER_ENV (or PLAYER_ENV)",
		"JWT_SIGNING_KEY":     "use GRIMNIRPLAYER_JWT_SIGNING_KEY (or PLAYER_JWT_SIGNING_KEY)",
		"TRACING_ENABLED":     "use GRIMNIRPLAYER_TRACING_ENABLED (or PLAYER_TRACING_ENABLED)",
		"OTLP_ENDPOINT":       "use GRIMNIRPLAYER_OTLP_ENDPOINT (or PLAYER_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE": "use GRIMNIRPLAYER_TRACING_SAMPLE_RATE (or PLAYER_TRACING_SAMPLE_RATE)",
		"REDIS_ADDR":          "use GRIMNIRPLAYER_REDIS_ADDR (or PLAYER_REDIS_ADDR)",
		"NATS_URL":            "use GRIMNIRPLAYER_NATS_URL (or PLAYER_NATS_URL)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// CacheEnabled reports whether a Redis snapshot cache is configured.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.RedisAddr != ""
}

// EventsEnabled reports whether NATS event fanout is configured.
func (c *Config) EventsEnabled() bool {
	return c != nil && c.NATSURL != ""
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
