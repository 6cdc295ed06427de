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
	BaseURL     string // Public base URL (e.g., http://192.168.10.4:8080)
	DBBackend   DatabaseBackend
	DBDSN       string

	JWTSigningKey string
	MetricsBind   string

	// Multi-instance configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InstanceID    string

	// Planning defaults
	FallbackOutputRate float64 // kg/h substituted when a job carries no usable rate

	// Kind→lane allow-lists, comma separated lane names. An empty list
	// leaves the kind unrestricted.
	CleaningLanes    []string
	MaintenanceLanes []string

	// QC lab lookup
	QCCacheTTLMinutes int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("VOLUND_ENV", "development"),
		HTTPBind:    getEnv("VOLUND_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("VOLUND_HTTP_PORT", 8080),
		BaseURL:     getEnv("VOLUND_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("VOLUND_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("VOLUND_DB_DSN", "volund.db"),

		JWTSigningKey: getEnv("VOLUND_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("VOLUND_METRICS_BIND", "127.0.0.1:9000"),

		RedisAddr:     getEnv("VOLUND_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("VOLUND_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("VOLUND_REDIS_DB", 0),
		InstanceID:    getEnv("VOLUND_INSTANCE_ID", ""),

		FallbackOutputRate: getEnvFloat("VOLUND_FALLBACK_OUTPUT_RATE", 50),

		CleaningLanes:    getEnvList("VOLUND_CLEANING_LANES"),
		MaintenanceLanes: getEnvList("VOLUND_MAINTENANCE_LANES"),

		QCCacheTTLMinutes: getEnvInt("VOLUND_QC_CACHE_TTL_MINUTES", 15),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VOLUND_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("VOLUND_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.DBBackend == DatabaseSQLite {
		if cfg.DBDSN == "volund.db" {
			return nil, fmt.Errorf("VOLUND_DB_DSN must point at a dedicated path in production")
		}
	}

	if cfg.FallbackOutputRate <= 0 {
		return nil, fmt.Errorf("VOLUND_FALLBACK_OUTPUT_RATE must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
