// Package config loads mobetta settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings shared by the mobetta commands. Command line
// flags override them.
type Config struct {
	// DBPath is the database file; ":memory:" opens a private in-memory one.
	DBPath string
	// Encoding is the text encoding for newly created databases.
	Encoding string
	// MinAliasLen is the shortest text that is aliased instead of copied.
	MinAliasLen int
	// LogLevel is debug, info, warn or error.
	LogLevel slog.Level
	// LogFormat is "text" or "json".
	LogFormat string
	// ExportFormat is the default output of the query command.
	ExportFormat string
	// SeedRows is the number of users created by the seed command.
	SeedRows int
	// BenchConnections is the number of connections read in parallel by the
	// bench command.
	BenchConnections int
	// BenchIterations is the number of full table reads per connection.
	BenchIterations int
	// QueryTimeout bounds a single query or export.
	QueryTimeout time.Duration
}

func Load() *Config {
	return &Config{
		DBPath:           getEnv("MOBETTA_DB", "mobetta.db"),
		Encoding:         getEnv("MOBETTA_ENCODING", "UTF-8"),
		MinAliasLen:      getEnvInt("MOBETTA_MIN_ALIAS_LEN", 16),
		LogLevel:         getEnvLevel("MOBETTA_LOG_LEVEL", slog.LevelInfo),
		LogFormat:        getEnv("MOBETTA_LOG_FORMAT", "text"),
		ExportFormat:     getEnv("MOBETTA_EXPORT_FORMAT", "csv"),
		SeedRows:         getEnvInt("MOBETTA_SEED_ROWS", 10000),
		BenchConnections: getEnvInt("MOBETTA_BENCH_CONNECTIONS", 4),
		BenchIterations:  getEnvInt("MOBETTA_BENCH_ITERATIONS", 10),
		QueryTimeout:     getEnvDuration("MOBETTA_QUERY_TIMEOUT", 5*time.Minute),
	}
}

// NewLogger builds the logger described by the config.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return fallback
}
