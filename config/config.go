// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config holds configuration knobs for the HTTP server, the store backend and telemetry.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	StoreBackend     string
	PostgresDSN      string
	MongoURI         string
	MongoDatabase    string
	StoreCallTimeout time.Duration
	CascadePolicy    string

	KafkaBroker string
	KafkaTopic  string

	OTelEndpoint   string
	OTelAuthHeader string
	LogLevel       zapcore.Level
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults and rejects combinations the
// service cannot start with.
func Load() (Config, error) {
	c := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:  durenvs("SHUTDOWN_TIMEOUT", 15),
		StoreBackend:     getenv("STORE_BACKEND", BackendMemory),
		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		MongoURI:         getenv("MONGO_URI", ""),
		MongoDatabase:    getenv("MONGO_DATABASE", "shop"),
		StoreCallTimeout: durenvms("STORE_CALL_TIMEOUT_MS", 5000),
		CascadePolicy:    getenv("CASCADE_POLICY", "drop"),
		KafkaBroker:      getenv("KAFKA_BROKER", ""),
		KafkaTopic:       getenv("KAFKA_TOPIC", "inventory-events"),
		OTelEndpoint:     getenv("OTEL_ENDPOINT", ""),
		OTelAuthHeader:   getenv("OTEL_AUTH_HEADER", ""),
	}

	level, err := zapcore.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required for the %s backend", c.StoreBackend)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required for the %s backend", c.StoreBackend)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CascadePolicy {
	case "drop", "restore":
	default:
		return Config{}, fmt.Errorf("unknown CASCADE_POLICY %q", c.CascadePolicy)
	}
	return c, nil
}
