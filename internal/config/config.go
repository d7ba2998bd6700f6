// Package config loads service configuration from the environment. A local
// .env file is honoured in development via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Routing  RoutingConfig
}

// ServiceConfig identifies the service in logs.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// NATSConfig configures the notification publisher. An empty URL disables
// publishing entirely.
type NATSConfig struct {
	URL string
}

// RoutingConfig holds the area and default owner every hand-off assigns.
// The responsible-area destination is the invoice's own origin area, so only
// the downstream departments are configured here.
type RoutingConfig struct {
	AccountingAreaID string
	AccountingUserID string
	TreasuryAreaID   string
	TreasuryUserID   string
}

// Load reads configuration from the environment, applying defaults suitable
// for local development.
func Load() (*Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "contabilidadcq"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: getEnv("DB_NAME", "contabilidadcq"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		Routing: RoutingConfig{
			AccountingAreaID: os.Getenv("ACCOUNTING_AREA_ID"),
			AccountingUserID: os.Getenv("ACCOUNTING_USER_ID"),
			TreasuryAreaID:   os.Getenv("TREASURY_AREA_ID"),
			TreasuryUserID:   os.Getenv("TREASURY_USER_ID"),
		},
	}

	if cfg.Routing.AccountingAreaID == "" || cfg.Routing.TreasuryAreaID == "" {
		return nil, fmt.Errorf("config: ACCOUNTING_AREA_ID and TREASURY_AREA_ID are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
