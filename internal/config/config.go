package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment with an
// optional .env file on top.
type Config struct {
	HTTPAddr     string
	DatabaseURL  string   // empty selects the in-memory store
	KafkaBrokers []string // empty disables event publishing
	LogLevel     string
}

// Load reads .env (if present) and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}
