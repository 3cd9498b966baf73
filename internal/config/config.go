// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	GeneratorURL     string
	GeneratorAPIKey  string
	GeneratorTimeout time.Duration

	RetrievalURL     string
	RetrievalTimeout time.Duration

	AnalysisModel       string
	ImageryModel        string
	InterpretationModel string
}

// Load reads configuration from environment variables, applying defaults
// for everything except the credentials and connection strings that have no
// sensible default.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		GeneratorURL:        getEnv("GENERATOR_URL", "http://localhost:8001/v1"),
		GeneratorAPIKey:     os.Getenv("GENERATOR_API_KEY"),
		GeneratorTimeout:    getDuration("GENERATOR_TIMEOUT", 30*time.Second),
		RetrievalURL:        getEnv("RETRIEVAL_URL", "http://localhost:8002"),
		RetrievalTimeout:    getDuration("RETRIEVAL_TIMEOUT", 30*time.Second),
		AnalysisModel:       getEnv("ANALYSIS_MODEL", "gpt-4o-mini"),
		ImageryModel:        getEnv("IMAGERY_MODEL", "gpt-4o-mini"),
		InterpretationModel: getEnv("INTERPRETATION_MODEL", "gpt-4o"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: invalid %s %q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
