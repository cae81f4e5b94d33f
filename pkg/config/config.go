// Package config loads the host application configuration: the thin
// environment-driven settings that select adapters around the simulation
// core (TLS data source, result-store sink, logging, metrics), as opposed
// to the simulation Configuration itself (internal/simulation/config),
// which models the fund/loan/zone parameters themselves.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// AppConfig is the host configuration: everything the orchestrator's
// external collaborators (TLS provider, result store, logger, metrics)
// need, none of which is part of the simulation Configuration.
type AppConfig struct {
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
	TLS     TLSConfig     `json:"tls"`
	Results ResultsConfig `json:"results"`
}

// LoggingConfig controls the pkg/logger encoder.
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	Encoding    string `json:"encoding"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// TLSConfig selects the Traffic-Light-System suburb data source.
// TLS_MOCK defaults to true: production TLS connectivity is out of the
// core's scope, so the mock provider is the only implementation
// shipped; a production source would be wired here behind the same
// tls.Provider interface.
type TLSConfig struct {
	Mock bool `json:"mock"`
}

// ResultsConfig selects the result-store sink. DBURL/UseS3/S3* are
// recognized but are consumed only by out-of-scope sink adapters; this
// engine wires a file sink under Dir and an in-memory sink, see
// DESIGN.md for why SQL/S3 clients are not implemented here.
type ResultsConfig struct {
	Dir    string `json:"dir"`
	DBURL  string `json:"db_url,omitempty"`
	UseS3  bool   `json:"use_s3"`
	S3Opts S3Options `json:"s3,omitempty"`
}

// S3Options mirrors the S3_* environment variables; unused unless USE_S3
// is set and an S3-backed store is wired in by the host application.
type S3Options struct {
	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Load builds an AppConfig from environment variables, then overlays a JSON
// config file named by CONFIG_FILE if present.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
			Encoding:    getEnv("LOG_ENCODING", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Port:    getEnvAsInt("METRICS_PORT", 9090),
		},
		TLS: TLSConfig{
			Mock: getEnvAsBool("TLS_MOCK", true),
		},
		Results: ResultsConfig{
			Dir:   getEnv("RESULTS_DIR", "./results"),
			DBURL: getEnv("DB_URL", ""),
			UseS3: getEnvAsBool("USE_S3", false),
			S3Opts: S3Options{
				Bucket: getEnv("S3_BUCKET", ""),
				Region: getEnv("S3_REGION", ""),
				Prefix: getEnv("S3_PREFIX", ""),
			},
		},
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
