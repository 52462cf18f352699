package config

import (
	"fmt"
	"os"
	"strconv"

	"phasegrid/internal/segmentation"
)

// Config represents the complete application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Paths        PathConfig
	Segmentation segmentation.Params
}

// DatabaseConfig holds database connection settings. URL may be empty, in
// which case results stay in memory and nothing is persisted.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds read-only API server settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	InputFile string
	OutputDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Paths: PathConfig{
			InputFile: os.Getenv("INPUT_FILE"),
			OutputDir: getEnvOrDefault("OUTPUT_DIR", "."),
		},
		Segmentation: segmentation.Params{
			MinSegmentLength: getEnvIntOrDefault("MIN_SEGMENT_LENGTH", segmentation.DefaultParams().MinSegmentLength),
			CurvatureNoise:   getEnvFloatOrDefault("CURVATURE_NOISE", segmentation.DefaultParams().CurvatureNoise),
			SlopeNoise:       getEnvFloatOrDefault("SLOPE_NOISE", segmentation.DefaultParams().SlopeNoise),
		},
	}

	if err := cfg.Segmentation.Validate(); err != nil {
		return nil, fmt.Errorf("segmentation settings: %w", err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
