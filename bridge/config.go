package bridge

import (
	"fmt"
	"os"
)

const (
	envSourceURL      = "BRIDGE_SOURCE_NATS_URL"
	envTargetURL      = "BRIDGE_TARGET_NATS_URL"
	envSourceStream   = "BRIDGE_SOURCE_STREAM"
	envTargetStream   = "BRIDGE_TARGET_STREAM"
	envSubjectMapPath = "BRIDGE_SUBJECT_MAP"
	envMetricsAddr    = "BRIDGE_METRICS_ADDR"
)

// Config controls the source/target JetStream endpoints.
type Config struct {
	SourceURL       string
	TargetURL       string
	SourceStream    string
	TargetStream    string
	SubjectMappings []SubjectMapping
	MetricsAddr     string
}

// Validate ensures required fields are populated.
func (c Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("source NATS URL is required")
	}
	if c.TargetURL == "" {
		return fmt.Errorf("target NATS URL is required")
	}
	if c.SourceStream == "" {
		return fmt.Errorf("source stream is required")
	}
	if c.TargetStream == "" {
		return fmt.Errorf("target stream is required")
	}
	return nil
}

// FromEnv loads configuration from environment variables. The optional
// BRIDGE_SUBJECT_MAP points at a YAML mapping file.
func FromEnv() (Config, error) {
	cfg := Config{
		SourceURL:    os.Getenv(envSourceURL),
		TargetURL:    os.Getenv(envTargetURL),
		SourceStream: os.Getenv(envSourceStream),
		TargetStream: os.Getenv(envTargetStream),
		MetricsAddr:  os.Getenv(envMetricsAddr),
	}

	if path := os.Getenv(envSubjectMapPath); path != "" {
		mappings, err := LoadSubjectMappings(path)
		if err != nil {
			return Config{}, err
		}
		cfg.SubjectMappings = mappings
	}

	return cfg, cfg.Validate()
}
