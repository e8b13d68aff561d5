// Package config loads hivemind's configuration from a YAML file and
// lets environment variables override individual fields, the way
// internal/aider/config.go's AiderConfig/DefaultConfig pair worked in
// the teacher, generalized from one flat struct to the engine's
// sub-sections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// SnapshotConfig controls the periodic snapshot loop.
type SnapshotConfig struct {
	DataDir  string        `yaml:"data_dir" json:"data_dir"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// ReplicationConfig controls the outbound replication emitter.
type ReplicationConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	SinkURL string `yaml:"sink_url" json:"sink_url"`
}

// DevNATSConfig optionally starts an embedded NATS server so
// replication has somewhere to connect to without standing up an
// external broker, matching the teacher's embedded dev server.
type DevNATSConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" json:"provider"` // "local", "remote", or "" (disabled)
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Model    string `yaml:"model" json:"model"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

// ExtractionConfig selects and configures the LLM extraction provider.
type ExtractionConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Model    string `yaml:"model" json:"model"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

// Config is the root configuration for hivemindd.
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" json:"snapshot"`
	Replication ReplicationConfig `yaml:"replication" json:"replication"`
	DevNATS     DevNATSConfig     `yaml:"dev_nats" json:"dev_nats"`
	Embedding   EmbeddingConfig   `yaml:"embedding" json:"embedding"`
	Extraction  ExtractionConfig  `yaml:"extraction" json:"extraction"`
}

// DefaultConfig returns sensible defaults for hivemindd.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Snapshot: SnapshotConfig{
			DataDir:  "data",
			Interval: 5 * time.Minute,
		},
		Replication: ReplicationConfig{
			Enabled: false,
			SinkURL: "nats://localhost:4222",
		},
		DevNATS: DevNATSConfig{
			Enabled: false,
			Port:    4222,
		},
		Embedding: EmbeddingConfig{
			Provider: "",
			BaseURL:  "http://localhost:1234/v1",
			Model:    "text-embedding-local",
		},
		Extraction: ExtractionConfig{
			Provider: "",
			BaseURL:  "http://localhost:1234/v1",
			Model:    "local-llm",
		},
	}
}

// Load reads a YAML config file and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HIVEMIND_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("HIVEMIND_DATA_DIR"); v != "" {
		cfg.Snapshot.DataDir = v
	}
	if v := os.Getenv("HIVEMIND_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Interval = d
		}
	}
	if v := os.Getenv("HIVEMIND_REPLICATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Replication.Enabled = b
		}
	}
	if v := os.Getenv("HIVEMIND_REPLICATION_URL"); v != "" {
		cfg.Replication.SinkURL = v
	}
	if v := os.Getenv("HIVEMIND_DEV_NATS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DevNATS.Enabled = b
		}
	}
	if v := os.Getenv("HIVEMIND_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("HIVEMIND_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("HIVEMIND_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("HIVEMIND_EXTRACTION_PROVIDER"); v != "" {
		cfg.Extraction.Provider = v
	}
	if v := os.Getenv("HIVEMIND_EXTRACTION_BASE_URL"); v != "" {
		cfg.Extraction.BaseURL = v
	}
	if v := os.Getenv("HIVEMIND_EXTRACTION_API_KEY"); v != "" {
		cfg.Extraction.APIKey = v
	}
}
