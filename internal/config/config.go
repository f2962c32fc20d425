// Package config provides configuration loading and structs for the Tafsir server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the full-text index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// IngestConfig holds download and parsing settings for commentary ingestion.
type IngestConfig struct {
	// BaseURL is the fixed base for remote archive downloads; a source's
	// RemotePath is appended to it.
	BaseURL string `yaml:"base_url"`
	// AssetsDir holds bundled JSON datasets (bundled sources, word index).
	AssetsDir string `yaml:"assets_dir"`
	// TmpDir receives transient archive and JSON files during ingestion.
	TmpDir string `yaml:"tmp_dir"`
	// BatchSize is the record count at which buffered records are flushed.
	BatchSize int `yaml:"batch_size"`
	// ExpectedRecords drives the mid-parse progress estimate.
	ExpectedRecords int `yaml:"expected_records"`
	// SourcesPath optionally overrides the built-in source registry.
	SourcesPath string `yaml:"sources_path"`
	// WordIndexAsset is the bundled word-level dataset consumed by the
	// word-by-word parser branch.
	WordIndexAsset string `yaml:"word_index_asset"`
}

// WatchConfig holds drop-directory settings for local archive ingestion.
type WatchConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Ingest.AssetsDir = expandPath(cfg.Ingest.AssetsDir, configDir)
	cfg.Ingest.TmpDir = expandPath(cfg.Ingest.TmpDir, configDir)
	if cfg.Ingest.SourcesPath != "" {
		cfg.Ingest.SourcesPath = expandPath(cfg.Ingest.SourcesPath, configDir)
	}
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
