// Package config provides configuration loading and management for dicomzarr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/dicomzarr/internal/compress"
	"github.com/mrsinham/dicomzarr/internal/zarrstore"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Paths to the three artifact roots
	Paths struct {
		// Raw is the directory holding the input series, one subdirectory
		// per series
		Raw string `yaml:"raw"`

		// Converted receives one array store and sidecar per series
		Converted string `yaml:"converted"`

		// Reconstructed receives one slice directory per series
		Reconstructed string `yaml:"reconstructed"`
	} `yaml:"paths"`

	// Compression settings applied to every chunk
	Compression struct {
		// Codec is the chunk codec: zstd, lz4 or none
		Codec string `yaml:"codec"`

		// Level is the codec compression level
		Level int `yaml:"level"`

		// Shuffle is the pre-compression filter: byte or none
		Shuffle string `yaml:"shuffle"`
	} `yaml:"compression"`

	// Verify compares every reconstruction against its source series
	Verify bool `yaml:"verify"`

	// Preview writes a PNG of each volume's middle slice next to the store
	Preview bool `yaml:"preview"`

	// Quiet suppresses progress output
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.Raw = "raw"
	cfg.Paths.Converted = "converted"
	cfg.Paths.Reconstructed = "reconstructed"

	cfg.Compression.Codec = compress.CodecZstd
	cfg.Compression.Level = 1
	cfg.Compression.Shuffle = zarrstore.ShuffleByte

	cfg.Verify = true
	cfg.Preview = false
	cfg.Quiet = false

	return cfg
}

// StoreConfig converts the compression section into the store's encoding
// configuration.
func (c *Config) StoreConfig() zarrstore.Config {
	return zarrstore.Config{
		Codec:   c.Compression.Codec,
		Level:   c.Compression.Level,
		Shuffle: c.Compression.Shuffle,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
