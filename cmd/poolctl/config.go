// config.go - Configuration management for the pool client
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"poolcore/internal/safety"
)

// Config represents the application configuration
type Config struct {
	// Safety policy applied to every assembled transaction
	Safety safety.Policy `json:"safety"`

	// File paths
	SnapshotPath string `json:"snapshot_path"`
	NotesDir     string `json:"notes_dir"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Safety:       safety.DefaultPolicy(),
		SnapshotPath: "snapshots.json",
		NotesDir:     "notes",
		LogLevel:     "info",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}

		return &config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Safety.MaxValuePerTx <= 0 {
		return fmt.Errorf("safety.max_value_per_tx must be positive")
	}
	if c.Safety.MaxValuePerDay < c.Safety.MaxValuePerTx {
		return fmt.Errorf("safety.max_value_per_day must be at least max_value_per_tx")
	}
	if c.Safety.RateLimitPerHour <= 0 {
		return fmt.Errorf("safety.rate_limit_per_hour must be positive")
	}
	if c.Safety.MinWithdrawalDelayBlocks < 0 {
		return fmt.Errorf("safety.min_withdrawal_delay_blocks must not be negative")
	}
	if c.Safety.MinPoolRingSize < 0 {
		return fmt.Errorf("safety.min_pool_ring_size must not be negative")
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path must be set")
	}
	if c.NotesDir == "" {
		return fmt.Errorf("notes_dir must be set")
	}
	return nil
}
