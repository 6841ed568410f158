// Package config provides configuration handling for stratrunner.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tradekit/stratrunner/pkg/storage"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Ephemeral store configuration (live logs, wallet markers)
	Ephemeral storage.EphemeralConfig `json:"ephemeral"`

	// Durable store configuration (action records)
	Durable storage.DurableConfig `json:"durable"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Feed configuration for polling clients
	Feed FeedConfig `json:"feed"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// Enabled indicates whether API authentication is required
	Enabled bool `json:"enabled"`

	// JWTSecret is the secret for signing JWT tokens
	JWTSecret string `json:"jwt_secret"`

	// TokenExpiration is the token expiration time in hours
	TokenExpiration int `json:"token_expiration"`

	// OperatorSecret is exchanged for a JWT at the login endpoint
	OperatorSecret string `json:"operator_secret"`
}

// FeedConfig contains settings for the polling feed client
type FeedConfig struct {
	// PollIntervalMS is the snapshot poll interval in milliseconds
	PollIntervalMS int `json:"poll_interval_ms"`

	// GraceDelayMS is how long vanished entries stay rendered, in milliseconds
	GraceDelayMS int `json:"grace_delay_ms"`

	// MaxEntries caps the rendered feed length
	MaxEntries int `json:"max_entries"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse the JSON
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Ephemeral: storage.EphemeralConfig{
			Type: storage.MemoryProviderType,
			Redis: &storage.RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Durable: storage.DurableConfig{
			Type: storage.MemoryProviderType,
			Postgres: &storage.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "stratrunner",
				User:     "stratrunner",
				SSLMode:  "disable",
			},
			DynamoDB: &storage.DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "stratrunner_",
			},
		},
		Auth: AuthConfig{
			TokenExpiration: 24,
		},
		Feed: FeedConfig{
			PollIntervalMS: 1000,
			GraceDelayMS:   1500,
			MaxEntries:     20,
		},
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Create the directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal the JSON
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
