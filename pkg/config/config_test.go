package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tradekit/stratrunner/pkg/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Check default values
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected default host to be 'localhost', got '%s'", cfg.Server.Host)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Server.Port)
	}

	if cfg.Ephemeral.Type != storage.MemoryProviderType {
		t.Errorf("Expected default ephemeral store type to be 'memory', got '%s'", cfg.Ephemeral.Type)
	}

	if cfg.Durable.Type != storage.MemoryProviderType {
		t.Errorf("Expected default durable store type to be 'memory', got '%s'", cfg.Durable.Type)
	}

	if cfg.Auth.Enabled {
		t.Error("Expected auth to be disabled by default")
	}

	if cfg.Feed.PollIntervalMS != 1000 {
		t.Errorf("Expected default poll interval to be 1000ms, got %d", cfg.Feed.PollIntervalMS)
	}

	if cfg.Feed.GraceDelayMS != 1500 {
		t.Errorf("Expected default grace delay to be 1500ms, got %d", cfg.Feed.GraceDelayMS)
	}

	if cfg.Feed.MaxEntries != 20 {
		t.Errorf("Expected default max entries to be 20, got %d", cfg.Feed.MaxEntries)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	// Create a temporary directory for the test
	tempDir, err := os.MkdirTemp("", "stratrunner-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Create a config file path
	configPath := filepath.Join(tempDir, "config.json")

	// Create a test config
	originalCfg := DefaultConfig()
	originalCfg.Server.Host = "testhost"
	originalCfg.Server.Port = 9090
	originalCfg.Ephemeral.Type = storage.RedisProviderType
	originalCfg.Durable.Type = storage.PostgresProviderType
	originalCfg.Feed.MaxEntries = 50

	// Save the config
	if err := SaveConfig(originalCfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// Load the config
	loadedCfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Check that the loaded config matches the original
	if loadedCfg.Server.Host != originalCfg.Server.Host {
		t.Errorf("Expected host to be '%s', got '%s'", originalCfg.Server.Host, loadedCfg.Server.Host)
	}

	if loadedCfg.Server.Port != originalCfg.Server.Port {
		t.Errorf("Expected port to be %d, got %d", originalCfg.Server.Port, loadedCfg.Server.Port)
	}

	if loadedCfg.Ephemeral.Type != originalCfg.Ephemeral.Type {
		t.Errorf("Expected ephemeral store type to be '%s', got '%s'", originalCfg.Ephemeral.Type, loadedCfg.Ephemeral.Type)
	}

	if loadedCfg.Durable.Type != originalCfg.Durable.Type {
		t.Errorf("Expected durable store type to be '%s', got '%s'", originalCfg.Durable.Type, loadedCfg.Durable.Type)
	}

	if loadedCfg.Feed.MaxEntries != originalCfg.Feed.MaxEntries {
		t.Errorf("Expected max entries to be %d, got %d", originalCfg.Feed.MaxEntries, loadedCfg.Feed.MaxEntries)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(os.TempDir(), "does-not-exist.json")); err == nil {
		t.Error("Expected an error loading a missing config file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "stratrunner-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "config.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Error("Expected an error loading invalid JSON")
	}
}
