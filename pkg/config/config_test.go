package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig

	if cfg.API.URL != "http://localhost:8080/api" {
		t.Errorf("Expected API URL 'http://localhost:8080/api', got '%s'", cfg.API.URL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Expected API Timeout 30s, got %v", cfg.API.Timeout)
	}
	if !cfg.Submit.UseObjectStorage {
		t.Error("Expected Submit UseObjectStorage true by default")
	}
	if cfg.Submit.PollInterval != 5*time.Second {
		t.Errorf("Expected Submit PollInterval 5s, got %v", cfg.Submit.PollInterval)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected Logging Level 'INFO', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadConfig_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("QJOB_API_URL", "https://env.example.com/api")
	t.Setenv("QJOB_TOKEN", "env-token")
	t.Setenv("QJOB_POLL_INTERVAL", "2s")
	t.Setenv("QJOB_USE_OBJECT_STORAGE", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, path, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.URL != "https://env.example.com/api" {
		t.Errorf("Expected API URL 'https://env.example.com/api', got '%s'", cfg.API.URL)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("Expected API Token 'env-token', got '%s'", cfg.API.Token)
	}
	if cfg.Submit.PollInterval != 2*time.Second {
		t.Errorf("Expected Submit PollInterval 2s, got %v", cfg.Submit.PollInterval)
	}
	if cfg.Submit.UseObjectStorage {
		t.Error("Expected Submit UseObjectStorage false")
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected Logging Level 'DEBUG', got '%s'", cfg.Logging.Level)
	}
	if path == "" {
		t.Error("Expected config path to be reported")
	}
}

func TestLoadConfig_ClientApplicationNotCached(t *testing.T) {
	t.Setenv("QJOB_CLIENT_APPLICATION", "batman")

	cfg, _, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.ClientApplication != "batman" {
		t.Errorf("Expected ClientApplication 'batman', got '%s'", cfg.API.ClientApplication)
	}

	// A fresh load after the variable is removed must not see a stale value.
	os.Unsetenv("QJOB_CLIENT_APPLICATION")
	cfg2, _, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg2.API.ClientApplication != "" {
		t.Errorf("Expected empty ClientApplication after unset, got '%s'", cfg2.API.ClientApplication)
	}
}

func TestLoadConfig_ClientApplicationFromFileSurvives(t *testing.T) {
	configFile := t.TempDir() + "/qjob.yaml"
	testConfig := `
api:
  clientApplication: "from-file"
`
	if err := os.WriteFile(configFile, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv("QJOB_CONFIG_PATH", configFile)
	os.Unsetenv("QJOB_CLIENT_APPLICATION")

	cfg, _, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.ClientApplication != "from-file" {
		t.Errorf("Expected ClientApplication 'from-file', got '%s'", cfg.API.ClientApplication)
	}

	// A set variable still wins over the file.
	t.Setenv("QJOB_CLIENT_APPLICATION", "from-env")
	cfg2, _, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg2.API.ClientApplication != "from-env" {
		t.Errorf("Expected ClientApplication 'from-env', got '%s'", cfg2.API.ClientApplication)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	testConfig := `
api:
  url: "https://file.example.com/api"
  websocketUrl: "wss://file.example.com/ws"
  token: "file-token"
  timeout: "45s"
submit:
  useObjectStorage: false
  inlineLimit: 1024
  pollInterval: "3s"
  waitTimeout: "10m"
logging:
  level: "WARN"
  format: "json"
`
	configFile := t.TempDir() + "/qjob.yaml"
	if err := os.WriteFile(configFile, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv("QJOB_CONFIG_PATH", configFile)

	cfg, path, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if path != configFile {
		t.Errorf("Expected config path '%s', got '%s'", configFile, path)
	}
	if cfg.API.URL != "https://file.example.com/api" {
		t.Errorf("Expected API URL 'https://file.example.com/api', got '%s'", cfg.API.URL)
	}
	if cfg.API.WebsocketURL != "wss://file.example.com/ws" {
		t.Errorf("Expected WebsocketURL 'wss://file.example.com/ws', got '%s'", cfg.API.WebsocketURL)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("Expected API Timeout 45s, got %v", cfg.API.Timeout)
	}
	if cfg.Submit.InlineLimit != 1024 {
		t.Errorf("Expected InlineLimit 1024, got %d", cfg.Submit.InlineLimit)
	}
	if cfg.Submit.WaitTimeout != 10*time.Minute {
		t.Errorf("Expected WaitTimeout 10m, got %v", cfg.Submit.WaitTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected Logging Format 'json', got '%s'", cfg.Logging.Format)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "malformed api url",
			mutate:      func(c *Config) { c.API.URL = "not a url" },
			expectError: true,
			errorMsg:    "invalid api url",
		},
		{
			name:        "missing scheme",
			mutate:      func(c *Config) { c.API.URL = "example.com/api" },
			expectError: true,
			errorMsg:    "invalid api url",
		},
		{
			name:        "websocket url with http scheme",
			mutate:      func(c *Config) { c.API.WebsocketURL = "http://example.com/ws" },
			expectError: true,
			errorMsg:    "invalid websocket url",
		},
		{
			name:        "zero api timeout",
			mutate:      func(c *Config) { c.API.Timeout = 0 },
			expectError: true,
			errorMsg:    "invalid api timeout",
		},
		{
			name:        "negative inline limit",
			mutate:      func(c *Config) { c.Submit.InlineLimit = -1 },
			expectError: true,
			errorMsg:    "invalid inline limit",
		},
		{
			name:        "zero poll interval",
			mutate:      func(c *Config) { c.Submit.PollInterval = 0 },
			expectError: true,
			errorMsg:    "invalid poll interval",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "TRACE" },
			expectError: true,
			errorMsg:    "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected validation error for %s, but got none", tt.name)
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error message to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Unexpected validation error for %s: %v", tt.name, err)
			}
		})
	}
}

func TestGetWebsocketURL(t *testing.T) {
	cfg := DefaultConfig
	cfg.API.URL = "https://api.example.com/api"

	if got := cfg.GetWebsocketURL(); got != "wss://api.example.com/api" {
		t.Errorf("Expected derived 'wss://api.example.com/api', got '%s'", got)
	}

	cfg.API.URL = "http://localhost:8080/api"
	if got := cfg.GetWebsocketURL(); got != "ws://localhost:8080/api" {
		t.Errorf("Expected derived 'ws://localhost:8080/api', got '%s'", got)
	}

	cfg.API.WebsocketURL = "wss://stream.example.com"
	if got := cfg.GetWebsocketURL(); got != "wss://stream.example.com" {
		t.Errorf("Expected configured 'wss://stream.example.com', got '%s'", got)
	}
}
