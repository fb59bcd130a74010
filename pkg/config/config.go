package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete client configuration
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Submit  SubmitConfig  `yaml:"submit" json:"submit"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds control-plane connection settings
type APIConfig struct {
	URL          string        `yaml:"url" json:"url"`
	WebsocketURL string        `yaml:"websocketUrl" json:"websocketUrl"`
	Token        string        `yaml:"token" json:"token"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	// ClientApplication is appended to the X-Qx-Client-Application header.
	// It is resolved at every Load, never cached globally, so two clients
	// built from separate Load calls can carry different values.
	ClientApplication string `yaml:"clientApplication" json:"clientApplication"`
}

// SubmitConfig holds job submission policy
type SubmitConfig struct {
	UseObjectStorage bool          `yaml:"useObjectStorage" json:"useObjectStorage"`
	InlineLimit      int           `yaml:"inlineLimit" json:"inlineLimit"`
	PollInterval     time.Duration `yaml:"pollInterval" json:"pollInterval"`
	WaitTimeout      time.Duration `yaml:"waitTimeout" json:"waitTimeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig Default configuration values
var DefaultConfig = Config{
	API: APIConfig{
		URL:     "http://localhost:8080/api",
		Timeout: 30 * time.Second,
	},
	Submit: SubmitConfig{
		UseObjectStorage: true,
		InlineLimit:      256 * 1024, // bytes
		PollInterval:     5 * time.Second,
		WaitTimeout:      1 * time.Hour,
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
	},
}

// LoadConfig loads configuration from multiple sources in order of precedence:
// 1. Environment variables (highest precedence)
// 2. Configuration file
// 3. Default values (lowest precedence)
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	loadFromEnv(&config)

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("QJOB_CONFIG_PATH"), // Custom path from environment
		"./qjob.yaml",                 // Current directory
		"./config/qjob.yaml",          // Config subdirectory
		"/etc/qjob/config.yaml",       // System-wide
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if val := os.Getenv("QJOB_API_URL"); val != "" {
		config.API.URL = val
	}
	if val := os.Getenv("QJOB_WEBSOCKET_URL"); val != "" {
		config.API.WebsocketURL = val
	}
	if val := os.Getenv("QJOB_TOKEN"); val != "" {
		config.API.Token = val
	}
	if val := os.Getenv("QJOB_API_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			config.API.Timeout = timeout
		}
	}
	// Read on every load so a freshly constructed client observes the
	// current environment, not the value at process start. An unset
	// variable leaves a file-configured value alone.
	if val, ok := os.LookupEnv("QJOB_CLIENT_APPLICATION"); ok {
		config.API.ClientApplication = val
	}

	if val := os.Getenv("QJOB_USE_OBJECT_STORAGE"); val != "" {
		config.Submit.UseObjectStorage = val == "true" || val == "1"
	}
	if val := os.Getenv("QJOB_INLINE_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			config.Submit.InlineLimit = limit
		}
	}
	if val := os.Getenv("QJOB_POLL_INTERVAL"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			config.Submit.PollInterval = interval
		}
	}
	if val := os.Getenv("QJOB_WAIT_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			config.Submit.WaitTimeout = timeout
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.API.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid api url: %s", c.API.URL)
	}

	if c.API.WebsocketURL != "" {
		wsURL, e := url.Parse(c.API.WebsocketURL)
		if e != nil || (wsURL.Scheme != "ws" && wsURL.Scheme != "wss") {
			return fmt.Errorf("invalid websocket url: %s", c.API.WebsocketURL)
		}
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("invalid api timeout: %s", c.API.Timeout)
	}

	if c.Submit.InlineLimit < 0 {
		return fmt.Errorf("invalid inline limit: %d", c.Submit.InlineLimit)
	}

	if c.Submit.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", c.Submit.PollInterval)
	}

	if c.Submit.WaitTimeout <= 0 {
		return fmt.Errorf("invalid wait timeout: %s", c.Submit.WaitTimeout)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// GetWebsocketURL returns the configured streaming endpoint, deriving one
// from the API URL when none is set.
func (c *Config) GetWebsocketURL() string {
	if c.API.WebsocketURL != "" {
		return c.API.WebsocketURL
	}

	derived := c.API.URL
	switch {
	case strings.HasPrefix(derived, "https://"):
		derived = "wss://" + strings.TrimPrefix(derived, "https://")
	case strings.HasPrefix(derived, "http://"):
		derived = "ws://" + strings.TrimPrefix(derived, "http://")
	}
	return derived
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadFromFile loads a specific configuration file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}
