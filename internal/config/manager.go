package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ProviderConfig holds the credentials and model selection for one
// completion backend.
type ProviderConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"` // Optional override for the API base URL
}

// RepoConfig identifies the repository the execution engine targets.
type RepoConfig struct {
	Owner string `json:"owner,omitempty"`
	Name  string `json:"name,omitempty"`
	Token string `json:"token,omitempty"`
	// APIBase overrides the hosted API endpoint, for enterprise installs.
	APIBase string `json:"api_base,omitempty"`
}

// Config holds the user's persistent configuration preferences.
type Config struct {
	DefaultProvider string                    `json:"default_provider,omitempty"` // anthropic, openai, local
	Providers       map[string]ProviderConfig `json:"providers,omitempty"`

	RateLimit      int    `json:"rate_limit,omitempty"`       // requests per window, 0 = default
	RateWindowSecs int    `json:"rate_window_secs,omitempty"` // window length, 0 = default
	LedgerPath     string `json:"ledger_path,omitempty"`      // NDJSON audit stream location
	LedgerMax      int    `json:"ledger_max,omitempty"`       // in-memory entry cap, 0 = default
	UsageDBPath    string `json:"usage_db_path,omitempty"`    // sqlite usage store location
	MergeDelaySecs int    `json:"merge_delay_secs,omitempty"`
	RunTests       bool   `json:"run_tests"` // enable the sandboxed test run
	SandboxImage   string `json:"sandbox_image,omitempty"`
	TimeoutSecs    int    `json:"timeout_secs,omitempty"` // per-task deadline, 0 = none

	Repo RepoConfig `json:"repo,omitempty"`
}

// MergeDelay returns the configured delay as a duration.
func (c *Config) MergeDelay() time.Duration {
	return time.Duration(c.MergeDelaySecs) * time.Second
}

// RateWindow returns the configured window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSecs) * time.Second
}

// Timeout returns the per-task deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Provider returns the configuration for one backend, zero-valued when absent.
func (c *Config) Provider(name string) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[name]
}

// ApplyEnv overlays environment variables onto the file-backed values.
// Environment wins so a key never has to be written to disk.
func (c *Config) ApplyEnv() {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}

	overlayKey := func(name, envKey, envModel, envBase string) {
		p := c.Providers[name]
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(envModel); v != "" {
			p.Model = v
		}
		if v := os.Getenv(envBase); v != "" {
			p.BaseURL = v
		}
		c.Providers[name] = p
	}

	overlayKey("anthropic", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL")
	overlayKey("openai", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL")
	overlayKey("local", "LOCAL_API_KEY", "LOCAL_MODEL", "LOCAL_BASE_URL")

	if v := os.Getenv("AUTOPATCH_PROVIDER"); v != "" {
		c.DefaultProvider = v
	}
	if v := os.Getenv("AUTOPATCH_REPO_OWNER"); v != "" {
		c.Repo.Owner = v
	}
	if v := os.Getenv("AUTOPATCH_REPO_NAME"); v != "" {
		c.Repo.Name = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Repo.Token = v
	}
	if v := os.Getenv("AUTOPATCH_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSecs = n
		}
	}
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	return &Manager{
		configDir: filepath.Join(configDir, "autopatch"),
	}, nil
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk.
// If the file does not exist, it returns an empty Config and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := m.GetConfigPath()
	// Config can hold API keys; keep it owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}
