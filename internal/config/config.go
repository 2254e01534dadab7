// Package config provides configuration loading and structs for the triage server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	LLM           LLMConfig           `yaml:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Decision      DecisionConfig      `yaml:"decision"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	RequestTimeout int    `yaml:"request_timeout_secs"`
}

// StorageConfig holds paths for the database and personal indexes.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	PersonalIndexDir string `yaml:"personal_index_dir"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai | hash
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig configures the generative decision client.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// TranscriptionConfig configures the speech-to-text collaborator.
type TranscriptionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig configures guideline retrieval.
type RetrievalConfig struct {
	IndexName string `yaml:"index_name"`
	TopK      int    `yaml:"top_k"`
}

// DecisionConfig configures decision fallback behavior.
type DecisionConfig struct {
	// FallbackResponse is used when the model cannot be reached. Empty disables the fallback.
	FallbackResponse *string `yaml:"fallback_response"`
}

// DispatchConfig holds downstream responder endpoints.
type DispatchConfig struct {
	AmbulanceURL string `yaml:"ambulance_url"`
	CaretakerURL string `yaml:"caretaker_url"`
	PharmacyURL  string `yaml:"pharmacy_url"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	// RetryCount applies only to failed connects; delivered requests are never resent.
	RetryCount   int    `yaml:"retry_count"`
}

// Timeout returns the per-call dispatch timeout.
func (d *DispatchConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSecs) * time.Second
}

// Timeout returns the generative call timeout.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// Fallback returns the configured fallback label, or "" when disabled.
func (d *DecisionConfig) Fallback() string {
	if d.FallbackResponse == nil {
		return ""
	}
	return strings.TrimSpace(*d.FallbackResponse)
}

// APIKey reads the API key from the named environment variable.
func APIKey(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
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
	cfg.Storage.PersonalIndexDir = expandPath(cfg.Storage.PersonalIndexDir, configDir)

	return &cfg, nil
}

// Validate reports configuration that would prevent the server from dispatching.
func (c *Config) Validate() error {
	var missing []string
	if c.Dispatch.AmbulanceURL == "" {
		missing = append(missing, "dispatch.ambulance_url")
	}
	if c.Dispatch.CaretakerURL == "" {
		missing = append(missing, "dispatch.caretaker_url")
	}
	if c.Dispatch.PharmacyURL == "" {
		missing = append(missing, "dispatch.pharmacy_url")
	}
	if c.Embedding.Provider != "openai" && c.Embedding.Provider != "hash" {
		return fmt.Errorf("unknown embedding provider: %s (supported: openai, hash)", c.Embedding.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
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
