// Package config provides configuration loading and structs for the Manabi server.
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
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Content   ContentConfig   `yaml:"content"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	History   HistoryConfig   `yaml:"history"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ContentConfig locates the curriculum content produced by the extraction
// pipeline.
type ContentConfig struct {
	// Dir is the root directory holding chapter JSON documents.
	Dir string `yaml:"dir"`
	// ChapterMapping is the mapping file relating source documents to
	// chapter names and chapter JSON files. Relative paths resolve against
	// Dir.
	ChapterMapping string `yaml:"chapter_mapping"`
}

// EmbeddingConfig holds embedder settings. Provider selects the backend:
// onnx runs a local model, http calls an OpenAI-compatible embeddings
// endpoint, mock is deterministic and for tests only.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds routing and retrieval settings.
type RetrievalConfig struct {
	// RelevanceThreshold is the minimum chapter similarity for a question
	// to be answered from the curriculum.
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	DefaultResults     int     `yaml:"default_results"`
	MaxResults         int     `yaml:"max_results"`
	// CacheEnabled keeps built chapter indexes in memory between questions.
	// Defaults to true when unset.
	CacheEnabled *bool `yaml:"cache_enabled"`
	CacheSize    int   `yaml:"cache_size"`
}

// CacheEnabledOrDefault returns whether chapter index caching is on;
// defaults to true when unset.
func (r *RetrievalConfig) CacheEnabledOrDefault() bool {
	if r.CacheEnabled != nil {
		return *r.CacheEnabled
	}
	return true
}

// AnswerConfig holds settings for the chat completion backend.
type AnswerConfig struct {
	BaseURL            string  `yaml:"base_url"`
	APIKeyEnv          string  `yaml:"api_key_env"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature"`
	RewriteTemperature float64 `yaml:"rewrite_temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
}

// HistoryConfig holds the conversation history database location.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds content directory watch settings. The watcher follows
// the content directory and invalidates cached chapter indexes when files
// change.
type WatchConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Recursive *bool `yaml:"recursive"`
}

// EnabledOrDefault returns whether watching is on; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
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
	cfg.Content.Dir = expandPath(cfg.Content.Dir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.History.DatabasePath = expandPath(cfg.History.DatabasePath, configDir)

	// The mapping file lives with the content unless pointed elsewhere.
	if !filepath.IsAbs(cfg.Content.ChapterMapping) {
		cfg.Content.ChapterMapping = filepath.Join(cfg.Content.Dir, cfg.Content.ChapterMapping)
	}

	return &cfg, nil
}

// Save writes the config to path. Used by the init command to write a
// starter config.
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
