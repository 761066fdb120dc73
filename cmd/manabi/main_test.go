package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is a fraction", "-n", "12"},
			expected: []string{"-n", "12", "what is a fraction"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-n", "12", "what is a fraction"},
			expected: []string{"-n", "12", "what is a fraction"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is a fraction"},
			expected: []string{"what is a fraction"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"ordering", "fractions", "-topic", "Comparing Fractions"},
			expected: []string{"-topic", "Comparing Fractions", "ordering", "fractions"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"photosynthesis"}, "photosynthesis"},
		{"multiple words", []string{"what", "is", "a", "fraction"}, "what is a fraction"},
		{"single quoted phrase", []string{"what is a fraction"}, "what is a fraction"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
		{"one space", []string{" "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestNewEmbedder_mockProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 16

	e := newEmbedder(cfg, zap.NewNop())
	defer e.Close()
	if _, ok := e.(*embedding.MockEmbedder); !ok {
		t.Errorf("newEmbedder() = %T, want *embedding.MockEmbedder", e)
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions() = %d, want 16", e.Dimensions())
	}
}

func TestNewEmbedder_fallsBackToMockWithoutModel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = config.ProviderONNX
	cfg.Embedding.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	cfg.Embedding.Dimensions = 16
	cfg.Embedding.MaxTokens = 128
	cfg.Embedding.CacheSize = 8

	e := newEmbedder(cfg, zap.NewNop())
	defer e.Close()
	if _, ok := e.(*embedding.MockEmbedder); !ok {
		t.Errorf("newEmbedder() = %T, want *embedding.MockEmbedder fallback", e)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
history:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
history:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}
