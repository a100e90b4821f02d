package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wayfarerhq/wayfarer/llm"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Engine.MaxTransitions != 20 {
		t.Errorf("expected default transition ceiling 20, got %d", cfg.Engine.MaxTransitions)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory store by default, got %s", cfg.Store.Driver)
	}
	for _, cap := range []string{"planning", "writing", "fast"} {
		chain, ok := cfg.Models[cap]
		if !ok || len(chain) == 0 {
			t.Errorf("expected a default chain for capability %s", cap)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "no model chains",
			modify:  func(c *Config) { c.Models = nil },
			wantErr: true,
		},
		{
			name:    "unknown capability",
			modify:  func(c *Config) { c.Models["sorcery"] = c.Models["fast"] },
			wantErr: true,
		},
		{
			name:    "empty chain",
			modify:  func(c *Config) { c.Models["fast"] = Chain{} },
			wantErr: true,
		},
		{
			name:    "endpoint without provider",
			modify:  func(c *Config) { c.Models["fast"] = Chain{{Model: "m"}} },
			wantErr: true,
		},
		{
			name:    "endpoint without model",
			modify:  func(c *Config) { c.Models["fast"] = Chain{{Provider: "openai"}} },
			wantErr: true,
		},
		{
			name:    "non-positive transition ceiling",
			modify:  func(c *Config) { c.Engine.MaxTransitions = 0 },
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			modify:  func(c *Config) { c.Store.Driver = "sqlite" },
			wantErr: true,
		},
		{
			name: "sqlite with path",
			modify: func(c *Config) {
				c.Store.Driver = "sqlite"
				c.Store.Path = "wayfarer.db"
			},
			wantErr: false,
		},
		{
			name:    "unknown store driver",
			modify:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wayfarer.yaml")
	content := `
server:
  addr: ":9090"
engine:
  max_transitions: 30
  step_timeout: 90s
models:
  planning:
    - provider: anthropic
      model: claude-sonnet
      max_tokens: 8192
store:
  driver: sqlite
  path: ${WAYFARER_DB_PATH}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WAYFARER_DB_PATH", "/tmp/test.db")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Engine.MaxTransitions != 30 {
		t.Errorf("expected 30 transitions, got %d", cfg.Engine.MaxTransitions)
	}
	if cfg.Engine.StepTimeout != 90*time.Second {
		t.Errorf("expected 90s step timeout, got %v", cfg.Engine.StepTimeout)
	}
	if cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("expected env-expanded store path, got %s", cfg.Store.Path)
	}
	// Defaults survive under fields the file doesn't set.
	if cfg.Engine.MaxParallel != 8 {
		t.Errorf("expected default max_parallel 8, got %d", cfg.Engine.MaxParallel)
	}
	if len(cfg.Models["planning"]) != 1 || cfg.Models["planning"][0].Provider != "anthropic" {
		t.Errorf("expected the planning chain from the file, got %+v", cfg.Models["planning"])
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.Addr = ":7070"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Server.Addr != ":7070" {
		t.Errorf("expected round-tripped addr :7070, got %s", loaded.Server.Addr)
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Merge(&Config{
		Server: Server{Addr: ":6060"},
		Engine: Engine{MaxTransitions: 40},
		Models: map[string]Chain{
			"fast": {{Provider: "openai", Model: "gpt-mini"}},
		},
		Tools: Tools{Allowlist: []string{"search_*"}},
		NATS:  NATS{URL: "nats://localhost:4222"},
	})

	if base.Server.Addr != ":6060" {
		t.Errorf("expected merged addr :6060, got %s", base.Server.Addr)
	}
	if base.Server.ReadTimeout != 30*time.Second {
		t.Errorf("zero fields must not clobber defaults, got %v", base.Server.ReadTimeout)
	}
	if base.Engine.MaxTransitions != 40 {
		t.Errorf("expected merged ceiling 40, got %d", base.Engine.MaxTransitions)
	}
	if base.Engine.MaxParallel != 8 {
		t.Errorf("expected default max_parallel preserved, got %d", base.Engine.MaxParallel)
	}
	if base.Models["fast"][0].Model != "gpt-mini" {
		t.Errorf("expected the fast chain replaced, got %+v", base.Models["fast"])
	}
	if len(base.Models["planning"]) == 0 {
		t.Error("untouched chains must survive a merge")
	}
	if base.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected merged NATS url, got %s", base.NATS.URL)
	}

	base.Merge(nil) // must not panic
}

func TestRegistry(t *testing.T) {
	cfg := Default()
	cfg.Models["planning"] = Chain{
		{Provider: "anthropic", Model: "claude-sonnet", MaxTokens: 8192},
		{Provider: "openai", URL: "http://localhost:11434/v1", Model: "qwen2.5:32b"},
	}

	registry := cfg.Registry()

	chain := registry.Chain(llm.CapabilityPlanning)
	if len(chain) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(chain))
	}
	if chain[0].Provider != "anthropic" || chain[0].MaxTokens != 8192 {
		t.Errorf("unexpected first endpoint: %+v", chain[0])
	}
	if chain[1].URL != "http://localhost:11434/v1" {
		t.Errorf("unexpected second endpoint: %+v", chain[1])
	}
}

func TestLoaderExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explicit.yaml")
	content := `
server:
  addr: ":5050"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(nil).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":5050" {
		t.Errorf("expected addr from explicit config, got %s", cfg.Server.Addr)
	}
}

func TestLoaderRejectsInvalidExplicitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
engine:
  max_transitions: -1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(nil).Load(path); err == nil {
		t.Error("expected validation failure for a negative transition ceiling")
	}
}
