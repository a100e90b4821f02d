// Package config provides configuration loading and management for Wayfarer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wayfarerhq/wayfarer/llm"
)

// Config represents the complete Wayfarer configuration.
type Config struct {
	Server Server           `yaml:"server"`
	Models map[string]Chain `yaml:"models"`
	Engine Engine           `yaml:"engine"`
	Tools  Tools            `yaml:"tools"`
	Store  Store            `yaml:"store"`
	NATS   NATS             `yaml:"nats"`
}

// Server configures the HTTP listener.
type Server struct {
	// Addr is the listen address (default ":8080").
	Addr string `yaml:"addr"`
	// ReadTimeout bounds request header+body reads.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Endpoint is one model endpoint in a capability chain.
type Endpoint struct {
	// Provider selects the wire format ("openai", "anthropic").
	Provider string `yaml:"provider"`
	// URL is the API base URL (empty = provider default).
	URL string `yaml:"url"`
	// Model is the provider-side model name.
	Model string `yaml:"model"`
	// MaxTokens caps response length (0 = endpoint default).
	MaxTokens int `yaml:"max_tokens"`
}

// Chain is an ordered endpoint fallback chain for one capability.
type Chain []Endpoint

// Engine configures the orchestration state machine.
type Engine struct {
	// MaxTransitions is the stage transition ceiling per run.
	MaxTransitions int `yaml:"max_transitions"`
	// MaxParallel bounds concurrent tool invocations per round.
	MaxParallel int `yaml:"max_parallel"`
	// StepTimeout bounds a single tool invocation.
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// Tools configures the tool registry and invoker.
type Tools struct {
	// Allowlist is glob patterns of allowed tool names (empty = allow all).
	Allowlist []string `yaml:"allowlist"`
	// FixtureDir holds JSON fixtures for fixture-backed tools.
	FixtureDir string `yaml:"fixture_dir"`
	// WatchFixtures reloads fixtures on file changes.
	WatchFixtures bool `yaml:"watch_fixtures"`
	// RatePerSecond throttles tool invocations (0 = unlimited).
	RatePerSecond float64 `yaml:"rate_per_second"`
	// RateBurst is the throttle burst size.
	RateBurst int `yaml:"rate_burst"`
	// KnowledgeURLs are travel guide pages ingested at startup.
	KnowledgeURLs []string `yaml:"knowledge_urls"`
}

// Store configures persistence.
type Store struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the SQLite database path (sqlite driver only).
	Path string `yaml:"path"`
}

// NATS configures the optional run event bus.
type NATS struct {
	// URL is the NATS server URL (empty = event publishing disabled).
	URL string `yaml:"url"`
}

// Default returns a Config with sensible defaults: a local OpenAI-compatible
// endpoint serving every capability, in-memory persistence, no broker.
func Default() *Config {
	local := Chain{{
		Provider: "openai",
		URL:      "http://localhost:11434/v1",
		Model:    "qwen2.5:32b",
	}}
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Models: map[string]Chain{
			string(llm.CapabilityPlanning): local,
			string(llm.CapabilityWriting):  local,
			string(llm.CapabilityFast):     local,
		},
		Engine: Engine{
			MaxTransitions: 20,
			MaxParallel:    8,
			StepTimeout:    60 * time.Second,
		},
		Tools: Tools{
			FixtureDir:    "fixtures",
			WatchFixtures: true,
			RatePerSecond: 10,
			RateBurst:     20,
		},
		Store: Store{
			Driver: "memory",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model chain is required")
	}
	for name, chain := range c.Models {
		if !llm.Capability(name).IsValid() {
			return fmt.Errorf("models.%s: unknown capability", name)
		}
		if len(chain) == 0 {
			return fmt.Errorf("models.%s: empty endpoint chain", name)
		}
		for i, ep := range chain {
			if ep.Provider == "" {
				return fmt.Errorf("models.%s[%d]: provider is required", name, i)
			}
			if ep.Model == "" {
				return fmt.Errorf("models.%s[%d]: model is required", name, i)
			}
		}
	}
	if c.Engine.MaxTransitions <= 0 {
		return fmt.Errorf("engine.max_transitions must be positive")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}
	return nil
}

// Registry builds an llm endpoint registry from the configured chains.
func (c *Config) Registry() *llm.Registry {
	registry := llm.NewRegistry()
	for name, chain := range c.Models {
		endpoints := make([]llm.Endpoint, len(chain))
		for i, ep := range chain {
			endpoints[i] = llm.Endpoint{
				Provider:  ep.Provider,
				URL:       ep.URL,
				Model:     ep.Model,
				MaxTokens: ep.MaxTokens,
			}
		}
		registry.SetChain(llm.Capability(name), endpoints)
	}
	return registry
}

// LoadFromFile loads configuration from a YAML file layered over defaults.
// ${VAR} references in the file are expanded from the environment before
// parsing so API URLs and paths can stay out of committed config.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one; other takes precedence for
// non-zero values. Model chains replace wholesale per capability.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadTimeout != 0 {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	for name, chain := range other.Models {
		if len(chain) > 0 {
			if c.Models == nil {
				c.Models = make(map[string]Chain)
			}
			c.Models[name] = chain
		}
	}

	if other.Engine.MaxTransitions != 0 {
		c.Engine.MaxTransitions = other.Engine.MaxTransitions
	}
	if other.Engine.MaxParallel != 0 {
		c.Engine.MaxParallel = other.Engine.MaxParallel
	}
	if other.Engine.StepTimeout != 0 {
		c.Engine.StepTimeout = other.Engine.StepTimeout
	}

	if len(other.Tools.Allowlist) > 0 {
		c.Tools.Allowlist = other.Tools.Allowlist
	}
	if other.Tools.FixtureDir != "" {
		c.Tools.FixtureDir = other.Tools.FixtureDir
	}
	if other.Tools.WatchFixtures {
		c.Tools.WatchFixtures = true
	}
	if other.Tools.RatePerSecond != 0 {
		c.Tools.RatePerSecond = other.Tools.RatePerSecond
	}
	if other.Tools.RateBurst != 0 {
		c.Tools.RateBurst = other.Tools.RateBurst
	}
	if len(other.Tools.KnowledgeURLs) > 0 {
		c.Tools.KnowledgeURLs = other.Tools.KnowledgeURLs
	}

	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
}
