package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gemchat/providers"
)

// Config is the completion configuration loaded from models.yaml.
// The API credential is deliberately NOT part of this file; it always comes
// from the GEMINI_API_KEY environment variable.
type Config struct {
	Endpoint   EndpointConfig             `yaml:"endpoint"`
	Candidates []string                   `yaml:"candidates"`
	Generation providers.GenerationParams `yaml:"generation"`
	Preamble   string                     `yaml:"preamble"`
}

// EndpointConfig from YAML
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DefaultPreamble steers answer style. Prepended to every user message.
const DefaultPreamble = "You are a helpful assistant. Answer the user's question clearly and concisely, in plain text without markdown formatting."

// Default returns the built-in configuration used when no models.yaml is
// present: the public API endpoint and the stock candidate order.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{BaseURL: providers.DefaultBaseURL},
		Candidates: []string{
			"gemini-1.5-flash",
			"gemini-1.5-flash-8b",
			"gemini-1.5-pro",
			"gemini-pro",
		},
		Generation: providers.DefaultGenerationParams(),
		Preamble:   DefaultPreamble,
	}
}

// Load reads a models.yaml file. A missing file is not an error: the
// defaults apply. Fields left empty in the file also fall back to their
// defaults, so a file may override just the candidate list.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if loaded.Endpoint.BaseURL != "" {
		cfg.Endpoint.BaseURL = expandEnv(loaded.Endpoint.BaseURL)
	}
	if len(loaded.Candidates) > 0 {
		cfg.Candidates = loaded.Candidates
	}
	if loaded.Generation != (providers.GenerationParams{}) {
		cfg.Generation = loaded.Generation
	}
	if loaded.Preamble != "" {
		cfg.Preamble = strings.TrimSpace(loaded.Preamble)
	}

	return cfg, nil
}

// expandEnv expands environment variables in a string, handling default
// values like ${VAR:-default}.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":-", 2)
		value := os.Getenv(parts[0])
		if value == "" && len(parts) > 1 {
			return parts[1]
		}
		return value
	})
}
