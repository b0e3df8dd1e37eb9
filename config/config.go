// Package config handles loading and parsing the service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reviewpilot/reviewpilot/batch"
)

const (
	// DefaultConfigPath is the default path for the reviewpilot config file.
	DefaultConfigPath = "reviewpilot.yml"

	// DefaultModel is the Claude model used when none is configured.
	DefaultModel = "claude-3-5-sonnet-latest"

	// DefaultTokenBudget is the prompt budget used when none is configured.
	DefaultTokenBudget = 100000

	// MergeAppend appends secondary-pass findings after the primary review.
	MergeAppend = "append"
	// MergeDedupe drops secondary findings for files the primary review
	// already covered.
	MergeDedupe = "dedupe"
)

// ConfigParseError indicates a configuration file exists but contains invalid content.
// This is distinct from "file not found" errors, which should use default config.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid config at %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Config is the service configuration.
type Config struct {
	// Model is the Claude model used for reviews.
	Model string `yaml:"model"`
	// TokenBudget caps the size of an assembled review prompt, in tokens.
	TokenBudget int `yaml:"token_budget"`
	// MergePolicy controls how secondary-pass findings are combined with
	// the primary review. Valid values: "append", "dedupe".
	MergePolicy string `yaml:"merge_policy"`
	// SecondaryPass enables the follow-up bug-search pass over files that
	// only made it into the prompt as summary lines.
	SecondaryPass bool `yaml:"secondary_pass"`
	// Exclude is a list of glob patterns for files to skip during review.
	// Example: ["vendor/**", "*.gen.go", "docs/**"]
	Exclude []string `yaml:"exclude"`
	// Instructions provides custom guidance for the reviewer.
	// Example: "Focus on security. We use sqlc for DB queries."
	Instructions string `yaml:"instructions"`
	// Engine tunes the prompt batching engine. Zero values fall back to
	// the engine defaults.
	Engine EngineSettings `yaml:"engine"`
}

// EngineSettings is the YAML surface for the batching engine's tunables.
type EngineSettings struct {
	// LanguageWeights overrides prioritization weights per language name.
	LanguageWeights map[string]int `yaml:"language_weights,omitempty"`
	// ContextLines is the number of unchanged lines kept around additions
	// when a file is compressed.
	ContextLines *int `yaml:"context_lines,omitempty"`
	// SafetyMarginPercent is the share of the budget held back to absorb
	// token estimation error.
	SafetyMarginPercent *int `yaml:"safety_margin_percent,omitempty"`
	// SummaryCostTokens is the charge for a single summary line.
	SummaryCostTokens *int `yaml:"summary_cost_tokens,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:         DefaultModel,
		TokenBudget:   DefaultTokenBudget,
		MergePolicy:   MergeAppend,
		SecondaryPass: true,
	}
}

// Load reads and parses the config file at path. A missing file returns the
// default config; an unreadable or invalid one returns a ConfigParseError.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config, err := Parse(content)
	if err != nil {
		// Wrap parse errors so callers can distinguish from read errors
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	return config, nil
}

// Parse parses a config from YAML content.
func Parse(content []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration, filling empty fields with defaults.
func (c *Config) Validate() error {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.TokenBudget < 0 {
		return fmt.Errorf("invalid token_budget: %d (must be positive)", c.TokenBudget)
	}

	switch c.MergePolicy {
	case MergeAppend, MergeDedupe:
	case "":
		c.MergePolicy = MergeAppend
	default:
		return fmt.Errorf("invalid merge_policy value: %s (must be 'append' or 'dedupe')", c.MergePolicy)
	}

	if v := c.Engine.ContextLines; v != nil && *v < 0 {
		return fmt.Errorf("invalid context_lines: %d (must be non-negative)", *v)
	}
	if v := c.Engine.SafetyMarginPercent; v != nil && (*v < 0 || *v > 50) {
		return fmt.Errorf("invalid safety_margin_percent: %d (must be between 0 and 50)", *v)
	}
	if v := c.Engine.SummaryCostTokens; v != nil && *v < 1 {
		return fmt.Errorf("invalid summary_cost_tokens: %d (must be at least 1)", *v)
	}
	for lang, w := range c.Engine.LanguageWeights {
		if w < 0 {
			return fmt.Errorf("invalid language weight for %s: %d (must be non-negative)", lang, w)
		}
	}

	return nil
}

// EngineConfig materializes the engine tunables, applying overrides on top
// of the engine defaults.
func (c *Config) EngineConfig() batch.EngineConfig {
	cfg := batch.DefaultEngineConfig()
	for lang, w := range c.Engine.LanguageWeights {
		cfg.LanguageWeights[lang] = w
	}
	if v := c.Engine.ContextLines; v != nil {
		cfg.ContextLines = *v
	}
	if v := c.Engine.SafetyMarginPercent; v != nil {
		cfg.SafetyMarginPercent = *v
	}
	if v := c.Engine.SummaryCostTokens; v != nil {
		cfg.SummaryCostTokens = *v
	}
	return cfg
}

// ShouldExcludeFile returns true if the file path matches any exclude pattern.
func (c *Config) ShouldExcludeFile(path string) bool {
	for _, pattern := range c.Exclude {
		// Handle ** patterns by checking if any path segment matches
		if strings.Contains(pattern, "**") {
			// Convert ** pattern to check directory prefix
			prefix := strings.Split(pattern, "**")[0]
			if prefix != "" && strings.HasPrefix(path, prefix) {
				// Check suffix if present
				suffix := strings.Split(pattern, "**")[1]
				if suffix == "" || strings.HasSuffix(path, strings.TrimPrefix(suffix, "/")) {
					return true
				}
			}
			// Also try matching without ** (e.g., "vendor/**" matches "vendor/foo.go")
			if prefix != "" && strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")) {
				return true
			}
		}

		// Standard glob matching
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}

		// Also try matching just the filename for patterns like "*.gen.go"
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
