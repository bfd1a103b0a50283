// Package config resolves everything forager needs before any component is
// built: the file-backed settings, the process environment, and the chat
// backend selected from the credentials found there.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	ferrors "github.com/HexSleeves/forager/internal/errors"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "forager.json"

type Config struct {
	// Chat backend settings
	LLM LLMConfig `mapstructure:"llm"`

	// Built-in web_scraper tool
	Scraper ScraperConfig `mapstructure:"scraper"`

	// Local query history
	History HistoryConfig `mapstructure:"history"`
}

type LLMConfig struct {
	OpenAIModel      string        `mapstructure:"openai_model"`
	AnthropicModel   string        `mapstructure:"anthropic_model"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	AnthropicBaseURL string        `mapstructure:"anthropic_base_url"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type ScraperConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	MaxLinks       int           `mapstructure:"max_links"`
	AllowedSchemes []string      `mapstructure:"allowed_schemes"`
	BlockedHosts   []string      `mapstructure:"blocked_hosts"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			OpenAIModel:      "gpt-4o-mini",
			AnthropicModel:   "claude-3-5-sonnet-20241022",
			OpenAIBaseURL:    "https://api.openai.com/v1",
			AnthropicBaseURL: "https://api.anthropic.com",
			MaxTokens:        1000,
			Temperature:      0.7,
			Timeout:          30 * time.Second,
		},
		Scraper: ScraperConfig{
			Timeout:        10 * time.Second,
			UserAgent:      "Mozilla/5.0 (compatible; forager/1.0)",
			MaxBodyBytes:   5 * 1024 * 1024,
			MaxLinks:       10,
			AllowedSchemes: []string{"http", "https"},
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     ".forager",
		},
	}
}

// settings flattens c into viper keys. It is the single list of known keys:
// defaults, env overrides and Save all go through it.
func (c *Config) settings() map[string]any {
	return map[string]any{
		"llm.openai_model":        c.LLM.OpenAIModel,
		"llm.anthropic_model":     c.LLM.AnthropicModel,
		"llm.openai_base_url":     c.LLM.OpenAIBaseURL,
		"llm.anthropic_base_url":  c.LLM.AnthropicBaseURL,
		"llm.max_tokens":          c.LLM.MaxTokens,
		"llm.temperature":         c.LLM.Temperature,
		"llm.timeout":             c.LLM.Timeout.String(),
		"scraper.timeout":         c.Scraper.Timeout.String(),
		"scraper.user_agent":      c.Scraper.UserAgent,
		"scraper.max_body_bytes":  c.Scraper.MaxBodyBytes,
		"scraper.max_links":       c.Scraper.MaxLinks,
		"scraper.allowed_schemes": c.Scraper.AllowedSchemes,
		"scraper.blocked_hosts":   c.Scraper.BlockedHosts,
		"history.enabled":         c.History.Enabled,
		"history.dir":             c.History.Dir,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}
	// FORAGER_LLM_TIMEOUT=5s overrides llm.timeout, and so on.
	v.SetEnvPrefix("FORAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, ferrors.NewConfigError("file", fmt.Errorf("read %s: %w", path, err))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, ferrors.NewConfigError("file", fmt.Errorf("decode %s: %w", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &nf)
}

// Validate rejects settings that would leave a network call unbounded or a
// generation budget empty.
func (c *Config) Validate() error {
	switch {
	case c.LLM.MaxTokens <= 0:
		return ferrors.NewConfigError("llm.max_tokens", fmt.Errorf("must be positive, got %d", c.LLM.MaxTokens))
	case c.LLM.Timeout <= 0:
		return ferrors.NewConfigError("llm.timeout", fmt.Errorf("must be positive, got %v", c.LLM.Timeout))
	case c.Scraper.Timeout <= 0:
		return ferrors.NewConfigError("scraper.timeout", fmt.Errorf("must be positive, got %v", c.Scraper.Timeout))
	case c.Scraper.MaxLinks < 0:
		return ferrors.NewConfigError("scraper.max_links", fmt.Errorf("must not be negative, got %d", c.Scraper.MaxLinks))
	}
	return nil
}

// HistoryPath joins parts under the history directory.
func (c *Config) HistoryPath(parts ...string) string {
	elems := append([]string{c.History.Dir}, parts...)
	return filepath.Join(elems...)
}

// Save writes c to path. The format follows the file extension.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	v := viper.New()
	for key, value := range c.settings() {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}
