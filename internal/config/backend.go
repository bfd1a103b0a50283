package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	ferrors "github.com/HexSleeves/forager/internal/errors"
)

// Provider names a chat backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// credentialOrder is the fixed priority in which credentials are looked up.
// The first one present selects the backend.
var credentialOrder = []struct {
	env      string
	provider Provider
}{
	{"OPENAI_API_KEY", ProviderOpenAI},
	{"ANTHROPIC_API_KEY", ProviderAnthropic},
}

// ErrNoCredential is wrapped by the ConfigError Resolve returns when no
// recognized credential is present.
var ErrNoCredential = errors.New("no API key found: set OPENAI_API_KEY or ANTHROPIC_API_KEY")

// Backend is a fully resolved chat backend: everything an adapter needs,
// nothing it has to look up itself.
type Backend struct {
	Provider    Provider
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Environment is a snapshot of environment variables.
type Environment map[string]string

// Lookup returns the non-blank value of key.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ProcessEnvironment snapshots os.Environ.
func ProcessEnvironment() Environment {
	env := make(Environment)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// LoadEnvironment snapshots the process environment and fills in keys from
// the dotenv file at path. Variables already set in the process win.
// A missing dotenv file is not an error.
func LoadEnvironment(path string) (Environment, error) {
	env := ProcessEnvironment()
	if path == "" {
		return env, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return env, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, ferrors.NewConfigError("env_file", fmt.Errorf("read %s: %w", path, err))
	}
	// viper lower-cases keys; environment variable names are upper case.
	for key, value := range v.AllSettings() {
		name := strings.ToUpper(key)
		if _, ok := env[name]; ok {
			continue
		}
		env[name] = fmt.Sprint(value)
	}
	return env, nil
}

// Resolve picks the chat backend from the credentials in env, first match
// wins, and fills it from cfg. No credential is a ConfigError.
func Resolve(cfg *Config, env Environment) (Backend, error) {
	for _, c := range credentialOrder {
		key, ok := env.Lookup(c.env)
		if !ok {
			continue
		}
		b := Backend{
			Provider:    c.provider,
			APIKey:      key,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}
		switch c.provider {
		case ProviderOpenAI:
			b.Model = cfg.LLM.OpenAIModel
			b.BaseURL = cfg.LLM.OpenAIBaseURL
		case ProviderAnthropic:
			b.Model = cfg.LLM.AnthropicModel
			b.BaseURL = cfg.LLM.AnthropicBaseURL
		}
		return b, nil
	}
	return Backend{}, ferrors.NewConfigError("credentials", ErrNoCredential)
}
