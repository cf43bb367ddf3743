// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/lexia-dev/lexia/internal/secrets"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// Variable store modes.
const (
	StoreProcess = "process"
	StoreRequest = "request"
)

// Config is the top-level Lexia configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Variables VariablesConfig `mapstructure:"variables"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// OpenAIConfig holds the fallback credentials and endpoint used when a
// request does not carry its own OPENAI_API_KEY variable.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// PromptConfig sets server-wide prompt overrides.
type PromptConfig struct {
	SystemMessage string `mapstructure:"system_message"`
	ProjectFile   string `mapstructure:"project_file"`
}

// VariablesConfig selects where applied variables are written.
// "process" writes to the process environment, "request" gives each
// request an isolated store.
type VariablesConfig struct {
	Store string `mapstructure:"store"`
}

// LogConfig controls the slog handler installed by the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("openai.max_retries", 2)
	v.SetDefault("prompt.system_message", "")
	v.SetDefault("prompt.project_file", "")
	v.SetDefault("variables.store", StoreProcess)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SetupEnv binds LEXIA_-prefixed environment variables, e.g.
// LEXIA_SERVER_LISTEN overrides server.listen.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("LEXIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (or defaults only when path is empty)
// with LEXIA_ environment overrides. keyring:// values are resolved through
// store when it is non-nil.
func Load(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, lexiaerr.Errorf(lexiaerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
		WarnInsecurePermissions(path)
	}

	return FromViper(v, store)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper, store secrets.Store) (*Config, error) {
	if store != nil {
		if err := secrets.ResolveViperSecrets(v, store); err != nil {
			slog.Warn("some config secrets could not be resolved", "error", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, lexiaerr.Errorf(lexiaerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, lexiaerr.Errorf(lexiaerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateOpenAI()...)
	errs = append(errs, c.validateVariables()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		return append(errs, invalid("server.listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, lexiaerr.Errorf(lexiaerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
	}

	port, err := strconv.Atoi(portStr)
	switch {
	case err != nil:
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	case port < 0 || port > 65535:
		errs = append(errs, invalid("server.listen port must be between 0 and 65535, got %d", port))
	}

	for i, origin := range c.Server.CORSOrigins {
		if origin == "" {
			errs = append(errs, invalid("server.cors_origins[%d] must not be empty", i))
		}
	}

	return errs
}

func (c *Config) validateOpenAI() []error {
	var errs []error

	if c.OpenAI.BaseURL == "" {
		errs = append(errs, invalid("openai.base_url must not be empty"))
	} else if u, err := url.Parse(c.OpenAI.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, invalid("openai.base_url must be an absolute URL, got %q", c.OpenAI.BaseURL))
	}

	if c.OpenAI.Model == "" {
		errs = append(errs, invalid("openai.model must not be empty"))
	}

	if c.OpenAI.MaxRetries < 0 {
		errs = append(errs, invalid("openai.max_retries must not be negative, got %d", c.OpenAI.MaxRetries))
	}

	if secrets.IsKeyringURI(c.OpenAI.APIKey) {
		slog.Warn("openai.api_key is still a keyring reference; requests without their own key will be rejected")
	}

	return errs
}

func (c *Config) validateVariables() []error {
	switch c.Variables.Store {
	case StoreProcess, StoreRequest:
		return nil
	default:
		return []error{invalid("variables.store must be one of [process, request], got %q", c.Variables.Store)}
	}
}

func (c *Config) validateLog() []error {
	var errs []error

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, invalid("log.format must be one of [text, json], got %q", c.Log.Format))
	}

	return errs
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, invalid("log.level must be one of [debug, info, warn, error], got %q", level)
	}
	return l, nil
}

// HasOpenAIKey reports whether a usable fallback key is configured.
func (c *Config) HasOpenAIKey() bool {
	return c.OpenAI.APIKey != "" && !secrets.IsKeyringURI(c.OpenAI.APIKey)
}

func invalid(format string, args ...any) error {
	return lexiaerr.Errorf(lexiaerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}
