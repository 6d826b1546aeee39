// Package config holds the host configuration. Values are read once from a
// .env file and the process environment and then passed explicitly to the
// components that need them.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names.
const (
	ProviderStatic    = "static"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderVertex    = "vertex"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full host configuration.
type Config struct {
	Provider     string
	Model        string
	// APIKey is the explicit key (STEPFLOW_API_KEY or a flag). It wins over
	// ProviderKeys, which holds the provider specific variables found by Load.
	APIKey       string
	ProviderKeys map[string]string
	BaseURL      string
	Project      string
	Location     string
	Credentials  string
	MaxTokens    int64
	Temperature  float64

	// StaticText is the answer of the static provider.
	StaticText string

	// Retries is the number of attempts per node, ModelRetries the number
	// of attempts per model invocation.
	Retries      int
	ModelRetries int
	Timeout      time.Duration
	Trace        bool

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Provider:     ProviderStatic,
		StaticText:   "calm and mild",
		Timeout:      2 * time.Minute,
		Retries:      1,
		ModelRetries: 1,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads the dotenv file at path, if it exists, and the environment
// returned by getenv. Environment values take precedence over the file.
func Load(path string, getenv func(string) string) (Config, error) {
	file := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			file = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(keys ...string) string {
		for _, key := range keys {
			if v := getenv(key); v != "" {
				return v
			}
		}
		for _, key := range keys {
			if v := file[key]; v != "" {
				return v
			}
		}
		return ""
	}

	c := Default()
	if v := lookup("STEPFLOW_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	c.Model = lookup("STEPFLOW_MODEL")
	c.BaseURL = lookup("STEPFLOW_BASE_URL")
	c.Project = lookup("STEPFLOW_PROJECT", "GOOGLE_CLOUD_PROJECT")
	c.Location = lookup("STEPFLOW_LOCATION", "GOOGLE_CLOUD_LOCATION")
	c.Credentials = lookup("STEPFLOW_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")
	c.APIKey = lookup("STEPFLOW_API_KEY")
	for _, name := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if v := lookup(providerKeyVars[name]...); v != "" {
			if c.ProviderKeys == nil {
				c.ProviderKeys = make(map[string]string)
			}
			c.ProviderKeys[name] = v
		}
	}
	if v := lookup("STEPFLOW_STATIC_TEXT"); v != "" {
		c.StaticText = v
	}
	if v := lookup("STEPFLOW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := lookup("STEPFLOW_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}

	var err error
	if v := lookup("STEPFLOW_MAX_TOKENS"); v != "" {
		if c.MaxTokens, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_MAX_TOKENS: %w", err)
		}
	}
	if v := lookup("STEPFLOW_TEMPERATURE"); v != "" {
		if c.Temperature, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_TEMPERATURE: %w", err)
		}
	}
	if v := lookup("STEPFLOW_TIMEOUT"); v != "" {
		if c.Timeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_TIMEOUT: %w", err)
		}
	}
	if v := lookup("STEPFLOW_RETRIES"); v != "" {
		if c.Retries, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_RETRIES: %w", err)
		}
	}
	if v := lookup("STEPFLOW_MODEL_RETRIES"); v != "" {
		if c.ModelRetries, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_MODEL_RETRIES: %w", err)
		}
	}
	if v := lookup("STEPFLOW_TRACE"); v != "" {
		if c.Trace, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("config: STEPFLOW_TRACE: %w", err)
		}
	}
	return c, nil
}

// providerKeyVars lists the variables consulted for each provider's API key.
var providerKeyVars = map[string][]string{
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Key returns the API key for the selected provider. The provider is read at
// call time, so flags applied after Load are honored.
func (c *Config) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.ProviderKeys[c.Provider]
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch c.Provider {
	case ProviderStatic:
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.Key() == "" {
			return invalid("provider %s requires an api key", c.Provider)
		}
		if c.Model == "" {
			return invalid("provider %s requires a model", c.Provider)
		}
	case ProviderVertex:
		if c.Project == "" || c.Location == "" {
			return invalid("provider %s requires a project and a location", c.Provider)
		}
		if c.Model == "" {
			return invalid("provider %s requires a model", c.Provider)
		}
	default:
		return invalid("unknown provider %q", c.Provider)
	}
	if c.Timeout < 0 {
		return invalid("timeout must not be negative")
	}
	if c.Retries < 1 || c.ModelRetries < 1 {
		return invalid("retries must be at least 1")
	}
	if c.MaxTokens < 0 || c.MaxTokens > math.MaxInt32 {
		return invalid("max tokens %d out of range [0, %d]", c.MaxTokens, math.MaxInt32)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return invalid("temperature %v out of range [0, 2]", c.Temperature)
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return invalid("unknown log level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("unknown log format %q", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger creates a logger writing to w in the configured format and level.
// It does not set the global logger.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
