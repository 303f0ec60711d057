// Package settings resolves teacherflow's runtime settings from an optional
// config file and the process environment. Environment variables win.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shroroh/teacherflow/pkg/flowgraph/config"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/llm"
)

// Defaults.
const (
	DefaultLogDir        = "logs"
	DefaultCachePath     = "llm_cache.db"
	DefaultMemoryEntries = 256
	DefaultOutputDir     = "output"
	DefaultFormat        = "pdf"
	DefaultFont          = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"
	DefaultMaxAttempts   = 3
	DefaultRetryWait     = 10 * time.Second
	DefaultTimeout       = 5 * time.Minute
)

// Env looks up an environment variable.
type Env func(key string) (string, bool)

// OSEnv reads the process environment.
func OSEnv() Env {
	return os.LookupEnv
}

// MapEnv serves lookups from m.
func MapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Settings is the resolved configuration of one process.
type Settings struct {
	LLM          llm.ProviderConfig
	LogDir       string
	Cache        Cache
	Output       Output
	Retry        Retry
	StudentsPath string

	// CheckpointPath is the stage snapshot database. Empty disables it.
	CheckpointPath string
}

// Cache locates the prompt cache.
type Cache struct {
	Path          string
	MemoryEntries int
}

// Output controls document emission.
type Output struct {
	Dir    string
	Format string
	Font   string
}

// Retry is the per-stage retry policy.
type Retry struct {
	MaxAttempts int
	Wait        time.Duration
}

// Policy converts r into a flowgraph retry config.
func (r Retry) Policy() fgerrors.RetryConfig {
	return fgerrors.NewRetryConfig(
		fgerrors.WithMaxAttempts(r.MaxAttempts),
		fgerrors.WithWait(r.Wait),
	)
}

// Load resolves settings from cfg and env.
//
// The provider comes from LLM_PROVIDER or llm.provider. Its model, base URL
// and API key come from <PROVIDER>_MODEL, <PROVIDER>_BASE_URL and
// <PROVIDER>_API_KEY, falling back to llm.model, llm.base_url and
// llm.api_key. Provider-specific requirements are checked by llm.NewClient.
func Load(cfg config.Config, env Env) (Settings, error) {
	if env == nil {
		env = MapEnv(nil)
	}
	r := resolver{cfg: cfg, env: env}

	provider := strings.ToUpper(strings.TrimSpace(r.str("LLM_PROVIDER", "llm.provider", "")))
	if provider == "" {
		return Settings{}, &fgerrors.ConfigurationError{
			Setting: "LLM_PROVIDER",
			Message: "environment variable or llm.provider is required",
		}
	}

	s := Settings{
		LLM: llm.ProviderConfig{
			Provider:    provider,
			Model:       r.str(provider+"_MODEL", "llm.model", ""),
			BaseURL:     r.str(provider+"_BASE_URL", "llm.base_url", ""),
			APIKey:      r.str(provider+"_API_KEY", "llm.api_key", ""),
			Temperature: cfg.Float("llm.temperature", llm.DefaultTemperature),
			MaxTokens:   cfg.Int("llm.max_tokens", 0),
			Timeout:     cfg.Duration("llm.timeout", DefaultTimeout),
		},
		LogDir: r.str("LOG_DIR", "log_dir", DefaultLogDir),
		Cache: Cache{
			Path:          cfg.String("cache.path", DefaultCachePath),
			MemoryEntries: cfg.Int("cache.memory_entries", DefaultMemoryEntries),
		},
		Output: Output{
			Dir:    cfg.String("output.dir", DefaultOutputDir),
			Format: strings.ToLower(cfg.String("output.format", DefaultFormat)),
			Font:   r.str("TEACHERFLOW_FONT", "output.font", DefaultFont),
		},
		Retry: Retry{
			MaxAttempts: cfg.Int("retry.max_attempts", DefaultMaxAttempts),
			Wait:        cfg.Duration("retry.wait", DefaultRetryWait),
		},
		StudentsPath:   cfg.String("students.path", ""),
		CheckpointPath: r.str("TEACHERFLOW_CHECKPOINTS", "checkpoint.path", ""),
	}

	if v, ok := env("LLM_TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Settings{}, &fgerrors.ConfigurationError{Setting: "LLM_TEMPERATURE", Message: err.Error()}
		}
		s.LLM.Temperature = t
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch {
	case s.LLM.Temperature < 0:
		return invalid("llm.temperature", "must not be negative, got %v", s.LLM.Temperature)
	case s.LLM.Timeout <= 0:
		return invalid("llm.timeout", "must be positive, got %s", s.LLM.Timeout)
	case s.Cache.MemoryEntries < 0:
		return invalid("cache.memory_entries", "must not be negative, got %d", s.Cache.MemoryEntries)
	case s.Retry.MaxAttempts < 1:
		return invalid("retry.max_attempts", "must be at least 1, got %d", s.Retry.MaxAttempts)
	case s.Retry.Wait < 0:
		return invalid("retry.wait", "must not be negative, got %s", s.Retry.Wait)
	case strings.TrimSpace(s.Output.Dir) == "":
		return invalid("output.dir", "must not be empty")
	}
	return nil
}

func invalid(setting, format string, args ...any) error {
	return &fgerrors.ConfigurationError{Setting: setting, Message: fmt.Sprintf(format, args...)}
}

type resolver struct {
	cfg config.Config
	env Env
}

// str prefers a non-empty environment value over the config path.
func (r resolver) str(envKey, path, def string) string {
	if v, ok := r.env(envKey); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return r.cfg.String(path, def)
}
