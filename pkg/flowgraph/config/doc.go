/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches by returning default values. Keys are dotted
paths resolved through nested maps, which matches how YAML files are laid out.

# Basic Usage

	cfg, err := config.FromFile("teacherflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	provider := cfg.String("llm.provider", "")          // llm: {provider: ...}
	wait := cfg.Duration("retry.wait", 10*time.Second)  // "10s" or 10
	attempts := cfg.Int("retry.max_attempts", 3)

	llmSection := cfg.Section("llm")
	model := llmSection.String("model", "")

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Int accepts float64 only when it has no fractional part, since JSON
numbers decode as float64.

# File Loading

FromFile picks YAML or JSON by extension. FromOptionalFile treats a
missing file (or empty path) as empty configuration.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
