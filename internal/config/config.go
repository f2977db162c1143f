// Package config loads tool configuration with layered precedence:
// built-in defaults, then specforge.yaml, then SPECFORGE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the project config file.
const ConfigFileName = "specforge.yaml"

// ConfigFileNameAlt is the alternate name of the project config file.
const ConfigFileNameAlt = "specforge.yml"

// envPrefix namespaces environment overrides, e.g. SPECFORGE_DATABASE_DSN.
const envPrefix = "SPECFORGE_"

// Config holds the tool configuration shared by all commands.
type Config struct {
	// DefinitionsDir is where bundle YAML files live.
	DefinitionsDir string `koanf:"definitions_dir"`
	// OutputDir receives compiled SQL when writing to files.
	OutputDir string `koanf:"output_dir"`

	Database DatabaseConfig `koanf:"database"`

	// EnvelopeSchema hosts the shared mutation_result machinery.
	EnvelopeSchema string `koanf:"envelope_schema"`
	// TablePrefix prefixes entity table names.
	TablePrefix string `koanf:"table_prefix"`
	// IdentifierMax bounds the human-identifier collision suffix.
	IdentifierMax int `koanf:"identifier_max"`
}

// DatabaseConfig carries the connection settings for deploy and invoke.
type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

func defaults() map[string]any {
	return map[string]any{
		"definitions_dir": "definitions",
		"output_dir":      "build",
		"envelope_schema": "app",
		"table_prefix":    "tb_",
		"identifier_max":  999,
	}
}

// Load reads configuration for the given directory. A missing config file
// is not an error; defaults and environment still apply.
func Load(dir string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(dir); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	// Double underscore nests: SPECFORGE_DATABASE__DSN -> database.dsn,
	// while SPECFORGE_OUTPUT_DIR stays the flat key output_dir.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
