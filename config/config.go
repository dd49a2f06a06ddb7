// Package config loads the service configuration from a file with
// optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/quickbite/dispatch/core/dispatch"
)

type Config struct {
	HTTP     HTTPConfig      `json:"http"`
	Database DatabaseConfig  `json:"database"`
	AMQP     AMQPConfig      `json:"amqp"`
	Dispatch dispatch.Config `json:"dispatch"`
	Metrics  MetricsConfig   `json:"metrics"`
}

// Load reads the configuration file and applies QB_-prefixed
// environment overrides (QB_HTTP__ADDR maps to http.addr). A .env file
// in the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("QB_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "qb_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.AMQP.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Dispatch.SetDefaults()
	if err := cfg.HTTP.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
