// Package config loads modelgen CLI settings from an optional config file,
// MODELGEN_* environment variables and explicit flag overrides, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-modelgen/internal/logging"
	"github.com/goliatone/go-modelgen/pkg/store/gormstore"
)

// EnvPrefix namespaces environment overrides, e.g. MODELGEN_LOG_LEVEL.
const EnvPrefix = "MODELGEN"

// Config is the resolved CLI configuration.
type Config struct {
	Manifests   string           `mapstructure:"manifests"`
	Out         string           `mapstructure:"out"`
	OpenAPI     string           `mapstructure:"openapi"`
	Prefix      string           `mapstructure:"prefix"`
	Title       string           `mapstructure:"title"`
	Version     string           `mapstructure:"version"`
	Templates   string           `mapstructure:"templates"`
	Strict      bool             `mapstructure:"strict"`
	Lenient     bool             `mapstructure:"lenient"`
	Interactive bool             `mapstructure:"interactive"`
	Log         logging.Config   `mapstructure:"log"`
	Database    gormstore.Config `mapstructure:"database"`
}

var defaults = map[string]any{
	"manifests":               "models",
	"out":                     "client/api.ts",
	"openapi":                 "",
	"prefix":                  "api",
	"title":                   "modelgen",
	"version":                 "0.0.0",
	"templates":               "",
	"strict":                  false,
	"lenient":                 false,
	"interactive":             false,
	"log.level":               "info",
	"log.format":              "console",
	"log.file":                "",
	"log.max_size":            10,
	"log.max_backups":         3,
	"log.max_age":             7,
	"log.compress":            false,
	"log.dev":                 false,
	"database.dsn":            "",
	"database.max_open":       0,
	"database.max_idle":       0,
	"database.slow_threshold": 200 * time.Millisecond,
}

// Load resolves the configuration. path may be empty; overrides are keyed by
// dotted config names and win over every other source.
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}
