// Package config loads tool-level configuration for the goferry CLI from
// defaults, an optional config file, and GOFERRY_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for overrides, e.g.
// GOFERRY_LOGGING_LEVEL=debug.
const EnvPrefix = "GOFERRY"

// Config is the resolved tool configuration.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging"`
	Fingerprints FingerprintsConfig `mapstructure:"fingerprints"`
	Copy         CopyConfig         `mapstructure:"copy"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// FingerprintsConfig locates the durable fingerprint store.
type FingerprintsConfig struct {
	// Dir is the root directory of the fingerprint store.
	Dir string `mapstructure:"dir"`
}

// CopyConfig holds copy-step defaults a manifest can omit.
type CopyConfig struct {
	// DefaultFilter is applied when a step has no artifact filter.
	DefaultFilter string `mapstructure:"default_filter"`
}

// Load resolves configuration from defaults, the optional file at path
// (searched for as .goferry.yaml in the working directory when path is
// empty), and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(".goferry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing default config is fine; a broken one is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("fingerprints.dir", ".goferry/fingerprints")
	v.SetDefault("copy.default_filter", "")
}
