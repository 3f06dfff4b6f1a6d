package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all toolkit settings.
const envPrefix = "DDK"

// newViper builds a pre-configured Viper instance: YAML file type, DDK_ env
// prefix, automatic env binding, and a key replacer mapping "." to "_" so
// nested keys like "train.batch_size" resolve to "DDK_TRAIN_BATCH_SIZE".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the YAML file at configPath, merges any DDK_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from DDK_* environment variables,
// with no config file required.
//
// Naming convention:
//
//	DDK_<SECTION>_<FIELD>   e.g.  DDK_TRAIN_MODEL, DDK_DATA_ROOT
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed
// Config whenever the file changes on disk.  A change that fails to parse or
// validate is dropped without invoking the callback.
//
// Watch is non-blocking; the watching goroutine is managed by viper.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; callers should have called Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad panics on any load error.  Intended for main(), where a config
// failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
