// Package config loads the process configuration of the factorysim server.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Addr           string `mapstructure:"addr" validate:"required"`
	DataDir        string `mapstructure:"data_dir" validate:"required"`
	ConfigsDir     string `mapstructure:"configs_dir" validate:"required"`
	TuningPath     string `mapstructure:"tuning_path"`
	LayoutPath     string `mapstructure:"layout_path"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogJSON        bool   `mapstructure:"log_json"`
	DisableDB      bool   `mapstructure:"disable_db"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

var defaults = map[string]any{
	"addr":            ":8080",
	"data_dir":        "./data",
	"configs_dir":     "./configs",
	"tuning_path":     "",
	"layout_path":     "",
	"log_level":       "info",
	"log_json":        false,
	"disable_db":      false,
	"metrics_enabled": true,
}

// Load reads configuration with priority env (FS_ prefix) > file > defaults. An empty path looks
// for factorysim.yaml in the working directory and ./configs; a missing file is not an error.
func Load(path string) (Config, error) {
	return load(viper.New(), path)
}

// LoadWith reads configuration into an existing viper instance, so CLI flags bound to it win over
// everything else.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	return load(v, path)
}

func load(v *viper.Viper, path string) (Config, error) {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("factorysim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetEnvPrefix("FS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.applyDerived()
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDerived() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.TuningPath == "" {
		c.TuningPath = filepath.Join(c.ConfigsDir, "tuning.yaml")
	}
	if c.LayoutPath == "" {
		c.LayoutPath = filepath.Join(c.ConfigsDir, "layout.yaml")
	}
}

// IndexPath is where the SQLite read model lives.
func (c Config) IndexPath() string { return filepath.Join(c.DataDir, "index", "world.sqlite") }

// RunDir is the journal directory of one run.
func (c Config) RunDir(runID string) string { return filepath.Join(c.DataDir, "runs", runID) }
