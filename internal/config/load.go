package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. AUTONFE_UI_MAX_TOASTS.
const EnvPrefix = "AUTONFE"

// defaults lists every key with its default value. Keys without a default are
// invisible to viper's Unmarshal, so each key must appear here.
var defaults = map[string]any{
	"log.level":             "info",
	"log.format":            "json",
	"log.file":              "",
	"ui.max_toasts":         5,
	"ui.toast_duration":     "3s",
	"ui.fade_duration":      "300ms",
	"ui.mode":               "auto",
	"server.listen_addr":    "127.0.0.1:8765",
	"simulate.documents":    100,
	"simulate.step_delay":   "50ms",
	"simulate.status_every": 25,
	"metrics.enabled":       false,
	"metrics.file":          "",
	"metrics.interval":      "30s",
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config file path. Empty means look for
	// autonfe.{yaml,json,toml} in the working directory, if any.
	ConfigFile string

	// EnvFile is loaded into the process environment before reading
	// variables. Empty means ".env"; a missing file is not an error.
	EnvFile string
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("autonfe")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range defaults {
		envVar := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
