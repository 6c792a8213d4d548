package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	UI       UIConfig       `mapstructure:"ui" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Simulate SimulateConfig `mapstructure:"simulate" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
	// File receives logs when set; the live terminal UI needs this, since
	// log lines would otherwise be drawn over the screen
	File string `mapstructure:"file"`
}

// UIConfig contains toast stack and front-end settings.
type UIConfig struct {
	MaxToasts     int           `mapstructure:"max_toasts" validate:"gte=1,lte=50"`
	ToastDuration time.Duration `mapstructure:"toast_duration" validate:"gt=0"`
	FadeDuration  time.Duration `mapstructure:"fade_duration" validate:"gte=0"`
	Mode          string        `mapstructure:"mode" validate:"required,oneof=auto live plain"`
}

// ServerConfig contains the local control API settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required,hostname_port"`
}

// SimulateConfig drives the simulated document client.
type SimulateConfig struct {
	Documents   int           `mapstructure:"documents" validate:"gte=1"`
	StepDelay   time.Duration `mapstructure:"step_delay" validate:"gte=0"`
	StatusEvery int           `mapstructure:"status_every" validate:"gte=0"`
}

// MetricsConfig controls the OpenTelemetry metric exporter.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// File receives the exported metrics; empty means stderr, or nothing
	// while the live UI owns the terminal
	File     string        `mapstructure:"file"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}
