// Package daemon manages the Lumen daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/lumen-app/lumen/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	Data          DataConfig          `toml:"data"`
	API           APIConfig           `toml:"api"`
	Notifications NotificationsConfig `toml:"notifications"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
	Logging       LoggingConfig       `toml:"logging"`
}

// DataConfig controls where persistent state lives.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotificationsConfig controls the notification policy.
type NotificationsConfig struct {
	MaxPerDay  int    `toml:"max_per_day"`
	QuietStart string `toml:"quiet_start"`
	QuietEnd   string `toml:"quiet_end"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	home := lumenHome()
	policy := domain.DefaultNotificationPolicy()
	return Config{
		Data: DataConfig{
			Dir: home,
		},
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7419,
			CORSOrigins: []string{"*"},
		},
		Notifications: NotificationsConfig{
			MaxPerDay:  policy.MaxPerDay,
			QuietStart: policy.QuietStart,
			QuietEnd:   policy.QuietEnd,
		},
		Telemetry: TelemetryConfig{
			Prometheus: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(home, "lumen.log"),
		},
	}
}

// LoadConfig reads config from ~/.lumen/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(lumenHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.lumen/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(lumenHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Policy converts the notification section into a domain policy,
// falling back to defaults for unset fields.
func (c NotificationsConfig) Policy() domain.NotificationPolicy {
	policy := domain.DefaultNotificationPolicy()
	if c.MaxPerDay > 0 {
		policy.MaxPerDay = c.MaxPerDay
	}
	if c.QuietStart != "" {
		policy.QuietStart = c.QuietStart
	}
	if c.QuietEnd != "" {
		policy.QuietEnd = c.QuietEnd
	}
	return policy
}

// lumenHome returns the Lumen data directory.
func lumenHome() string {
	if env := os.Getenv("LUMEN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lumen")
}

// LumenHome is exported for use by other packages.
func LumenHome() string {
	return lumenHome()
}
