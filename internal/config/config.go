// Package config loads the service configuration from a YAML file with
// environment overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LineConfig holds the Messaging API credentials. Both values can also
// arrive via GROUPTASK_LINE_CHANNEL_SECRET / GROUPTASK_LINE_CHANNEL_TOKEN.
type LineConfig struct {
	ChannelSecret string `mapstructure:"channel_secret" yaml:"channel_secret"`
	ChannelToken  string `mapstructure:"channel_token" yaml:"channel_token"`
}

// APIConfig holds the automation endpoint settings.
type APIConfig struct {
	// Key guards the /api/* endpoints via the X-API-KEY header.
	Key string `mapstructure:"key" yaml:"key"`
}

// Config is the top-level service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Line     LineConfig     `mapstructure:"line" yaml:"line"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// DefaultGroupID scopes CLI commands that run outside a chat.
	DefaultGroupID string `mapstructure:"default_group_id" yaml:"default_group_id"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/grouptask/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "grouptask", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "grouptask.db"},
		LogLevel: "info",
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults plus environment overrides are
// returned. Every key can be overridden by a GROUPTASK_* variable, e.g.
// GROUPTASK_LINE_CHANNEL_SECRET overrides line.channel_secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "grouptask.db")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("GROUPTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind explicitly so env-only keys resolve without a config file.
	for _, key := range []string{
		"server.addr", "database.path",
		"line.channel_secret", "line.channel_token",
		"api.key", "log_level", "default_group_id",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
