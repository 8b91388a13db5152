package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigKey is the viper key holding the transfer store configuration.
const ConfigKey = "database"

// Config holds the SQLite transfer store settings.
type Config struct {
	// Path is the SQLite database file. Defaults to
	// $XDG_CONFIG_HOME/s3desk/transfers.db.
	Path string `mapstructure:"path"`
}

// Option modifies a Config.
type Option func(*Config) error

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, ".config")
		}
		c.Path = filepath.Join(configDir, "s3desk", "transfers.db")
	}
}

// Validate checks the configuration for sanity.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// WithViper reads the ConfigKey subtree of v into the config.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error unmarshalling %s config: %w", ConfigKey, err)
		}
		return nil
	}
}

// NewConfig builds a Config from the given options plus defaults.
func NewConfig(opts ...Option) (*Config, error) {
	config := &Config{}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	config.ApplyDefaults()
	return config, nil
}
