package transfer

import (
	"fmt"

	"github.com/spf13/viper"
)

// ConfigKey is the viper key holding the transfer engine configuration.
const ConfigKey = "transfers"

// DefaultMaxConcurrent is how many transfers run at once by default.
const DefaultMaxConcurrent = 4

// Config holds the transfer engine settings.
type Config struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// Option modifies a Config.
type Option func(*Config) error

// Validate checks the configuration for sanity.
func (c *Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent)
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

// NewConfig builds a Config from defaults plus the given options.
func NewConfig(opts ...Option) (*Config, error) {
	config := &Config{MaxConcurrent: DefaultMaxConcurrent}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	return config, nil
}
