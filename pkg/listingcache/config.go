package listingcache

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigKey is the viper key holding the listing cache configuration.
const ConfigKey = "listing_cache"

const (
	// DefaultMaxEntries bounds how many prefix listings stay cached.
	DefaultMaxEntries = 30
	// DefaultStaleThreshold is how old a listing may be before a background
	// refresh is triggered.
	DefaultStaleThreshold = 30 * time.Second
)

// Config holds the listing cache settings.
type Config struct {
	MaxEntries     int           `mapstructure:"max_entries"`
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
}

// Option modifies a Config.
type Option func(*Config) error

// Validate checks the configuration for sanity.
func (c *Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be positive, got %d", c.MaxEntries)
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("stale_threshold must be positive, got %s", c.StaleThreshold)
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
	config := &Config{
		MaxEntries:     DefaultMaxEntries,
		StaleThreshold: DefaultStaleThreshold,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	return config, nil
}
