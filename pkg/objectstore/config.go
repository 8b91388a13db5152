package objectstore

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ConfigKey is the root configuration key (in Viper) for this module.
var ConfigKey = "objectstore"

// Config holds the connection settings for one bucket.
type Config struct {
	// Bucket is the bucket every Client operation is scoped to.
	Bucket string `mapstructure:"bucket"`

	Region string `mapstructure:"region"`

	// Endpoint overrides the AWS endpoint for S3-compatible services
	// (MinIO, Ceph, etc.).
	Endpoint string `mapstructure:"endpoint"`

	// ForcePathStyle switches to path-style addressing, required by most
	// S3-compatible services.
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// AccessKeyID / SecretAccessKey select static credentials. When empty
	// the AWS default credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Option is a configuration option for the client.
type Option func(*Config) error

// Validate ensures the Config is usable.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// WithViper reads the configuration from the "objectstore" viper subtree.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if v == nil {
			return errors.New("nil Viper")
		}
		return v.UnmarshalKey(ConfigKey, c)
	}
}

// NewConfig creates a new config with the given options applied.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(c); err != nil {
			return nil, fmt.Errorf("applying objectstore config option: %w", err)
		}
	}
	return c, nil
}
