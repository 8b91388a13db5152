package listingcache

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/s3desk/s3desk/pkg/logging"
)

// Module loads the "listing_cache" viper configuration and provides a *Cache.
var Module fx.Option = fx.Provide(
	func(v *viper.Viper, logger logging.Interface) (*Cache, error) {
		config, err := NewConfig(WithViper(v))
		if err != nil {
			return nil, fmt.Errorf("error reading listing cache configuration: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid listing cache configuration: %w", err)
		}
		return New(config, logger), nil
	},
)
