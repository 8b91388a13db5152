package objectstore

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/s3desk/s3desk/pkg/logging"
)

// Module loads the "objectstore" viper configuration and provides a *Client.
var Module fx.Option = fx.Provide(
	func(v *viper.Viper, logger logging.Interface) (*Client, error) {
		config, err := NewConfig(WithViper(v))
		if err != nil {
			return nil, fmt.Errorf("error reading objectstore configuration: %w", err)
		}
		return New(context.Background(), config, logger)
	},
)
