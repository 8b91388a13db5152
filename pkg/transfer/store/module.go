package store

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module loads the "database" viper configuration and provides a *Store.
var Module fx.Option = fx.Options(
	fx.Provide(func(v *viper.Viper) (*Store, error) {
		config, err := NewConfig(WithViper(v))
		if err != nil {
			return nil, fmt.Errorf("error reading database configuration: %w", err)
		}
		return Open(config)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.StopHook(s.Close))
	}),
)
