package transfer

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/objectstore"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// engineParams collects the engine's dependencies. Events is optional; the
// engine falls back to NopEvents.
type engineParams struct {
	fx.In

	Viper  *viper.Viper
	Store  *store.Store
	Client *objectstore.Client
	Events Events `optional:"true"`
	Logger logging.Interface
}

// Module loads the "transfers" viper configuration and provides an *Engine
// scoped to the configured bucket.
var Module fx.Option = fx.Provide(
	func(p engineParams) (*Engine, error) {
		config, err := NewConfig(WithViper(p.Viper))
		if err != nil {
			return nil, fmt.Errorf("error reading transfer configuration: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid transfer configuration: %w", err)
		}
		return NewEngine(config, p.Store, p.Client, p.Client.Bucket(), p.Events, p.Logger), nil
	},
)
