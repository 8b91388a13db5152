package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/s3desk/s3desk/pkg/listingcache"
	"github.com/s3desk/s3desk/pkg/logging"
	"github.com/s3desk/s3desk/pkg/objectstore"
	"github.com/s3desk/s3desk/pkg/transfer"
	"github.com/s3desk/s3desk/pkg/transfer/store"
)

// app bundles everything a subcommand can reach after dependency injection.
type app struct {
	Engine *transfer.Engine
	Store  *store.Store
	Cache  *listingcache.Cache
	Client *objectstore.Client
	Logger logging.Interface
}

// runApp wires the full application and executes action, shutting the
// process down when it returns.
func runApp(cmd *cobra.Command, action func(a *app) error) {
	a := &app{}

	options := []fx.Option{
		configProvider(cmd),
		logging.Module,
		store.Module,
		objectstore.Module,
		listingcache.Module,
		transfer.Module,
		fx.Provide(func() transfer.Events { return newConsoleEvents(os.Stdout) }),
		fx.Populate(&a.Engine, &a.Store, &a.Cache, &a.Client, &a.Logger),
		fx.NopLogger,
	}

	options = append(options, fx.Invoke(func(lc fx.Lifecycle, l *zap.Logger, sh fx.Shutdowner) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := action(a); err != nil {
						l.Error("command failed", zap.Error(err))
						os.Exit(1)
					}
					if err := sh.Shutdown(); err != nil {
						l.Error("failed to shut down", zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return nil
			},
		})
	}))

	fx.New(options...).Run()
}
