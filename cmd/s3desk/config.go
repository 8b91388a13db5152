package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/s3desk/s3desk/pkg/configutils"
)

const envPrefix = "S3DESK"

// configProvider sets up the shared viper instance: environment variables
// prefixed S3DESK_, an optional config file, and the debug flag.
func configProvider(cli *cobra.Command) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		v := viper.New()

		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.BindPFlag("logging.debug", cli.Flags().Lookup("debug")); err != nil {
			return nil, err
		}

		if configFilePath != "" {
			if err := configutils.ResolveAndMergeFile(v, configFilePath); err != nil {
				return nil, err
			}
			configutils.RehydrateKeys(v)
		}
		return v, nil
	})
}
