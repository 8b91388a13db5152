// Package configutils has small helpers for loading viper configuration.
package configutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ResolveAndMergeFile reads the configuration file at filePath into v. The
// file type is inferred from the extension.
func ResolveAndMergeFile(v *viper.Viper, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return errors.New("configuration file has no extension")
	}

	supported := false
	for _, e := range viper.SupportedExts {
		if ext[1:] == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported configuration file extension: %s", ext)
	}

	v.SetConfigType(ext[1:])
	v.SetConfigFile(filePath)
	return v.ReadInConfig()
}

// RehydrateKeys re-sets every known key so that UnmarshalKey sees values
// supplied through environment variables, not only the read config file.
func RehydrateKeys(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		v.Set(key, v.Get(key))
	}
}
