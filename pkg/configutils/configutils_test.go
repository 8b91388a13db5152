package configutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("objectstore:\n  bucket: bkt\n"), 0644))

	v := viper.New()
	require.NoError(t, ResolveAndMergeFile(v, path))
	assert.Equal(t, "bkt", v.GetString("objectstore.bucket"))
}

func TestResolveAndMergeFileMissing(t *testing.T) {
	v := viper.New()
	assert.Error(t, ResolveAndMergeFile(v, "/does/not/exist.yaml"))
}

func TestResolveAndMergeFileNoExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0644))

	v := viper.New()
	assert.ErrorContains(t, ResolveAndMergeFile(v, path), "no extension")
}

func TestResolveAndMergeFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.conf")
	require.NoError(t, os.WriteFile(path, []byte("a=1\n"), 0644))

	v := viper.New()
	assert.ErrorContains(t, ResolveAndMergeFile(v, path), "unsupported")
}

func TestRehydrateKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/x.db\n"), 0644))

	v := viper.New()
	require.NoError(t, ResolveAndMergeFile(v, path))
	RehydrateKeys(v)

	var cfg struct {
		Path string `mapstructure:"path"`
	}
	require.NoError(t, v.UnmarshalKey("database", &cfg))
	assert.Equal(t, "/tmp/x.db", cfg.Path)
}
