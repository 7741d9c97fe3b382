package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(path, []byte("FEEDCORE_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv(OverrideEnvVar, "")
	t.Setenv("FEEDCORE_TEST_VALUE", "")
	os.Unsetenv("FEEDCORE_TEST_VALUE")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(dir, "missing.env"))
	require.NoError(t, fs.Parse([]string{"--env", path}))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, path, loaded)
	assert.Equal(t, "from-file", os.Getenv("FEEDCORE_TEST_VALUE"))
}

func TestEnvLoaderMissingFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(OverrideEnvVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(dir, "nope.env"))
	require.NoError(t, fs.Parse(nil))

	_, err := loader.Load()
	assert.ErrorIs(t, err, ErrNoEnvFile)
}
