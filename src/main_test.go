package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["seed"])
	assert.True(t, names["schema"])

	flag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "./materials/posts.tsv", flag.DefValue)
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  limit: 4\nlog:\n  level: debug\n"), 0o600))

	configPath = path
	t.Cleanup(func() { configPath = "" })

	cfg, _, err := bootstrap()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Feed.Limit)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: shouting\n"), 0o600))
	_, _, err = bootstrap()
	assert.ErrorContains(t, err, "configure logging")

	configPath = filepath.Join(dir, "missing.yaml")
	_, _, err = bootstrap()
	assert.Error(t, err)
}
