//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "migrate", "seed", "import-premiums", "ingest", "chat", "order"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "zeus", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "expected persistent flag %q", name)
		assert.Equal(t, "", flag.DefValue)
	}
	assert.Equal(t, version, rootCmd.Version)
}

func TestLoadConfig_FileAndLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\nlog:\n  level: info\n"), 0644))

	configFile, logLevel = path, "debug"
	t.Cleanup(func() { configFile, logLevel = "", "" })

	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Store.Driver)
	assert.Equal(t, "debug", c.Log.Level)

	configFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSeedCommands_RequireFile(t *testing.T) {
	flag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])

	flag = importPremiumsCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestOrderCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range orderCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["pay"])

	flag := orderPayCmd.Flags().Lookup("status")
	require.NotNil(t, flag)
	assert.Equal(t, "paid", flag.DefValue)
}
