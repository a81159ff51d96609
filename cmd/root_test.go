package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"parts", "labor", "serve", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "estimator", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestPartsCommand_Flags(t *testing.T) {
	flag := partsCmd.Flags().Lookup("query")
	require.NotNil(t, flag, "parts command should have --query flag")

	siteFlag := partsCmd.Flags().Lookup("site")
	require.NotNil(t, siteFlag, "parts command should have --site flag")
}

func TestLaborCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"desc", "prior-low", "prior-high", "prior-average"} {
		flag := laborCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "labor command should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	cmds := runsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "show", "stats"}
	for _, name := range expected {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs list should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)

	for _, flagName := range []string{"kind", "status"} {
		assert.NotNil(t, runsListCmd.Flags().Lookup(flagName), "runs list should have --%s flag", flagName)
	}
}
