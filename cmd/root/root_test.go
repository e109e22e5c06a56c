package root

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/hound/config"
)

func TestNewCmdRoot(t *testing.T) {
	cmd := NewCmdRoot("/test/data/dir")

	assert.Equal(t, "hound", cmd.Use)
	assert.Equal(t, "Run local BloodHound instances per engagement", cmd.Short)
	assert.Contains(t, cmd.Long, "Docker Compose")
	assert.NotNil(t, cmd.PersistentPreRunE)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)

	subcommandNames := []string{}
	for _, subcmd := range cmd.Commands() {
		subcommandNames = append(subcommandNames, subcmd.Name())
	}

	expectedSubcommands := []string{"list", "show", "start", "data", "clear", "stop", "delete", "version"}
	for _, expected := range expectedSubcommands {
		assert.Contains(t, subcommandNames, expected, "Expected subcommand %s not found", expected)
	}
}

func TestNewCmdRootFlags(t *testing.T) {
	defaultDataDir := "/test/data/dir"
	cmd := NewCmdRoot(defaultDataDir)

	dataDirFlag := cmd.PersistentFlags().Lookup("data-dir")
	require.NotNil(t, dataDirFlag)
	assert.Equal(t, "d", dataDirFlag.Shorthand)
	assert.Equal(t, defaultDataDir, dataDirFlag.DefValue)

	logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevelFlag)
	assert.Equal(t, "l", logLevelFlag.Shorthand)

	noColorFlag := cmd.PersistentFlags().Lookup("no-color")
	require.NotNil(t, noColorFlag)
	assert.Equal(t, "c", noColorFlag.Shorthand)

	jsonFlag := cmd.PersistentFlags().Lookup("json")
	require.NotNil(t, jsonFlag)
	assert.Equal(t, "false", jsonFlag.DefValue)
}

func TestVersionSkipsInitialization(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "hound")
	cmd := NewCmdRoot(dataDir)

	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"version", "--data-dir", dataDir, "--no-color"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, config.Version+"\n", stdout.String())

	// No registry or key is created for version
	assert.NoDirExists(t, dataDir)
}

func TestUnknownCommand(t *testing.T) {
	cmd := NewCmdRoot(t.TempDir())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"launch"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
