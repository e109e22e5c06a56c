package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/hound/config"
)

func TestNewCmdVersion(t *testing.T) {
	cmd := NewCmdVersion()

	// Test command configuration
	assert.Equal(t, "version", cmd.Use)
	assert.Equal(t, "Show version information", cmd.Short)
	assert.Contains(t, cmd.Long, "Display version information for Hound")

	// Test that RunE is set
	assert.NotNil(t, cmd.RunE)

	// Test command has no flags
	assert.Empty(t, cmd.Flags().FlagUsages())

	// Test command has no subcommands by default
	assert.Empty(t, cmd.Commands())

	// Verify the command can be found by name
	assert.Equal(t, "version", cmd.Name())
}

func TestVersionVariable(t *testing.T) {
	assert.Equal(t, "dev", config.Version) // Default build-time value
}

func TestRunVersionPrintsVersion(t *testing.T) {
	cmd := NewCmdVersion()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", stdout.String())
}
