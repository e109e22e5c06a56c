package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/hound/config"
)

type emptyEnv struct {
	home string
}

func (e emptyEnv) Getenv(string) string { return "" }

func (e emptyEnv) UserHomeDir() (string, error) { return e.home, nil }

func TestInitializeWithConfig(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "hound")
	cfg, err := config.NewConfigForCLIWithEnv(emptyEnv{home: t.TempDir()}, dataDir)
	require.NoError(t, err)
	require.Empty(t, cfg.EncryptionKey)

	require.NoError(t, InitializeWithConfig(cfg))
	t.Cleanup(Shutdown)

	for _, dir := range []string{cfg.ProjectsDir, cfg.TmpDir, cfg.LocksDir} {
		assert.DirExists(t, dir)
	}
	assert.FileExists(t, cfg.DatabasePath)

	// The generated key is persisted and picked up by the next run
	require.NotEmpty(t, cfg.EncryptionKey)
	vars, err := dotenv.Read(cfg.EnvFilePath())
	require.NoError(t, err)
	assert.Equal(t, cfg.EncryptionKey, vars[config.EncryptionKeyVar])

	info, err := os.Stat(cfg.EnvFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	service := GetProjectService()
	require.NotNil(t, service)
	projects, err := service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)

	again, err := config.NewConfigForCLIWithEnv(emptyEnv{home: t.TempDir()}, dataDir)
	require.NoError(t, err)
	assert.Equal(t, cfg.EncryptionKey, again.EncryptionKey)
}

func TestInitializeWithConfig_InvalidKey(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := config.NewConfigForCLIWithEnv(emptyEnv{home: dataDir}, dataDir)
	require.NoError(t, err)
	cfg.EncryptionKey = "not-a-fernet-key"

	assert.Error(t, InitializeWithConfig(cfg))
}
