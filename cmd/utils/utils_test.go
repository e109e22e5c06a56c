package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/hound/app"
	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/testing/mocks"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "delete"}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func TestHandleCommandError_Plain(t *testing.T) {
	output.InitColors(true)
	output.JSON = false

	var logBuf bytes.Buffer
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(originalLogger)

	cmd, stdout, stderr := newTestCommand()
	err := fmt.Errorf("deleting project corp: %w", domain.ErrProjectNotFound)

	HandleCommandError(cmd, err, "project_name", "corp")

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error: deleting project corp: project not found")
	assert.Contains(t, stderr.String(), "Hint: project not found, run 'hound list'")

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "Command failed")
	assert.Contains(t, logOutput, "kind=ProjectNotFound")
	assert.Contains(t, logOutput, "project_name=corp")
}

func TestHandleCommandError_JSON(t *testing.T) {
	output.JSON = true
	defer func() { output.JSON = false }()

	cmd, _, stderr := newTestCommand()
	HandleCommandError(cmd, &domain.PortConflictError{Project: "other", Ports: []int{8080}})

	var obj output.ErrorObject
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &obj))
	assert.Equal(t, domain.KindPortConflict, obj.Error)
	assert.Contains(t, obj.Message, "other")
	assert.NotEmpty(t, obj.Hint)
}

func TestProjectService(t *testing.T) {
	app.SetProjectServiceForTesting(nil)
	_, err := ProjectService()
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	mock := &mocks.MockProjectManager{}
	app.SetProjectServiceForTesting(mock)
	defer app.SetProjectServiceForTesting(nil)

	service, err := ProjectService()
	require.NoError(t, err)
	assert.Same(t, mock, service)
}

func TestAdminUsername(t *testing.T) {
	assert.Equal(t, "admin", AdminUsername())
}
