// Package utils provides utility functions for CLI commands in Hound.
package utils

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/app"
	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/project"
)

// ErrServiceUnavailable is returned when a command runs before the application was initialized
var ErrServiceUnavailable = errors.New("application is not initialized")

// HandleCommandError reports a failed command on stderr, as a colored line or
// as one JSON object when --json is set
func HandleCommandError(cmd *cobra.Command, err error, context ...any) {
	slog.Error("Command failed", append([]any{"command", cmd.Name(), "kind", domain.Kind(err), "error", err}, context...)...)

	if output.JSON {
		if writeErr := output.FprintJSONError(cmd.ErrOrStderr(), err); writeErr != nil {
			slog.Error("Failed to write error", "error", writeErr)
		}
		return
	}

	_ = output.FprintError(cmd, "Error: %v", err)
	if hint := domain.FormatErrorForUser(err); hint != "" {
		_ = output.FprintWarning(cmd, "Hint: %s", hint)
	}
}

// ProjectService returns the initialized project service
func ProjectService() (project.ProjectManager, error) {
	service := app.GetProjectService()
	if service == nil {
		return nil, ErrServiceUnavailable
	}
	return service, nil
}

// AdminUsername is the BloodHound account managed by Hound
func AdminUsername() string {
	if cfg := app.GetConfig(); cfg != nil {
		return cfg.AdminUsername
	}
	return "admin"
}
