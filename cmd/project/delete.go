package project

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
)

func NewCmdProjectDelete() *cobra.Command {
	var skipConfirmation bool

	cmd := &cobra.Command{
		Use:   "delete <project>",
		Short: "Remove a project and its data",
		Long: `Tear down the containers of a project and delete its directory.

This operation will permanently delete:
- The BloodHound instance and its containers
- The generated configuration, the runtime log and the saved credentials
- The ingestion history

The project cannot be recovered after deletion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectDelete(cmd, args[0], skipConfirmation)
		},
	}

	cmd.Flags().BoolVarP(&skipConfirmation, "yes", "y", false, "Skip confirmation prompt and proceed with deletion")
	return cmd
}

func runProjectDelete(cmd *cobra.Command, name string, skipConfirmation bool) error {
	service, err := utils.ProjectService()
	if err != nil {
		return err
	}

	// Fails with ProjectNotFound before anything is touched
	info, err := service.Show(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", name, err)
	}

	if !skipConfirmation {
		if err := output.FprintWarning(cmd, "WARNING: You are about to DELETE project %s in %s", name, info.Project.Dir()); err != nil {
			return err
		}
		if !promptConfirmation(cmd, name) {
			return output.FprintPlain(cmd, "Project deletion cancelled.")
		}
	}

	if err := output.FprintPlain(cmd, "Deleting project %s...", name); err != nil {
		return err
	}
	if err := service.Delete(cmd.Context(), name); err != nil {
		return fmt.Errorf("deleting project %s: %w", name, err)
	}

	return output.FprintSuccess(cmd, "Project %s deleted", name)
}

// promptConfirmation asks the user to type the project name
func promptConfirmation(cmd *cobra.Command, projectName string) bool {
	if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "Type the project name '%s' to confirm deletion: ", projectName); err != nil {
		return false
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false
	}

	return strings.TrimSpace(input) == projectName
}
