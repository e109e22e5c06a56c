package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
	"github.com/oar-cd/hound/domain"
)

func NewCmdProjectClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <project>",
		Short: "Delete the graph data of a project",
		Long: `Remove all collected graph data from a running project. The instance,
its credentials and its configuration stay as they are.

A rejected clear request is reported but does not make the command fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			name := args[0]
			err = service.Clear(cmd.Context(), name)
			switch {
			case domain.Kind(err) == domain.KindClearFailed:
				return output.FprintError(cmd, "BloodHound refused to clear project %s: %v", name, err)
			case err != nil:
				return fmt.Errorf("clearing project %s: %w", name, err)
			}

			return output.FprintSuccess(cmd, "Project %s cleared", name)
		},
	}
}
