package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
)

func NewCmdProjectStop() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <project>",
		Short: "Stop the containers of a project",
		Long:  "Stop and remove the containers of a project. Data volumes and project files are kept, start brings it back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			name := args[0]
			if err := output.FprintPlain(cmd, "Stopping project %s...", name); err != nil {
				return err
			}
			if err := service.Stop(cmd.Context(), name); err != nil {
				return fmt.Errorf("stopping project %s: %w", name, err)
			}

			return output.FprintSuccess(cmd, "Project %s stopped", name)
		},
	}
}
