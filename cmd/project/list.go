package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
)

func NewCmdProjectList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all managed projects",
		Long: `Display all BloodHound projects managed by Hound.

Shows the lifecycle state recorded by Hound, the container status reported
by Docker and the published ports of every project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			infos, err := service.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}

			out, err := output.PrintProjectList(infos)
			if err != nil {
				return err
			}

			return output.FprintPlain(cmd, "%s", out)
		},
	}
}
