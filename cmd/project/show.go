package project

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
)

func NewCmdProjectShow() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show <project>",
		Short: "Show detailed project information",
		Long:  "Display the endpoints, credentials, state and ingestion history of a project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			info, err := service.Show(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("showing project %s: %w", args[0], err)
			}

			out, err := output.PrintProjectDetails(info, utils.AdminUsername(), reveal)
			if err != nil {
				return fmt.Errorf("failed to format project details: %w", err)
			}
			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return err
			}

			if len(info.Ingestions) == 0 {
				return nil
			}
			history, err := output.PrintIngestions(info.Ingestions)
			if err != nil {
				return err
			}
			return output.FprintPlain(cmd, "Ingestions:\n%s", history)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the password instead of masking it")
	return cmd
}
