package project

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
	"github.com/oar-cd/hound/project"
)

func NewCmdProjectData() *cobra.Command {
	var archive string

	cmd := &cobra.Command{
		Use:   "data <project>",
		Short: "Upload collector data into a project",
		Long: `Extract the JSON files of a SharpHound or AzureHound archive, upload them
as one batch and wait until BloodHound has ingested them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			name := args[0]
			if err := output.FprintPlain(cmd, "Uploading %s to project %s...", archive, name); err != nil {
				return err
			}

			result, err := service.Data(cmd.Context(), project.DataOptions{
				Name:        name,
				ArchivePath: archive,
				OnUploaded: func(file string) {
					_ = output.FprintPlain(cmd, "  uploaded %s", file)
				},
			})
			if err != nil {
				return fmt.Errorf("ingesting data into %s: %w", name, err)
			}

			return output.FprintSuccess(cmd, "Ingested %d files in batch %d (%s)",
				len(result.Batch.Files), result.Batch.ID, result.Duration.Round(100*time.Millisecond))
		},
	}

	cmd.Flags().StringVarP(&archive, "zip", "z", "", "Path to the collector zip archive")
	_ = cmd.MarkFlagRequired("zip")

	return cmd
}
