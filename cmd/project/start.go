package project

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/utils"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/project"
)

// defaultTimeoutSeconds bounds the wait for the bootstrap secret
const defaultTimeoutSeconds = 90

func NewCmdProjectStart() *cobra.Command {
	var (
		opts           project.StartOptions
		timeoutSeconds int
	)

	cmd := &cobra.Command{
		Use:   "start <project>",
		Short: "Create and start a BloodHound instance",
		Long: `Create a project directory, generate its Docker Compose configuration and
start BloodHound. Hound waits for the initial password in the service log,
replaces it with the operator password and prints the connection details.

Starting a project that already finished its first start relaunches it with
the saved configuration. The ports and the GDS plugin setting cannot change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := utils.ProjectService()
			if err != nil {
				return err
			}

			opts.Name = args[0]
			opts.Timeout = time.Duration(timeoutSeconds) * time.Second

			// Reject a bad password before anything else happens
			if opts.Password != "" {
				if err := domain.ValidatePassword(opts.Password); err != nil {
					return err
				}
			}

			if err := output.FprintPlain(cmd, "Starting project %s...", opts.Name); err != nil {
				return err
			}

			result, err := service.Start(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("starting project %s: %w", opts.Name, err)
			}

			for _, warning := range result.Warnings {
				if err := output.FprintWarning(cmd, "Warning: %v", warning); err != nil {
					return err
				}
			}

			if result.Resumed {
				if err := output.FprintSuccess(cmd, "Project %s resumed", opts.Name); err != nil {
					return err
				}
			} else {
				if err := output.FprintSuccess(cmd, "Project %s is ready", opts.Name); err != nil {
					return err
				}
			}

			summary, err := output.PrintStartSummary(result, utils.AdminUsername())
			if err != nil {
				return err
			}
			if err := output.FprintPlain(cmd, "%s", summary); err != nil {
				return err
			}

			if result.GeneratedPassword {
				return output.FprintWarning(cmd, "The password was generated, keep it somewhere safe")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Ports.Bolt, "bolt-port", domain.DefaultBoltPort, "Host port for the Neo4j Bolt protocol")
	cmd.Flags().IntVar(&opts.Ports.Neo4j, "neo4j-port", domain.DefaultNeo4jPort, "Host port for the Neo4j browser")
	cmd.Flags().IntVar(&opts.Ports.Web, "web-port", domain.DefaultWebPort, "Host port for the BloodHound web interface")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "Operator password (generated when omitted)")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", defaultTimeoutSeconds, "Seconds to wait for the initial password in the service log")
	cmd.Flags().BoolVar(&opts.NoGDS, "no-gds", false, "Do not install the Neo4j Graph Data Science plugin")

	return cmd
}
