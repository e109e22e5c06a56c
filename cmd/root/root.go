// Package root implements the command line interface for Hound.
package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oar-cd/hound/app"
	"github.com/oar-cd/hound/cmd/output"
	"github.com/oar-cd/hound/cmd/project"
	"github.com/oar-cd/hound/cmd/utils"
	"github.com/oar-cd/hound/cmd/version"
	"github.com/oar-cd/hound/config"
	"github.com/oar-cd/hound/logging"
)

// skipInit lists the commands that run without the registry and Docker
var skipInit = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := NewCmdRoot(config.GetDefaultDataDir())
	executed, err := cmd.ExecuteContextC(ctx)

	stop()
	app.Shutdown()

	if err != nil {
		utils.HandleCommandError(executed, err)
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "hound",
		Short: "Run local BloodHound instances per engagement",
		Long: `Hound manages isolated BloodHound Community Edition instances on top of
Docker Compose. Every project gets its own directory, ports and credentials,
and collector archives can be ingested from the command line.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigForCLI(dataDir)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !cfg.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := cfg.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel, output.JSON)

			for c := cmd; c.HasParent(); c = c.Parent() {
				if skipInit[c.Name()] {
					return nil
				}
			}

			if err := app.InitializeWithConfig(cfg); err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for Hound configuration and projects")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")
	cmd.PersistentFlags().BoolVar(&output.JSON, "json", false, "Report errors and logs as JSON")

	cmd.AddCommand(project.NewCommands()...)
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
