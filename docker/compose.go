// Package docker drives the container runtime of a project: the docker compose
// CLI for lifecycle changes and the Docker API for status.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/oar-cd/hound/config"
	"github.com/oar-cd/hound/domain"
)

// ComposeRunner starts and stops the containers of one project
type ComposeRunner interface {
	// Up launches the runtime in the background, sending its combined output to logPath
	Up(ctx context.Context, logPath string) error
	// Down stops and removes the runtime, blocking until done. The named
	// volumes holding the databases go too when removeVolumes is set.
	Down(ctx context.Context, removeVolumes bool) (string, error)
}

type ComposeProject struct {
	// Name is the name of the Docker Compose project.
	Name string
	// WorkingDir is the project directory holding the generated files.
	WorkingDir string
	// ComposeFile is the generated compose file name inside WorkingDir.
	ComposeFile string
	// Config holds configuration for docker commands
	Config *config.Config
}

var _ ComposeRunner = (*ComposeProject)(nil)

func NewComposeProject(p *domain.Project, cfg *config.Config) *ComposeProject {
	return &ComposeProject{
		Name:        p.ComposeName(),
		WorkingDir:  p.Dir(),
		ComposeFile: domain.ComposeFileName,
		Config:      cfg,
	}
}

// Up runs "compose up" attached so that the service output lands in the log.
// The process is not waited for: it lives as long as the instance does.
func (p *ComposeProject) Up(ctx context.Context, logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.RuntimeLaunchError{Operation: "up", Err: fmt.Errorf("failed to open log file: %w", err)}
	}
	// The child keeps its own descriptor
	defer logFile.Close() //nolint:errcheck

	cmd := p.prepareCommand(context.WithoutCancel(ctx), "up", []string{"--no-color", "--remove-orphans"})
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Own process group so Ctrl-C on hound does not take the instance down
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		slog.Error("Service operation failed",
			"layer", "docker_compose",
			"operation", "docker_compose_up",
			"project_name", p.Name,
			"error", err)
		return &domain.RuntimeLaunchError{Operation: "up", Err: err}
	}

	slog.Debug("Docker Compose started in background",
		"layer", "docker_compose",
		"project_name", p.Name,
		"pid", cmd.Process.Pid,
		"log_path", logPath)

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Docker Compose process exited",
				"layer", "docker_compose",
				"project_name", p.Name,
				"error", err)
		}
	}()

	return nil
}

func (p *ComposeProject) Down(ctx context.Context, removeVolumes bool) (string, error) {
	cmd := p.prepareCommand(ctx, "down", downArgs(removeVolumes))
	out, err := p.executeCommand(cmd)
	if err != nil {
		return out, &domain.RuntimeLaunchError{Operation: "down", Err: err}
	}
	return out, nil
}

func downArgs(removeVolumes bool) []string {
	args := []string{"--remove-orphans"}
	if removeVolumes {
		args = append(args, "--volumes")
	}
	return args
}

func (p *ComposeProject) prepareCommand(ctx context.Context, command string, args []string) *exec.Cmd {
	commandArgs := []string{
		"--host", p.Config.DockerHost,
		"compose",
		"--project-name", p.Name,
		"--file", filepath.Join(p.WorkingDir, p.ComposeFile),
	}

	commandArgs = append(commandArgs, command)
	commandArgs = append(commandArgs, args...)

	slog.Debug("Executing Docker Compose command",
		"command", p.Config.DockerCommand,
		"args", commandArgs,
		"working_dir", p.WorkingDir)

	cmd := exec.CommandContext(ctx, p.Config.DockerCommand, commandArgs...)
	cmd.Dir = p.WorkingDir
	return cmd
}

func (p *ComposeProject) executeCommand(cmd *exec.Cmd) (string, error) {
	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "docker_compose",
			"operation", "docker_compose_execute",
			"project_name", p.Name,
			"error", err,
			"output", output)
		return output, fmt.Errorf("%s: %w", cmd.String(), err)
	}
	return output, nil
}
