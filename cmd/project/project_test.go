package project

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oar-cd/hound/app"
	"github.com/oar-cd/hound/domain"
	"github.com/oar-cd/hound/ingest"
	"github.com/oar-cd/hound/project"
	"github.com/oar-cd/hound/testing/mocks"
)

const testPassword = "Valid123Pass!"

// runCommand executes cmd against a mock service and returns stdout and stderr
func runCommand(t *testing.T, service project.ProjectManager, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	app.SetProjectServiceForTesting(service)
	t.Cleanup(func() { app.SetProjectServiceForTesting(nil) })

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func readyProject(name string) *domain.Project {
	p := domain.NewProject(name, "/tmp/hound/projects", domain.DefaultPorts(), testPassword, 90*time.Second, false)
	p.State = domain.StateReady
	return p
}

func TestNewCommands(t *testing.T) {
	names := []string{}
	for _, cmd := range NewCommands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "start", "data", "clear", "stop", "delete"}, names)
}

func TestCommandsRequireService(t *testing.T) {
	app.SetProjectServiceForTesting(nil)

	cmd := NewCmdProjectList()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}

func TestList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		stdout, _, err := runCommand(t, &mocks.MockProjectManager{}, NewCmdProjectList(), "")
		require.NoError(t, err)
		assert.Contains(t, stdout, "No projects found.")
	})

	t.Run("with projects", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			ListFunc: func(context.Context) ([]*project.ProjectInfo, error) {
				return []*project.ProjectInfo{
					{Project: readyProject("corp"), Runtime: domain.RuntimeStatusRunning},
				}, nil
			},
		}
		stdout, _, err := runCommand(t, service, NewCmdProjectList(), "")
		require.NoError(t, err)
		assert.Contains(t, stdout, "corp")
		assert.Contains(t, stdout, "8080")
		assert.Contains(t, stdout, "7687")
		assert.Contains(t, stdout, domain.RuntimeStatusRunning.String())
	})

	t.Run("service error", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			ListFunc: func(context.Context) ([]*project.ProjectInfo, error) {
				return nil, errors.New("registry unavailable")
			},
		}
		_, _, err := runCommand(t, service, NewCmdProjectList(), "")
		assert.ErrorContains(t, err, "registry unavailable")
	})

	t.Run("rejects arguments", func(t *testing.T) {
		_, _, err := runCommand(t, &mocks.MockProjectManager{}, NewCmdProjectList(), "", "extra")
		assert.Error(t, err)
	})
}

func TestShow(t *testing.T) {
	service := &mocks.MockProjectManager{
		ShowFunc: func(_ context.Context, name string) (*project.ProjectInfo, error) {
			ingestion := domain.NewIngestion(name, "/loot/corp.zip")
			ingestion.BatchID = 42
			ingestion.FileCount = 3
			ingestion.Status = domain.BatchStatusComplete
			return &project.ProjectInfo{
				Project:    readyProject(name),
				Runtime:    domain.RuntimeStatusRunning,
				Ingestions: []*domain.Ingestion{&ingestion},
			}, nil
		},
	}

	t.Run("masks password", func(t *testing.T) {
		stdout, _, err := runCommand(t, service, NewCmdProjectShow(), "", "corp")
		require.NoError(t, err)
		assert.Contains(t, stdout, "corp")
		assert.Contains(t, stdout, "http://localhost:8080")
		assert.Contains(t, stdout, "********")
		assert.NotContains(t, stdout, testPassword)
		assert.Contains(t, stdout, "Ingestions:")
		assert.Contains(t, stdout, "/loot/corp.zip")
		assert.Contains(t, stdout, "42")
	})

	t.Run("reveal", func(t *testing.T) {
		stdout, _, err := runCommand(t, service, NewCmdProjectShow(), "", "corp", "--reveal")
		require.NoError(t, err)
		assert.Contains(t, stdout, testPassword)
	})

	t.Run("not found", func(t *testing.T) {
		missing := &mocks.MockProjectManager{
			ShowFunc: func(context.Context, string) (*project.ProjectInfo, error) {
				return nil, domain.ErrProjectNotFound
			},
		}
		_, _, err := runCommand(t, missing, NewCmdProjectShow(), "", "ghost")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})
}

func TestStart(t *testing.T) {
	t.Run("passes flags through", func(t *testing.T) {
		var got project.StartOptions
		service := &mocks.MockProjectManager{
			StartFunc: func(_ context.Context, opts project.StartOptions) (*project.StartResult, error) {
				got = opts
				p := domain.NewProject(opts.Name, "/tmp/hound/projects", opts.Ports, opts.Password, opts.Timeout, opts.NoGDS)
				p.State = domain.StateReady
				return &project.StartResult{Project: p}, nil
			},
		}

		stdout, stderr, err := runCommand(t, service, NewCmdProjectStart(), "",
			"corp", "--web-port", "9080", "--bolt-port", "9687", "--neo4j-port", "9474",
			"-p", testPassword, "--timeout", "30", "--no-gds")
		require.NoError(t, err)

		assert.Equal(t, "corp", got.Name)
		assert.Equal(t, domain.Ports{Bolt: 9687, Neo4j: 9474, Web: 9080}, got.Ports)
		assert.Equal(t, testPassword, got.Password)
		assert.Equal(t, 30*time.Second, got.Timeout)
		assert.True(t, got.NoGDS)

		assert.Contains(t, stdout, "Starting project corp...")
		assert.Contains(t, stdout, "Project corp is ready")
		assert.Contains(t, stdout, "http://localhost:9080")
		assert.Contains(t, stdout, "bolt://localhost:9687")
		assert.Contains(t, stdout, testPassword)
		assert.Empty(t, stderr)
	})

	t.Run("defaults", func(t *testing.T) {
		var got project.StartOptions
		service := &mocks.MockProjectManager{
			StartFunc: func(_ context.Context, opts project.StartOptions) (*project.StartResult, error) {
				got = opts
				p := domain.NewProject(opts.Name, "/tmp/hound/projects", opts.Ports, "Gen3rated!Pass", opts.Timeout, opts.NoGDS)
				return &project.StartResult{Project: p, GeneratedPassword: true}, nil
			},
		}

		stdout, stderr, err := runCommand(t, service, NewCmdProjectStart(), "", "corp")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPorts(), got.Ports)
		assert.Empty(t, got.Password)
		assert.Equal(t, 90*time.Second, got.Timeout)
		assert.False(t, got.NoGDS)

		assert.Contains(t, stdout, "Gen3rated!Pass")
		assert.Contains(t, stderr, "The password was generated")
	})

	t.Run("resumed with warning", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			StartFunc: func(_ context.Context, opts project.StartOptions) (*project.StartResult, error) {
				return &project.StartResult{
					Project:  readyProject(opts.Name),
					Resumed:  true,
					Warnings: []error{&domain.FeatureToggleWarning{Feature: "clear_graph_data", Err: errors.New("status 500")}},
				}, nil
			},
		}

		stdout, stderr, err := runCommand(t, service, NewCmdProjectStart(), "", "corp")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Project corp resumed")
		assert.Contains(t, stderr, "Warning: could not enable feature clear_graph_data")
	})

	t.Run("invalid password never reaches the service", func(t *testing.T) {
		called := false
		service := &mocks.MockProjectManager{
			StartFunc: func(context.Context, project.StartOptions) (*project.StartResult, error) {
				called = true
				return nil, nil
			},
		}

		_, _, err := runCommand(t, service, NewCmdProjectStart(), "", "corp", "--password", "short")
		assert.ErrorIs(t, err, domain.ErrInvalidPassword)
		assert.False(t, called)
	})

	t.Run("service error", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			StartFunc: func(context.Context, project.StartOptions) (*project.StartResult, error) {
				return nil, &domain.PortConflictError{Project: "other", Ports: []int{8080}}
			},
		}

		_, _, err := runCommand(t, service, NewCmdProjectStart(), "", "corp")
		require.Error(t, err)
		assert.Equal(t, domain.KindPortConflict, domain.Kind(err))
	})

	t.Run("requires a name", func(t *testing.T) {
		_, _, err := runCommand(t, &mocks.MockProjectManager{}, NewCmdProjectStart(), "")
		assert.Error(t, err)
	})
}

func TestData(t *testing.T) {
	t.Run("uploads archive", func(t *testing.T) {
		var got project.DataOptions
		service := &mocks.MockProjectManager{
			DataFunc: func(_ context.Context, opts project.DataOptions) (*ingest.Result, error) {
				got = opts
				opts.OnUploaded("20250101_users.json")
				opts.OnUploaded("20250101_groups.json")
				return &ingest.Result{
					Batch: domain.UploadBatch{
						ID:    7,
						Files: []string{"20250101_users.json", "20250101_groups.json"},
					},
					Duration: 3 * time.Second,
				}, nil
			},
		}

		stdout, _, err := runCommand(t, service, NewCmdProjectData(), "", "corp", "--zip", "/loot/corp.zip")
		require.NoError(t, err)
		assert.Equal(t, "corp", got.Name)
		assert.Equal(t, "/loot/corp.zip", got.ArchivePath)
		assert.Contains(t, stdout, "uploaded 20250101_users.json")
		assert.Contains(t, stdout, "uploaded 20250101_groups.json")
		assert.Contains(t, stdout, "Ingested 2 files in batch 7 (3s)")
	})

	t.Run("zip flag is required", func(t *testing.T) {
		_, _, err := runCommand(t, &mocks.MockProjectManager{}, NewCmdProjectData(), "", "corp")
		assert.ErrorContains(t, err, "zip")
	})

	t.Run("ingest failure", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			DataFunc: func(context.Context, project.DataOptions) (*ingest.Result, error) {
				return nil, &domain.IngestFailedError{BatchID: 7, Status: "Failed"}
			},
		}

		_, _, err := runCommand(t, service, NewCmdProjectData(), "", "corp", "-z", "/loot/corp.zip")
		require.Error(t, err)
		assert.Equal(t, domain.KindIngestFailed, domain.Kind(err))
	})
}

func TestClear(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stdout, _, err := runCommand(t, &mocks.MockProjectManager{}, NewCmdProjectClear(), "", "corp")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Project corp cleared")
	})

	t.Run("rejected clear does not fail", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			ClearFunc: func(context.Context, string) error {
				return &domain.ClearFailedError{StatusCode: 403, Body: "forbidden"}
			},
		}

		stdout, stderr, err := runCommand(t, service, NewCmdProjectClear(), "", "corp")
		require.NoError(t, err)
		assert.NotContains(t, stdout, "cleared")
		assert.Contains(t, stderr, "BloodHound refused to clear project corp")
		assert.Contains(t, stderr, "403")
	})

	t.Run("other errors fail", func(t *testing.T) {
		service := &mocks.MockProjectManager{
			ClearFunc: func(context.Context, string) error { return domain.ErrProjectNotFound },
		}

		_, _, err := runCommand(t, service, NewCmdProjectClear(), "", "ghost")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})
}

func TestStop(t *testing.T) {
	var stopped string
	service := &mocks.MockProjectManager{
		StopFunc: func(_ context.Context, name string) error {
			stopped = name
			return nil
		},
	}

	stdout, _, err := runCommand(t, service, NewCmdProjectStop(), "", "corp")
	require.NoError(t, err)
	assert.Equal(t, "corp", stopped)
	assert.Contains(t, stdout, "Project corp stopped")

	failing := &mocks.MockProjectManager{
		StopFunc: func(context.Context, string) error {
			return &domain.RuntimeLaunchError{Operation: "down", Err: errors.New("exit status 1")}
		},
	}
	_, _, err = runCommand(t, failing, NewCmdProjectStop(), "", "corp")
	require.Error(t, err)
	assert.Equal(t, domain.KindRuntimeLaunch, domain.Kind(err))
}

func TestDelete(t *testing.T) {
	newService := func(deleted *[]string) *mocks.MockProjectManager {
		return &mocks.MockProjectManager{
			ShowFunc: func(_ context.Context, name string) (*project.ProjectInfo, error) {
				return &project.ProjectInfo{Project: readyProject(name)}, nil
			},
			DeleteFunc: func(_ context.Context, name string) error {
				*deleted = append(*deleted, name)
				return nil
			},
		}
	}

	tests := []struct {
		name        string
		stdin       string
		args        []string
		wantDeleted bool
		wantOutput  string
	}{
		{name: "confirmed", stdin: "corp\n", args: []string{"corp"}, wantDeleted: true, wantOutput: "Project corp deleted"},
		{name: "confirmed without newline", stdin: "corp", args: []string{"corp"}, wantDeleted: true, wantOutput: "Project corp deleted"},
		{name: "wrong name", stdin: "other\n", args: []string{"corp"}, wantDeleted: false, wantOutput: "Project deletion cancelled."},
		{name: "no input", stdin: "", args: []string{"corp"}, wantDeleted: false, wantOutput: "Project deletion cancelled."},
		{name: "skip confirmation", stdin: "", args: []string{"corp", "--yes"}, wantDeleted: true, wantOutput: "Project corp deleted"},
		{name: "skip confirmation short", stdin: "", args: []string{"corp", "-y"}, wantDeleted: true, wantOutput: "Project corp deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted []string
			stdout, _, err := runCommand(t, newService(&deleted), NewCmdProjectDelete(), tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.wantOutput)
			if tt.wantDeleted {
				assert.Equal(t, []string{"corp"}, deleted)
			} else {
				assert.Empty(t, deleted)
			}
		})
	}

	t.Run("prompt goes to stderr", func(t *testing.T) {
		var deleted []string
		_, stderr, err := runCommand(t, newService(&deleted), NewCmdProjectDelete(), "corp\n", "corp")
		require.NoError(t, err)
		assert.Contains(t, stderr, "WARNING: You are about to DELETE project corp")
		assert.Contains(t, stderr, "Type the project name 'corp' to confirm deletion")
	})

	t.Run("missing project is not prompted for", func(t *testing.T) {
		deleteCalled := false
		service := &mocks.MockProjectManager{
			ShowFunc: func(context.Context, string) (*project.ProjectInfo, error) {
				return nil, domain.ErrProjectNotFound
			},
			DeleteFunc: func(context.Context, string) error {
				deleteCalled = true
				return nil
			},
		}

		_, stderr, err := runCommand(t, service, NewCmdProjectDelete(), "ghost\n", "ghost")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
		assert.NotContains(t, stderr, "Type the project name")
		assert.False(t, deleteCalled)
	})
}
