// Package app provides the main application context for Hound, managing the registry and services.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/oar-cd/hound/config"
	"github.com/oar-cd/hound/db"
	"github.com/oar-cd/hound/docker"
	"github.com/oar-cd/hound/encryption"
	"github.com/oar-cd/hound/project"
	"github.com/oar-cd/hound/repository"
	"github.com/oar-cd/hound/state"
	"gorm.io/gorm"
)

var (
	database       *gorm.DB
	dockerClient   *docker.DockerClient
	projectService project.ProjectManager
	appConfig      *config.Config
)

// InitializeWithConfig initializes the app with a pre-configured Config
func InitializeWithConfig(cfg *config.Config) error {
	var err error

	// Store the provided config
	appConfig = cfg

	// Ensure required directories exist
	for _, dir := range []string{appConfig.DataDir, appConfig.ProjectsDir, appConfig.TmpDir, appConfig.LocksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	// First run: create the key that protects secrets in state snapshots
	if appConfig.EncryptionKey == "" {
		appConfig.EncryptionKey, err = encryption.LoadOrCreateKey(appConfig.EnvFilePath(), config.EncryptionKeyVar)
		if err != nil {
			return err
		}
	}

	encryptionSvc, err := encryption.NewEncryptionService(appConfig.EncryptionKey)
	if err != nil {
		return err
	}

	// Initialize database using config
	database, err = db.InitDB(appConfig.DatabasePath)
	if err != nil {
		return err
	}

	// Run database migrations
	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	// Initialize repositories
	projectRepo := repository.NewProjectRepository(database)
	ingestionRepo := repository.NewIngestionRepository(database)

	opts := []project.Option{}
	dockerClient, err = docker.NewDockerClient(appConfig.DockerHost)
	if err != nil {
		// Status columns show "unknown" without it, every other command still works
		slog.Warn("Docker API unavailable", "host", appConfig.DockerHost, "error", err)
	} else {
		opts = append(opts, project.WithStatusReader(dockerClient))
	}

	// Initialize services with dependency injection
	projectService = project.NewProjectService(
		state.NewStore(appConfig.ProjectsDir, encryptionSvc),
		state.NewLocker(appConfig.LocksDir),
		projectRepo,
		ingestionRepo,
		appConfig,
		opts...,
	)
	return nil
}

// Shutdown releases the Docker API client and the database handle
func Shutdown() {
	if dockerClient != nil {
		if err := dockerClient.Close(); err != nil {
			slog.Debug("Failed to close Docker client", "error", err)
		}
		dockerClient = nil
	}
	if database != nil {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
		database = nil
	}
}

func GetProjectService() project.ProjectManager {
	return projectService
}

func GetConfig() *config.Config {
	return appConfig
}

// SetProjectServiceForTesting allows overriding the project service for testing purposes
func SetProjectServiceForTesting(service project.ProjectManager) {
	projectService = service
}
