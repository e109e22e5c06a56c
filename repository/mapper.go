// Package repository provides the data access layer for the project registry.
package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/hound/db"
	"github.com/oar-cd/hound/domain"
)

type ProjectMapper struct{}

func (m *ProjectMapper) ToDomain(p *db.ProjectModel) *domain.Project {
	state, err := domain.ParseLifecycleState(p.State)
	if err != nil {
		state = domain.StateUnconfigured
	}

	return &domain.Project{
		Name:            p.Name,
		SourceDirectory: p.SourceDir,
		Ports: domain.Ports{
			Bolt:  p.BoltPort,
			Neo4j: p.Neo4jPort,
			Web:   p.WebPort,
		},
		Timeout:   time.Duration(p.TimeoutSeconds) * time.Second,
		NoGDS:     p.NoGDS,
		State:     state,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToModel maps p onto a registry row with the given id. Credentials are not copied.
func (m *ProjectMapper) ToModel(id uuid.UUID, p *domain.Project) *db.ProjectModel {
	return &db.ProjectModel{
		BaseModel: db.BaseModel{
			ID:        id,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		Name:           p.Name,
		SourceDir:      p.SourceDirectory,
		BoltPort:       p.Ports.Bolt,
		Neo4jPort:      p.Ports.Neo4j,
		WebPort:        p.Ports.Web,
		NoGDS:          p.NoGDS,
		TimeoutSeconds: int(p.Timeout / time.Second),
		State:          p.State.String(),
	}
}

type IngestionMapper struct{}

func (m *IngestionMapper) ToDomain(i *db.IngestionModel, projectName string) *domain.Ingestion {
	status, err := domain.ParseBatchStatus(i.Status)
	if err != nil {
		status = domain.BatchStatusFailed
	}

	return &domain.Ingestion{
		ID:          i.ID,
		ProjectName: projectName,
		ArchivePath: i.ArchivePath,
		BatchID:     i.BatchID,
		FileCount:   i.FileCount,
		Status:      status,
		Message:     i.Message,
		StartedAt:   i.StartedAt,
		FinishedAt:  i.FinishedAt,
	}
}

func (m *IngestionMapper) ToModel(i *domain.Ingestion, projectID uuid.UUID) *db.IngestionModel {
	return &db.IngestionModel{
		BaseModel:   db.BaseModel{ID: i.ID},
		ProjectID:   projectID,
		ArchivePath: i.ArchivePath,
		BatchID:     i.BatchID,
		FileCount:   i.FileCount,
		Status:      i.Status.String(),
		Message:     i.Message,
		StartedAt:   i.StartedAt,
		FinishedAt:  i.FinishedAt,
	}
}
