package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadBatch is one ingestion run on the BloodHound side
type UploadBatch struct {
	ID     int64
	Status BatchStatus
	Files  []string
}

// Ingestion records an ingestion run in the registry
type Ingestion struct {
	ID          uuid.UUID
	ProjectName string
	ArchivePath string
	BatchID     int64
	FileCount   int
	Status      BatchStatus
	Message     string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

func NewIngestion(projectName, archivePath string) Ingestion {
	return Ingestion{
		ID:          uuid.New(),
		ProjectName: projectName,
		ArchivePath: archivePath,
		Status:      BatchStatusPending,
		StartedAt:   time.Now(),
	}
}
