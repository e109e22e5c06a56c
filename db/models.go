package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MigrationModel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;unique"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationModel) TableName() string {
	return "migrations"
}

// ProjectModel indexes a project directory. Secrets live only in the encrypted snapshot.
type ProjectModel struct {
	BaseModel
	Name           string `gorm:"not null;unique;check:name <> ''"`
	SourceDir      string `gorm:"not null;check:source_dir <> ''"`
	BoltPort       int    `gorm:"not null"`
	Neo4jPort      int    `gorm:"column:neo4j_port;not null"`
	WebPort        int    `gorm:"not null"`
	NoGDS          bool   `gorm:"not null"`
	TimeoutSeconds int    `gorm:"not null"`
	State          string `gorm:"not null;check:state <> ''"` // lifecycle state name

	Ingestions []IngestionModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (ProjectModel) TableName() string {
	return "projects"
}

type IngestionModel struct {
	BaseModel
	ProjectID   uuid.UUID `gorm:"not null;index"`
	ArchivePath string    `gorm:"not null"`
	BatchID     int64
	FileCount   int
	Status      string `gorm:"not null;check:status <> ''"` // pending, complete, failed
	Message     string `gorm:"type:text"`
	StartedAt   time.Time
	FinishedAt  *time.Time
}

func (IngestionModel) TableName() string {
	return "ingestions"
}
