package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/hound/db"
	"github.com/oar-cd/hound/domain"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	FindByName(name string) (*domain.Project, error)
	Save(project *domain.Project) error
	List() ([]*domain.Project, error)
	Delete(name string) error
	// FindPortConflict returns a live project other than name that publishes one of ports
	FindPortConflict(name string, ports domain.Ports) (*domain.Project, []int, error)
}

type projectRepository struct {
	db     *gorm.DB
	mapper *ProjectMapper
}

func (r *projectRepository) FindByName(name string) (*domain.Project, error) {
	m, err := r.findModel(name)
	if err != nil {
		return nil, err
	}
	return r.mapper.ToDomain(m), nil
}

func (r *projectRepository) findModel(name string) (*db.ProjectModel, error) {
	var m db.ProjectModel
	if err := r.db.Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
		}
		return nil, err
	}
	return &m, nil
}

// Save creates the registry row for project or updates the existing one
func (r *projectRepository) Save(project *domain.Project) error {
	existing, err := r.findModel(project.Name)
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		m := r.mapper.ToModel(uuid.New(), project)
		if err := r.db.Create(m).Error; err != nil {
			slog.Error("Database operation failed",
				"layer", "repository",
				"operation", "create_project",
				"project_name", project.Name,
				"error", err)
			return err
		}
		project.CreatedAt = m.CreatedAt
		project.UpdatedAt = m.UpdatedAt
		return nil
	case err != nil:
		return err
	}

	m := r.mapper.ToModel(existing.ID, project)
	m.UpdatedAt = time.Now()
	// Select("*") writes zero values too; created_at never changes
	err = r.db.Model(&db.ProjectModel{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(m).
		Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "update_project",
			"project_name", project.Name,
			"error", err)
		return err
	}
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *projectRepository) List() ([]*domain.Project, error) {
	var models []db.ProjectModel
	if err := r.db.Order("name").Find(&models).Error; err != nil {
		return nil, err
	}

	projects := make([]*domain.Project, len(models))
	for i := range models {
		projects[i] = r.mapper.ToDomain(&models[i])
	}
	return projects, nil
}

func (r *projectRepository) Delete(name string) error {
	m, err := r.findModel(name)
	if err != nil {
		return err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", m.ID).Delete(&db.IngestionModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.ProjectModel{}, "id = ?", m.ID).Error
	})
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_project",
			"project_name", name,
			"error", err)
	}
	return err
}

func (r *projectRepository) FindPortConflict(name string, ports domain.Ports) (*domain.Project, []int, error) {
	wanted := ports.List()

	var models []db.ProjectModel
	err := r.db.
		Where("name <> ?", name).
		Where("state <> ?", domain.StateDeleted.String()).
		Where("bolt_port IN ? OR neo4j_port IN ? OR web_port IN ?", wanted, wanted, wanted).
		Order("name").
		Find(&models).Error
	if err != nil {
		return nil, nil, err
	}

	for i := range models {
		other := r.mapper.ToDomain(&models[i])
		if shared := ports.Overlaps(other.Ports); len(shared) > 0 {
			return other, shared, nil
		}
	}
	return nil, nil, nil
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{
		db:     db,
		mapper: &ProjectMapper{},
	}
}

type IngestionRepository interface {
	Create(ingestion *domain.Ingestion) error
	Update(ingestion *domain.Ingestion) error
	ListByProject(projectName string) ([]*domain.Ingestion, error)
}

type ingestionRepository struct {
	db     *gorm.DB
	mapper *IngestionMapper
}

func (r *ingestionRepository) projectID(name string) (uuid.UUID, error) {
	var m db.ProjectModel
	if err := r.db.Select("id").Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
		}
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (r *ingestionRepository) Create(ingestion *domain.Ingestion) error {
	projectID, err := r.projectID(ingestion.ProjectName)
	if err != nil {
		return err
	}
	if ingestion.ID == uuid.Nil {
		ingestion.ID = uuid.New()
	}
	return r.db.Create(r.mapper.ToModel(ingestion, projectID)).Error
}

func (r *ingestionRepository) Update(ingestion *domain.Ingestion) error {
	projectID, err := r.projectID(ingestion.ProjectName)
	if err != nil {
		return err
	}
	m := r.mapper.ToModel(ingestion, projectID)
	return r.db.Model(&db.IngestionModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(m).
		Error
}

func (r *ingestionRepository) ListByProject(projectName string) ([]*domain.Ingestion, error) {
	projectID, err := r.projectID(projectName)
	if err != nil {
		return nil, err
	}

	var models []db.IngestionModel
	if err := r.db.Where("project_id = ?", projectID).Order("started_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	ingestions := make([]*domain.Ingestion, len(models))
	for i := range models {
		ingestions[i] = r.mapper.ToDomain(&models[i], projectName)
	}
	return ingestions, nil
}

func NewIngestionRepository(db *gorm.DB) IngestionRepository {
	return &ingestionRepository{
		db:     db,
		mapper: &IngestionMapper{},
	}
}
