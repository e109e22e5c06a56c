package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single database migration
type Migration struct {
	ID   int
	Name string
	Up   func(*gorm.DB) error
}

// allMigrations run in order after the models have been auto-migrated
var allMigrations = []Migration{
	{
		ID:   1,
		Name: "0001_index_project_ports",
		Up:   migration0001IndexProjectPorts,
	},
}

// AllModels returns all the models that need to be migrated
func AllModels() []any {
	return []any{
		&MigrationModel{},
		&ProjectModel{},
		&IngestionModel{},
	}
}

// AutoMigrateAll creates the schema and applies pending migrations
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return RunMigrations(db, len(allMigrations))
}

// RunMigrations runs all migrations up to and including the specified ID.
// If targetID is 0 or negative, all migrations are run.
func RunMigrations(db *gorm.DB, targetID int) error {
	if targetID <= 0 {
		targetID = len(allMigrations)
	}

	for _, migration := range allMigrations {
		if migration.ID > targetID {
			break
		}

		applied, err := migrationApplied(db, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", migration.Name, err)
		}
		if applied {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationModel{Name: migration.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

func migrationApplied(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Model(&MigrationModel{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// migration0001IndexProjectPorts speeds up the port conflict lookup done on every start
func migration0001IndexProjectPorts(db *gorm.DB) error {
	for _, column := range []string{"bolt_port", "neo4j_port", "web_port"} {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_projects_%s ON projects (%s)", column, column)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
