// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"
	"log"

	"skillmatch/models"

	"gorm.io/gorm"
)

var coreIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_users_role_active ON users(role, is_active)",
	"CREATE INDEX IF NOT EXISTS idx_projects_owner_status ON projects(owner_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at DESC)",
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.AuditEvent{},
	); err != nil {
		return fmt.Errorf("failed to run core migrations: %w", err)
	}
	log.Println("✅ Core migrations completed")

	if err := RunAssignmentMigrations(db); err != nil {
		return fmt.Errorf("failed to run assignment migrations: %w", err)
	}

	if err := execAll(db, coreIndexes); err != nil {
		return err
	}

	log.Println("✅ All migrations completed successfully")
	return nil
}

func execAll(db *gorm.DB, statements []string) error {
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
