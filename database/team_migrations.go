// database/team_migrations.go - Team and assignment tables
package database

import (
	"log"

	"skillmatch/models"

	"gorm.io/gorm"
)

// At most one open invitation per (project, candidate). Declined and
// cancelled rows are history and do not count.
const openInviteUniqueIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_assignments_open_invite
	ON project_assignments(project_id, user_id)
	WHERE status IN ('pending', 'frozen') AND user_id IS NOT NULL`

var assignmentIndexes = []string{
	openInviteUniqueIndex,
	"CREATE INDEX IF NOT EXISTS idx_teams_project_status ON teams(project_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_assignments_project_status ON project_assignments(project_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_assignments_team_status ON project_assignments(team_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_assignments_user_created ON project_assignments(user_id, created_at DESC)",
}

// RunAssignmentMigrations creates the team and assignment tables.
func RunAssignmentMigrations(db *gorm.DB) error {
	log.Println("Running assignment migrations...")

	if err := db.AutoMigrate(
		&models.Team{},
		&models.Assignment{},
	); err != nil {
		return err
	}

	log.Println("Creating assignment indexes...")
	if err := execAll(db, assignmentIndexes); err != nil {
		return err
	}

	log.Println("✅ Assignment migrations completed successfully")
	return nil
}
