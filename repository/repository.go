// Package repository is the persistence boundary of the invitation lifecycle.
// All writes happen through a Tx handed out by Store.Transaction; nothing in
// this package keeps an ambient connection.
package repository

import (
	"context"
	"errors"

	"skillmatch/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnscoped is returned by UpdateWhere when neither a project nor a team
	// bounds the update.
	ErrUnscoped = errors.New("bulk update requires a project or team scope")
)

// Store opens transactions. fn's Tx must not be used after fn returns. A nil
// error from fn commits; any error rolls back and is returned unchanged.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is a transaction-scoped view over every repository.
type Tx interface {
	AssignmentRepository
	TeamRepository
	ProjectRepository
	UserRepository
}

type AssignmentRepository interface {
	GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	// LockAssignment reads the row under an exclusive lock held until commit.
	LockAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	// FindOpenAssignment returns the pending or frozen row for (project, user).
	FindOpenAssignment(ctx context.Context, projectID, userID uuid.UUID) (*models.Assignment, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	SaveAssignment(ctx context.Context, a *models.Assignment) error
	DeleteAssignments(ctx context.Context, ids ...uuid.UUID) error
	// HasWinner reports whether the project has an accepted or completed row,
	// ignoring rows of exceptTeamID when it is set.
	HasWinner(ctx context.Context, projectID uuid.UUID, exceptTeamID *uuid.UUID) (bool, error)
	UpdateWhere(ctx context.Context, u StatusUpdate) (int64, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]models.Assignment, error)
}

type TeamRepository interface {
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	CreateTeam(ctx context.Context, t *models.Team) error
	UpdateTeamStatus(ctx context.Context, id uuid.UUID, status models.TeamStatus) error
	DeleteTeam(ctx context.Context, id uuid.UUID) error
	ListTeams(ctx context.Context, projectID uuid.UUID) ([]models.Team, error)
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	LockProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

// AssignmentFilter narrows ListAssignments. Zero fields do not filter.
type AssignmentFilter struct {
	ProjectID *uuid.UUID
	TeamID    *uuid.UUID
	UserID    *uuid.UUID
	Statuses  []models.AssignmentStatus

	// WithoutToken keeps only rows that carry no invite token hash.
	WithoutToken bool
}

// StatusUpdate moves every row matching the scope from one of From to To.
//
// TeamID restricts the update to one team. OutsideTeamID restricts it to solo
// rows and rows of other teams. Reason replaces cancelled_reason (nil clears it).
// Rows moved to a status other than pending or frozen lose their token hash.
type StatusUpdate struct {
	ProjectID     *uuid.UUID
	TeamID        *uuid.UUID
	OutsideTeamID *uuid.UUID
	ExcludeID     *uuid.UUID
	From          []models.AssignmentStatus
	To            models.AssignmentStatus
	Reason        *string
}

func (u StatusUpdate) scoped() bool {
	return u.ProjectID != nil || u.TeamID != nil
}

// WinningStatuses are the statuses that hold a project.
var WinningStatuses = []models.AssignmentStatus{models.AssignmentAccepted, models.AssignmentCompleted}

func keepsToken(s models.AssignmentStatus) bool {
	return s == models.AssignmentPending || s == models.AssignmentFrozen
}
