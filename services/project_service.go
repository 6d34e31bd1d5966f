// services/project_service.go - Project boundary used by the lifecycle
package services

import (
	"context"
	"strings"

	"skillmatch/models"
	"skillmatch/repository"

	"github.com/google/uuid"
)

type ProjectService struct {
	store repository.Store
	teams *TeamCoordinator
	audit AuditSink
}

func NewProjectService(store repository.Store, audit AuditSink) *ProjectService {
	if audit == nil {
		audit = nopAudit{}
	}
	return &ProjectService{store: store, teams: NewTeamCoordinator(store, audit), audit: audit}
}

type CreateProjectRequest struct {
	Title         string
	Description   string
	Domain        string
	RequiredLevel string
	Draft         bool
	Metadata      map[string]interface{}
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, req CreateProjectRequest) (*models.Project, error) {
	if actor.Role != models.RoleBusiness && !actor.IsAdmin() {
		return nil, AuthorizationError("Only business accounts can publish projects.")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ValidationError("Project title is required.")
	}

	project := &models.Project{
		ID:            uuid.New(),
		OwnerID:       actor.ID,
		Title:         title,
		Description:   req.Description,
		Domain:        req.Domain,
		RequiredLevel: req.RequiredLevel,
		Status:        models.ProjectStatusOpen,
		Metadata:      req.Metadata,
	}
	if req.Draft {
		project.Status = models.ProjectStatusDraft
	}

	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		return tx.CreateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "project.created", actor,
		map[string]interface{}{"project_id": project.ID.String()},
		map[string]interface{}{"status": string(project.Status)}, nil)
	return project, nil
}

// Get returns the project to its owner or an admin.
func (s *ProjectService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Project, error) {
	var project *models.Project
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return notFound(err, "Project not found")
		}
		if !actor.IsAdmin() && p.OwnerID != actor.ID {
			return NotFoundError("Project not found")
		}
		project = p
		return nil
	})
	return project, err
}

func (s *ProjectService) ListByOwner(ctx context.Context, actor Actor) ([]models.Project, error) {
	var projects []models.Project
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		projects, err = tx.ListProjects(ctx, actor.ID)
		return err
	})
	return projects, err
}

// SetStatus lets an owner move a project between draft, open and cancelled.
// in_progress and completed are reached only through assignments. Cancelling
// closes every pending or frozen invitation of the project.
func (s *ProjectService) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	switch status {
	case models.ProjectStatusDraft, models.ProjectStatusOpen, models.ProjectStatusCancelled:
	default:
		return nil, ValidationError("Status must be one of draft, open or cancelled.")
	}

	var (
		project *models.Project
		closed  int64
	)
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		p, err := tx.LockProject(ctx, id)
		if err != nil {
			return notFound(err, "Project not found")
		}
		if !actor.IsAdmin() && p.OwnerID != actor.ID {
			return AuthorizationError("You are not allowed to manage this project.")
		}
		if p.Status == models.ProjectStatusInProgress || p.Status == models.ProjectStatusCompleted {
			return ConflictError("Project status is managed by its assignment once accepted.", ReasonProjectAlreadyAssigned)
		}
		if err := tx.UpdateProjectStatus(ctx, id, status); err != nil {
			return err
		}
		if status == models.ProjectStatusCancelled {
			reason := models.ReasonProjectCancelled
			closed, err = tx.UpdateWhere(ctx, repository.StatusUpdate{
				ProjectID: &id,
				From:      []models.AssignmentStatus{models.AssignmentPending, models.AssignmentFrozen},
				To:        models.AssignmentCancelled,
				Reason:    &reason,
			})
			if err != nil {
				return err
			}
			if err := s.teams.RecomputeProject(ctx, tx, id); err != nil {
				return err
			}
		}
		p.Status = status
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "project.status_changed", actor,
		map[string]interface{}{"project_id": id.String()},
		map[string]interface{}{"status": string(status), "closed_invitations": closed}, nil)
	return project, nil
}
