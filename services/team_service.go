// services/team_service.go - Team status derivation and administration
package services

import (
	"context"
	"errors"

	"skillmatch/models"
	"skillmatch/repository"

	"github.com/google/uuid"
)

// TeamCoordinator keeps team status consistent with the member assignments.
type TeamCoordinator struct {
	store repository.Store
	audit AuditSink
}

func NewTeamCoordinator(store repository.Store, audit AuditSink) *TeamCoordinator {
	if audit == nil {
		audit = nopAudit{}
	}
	return &TeamCoordinator{store: store, audit: audit}
}

// TeamView is a team together with every member assignment.
type TeamView struct {
	Team    models.Team         `json:"team"`
	Members []models.Assignment `json:"members"`
}

// ================== DERIVATION ==================

// DeriveTeamStatus computes a team's status from its members. Declined and
// cancelled rows no longer count as members; completed counts as accepted.
func DeriveTeamStatus(statuses []models.AssignmentStatus) models.TeamStatus {
	live, accepted, frozen := 0, 0, 0
	for _, s := range statuses {
		switch s {
		case models.AssignmentAccepted, models.AssignmentCompleted:
			accepted++
		case models.AssignmentFrozen:
			frozen++
		case models.AssignmentDeclined, models.AssignmentCancelled:
			continue
		}
		live++
	}

	switch {
	case live > 0 && accepted == live:
		return models.TeamStatusActive
	case accepted > 0:
		return models.TeamStatusPartial
	case frozen > 0:
		return models.TeamStatusFrozen
	default:
		return models.TeamStatusPending
	}
}

// Recompute derives and persists the status of one team inside tx.
// Archived teams are left untouched.
func (c *TeamCoordinator) Recompute(ctx context.Context, tx repository.Tx, teamID uuid.UUID) (models.TeamStatus, error) {
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return "", err
	}
	if team.Status == models.TeamStatusArchived {
		return team.Status, nil
	}

	members, err := tx.ListAssignments(ctx, repository.AssignmentFilter{TeamID: &teamID})
	if err != nil {
		return "", err
	}
	statuses := make([]models.AssignmentStatus, len(members))
	for i, m := range members {
		statuses[i] = m.Status
	}

	derived := DeriveTeamStatus(statuses)
	if derived != team.Status {
		if err := tx.UpdateTeamStatus(ctx, teamID, derived); err != nil {
			return "", err
		}
	}
	return derived, nil
}

// RecomputeProject recomputes every team attached to the project.
func (c *TeamCoordinator) RecomputeProject(ctx context.Context, tx repository.Tx, projectID uuid.UUID) error {
	teams, err := tx.ListTeams(ctx, projectID)
	if err != nil {
		return err
	}
	for _, team := range teams {
		if _, err := c.Recompute(ctx, tx, team.ID); err != nil {
			return err
		}
	}
	return nil
}

// ================== TEAM OPERATIONS ==================

// RecomputeTeam runs Recompute in its own transaction.
func (c *TeamCoordinator) RecomputeTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team *models.Team
	err := c.store.Transaction(ctx, func(tx repository.Tx) error {
		current, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "Team not found")
		}
		if _, err := tx.LockProject(ctx, current.ProjectID); err != nil {
			return notFound(err, "Project not found")
		}
		if _, err := c.Recompute(ctx, tx, teamID); err != nil {
			return err
		}
		team, err = tx.GetTeam(ctx, teamID)
		return err
	})
	return team, err
}

// Archive marks a team archived. Only the project owner or an admin may do so.
func (c *TeamCoordinator) Archive(ctx context.Context, actor Actor, teamID uuid.UUID) (*models.Team, error) {
	var team *models.Team
	err := c.store.Transaction(ctx, func(tx repository.Tx) error {
		current, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "Team not found")
		}
		project, err := tx.LockProject(ctx, current.ProjectID)
		if err != nil {
			return notFound(err, "Project not found")
		}
		if !actor.IsAdmin() && project.OwnerID != actor.ID {
			return AuthorizationError("Only the project owner can archive this team.")
		}
		if current.Status != models.TeamStatusArchived {
			if err := tx.UpdateTeamStatus(ctx, teamID, models.TeamStatusArchived); err != nil {
				return err
			}
		}
		team, err = tx.GetTeam(ctx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, c.audit, "team.archived", actor,
		map[string]interface{}{"team_id": team.ID.String(), "project_id": team.ProjectID.String()},
		map[string]interface{}{"status": string(team.Status)}, nil)
	return team, nil
}

// GetTeam returns the team and its members to an admin, the project owner or
// one of the members. Anyone else sees not found.
func (c *TeamCoordinator) GetTeam(ctx context.Context, actor Actor, teamID uuid.UUID) (*TeamView, error) {
	var view *TeamView
	err := c.store.Transaction(ctx, func(tx repository.Tx) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return notFound(err, "Team not found")
		}
		members, err := tx.ListAssignments(ctx, repository.AssignmentFilter{TeamID: &teamID})
		if err != nil {
			return err
		}

		visible := actor.IsAdmin() || team.OwnerID == actor.ID
		if !visible {
			project, err := tx.GetProject(ctx, team.ProjectID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			visible = project != nil && project.OwnerID == actor.ID
		}
		for i := range members {
			if visible {
				break
			}
			visible = members[i].BelongsTo(actor.ID)
		}
		if !visible {
			return NotFoundError("Team not found")
		}

		view = &TeamView{Team: *team, Members: members}
		return nil
	})
	return view, err
}

// notFound maps repository.ErrNotFound to a NotFoundError with message.
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError(message)
	}
	return err
}
