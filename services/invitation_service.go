// services/invitation_service.go - Invitation lifecycle
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"time"

	"skillmatch/models"
	"skillmatch/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// InvitationService is the only writer of assignment status. Every public
// method runs in one transaction that locks the project row before any
// assignment row, so first-accept-wins is decided per project.
type InvitationService struct {
	store       repository.Store
	tokens      *TokenIssuer
	teams       *TeamCoordinator
	notifier    Notifier
	audit       AuditSink
	frontendURL string
	now         func() time.Time
}

func NewInvitationService(
	store repository.Store,
	tokens *TokenIssuer,
	teams *TeamCoordinator,
	notifier Notifier,
	audit AuditSink,
	frontendURL string,
) *InvitationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if audit == nil {
		audit = nopAudit{}
	}
	if tokens == nil {
		tokens = NewTokenIssuer(DefaultInviteExpiry)
	}
	if teams == nil {
		teams = NewTeamCoordinator(store, audit)
	}
	return &InvitationService{
		store:       store,
		tokens:      tokens,
		teams:       teams,
		notifier:    notifier,
		audit:       audit,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type InviteRequest struct {
	ProjectID   uuid.UUID
	CandidateID uuid.UUID
	TeamID      *uuid.UUID
	Metadata    map[string]interface{}
}

type TeamInviteRequest struct {
	ProjectID    uuid.UUID
	CandidateIDs []uuid.UUID
	TeamName     *string
	Metadata     map[string]interface{}
}

type MultiInviteRequest struct {
	ProjectID    uuid.UUID
	CandidateIDs []uuid.UUID
	Metadata     map[string]interface{}
}

// issued is an invite that still has to be announced after commit.
type issued struct {
	assignment models.Assignment
	candidate  models.User
	project    models.Project
	token      IssuedToken
	reinvite   bool
}

// ================== ISSUANCE ==================

func (s *InvitationService) Invite(ctx context.Context, actor Actor, req InviteRequest) (*models.Assignment, error) {
	var out []issued
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, req.ProjectID)
		if err != nil {
			return err
		}
		inv, err := s.inviteInTx(ctx, tx, project, req.CandidateID, req.TeamID, req.Metadata)
		if err != nil {
			return err
		}
		out = append(out, *inv)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, actor, out)
	a := out[0].assignment
	return &a, nil
}

// InviteTeam creates a team shell and invites every candidate into it.
func (s *InvitationService) InviteTeam(ctx context.Context, actor Actor, req TeamInviteRequest) ([]models.Assignment, error) {
	candidates := distinct(req.CandidateIDs)
	if len(candidates) < 2 {
		return nil, ValidationError("A team invitation needs at least two distinct candidates.")
	}

	var out []issued
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, req.ProjectID)
		if err != nil {
			return err
		}
		won, err := tx.HasWinner(ctx, project.ID, nil)
		if err != nil {
			return err
		}
		if won {
			return ConflictError("This project is already assigned to a student.", ReasonProjectAlreadyAssigned)
		}

		name := fmt.Sprintf("Team for %s", project.Title)
		if req.TeamName != nil && strings.TrimSpace(*req.TeamName) != "" {
			name = strings.TrimSpace(*req.TeamName)
		}
		team := &models.Team{
			ID:        uuid.New(),
			ProjectID: project.ID,
			OwnerID:   project.OwnerID,
			Name:      name,
			Status:    models.TeamStatusPending,
		}
		if err := tx.CreateTeam(ctx, team); err != nil {
			return err
		}

		meta := maps.Clone(req.Metadata)
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["team_invite"] = true
		meta["team_id"] = team.ID.String()
		meta["team_size"] = len(candidates)

		for _, candidateID := range candidates {
			inv, err := s.inviteInTx(ctx, tx, project, candidateID, &team.ID, meta)
			if err != nil {
				return err
			}
			out = append(out, *inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, actor, out)
	return assignmentsOf(out), nil
}

// InviteMany solo-invites several candidates at once.
func (s *InvitationService) InviteMany(ctx context.Context, actor Actor, req MultiInviteRequest) ([]models.Assignment, error) {
	candidates := distinct(req.CandidateIDs)
	if len(candidates) == 0 {
		return nil, ValidationError("At least one candidate is required.")
	}

	var out []issued
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, req.ProjectID)
		if err != nil {
			return err
		}
		for _, candidateID := range candidates {
			inv, err := s.inviteInTx(ctx, tx, project, candidateID, nil, req.Metadata)
			if err != nil {
				return err
			}
			out = append(out, *inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, actor, out)
	return assignmentsOf(out), nil
}

func (s *InvitationService) inviteInTx(
	ctx context.Context,
	tx repository.Tx,
	project *models.Project,
	candidateID uuid.UUID,
	teamID *uuid.UUID,
	metadata map[string]interface{},
) (*issued, error) {
	candidate, err := tx.GetUser(ctx, candidateID)
	if err != nil {
		return nil, notFound(err, "Candidate not found")
	}
	if candidate.Role != models.RoleStudent {
		return nil, ValidationError("Only students can be invited to projects.")
	}

	won, err := tx.HasWinner(ctx, project.ID, teamID)
	if err != nil {
		return nil, err
	}
	if won {
		return nil, ConflictError("This project is already assigned to a student.", ReasonProjectAlreadyAssigned)
	}

	if teamID != nil {
		if err := s.prepareTeam(ctx, tx, project.ID, *teamID); err != nil {
			return nil, err
		}
	}

	tok, err := s.tokens.Issue()
	if err != nil {
		return nil, err
	}
	now := s.now()

	inv := &issued{candidate: *candidate, project: *project, token: tok}
	existing, err := tx.FindOpenAssignment(ctx, project.ID, candidate.ID)
	switch {
	case err == nil && existing.Status == models.AssignmentFrozen:
		return nil, ConflictError("This invitation is frozen until the team is completed again.", ReasonInvitationFrozen)

	case err == nil:
		existing.InviteTokenHash = &tok.Hash
		existing.InviteExpiresAt = &tok.ExpiresAt
		existing.InvitedAt = &now
		if teamID != nil {
			existing.TeamID = teamID
		}
		existing.Metadata = mergeMetadata(existing.Metadata, metadata)
		if score := matchScore(metadata); score != nil {
			existing.MatchScore = score
		}
		if err := tx.SaveAssignment(ctx, existing); err != nil {
			return nil, err
		}
		inv.assignment = *existing
		inv.reinvite = true

	case errors.Is(err, repository.ErrNotFound):
		userID := candidate.ID
		a := &models.Assignment{
			ID:              uuid.New(),
			ProjectID:       project.ID,
			UserID:          &userID,
			TeamID:          teamID,
			Status:          models.AssignmentPending,
			MatchScore:      matchScore(metadata),
			InviteTokenHash: &tok.Hash,
			InviteExpiresAt: &tok.ExpiresAt,
			InvitedAt:       &now,
			Metadata:        mergeMetadata(nil, metadata),
		}
		if err := tx.CreateAssignment(ctx, a); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, &Error{Kind: KindConflict, Message: "Candidate already has an open invitation for this project.", Reason: ReasonDuplicate, Err: err}
			}
			return nil, err
		}
		inv.assignment = *a

	default:
		return nil, err
	}

	if teamID != nil {
		if _, err := s.teams.Recompute(ctx, tx, *teamID); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// prepareTeam checks the team can take a new member and un-freezes it.
func (s *InvitationService) prepareTeam(ctx context.Context, tx repository.Tx, projectID, teamID uuid.UUID) error {
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return notFound(err, "Team not found")
	}
	if team.ProjectID != projectID {
		return ValidationError("Team does not belong to this project.")
	}
	if team.Status == models.TeamStatusArchived {
		return ConflictError("This team has been archived.", ReasonTeamArchived)
	}
	if team.Status != models.TeamStatusFrozen {
		return nil
	}

	if err := tx.UpdateTeamStatus(ctx, teamID, models.TeamStatusPending); err != nil {
		return err
	}
	_, err = tx.UpdateWhere(ctx, repository.StatusUpdate{
		TeamID: &teamID,
		From:   []models.AssignmentStatus{models.AssignmentFrozen},
		To:     models.AssignmentPending,
	})
	return err
}

// ================== ACCEPTANCE ==================

func (s *InvitationService) Accept(ctx context.Context, actor Actor, id uuid.UUID, credential string) (*models.Assignment, error) {
	return s.accept(ctx, actor, id, &credential)
}

// AcceptWithoutToken is Accept for a signed-in candidate; the session stands in
// for the credential.
func (s *InvitationService) AcceptWithoutToken(ctx context.Context, actor Actor, id uuid.UUID) (*models.Assignment, error) {
	return s.accept(ctx, actor, id, nil)
}

func (s *InvitationService) accept(ctx context.Context, actor Actor, id uuid.UUID, credential *string) (*models.Assignment, error) {
	var (
		result *models.Assignment
		lost   bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, project, err := s.lockCandidateAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentPending {
			return ConflictError("This invitation is no longer pending.", ReasonNoLongerPending)
		}
		if err := requireLive(project); err != nil {
			return err
		}
		if credential != nil && !s.tokens.Validate(a.InviteTokenHash, a.InviteExpiresAt, *credential) {
			return ValidationError("Invalid or expired invitation token.").withReason(ReasonInvalidToken)
		}
		if a.TeamID != nil {
			team, err := tx.GetTeam(ctx, *a.TeamID)
			if err != nil {
				return notFound(err, "Team not found")
			}
			if team.Status == models.TeamStatusArchived {
				return ConflictError("This team has been archived.", ReasonTeamArchived)
			}
		}

		won, err := tx.HasWinner(ctx, a.ProjectID, a.TeamID)
		if err != nil {
			return err
		}
		if won {
			// The loser is closed for good and the cancellation commits.
			reason := models.ReasonAnotherCandidateAccepted
			a.Status = models.AssignmentCancelled
			a.CancelledReason = &reason
			a.InviteTokenHash = nil
			if err := tx.SaveAssignment(ctx, a); err != nil {
				return err
			}
			if a.TeamID != nil {
				if _, err := s.teams.Recompute(ctx, tx, *a.TeamID); err != nil {
					return err
				}
			}
			lost = true
			result = a
			return nil
		}

		now := s.now()
		a.Status = models.AssignmentAccepted
		a.InviteTokenHash = nil
		a.CancelledReason = nil
		if a.AssignedAt == nil {
			a.AssignedAt = &now
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, a.ProjectID, models.ProjectStatusInProgress); err != nil {
			return err
		}

		reason := models.ReasonAnotherCandidateAccepted
		cascade := repository.StatusUpdate{
			ProjectID: &a.ProjectID,
			From:      []models.AssignmentStatus{models.AssignmentPending},
			To:        models.AssignmentCancelled,
			Reason:    &reason,
		}
		if a.TeamID != nil {
			cascade.OutsideTeamID = a.TeamID
		} else {
			cascade.ExcludeID = &a.ID
		}
		if _, err := tx.UpdateWhere(ctx, cascade); err != nil {
			return err
		}
		if a.TeamID != nil {
			if _, err := tx.UpdateWhere(ctx, repository.StatusUpdate{
				TeamID: a.TeamID,
				From:   []models.AssignmentStatus{models.AssignmentFrozen},
				To:     models.AssignmentPending,
			}); err != nil {
				return err
			}
		}
		if err := s.teams.RecomputeProject(ctx, tx, a.ProjectID); err != nil {
			return err
		}

		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	subject := assignmentSubject(result)
	if lost {
		emitAudit(ctx, s.audit, "assignment.accept_lost", actor, subject,
			map[string]interface{}{"status": string(result.Status), "reason": models.ReasonAnotherCandidateAccepted}, nil)
		return nil, ConflictError("Another candidate has already accepted this project.", models.ReasonAnotherCandidateAccepted)
	}

	emitAudit(ctx, s.audit, "assignment.accepted", actor, subject,
		map[string]interface{}{"status": string(result.Status)},
		map[string]interface{}{"with_token": credential != nil})
	return result, nil
}

// ================== DECLINE / CANCEL / DELETE ==================

func (s *InvitationService) Decline(ctx context.Context, actor Actor, id uuid.UUID) (*models.Assignment, error) {
	var result *models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, _, err := s.lockCandidateAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !a.IsOpen() {
			return ConflictError("This invitation is no longer pending.", ReasonNoLongerPending)
		}

		a.Status = models.AssignmentDeclined
		a.InviteTokenHash = nil
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}

		if a.TeamID != nil {
			reason := models.ReasonTeamMemberDeclined
			if _, err := tx.UpdateWhere(ctx, repository.StatusUpdate{
				TeamID:    a.TeamID,
				ExcludeID: &a.ID,
				From:      []models.AssignmentStatus{models.AssignmentPending},
				To:        models.AssignmentFrozen,
				Reason:    &reason,
			}); err != nil {
				return err
			}
			if _, err := s.teams.Recompute(ctx, tx, *a.TeamID); err != nil {
				return err
			}
		}

		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "assignment.declined", actor, assignmentSubject(result),
		map[string]interface{}{"status": string(result.Status)}, nil)
	return result, nil
}

// Cancel withdraws an open invitation. reason defaults to cancelled_by_owner.
func (s *InvitationService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason *string) (*models.Assignment, error) {
	cancelReason := models.ReasonCancelledByOwner
	if reason != nil && strings.TrimSpace(*reason) != "" {
		cancelReason = strings.TrimSpace(*reason)
	}

	var result *models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, _, err := s.lockOwnedAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !a.IsOpen() {
			return ConflictError("Only pending invitations can be cancelled.", ReasonNotCancellable)
		}

		a.Status = models.AssignmentCancelled
		a.CancelledReason = &cancelReason
		a.InviteTokenHash = nil
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		if a.TeamID != nil {
			if _, err := s.teams.Recompute(ctx, tx, *a.TeamID); err != nil {
				return err
			}
		}

		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "assignment.cancelled", actor, assignmentSubject(result),
		map[string]interface{}{"status": string(result.Status), "reason": cancelReason}, nil)
	return result, nil
}

// Delete removes a solo assignment, or a whole team with all its rows, as long
// as nothing in it has been accepted.
func (s *InvitationService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	var (
		subject map[string]interface{}
		removed int
	)
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, _, err := s.lockOwnedAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		subject = assignmentSubject(a)

		if a.TeamID == nil {
			if a.IsWinning() {
				return ConflictError("Accepted or completed assignments cannot be deleted.", ReasonNotDeletable)
			}
			removed = 1
			return tx.DeleteAssignments(ctx, a.ID)
		}

		members, err := tx.ListAssignments(ctx, repository.AssignmentFilter{TeamID: a.TeamID})
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(members))
		for i := range members {
			if members[i].IsWinning() {
				return ConflictError("This team already has an accepted member and cannot be deleted.", ReasonNotDeletable)
			}
			ids = append(ids, members[i].ID)
		}
		if err := tx.DeleteAssignments(ctx, ids...); err != nil {
			return err
		}
		removed = len(ids)
		return tx.DeleteTeam(ctx, *a.TeamID)
	})
	if err != nil {
		return err
	}

	emitAudit(ctx, s.audit, "assignment.deleted", actor, subject,
		map[string]interface{}{"deleted_rows": removed}, nil)
	return nil
}

// ================== COMPLETION & FEEDBACK ==================

func (s *InvitationService) Complete(ctx context.Context, actor Actor, id uuid.UUID, feedback *string, rating *int) (*models.Assignment, error) {
	if err := checkRating(rating); err != nil {
		return nil, err
	}

	var result *models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, _, err := s.lockOwnedAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !a.IsWinning() {
			return ConflictError("Assignment must be accepted before completion.", ReasonNotAccepted)
		}

		now := s.now()
		a.Status = models.AssignmentCompleted
		if a.CompletedAt == nil {
			a.CompletedAt = &now
		}
		if feedback != nil {
			a.OwnerFeedback = feedback
		}
		if rating != nil {
			a.RatingFromOwner = rating
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, a.ProjectID, models.ProjectStatusCompleted); err != nil {
			return err
		}
		if a.TeamID != nil {
			if _, err := s.teams.Recompute(ctx, tx, *a.TeamID); err != nil {
				return err
			}
		}

		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "assignment.completed", actor, assignmentSubject(result),
		map[string]interface{}{"status": string(result.Status)},
		map[string]interface{}{"rating": derefInt(rating)})
	return result, nil
}

func (s *InvitationService) StudentFeedback(ctx context.Context, actor Actor, id uuid.UUID, feedback *string, rating *int) (*models.Assignment, error) {
	if err := checkRating(rating); err != nil {
		return nil, err
	}

	var result *models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, _, err := s.lockCandidateAssignment(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if a.Status != models.AssignmentCompleted {
			return ConflictError("Assignment must be completed before student feedback.", ReasonNotCompleted)
		}
		if feedback != nil {
			a.StudentFeedback = feedback
		}
		if rating != nil {
			a.RatingFromStudent = rating
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, s.audit, "assignment.student_feedback", actor, assignmentSubject(result), nil,
		map[string]interface{}{"rating": derefInt(rating)})
	return result, nil
}

// ================== READS ==================

func (s *InvitationService) ListProjectAssignments(ctx context.Context, actor Actor, projectID uuid.UUID) ([]models.Assignment, error) {
	var out []models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return notFound(err, "Project not found")
		}
		if !actor.IsAdmin() && project.OwnerID != actor.ID {
			return AuthorizationError("You are not allowed to view this project's assignments.")
		}
		out, err = tx.ListAssignments(ctx, repository.AssignmentFilter{ProjectID: &projectID})
		return err
	})
	return out, err
}

func (s *InvitationService) ListStudentAssignments(ctx context.Context, actor Actor, status *models.AssignmentStatus) ([]models.Assignment, error) {
	filter := repository.AssignmentFilter{UserID: &actor.ID}
	if status != nil {
		filter.Statuses = []models.AssignmentStatus{*status}
	}
	var out []models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListAssignments(ctx, filter)
		return err
	})
	return out, err
}

// GetAssignment is visible to admins, the candidate and the project owner.
func (s *InvitationService) GetAssignment(ctx context.Context, actor Actor, id uuid.UUID) (*models.Assignment, error) {
	var out *models.Assignment
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return notFound(err, "Assignment not found")
		}
		if actor.IsAdmin() || a.BelongsTo(actor.ID) {
			out = a
			return nil
		}
		project, err := tx.GetProject(ctx, a.ProjectID)
		if err != nil {
			return notFound(err, "Assignment not found")
		}
		if project.OwnerID != actor.ID {
			return NotFoundError("Assignment not found")
		}
		out = a
		return nil
	})
	return out, err
}

// ================== LOCKING HELPERS ==================

func (s *InvitationService) lockOwnedProject(ctx context.Context, tx repository.Tx, actor Actor, projectID uuid.UUID) (*models.Project, error) {
	project, err := tx.LockProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "Project not found")
	}
	if !actor.IsAdmin() && project.OwnerID != actor.ID {
		return nil, AuthorizationError("You are not allowed to manage this project.")
	}
	if err := requireLive(project); err != nil {
		return nil, err
	}
	return project, nil
}

// requireLive rejects draft and cancelled projects. in_progress stays live so the
// winning team can still be filled.
func requireLive(p *models.Project) error {
	switch p.Status {
	case models.ProjectStatusDraft, models.ProjectStatusCancelled:
		return ConflictError("This project is not open for invitations.", ReasonProjectNotOpen)
	}
	return nil
}

// lockOwnedAssignment locks the project then the assignment, in that order.
func (s *InvitationService) lockOwnedAssignment(ctx context.Context, tx repository.Tx, actor Actor, id uuid.UUID) (*models.Assignment, *models.Project, error) {
	peek, err := tx.GetAssignment(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Assignment not found")
	}
	project, err := tx.LockProject(ctx, peek.ProjectID)
	if err != nil {
		return nil, nil, notFound(err, "Project not found")
	}
	if !actor.IsAdmin() && project.OwnerID != actor.ID {
		return nil, nil, AuthorizationError("You are not allowed to manage this assignment.")
	}
	a, err := tx.LockAssignment(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Assignment not found")
	}
	return a, project, nil
}

// lockCandidateAssignment locks the project then the assignment. Rows of other
// candidates look absent.
func (s *InvitationService) lockCandidateAssignment(ctx context.Context, tx repository.Tx, actor Actor, id uuid.UUID) (*models.Assignment, *models.Project, error) {
	peek, err := tx.GetAssignment(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Assignment not found")
	}
	if !peek.BelongsTo(actor.ID) {
		return nil, nil, NotFoundError("Assignment not found")
	}
	project, err := tx.LockProject(ctx, peek.ProjectID)
	if err != nil {
		return nil, nil, notFound(err, "Project not found")
	}
	a, err := tx.LockAssignment(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "Assignment not found")
	}
	return a, project, nil
}

// ================== SIDE EFFECTS ==================

func (s *InvitationService) announce(ctx context.Context, actor Actor, out []issued) {
	for _, inv := range out {
		a := inv.assignment
		notice := Invitation{
			AssignmentID:   a.ID,
			ProjectID:      a.ProjectID,
			ProjectTitle:   inv.project.Title,
			CandidateID:    inv.candidate.ID,
			CandidateName:  inv.candidate.Name,
			CandidateEmail: inv.candidate.Email,
			TeamID:         a.TeamID,
			Token:          inv.token.Plaintext,
			AcceptURL:      s.AcceptURL(a.ID, inv.token.Plaintext),
			ExpiresAt:      inv.token.ExpiresAt,
		}
		if err := s.notifier.NotifyInvitation(ctx, notice); err != nil {
			log.Printf("[invitations] failed to notify candidate %s for assignment %s: %v", inv.candidate.ID, a.ID, err)
		}
		emitAudit(ctx, s.audit, "assignment.invited", actor, assignmentSubject(&a),
			map[string]interface{}{"status": string(a.Status)},
			map[string]interface{}{"reinvite": inv.reinvite})
	}
}

// AcceptURL is the frontend link a candidate follows to accept.
func (s *InvitationService) AcceptURL(assignmentID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/accept-invite/%s?token=%s", s.frontendURL, assignmentID, token)
}

// ================== HELPERS ==================

func checkRating(rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return ValidationError("Rating must be between 1 and 5.")
	}
	return nil
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mergeMetadata(current datatypes.JSONMap, incoming map[string]interface{}) datatypes.JSONMap {
	if current == nil && len(incoming) == 0 {
		return nil
	}
	out := datatypes.JSONMap{}
	maps.Copy(out, current)
	maps.Copy(out, incoming)
	return out
}

// matchScore reads the ranking score carried in metadata, if any.
func matchScore(metadata map[string]interface{}) *float64 {
	var score float64
	switch v := metadata["match_score"].(type) {
	case float64:
		score = v
	case float32:
		score = float64(v)
	case int:
		score = float64(v)
	case int64:
		score = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		score = f
	default:
		return nil
	}
	return &score
}

func assignmentsOf(out []issued) []models.Assignment {
	list := make([]models.Assignment, len(out))
	for i := range out {
		list[i] = out[i].assignment
	}
	return list
}

func assignmentSubject(a *models.Assignment) map[string]interface{} {
	subject := map[string]interface{}{
		"assignment_id": a.ID.String(),
		"project_id":    a.ProjectID.String(),
	}
	if a.UserID != nil {
		subject["user_id"] = a.UserID.String()
	}
	if a.TeamID != nil {
		subject["team_id"] = a.TeamID.String()
	}
	return subject
}

func derefInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
