// services/cleanup.go - Maintenance over existing invitation rows
package services

import (
	"context"
	"log"
	"slices"
	"strings"

	"skillmatch/models"
	"skillmatch/repository"

	"github.com/google/uuid"
)

// CleanupService repairs invitation rows written before tokens were mandatory.
type CleanupService struct {
	store  repository.Store
	tokens *TokenIssuer
	audit  AuditSink
}

func NewCleanupService(store repository.Store, tokens *TokenIssuer, audit AuditSink) *CleanupService {
	if tokens == nil {
		tokens = NewTokenIssuer(DefaultInviteExpiry)
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &CleanupService{store: store, tokens: tokens, audit: audit}
}

// BackfillInviteTokens gives every pending candidate row without a token hash a
// fresh hash and expiry. The plaintext is discarded, so the candidate needs a
// re-invite before a token accept can succeed. Returns the number of rows fixed.
func (s *CleanupService) BackfillInviteTokens(ctx context.Context) (int, error) {
	fixed := 0
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		rows, err := tx.ListAssignments(ctx, repository.AssignmentFilter{
			Statuses:     []models.AssignmentStatus{models.AssignmentPending},
			WithoutToken: true,
		})
		if err != nil {
			return err
		}

		// Project rows are locked in a stable order before their assignments.
		byProject := map[uuid.UUID][]uuid.UUID{}
		for _, a := range rows {
			if a.UserID == nil {
				continue
			}
			byProject[a.ProjectID] = append(byProject[a.ProjectID], a.ID)
		}
		projects := make([]uuid.UUID, 0, len(byProject))
		for id := range byProject {
			projects = append(projects, id)
		}
		slices.SortFunc(projects, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

		for _, projectID := range projects {
			if _, err := tx.LockProject(ctx, projectID); err != nil {
				return err
			}
			for _, id := range byProject[projectID] {
				a, err := tx.LockAssignment(ctx, id)
				if err != nil {
					return err
				}
				if a.Status != models.AssignmentPending || a.InviteTokenHash != nil {
					continue
				}
				tok, err := s.tokens.Issue()
				if err != nil {
					return err
				}
				a.InviteTokenHash = &tok.Hash
				a.InviteExpiresAt = &tok.ExpiresAt
				if a.InvitedAt == nil {
					invited := s.tokens.now()
					a.InvitedAt = &invited
				}
				if err := tx.SaveAssignment(ctx, a); err != nil {
					return err
				}
				fixed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if fixed > 0 {
		log.Printf("[cleanup] backfilled invite tokens on %d assignments", fixed)
		emitAudit(ctx, s.audit, "assignment.tokens_backfilled", Actor{Role: models.RoleAdmin}, nil,
			map[string]interface{}{"count": fixed}, nil)
	}
	return fixed, nil
}
