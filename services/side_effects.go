// services/side_effects.go - Actors and post-commit collaborators
package services

import (
	"context"
	"log"
	"time"

	"skillmatch/models"

	"github.com/google/uuid"
)

// Actor is an authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Invitation is handed to the Notifier after an invite commits. Token is the
// only place the plaintext credential ever travels.
type Invitation struct {
	AssignmentID   uuid.UUID  `json:"assignment_id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	ProjectTitle   string     `json:"project_title"`
	CandidateID    uuid.UUID  `json:"candidate_id"`
	CandidateName  string     `json:"candidate_name"`
	CandidateEmail string     `json:"candidate_email"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	Token          string     `json:"token"`
	AcceptURL      string     `json:"accept_url"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// Notifier delivers invitations. Failures are logged and never undo a commit.
type Notifier interface {
	NotifyInvitation(ctx context.Context, inv Invitation) error
}

// AuditSink appends lifecycle events.
type AuditSink interface {
	Log(ctx context.Context, event models.AuditEvent) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyInvitation(context.Context, Invitation) error { return nil }

type nopAudit struct{}

func (nopAudit) Log(context.Context, models.AuditEvent) error { return nil }

func emitAudit(ctx context.Context, sink AuditSink, eventType string, actor Actor, subject, result, extra map[string]interface{}) {
	actorID := actor.ID
	event := models.AuditEvent{
		ID:        uuid.New(),
		EventType: eventType,
		ActorID:   &actorID,
		Subject:   subject,
		Result:    result,
		Extra:     extra,
		CreatedAt: time.Now().UTC(),
	}
	if actor.ID == uuid.Nil {
		event.ActorID = nil
	}
	if err := sink.Log(ctx, event); err != nil {
		log.Printf("[audit] failed to record %s: %v", eventType, err)
	}
}
