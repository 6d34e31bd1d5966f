// models/assignment.go
package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentFrozen    AssignmentStatus = "frozen"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentCompleted AssignmentStatus = "completed"
)

// Cancellation reasons written by the lifecycle
const (
	ReasonAnotherCandidateAccepted = "another_candidate_accepted"
	ReasonTeamMemberDeclined       = "team_member_declined"
	ReasonCancelledByOwner         = "cancelled_by_owner"
	ReasonProjectCancelled         = "project_cancelled"
)

// Assignment is one candidate's (or one team member's) relationship to a project.
// UserID is nil only for team-shell rows.
type Assignment struct {
	ID                uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID         uuid.UUID         `json:"project_id" gorm:"type:uuid;not null;index"`
	UserID            *uuid.UUID        `json:"user_id,omitempty" gorm:"type:uuid;index"`
	TeamID            *uuid.UUID        `json:"team_id,omitempty" gorm:"type:uuid;index"`
	Status            AssignmentStatus  `json:"status" gorm:"not null;size:20;default:'pending';index"`
	MatchScore        *float64          `json:"match_score,omitempty"`
	InviteTokenHash   *string           `json:"-" gorm:"size:64;index"`
	InviteExpiresAt   *time.Time        `json:"invite_expires_at,omitempty" gorm:"index"`
	InvitedAt         *time.Time        `json:"invited_at,omitempty"`
	AssignedAt        *time.Time        `json:"assigned_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CancelledReason   *string           `json:"cancelled_reason,omitempty" gorm:"size:255"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	OwnerFeedback     *string           `json:"owner_feedback,omitempty" gorm:"type:text"`
	StudentFeedback   *string           `json:"student_feedback,omitempty" gorm:"type:text"`
	RatingFromOwner   *int              `json:"rating_from_owner,omitempty"`
	RatingFromStudent *int              `json:"rating_from_student,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Assignment) TableName() string {
	return "project_assignments"
}

// IsOpen reports whether the invitation token on the row may still be used.
func (a *Assignment) IsOpen() bool {
	return a.Status == AssignmentPending || a.Status == AssignmentFrozen
}

// IsWinning reports whether the row holds the project.
func (a *Assignment) IsWinning() bool {
	return a.Status == AssignmentAccepted || a.Status == AssignmentCompleted
}

// BelongsTo reports whether the row is addressed to the given user.
func (a *Assignment) BelongsTo(userID uuid.UUID) bool {
	return a.UserID != nil && *a.UserID == userID
}

// InTeam reports whether the row is part of the given team.
func (a *Assignment) InTeam(teamID uuid.UUID) bool {
	return a.TeamID != nil && *a.TeamID == teamID
}

// Clone returns a deep copy; pointer fields are not shared with the receiver.
func (a Assignment) Clone() Assignment {
	out := a
	out.UserID = clonePtr(a.UserID)
	out.TeamID = clonePtr(a.TeamID)
	out.MatchScore = clonePtr(a.MatchScore)
	out.InviteTokenHash = clonePtr(a.InviteTokenHash)
	out.InviteExpiresAt = clonePtr(a.InviteExpiresAt)
	out.InvitedAt = clonePtr(a.InvitedAt)
	out.AssignedAt = clonePtr(a.AssignedAt)
	out.CompletedAt = clonePtr(a.CompletedAt)
	out.CancelledReason = clonePtr(a.CancelledReason)
	out.OwnerFeedback = clonePtr(a.OwnerFeedback)
	out.StudentFeedback = clonePtr(a.StudentFeedback)
	out.RatingFromOwner = clonePtr(a.RatingFromOwner)
	out.RatingFromStudent = clonePtr(a.RatingFromStudent)
	if a.Metadata != nil {
		out.Metadata = maps.Clone(a.Metadata)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
