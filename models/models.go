// models/models.go - Projects and the audit trail
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusOpen       ProjectStatus = "open"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Project is a work opportunity published by a business owner
type Project struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID         `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title         string            `json:"title" gorm:"not null;size:200"`
	Description   string            `json:"description" gorm:"type:text"`
	Domain        string            `json:"domain" gorm:"size:80"`
	RequiredLevel string            `json:"required_level" gorm:"size:40"`
	Status        ProjectStatus     `json:"status" gorm:"not null;size:20;default:'open';index"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// AuditEvent is an append-only record of a committed lifecycle transition
type AuditEvent struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	EventType string            `json:"event_type" gorm:"not null;size:80;index"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty" gorm:"type:uuid;index"`
	Subject   datatypes.JSONMap `json:"subject,omitempty"`
	Result    datatypes.JSONMap `json:"result,omitempty"`
	Extra     datatypes.JSONMap `json:"extra,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Project) TableName() string {
	return "projects"
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
