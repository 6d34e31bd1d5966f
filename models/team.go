// models/team.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type TeamStatus string

const (
	TeamStatusPending  TeamStatus = "pending"
	TeamStatusPartial  TeamStatus = "partial"
	TeamStatusFrozen   TeamStatus = "frozen"
	TeamStatusActive   TeamStatus = "active"
	TeamStatusArchived TeamStatus = "archived"
)

// Team groups the assignments of several candidates invited together to one
// project. Its status is derived from the member assignments, except archived.
type Team struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID uuid.UUID  `json:"project_id" gorm:"type:uuid;not null;index"`
	OwnerID   uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null"`
	Name      string     `json:"name" gorm:"not null;size:120"`
	Status    TeamStatus `json:"status" gorm:"not null;size:20;default:'pending'"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Team) TableName() string {
	return "teams"
}
