// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:120" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Role      Role      `gorm:"not null;size:20;index" json:"role"`
	Level     string    `gorm:"size:40" json:"level,omitempty"`
	Domain    string    `gorm:"size:80" json:"domain,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
