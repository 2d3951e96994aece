package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberUser is a local snapshot of member data needed for capability checks
// and notification fan-out. Owned solely by the progression service and
// populated by the member sync worker from the identity service.
type MemberUser struct {
	ID             string   `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string   `gorm:"uniqueIndex;not null" json:"external_user_id"` // identity service's UUID
	Username       string   `gorm:"index;not null" json:"username"`
	Email          string   `json:"email,omitempty"`
	Roles          []string `gorm:"type:jsonb;serializer:json" json:"roles"` // e.g. ["member","mentor","admin"]
	// No gorm default: a default tag makes gorm drop zero values on insert,
	// which would persist deactivated members as active. Writers always set
	// the value explicitly.
	IsActive bool `gorm:"not null" json:"is_active"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasRole reports membership of a role in the snapshot.
func (m *MemberUser) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}
