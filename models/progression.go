package models

import (
	"time"

	"gorm.io/gorm"
)

// HistoryRetention bounds the per-user XP history ring buffer. The history is
// for audit/UI only — TotalXP is the authoritative quantity.
const HistoryRetention = 10

// XPHistoryEntry is one entry of the bounded XP audit trail.
type XPHistoryEntry struct {
	Amount     int64     `json:"amount"` // negative on badge revocation
	Source     string    `json:"source"` // e.g. "task_completed", "badge:xp_100", "xp_request:<id>"
	TotalAfter int64     `json:"total_after"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UserProgression tracks gamified progression for each user (denormalized for performance)
type UserProgression struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to identity service

	// Core progression. XP is the within-level remainder and Level a pure
	// function of TotalXP — both re-derived on every write, never set directly.
	TotalXP int64 `json:"total_xp" gorm:"default:0"`
	XP      int64 `json:"xp" gorm:"default:0"`
	Level   int   `json:"level" gorm:"default:1"`

	// Activity counters feeding badge trigger rules
	TasksCompleted  int64 `json:"tasks_completed" gorm:"default:0"`
	ProjectsCreated int64 `json:"projects_created" gorm:"default:0"`
	QuestsCompleted int64 `json:"quests_completed" gorm:"default:0"`
	LoginStreakDays int64 `json:"login_streak_days" gorm:"default:0"`

	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	// Bounded audit ring, newest last (see HistoryRetention)
	History []XPHistoryEntry `json:"history" gorm:"type:jsonb;serializer:json"`

	Timestamps
}

// GrantedByAuto marks badge grants produced by the rule evaluator, as opposed
// to manual grants which carry the granting admin's user id.
const GrantedByAuto = "auto"

// UserBadge: awarded instance, unique per (user, badge code)
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index:idx_user_badge,unique;not null" json:"external_user_id"`
	BadgeCode      BadgeCode `gorm:"index:idx_user_badge,unique;not null" json:"badge_code"`
	UnlockedAt     time.Time `json:"unlocked_at" gorm:"autoCreateTime"`
	GrantedBy      string    `gorm:"not null;default:'auto'" json:"granted_by"`
	Metadata       string    `gorm:"type:jsonb" json:"metadata,omitempty"` // e.g. {"quest_code": "..."}
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// AppendHistory pushes an entry onto the ring, evicting the oldest beyond the
// retention count.
func (p *UserProgression) AppendHistory(entry XPHistoryEntry) {
	p.History = append(p.History, entry)
	if len(p.History) > HistoryRetention {
		p.History = p.History[len(p.History)-HistoryRetention:]
	}
}
