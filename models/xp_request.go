package models

import "time"

// XPRequestStatus indicates where a claim sits in the approval lifecycle.
// pending → approved | rejected; both terminal.
type XPRequestStatus string

const (
	XPRequestPending  XPRequestStatus = "pending"
	XPRequestApproved XPRequestStatus = "approved"
	XPRequestRejected XPRequestStatus = "rejected"
)

// XPRequest is a human-reviewed claim for XP not covered by an automatic rule.
// Once resolved the record is immutable; deletion is administrative cleanup
// and never reverses an approved award.
type XPRequest struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"index;not null" json:"external_user_id"`
	TaskID         *string `gorm:"index" json:"task_id,omitempty"` // nil = free-form accomplishment

	Description string `gorm:"type:text;not null" json:"description"`
	XPAmount    int64  `json:"xp_amount"` // positive; admin-adjustable before approval
	EvidenceURL string `gorm:"type:text" json:"evidence_url,omitempty"`

	Status     XPRequestStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ResolvedBy *string         `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	AdminNotes string          `gorm:"type:text" json:"admin_notes,omitempty"`

	// Set once the stale-pending reminder has gone out, so validators are
	// nagged at most once per request.
	RemindedAt *time.Time `json:"reminded_at,omitempty"`

	Timestamps
}
