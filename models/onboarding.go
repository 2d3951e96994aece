package models

import (
	"fmt"
	"time"
)

// OnboardingPhase is one of the four fixed, ordered journey stages.
type OnboardingPhase string

const (
	PhaseOrientation    OnboardingPhase = "orientation"
	PhasePrimarySkill   OnboardingPhase = "primary-skill-training"
	PhaseSecondarySkill OnboardingPhase = "secondary-skill-training"
	PhaseAutonomy       OnboardingPhase = "autonomy"
)

// PhaseOrder is the fixed phase progression; autonomy has no successor.
var PhaseOrder = []OnboardingPhase{
	PhaseOrientation,
	PhasePrimarySkill,
	PhaseSecondarySkill,
	PhaseAutonomy,
}

// NextPhase returns the successor phase, or "" when phase is the last one.
func NextPhase(phase OnboardingPhase) OnboardingPhase {
	for i, p := range PhaseOrder {
		if p == phase && i+1 < len(PhaseOrder) {
			return PhaseOrder[i+1]
		}
	}
	return ""
}

type JourneyStatus string

const (
	JourneyActive    JourneyStatus = "active"
	JourneyCompleted JourneyStatus = "completed"
	JourneyPaused    JourneyStatus = "paused"
)

// JourneyNote is an append-only annotation on a journey (mentor feedback,
// check-in summaries).
type JourneyNote struct {
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OnboardingJourney: one per user, created once. CurrentPhase is always the
// lowest-ordered phase not yet fully completed — recomputed after every quest
// completion, never hand-set.
type OnboardingJourney struct {
	ID             string          `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string          `gorm:"uniqueIndex;not null" json:"external_user_id"`
	StartDate      time.Time       `json:"start_date"`
	CurrentPhase   OnboardingPhase `gorm:"type:varchar(32);not null" json:"current_phase"`
	Status         JourneyStatus   `gorm:"type:varchar(16);not null;default:'active'" json:"status"`

	TotalXPEarned      int64 `json:"total_xp_earned" gorm:"default:0"`
	TotalBadgesEarned  int64 `json:"total_badges_earned" gorm:"default:0"`
	ProgressPercentage int   `json:"progress_percentage" gorm:"default:0"`

	MentorID *string       `json:"mentor_id,omitempty"`
	Notes    []JourneyNote `json:"notes" gorm:"type:jsonb;serializer:json"`

	Timestamps
}

type QuestStatus string

const (
	QuestLocked     QuestStatus = "locked"
	QuestAvailable  QuestStatus = "available"
	QuestInProgress QuestStatus = "in_progress"
	QuestCompleted  QuestStatus = "completed"
)

// ValidatedByAuto marks quests accepted on self-report; manual quests carry
// the validating mentor's user id instead.
const ValidatedByAuto = "auto"

// QuestCode is a closed identifier set mirroring the template below.
type QuestCode string

const (
	QuestMeetTheTeam      QuestCode = "meet_the_team"
	QuestWorkspaceSetup   QuestCode = "workspace_setup"
	QuestFirstTask        QuestCode = "first_task"
	QuestPlatformTour     QuestCode = "platform_tour"
	QuestPrimaryBasics    QuestCode = "primary_basics"
	QuestPrimaryProject   QuestCode = "primary_project"
	QuestPrimaryReview    QuestCode = "primary_review"
	QuestSecondaryBasics  QuestCode = "secondary_basics"
	QuestSecondaryProject QuestCode = "secondary_project"
	QuestSoloProject      QuestCode = "solo_project"
	QuestMentorHandoff    QuestCode = "mentor_handoff"
)

// QuestTemplate is static per-quest config; QuestInstance copies it per user.
type QuestTemplate struct {
	Code            QuestCode
	Phase           OnboardingPhase
	Title           string
	Description     string
	XPReward        int64
	BadgeCode       *BadgeCode // granted unconditionally on completion
	DurationMinutes int
	DayTarget       int // earliest journey day (1-based) the quest unlocks
	AutoValidation  bool
}

// QuestInstance is the per-user materialization of a template quest.
type QuestInstance struct {
	ID             string          `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string          `gorm:"index:idx_user_quest,unique;not null" json:"external_user_id"`
	QuestCode      QuestCode       `gorm:"index:idx_user_quest,unique;not null" json:"quest_code"`
	Phase          OnboardingPhase `gorm:"type:varchar(32);index;not null" json:"phase"`

	// Copied template metadata
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	XPReward        int64      `json:"xp_reward"`
	BadgeCode       *BadgeCode `json:"badge_code,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	DayTarget       int        `json:"day_target"`
	AutoValidation  bool       `json:"auto_validation"`

	// Per-user state
	Status      QuestStatus `gorm:"type:varchar(16);not null;default:'locked'" json:"status"`
	Progress    int         `json:"progress" gorm:"default:0"` // 0–100
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ValidatedBy string      `json:"validated_by,omitempty"`
	Notes       string      `gorm:"type:text" json:"notes,omitempty"`

	Timestamps
}

// IsLocked holds iff the quest has not passed its day gate yet.
func (q *QuestInstance) IsLocked() bool { return q.Status == QuestLocked }

func badgeRef(code BadgeCode) *BadgeCode { return &code }

// OnboardingTemplate is the full static journey definition, ordered by phase
// then by quest. Instances are materialized one phase at a time.
var OnboardingTemplate = []QuestTemplate{
	// Orientation — day one basics, all self-reported
	{Code: QuestMeetTheTeam, Phase: PhaseOrientation, Title: "Meet the Team",
		Description: "Introduce yourself in the team channel and meet your mentor.",
		XPReward:    30, BadgeCode: badgeRef(BadgeFirstDay), DurationMinutes: 30, DayTarget: 1, AutoValidation: true},
	{Code: QuestWorkspaceSetup, Phase: PhaseOrientation, Title: "Workspace Setup",
		Description: "Set up your accounts, tooling and notification preferences.",
		XPReward:    40, DurationMinutes: 60, DayTarget: 1, AutoValidation: true},
	{Code: QuestPlatformTour, Phase: PhaseOrientation, Title: "Platform Tour",
		Description: "Walk through projects, boards and the activity feed.",
		XPReward:    30, DurationMinutes: 45, DayTarget: 2, AutoValidation: true},
	{Code: QuestFirstTask, Phase: PhaseOrientation, Title: "Your First Task",
		Description: "Pick up and complete a starter task from the onboarding board.",
		XPReward:    60, BadgeCode: badgeRef(BadgeOrientationDone), DurationMinutes: 120, DayTarget: 3, AutoValidation: false},

	// Primary skill training — mentor signs off the project work
	{Code: QuestPrimaryBasics, Phase: PhasePrimarySkill, Title: "Primary Skill Basics",
		Description: "Work through the core curriculum for your primary role.",
		XPReward:    80, DurationMinutes: 240, DayTarget: 5, AutoValidation: true},
	{Code: QuestPrimaryProject, Phase: PhasePrimarySkill, Title: "Primary Skill Project",
		Description: "Deliver a small end-to-end project exercising your primary skill.",
		XPReward:    150, DurationMinutes: 480, DayTarget: 7, AutoValidation: false},
	{Code: QuestPrimaryReview, Phase: PhasePrimarySkill, Title: "Project Review",
		Description: "Present your project to your mentor and incorporate feedback.",
		XPReward:    70, BadgeCode: badgeRef(BadgePrimarySkillDone), DurationMinutes: 60, DayTarget: 10, AutoValidation: false},

	// Secondary skill training
	{Code: QuestSecondaryBasics, Phase: PhaseSecondarySkill, Title: "Secondary Skill Basics",
		Description: "Cross-train on the adjacent skill track for your team.",
		XPReward:    80, DurationMinutes: 240, DayTarget: 12, AutoValidation: true},
	{Code: QuestSecondaryProject, Phase: PhaseSecondarySkill, Title: "Secondary Skill Project",
		Description: "Pair on a task that exercises your secondary skill.",
		XPReward:    120, BadgeCode: badgeRef(BadgeSecondarySkillDone), DurationMinutes: 360, DayTarget: 15, AutoValidation: false},

	// Autonomy — graduation
	{Code: QuestSoloProject, Phase: PhaseAutonomy, Title: "Solo Project",
		Description: "Own a project slice from planning to delivery without supervision.",
		XPReward:    200, DurationMinutes: 960, DayTarget: 18, AutoValidation: false},
	{Code: QuestMentorHandoff, Phase: PhaseAutonomy, Title: "Mentor Handoff",
		Description: "Final review with your mentor; agree on your ongoing goals.",
		XPReward:    100, BadgeCode: badgeRef(BadgeAutonomyReady), DurationMinutes: 60, DayTarget: 20, AutoValidation: false},
}

// QuestsForPhase returns the template quests of a phase in declaration order.
func QuestsForPhase(phase OnboardingPhase) []QuestTemplate {
	var out []QuestTemplate
	for _, t := range OnboardingTemplate {
		if t.Phase == phase {
			out = append(out, t)
		}
	}
	return out
}

// QuestByCode resolves a code against the closed template set.
func QuestByCode(code QuestCode) (*QuestTemplate, error) {
	for i := range OnboardingTemplate {
		if OnboardingTemplate[i].Code == code {
			return &OnboardingTemplate[i], nil
		}
	}
	return nil, fmt.Errorf("unknown quest code %q", code)
}
