package models

import "fmt"

// BadgeCode is a closed identifier set: every code is declared below (or
// generated for level milestones at init), and BadgeByCode rejects anything
// else at construction time instead of silently no-opping.
type BadgeCode string

const (
	// XP ladder
	BadgeXP100  BadgeCode = "xp_100"
	BadgeXP500  BadgeCode = "xp_500"
	BadgeXP1000 BadgeCode = "xp_1000"
	BadgeXP5000 BadgeCode = "xp_5000"

	// Task counters
	BadgeTasks1   BadgeCode = "tasks_1"
	BadgeTasks10  BadgeCode = "tasks_10"
	BadgeTasks50  BadgeCode = "tasks_50"
	BadgeTasks100 BadgeCode = "tasks_100"

	// Project counters
	BadgeProjects1 BadgeCode = "projects_1"
	BadgeProjects5 BadgeCode = "projects_5"

	// Login streaks
	BadgeStreak3  BadgeCode = "streak_3"
	BadgeStreak7  BadgeCode = "streak_7"
	BadgeStreak30 BadgeCode = "streak_30"

	// Quest counters
	BadgeQuests1 BadgeCode = "quests_1"
	BadgeQuests8 BadgeCode = "quests_8"

	// Quest-attached badges — granted by quest completion only, the rule
	// evaluator never proposes them
	BadgeFirstDay           BadgeCode = "first_day"
	BadgeOrientationDone    BadgeCode = "orientation_graduate"
	BadgePrimarySkillDone   BadgeCode = "primary_skill_certified"
	BadgeSecondarySkillDone BadgeCode = "secondary_skill_certified"
	BadgeAutonomyReady      BadgeCode = "autonomy_ready"
)

// LevelBadgeCode returns the generated code for a level-milestone badge,
// e.g. level_5, level_10. These are inherently unique per level.
func LevelBadgeCode(level int) BadgeCode {
	return BadgeCode(fmt.Sprintf("level_%d", level))
}

type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityUncommon  BadgeRarity = "uncommon"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// TriggerKind tags the rule that unlocks a badge.
type TriggerKind string

const (
	TriggerXPThreshold      TriggerKind = "xp_threshold"      // TotalXP >= Threshold
	TriggerCounterThreshold TriggerKind = "counter_threshold" // Counter >= Threshold
	TriggerLevelMultiple    TriggerKind = "level_multiple"    // Level >= fixed milestone
	TriggerQuest            TriggerKind = "quest"             // granted by quest completion only
)

// CounterKind names the UserProgression aggregate a counter rule reads.
type CounterKind string

const (
	CounterTasksCompleted  CounterKind = "tasks_completed"
	CounterProjectsCreated CounterKind = "projects_created"
	CounterQuestsCompleted CounterKind = "quests_completed"
	CounterLoginStreakDays CounterKind = "login_streak_days"
)

// BadgeTrigger is the tagged predicate of a badge definition. Thresholds are
// non-decreasing functions of monotone aggregates, which is what bounds the
// badge-reward fixed-point loop in the granter.
type BadgeTrigger struct {
	Kind      TriggerKind `json:"kind"`
	Counter   CounterKind `json:"counter,omitempty"`
	Threshold int64       `json:"threshold,omitempty"`
	Level     int         `json:"level,omitempty"`
}

// BadgeDefinition: static config, immutable at runtime. Changing the catalog
// never revokes previously granted badges.
type BadgeDefinition struct {
	Code        BadgeCode    `json:"code"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IconURL     string       `json:"icon_url"`
	Rarity      BadgeRarity  `json:"rarity"`
	Category    string       `json:"category"`
	XPReward    int64        `json:"xp_reward"`
	Trigger     BadgeTrigger `json:"trigger"`
}

// LevelBadgeStep mints a level-milestone badge every Nth level, up to level 100.
const LevelBadgeStep = 5

// BadgeCatalog is the full closed badge set, built at init. Insertion order is
// the presentation order.
var BadgeCatalog []BadgeDefinition

var badgeIndex map[BadgeCode]*BadgeDefinition

func init() {
	BadgeCatalog = []BadgeDefinition{
		{Code: BadgeXP100, Name: "Getting Started", Description: "Earned 100 total XP", Rarity: RarityCommon, Category: "xp", XPReward: 20,
			Trigger: BadgeTrigger{Kind: TriggerXPThreshold, Threshold: 100}},
		{Code: BadgeXP500, Name: "Warming Up", Description: "Earned 500 total XP", Rarity: RarityUncommon, Category: "xp", XPReward: 50,
			Trigger: BadgeTrigger{Kind: TriggerXPThreshold, Threshold: 500}},
		{Code: BadgeXP1000, Name: "Serious Business", Description: "Earned 1,000 total XP", Rarity: RarityRare, Category: "xp", XPReward: 100,
			Trigger: BadgeTrigger{Kind: TriggerXPThreshold, Threshold: 1000}},
		{Code: BadgeXP5000, Name: "XP Machine", Description: "Earned 5,000 total XP", Rarity: RarityEpic, Category: "xp", XPReward: 250,
			Trigger: BadgeTrigger{Kind: TriggerXPThreshold, Threshold: 5000}},

		{Code: BadgeTasks1, Name: "First Task Down", Description: "Completed your first task", Rarity: RarityCommon, Category: "tasks", XPReward: 10,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterTasksCompleted, Threshold: 1}},
		{Code: BadgeTasks10, Name: "Task Runner", Description: "Completed 10 tasks", Rarity: RarityUncommon, Category: "tasks", XPReward: 30,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterTasksCompleted, Threshold: 10}},
		{Code: BadgeTasks50, Name: "Task Crusher", Description: "Completed 50 tasks", Rarity: RarityRare, Category: "tasks", XPReward: 75,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterTasksCompleted, Threshold: 50}},
		{Code: BadgeTasks100, Name: "Centurion", Description: "Completed 100 tasks", Rarity: RarityEpic, Category: "tasks", XPReward: 150,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterTasksCompleted, Threshold: 100}},

		{Code: BadgeProjects1, Name: "Project Founder", Description: "Created your first project", Rarity: RarityCommon, Category: "projects", XPReward: 25,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterProjectsCreated, Threshold: 1}},
		{Code: BadgeProjects5, Name: "Serial Founder", Description: "Created 5 projects", Rarity: RarityRare, Category: "projects", XPReward: 100,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterProjectsCreated, Threshold: 5}},

		{Code: BadgeStreak3, Name: "Showing Up", Description: "Logged in 3 days in a row", Rarity: RarityCommon, Category: "streak", XPReward: 15,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterLoginStreakDays, Threshold: 3}},
		{Code: BadgeStreak7, Name: "Regular", Description: "Logged in 7 days in a row", Rarity: RarityUncommon, Category: "streak", XPReward: 40,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterLoginStreakDays, Threshold: 7}},
		{Code: BadgeStreak30, Name: "Unstoppable", Description: "Logged in 30 days in a row", Rarity: RarityLegendary, Category: "streak", XPReward: 200,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterLoginStreakDays, Threshold: 30}},

		{Code: BadgeQuests1, Name: "Questing Begins", Description: "Completed your first onboarding quest", Rarity: RarityCommon, Category: "quests", XPReward: 10,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterQuestsCompleted, Threshold: 1}},
		{Code: BadgeQuests8, Name: "Quest Veteran", Description: "Completed 8 onboarding quests", Rarity: RarityRare, Category: "quests", XPReward: 60,
			Trigger: BadgeTrigger{Kind: TriggerCounterThreshold, Counter: CounterQuestsCompleted, Threshold: 8}},

		{Code: BadgeFirstDay, Name: "Day One", Description: "Finished your first day", Rarity: RarityCommon, Category: "onboarding", XPReward: 0,
			Trigger: BadgeTrigger{Kind: TriggerQuest}},
		{Code: BadgeOrientationDone, Name: "Oriented", Description: "Completed the orientation phase", Rarity: RarityUncommon, Category: "onboarding", XPReward: 25,
			Trigger: BadgeTrigger{Kind: TriggerQuest}},
		{Code: BadgePrimarySkillDone, Name: "Primary Skill Certified", Description: "Completed primary skill training", Rarity: RarityRare, Category: "onboarding", XPReward: 50,
			Trigger: BadgeTrigger{Kind: TriggerQuest}},
		{Code: BadgeSecondarySkillDone, Name: "Secondary Skill Certified", Description: "Completed secondary skill training", Rarity: RarityRare, Category: "onboarding", XPReward: 50,
			Trigger: BadgeTrigger{Kind: TriggerQuest}},
		{Code: BadgeAutonomyReady, Name: "Fully Autonomous", Description: "Completed the onboarding journey", Rarity: RarityEpic, Category: "onboarding", XPReward: 100,
			Trigger: BadgeTrigger{Kind: TriggerQuest}},
	}

	// Level milestone badges: level_5, level_10, ... level_100. Codes are
	// unique per level so the uniqueness guard doubles as the re-fire guard.
	for lvl := LevelBadgeStep; lvl <= 100; lvl += LevelBadgeStep {
		BadgeCatalog = append(BadgeCatalog, BadgeDefinition{
			Code:        LevelBadgeCode(lvl),
			Name:        fmt.Sprintf("Level %d", lvl),
			Description: fmt.Sprintf("Reached level %d", lvl),
			Rarity:      levelBadgeRarity(lvl),
			Category:    "level",
			XPReward:    0,
			Trigger:     BadgeTrigger{Kind: TriggerLevelMultiple, Level: lvl},
		})
	}

	badgeIndex = make(map[BadgeCode]*BadgeDefinition, len(BadgeCatalog))
	for i := range BadgeCatalog {
		badgeIndex[BadgeCatalog[i].Code] = &BadgeCatalog[i]
	}
}

func levelBadgeRarity(level int) BadgeRarity {
	switch {
	case level >= 100:
		return RarityLegendary
	case level >= 50:
		return RarityEpic
	case level >= 25:
		return RarityRare
	case level >= 10:
		return RarityUncommon
	default:
		return RarityCommon
	}
}

// BadgeByCode resolves a code against the closed catalog. Unknown codes are an
// error, never a silent no-op.
func BadgeByCode(code BadgeCode) (*BadgeDefinition, error) {
	def, ok := badgeIndex[code]
	if !ok {
		return nil, fmt.Errorf("unknown badge code %q", code)
	}
	return def, nil
}
