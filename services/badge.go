package services

import (
	"errors"
	"log"
	"time"

	"task-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// evaluateBadges returns the catalog badges whose rules are satisfied by the
// post-XP-application record and that are not already granted. Pure over its
// inputs; quest-attached badges are never proposed here.
func evaluateBadges(prog *models.UserProgression, granted map[models.BadgeCode]bool) []*models.BadgeDefinition {
	var out []*models.BadgeDefinition
	for i := range models.BadgeCatalog {
		def := &models.BadgeCatalog[i]
		if granted[def.Code] {
			continue
		}
		if ruleSatisfied(&def.Trigger, prog) {
			out = append(out, def)
		}
	}
	return out
}

func ruleSatisfied(trigger *models.BadgeTrigger, prog *models.UserProgression) bool {
	switch trigger.Kind {
	case models.TriggerXPThreshold:
		return prog.TotalXP >= trigger.Threshold
	case models.TriggerCounterThreshold:
		return counterValue(prog, trigger.Counter) >= trigger.Threshold
	case models.TriggerLevelMultiple:
		return prog.Level >= trigger.Level
	default:
		// TriggerQuest and anything future: grant-by-rule never applies
		return false
	}
}

func counterValue(prog *models.UserProgression, counter models.CounterKind) int64 {
	switch counter {
	case models.CounterTasksCompleted:
		return prog.TasksCompleted
	case models.CounterProjectsCreated:
		return prog.ProjectsCreated
	case models.CounterQuestsCompleted:
		return prog.QuestsCompleted
	case models.CounterLoginStreakDays:
		return prog.LoginStreakDays
	default:
		return 0
	}
}

type BadgeService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Identity    IdentityProvider
	Notifier    Notifier
}

func NewBadgeService(db *gorm.DB, progression *ProgressionService, identity IdentityProvider, notifier Notifier) *BadgeService {
	return &BadgeService{DB: db, Progression: progression, Identity: identity, Notifier: notifier}
}

// RequireGrantCapability guards the admin direct-XP-grant endpoint.
func (s *BadgeService) RequireGrantCapability(adminID string) error {
	return requireCapability(s.Identity, adminID, CapabilityGrantXP)
}

// ListGrants returns a user's badge grants in unlock order.
func (s *BadgeService) ListGrants(externalUserID string) ([]models.UserBadge, error) {
	var grants []models.UserBadge
	if err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("unlocked_at ASC").
		Find(&grants).Error; err != nil {
		return nil, ioErr("load badge grants", err)
	}
	return grants, nil
}

// GrantQuestBadgeTx grants a quest-attached badge unconditionally inside the
// caller's transaction: the "rule" is quest completion itself, so the
// evaluator is bypassed. Still idempotent by code, and reward XP still flows
// through the ledger. The returned AwardResult carries level-ups and badges
// cascading from the reward XP (nil when the badge carries no reward or was
// already granted).
func (s *BadgeService) GrantQuestBadgeTx(tx *gorm.DB, externalUserID string, code models.QuestCode, badgeCode models.BadgeCode) (bool, *AwardResult, error) {
	def, err := models.BadgeByCode(badgeCode)
	if err != nil {
		return false, nil, validationf("%v", err)
	}

	granted, err := grantedCodes(tx, externalUserID)
	if err != nil {
		return false, nil, err
	}
	if granted[badgeCode] {
		return false, nil, nil
	}

	grant := models.UserBadge{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		BadgeCode:      badgeCode,
		UnlockedAt:     time.Now(),
		GrantedBy:      models.GrantedByAuto,
		Metadata:       `{"quest_code":"` + string(code) + `"}`,
	}
	if err := tx.Create(&grant).Error; err != nil {
		return false, nil, ioErr("insert badge grant", err)
	}
	var reward *AwardResult
	if def.XPReward > 0 {
		reward, err = s.Progression.AwardXPTx(tx, externalUserID, def.XPReward, "badge:"+string(badgeCode))
		if err != nil {
			return false, nil, err
		}
	}
	log.Printf("🎖️ Badge awarded: %s → %s (quest %s)", def.Name, externalUserID, code)
	return true, reward, nil
}

// ManualGrant awards a badge by admin decision, skipping rule evaluation
// entirely. The grant is tagged with the admin's id, which exempts it from any
// automatic logic tied to rule re-evaluation.
func (s *BadgeService) ManualGrant(adminID, externalUserID string, code models.BadgeCode) (*models.UserBadge, error) {
	if err := requireCapability(s.Identity, adminID, CapabilityManageBadges); err != nil {
		return nil, err
	}
	def, err := models.BadgeByCode(code)
	if err != nil {
		return nil, validationf("%v", err)
	}
	if _, err := s.Progression.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}

	var grant models.UserBadge
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		granted, err := grantedCodes(tx, externalUserID)
		if err != nil {
			return err
		}
		if granted[code] {
			return conflictf("badge %s already granted to %s", code, externalUserID)
		}
		grant = models.UserBadge{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			BadgeCode:      code,
			UnlockedAt:     time.Now(),
			GrantedBy:      adminID,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return ioErr("insert badge grant", err)
		}
		if def.XPReward > 0 {
			if _, err := s.Progression.AwardXPTx(tx, externalUserID, def.XPReward, "badge:"+string(code)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎖️ Badge granted manually: %s → %s (by %s)", def.Name, externalUserID, adminID)
	s.Notifier.Notify(externalUserID, NotifyBadgeUnlocked, map[string]interface{}{
		"badge_code": def.Code,
		"name":       def.Name,
		"rarity":     def.Rarity,
	})
	return &grant, nil
}

// RemoveGrant deletes a grant and subtracts its reward XP. TotalXP is clamped
// at zero — removal can never make XP negative; a clamp is logged as a
// discrepancy. Level is re-derived from the new total.
func (s *BadgeService) RemoveGrant(adminID, externalUserID string, code models.BadgeCode) error {
	if err := requireCapability(s.Identity, adminID, CapabilityManageBadges); err != nil {
		return err
	}
	def, err := models.BadgeByCode(code)
	if err != nil {
		return validationf("%v", err)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var grant models.UserBadge
		err := tx.Where("external_user_id = ? AND badge_code = ?", externalUserID, code).
			First(&grant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "badge grant", ID: string(code)}
		}
		if err != nil {
			return ioErr("load badge grant", err)
		}
		if err := tx.Delete(&grant).Error; err != nil {
			return ioErr("delete badge grant", err)
		}
		if def.XPReward == 0 {
			return nil
		}

		prog, err := s.Progression.lockRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		newTotal := prog.TotalXP - def.XPReward
		if newTotal < 0 {
			log.Printf("⚠️ Badge removal clamped XP for %s: total %d < reward %d (badge %s)",
				externalUserID, prog.TotalXP, def.XPReward, code)
			newTotal = 0
		}
		removed := prog.TotalXP - newTotal
		prog.TotalXP = newTotal
		info := LevelOf(prog.TotalXP)
		prog.Level = info.Level
		prog.XP = info.XPIntoLevel
		prog.AppendHistory(models.XPHistoryEntry{
			Amount:     -removed,
			Source:     "badge_removed:" + string(code),
			TotalAfter: prog.TotalXP,
			RecordedAt: time.Now(),
		})
		if err := tx.Save(prog).Error; err != nil {
			return ioErr("save progression record", err)
		}
		return nil
	})
}
