package services

import (
	"errors"
	"log"
	"time"

	"task-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPWeights define relative values for the auto-award actions (tunable via
// config/env later)
type XPWeights struct {
	TaskXP    int64
	ProjectXP int64
	LoginXP   int64
}

var DefaultXPWeights = XPWeights{
	TaskXP:    50,
	ProjectXP: 100,
	LoginXP:   10,
}

// AwardResult is what a caller of AwardXP sees: the final post-badge record,
// never an intermediate one.
type AwardResult struct {
	Progress      *models.UserProgression
	PreviousLevel int
	LeveledUp     bool
	NewBadges     []models.BadgeDefinition
}

type ProgressionService struct {
	DB       *gorm.DB
	Notifier Notifier
	Weights  XPWeights
}

func NewProgressionService(db *gorm.DB, notifier Notifier) *ProgressionService {
	return &ProgressionService{DB: db, Notifier: notifier, Weights: DefaultXPWeights}
}

// EnsureRecord ensures a UserProgression row exists (idempotent)
func (s *ProgressionService) EnsureRecord(externalUserID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgression{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			TotalXP:        0,
			Level:          1,
		}
		if err := s.DB.Create(&prog).Error; err != nil {
			return nil, ioErr("create progression record", err)
		}
		return &prog, nil
	}
	if err != nil {
		return nil, ioErr("load progression record", err)
	}
	return &prog, nil
}

// GetRecord loads a user's progression without creating it.
func (s *ProgressionService) GetRecord(externalUserID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "progression record", ID: externalUserID}
	}
	if err != nil {
		return nil, ioErr("load progression record", err)
	}
	return &prog, nil
}

// AwardXP applies an XP delta to a user's record, re-derives level and
// within-level XP, and runs badge evaluation to a fixed point — badge reward
// XP granted along the way is part of the same logical transaction.
func (s *ProgressionService) AwardXP(externalUserID string, amount int64, source string) (*AwardResult, error) {
	var res *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.AwardXPTx(tx, externalUserID, amount, source)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyAward(externalUserID, res)
	return res, nil
}

// AwardXPTx is AwardXP for callers already inside a transaction (quest
// completion, XP-request approval). Notifications are the outer caller's job.
func (s *ProgressionService) AwardXPTx(tx *gorm.DB, externalUserID string, amount int64, source string) (*AwardResult, error) {
	prog, err := s.lockRecord(tx, externalUserID)
	if err != nil {
		return nil, err
	}
	return s.awardLocked(tx, prog, amount, source)
}

// forUpdate adds a row lock where the dialect has one. SQLite serializes
// writes on the database lock instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockRecord reads the row under FOR UPDATE so the whole read-modify-write is
// one atomic unit per user.
func (s *ProgressionService) lockRecord(tx *gorm.DB, externalUserID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := forUpdate(tx).
		Where("external_user_id = ?", externalUserID).
		First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "progression record", ID: externalUserID}
	}
	if err != nil {
		return nil, ioErr("lock progression record", err)
	}
	return &prog, nil
}

// awardLocked applies the delta and then loops "evaluate badges → grant →
// apply reward XP" until no new badges fire. Termination is bounded by the
// catalog size: a granted code is permanently excluded from re-proposal.
func (s *ProgressionService) awardLocked(tx *gorm.DB, prog *models.UserProgression, amount int64, source string) (*AwardResult, error) {
	if amount <= 0 {
		return nil, validationf("xp amount must be positive, got %d", amount)
	}

	previousLevel := prog.Level
	s.applyDelta(prog, amount, source)

	granted, err := grantedCodes(tx, prog.ExternalUserID)
	if err != nil {
		return nil, err
	}

	var newBadges []models.BadgeDefinition
	for pass := 0; pass < len(models.BadgeCatalog); pass++ {
		candidates := evaluateBadges(prog, granted)
		if len(candidates) == 0 {
			break
		}
		for _, def := range candidates {
			grant := models.UserBadge{
				ID:             uuid.NewString(),
				ExternalUserID: prog.ExternalUserID,
				BadgeCode:      def.Code,
				UnlockedAt:     time.Now(),
				GrantedBy:      models.GrantedByAuto,
			}
			if err := tx.Create(&grant).Error; err != nil {
				return nil, ioErr("insert badge grant", err)
			}
			granted[def.Code] = true
			newBadges = append(newBadges, *def)
			if def.XPReward > 0 {
				s.applyDelta(prog, def.XPReward, "badge:"+string(def.Code))
			}
		}
	}

	if err := tx.Save(prog).Error; err != nil {
		return nil, ioErr("save progression record", err)
	}

	res := &AwardResult{
		Progress:      prog,
		PreviousLevel: previousLevel,
		LeveledUp:     prog.Level > previousLevel,
		NewBadges:     newBadges,
	}
	log.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d (+%d, source: %s, badges: %d)",
		prog.ExternalUserID, prog.TotalXP, prog.Level, amount, source, len(newBadges))
	return res, nil
}

// applyDelta is the only place TotalXP changes on the award path. Level and
// within-level XP are always re-derived, never incremented.
func (s *ProgressionService) applyDelta(prog *models.UserProgression, amount int64, source string) {
	prog.TotalXP += amount
	info := LevelOf(prog.TotalXP)
	if info.Level > prog.Level {
		now := time.Now()
		prog.LastLevelUpAt = &now
	}
	prog.Level = info.Level
	prog.XP = info.XPIntoLevel
	prog.AppendHistory(models.XPHistoryEntry{
		Amount:     amount,
		Source:     source,
		TotalAfter: prog.TotalXP,
		RecordedAt: time.Now(),
	})
}

func (s *ProgressionService) notifyAward(userID string, res *AwardResult) {
	if res.LeveledUp {
		s.Notifier.Notify(userID, NotifyLevelUp, map[string]interface{}{
			"previous_level": res.PreviousLevel,
			"new_level":      res.Progress.Level,
		})
	}
	for _, def := range res.NewBadges {
		s.Notifier.Notify(userID, NotifyBadgeUnlocked, map[string]interface{}{
			"badge_code": def.Code,
			"name":       def.Name,
			"rarity":     def.Rarity,
		})
	}
}

// RecordTaskCompleted bumps the task counter and awards the task weight.
func (s *ProgressionService) RecordTaskCompleted(externalUserID, taskID string) (*AwardResult, error) {
	if _, err := s.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}
	var res *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prog, err := s.lockRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		prog.TasksCompleted++
		r, err := s.awardLocked(tx, prog, s.Weights.TaskXP, "task_completed:"+taskID)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyAward(externalUserID, res)
	return res, nil
}

// RecordProjectCreated bumps the project counter and awards the project weight.
func (s *ProgressionService) RecordProjectCreated(externalUserID, projectID string) (*AwardResult, error) {
	if _, err := s.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}
	var res *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prog, err := s.lockRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		prog.ProjectsCreated++
		r, err := s.awardLocked(tx, prog, s.Weights.ProjectXP, "project_created:"+projectID)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyAward(externalUserID, res)
	return res, nil
}

// RecordLogin maintains the daily login streak. Same calendar day is a no-op
// (no XP, no streak change); a consecutive day extends the streak; a gap
// resets it to 1. Streak badges fire through the regular evaluation pass.
func (s *ProgressionService) RecordLogin(externalUserID string) (*AwardResult, error) {
	if _, err := s.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}
	var res *AwardResult
	var sameDay bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prog, err := s.lockRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		now := time.Now()
		today := now.Truncate(24 * time.Hour)
		if prog.LastLoginAt != nil {
			last := prog.LastLoginAt.Truncate(24 * time.Hour)
			switch {
			case last.Equal(today):
				sameDay = true
				res = &AwardResult{Progress: prog, PreviousLevel: prog.Level}
				return nil
			case today.Sub(last) == 24*time.Hour:
				prog.LoginStreakDays++
			default:
				prog.LoginStreakDays = 1
			}
		} else {
			prog.LoginStreakDays = 1
		}
		prog.LastLoginAt = &now
		r, err := s.awardLocked(tx, prog, s.Weights.LoginXP, "login")
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sameDay {
		s.notifyAward(externalUserID, res)
	}
	return res, nil
}

// grantedCodes loads the set of already-granted badge codes inside the
// transaction.
func grantedCodes(tx *gorm.DB, externalUserID string) (map[models.BadgeCode]bool, error) {
	var codes []models.BadgeCode
	if err := tx.Model(&models.UserBadge{}).
		Where("external_user_id = ?", externalUserID).
		Pluck("badge_code", &codes).Error; err != nil {
		return nil, ioErr("load badge grants", err)
	}
	granted := make(map[models.BadgeCode]bool, len(codes))
	for _, c := range codes {
		granted[c] = true
	}
	return granted, nil
}
