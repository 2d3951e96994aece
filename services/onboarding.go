package services

import (
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"task-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OnboardingService drives the per-user quest state machine:
// locked → available → in_progress → completed, no skips, completed is
// terminal. Phases are instantiated one at a time, in fixed order.
type OnboardingService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Badges      *BadgeService
	Identity    IdentityProvider
	Notifier    Notifier
}

func NewOnboardingService(db *gorm.DB, progression *ProgressionService, badges *BadgeService, identity IdentityProvider, notifier Notifier) *OnboardingService {
	return &OnboardingService{DB: db, Progression: progression, Badges: badges, Identity: identity, Notifier: notifier}
}

// JourneyView bundles a journey with its materialized quest instances.
type JourneyView struct {
	Journey *models.OnboardingJourney `json:"journey"`
	Quests  []models.QuestInstance    `json:"quests"`
}

// daysSinceStart is 1-based: the start day itself is day 1.
func daysSinceStart(journey *models.OnboardingJourney, now time.Time) int {
	return int(math.Floor(now.Sub(journey.StartDate).Hours()/24)) + 1
}

// StartJourney creates the journey on first activation: phase-1 quests only,
// available when their day target is the first day, locked otherwise.
func (s *OnboardingService) StartJourney(externalUserID string, mentorID *string) (*JourneyView, error) {
	if _, err := s.Progression.EnsureRecord(externalUserID); err != nil {
		return nil, err
	}

	var view *JourneyView
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.OnboardingJourney
		err := tx.Where("external_user_id = ?", externalUserID).First(&existing).Error
		if err == nil {
			return conflictf("onboarding journey already exists for %s", externalUserID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ioErr("load journey", err)
		}

		journey := models.OnboardingJourney{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			StartDate:      time.Now(),
			CurrentPhase:   models.PhaseOrder[0],
			Status:         models.JourneyActive,
			MentorID:       mentorID,
		}
		if err := tx.Create(&journey).Error; err != nil {
			return ioErr("create journey", err)
		}

		quests, err := s.instantiatePhase(tx, &journey, journey.CurrentPhase)
		if err != nil {
			return err
		}
		journey.ProgressPercentage = 0
		view = &JourneyView{Journey: &journey, Quests: quests}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🧭 Onboarding journey started for %s (phase %s, %d quests)",
		externalUserID, view.Journey.CurrentPhase, len(view.Quests))
	return view, nil
}

// instantiatePhase materializes a phase's quest templates for the user.
// Quests gated beyond the current journey day start locked.
func (s *OnboardingService) instantiatePhase(tx *gorm.DB, journey *models.OnboardingJourney, phase models.OnboardingPhase) ([]models.QuestInstance, error) {
	day := daysSinceStart(journey, time.Now())
	templates := models.QuestsForPhase(phase)
	instances := make([]models.QuestInstance, 0, len(templates))
	for _, t := range templates {
		status := models.QuestLocked
		if t.DayTarget <= day {
			status = models.QuestAvailable
		}
		inst := models.QuestInstance{
			ID:              uuid.NewString(),
			ExternalUserID:  journey.ExternalUserID,
			QuestCode:       t.Code,
			Phase:           t.Phase,
			Title:           t.Title,
			Description:     t.Description,
			XPReward:        t.XPReward,
			BadgeCode:       t.BadgeCode,
			DurationMinutes: t.DurationMinutes,
			DayTarget:       t.DayTarget,
			AutoValidation:  t.AutoValidation,
			Status:          status,
		}
		if err := tx.Create(&inst).Error; err != nil {
			return nil, ioErr("create quest instance", err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// GetJourney returns the journey and every quest instance materialized so far.
func (s *OnboardingService) GetJourney(externalUserID string) (*JourneyView, error) {
	var journey models.OnboardingJourney
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&journey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "onboarding journey", ID: externalUserID}
	}
	if err != nil {
		return nil, ioErr("load journey", err)
	}
	quests, err := s.listQuests(s.DB, externalUserID)
	if err != nil {
		return nil, err
	}
	return &JourneyView{Journey: &journey, Quests: quests}, nil
}

func (s *OnboardingService) listQuests(db *gorm.DB, externalUserID string) ([]models.QuestInstance, error) {
	var quests []models.QuestInstance
	if err := db.Where("external_user_id = ?", externalUserID).
		Order("created_at ASC").
		Find(&quests).Error; err != nil {
		return nil, ioErr("load quest instances", err)
	}
	return quests, nil
}

func (s *OnboardingService) lockJourney(tx *gorm.DB, externalUserID string) (*models.OnboardingJourney, error) {
	var journey models.OnboardingJourney
	err := forUpdate(tx).
		Where("external_user_id = ?", externalUserID).
		First(&journey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "onboarding journey", ID: externalUserID}
	}
	if err != nil {
		return nil, ioErr("lock journey", err)
	}
	return &journey, nil
}

func (s *OnboardingService) lockQuest(tx *gorm.DB, externalUserID string, code models.QuestCode) (*models.QuestInstance, error) {
	if _, err := models.QuestByCode(code); err != nil {
		return nil, validationf("%v", err)
	}
	var quest models.QuestInstance
	err := forUpdate(tx).
		Where("external_user_id = ? AND quest_code = ?", externalUserID, code).
		First(&quest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "quest instance", ID: string(code)}
	}
	if err != nil {
		return nil, ioErr("lock quest instance", err)
	}
	return &quest, nil
}

// StartQuest: available → in_progress only.
func (s *OnboardingService) StartQuest(externalUserID string, code models.QuestCode) (*models.QuestInstance, error) {
	var quest *models.QuestInstance
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		journey, err := s.lockJourney(tx, externalUserID)
		if err != nil {
			return err
		}
		if journey.Status == models.JourneyPaused {
			return conflictf("journey is paused")
		}
		q, err := s.lockQuest(tx, externalUserID, code)
		if err != nil {
			return err
		}
		switch q.Status {
		case models.QuestAvailable:
			// proceed
		case models.QuestLocked:
			return conflictf("quest %s is locked until day %d", code, q.DayTarget)
		case models.QuestInProgress:
			return conflictf("quest %s is already in progress", code)
		default:
			return conflictf("quest %s is already completed", code)
		}
		now := time.Now()
		q.Status = models.QuestInProgress
		q.StartedAt = &now
		if err := tx.Save(q).Error; err != nil {
			return ioErr("save quest instance", err)
		}
		quest = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quest, nil
}

// CompleteQuest: in_progress → completed only. Auto-validation quests accept
// the owner's own report; manual quests require a distinct principal holding
// the quest-validation capability. On success the quest's XP is awarded, its
// attached badge granted, and the unlock sweep runs — all in one transaction.
func (s *OnboardingService) CompleteQuest(externalUserID string, code models.QuestCode, validatorID string) (*JourneyView, error) {
	var view *JourneyView
	var events []pendingNotice
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		journey, err := s.lockJourney(tx, externalUserID)
		if err != nil {
			return err
		}
		if journey.Status == models.JourneyPaused {
			return conflictf("journey is paused")
		}
		quest, err := s.lockQuest(tx, externalUserID, code)
		if err != nil {
			return err
		}
		switch quest.Status {
		case models.QuestInProgress:
			// proceed
		case models.QuestCompleted:
			return conflictf("quest %s is already completed", code)
		default:
			return conflictf("quest %s has not been started", code)
		}

		validatedBy := models.ValidatedByAuto
		if !quest.AutoValidation {
			if validatorID == "" || validatorID == externalUserID {
				return conflictf("quest %s requires validation by a mentor or admin, not the quest owner", code)
			}
			if err := requireCapability(s.Identity, validatorID, CapabilityValidateQuest); err != nil {
				return err
			}
			validatedBy = validatorID
		}

		now := time.Now()
		quest.Status = models.QuestCompleted
		quest.Progress = 100
		quest.CompletedAt = &now
		quest.ValidatedBy = validatedBy
		if err := tx.Save(quest).Error; err != nil {
			return ioErr("save quest instance", err)
		}

		// Quest XP and the quest-completion counter go through the ledger so
		// threshold/counter badges fire in the same pass.
		prog, err := s.Progression.lockRecord(tx, externalUserID)
		if err != nil {
			return err
		}
		prog.QuestsCompleted++
		var award *AwardResult
		if quest.XPReward > 0 {
			award, err = s.Progression.awardLocked(tx, prog, quest.XPReward, "quest:"+string(code))
			if err != nil {
				return err
			}
		} else {
			if err := tx.Save(prog).Error; err != nil {
				return ioErr("save progression record", err)
			}
			award = &AwardResult{Progress: prog, PreviousLevel: prog.Level}
		}
		journey.TotalXPEarned += quest.XPReward
		journey.TotalBadgesEarned += int64(len(award.NewBadges))
		events = append(events, awardNotices(externalUserID, award)...)

		if quest.BadgeCode != nil {
			granted, reward, err := s.Badges.GrantQuestBadgeTx(tx, externalUserID, code, *quest.BadgeCode)
			if err != nil {
				return err
			}
			if granted {
				journey.TotalBadgesEarned++
				if def, derr := models.BadgeByCode(*quest.BadgeCode); derr == nil {
					events = append(events, pendingNotice{externalUserID, NotifyBadgeUnlocked, map[string]interface{}{
						"badge_code": def.Code, "name": def.Name, "rarity": def.Rarity,
					}})
				}
				if reward != nil {
					journey.TotalBadgesEarned += int64(len(reward.NewBadges))
					events = append(events, awardNotices(externalUserID, reward)...)
				}
			}
		}

		phaseEvents, err := s.sweepAndAdvance(tx, journey)
		if err != nil {
			return err
		}
		events = append(events, phaseEvents...)
		events = append(events, pendingNotice{externalUserID, NotifyQuestCompleted, map[string]interface{}{
			"quest_code": code, "title": quest.Title, "xp_reward": quest.XPReward,
		}})

		if err := tx.Save(journey).Error; err != nil {
			return ioErr("save journey", err)
		}

		quests, err := s.listQuests(tx, externalUserID)
		if err != nil {
			return err
		}
		view = &JourneyView{Journey: journey, Quests: quests}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		s.Notifier.Notify(ev.userID, ev.kind, ev.payload)
	}
	log.Printf("✅ Quest completed: %s → %s (phase %s, %d%%)",
		code, externalUserID, view.Journey.CurrentPhase, view.Journey.ProgressPercentage)
	return view, nil
}

type pendingNotice struct {
	userID  string
	kind    string
	payload map[string]interface{}
}

// awardNotices turns an award's level-up and badge unlocks into queued
// notices, so quest-driven ledger events fire the same notifications as a
// direct AwardXP.
func awardNotices(userID string, award *AwardResult) []pendingNotice {
	if award == nil {
		return nil
	}
	var out []pendingNotice
	if award.LeveledUp {
		out = append(out, pendingNotice{userID, NotifyLevelUp, map[string]interface{}{
			"previous_level": award.PreviousLevel,
			"new_level":      award.Progress.Level,
		}})
	}
	for _, def := range award.NewBadges {
		out = append(out, pendingNotice{userID, NotifyBadgeUnlocked, map[string]interface{}{
			"badge_code": def.Code, "name": def.Name, "rarity": def.Rarity,
		}})
	}
	return out
}

// sweepAndAdvance is the unlock sweep: day-gated quests whose target has
// elapsed become available, fully-completed phases advance CurrentPhase and
// materialize the next phase, and a journey whose last phase is done becomes
// completed. Runs only synchronously inside quest completion — a user who
// never completes anything is unlocked on their next interaction.
func (s *OnboardingService) sweepAndAdvance(tx *gorm.DB, journey *models.OnboardingJourney) ([]pendingNotice, error) {
	day := daysSinceStart(journey, time.Now())
	if err := tx.Model(&models.QuestInstance{}).
		Where("external_user_id = ? AND status = ? AND day_target <= ?",
			journey.ExternalUserID, models.QuestLocked, day).
		Update("status", models.QuestAvailable).Error; err != nil {
		return nil, ioErr("unlock sweep", err)
	}

	var events []pendingNotice
	// CurrentPhase must end up as the lowest-ordered phase not fully
	// completed; advancing instantiates fresh (incomplete) quests, which
	// stops the loop.
	for {
		done, err := s.phaseCompleted(tx, journey.ExternalUserID, journey.CurrentPhase)
		if err != nil {
			return nil, err
		}
		if !done {
			break
		}
		next := models.NextPhase(journey.CurrentPhase)
		if next == "" {
			if journey.Status != models.JourneyCompleted {
				journey.Status = models.JourneyCompleted
				events = append(events, pendingNotice{journey.ExternalUserID, NotifyJourneyCompleted, map[string]interface{}{
					"total_xp_earned":     journey.TotalXPEarned,
					"total_badges_earned": journey.TotalBadgesEarned,
				}})
			}
			break
		}
		if _, err := s.instantiatePhase(tx, journey, next); err != nil {
			return nil, err
		}
		journey.CurrentPhase = next
		events = append(events, pendingNotice{journey.ExternalUserID, NotifyPhaseAdvanced, map[string]interface{}{
			"phase": next,
		}})
	}

	var total, completed int64
	if err := tx.Model(&models.QuestInstance{}).
		Where("external_user_id = ?", journey.ExternalUserID).
		Count(&total).Error; err != nil {
		return nil, ioErr("count quest instances", err)
	}
	if err := tx.Model(&models.QuestInstance{}).
		Where("external_user_id = ? AND status = ?", journey.ExternalUserID, models.QuestCompleted).
		Count(&completed).Error; err != nil {
		return nil, ioErr("count completed quests", err)
	}
	if total > 0 {
		journey.ProgressPercentage = int(math.Round(100 * float64(completed) / float64(total)))
	}
	return events, nil
}

func (s *OnboardingService) phaseCompleted(tx *gorm.DB, externalUserID string, phase models.OnboardingPhase) (bool, error) {
	var remaining int64
	if err := tx.Model(&models.QuestInstance{}).
		Where("external_user_id = ? AND phase = ? AND status <> ?",
			externalUserID, phase, models.QuestCompleted).
		Count(&remaining).Error; err != nil {
		return false, ioErr("count phase quests", err)
	}
	return remaining == 0, nil
}

// PauseJourney: active → paused.
func (s *OnboardingService) PauseJourney(externalUserID string) (*models.OnboardingJourney, error) {
	return s.setStatus(externalUserID, models.JourneyActive, models.JourneyPaused)
}

// ResumeJourney: paused → active.
func (s *OnboardingService) ResumeJourney(externalUserID string) (*models.OnboardingJourney, error) {
	return s.setStatus(externalUserID, models.JourneyPaused, models.JourneyActive)
}

func (s *OnboardingService) setStatus(externalUserID string, from, to models.JourneyStatus) (*models.OnboardingJourney, error) {
	var journey *models.OnboardingJourney
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		j, err := s.lockJourney(tx, externalUserID)
		if err != nil {
			return err
		}
		if j.Status != from {
			return conflictf("journey is %s, expected %s", j.Status, from)
		}
		j.Status = to
		if err := tx.Save(j).Error; err != nil {
			return ioErr("save journey", err)
		}
		journey = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return journey, nil
}

// AddNote appends to the journey's append-only note list.
func (s *OnboardingService) AddNote(externalUserID, authorID, content string) (*models.OnboardingJourney, error) {
	if strings.TrimSpace(content) == "" {
		return nil, validationf("note content must not be empty")
	}
	var journey *models.OnboardingJourney
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		j, err := s.lockJourney(tx, externalUserID)
		if err != nil {
			return err
		}
		j.Notes = append(j.Notes, models.JourneyNote{
			Content:   content,
			AuthorID:  authorID,
			CreatedAt: time.Now(),
		})
		if err := tx.Save(j).Error; err != nil {
			return ioErr("save journey", err)
		}
		journey = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return journey, nil
}
