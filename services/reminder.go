package services

import (
	"log"
	"time"

	"task-progression-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StaleRequestAge is how long a request may sit pending before validators get
// a reminder. Each request is reminded at most once.
const StaleRequestAge = 24 * time.Hour

// StartReminderScheduler runs the stale-request sweep hourly.
// Notification-only: engine state is never mutated by a scheduled job (the
// unlock sweep stays synchronous with quest completion).
func (s *XPRequestService) StartReminderScheduler() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Reminder] scheduler init failed: %v", err)
		return
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(s.remindStale),
	); err != nil {
		log.Printf("[Reminder] job registration failed: %v", err)
		return
	}
	sched.Start()
}

// remindStale nags validators about pending requests older than
// StaleRequestAge, then marks them so they are nagged at most once.
func (s *XPRequestService) remindStale() {
	cutoff := time.Now().Add(-StaleRequestAge)
	var stale []models.XPRequest
	err := s.DB.Where("status = ? AND created_at <= ? AND reminded_at IS NULL",
		models.XPRequestPending, cutoff).
		Find(&stale).Error
	if err != nil {
		log.Printf("[Reminder] DB error: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	validators, err := s.Identity.ListWithCapability(CapabilityValidateXP)
	if err != nil {
		log.Printf("[Reminder] validator lookup failed: %v", err)
		return
	}

	for _, req := range stale {
		for _, v := range validators {
			s.Notifier.Notify(v.ExternalUserID, NotifyXPRequestStale, map[string]interface{}{
				"request_id": req.ID,
				"user_id":    req.ExternalUserID,
				"age_hours":  int(time.Since(req.CreatedAt).Hours()),
			})
		}
		now := time.Now()
		if err := s.DB.Model(&models.XPRequest{}).
			Where("id = ?", req.ID).
			Update("reminded_at", &now).Error; err != nil {
			log.Printf("[Reminder] Failed to mark request %s reminded: %v", req.ID, err)
			continue
		}
		log.Printf("⏰ Reminded %d validators about stale request %s", len(validators), req.ID)
	}
}
