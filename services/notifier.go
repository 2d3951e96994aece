package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Notification kinds fanned out by the engine. Delivery is best-effort:
// a failed notification never fails the triggering mutation.
const (
	NotifyLevelUp          = "level_up"
	NotifyBadgeUnlocked    = "badge_unlocked"
	NotifyQuestCompleted   = "quest_completed"
	NotifyPhaseAdvanced    = "phase_advanced"
	NotifyJourneyCompleted = "journey_completed"
	NotifyXPRequestNew     = "xp_request_submitted"
	NotifyXPRequestResult  = "xp_request_resolved"
	NotifyXPRequestStale   = "xp_request_stale"
)

// Notifier is the notification-collaborator boundary (fire-and-forget).
type Notifier interface {
	Notify(userID, kind string, payload map[string]interface{})
}

// HTTPNotifier posts notifications to the notification service. Errors are
// logged and swallowed — XP/badge/quest state is authoritative, the alert is
// not.
type HTTPNotifier struct {
	BaseURL      string
	ServiceToken string
	Client       *http.Client
}

func NewHTTPNotifier(baseURL, serviceToken string) *HTTPNotifier {
	return &HTTPNotifier{
		BaseURL:      baseURL,
		ServiceToken: serviceToken,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Notify(userID, kind string, payload map[string]interface{}) {
	body, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
		"payload": payload,
	})
	if err != nil {
		log.Printf("⚠️ [NOTIFY] marshal failed for kind=%s user=%s: %v", kind, userID, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.BaseURL+"/api/v1/notifications", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ [NOTIFY] request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", n.ServiceToken))

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] delivery failed for kind=%s user=%s: %v", kind, userID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("⚠️ [NOTIFY] notification service returned %d for kind=%s user=%s", resp.StatusCode, kind, userID)
	}
}

// NopNotifier discards notifications (tests, NOTIFY_SERVICE_URL unset).
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, map[string]interface{}) {}
