package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"task-progression-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserProgression{},
		&models.UserBadge{},
		&models.OnboardingJourney{},
		&models.QuestInstance{},
		&models.XPRequest{},
		&models.MemberUser{},
	))
	return db
}

// fakeIdentity maps user ids straight to capability lists.
type fakeIdentity struct {
	capabilities map[string][]string
}

func (f *fakeIdentity) HasCapability(userID, capability string) (bool, error) {
	for _, c := range f.capabilities[userID] {
		if c == capability {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIdentity) ListWithCapability(capability string) ([]models.MemberUser, error) {
	var out []models.MemberUser
	for id, caps := range f.capabilities {
		for _, c := range caps {
			if c == capability {
				out = append(out, models.MemberUser{ExternalUserID: id, Username: id, IsActive: true})
				break
			}
		}
	}
	return out, nil
}

type notifyEvent struct {
	UserID  string
	Kind    string
	Payload map[string]interface{}
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
}

func (n *recordingNotifier) Notify(userID, kind string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifyEvent{UserID: userID, Kind: kind, Payload: payload})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func badgeCodesOf(grants []models.UserBadge) []models.BadgeCode {
	out := make([]models.BadgeCode, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.BadgeCode)
	}
	return out
}
