// workers/member_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"task-progression-system/models"
	"task-progression-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberFromIdentity matches the JSON response of the identity service's
// member feed.
type MemberFromIdentity struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Roles      []string  `json:"roles"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetMemberChangesResponse is the top-level feed structure.
type GetMemberChangesResponse struct {
	Members []MemberFromIdentity `json:"members"`
}

// MemberSyncWorker mirrors member identity and roles into the local
// member_users snapshot so capability checks and validator fan-out never need
// a per-request round trip to the identity service.
type MemberSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g. "http://localhost:8500"
	endpointPath string // e.g. "/api/v1/public/members"
	serviceToken string
	httpClient   *http.Client
}

func NewMemberSyncWorker(db *gorm.DB, identityServiceBaseURL, endpointPath, serviceToken string) *MemberSyncWorker {
	return &MemberSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      identityServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *MemberSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Member Sync Worker (identity-service → member_users)…")
	go w.run(ctx)
}

func (w *MemberSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial member sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lastSyncTime := w.getLastSyncTime()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Member sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Member Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt in the local snapshot.
func (w *MemberSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM member_users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches member changes since the given time and upserts them.
func (w *MemberSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid identity service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("identity service returned %d: %s", resp.StatusCode, body)
	}

	var feed GetMemberChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("decode member feed: %w", err)
	}
	if len(feed.Members) == 0 {
		return nil
	}

	rows := make([]models.MemberUser, 0, len(feed.Members))
	for _, m := range feed.Members {
		rows = append(rows, models.MemberUser{
			ID:             uuid.NewString(),
			ExternalUserID: m.ExternalID,
			Username:       m.Username,
			Email:          m.Email,
			Roles:          m.Roles,
			IsActive:       m.IsActive,
		})
	}

	err = w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "roles", "is_active", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert member snapshot: %w", err)
	}

	log.Printf("[SYNC] 👥 Upserted %d member(s) since %s", len(rows), sinceStr)
	return nil
}
