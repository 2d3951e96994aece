package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"task-progression-system/models"
	"task-progression-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamUserBadgesSSE streams newly unlocked badges for the authenticated
// user as server-sent events.
func StreamUserBadgesSSE(badgeService *services.BadgeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()

			var lastUnlockedAt time.Time

			var latest models.UserBadge
			if err := badgeService.DB.
				Where("external_user_id = ?", userID).
				Order("unlocked_at DESC").
				First(&latest).Error; err == nil {
				lastUnlockedAt = latest.UnlockedAt
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("SSE init error for user %s: %v", userID, err)
			}

			// Initial keepalive (comment event)
			w.WriteString(":\n\n")
			w.Flush()

			for {
				select {
				case <-ticker.C:
					var newGrants []models.UserBadge
					err := badgeService.DB.
						Where("external_user_id = ? AND unlocked_at > ?", userID, lastUnlockedAt).
						Order("unlocked_at ASC").
						Find(&newGrants).Error
					if err != nil {
						log.Printf("SSE query error for user %s: %v", userID, err)
						continue
					}
					if len(newGrants) == 0 {
						continue
					}
					lastUnlockedAt = newGrants[len(newGrants)-1].UnlockedAt

					for _, g := range newGrants {
						event := fiber.Map{
							"badge_code":  g.BadgeCode,
							"unlocked_at": g.UnlockedAt,
							"granted_by":  g.GrantedBy,
						}
						if def, derr := models.BadgeByCode(g.BadgeCode); derr == nil {
							event["name"] = def.Name
							event["rarity"] = def.Rarity
							event["icon_url"] = def.IconURL
						}
						payload, _ := json.Marshal(event)
						fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload)
					}

					if err := w.Flush(); err != nil {
						// Client disconnected
						return
					}

				case <-c.Context().Done():
					return
				}
			}
		})

		return nil
	}
}
