package handlers

import (
	"task-progression-system/middleware"
	"task-progression-system/models"
	"task-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, progressionService *services.ProgressionService, badgeService *services.BadgeService) {
	// Public: the badge catalog is static config, no user context needed
	app.Get("/badges/catalog", func(c *fiber.Ctx) error {
		return c.JSON(models.BadgeCatalog)
	})

	// 🔐 Secured routes — require user context forwarded by the gateway
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := progressionService.EnsureRecord(userID)
		if err != nil {
			return respondError(c, err)
		}
		info := services.LevelOf(prog.TotalXP)

		return c.JSON(fiber.Map{
			"id":                prog.ID,
			"total_xp":          prog.TotalXP,
			"xp":                info.XPIntoLevel,
			"level":             info.Level,
			"xp_to_next_level":  info.XPToNextLevel,
			"tasks_completed":   prog.TasksCompleted,
			"projects_created":  prog.ProjectsCreated,
			"quests_completed":  prog.QuestsCompleted,
			"login_streak_days": prog.LoginStreakDays,
			"last_level_up_at":  prog.LastLevelUpAt,
		})
	})

	securedGroup.Get("/user/progress/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		prog, err := progressionService.GetRecord(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"history":   prog.History,
			"retention": models.HistoryRetention,
		})
	})

	securedGroup.Get("/user/progress/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		grants, err := badgeService.ListGrants(userID)
		if err != nil {
			return respondError(c, err)
		}

		response := make([]fiber.Map, 0, len(grants))
		for _, g := range grants {
			def, err := models.BadgeByCode(g.BadgeCode)
			if err != nil {
				continue // grant predates a catalog change; keep the rest
			}
			response = append(response, fiber.Map{
				"id":          g.ID,
				"code":        def.Code,
				"name":        def.Name,
				"description": def.Description,
				"icon_url":    def.IconURL,
				"rarity":      def.Rarity,
				"category":    def.Category,
				"xp_reward":   def.XPReward,
				"unlocked_at": g.UnlockedAt,
				"granted_by":  g.GrantedBy,
			})
		}
		return c.JSON(response)
	})

	securedGroup.Get("/user/progress/badges/stream", StreamUserBadgesSSE(badgeService))

	// Auto-award hooks, called by the task service through the gateway
	securedGroup.Post("/user/actions/task-completed", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			TaskID string `json:"task_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		res, err := progressionService.RecordTaskCompleted(userID, req.TaskID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(awardResponse(res))
	})

	securedGroup.Post("/user/actions/project-created", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			ProjectID string `json:"project_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		res, err := progressionService.RecordProjectCreated(userID, req.ProjectID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(awardResponse(res))
	})

	securedGroup.Post("/user/actions/login", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		res, err := progressionService.RecordLogin(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(awardResponse(res))
	})

	// Admin endpoints — capability checks happen in the services
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		var req struct {
			UserID string `json:"user_id" validate:"required,uuid"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := badgeService.RequireGrantCapability(adminID); err != nil {
			return respondError(c, err)
		}
		if _, err := progressionService.EnsureRecord(req.UserID); err != nil {
			return respondError(c, err)
		}
		res, err := progressionService.AwardXP(req.UserID, req.XP, "admin_grant:"+req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(awardResponse(res))
	})

	adminGroup.Post("/badges/grant", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		var req struct {
			UserID    string `json:"user_id" validate:"required,uuid"`
			BadgeCode string `json:"badge_code" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		grant, err := badgeService.ManualGrant(adminID, req.UserID, models.BadgeCode(req.BadgeCode))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(grant)
	})

	adminGroup.Delete("/badges/revoke", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		var req struct {
			UserID    string `json:"user_id" validate:"required,uuid"`
			BadgeCode string `json:"badge_code" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := badgeService.RemoveGrant(adminID, req.UserID, models.BadgeCode(req.BadgeCode)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "badge revoked", "badge_code": req.BadgeCode, "user_id": req.UserID})
	})
}

func awardResponse(res *services.AwardResult) fiber.Map {
	badges := make([]fiber.Map, 0, len(res.NewBadges))
	for _, def := range res.NewBadges {
		badges = append(badges, fiber.Map{
			"code":   def.Code,
			"name":   def.Name,
			"rarity": def.Rarity,
		})
	}
	return fiber.Map{
		"total_xp":       res.Progress.TotalXP,
		"level":          res.Progress.Level,
		"previous_level": res.PreviousLevel,
		"leveled_up":     res.LeveledUp,
		"new_badges":     badges,
	}
}
