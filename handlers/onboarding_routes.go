package handlers

import (
	"task-progression-system/middleware"
	"task-progression-system/models"
	"task-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupOnboardingRoutes(app *fiber.App, onboardingService *services.OnboardingService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/user/onboarding/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			MentorID *string `json:"mentor_id"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		view, err := onboardingService.StartJourney(userID, req.MentorID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	})

	securedGroup.Get("/user/onboarding", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		view, err := onboardingService.GetJourney(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	securedGroup.Post("/user/onboarding/quests/:code/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		quest, err := onboardingService.StartQuest(userID, models.QuestCode(c.Params("code")))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(quest)
	})

	// Self-completion: auto-validated quests succeed; manual quests are
	// rejected as self-validation by the service.
	securedGroup.Post("/user/onboarding/quests/:code/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		view, err := onboardingService.CompleteQuest(userID, models.QuestCode(c.Params("code")), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	securedGroup.Post("/user/onboarding/pause", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		journey, err := onboardingService.PauseJourney(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(journey)
	})

	securedGroup.Post("/user/onboarding/resume", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		journey, err := onboardingService.ResumeJourney(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(journey)
	})

	securedGroup.Post("/user/onboarding/notes", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Content string `json:"content" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		journey, err := onboardingService.AddNote(userID, userID, req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(journey)
	})

	// Mentor/admin validation of a mentee's manual quest
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/onboarding/:user_id/quests/:code/validate", func(c *fiber.Ctx) error {
		validatorID := c.Locals("user_id").(string)
		menteeID := c.Params("user_id")
		view, err := onboardingService.CompleteQuest(menteeID, models.QuestCode(c.Params("code")), validatorID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	adminGroup.Post("/onboarding/:user_id/notes", func(c *fiber.Ctx) error {
		authorID := c.Locals("user_id").(string)
		menteeID := c.Params("user_id")
		var req struct {
			Content string `json:"content" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		journey, err := onboardingService.AddNote(menteeID, authorID, req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(journey)
	})
}
