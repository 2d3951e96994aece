package handlers

import (
	"strconv"

	"task-progression-system/middleware"
	"task-progression-system/models"
	"task-progression-system/services"
	"task-progression-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupXPRequestRoutes(app *fiber.App, xpRequestService *services.XPRequestService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Submit a claim. Accepts multipart (with optional evidence file) or
	// plain JSON.
	securedGroup.Post("/user/xp-requests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var input services.SubmitInput
		if form, err := c.MultipartForm(); err == nil && form != nil {
			input.Description = c.FormValue("description")
			amount, _ := strconv.ParseInt(c.FormValue("xp_amount"), 10, 64)
			input.XPAmount = amount
			if taskID := c.FormValue("task_id"); taskID != "" {
				input.TaskID = &taskID
			}
			if files := form.File["evidence"]; len(files) > 0 {
				fh := files[0]
				key := utils.EvidenceKey(userID, fh.Filename)
				var url string
				var upErr error
				if utils.R2Configured() {
					url, upErr = utils.UploadEvidenceToR2(fh, key)
				} else {
					url, upErr = utils.SaveEvidenceLocally(fh, key)
				}
				if upErr != nil {
					return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
						"error": "evidence upload failed", "cause": upErr.Error(),
					})
				}
				input.EvidenceURL = url
			}
		} else {
			var req struct {
				TaskID      *string `json:"task_id"`
				Description string  `json:"description" validate:"required"`
				XPAmount    int64   `json:"xp_amount" validate:"required,min=1"`
				EvidenceURL string  `json:"evidence_url"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
			}
			input = services.SubmitInput{
				TaskID:      req.TaskID,
				Description: req.Description,
				XPAmount:    req.XPAmount,
				EvidenceURL: req.EvidenceURL,
			}
		}

		req, err := xpRequestService.Submit(userID, input)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	})

	securedGroup.Get("/user/xp-requests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reqs, err := xpRequestService.ListForUser(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(reqs)
	})

	// Admin queue
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Get("/xp-requests", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		status := models.XPRequestStatus(c.Query("status", string(models.XPRequestPending)))
		reqs, err := xpRequestService.ListByStatus(adminID, status)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(reqs)
	})

	adminGroup.Post("/xp-requests/:id/approve", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		var req struct {
			XPAmount   *int64 `json:"xp_amount"`
			AdminNotes string `json:"admin_notes"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		resolved, err := xpRequestService.Approve(adminID, c.Params("id"), services.ResolveInput{
			XPAmount:   req.XPAmount,
			AdminNotes: req.AdminNotes,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resolved)
	})

	adminGroup.Post("/xp-requests/:id/reject", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		var req struct {
			AdminNotes string `json:"admin_notes"`
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		resolved, err := xpRequestService.Reject(adminID, c.Params("id"), services.ResolveInput{
			AdminNotes: req.AdminNotes,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resolved)
	})

	adminGroup.Delete("/xp-requests/:id", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		if err := xpRequestService.Delete(adminID, c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "xp request deleted", "id": c.Params("id")})
	})
}
