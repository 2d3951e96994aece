package handlers

import (
	"errors"

	"task-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		conflict   *services.StateConflictError
		authz      *services.AuthorizationError
		collabIO   *services.CollaboratorIOError
	)
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validation.Message})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFound.Error()})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": conflict.Message})
	case errors.As(err, &authz):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": authz.Error()})
	case errors.As(err, &collabIO):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "collaborator unavailable", "cause": collabIO.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "cause": err.Error()})
	}
}
