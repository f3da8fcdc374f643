package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"mailkit/models"
	"mailkit/utils"
)

// RejectDisposable refuses a send request when any recipient is blocked by
// the checker. The parsed message is stored in Locals("message").
func RejectDisposable(checker *utils.Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var msg models.Message
		if err := c.BodyParser(&msg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		for _, list := range [][]string{msg.Recipients, msg.CC, msg.BCC} {
			for _, rcpt := range list {
				decision, err := checker.Check(c.UserContext(), rcpt)
				if errors.Is(err, utils.ErrInvalidAddress) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error":   "Invalid recipient address",
						"address": rcpt,
					})
				}
				if err != nil {
					utils.LogError("RejectDisposable", err, map[string]interface{}{"address": rcpt})
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "Failed to check recipient",
					})
				}
				if decision.Blocked {
					return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
						"error":    "Disposable email addresses are not allowed",
						"decision": decision,
					})
				}
			}
		}

		c.Locals("message", &msg)
		return c.Next()
	}
}
