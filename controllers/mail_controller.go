package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"mailkit/models"
	"mailkit/utils"
)

type MailController struct {
	Mail   *utils.Mail
	Logger *log.Logger
}

func NewMailController(mail *utils.Mail, logger *log.Logger) *MailController {
	return &MailController{
		Mail:   mail,
		Logger: logger,
	}
}

// SendEmail sends one message. ?template=<name> renders the named template
// from the configured folder into the HTML body.
func (mc *MailController) SendEmail(c *fiber.Ctx) error {
	msg, ok := c.Locals("message").(*models.Message)
	if !ok {
		msg = new(models.Message)
		if err := c.BodyParser(msg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	if err := utils.ValidateStruct(msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	// Attachments over HTTP must carry their content inline.
	for _, a := range msg.Attachments {
		if a.Content == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Attachments must include content",
			})
		}
	}

	if err := mc.Mail.SendMessage(c.UserContext(), msg, c.Query("template")); err != nil {
		return mc.sendError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":    "Email sent",
		"recipients": len(msg.Recipients) + len(msg.CC) + len(msg.BCC),
	})
}

// SendBulk sends several plain-text messages over one SMTP session.
func (mc *MailController) SendBulk(c *fiber.Ctx) error {
	var request struct {
		Messages []utils.MassMailItem `json:"messages"`
	}
	if err := c.BodyParser(&request); err != nil || len(request.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A non-empty messages list is required",
		})
	}

	for i, item := range request.Messages {
		if err := utils.ValidateStruct(&models.Message{Recipients: item.Recipients}); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
				"index": i,
			})
		}
	}

	if err := mc.Mail.SendMassMail(c.UserContext(), request.Messages); err != nil {
		return mc.sendError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Emails sent",
		"count":   len(request.Messages),
	})
}

func (mc *MailController) sendError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, utils.ErrBlockedRecipient):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, utils.ErrTemplateWithHTML),
		errors.Is(err, utils.ErrTemplateDataWithoutTemplate),
		errors.Is(err, utils.ErrInvalidAddress):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	mc.Logger.Printf("Failed to send email: %v", err)
	utils.LogError("SendEmail", err, map[string]interface{}{"path": c.Path()})
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Failed to send email",
	})
}
