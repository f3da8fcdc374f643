package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"mailkit/utils"
)

type BlocklistController struct {
	Checker *utils.Checker
	Logger  *log.Logger
}

func NewBlocklistController(checker *utils.Checker, logger *log.Logger) *BlocklistController {
	return &BlocklistController{
		Checker: checker,
		Logger:  logger,
	}
}

func (bc *BlocklistController) AddDomain(c *fiber.Ctx) error {
	domain := c.Params("domain")
	if err := bc.Checker.BlockDomain(domain); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid domain",
		})
	}

	bc.Logger.Printf("Domain %s blocked by %v", domain, c.Locals("admin"))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Domain blocked",
		"domain":  utils.NormalizeDomain(domain),
	})
}

// AddDomains merges a list of temporary domains in one call.
func (bc *BlocklistController) AddDomains(c *fiber.Ctx) error {
	var request struct {
		Domains []string `json:"domains"`
	}
	if err := c.BodyParser(&request); err != nil || len(request.Domains) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A non-empty domains list is required",
		})
	}

	added := bc.Checker.AddTempDomains(request.Domains...)
	return c.JSON(fiber.Map{
		"added":   added,
		"total":   bc.Checker.BlockedDomainCount(),
		"message": "Domains merged",
	})
}

func (bc *BlocklistController) RemoveDomain(c *fiber.Ctx) error {
	domain := c.Params("domain")
	bc.Checker.UnblockDomain(c.UserContext(), domain)

	bc.Logger.Printf("Domain %s unblocked by %v", domain, c.Locals("admin"))
	return c.JSON(fiber.Map{
		"message": "Domain unblocked",
		"domain":  utils.NormalizeDomain(domain),
	})
}

func (bc *BlocklistController) AddAddress(c *fiber.Ctx) error {
	address := c.Params("address")
	if err := bc.Checker.BlockAddress(address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}

	bc.Logger.Printf("Address %s blocked by %v", address, c.Locals("admin"))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Address blocked",
		"address": address,
	})
}

func (bc *BlocklistController) RemoveAddress(c *fiber.Ctx) error {
	address := c.Params("address")
	bc.Checker.UnblockAddress(address)
	return c.JSON(fiber.Map{
		"message": "Address unblocked",
		"address": address,
	})
}

func (bc *BlocklistController) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"domains":   bc.Checker.BlockedDomainCount(),
		"addresses": bc.Checker.BlockedAddressCount(),
	})
}

// Refresh pulls the configured temporary-domain source immediately.
func (bc *BlocklistController) Refresh(c *fiber.Ctx) error {
	added, err := bc.Checker.LoadTempDomains(c.UserContext())
	if errors.Is(err, utils.ErrNoDomainSource) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "No domain source configured",
		})
	}
	if err != nil {
		utils.LogError("BlocklistRefresh", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch domain list",
		})
	}

	return c.JSON(fiber.Map{
		"added": added,
		"total": bc.Checker.BlockedDomainCount(),
	})
}

func (bc *BlocklistController) FlushCache(c *fiber.Ctx) error {
	if err := bc.Checker.FlushCache(c.UserContext()); err != nil {
		bc.Logger.Printf("Failed to flush verdict cache: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Cache unavailable",
		})
	}
	return c.JSON(fiber.Map{"message": "Cache flushed"})
}
