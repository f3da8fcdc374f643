package controller

import (
	"errors"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"

	"mailkit/utils"
)

const maxBulkCheck = 1000

type CheckController struct {
	Checker *utils.Checker
	Logger  *log.Logger
}

func NewCheckController(checker *utils.Checker, logger *log.Logger) *CheckController {
	return &CheckController{
		Checker: checker,
		Logger:  logger,
	}
}

// CheckResult is one entry of a bulk check response.
type CheckResult struct {
	utils.Decision
	Error string `json:"error,omitempty"`
}

// CheckEmail reports whether a single address is allowed. With ?mx=true the
// response also says whether the domain publishes MX records.
func (cc *CheckController) CheckEmail(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email address is required",
		})
	}

	decision, err := cc.Checker.Check(c.UserContext(), email)
	if errors.Is(err, utils.ErrInvalidAddress) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}
	if err != nil {
		cc.Logger.Printf("Check failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Check failed",
		})
	}

	resp := fiber.Map{
		"address":      decision.Address,
		"domain":       decision.Domain,
		"blocked":      decision.Blocked,
		"source":       decision.Source,
		"valid_format": utils.ValidateEmail(email),
	}

	if c.QueryBool("mx") {
		hasMX, err := cc.Checker.CheckMX(c.UserContext(), decision.Domain)
		if err != nil {
			cc.Logger.Printf("MX lookup failed for %s: %v", decision.Domain, err)
		} else {
			resp["has_mx"] = hasMX
		}
	}

	return c.JSON(resp)
}

// BulkCheck checks up to maxBulkCheck addresses with a small worker pool and
// returns the results in request order.
func (cc *CheckController) BulkCheck(c *fiber.Ctx) error {
	var request struct {
		Emails []string `json:"emails"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request format",
		})
	}
	if len(request.Emails) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one email is required",
		})
	}
	if len(request.Emails) > maxBulkCheck {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Too many emails in one request",
			"max":   maxBulkCheck,
		})
	}

	ctx := c.UserContext()
	results := make([]CheckResult, len(request.Emails))
	jobs := make(chan int, len(request.Emails))
	var wg sync.WaitGroup

	workerCount := 10
	if len(request.Emails) < workerCount {
		workerCount = len(request.Emails)
	}
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				email := request.Emails[idx]
				decision, err := cc.Checker.Check(ctx, email)
				if err != nil {
					results[idx] = CheckResult{Decision: utils.Decision{Address: email}, Error: err.Error()}
					continue
				}
				results[idx] = CheckResult{Decision: decision}
			}
		}()
	}

	for i := range request.Emails {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	blocked := 0
	for _, r := range results {
		if r.Blocked {
			blocked++
		}
	}

	return c.JSON(fiber.Map{
		"results": results,
		"total":   len(results),
		"blocked": blocked,
	})
}
