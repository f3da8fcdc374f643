package routes

import (
	"log"
	"os"

	controller "mailkit/controllers"
	"mailkit/middleware"
	"mailkit/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Options carries what the routes need beyond the services themselves.
type Options struct {
	AdminSecret   string
	RateLimitSend int
	// RateLimitStorage backs the send limiter; nil keeps counters in memory.
	RateLimitStorage fiber.Storage
}

func SetupMailRoutes(app *fiber.App, mail *utils.Mail, checker *utils.Checker, opts Options) {
	mailLogger := log.New(os.Stdout, "MAIL: ", log.Ldate|log.Ltime|log.Lshortfile)
	checkLogger := log.New(os.Stdout, "CHECK: ", log.LstdFlags)

	mailController := controller.NewMailController(mail, mailLogger)
	checkController := controller.NewCheckController(checker, checkLogger)

	email := app.Group("/email", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	email.Get("/check", checkController.CheckEmail)
	email.Post("/check/bulk", checkController.BulkCheck)

	limited := middleware.SendRateLimiter(opts.RateLimitSend, opts.RateLimitStorage)
	email.Post("/", limited, middleware.RejectDisposable(checker), mailController.SendEmail)
	email.Post("/bulk", limited, mailController.SendBulk)

	mailLogger.Println("Mail routes initialized successfully")
}

func SetupAdminRoutes(app *fiber.App, checker *utils.Checker, opts Options) {
	blocklistController := controller.NewBlocklistController(checker, log.New(os.Stdout, "BLOCKLIST: ", log.LstdFlags))

	guard := middleware.AdminProtected(opts.AdminSecret)

	blocklist := app.Group("/blocklist", guard)
	blocklist.Get("/stats", blocklistController.Stats)
	blocklist.Post("/domains", blocklistController.AddDomains)
	blocklist.Post("/domains/:domain", blocklistController.AddDomain)
	blocklist.Delete("/domains/:domain", blocklistController.RemoveDomain)
	blocklist.Post("/addresses/:address", blocklistController.AddAddress)
	blocklist.Delete("/addresses/:address", blocklistController.RemoveAddress)
	blocklist.Post("/refresh", blocklistController.Refresh)

	app.Delete("/cache", guard, blocklistController.FlushCache)
}

func SetupRoutes(app *fiber.App, mail *utils.Mail, checker *utils.Checker, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupMailRoutes(app, mail, checker, opts)
	SetupAdminRoutes(app, checker, opts)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
