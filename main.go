package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"mailkit/config"
	"mailkit/middleware"
	"mailkit/routes"
	"mailkit/utils"
	"mailkit/worker"
)

func main() {
	logger := log.New(os.Stdout, "MAILKIT: ", log.Ldate|log.Ltime|log.Lshortfile)

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	appLogger := utils.NewLogger(cfg.Environment)

	checker, err := utils.NewCheckerFromConfig(cfg.Checker, appLogger)
	if err != nil {
		logger.Fatalf("Failed to initialize checker: %v", err)
	}
	defer checker.Close()

	mail, err := utils.NewMail(cfg.Mail, appLogger)
	if err != nil {
		logger.Fatalf("Failed to initialize mail: %v", err)
	}
	mail.Checker = checker

	app := fiber.New()
	app.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if checker.Source != nil {
		blocklistWorker := worker.NewBlocklistWorker(checker, cfg.Checker.RefreshInterval,
			log.New(os.Stdout, "BLOCKLIST: ", log.LstdFlags))
		go blocklistWorker.Start(ctx)
	}

	routes.SetupRoutes(app, mail, checker, routes.Options{
		AdminSecret:      cfg.AdminSecret,
		RateLimitSend:    cfg.RateLimitSend,
		RateLimitStorage: middleware.NewCacheStorage(checker.Cache),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Println("Shutting down server...")
		cancel()
		if err := app.Shutdown(); err != nil {
			logger.Printf("Error during shutdown: %v", err)
		}
	}()

	logger.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
