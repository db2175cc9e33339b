package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	bgcompress "ecm-api/internal/compress"
	"ecm-api/internal/config"
	"ecm-api/internal/constants"
	"ecm-api/internal/database"
	"ecm-api/internal/handlers"
	"ecm-api/internal/repository"
	"ecm-api/internal/routes"
	"ecm-api/internal/services"
	"ecm-api/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	pkgConfig "github.com/kerimovok/go-pkg-utils/config"
	pkgValidator "github.com/kerimovok/go-pkg-utils/validator"
)

func init() {
	// Load all configs
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load configs: %v", err)
	}

	// Validate environment variables
	if err := pkgValidator.ValidateConfig(constants.EnvValidationRules); err != nil {
		log.Fatalf("configuration validation failed: %v", err)
	}

	// Connect to database
	if err := database.ConnectDB(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
}

func setupApp(bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
	})

	// Middleware
	app.Use(helmet.New())
	app.Use(cors.New())
	app.Use(compress.New())
	app.Use(healthcheck.New())
	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return uuid.New().String()
		},
	}))
	app.Use(logger.New())

	return app
}

func main() {
	cfg := config.GetConfig()

	maxBytes, err := utils.ParseSizeString(cfg.Storage.MaxFileSize)
	if err != nil {
		log.Fatalf("invalid max_file_size: %v", err)
	}

	// Compression hand-off: one bounded queue shared by all uploads, drained
	// by a fixed worker pool for the lifetime of the process
	var queue *bgcompress.Queue
	var waitWorkers func()
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.Compression.Enabled {
		queue = bgcompress.NewQueue(cfg.Compression.QueueSize)
		worker := bgcompress.NewWorker(queue, bgcompress.NewFFmpegTranscoder(cfg.Compression.FFmpeg))
		waitWorkers = worker.RunPool(workerCtx, cfg.Compression.Workers)
	}

	fileRepo := repository.NewGormFileRepository(database.DB)
	fileService, err := services.NewFileService(cfg, fileRepo, queue)
	if err != nil {
		log.Fatalf("failed to initialize file service: %v", err)
	}

	// Setup Fiber app; leave headroom above the max file size for the rest
	// of the multipart form
	app := setupApp(int(maxBytes) + 1024*1024)

	// Setup routes
	routes.SetupRoutes(app, handlers.NewFileHandler(fileService))

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Gracefully shutting down...")

		// Shutdown the server
		if err := app.Shutdown(); err != nil {
			log.Printf("error during server shutdown: %v", err)
		}

		// Drain and close the compression queue
		if queue != nil {
			queue.Close()
			waitWorkers()
		}

		log.Println("Server gracefully stopped")
		os.Exit(0)
	}()

	// Start server
	if err := app.Listen(":" + pkgConfig.GetEnv("PORT")); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
