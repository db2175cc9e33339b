package routes

import (
	"time"

	"ecm-api/internal/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
)

func SetupRoutes(app *fiber.App, fileHandler *handlers.FileHandler) {
	// API routes group
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Monitor route
	app.Get("/metrics", monitor.New())

	// Health check route
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"service":   "ecm-api",
			"timestamp": time.Now().UTC(),
		})
	})

	// File routes; fixed paths are registered before the :id routes
	files := v1.Group("/files")
	files.Post("/", fileHandler.UploadFile)
	files.Post("/batch", fileHandler.UploadFiles)
	files.Get("/batch", fileHandler.GetFiles)
	files.Get("/archive", fileHandler.DownloadArchive)
	files.Get("/:id", fileHandler.GetFile)
	files.Get("/:id/download", fileHandler.DownloadFile)
	files.Delete("/:id", fileHandler.DeleteFile)
}
