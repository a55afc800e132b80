package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tiberius19/canvas-core/app/controllers"
	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/cache"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
	"github.com/tiberius19/canvas-core/internal/pkg/env"
	"github.com/tiberius19/canvas-core/internal/pkg/router"
	"github.com/tiberius19/canvas-core/internal/pkg/storage"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	if err := models.LoadSettings(db); err != nil {
		log.Printf("Warning: could not load app settings: %v", err)
	}

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		log.Fatalf("storage configuration invalid: %v", err)
	}
	backend, err := storage.New(context.Background(), db, storageCfg)
	if err != nil {
		log.Fatalf("storage backend setup failed: %v", err)
	}
	controllers.SetStorageBackend(backend)

	app := fiber.New(fiber.Config{
		BodyLimit: 838860800,
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app
}
