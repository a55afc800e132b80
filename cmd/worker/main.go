package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/cache"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
	"github.com/tiberius19/canvas-core/internal/pkg/env"
	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
	"github.com/tiberius19/canvas-core/internal/pkg/notifications"
	"github.com/tiberius19/canvas-core/internal/pkg/storage"
)

func main() {
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

	jobqueue.SetNotificationSender(func(ctx context.Context, notificationID uint) error {
		return notifications.Deliver(ctx, database.GetDB(), notificationID)
	})

	manager := jobqueue.GetManager()
	manager.GetQueue().SetStorageBackend(backend)
	manager.Start()
	log.Println("Job queue worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down worker")
	manager.Stop()
}
