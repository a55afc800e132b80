package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/tiberius19/canvas-core/app/controllers"
	"github.com/tiberius19/canvas-core/internal/pkg/cache"
	"github.com/tiberius19/canvas-core/internal/pkg/env"
	"github.com/tiberius19/canvas-core/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// The webhook endpoint guards itself via the provider signature and must
	// stay outside the auth middleware.
	v1.Post("/payments/webhook", controllers.HandleStripeWebhook)

	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/refresh", controllers.HandleRefresh)
	auth.Post("/forgot-password", controllers.HandleForgotPassword)
	auth.Post("/reset-password", controllers.HandleResetPassword)
	auth.Post("/email-change/confirm", controllers.HandleConfirmEmailChange)

	protected := v1.Group("", middleware.RequireAuth())
	protected.Post("/auth/logout", controllers.HandleLogout)
	protected.Get("/auth/me", controllers.HandleMe)
	protected.Post("/auth/email-change", controllers.HandleRequestEmailChange)

	protected.Post("/files", controllers.HandleFileUpload)
	protected.Get("/files/:id/download", controllers.HandleFileDownload)
	protected.Post("/files/:id/share", controllers.HandleShareFile)
	protected.Delete("/files/:id", controllers.HandleDeleteFile)

	// Share links carry their own signed authorization.
	v1.Get("/public/files/:token", controllers.HandlePublicDownload)

	entities := protected.Group("/modules/:module/entities/:entity_id")
	entities.Post("/files", controllers.HandleAttachFiles)
	entities.Put("/files", controllers.HandleReplaceEntityFiles)
	entities.Get("/files", controllers.HandleGetEntityFiles)
	entities.Get("/files/field/:field_name", controllers.HandleGetEntityFileByName)
	entities.Delete("/files/:attachment_id", controllers.HandleDeleteEntityFile)
	entities.Delete("/files", controllers.HandleDeleteEntityFiles)

	admin := v1.Group("/admin", middleware.RequireAuth(), middleware.RequireAdmin())
	admin.Get("/stats", controllers.HandleAdminStats)
	admin.Get("/webhooks/stats", controllers.HandleWebhookStats)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Database 1 keeps limiter keys apart from the cache on DB 0.
func newLimiterStorage() *redis.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
