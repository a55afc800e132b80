package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
	"github.com/tiberius19/canvas-core/internal/pkg/env"
	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
	"github.com/tiberius19/canvas-core/internal/pkg/metrics/counter"
	"github.com/tiberius19/canvas-core/internal/pkg/notifications"
	"github.com/tiberius19/canvas-core/internal/pkg/webhook"
)

// HandleStripeWebhook receives payment provider events. Deliveries without a
// valid signature get the same response an unknown route would, so the
// endpoint does not reveal itself to probing.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get(webhook.SignatureHeader)
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if signature == "" || !webhook.VerifySignature(payload, signature, secret) {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Cannot %s %s", c.Method(), c.Path()))
	}

	event, err := webhook.ParseEvent(payload)
	if err != nil {
		if errors.Is(err, webhook.ErrMissingEventType) {
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Event type is missing")
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Payload is not valid JSON")
	}

	if err := counter.AddWebhookEvent(event.Type); err != nil {
		log.Warnf("[Webhook] counting %s event failed: %v", event.Type, err)
	}

	db := database.GetDB()
	repo := webhook.NewRepository(db)

	record := &models.WebhookEvent{
		ProviderEventID: webhook.EventIDForPayload(event.ID, payload),
		EventType:       event.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	}
	created, stored, err := repo.CreateEventIfNotExists(record)
	if err != nil {
		// Without the dedup row the event is still processed; the handlers
		// themselves are idempotent under redelivery.
		log.Errorf("[Webhook] storing event %s failed: %v", record.ProviderEventID, err)
	} else if !created && stored.ProcessedAt != nil {
		log.Infof("[Webhook] event %s already processed, acknowledging redelivery", record.ProviderEventID)
		return c.JSON(webhook.Result{Handled: true, Message: "event already processed"})
	}

	dispatcher := notifications.NewDispatcher(db, jobqueue.GetManager().GetQueue())
	processor := webhook.NewProcessorFromDB(db, dispatcher, models.GetAppSettings().AppName)

	result, processErr := processor.Process(c.UserContext(), event)

	if stored != nil {
		processingError := ""
		if processErr != nil {
			processingError = processErr.Error()
		}
		if err := repo.MarkEventProcessed(stored.ID, processingError); err != nil {
			log.Errorf("[Webhook] marking event %d processed failed: %v", stored.ID, err)
		}
	}

	if processErr != nil {
		log.Errorf("[Webhook] processing %s event failed: %v (payload: %s)", event.Type, processErr, payload)
	}

	return c.JSON(result)
}

// HandleWebhookStats reports per-type event counters for admins.
func HandleWebhookStats(c *fiber.Ctx) error {
	counts, err := counter.WebhookEventCounts()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load event counters")
	}
	return c.JSON(fiber.Map{"events": counts})
}
