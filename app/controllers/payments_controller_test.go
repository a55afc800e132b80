package controllers

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiberius19/canvas-core/internal/pkg/webhook"
)

const webhookPath = "/api/v1/payments/webhook"

func newWebhookApp() *fiber.App {
	app := fiber.New()
	app.Post(webhookPath, HandleStripeWebhook)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestWebhookMissingSignatureLooksLikeUnknownRoute(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookApp()

	status, body := postJSON(t, app, webhookPath, `{"type":"charge.succeeded"}`, nil)
	unknownStatus, unknownBody := postJSON(t, app, "/api/v1/nope", `{}`, nil)

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, unknownStatus, status)
	assert.Equal(t, "Cannot POST "+webhookPath, body)
	assert.Equal(t, "Cannot POST /api/v1/nope", unknownBody)
}

func TestWebhookInvalidSignatureLooksLikeUnknownRoute(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookApp()

	status, body := postJSON(t, app, webhookPath, `{"type":"charge.succeeded"}`, map[string]string{
		webhook.SignatureHeader: "t=1,v1=deadbeef",
	})

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Cannot POST "+webhookPath, body)
}

func TestWebhookMissingEventTypeIsRejected(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookApp()

	payload := `{"data":{"object":{"customer":"cus_123"}}}`
	status, body := postJSON(t, app, webhookPath, payload, map[string]string{
		webhook.SignatureHeader: webhook.SignPayload([]byte(payload), "whsec_test"),
	})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "invalid_payload")
	assert.Contains(t, body, "missing")
}

func TestWebhookMalformedJSONIsRejected(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	app := newWebhookApp()

	payload := `{"type":`
	status, body := postJSON(t, app, webhookPath, payload, map[string]string{
		webhook.SignatureHeader: webhook.SignPayload([]byte(payload), "whsec_test"),
	})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "invalid_payload")
}
