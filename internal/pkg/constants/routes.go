package constants

// Static route constants
const (
	APIPrefix         = "/api"
	APIV1Prefix       = "/api/v1"
	WebhookRoute      = "/api/v1/payments/webhook"
	PublicFilesPrefix = "/api/v1/public/files"
)
