package webhook

import (
	"context"

	"github.com/tiberius19/canvas-core/app/models"
)

// Notifier hands a templated notification off for delivery. The dispatcher
// owns the actual send and its retries.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, templateName, subject string, data map[string]interface{}) error
}

// emailTemplate names the mail template and subject for an event class.
type emailTemplate struct {
	name  string
	title string
}

// templateForKind is the total dispatch table from event class to mail
// template. Kinds without a template send nothing.
var templateForKind = map[EventKind]emailTemplate{
	EventTrialWillEnd:        {name: "users-trial-end", title: "Free Trial Ending"},
	EventSubscriptionUpdated: {name: "users-subscription-updated"},
	EventSubscriptionDeleted: {name: "users-subscription-canceled", title: "Subscription Cancelled"},
	EventChargeSucceeded:     {name: "users-charge-success", title: "Invoice"},
	EventChargeFailed:        {name: "users-charge-failed", title: "Payment Failed"},
	EventChargePending:       {name: "users-charge-pending"},
}

// TemplateForEvent exposes the template mapping for an event kind.
func TemplateForEvent(kind EventKind) (templateName, title string, ok bool) {
	t, ok := templateForKind[kind]
	return t.name, t.title, ok
}
