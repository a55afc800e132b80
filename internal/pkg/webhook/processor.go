package webhook

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

// Result is the acknowledgement returned for a processed delivery. Unmapped
// event types are handled=false but still acknowledged to the provider.
type Result struct {
	Handled bool   `json:"handled"`
	Message string `json:"message"`
}

// Processor routes inbound provider events to their handlers and applies the
// resulting subscription state changes.
type Processor struct {
	repo     Repository
	notifier Notifier
	grace    GraceValidator
	appName  string
}

// NewProcessor creates a processor from injected collaborators.
func NewProcessor(repo Repository, notifier Notifier, grace GraceValidator, appName string) *Processor {
	return &Processor{repo: repo, notifier: notifier, grace: grace, appName: appName}
}

// NewProcessorFromDB wires a processor against a GORM handle with the
// default grace rule.
func NewProcessorFromDB(db *gorm.DB, notifier Notifier, appName string) *Processor {
	return NewProcessor(NewRepository(db), notifier, NewGraceValidator(), appName)
}

// Process dispatches one event. The returned error is reserved for faults
// that should surface to the caller; webhook flows swallow lookup and
// persistence failures after logging them with the payload for replay.
func (p *Processor) Process(ctx context.Context, event *Event) (Result, error) {
	log.Infof("[Webhook] handling %s event (id=%s mobile=%t)", event.Kind, event.ID, event.IsMobile)

	switch event.Kind {
	case EventSubscriptionUpdated, EventTrialWillEnd, EventChargePending:
		return p.handleNotifyOnly(ctx, event)
	case EventSubscriptionDeleted, EventChargeSucceeded, EventChargeFailed:
		return p.handlePaymentChange(ctx, event)
	default:
		// Forward compatibility: providers add event types after deploys.
		log.Infof("[Webhook] no handler registered for event type %q", event.Type)
		return Result{Handled: false, Message: "no handler registered for event type"}, nil
	}
}

// handleNotifyOnly covers event classes with no subscription effect beyond a
// customer notification.
func (p *Processor) handleNotifyOnly(ctx context.Context, event *Event) (Result, error) {
	group, ok := p.lookupCompanyGroup(event)
	if !ok {
		return handled(), nil
	}

	p.sendEventMail(ctx, group, event)
	if event.Kind == EventTrialWillEnd && group.User != nil {
		log.Infof("[Webhook] trial-end notice sent to %s", group.User.Email)
	}
	return handled(), nil
}

// handlePaymentChange covers event classes that toggle the subscription paid
// state before notifying.
func (p *Processor) handlePaymentChange(ctx context.Context, event *Event) (Result, error) {
	group, ok := p.lookupCompanyGroup(event)
	if !ok {
		return handled(), nil
	}

	p.updatePaymentStatus(event, group)
	p.sendEventMail(ctx, group, event)
	return handled(), nil
}

// updatePaymentStatus is the shared payment-state subroutine for the
// deleted/succeeded/failed classes. Persistence failures are logged with the
// payload and swallowed: local storage errors must not trigger provider
// retries.
func (p *Processor) updatePaymentStatus(event *Event, group *models.CompanyGroup) {
	sub, err := p.repo.GetSubscription(group.ID)
	if err != nil {
		log.Errorf("[Webhook] subscription not found for company group %d: %v payload=%s", group.ID, err, event.Raw)
		return
	}

	status := event.PaymentStatus()
	sub.Paid = status.Paid
	sub.ChargeDate = status.ChargeDate

	p.grace.Validate(sub)

	if sub.Paid {
		sub.ClearTrial()
	}

	// A canceled plan is never paid, whatever the charge flag said.
	if status.Status == models.SubscriptionStatusCanceled {
		sub.Paid = false
		sub.ChargeDate = nil
	}

	if err := p.repo.SaveSubscriptionWithMirror(sub, group.CompaniesID); err != nil {
		log.Errorf("[Webhook] failed to persist payment status for company group %d: %v payload=%s", group.ID, err, event.Raw)
		return
	}

	log.Infof("[Webhook] company group %d charged status is now paid=%t", group.ID, sub.Paid)
}

// lookupCompanyGroup resolves the event's customer id. A missing local
// record is logged and acknowledged; the provider must never retry over it.
func (p *Processor) lookupCompanyGroup(event *Event) (*models.CompanyGroup, bool) {
	group, err := p.repo.GetCompanyGroupByCustomerID(event.CustomerID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Webhook] no company group for customer %q, skipping payload=%s", event.CustomerID(), event.Raw)
		} else {
			log.Errorf("[Webhook] company group lookup failed for customer %q: %v payload=%s", event.CustomerID(), err, event.Raw)
		}
		return nil, false
	}
	return group, true
}

// sendEventMail delivers the templated mail for the event class, when one is
// mapped. Delivery faults are the dispatcher's problem; here they only log.
func (p *Processor) sendEventMail(ctx context.Context, group *models.CompanyGroup, event *Event) {
	templateName, title, ok := TemplateForEvent(event.Kind)
	if !ok || group.User == nil {
		return
	}

	subject := p.appName
	if title != "" {
		subject = p.appName + " - " + title
	}

	data := map[string]interface{}{
		"firstname":   group.User.Firstname,
		"lastname":    group.User.Lastname,
		"displayname": group.User.Displayname,
		"email":       group.User.Email,
	}
	if err := p.notifier.Notify(ctx, group.User, templateName, subject, data); err != nil {
		log.Errorf("[Webhook] notification %s for user %d failed: %v", templateName, group.User.ID, err)
	}
}

func handled() Result {
	return Result{Handled: true, Message: "Webhook Handled"}
}
