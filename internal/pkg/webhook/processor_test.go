package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

type fakeRepo struct {
	group *models.CompanyGroup
	sub   *models.Subscription

	mirror    map[uint]string
	saveCalls int
	saveErr   error
	lookupErr error
}

func newFakeRepo() *fakeRepo {
	user := &models.User{ID: 9, Email: "owner@example.com", Firstname: "Ada", Lastname: "Lovelace"}
	sub := &models.Subscription{
		ID:              3,
		CompanyGroupsID: 2,
		UsersID:         9,
		IsFreetrial:     true,
		TrialEndsDays:   14,
	}
	return &fakeRepo{
		group: &models.CompanyGroup{
			ID:               2,
			UsersID:          9,
			CompaniesID:      5,
			StripeCustomerID: "cus_42",
			User:             user,
		},
		sub:    sub,
		mirror: map[uint]string{},
	}
}

func (f *fakeRepo) GetCompanyGroupByCustomerID(customerID string) (*models.CompanyGroup, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.group == nil || f.group.StripeCustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return f.group, nil
}

func (f *fakeRepo) GetSubscription(companyGroupID uint) (*models.Subscription, error) {
	if f.sub == nil || f.sub.CompanyGroupsID != companyGroupID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.sub
	return &copied, nil
}

func (f *fakeRepo) SaveSubscriptionWithMirror(sub *models.Subscription, companyID uint) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *sub
	f.sub = &copied
	mirror := "0"
	if sub.Paid {
		mirror = "1"
	}
	f.mirror[companyID] = mirror
	return nil
}

func (f *fakeRepo) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	return true, event, nil
}

func (f *fakeRepo) MarkEventProcessed(id uint, processingError string) error {
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, user *models.User, templateName, subject string, data map[string]interface{}) error {
	f.sent = append(f.sent, templateName)
	return f.err
}

type noopGrace struct{}

func (noopGrace) Validate(sub *models.Subscription) {}

func newTestProcessor(repo *fakeRepo, notifier *fakeNotifier) *Processor {
	return NewProcessor(repo, notifier, noopGrace{}, "Canvas")
}

func chargeSucceededEvent(t *testing.T) *Event {
	t.Helper()
	ev, err := ParseEvent([]byte(`{
		"id": "evt_ok",
		"type": "charge.succeeded",
		"data": { "object": { "customer": "cus_42", "created": 1700000000, "paid": true, "status": "active" } }
	}`))
	require.NoError(t, err)
	return ev
}

func TestProcessChargeSucceeded(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	res, err := p.Process(context.Background(), chargeSucceededEvent(t))
	require.NoError(t, err)
	assert.True(t, res.Handled)

	assert.True(t, repo.sub.Paid)
	require.NotNil(t, repo.sub.ChargeDate)
	assert.Equal(t, time.Unix(1700000000, 0), *repo.sub.ChargeDate)
	assert.False(t, repo.sub.IsFreetrial)
	assert.Zero(t, repo.sub.TrialEndsDays)
	assert.Equal(t, "1", repo.mirror[5])
	assert.Equal(t, []string{"users-charge-success"}, notifier.sent)
}

func TestProcessChargeSucceededIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	_, err := p.Process(context.Background(), chargeSucceededEvent(t))
	require.NoError(t, err)
	first := *repo.sub
	firstMirror := repo.mirror[5]

	_, err = p.Process(context.Background(), chargeSucceededEvent(t))
	require.NoError(t, err)

	assert.Equal(t, first, *repo.sub)
	assert.Equal(t, firstMirror, repo.mirror[5])
}

func TestProcessCanceledOverrideBothShapes(t *testing.T) {
	payloads := map[string]string{
		"provider": `{
			"id": "evt_del",
			"type": "customer.subscription.deleted",
			"data": { "object": { "customer": "cus_42", "created": 1700000000, "paid": true, "status": "canceled" } }
		}`,
		"mobile": `{
			"type": "customer_subscription_deleted",
			"is_mobile": true,
			"data": { "object": { "customer": "cus_42" } },
			"receipt_creation_date": "2023-11-14 22:13:20",
			"paid_status": true,
			"subscription_status": "canceled"
		}`,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.sub.Paid = true
			now := time.Now()
			repo.sub.ChargeDate = &now

			notifier := &fakeNotifier{}
			p := newTestProcessor(repo, notifier)

			ev, err := ParseEvent([]byte(payload))
			require.NoError(t, err)

			res, err := p.Process(context.Background(), ev)
			require.NoError(t, err)
			assert.True(t, res.Handled)

			// Canceled status wins over the extracted paid flag.
			assert.False(t, repo.sub.Paid)
			assert.Nil(t, repo.sub.ChargeDate)
			assert.Equal(t, "0", repo.mirror[5])
			assert.Equal(t, []string{"users-subscription-canceled"}, notifier.sent)
		})
	}
}

func TestProcessUnknownEventTypeIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	ev, err := ParseEvent([]byte(`{"type":"invoice.payment_succeeded","data":{"object":{"customer":"cus_42"}}}`))
	require.NoError(t, err)

	res, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Zero(t, repo.saveCalls)
	assert.Empty(t, notifier.sent)
}

func TestProcessUnknownCustomerIsSwallowed(t *testing.T) {
	repo := newFakeRepo()
	repo.group.StripeCustomerID = "cus_other"
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	res, err := p.Process(context.Background(), chargeSucceededEvent(t))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Zero(t, repo.saveCalls)
	assert.Empty(t, notifier.sent)
}

func TestProcessPersistenceFailureStillAcknowledges(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection reset")
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	res, err := p.Process(context.Background(), chargeSucceededEvent(t))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	// Still notifies: the mail concerns the charge, not our storage.
	assert.Equal(t, []string{"users-charge-success"}, notifier.sent)
}

func TestProcessChargeFailedMarksUnpaid(t *testing.T) {
	repo := newFakeRepo()
	repo.sub.Paid = true
	repo.sub.IsFreetrial = false
	repo.sub.TrialEndsDays = 0
	notifier := &fakeNotifier{}
	p := newTestProcessor(repo, notifier)

	ev, err := ParseEvent([]byte(`{
		"id": "evt_fail",
		"type": "charge.failed",
		"data": { "object": { "customer": "cus_42", "created": 1700000100, "paid": false, "status": "past_due" } }
	}`))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), ev)
	require.NoError(t, err)

	assert.False(t, repo.sub.Paid)
	assert.Equal(t, "0", repo.mirror[5])
	assert.Equal(t, []string{"users-charge-failed"}, notifier.sent)
}

func TestProcessNotifyOnlyKindsDoNotTouchSubscription(t *testing.T) {
	kinds := []struct {
		payload  string
		template string
	}{
		{
			payload:  `{"type":"customer.subscription.updated","data":{"object":{"customer":"cus_42"}}}`,
			template: "users-subscription-updated",
		},
		{
			payload:  `{"type":"customer.subscription.trial_will_end","data":{"object":{"customer":"cus_42"}}}`,
			template: "users-trial-end",
		},
		{
			payload:  `{"type":"charge.pending","data":{"object":{"customer":"cus_42"}}}`,
			template: "users-charge-pending",
		},
	}

	for _, tt := range kinds {
		t.Run(tt.template, func(t *testing.T) {
			repo := newFakeRepo()
			notifier := &fakeNotifier{}
			p := newTestProcessor(repo, notifier)

			ev, err := ParseEvent([]byte(tt.payload))
			require.NoError(t, err)

			res, err := p.Process(context.Background(), ev)
			require.NoError(t, err)
			assert.True(t, res.Handled)
			assert.Zero(t, repo.saveCalls)
			assert.Equal(t, []string{tt.template}, notifier.sent)
		})
	}
}

func TestGraceValidatorRetainsPaidInsideWindow(t *testing.T) {
	g := NewGraceValidator()

	ends := time.Now().Add(48 * time.Hour)
	sub := &models.Subscription{Paid: false, GracePeriodEnds: &ends}
	g.Validate(sub)
	assert.True(t, sub.Paid)

	past := time.Now().Add(-time.Hour)
	sub = &models.Subscription{Paid: false, GracePeriodEnds: &past}
	g.Validate(sub)
	assert.False(t, sub.Paid)

	sub = &models.Subscription{Paid: false}
	g.Validate(sub)
	assert.False(t, sub.Paid)
}

func TestTemplateForEventTable(t *testing.T) {
	for kind, want := range map[EventKind]string{
		EventTrialWillEnd:        "users-trial-end",
		EventSubscriptionUpdated: "users-subscription-updated",
		EventSubscriptionDeleted: "users-subscription-canceled",
		EventChargeSucceeded:     "users-charge-success",
		EventChargeFailed:        "users-charge-failed",
		EventChargePending:       "users-charge-pending",
	} {
		name, _, ok := TemplateForEvent(kind)
		if !ok || name != want {
			t.Fatalf("TemplateForEvent(%v) = %q ok=%t, want %q", kind, name, ok, want)
		}
	}
	if _, _, ok := TemplateForEvent(EventUnhandled); ok {
		t.Fatalf("expected no template for unhandled events")
	}
}

func TestEventIDForPayloadFallsBackToHash(t *testing.T) {
	assert.Equal(t, "evt_1", EventIDForPayload("evt_1", []byte("x")))

	first := EventIDForPayload("", []byte(`{"a":1}`))
	second := EventIDForPayload("", []byte(`{"a":1}`))
	other := EventIDForPayload("", []byte(`{"a":2}`))
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Equal(t, fmt.Sprintf("hash:%s", first[5:]), first)
}
