package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventKind
	}{
		{in: "customer.subscription.updated", want: EventSubscriptionUpdated},
		{in: "customer_subscription_updated", want: EventSubscriptionUpdated},
		{in: "CUSTOMER.SUBSCRIPTION.UPDATED", want: EventSubscriptionUpdated},
		{in: "customer.subscription.deleted", want: EventSubscriptionDeleted},
		{in: "customer_subscription_deleted", want: EventSubscriptionDeleted},
		{in: "customer.subscription.trial_will_end", want: EventTrialWillEnd},
		{in: "customer_subscription_trial.will.end", want: EventTrialWillEnd},
		{in: "charge.succeeded", want: EventChargeSucceeded},
		{in: "charge_succeeded", want: EventChargeSucceeded},
		{in: "Charge.Succeeded", want: EventChargeSucceeded},
		{in: "charge.failed", want: EventChargeFailed},
		{in: "charge_failed", want: EventChargeFailed},
		{in: "charge.pending", want: EventChargePending},
		{in: "charge_pending", want: EventChargePending},
		{in: "invoice.payment_succeeded", want: EventUnhandled},
		{in: "", want: EventUnhandled},
	}

	for _, tt := range tests {
		if got := ParseEventType(tt.in); got != tt.want {
			t.Fatalf("ParseEventType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseEventMissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"data":{"object":{"customer":"cus_1"}}}`))
	assert.ErrorIs(t, err, ErrMissingEventType)
}

func TestParseEventProviderShape(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "charge.succeeded",
		"data": {
			"object": {
				"customer": "cus_42",
				"created": 1700000000,
				"paid": true,
				"status": "active"
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventChargeSucceeded, ev.Kind)
	assert.False(t, ev.IsMobile)
	assert.Equal(t, "cus_42", ev.CustomerID())

	status := ev.PaymentStatus()
	assert.True(t, status.Paid)
	assert.Equal(t, "active", status.Status)
	require.NotNil(t, status.ChargeDate)
	assert.Equal(t, time.Unix(1700000000, 0), *status.ChargeDate)
}

func TestParseEventMobileShape(t *testing.T) {
	raw := []byte(`{
		"type": "charge_succeeded",
		"is_mobile": true,
		"data": { "object": { "customer": "cus_42" } },
		"receipt_creation_date": "2024-03-01 10:30:00",
		"paid_status": true,
		"subscription_status": "active"
	}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.True(t, ev.IsMobile)
	assert.Equal(t, EventChargeSucceeded, ev.Kind)
	assert.Equal(t, "cus_42", ev.CustomerID())

	status := ev.PaymentStatus()
	assert.True(t, status.Paid)
	assert.Equal(t, "active", status.Status)
	require.NotNil(t, status.ChargeDate)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local), *status.ChargeDate)
}

func TestParseEventMobileBadDateKeepsNilChargeDate(t *testing.T) {
	raw := []byte(`{
		"type": "charge_failed",
		"is_mobile": true,
		"data": { "object": { "customer": "cus_7" } },
		"receipt_creation_date": "not-a-date",
		"paid_status": false,
		"subscription_status": "past_due"
	}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)

	status := ev.PaymentStatus()
	assert.False(t, status.Paid)
	assert.Nil(t, status.ChargeDate)
}
