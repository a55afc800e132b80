package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiberius19/canvas-core/app/models"
)

func TestPlanForSubscription(t *testing.T) {
	assert.Equal(t, PlanTrial, PlanFor(nil))
	assert.Equal(t, PlanTrial, PlanFor(&models.Subscription{Paid: false, IsFreetrial: true}))
	assert.Equal(t, PlanPaid, PlanFor(&models.Subscription{Paid: true}))
}

func TestPaidPlanLiftsLimits(t *testing.T) {
	assert.Greater(t, MaxUploadBytes(PlanPaid), MaxUploadBytes(PlanTrial))
	assert.Equal(t, int64(0), StorageQuotaBytes(PlanPaid))
	assert.Greater(t, StorageQuotaBytes(PlanTrial), int64(0))
}
