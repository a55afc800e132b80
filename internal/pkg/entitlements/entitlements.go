package entitlements

import (
	"github.com/tiberius19/canvas-core/app/models"
)

type Plan string

const (
	PlanTrial Plan = "trial"
	PlanPaid  Plan = "paid"
)

const (
	trialMaxUploadBytes = 25 * 1024 * 1024
	paidMaxUploadBytes  = 500 * 1024 * 1024

	trialStorageQuotaBytes = 1 * 1024 * 1024 * 1024
	// Paid companies have no storage quota.
	paidStorageQuotaBytes = 0
)

// PlanFor derives the effective plan from a subscription. A missing
// subscription behaves like an expired trial and gets the trial plan.
func PlanFor(sub *models.Subscription) Plan {
	if sub != nil && sub.Paid {
		return PlanPaid
	}
	return PlanTrial
}

// MaxUploadBytes returns the size ceiling for a single upload.
func MaxUploadBytes(plan Plan) int64 {
	if plan == PlanPaid {
		return paidMaxUploadBytes
	}
	return trialMaxUploadBytes
}

// StorageQuotaBytes returns the total storage allowance, 0 meaning
// unlimited.
func StorageQuotaBytes(plan Plan) int64 {
	if plan == PlanPaid {
		return paidStorageQuotaBytes
	}
	return trialStorageQuotaBytes
}
