package webhook

import (
	"time"

	"github.com/tiberius19/canvas-core/app/models"
)

// GraceValidator decides whether a lapsed paid flag is retained for a
// bounded window after a failed or missing payment.
type GraceValidator interface {
	Validate(sub *models.Subscription)
}

type graceValidator struct {
	now func() time.Time
}

// NewGraceValidator returns the default grace-period rule.
func NewGraceValidator() GraceValidator {
	return &graceValidator{now: time.Now}
}

// Validate retains the paid flag while the subscription is still inside its
// grace window. The canceled override applied afterwards always wins.
func (g *graceValidator) Validate(sub *models.Subscription) {
	if sub.Paid || sub.GracePeriodEnds == nil {
		return
	}
	if g.now().Before(*sub.GracePeriodEnds) {
		sub.Paid = true
	}
}
