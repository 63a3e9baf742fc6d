package usecase

import (
	"fmt"
	"time"

	"tutor-booking/internal/data/entity"

	"github.com/google/uuid"
)

const (
	captureLead = 24 * time.Hour
	authWindow  = 7 * 24 * time.Hour
)

// PaymentPlan is the outcome of the lead-time rule: which auth type a booking
// gets and when the scheduler should act on it.
type PaymentPlan struct {
	AuthType             entity.PaymentAuthType
	Stage                entity.PaymentStage
	ScheduledFor         *time.Time
	RequiresAuthCreation bool
}

// PlanPayment applies the lead-time rule. Boundary choice, applied
// consistently: both lower bounds are inclusive, so exactly 24h lead time is
// immediate_auth and exactly 7d is deferred_auth.
//
//	L <  24h          -> immediate_charge, no schedule
//	24h <= L < 7d     -> immediate_auth,  capture at scheduledAt-24h
//	L >= 7d           -> deferred_auth,   auth at scheduledAt-7d, capture at scheduledAt-24h
func PlanPayment(scheduledAt, now time.Time) PaymentPlan {
	lead := scheduledAt.Sub(now)

	switch {
	case lead < captureLead:
		return PaymentPlan{
			AuthType: entity.PaymentImmediateCharge,
			Stage:    entity.PaymentStageNone,
		}
	case lead < authWindow:
		captureAt := scheduledAt.Add(-captureLead)
		return PaymentPlan{
			AuthType:     entity.PaymentImmediateAuth,
			Stage:        entity.PaymentStageNone,
			ScheduledFor: &captureAt,
		}
	default:
		captureAt := scheduledAt.Add(-captureLead)
		return PaymentPlan{
			AuthType:             entity.PaymentDeferredAuth,
			Stage:                entity.PaymentStageAuthScheduled,
			ScheduledFor:         &captureAt,
			RequiresAuthCreation: true,
		}
	}
}

// paymentAction is what a scheduler pass decided to do with one booking.
type paymentAction int

const (
	actionSkip paymentAction = iota
	actionCreateAuth
	actionCapture
	actionCharge
)

// planPaymentAction is the pure decision step of the scheduler: given the
// booking as read and the current time, pick the gateway call to make. The
// execute step then performs it with guarded writes.
func planPaymentAction(b *entity.Booking, now time.Time) paymentAction {
	if b.IsPaid || b.Status.IsTerminal() || b.Status == entity.BookingStatusConfirmed {
		return actionSkip
	}

	if b.RequiresAuthCreation {
		if b.ScheduledAt.Add(-authWindow).After(now) {
			return actionSkip
		}
		return actionCreateAuth
	}

	if b.PaymentScheduledFor == nil || b.PaymentScheduledFor.After(now) {
		return actionSkip
	}

	if b.PaymentIntentRef == nil {
		// No hold exists yet: either the immediate_charge path or an
		// immediate_auth booking whose synchronous authorization failed.
		return actionCharge
	}

	return actionCapture
}

// Idempotency keys are derived from (bookingID, stage) so a retried gateway
// call can never double-charge.
func idempotencyKey(bookingID uuid.UUID, stage string) string {
	return fmt.Sprintf("booking:%s:%s", bookingID.String(), stage)
}

// nextRetryAt backs payment retries off exponentially across scheduler runs.
func nextRetryAt(now time.Time, retryCount int, base time.Duration) time.Time {
	return now.Add(base << uint(retryCount))
}
