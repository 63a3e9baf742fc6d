package usecase

import (
	"testing"
	"time"

	"tutor-booking/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPayment_LeadTimeBoundaries(t *testing.T) {
	tests := []struct {
		name         string
		lead         time.Duration
		wantAuthType entity.PaymentAuthType
		wantSchedule bool
		wantAuthFlag bool
	}{
		{"one hour out", time.Hour, entity.PaymentImmediateCharge, false, false},
		{"just under 24h", 24*time.Hour - time.Second, entity.PaymentImmediateCharge, false, false},
		{"exactly 24h", 24 * time.Hour, entity.PaymentImmediateAuth, true, false},
		{"three days out", 72 * time.Hour, entity.PaymentImmediateAuth, true, false},
		{"just under 7d", 168*time.Hour - time.Second, entity.PaymentImmediateAuth, true, false},
		{"exactly 7d", 168 * time.Hour, entity.PaymentDeferredAuth, true, true},
		{"a month out", 30 * 24 * time.Hour, entity.PaymentDeferredAuth, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduledAt := testNow.Add(tt.lead)
			plan := PlanPayment(scheduledAt, testNow)

			assert.Equal(t, tt.wantAuthType, plan.AuthType)
			assert.Equal(t, tt.wantAuthFlag, plan.RequiresAuthCreation)

			if tt.wantSchedule {
				require.NotNil(t, plan.ScheduledFor)
				assert.Equal(t, scheduledAt.Add(-24*time.Hour), *plan.ScheduledFor)
			} else {
				assert.Nil(t, plan.ScheduledFor)
			}
		})
	}
}

func TestPlanPayment_Stage(t *testing.T) {
	assert.Equal(t, entity.PaymentStageNone, PlanPayment(testNow.Add(time.Hour), testNow).Stage)
	assert.Equal(t, entity.PaymentStageNone, PlanPayment(testNow.Add(48*time.Hour), testNow).Stage)
	assert.Equal(t, entity.PaymentStageAuthScheduled, PlanPayment(testNow.Add(10*24*time.Hour), testNow).Stage)
}

func TestPlanPaymentAction(t *testing.T) {
	ref := "pi_abc123"
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)

	tests := []struct {
		name    string
		booking entity.Booking
		want    paymentAction
	}{
		{
			"paid booking is skipped",
			entity.Booking{IsPaid: true, Status: entity.BookingStatusConfirmed},
			actionSkip,
		},
		{
			"cancelled booking is skipped",
			entity.Booking{Status: entity.BookingStatusCancelled, PaymentScheduledFor: &past},
			actionSkip,
		},
		{
			"auth window still closed",
			entity.Booking{
				Status:               entity.BookingStatusAccepted,
				RequiresAuthCreation: true,
				ScheduledAt:          testNow.Add(10 * 24 * time.Hour),
			},
			actionSkip,
		},
		{
			"auth window open",
			entity.Booking{
				Status:               entity.BookingStatusAccepted,
				RequiresAuthCreation: true,
				ScheduledAt:          testNow.Add(6 * 24 * time.Hour),
			},
			actionCreateAuth,
		},
		{
			"capture moment not reached",
			entity.Booking{Status: entity.BookingStatusAccepted, PaymentScheduledFor: &future, PaymentIntentRef: &ref},
			actionSkip,
		},
		{
			"no schedule at all",
			entity.Booking{Status: entity.BookingStatusAccepted},
			actionSkip,
		},
		{
			"due with a hold",
			entity.Booking{Status: entity.BookingStatusAccepted, PaymentScheduledFor: &past, PaymentIntentRef: &ref},
			actionCapture,
		},
		{
			"due without a hold",
			entity.Booking{Status: entity.BookingStatusAccepted, PaymentScheduledFor: &past},
			actionCharge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planPaymentAction(&tt.booking, testNow))
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("3e0170e5-27de-4a10-8531-4cd5e28e9ccd")
	assert.Equal(t, "booking:3e0170e5-27de-4a10-8531-4cd5e28e9ccd:capture", idempotencyKey(id, "capture"))
}

func TestNextRetryAt_DoublesPerAttempt(t *testing.T) {
	base := 30 * time.Minute

	assert.Equal(t, testNow.Add(30*time.Minute), nextRetryAt(testNow, 0, base))
	assert.Equal(t, testNow.Add(time.Hour), nextRetryAt(testNow, 1, base))
	assert.Equal(t, testNow.Add(2*time.Hour), nextRetryAt(testNow, 2, base))
	assert.Equal(t, testNow.Add(8*time.Hour), nextRetryAt(testNow, 4, base))
}
