package usecase

import (
	"context"
	"fmt"
	"time"

	"tutor-booking/internal/data/entity"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"
	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

// RunSummary reports one scheduler pass.
type RunSummary struct {
	AuthsCreated int       `json:"auths_created"`
	Captured     int       `json:"captured"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	RanAt        time.Time `json:"ran_at"`
}

// PaymentService advances time-triggered payment stages. It is driven by the
// cron endpoints and the background runner, and by the lifecycle manager for
// the synchronous confirm-payment path.
type PaymentService interface {
	ProcessScheduledPayments(ctx context.Context) (*RunSummary, error)
	RetryFailedPayments(ctx context.Context) (*RunSummary, error)
	// SettleNow charges or captures one booking synchronously. The booking
	// must already be validated by the caller (accepted, unpaid).
	SettleNow(ctx context.Context, booking *entity.Booking) error
	// SettleAuthorization places the hold for one booking synchronously,
	// used by the immediate_auth path at creation/approval time.
	SettleAuthorization(ctx context.Context, booking *entity.Booking) error
}

const schedulerBatchLimit = 100

type paymentService struct {
	repo      *repository.Repository
	gateway   gateway.PaymentGateway
	meeting   MeetingService
	log       *zap.Logger
	now       Clock
	currency  string
	maxRetry  int
	retryBase time.Duration
}

func NewPaymentService(
	repo *repository.Repository,
	gw gateway.PaymentGateway,
	meeting MeetingService,
	config *utils.Config,
	log *zap.Logger,
	now Clock,
) PaymentService {
	return &paymentService{
		repo:      repo,
		gateway:   gw,
		meeting:   meeting,
		log:       log.With(zap.String("service", "payment")),
		now:       now,
		currency:  config.Payment.Currency,
		maxRetry:  config.Payment.MaxRetries,
		retryBase: config.Payment.RetryBase,
	}
}

// ProcessScheduledPayments runs the two time-triggered stages: create
// authorizations for deferred bookings whose 7-day window opened, and
// capture bookings whose capture moment passed. A failing booking is
// recorded and skipped; the batch always continues.
func (s *paymentService) ProcessScheduledPayments(ctx context.Context) (*RunSummary, error) {
	now := s.now()
	summary := &RunSummary{RanAt: now}

	dueAuths, err := s.repo.Booking.FindDueAuthCreation(ctx, now, schedulerBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list bookings due for authorization: %w", err)
	}

	for _, booking := range dueAuths {
		action := planPaymentAction(booking, now)
		if action != actionCreateAuth {
			summary.Skipped++
			continue
		}
		if err := s.execute(ctx, booking, action, now); err != nil {
			summary.Failed++
			continue
		}
		summary.AuthsCreated++
	}

	dueCaptures, err := s.repo.Booking.FindDueCapture(ctx, now, schedulerBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list bookings due for capture: %w", err)
	}

	for _, booking := range dueCaptures {
		action := planPaymentAction(booking, now)
		if action != actionCapture && action != actionCharge {
			summary.Skipped++
			continue
		}
		if err := s.execute(ctx, booking, action, now); err != nil {
			summary.Failed++
			continue
		}
		summary.Captured++
	}

	s.log.Info("Scheduled payments processed",
		zap.Int("auths_created", summary.AuthsCreated),
		zap.Int("captured", summary.Captured),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

// RetryFailedPayments re-attempts bookings whose last gateway call failed,
// below the retry ceiling and past their backoff deadline.
func (s *paymentService) RetryFailedPayments(ctx context.Context) (*RunSummary, error) {
	now := s.now()
	summary := &RunSummary{RanAt: now}

	retryable, err := s.repo.Booking.FindRetryablePayments(ctx, now, s.maxRetry, schedulerBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("list retryable payments: %w", err)
	}

	for _, booking := range retryable {
		action := planPaymentAction(booking, now)
		if action == actionSkip {
			// Not actionable yet (e.g. a failed early authorization whose
			// capture moment is still ahead); leave it for its window.
			summary.Skipped++
			continue
		}
		if err := s.execute(ctx, booking, action, now); err != nil {
			summary.Failed++
			continue
		}
		switch action {
		case actionCreateAuth:
			summary.AuthsCreated++
		default:
			summary.Captured++
		}
	}

	s.log.Info("Failed payments retried",
		zap.Int("auths_created", summary.AuthsCreated),
		zap.Int("captured", summary.Captured),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

func (s *paymentService) SettleNow(ctx context.Context, booking *entity.Booking) error {
	action := actionCharge
	if booking.PaymentIntentRef != nil && gateway.IsValidPaymentRef(*booking.PaymentIntentRef) {
		action = actionCapture
	}

	return s.execute(ctx, booking, action, s.now())
}

func (s *paymentService) SettleAuthorization(ctx context.Context, booking *entity.Booking) error {
	return s.execute(ctx, booking, actionCreateAuth, s.now())
}

// execute performs the decided gateway call and persists the outcome with a
// status-guarded write. On gateway failure the booking is marked for retry
// and the error is returned wrapped as ErrGateway.
func (s *paymentService) execute(ctx context.Context, booking *entity.Booking, action paymentAction, now time.Time) error {
	expected := booking.Status

	switch action {
	case actionCreateAuth:
		key := idempotencyKey(booking.ID, "auth")
		ref, err := s.gateway.CreateAuthorization(ctx, booking.Price, booking.Currency, booking.StudentID.String(), key)
		if err != nil {
			return s.recordFailure(ctx, booking, expected, "create authorization", err, now)
		}

		expiry := now.Add(authWindow)
		booking.PaymentIntentRef = &ref
		booking.RequiresAuthCreation = false
		booking.PaymentStage = entity.PaymentStageAuthorized
		booking.AuthorizationExpiresAt = &expiry
		booking.PaymentAttempted = true
		booking.PaymentError = nil
		booking.PaymentNextRetryAt = nil
		booking.UpdatedAt = now

		if err := s.repo.Booking.Update(ctx, booking, expected); err != nil {
			s.log.Error("Authorization created but booking write lost the race",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
				zap.String("payment_ref", ref),
			)
			return fmt.Errorf("%w: store authorization: %v", ErrConflict, err)
		}

		s.log.Info("Authorization created",
			zap.String("booking_id", booking.ID.String()),
			zap.String("payment_ref", ref),
		)
		return nil

	case actionCapture:
		if booking.PaymentIntentRef == nil || !gateway.IsValidPaymentRef(*booking.PaymentIntentRef) {
			// Data-integrity warning, not fatal: never send a legacy
			// reference to the gateway.
			s.log.Warn("Booking due for capture has an invalid payment reference, skipping",
				zap.String("booking_id", booking.ID.String()),
			)
			return fmt.Errorf("%w: booking %s has no valid payment reference", ErrConflict, booking.ID.String())
		}

		key := idempotencyKey(booking.ID, "capture")
		if err := s.gateway.Capture(ctx, *booking.PaymentIntentRef, key); err != nil {
			return s.recordFailure(ctx, booking, expected, "capture", err, now)
		}

		return s.finishCapture(ctx, booking, expected, now)

	case actionCharge:
		key := idempotencyKey(booking.ID, "charge")
		ref, err := s.gateway.Charge(ctx, booking.Price, booking.Currency, booking.StudentID.String(), key)
		if err != nil {
			return s.recordFailure(ctx, booking, expected, "charge", err, now)
		}

		booking.PaymentIntentRef = &ref
		return s.finishCapture(ctx, booking, expected, now)

	default:
		return nil
	}
}

// finishCapture marks the booking paid and confirmed, then asks for a
// meeting link best-effort.
func (s *paymentService) finishCapture(ctx context.Context, booking *entity.Booking, expected entity.BookingStatus, now time.Time) error {
	booking.IsPaid = true
	booking.PaymentCapturedAt = &now
	booking.PaymentStage = entity.PaymentStageCaptured
	booking.Status = entity.BookingStatusConfirmed
	booking.PaymentAttempted = true
	booking.PaymentError = nil
	booking.PaymentNextRetryAt = nil
	booking.RequiresAuthCreation = false
	booking.UpdatedAt = now

	if err := s.repo.Booking.Update(ctx, booking, expected); err != nil {
		// The money moved but another writer (typically a cancellation) won
		// the row. Compensate with a refund so both cannot succeed.
		s.log.Error("Capture succeeded but booking write lost the race, refunding",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		if booking.PaymentIntentRef != nil {
			if _, refundErr := s.gateway.Refund(ctx, *booking.PaymentIntentRef, "capture lost cancellation race"); refundErr != nil {
				s.log.Error("Compensating refund failed, manual reconciliation required",
					zap.Error(refundErr),
					zap.String("booking_id", booking.ID.String()),
					zap.String("payment_ref", *booking.PaymentIntentRef),
				)
			}
		}
		return fmt.Errorf("%w: store capture: %v", ErrConflict, err)
	}

	s.log.Info("Payment captured",
		zap.String("booking_id", booking.ID.String()),
		zap.Int64("amount", booking.Price),
	)

	if _, err := s.meeting.GenerateMeetingForBooking(ctx, booking.ID); err != nil {
		// Best-effort: the payment stands, the link can be regenerated.
		s.log.Warn("Meeting link creation failed after capture",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
	}

	return nil
}

// recordFailure stores the failed attempt with an exponential backoff
// deadline and leaves the booking in its current unpaid status.
func (s *paymentService) recordFailure(ctx context.Context, booking *entity.Booking, expected entity.BookingStatus, op string, gatewayErr error, now time.Time) error {
	msg := gatewayErr.Error()
	next := nextRetryAt(now, booking.PaymentRetryCount, s.retryBase)

	booking.PaymentAttempted = true
	booking.PaymentError = &msg
	booking.PaymentStage = entity.PaymentStageFailed
	booking.PaymentRetryCount++
	booking.PaymentNextRetryAt = &next
	booking.UpdatedAt = now

	if err := s.repo.Booking.Update(ctx, booking, expected); err != nil {
		s.log.Error("Failed to record payment failure",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
	}

	s.log.Warn("Payment attempt failed",
		zap.String("operation", op),
		zap.Error(gatewayErr),
		zap.String("booking_id", booking.ID.String()),
		zap.Int("retry_count", booking.PaymentRetryCount),
		zap.Time("next_retry_at", next),
	)

	return fmt.Errorf("%w: %s for booking %s: %v", ErrGateway, op, booking.ID.String(), gatewayErr)
}
