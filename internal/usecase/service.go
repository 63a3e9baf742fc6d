package usecase

import (
	"time"

	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"
	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

// Clock abstracts wall-clock "now" so lead-time math is deterministic in
// tests.
type Clock func() time.Time

type Service struct {
	Auth    AuthService
	Booking BookingService
	Payment PaymentService
	Meeting MeetingService
}

func NewService(
	repo *repository.Repository,
	payments gateway.PaymentGateway,
	meetings gateway.MeetingProvider,
	config *utils.Config,
	log *zap.Logger,
) *Service {
	clock := Clock(time.Now)

	meeting := NewMeetingService(repo, meetings, log, clock)

	return &Service{
		Auth:    NewAuthService(repo, config, log, clock),
		Booking: NewBookingService(repo, payments, meeting, config, log, clock),
		Payment: NewPaymentService(repo, payments, meeting, config, log, clock),
		Meeting: meeting,
	}
}
