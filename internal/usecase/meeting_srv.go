package usecase

import (
	"context"
	"fmt"
	"time"

	"tutor-booking/internal/data/entity"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// MeetingService is the best-effort coordinator around the meeting-link
// provider. Callers must treat its errors as non-fatal: a booking without a
// link stays usable and the link can be regenerated manually.
type MeetingService interface {
	// GenerateMeetingForBooking creates a meeting for a confirmed booking and
	// stores its id and join link on the booking.
	GenerateMeetingForBooking(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error)
	// DeleteMeeting removes a meeting room; failures are logged, never
	// propagated.
	DeleteMeeting(ctx context.Context, meetingID string)
}

const meetingMaxRetries = 3

type meetingService struct {
	repo        *repository.Repository
	provider    gateway.MeetingProvider
	log         *zap.Logger
	now         Clock
	backoffBase time.Duration
}

func NewMeetingService(repo *repository.Repository, provider gateway.MeetingProvider, log *zap.Logger, now Clock) MeetingService {
	return &meetingService{
		repo:        repo,
		provider:    provider,
		log:         log.With(zap.String("service", "meeting")),
		now:         now,
		backoffBase: 1 * time.Second,
	}
}

func (s *meetingService) GenerateMeetingForBooking(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID.String())
	}

	if booking.Status != entity.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: meeting links are only created for confirmed bookings, booking is %s",
			ErrConflict, booking.Status)
	}

	tutor, err := s.repo.User.FindByID(ctx, booking.TutorID)
	if err != nil || tutor == nil {
		return nil, fmt.Errorf("load tutor: %w", err)
	}
	student, err := s.repo.User.FindByID(ctx, booking.StudentID)
	if err != nil || student == nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	start := booking.ScheduledAt
	end := start.Add(time.Duration(booking.DurationMinutes) * time.Minute)
	subject := fmt.Sprintf("%s lesson (%s)", booking.Subject, booking.Level)
	attendees := []string{tutor.Email, student.Email}

	// Transient provider failures are retried with 1s, 2s, 4s delays before
	// giving up; the caller's primary operation must succeed regardless.
	var meeting *gateway.Meeting
	backoff := retry.WithMaxRetries(meetingMaxRetries, retry.NewExponential(s.backoffBase))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, createErr := s.provider.CreateMeeting(ctx, subject, start, end, attendees)
		if createErr != nil {
			s.log.Warn("Meeting creation attempt failed",
				zap.Error(createErr),
				zap.String("booking_id", bookingID.String()),
			)
			return retry.RetryableError(createErr)
		}
		meeting = created
		return nil
	})
	if err != nil {
		s.log.Error("Meeting creation exhausted retries",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("%w: create meeting for booking %s: %v", ErrGateway, bookingID.String(), err)
	}

	// If the previous link is being replaced, drop the old room best-effort.
	if booking.MeetingID != nil && *booking.MeetingID != meeting.ID {
		s.DeleteMeeting(ctx, *booking.MeetingID)
	}

	booking.MeetingID = &meeting.ID
	booking.MeetingLink = &meeting.JoinURL
	booking.UpdatedAt = s.now()

	if err := s.repo.Booking.Update(ctx, booking, entity.BookingStatusConfirmed); err != nil {
		// The booking moved on (e.g. cancelled mid-flight); remove the
		// orphaned room rather than leak it.
		s.DeleteMeeting(ctx, meeting.ID)
		return nil, fmt.Errorf("store meeting link: %w", err)
	}

	s.log.Info("Meeting link created",
		zap.String("booking_id", bookingID.String()),
		zap.String("meeting_id", meeting.ID),
	)

	return booking, nil
}

func (s *meetingService) DeleteMeeting(ctx context.Context, meetingID string) {
	if err := s.provider.DeleteMeeting(ctx, meetingID); err != nil {
		s.log.Warn("Failed to delete meeting, leaving for provider-side cleanup",
			zap.Error(err),
			zap.String("meeting_id", meetingID),
		)
	}
}
