package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tutor-booking/internal/data/entity"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/dto/request"
	"tutor-booking/internal/dto/response"
	"tutor-booking/internal/gateway"
	"tutor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minCancelReasonLen = 10

// BookingService is the lifecycle manager: every state transition of a
// booking goes through here (or through the payment scheduler). The UI/API
// never mutates bookings directly.
type BookingService interface {
	CreateBooking(ctx context.Context, actorID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	SuggestLesson(ctx context.Context, actorID uuid.UUID, req *request.SuggestLessonRequest) (*response.BookingResponse, error)
	ApproveSuggestion(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)
	DeclineSuggestion(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error
	AcceptBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)
	DeclineBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error
	RequestReschedule(ctx context.Context, actorID, bookingID uuid.UUID, req *request.RescheduleRequest) (*response.BookingResponse, error)
	ApproveReschedule(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)
	DeclineReschedule(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error
	CancelBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error
	SubmitLessonReport(ctx context.Context, actorID, bookingID uuid.UUID, req *request.LessonReportRequest) (*response.BookingResponse, error)
	ConfirmPayment(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)
	GenerateMeeting(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)

	GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
}

type bookingService struct {
	repo    *repository.Repository
	gateway gateway.PaymentGateway
	payment PaymentService
	meeting MeetingService
	log     *zap.Logger
	now     Clock
}

func NewBookingService(
	repo *repository.Repository,
	gw gateway.PaymentGateway,
	meeting MeetingService,
	config *utils.Config,
	log *zap.Logger,
	now Clock,
) BookingService {
	return &bookingService{
		repo:    repo,
		gateway: gw,
		payment: NewPaymentService(repo, gw, meeting, config, log, now),
		meeting: meeting,
		log:     log.With(zap.String("service", "booking")),
		now:     now,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, actorID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	now := s.now()
	if !req.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
	}

	studentID := actorID
	if req.StudentID != nil {
		studentID = *req.StudentID
	}

	actor, err := s.repo.User.FindByID(ctx, actorID)
	if err != nil || actor == nil {
		return nil, fmt.Errorf("%w: actor %s", ErrNotFound, actorID.String())
	}
	student, err := s.repo.User.FindByID(ctx, studentID)
	if err != nil || student == nil {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, studentID.String())
	}
	tutor, err := s.repo.User.FindByID(ctx, req.TutorID)
	if err != nil || tutor == nil || tutor.Role != entity.RoleTutor {
		return nil, fmt.Errorf("%w: tutor %s", ErrNotFound, req.TutorID.String())
	}

	if actorID != studentID && !actor.IsParentOf(student) && actor.Role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: only the student, their parent or an admin can create this booking", ErrForbidden)
	}

	plan := PlanPayment(req.ScheduledAt, now)

	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		StudentID:            studentID,
		TutorID:              req.TutorID,
		Subject:              req.Subject,
		Level:                req.Level,
		DurationMinutes:      req.DurationMinutes,
		Price:                req.Price,
		Currency:             req.Currency,
		ScheduledAt:          req.ScheduledAt,
		Status:               entity.BookingStatusPending,
		PaymentAuthType:      plan.AuthType,
		PaymentStage:         plan.Stage,
		PaymentScheduledFor:  plan.ScheduledFor,
		RequiresAuthCreation: plan.RequiresAuthCreation,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("tutor_id", req.TutorID.String()),
		zap.String("payment_auth_type", string(plan.AuthType)),
		zap.Duration("lead_time", booking.LeadTime(now)),
	)

	// immediate_auth places the hold right away. A gateway failure is
	// recorded on the booking for retry; it never fails the creation.
	if plan.AuthType == entity.PaymentImmediateAuth {
		s.placeAuthorization(ctx, booking)
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) SuggestLesson(ctx context.Context, actorID uuid.UUID, req *request.SuggestLessonRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	now := s.now()
	if !req.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
	}

	tutor, err := s.repo.User.FindByID(ctx, actorID)
	if err != nil || tutor == nil {
		return nil, fmt.Errorf("%w: actor %s", ErrNotFound, actorID.String())
	}
	if tutor.Role != entity.RoleTutor {
		return nil, fmt.Errorf("%w: only tutors can suggest lessons", ErrForbidden)
	}

	student, err := s.repo.User.FindByID(ctx, req.StudentID)
	if err != nil || student == nil {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, req.StudentID.String())
	}

	prior, err := s.repo.Booking.CountByPair(ctx, actorID, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check prior bookings: %w", err)
	}
	if prior == 0 {
		return nil, fmt.Errorf("%w: suggestions require a prior booking with this student", ErrForbidden)
	}

	rate, err := s.repo.TutorRate.FindRate(ctx, actorID, req.Subject, req.Level)
	if err != nil {
		return nil, fmt.Errorf("look up tutor rate: %w", err)
	}
	if rate == nil {
		return nil, fmt.Errorf("%w: no rate configured for %s (%s)", ErrValidation, req.Subject, req.Level)
	}

	price := rate.RatePerHour * int64(req.DurationMinutes) / 60
	plan := PlanPayment(req.ScheduledAt, now)

	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		StudentID:            req.StudentID,
		TutorID:              actorID,
		Subject:              req.Subject,
		Level:                req.Level,
		DurationMinutes:      req.DurationMinutes,
		Price:                price,
		Currency:             rate.Currency,
		ScheduledAt:          req.ScheduledAt,
		Status:               entity.BookingStatusTutorSuggested,
		TutorNotes:           req.TutorNotes,
		PaymentAuthType:      plan.AuthType,
		PaymentStage:         plan.Stage,
		PaymentScheduledFor:  plan.ScheduledFor,
		RequiresAuthCreation: plan.RequiresAuthCreation,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create suggestion: %w", err)
	}

	s.log.Info("Lesson suggested",
		zap.String("booking_id", booking.ID.String()),
		zap.String("tutor_id", actorID.String()),
		zap.String("student_id", req.StudentID.String()),
		zap.Int64("price", price),
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) ApproveSuggestion(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	if booking.Status != entity.BookingStatusTutorSuggested {
		return nil, fmt.Errorf("%w: booking is %s, only tutor-suggested bookings can be approved", ErrConflict, booking.Status)
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanApproveSuggestion {
		return nil, fmt.Errorf("%w: suggestion approval requires the student (18+), their parent or an admin", ErrForbidden)
	}

	if !booking.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: the suggested lesson time has already passed", ErrConflict)
	}

	// The payment schedule is recomputed from the approval moment, not the
	// suggestion moment.
	plan := PlanPayment(booking.ScheduledAt, now)
	booking.Status = entity.BookingStatusPending
	booking.PaymentAuthType = plan.AuthType
	booking.PaymentStage = plan.Stage
	booking.PaymentScheduledFor = plan.ScheduledFor
	booking.RequiresAuthCreation = plan.RequiresAuthCreation
	booking.PaymentAttempted = false
	booking.PaymentError = nil
	booking.PaymentRetryCount = 0
	booking.PaymentNextRetryAt = nil
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, entity.BookingStatusTutorSuggested); err != nil {
		return nil, err
	}

	s.log.Info("Suggestion approved",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("payment_auth_type", string(plan.AuthType)),
	)

	if plan.AuthType == entity.PaymentImmediateAuth {
		s.placeAuthorization(ctx, booking)
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) DeclineSuggestion(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return err
	}

	if booking.Status != entity.BookingStatusTutorSuggested {
		return fmt.Errorf("%w: booking is %s, only tutor-suggested bookings can be declined here", ErrConflict, booking.Status)
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanDeclineSuggestion {
		return fmt.Errorf("%w: declining a suggestion requires the student's parent or an admin", ErrForbidden)
	}

	booking.Status = entity.BookingStatusDeclined
	booking.DeclineReason = optional(reason)
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, entity.BookingStatusTutorSuggested); err != nil {
		return err
	}

	s.log.Info("Suggestion declined",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
	)

	return nil
}

func (s *bookingService) AcceptBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	if booking.Status != entity.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking is %s, only pending bookings can be accepted", ErrConflict, booking.Status)
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanAcceptBooking {
		return nil, fmt.Errorf("%w: only the booked tutor can accept", ErrForbidden)
	}

	booking.Status = entity.BookingStatusAccepted
	booking.UpdatedAt = now

	// Capture timing is the scheduler's job. For immediate_charge there is
	// no pre-planned moment, so acceptance makes the booking due now; the
	// confirm-payment endpoint settles it synchronously if called first.
	if booking.PaymentAuthType == entity.PaymentImmediateCharge && !booking.IsPaid {
		booking.PaymentScheduledFor = &now
	}

	if err := s.update(ctx, booking, entity.BookingStatusPending); err != nil {
		return nil, err
	}

	s.log.Info("Booking accepted",
		zap.String("booking_id", bookingID.String()),
		zap.String("tutor_id", actorID.String()),
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) DeclineBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return err
	}

	if booking.Status != entity.BookingStatusPending {
		return fmt.Errorf("%w: booking is %s, only pending bookings can be declined", ErrConflict, booking.Status)
	}

	caps := ResolveCapabilities(actor, booking, student, s.now())
	if !caps.CanDeclineBooking {
		return fmt.Errorf("%w: only the booked tutor can decline", ErrForbidden)
	}

	booking.Status = entity.BookingStatusDeclined
	booking.DeclineReason = optional(reason)
	booking.UpdatedAt = s.now()

	if err := s.update(ctx, booking, entity.BookingStatusPending); err != nil {
		return err
	}

	s.log.Info("Booking declined",
		zap.String("booking_id", bookingID.String()),
		zap.String("tutor_id", actorID.String()),
	)

	return nil
}

func (s *bookingService) RequestReschedule(ctx context.Context, actorID, bookingID uuid.UUID, req *request.RescheduleRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	if booking.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: booking is already %s", ErrConflict, booking.Status)
	}
	if booking.HasPendingReschedule() {
		return nil, fmt.Errorf("%w: a reschedule request is already awaiting a response", ErrConflict)
	}

	now := s.now()
	if !req.NewScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: new_scheduled_at must be in the future", ErrValidation)
	}

	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanRequestReschedule {
		return nil, fmt.Errorf("%w: rescheduling requires the tutor, the student (18+), their parent or an admin", ErrForbidden)
	}

	// Tutors cannot push a lesson around at the last minute.
	if actorID == booking.TutorID && actor.Role != entity.RoleAdmin {
		if lead := booking.LeadTime(now); lead < captureLead {
			return nil, fmt.Errorf("%w: tutors cannot reschedule within 24h of the lesson, %.1f hours remain", ErrForbidden, lead.Hours())
		}
	}

	booking.Reschedule = &entity.RescheduleRequest{
		RequestedBy:    actorID,
		RequestedAt:    now,
		NewScheduledAt: req.NewScheduledAt,
		Status:         entity.RescheduleStatusPending,
	}
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, booking.Status); err != nil {
		return nil, err
	}

	s.log.Info("Reschedule requested",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Time("new_scheduled_at", req.NewScheduledAt),
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) ApproveReschedule(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	if !booking.HasPendingReschedule() {
		return nil, fmt.Errorf("%w: no pending reschedule request on this booking", ErrConflict)
	}

	now := s.now()
	if !CanRespondReschedule(actor, booking, student, booking.Reschedule.RequestedBy, now) {
		return nil, fmt.Errorf("%w: only the other party to the request (or an admin) can respond", ErrForbidden)
	}

	hadMeeting := booking.Status == entity.BookingStatusConfirmed && booking.MeetingLink != nil

	booking.ScheduledAt = booking.Reschedule.NewScheduledAt
	booking.Reschedule.Status = entity.RescheduleStatusApproved
	booking.Reschedule.RespondedBy = &actorID
	booking.Reschedule.RespondedAt = &now

	// The auth type never changes on reschedule; only the capture moment is
	// recomputed, and only while money has not been taken.
	if !booking.IsPaid && booking.PaymentAuthType != entity.PaymentImmediateCharge {
		captureAt := booking.ScheduledAt.Add(-captureLead)
		booking.PaymentScheduledFor = &captureAt
	}
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, booking.Status); err != nil {
		return nil, err
	}

	s.log.Info("Reschedule approved",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Time("scheduled_at", booking.ScheduledAt),
	)

	// Regenerate the meeting for the new window; failure never rolls back
	// the reschedule.
	if hadMeeting {
		if updated, err := s.meeting.GenerateMeetingForBooking(ctx, bookingID); err != nil {
			s.log.Warn("Meeting regeneration after reschedule failed",
				zap.Error(err),
				zap.String("booking_id", bookingID.String()),
			)
		} else {
			booking = updated
		}
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) DeclineReschedule(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return err
	}

	if !booking.HasPendingReschedule() {
		return fmt.Errorf("%w: no pending reschedule request on this booking", ErrConflict)
	}

	now := s.now()
	if !CanRespondReschedule(actor, booking, student, booking.Reschedule.RequestedBy, now) {
		return fmt.Errorf("%w: only the other party to the request (or an admin) can respond", ErrForbidden)
	}

	booking.Reschedule.Status = entity.RescheduleStatusDeclined
	booking.Reschedule.RespondedBy = &actorID
	booking.Reschedule.RespondedAt = &now
	booking.Reschedule.DeclineReason = optional(reason)
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, booking.Status); err != nil {
		return err
	}

	s.log.Info("Reschedule declined",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actorID.String()),
	)

	return nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason string) error {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return err
	}

	if booking.Status.IsTerminal() {
		return fmt.Errorf("%w: booking is already %s", ErrConflict, booking.Status)
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanCancel {
		return fmt.Errorf("%w: only participants or an admin can cancel", ErrForbidden)
	}

	isTutor := actorID == booking.TutorID
	isAdmin := actor.Role == entity.RoleAdmin

	if isTutor && !isAdmin {
		if len(strings.TrimSpace(reason)) < minCancelReasonLen {
			return fmt.Errorf("%w: tutors must give a cancellation reason of at least %d characters", ErrValidation, minCancelReasonLen)
		}
	}

	// Students and parents are held to the 24h window; tutors and admins
	// may cancel at any point before completion.
	if !isTutor && !isAdmin {
		if lead := booking.LeadTime(now); lead < captureLead {
			return fmt.Errorf("%w: cancellation requires 24h notice, only %.1f hours remain before the lesson", ErrForbidden, lead.Hours())
		}
	}

	if err := s.unwindPayment(ctx, booking, reason); err != nil {
		return err
	}

	// Meeting teardown is best-effort; the cancellation always clears the
	// link fields.
	if booking.MeetingID != nil {
		s.meeting.DeleteMeeting(ctx, *booking.MeetingID)
	}
	booking.MeetingID = nil
	booking.MeetingLink = nil

	expected := booking.Status
	booking.Status = entity.BookingStatusCancelled
	booking.CancelledBy = &actorID
	booking.CancellationReason = optional(reason)
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, expected); err != nil {
		return err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("cancelled_by", actorID.String()),
		zap.String("previous_status", string(expected)),
	)

	return nil
}

func (s *bookingService) SubmitLessonReport(ctx context.Context, actorID, bookingID uuid.UUID, req *request.LessonReportRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	// Completion is terminal; a second submission is rejected here.
	if booking.Status != entity.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s, reports can only be submitted for confirmed lessons", ErrConflict, booking.Status)
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanSubmitReport {
		return nil, fmt.Errorf("%w: only the tutor can submit the lesson report", ErrForbidden)
	}

	booking.Report = &entity.LessonReport{
		TopicsCovered: req.TopicsCovered,
		Homework:      req.Homework,
		Notes:         req.Notes,
		CompletedAt:   now,
	}
	booking.Status = entity.BookingStatusCompleted
	booking.UpdatedAt = now

	if err := s.update(ctx, booking, entity.BookingStatusConfirmed); err != nil {
		return nil, err
	}

	s.log.Info("Lesson completed",
		zap.String("booking_id", bookingID.String()),
		zap.String("tutor_id", actorID.String()),
	)

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) ConfirmPayment(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	caps := ResolveCapabilities(actor, booking, student, now)
	if !caps.CanConfirmPayment {
		return nil, fmt.Errorf("%w: payment confirmation requires the student (18+), their parent or an admin", ErrForbidden)
	}

	if booking.IsPaid {
		return nil, fmt.Errorf("%w: booking is already paid", ErrConflict)
	}
	if booking.Status != entity.BookingStatusAccepted {
		return nil, fmt.Errorf("%w: booking is %s, payment can only be confirmed once the tutor accepted", ErrConflict, booking.Status)
	}

	if err := s.payment.SettleNow(ctx, booking); err != nil {
		return nil, err
	}

	// Refresh: the settle step confirms the booking and may attach a link.
	updated, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil || updated == nil {
		return response.BookingToResponse(booking), nil
	}

	return response.BookingToResponse(updated), nil
}

func (s *bookingService) GenerateMeeting(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	caps := ResolveCapabilities(actor, booking, student, s.now())
	if !caps.CanManageMeeting {
		return nil, fmt.Errorf("%w: only participants, the student's parent or an admin can regenerate the link", ErrForbidden)
	}

	if booking.Status != entity.BookingStatusConfirmed {
		return nil, fmt.Errorf("%w: meeting links can only be generated for confirmed bookings, booking is %s", ErrValidation, booking.Status)
	}

	updated, err := s.meeting.GenerateMeetingForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return response.BookingToResponse(updated), nil
}

func (s *bookingService) GetBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, actor, student, err := s.loadParticipants(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}

	isParticipant := actorID == booking.StudentID || actorID == booking.TutorID
	if !isParticipant && !actor.IsParentOf(student) && actor.Role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: not a participant of this booking", ErrForbidden)
	}

	return response.BookingToResponse(booking), nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.String())
	}

	bookings, err := s.repo.Booking.FindByParticipant(ctx, userID, user.Role, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByParticipant(ctx, userID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = *response.BookingToResponse(booking)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

// ---------- helpers ----------

// loadParticipants loads the booking, the acting user and the booked student.
func (s *bookingService) loadParticipants(ctx context.Context, bookingID, actorID uuid.UUID) (*entity.Booking, *entity.User, *entity.User, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		return nil, nil, nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID.String())
	}

	actor, err := s.repo.User.FindByID(ctx, actorID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load actor: %w", err)
	}
	if actor == nil {
		return nil, nil, nil, fmt.Errorf("%w: user %s", ErrNotFound, actorID.String())
	}

	student, err := s.repo.User.FindByID(ctx, booking.StudentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load student: %w", err)
	}

	return booking, actor, student, nil
}

// update maps the repository's optimistic-lock failure onto the conflict
// error the handlers understand.
func (s *bookingService) update(ctx context.Context, booking *entity.Booking, expected entity.BookingStatus) error {
	err := s.repo.Booking.Update(ctx, booking, expected)
	if err == nil {
		return nil
	}
	if isStale(err) {
		return fmt.Errorf("%w: the booking changed while processing, please retry", ErrConflict)
	}
	return fmt.Errorf("store booking: %w", err)
}

// placeAuthorization performs the synchronous hold for immediate_auth
// bookings. Failures are written to the booking for the retry scheduler and
// never propagated.
func (s *bookingService) placeAuthorization(ctx context.Context, booking *entity.Booking) {
	if err := s.payment.SettleAuthorization(ctx, booking); err != nil {
		s.log.Warn("Immediate authorization failed, left for retry",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
	}
}

// unwindPayment releases or refunds money held for the booking before it is
// cancelled. Legacy references are logged and skipped; gateway failures
// abort the cancellation so it can be retried with the money still tracked.
func (s *bookingService) unwindPayment(ctx context.Context, booking *entity.Booking, reason string) error {
	if booking.PaymentIntentRef == nil {
		return nil
	}

	ref := *booking.PaymentIntentRef
	if !gateway.IsValidPaymentRef(ref) {
		// Data-integrity warning, not fatal: proceed without touching the
		// gateway.
		s.log.Warn("Booking has an invalid/legacy payment reference, cancelling without refund",
			zap.String("booking_id", booking.ID.String()),
		)
		if booking.IsPaid {
			s.log.Error("Paid booking cancelled without refund, manual reconciliation required",
				zap.String("booking_id", booking.ID.String()),
			)
		}
		return nil
	}

	now := s.now()

	if booking.PaymentCapturedAt != nil {
		refundRef, err := s.gateway.Refund(ctx, ref, reason)
		if err != nil {
			return fmt.Errorf("%w: refund for booking %s: %v", ErrGateway, booking.ID.String(), err)
		}
		booking.RefundRef = &refundRef
		booking.RefundedAt = &now
		booking.PaymentStage = entity.PaymentStageRefunded

		s.log.Info("Refund issued",
			zap.String("booking_id", booking.ID.String()),
			zap.String("refund_ref", refundRef),
		)
		return nil
	}

	if booking.PaymentStage == entity.PaymentStageAuthorized {
		if err := s.gateway.CancelAuthorization(ctx, ref); err != nil {
			return fmt.Errorf("%w: release authorization for booking %s: %v", ErrGateway, booking.ID.String(), err)
		}
		booking.PaymentStage = entity.PaymentStageReleased

		s.log.Info("Authorization released",
			zap.String("booking_id", booking.ID.String()),
		)
	}

	return nil
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func isStale(err error) bool {
	return errors.Is(err, repository.ErrStaleBooking)
}
