package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutor-booking/internal/data/entity"
	"tutor-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrStaleBooking is returned by the guarded update when another writer won
// the race: the row exists but its status no longer matches the expected
// pre-condition. Callers must re-read and re-evaluate.
var ErrStaleBooking = errors.New("booking was modified concurrently")

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error)
	CountByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole) (int64, error)
	CountByPair(ctx context.Context, tutorID, studentID uuid.UUID) (int64, error)

	// Update persists the full booking row only if its stored status still
	// equals expectedStatus; otherwise ErrStaleBooking.
	Update(ctx context.Context, booking *entity.Booking, expectedStatus entity.BookingStatus) error

	// Scheduler queries
	FindDueAuthCreation(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)
	FindDueCapture(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)
	FindRetryablePayments(ctx context.Context, now time.Time, maxRetries, limit int) ([]*entity.Booking, error)
}

const bookingColumns = `id, student_id, tutor_id, subject, level, duration_minutes, price, currency,
		scheduled_at, status, tutor_notes,
		payment_auth_type, payment_stage, is_paid, payment_intent_ref, payment_scheduled_for,
		requires_auth_creation, payment_attempted, payment_retry_count, payment_error,
		payment_next_retry_at, payment_captured_at, authorization_expires_at, refund_ref, refunded_at,
		meeting_id, meeting_link,
		reschedule_requested_by, reschedule_requested_at, reschedule_new_scheduled_at,
		reschedule_status, reschedule_responded_by, reschedule_responded_at, reschedule_decline_reason,
		report_topics_covered, report_homework, report_notes, report_completed_at,
		decline_reason, cancelled_by, cancellation_reason, cancelled_at,
		created_at, updated_at`

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32,
		        $33, $34, $35, $36, $37, $38, $39, $40, $41, $42, $43, $44)
	`

	_, err := r.db.Exec(ctx, query, bookingArgs(booking)...)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("student_id", booking.StudentID.String()),
			zap.String("tutor_id", booking.TutorID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID.String(), err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + participantClause(role) + `
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by participant",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("role", string(role)),
		)
		return nil, fmt.Errorf("find bookings for %s: %w", userID.String(), err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) CountByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE ` + participantClause(role)

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by participant",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings for %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) CountByPair(ctx context.Context, tutorID, studentID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE tutor_id = $1 AND student_id = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, tutorID, studentID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by pair",
			zap.Error(err),
			zap.String("tutor_id", tutorID.String()),
			zap.String("student_id", studentID.String()),
		)
		return 0, fmt.Errorf("count bookings for pair: %w", err)
	}

	return count, nil
}

// Update is the optimistic concurrency point for the whole engine: the write
// succeeds only while the stored status matches the status the caller read.
func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking, expectedStatus entity.BookingStatus) error {
	query := `
		UPDATE bookings SET
			subject = $3, level = $4, duration_minutes = $5, price = $6, currency = $7,
			scheduled_at = $8, status = $9, tutor_notes = $10,
			payment_auth_type = $11, payment_stage = $12, is_paid = $13, payment_intent_ref = $14,
			payment_scheduled_for = $15, requires_auth_creation = $16, payment_attempted = $17,
			payment_retry_count = $18, payment_error = $19, payment_next_retry_at = $20,
			payment_captured_at = $21, authorization_expires_at = $22, refund_ref = $23, refunded_at = $24,
			meeting_id = $25, meeting_link = $26,
			reschedule_requested_by = $27, reschedule_requested_at = $28, reschedule_new_scheduled_at = $29,
			reschedule_status = $30, reschedule_responded_by = $31, reschedule_responded_at = $32,
			reschedule_decline_reason = $33,
			report_topics_covered = $34, report_homework = $35, report_notes = $36, report_completed_at = $37,
			decline_reason = $38, cancelled_by = $39, cancellation_reason = $40, cancelled_at = $41,
			updated_at = $42
		WHERE id = $1 AND status = $2
	`

	var reschedule rescheduleFields
	if booking.Reschedule != nil {
		reschedule = rescheduleFields{
			requestedBy:    &booking.Reschedule.RequestedBy,
			requestedAt:    &booking.Reschedule.RequestedAt,
			newScheduledAt: &booking.Reschedule.NewScheduledAt,
			status:         (*string)(&booking.Reschedule.Status),
			respondedBy:    booking.Reschedule.RespondedBy,
			respondedAt:    booking.Reschedule.RespondedAt,
			declineReason:  booking.Reschedule.DeclineReason,
		}
	}

	var report reportFields
	if booking.Report != nil {
		report = reportFields{
			topicsCovered: &booking.Report.TopicsCovered,
			homework:      booking.Report.Homework,
			notes:         booking.Report.Notes,
			completedAt:   &booking.Report.CompletedAt,
		}
	}

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		expectedStatus,
		booking.Subject,
		booking.Level,
		booking.DurationMinutes,
		booking.Price,
		booking.Currency,
		booking.ScheduledAt,
		booking.Status,
		booking.TutorNotes,
		booking.PaymentAuthType,
		booking.PaymentStage,
		booking.IsPaid,
		booking.PaymentIntentRef,
		booking.PaymentScheduledFor,
		booking.RequiresAuthCreation,
		booking.PaymentAttempted,
		booking.PaymentRetryCount,
		booking.PaymentError,
		booking.PaymentNextRetryAt,
		booking.PaymentCapturedAt,
		booking.AuthorizationExpiresAt,
		booking.RefundRef,
		booking.RefundedAt,
		booking.MeetingID,
		booking.MeetingLink,
		reschedule.requestedBy,
		reschedule.requestedAt,
		reschedule.newScheduledAt,
		reschedule.status,
		reschedule.respondedBy,
		reschedule.respondedAt,
		reschedule.declineReason,
		report.topicsCovered,
		report.homework,
		report.notes,
		report.completedAt,
		booking.DeclineReason,
		booking.CancelledBy,
		booking.CancellationReason,
		booking.CancelledAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		r.log.Warn("Booking update lost the race",
			zap.String("booking_id", booking.ID.String()),
			zap.String("expected_status", string(expectedStatus)),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), ErrStaleBooking)
	}

	return nil
}

func (r *bookingRepository) FindDueAuthCreation(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE requires_auth_creation = TRUE
		  AND is_paid = FALSE
		  AND status IN ('pending', 'accepted')
		  AND scheduled_at - INTERVAL '7 days' <= $1
		  AND payment_error IS NULL
		ORDER BY scheduled_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find bookings due for auth creation", zap.Error(err))
		return nil, fmt.Errorf("find due auth creation: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) FindDueCapture(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE is_paid = FALSE
		  AND status IN ('pending', 'accepted')
		  AND payment_scheduled_for IS NOT NULL
		  AND payment_scheduled_for <= $1
		  AND requires_auth_creation = FALSE
		  AND payment_error IS NULL
		ORDER BY payment_scheduled_for
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to find bookings due for capture", zap.Error(err))
		return nil, fmt.Errorf("find due capture: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *bookingRepository) FindRetryablePayments(ctx context.Context, now time.Time, maxRetries, limit int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE payment_attempted = TRUE
		  AND payment_error IS NOT NULL
		  AND payment_retry_count < $2
		  AND is_paid = FALSE
		  AND status IN ('pending', 'accepted')
		  AND (payment_next_retry_at IS NULL OR payment_next_retry_at <= $1)
		ORDER BY payment_next_retry_at NULLS FIRST
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, now, maxRetries, limit)
	if err != nil {
		r.log.Error("Failed to find retryable payments", zap.Error(err))
		return nil, fmt.Errorf("find retryable payments: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func participantClause(role entity.UserRole) string {
	switch role {
	case entity.RoleTutor:
		return `tutor_id = $1`
	case entity.RoleParent:
		return `student_id IN (SELECT id FROM users WHERE parent_id = $1)`
	default:
		return `student_id = $1`
	}
}

type rescheduleFields struct {
	requestedBy    *uuid.UUID
	requestedAt    *time.Time
	newScheduledAt *time.Time
	status         *string
	respondedBy    *uuid.UUID
	respondedAt    *time.Time
	declineReason  *string
}

type reportFields struct {
	topicsCovered *string
	homework      *string
	notes         *string
	completedAt   *time.Time
}

func bookingArgs(b *entity.Booking) []any {
	var reschedule rescheduleFields
	if b.Reschedule != nil {
		reschedule = rescheduleFields{
			requestedBy:    &b.Reschedule.RequestedBy,
			requestedAt:    &b.Reschedule.RequestedAt,
			newScheduledAt: &b.Reschedule.NewScheduledAt,
			status:         (*string)(&b.Reschedule.Status),
			respondedBy:    b.Reschedule.RespondedBy,
			respondedAt:    b.Reschedule.RespondedAt,
			declineReason:  b.Reschedule.DeclineReason,
		}
	}

	var report reportFields
	if b.Report != nil {
		report = reportFields{
			topicsCovered: &b.Report.TopicsCovered,
			homework:      b.Report.Homework,
			notes:         b.Report.Notes,
			completedAt:   &b.Report.CompletedAt,
		}
	}

	return []any{
		b.ID, b.StudentID, b.TutorID, b.Subject, b.Level, b.DurationMinutes, b.Price, b.Currency,
		b.ScheduledAt, b.Status, b.TutorNotes,
		b.PaymentAuthType, b.PaymentStage, b.IsPaid, b.PaymentIntentRef, b.PaymentScheduledFor,
		b.RequiresAuthCreation, b.PaymentAttempted, b.PaymentRetryCount, b.PaymentError,
		b.PaymentNextRetryAt, b.PaymentCapturedAt, b.AuthorizationExpiresAt, b.RefundRef, b.RefundedAt,
		b.MeetingID, b.MeetingLink,
		reschedule.requestedBy, reschedule.requestedAt, reschedule.newScheduledAt,
		reschedule.status, reschedule.respondedBy, reschedule.respondedAt, reschedule.declineReason,
		report.topicsCovered, report.homework, report.notes, report.completedAt,
		b.DeclineReason, b.CancelledBy, b.CancellationReason, b.CancelledAt,
		b.CreatedAt, b.UpdatedAt,
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	var reschedule rescheduleFields
	var report reportFields

	err := row.Scan(
		&b.ID, &b.StudentID, &b.TutorID, &b.Subject, &b.Level, &b.DurationMinutes, &b.Price, &b.Currency,
		&b.ScheduledAt, &b.Status, &b.TutorNotes,
		&b.PaymentAuthType, &b.PaymentStage, &b.IsPaid, &b.PaymentIntentRef, &b.PaymentScheduledFor,
		&b.RequiresAuthCreation, &b.PaymentAttempted, &b.PaymentRetryCount, &b.PaymentError,
		&b.PaymentNextRetryAt, &b.PaymentCapturedAt, &b.AuthorizationExpiresAt, &b.RefundRef, &b.RefundedAt,
		&b.MeetingID, &b.MeetingLink,
		&reschedule.requestedBy, &reschedule.requestedAt, &reschedule.newScheduledAt,
		&reschedule.status, &reschedule.respondedBy, &reschedule.respondedAt, &reschedule.declineReason,
		&report.topicsCovered, &report.homework, &report.notes, &report.completedAt,
		&b.DeclineReason, &b.CancelledBy, &b.CancellationReason, &b.CancelledAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reschedule.requestedBy != nil {
		b.Reschedule = &entity.RescheduleRequest{
			RequestedBy:    *reschedule.requestedBy,
			RequestedAt:    *reschedule.requestedAt,
			NewScheduledAt: *reschedule.newScheduledAt,
			Status:         entity.RescheduleStatus(*reschedule.status),
			RespondedBy:    reschedule.respondedBy,
			RespondedAt:    reschedule.respondedAt,
			DeclineReason:  reschedule.declineReason,
		}
	}

	if report.topicsCovered != nil {
		b.Report = &entity.LessonReport{
			TopicsCovered: *report.topicsCovered,
			Homework:      report.homework,
			Notes:         report.notes,
			CompletedAt:   *report.completedAt,
		}
	}

	return &b, nil
}

func scanBookings(rows pgx.Rows) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}
