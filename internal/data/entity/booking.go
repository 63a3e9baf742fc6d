package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusTutorSuggested BookingStatus = "tutor-suggested"
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusAccepted       BookingStatus = "accepted"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusDeclined       BookingStatus = "declined"
)

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusDeclined
}

// PaymentAuthType is fixed at creation (or suggestion approval) and decides
// when money is held and captured relative to the lesson time.
type PaymentAuthType string

const (
	// Lesson starts in under 24h: charge in one step once the tutor accepts.
	PaymentImmediateCharge PaymentAuthType = "immediate_charge"
	// Lesson is 24h..7d out: authorization is placed right away,
	// capture happens 24h before the lesson.
	PaymentImmediateAuth PaymentAuthType = "immediate_auth"
	// Lesson is 7d+ out: card authorizations expire after 7 days, so the
	// authorization itself is deferred until scheduledAt-7d.
	PaymentDeferredAuth PaymentAuthType = "deferred_auth"
)

// PaymentStage tags which stage of the payment lifecycle the booking is in,
// so stage-specific fields cannot be combined invalidly.
type PaymentStage string

const (
	PaymentStageNone          PaymentStage = "none"           // nothing done yet
	PaymentStageAuthScheduled PaymentStage = "auth_scheduled" // deferred_auth waiting for the auth-creation window
	PaymentStageAuthorized    PaymentStage = "authorized"     // hold placed, waiting for capture
	PaymentStageCaptured      PaymentStage = "captured"       // money taken
	PaymentStageRefunded      PaymentStage = "refunded"       // captured then refunded on cancellation
	PaymentStageReleased      PaymentStage = "released"       // authorization cancelled without a charge
	PaymentStageFailed        PaymentStage = "failed"         // last gateway attempt failed, retry pending
)

type RescheduleStatus string

const (
	RescheduleStatusPending  RescheduleStatus = "pending"
	RescheduleStatusApproved RescheduleStatus = "approved"
	RescheduleStatusDeclined RescheduleStatus = "declined"
)

// RescheduleRequest is embedded in a booking; at most one pending at a time.
type RescheduleRequest struct {
	RequestedBy    uuid.UUID        `db:"reschedule_requested_by"`
	RequestedAt    time.Time        `db:"reschedule_requested_at"`
	NewScheduledAt time.Time        `db:"reschedule_new_scheduled_at"`
	Status         RescheduleStatus `db:"reschedule_status"`
	RespondedBy    *uuid.UUID       `db:"reschedule_responded_by"`
	RespondedAt    *time.Time       `db:"reschedule_responded_at"`
	DeclineReason  *string          `db:"reschedule_decline_reason"`
}

// LessonReport is written by the tutor when completing a confirmed lesson.
type LessonReport struct {
	TopicsCovered string    `db:"report_topics_covered"`
	Homework      *string   `db:"report_homework"`
	Notes         *string   `db:"report_notes"`
	CompletedAt   time.Time `db:"report_completed_at"`
}

type Booking struct {
	BaseNoDelete
	StudentID       uuid.UUID     `db:"student_id"`
	TutorID         uuid.UUID     `db:"tutor_id"`
	Subject         string        `db:"subject"`
	Level           string        `db:"level"`
	DurationMinutes int           `db:"duration_minutes"`
	Price           int64         `db:"price"` // minor currency units
	Currency        string        `db:"currency"`
	ScheduledAt     time.Time     `db:"scheduled_at"`
	Status          BookingStatus `db:"status"`
	TutorNotes      *string       `db:"tutor_notes"` // set on tutor suggestions

	// Payment orchestration state. PaymentIntentRef is the gateway reference;
	// anything not matching the gateway shape is treated as legacy data.
	PaymentAuthType        PaymentAuthType `db:"payment_auth_type"`
	PaymentStage           PaymentStage    `db:"payment_stage"`
	IsPaid                 bool            `db:"is_paid"`
	PaymentIntentRef       *string         `db:"payment_intent_ref"`
	PaymentScheduledFor    *time.Time      `db:"payment_scheduled_for"`
	RequiresAuthCreation   bool            `db:"requires_auth_creation"`
	PaymentAttempted       bool            `db:"payment_attempted"`
	PaymentRetryCount      int             `db:"payment_retry_count"`
	PaymentError           *string         `db:"payment_error"`
	PaymentNextRetryAt     *time.Time      `db:"payment_next_retry_at"`
	PaymentCapturedAt      *time.Time      `db:"payment_captured_at"`
	AuthorizationExpiresAt *time.Time      `db:"authorization_expires_at"`
	RefundRef              *string         `db:"refund_ref"`
	RefundedAt             *time.Time      `db:"refunded_at"`

	MeetingID   *string `db:"meeting_id"`
	MeetingLink *string `db:"meeting_link"`

	Reschedule *RescheduleRequest
	Report     *LessonReport

	DeclineReason      *string    `db:"decline_reason"`
	CancelledBy        *uuid.UUID `db:"cancelled_by"`
	CancellationReason *string    `db:"cancellation_reason"`
	CancelledAt        *time.Time `db:"cancelled_at"`
}

// HasPendingReschedule reports whether a reschedule request is awaiting a
// response from the other party.
func (b *Booking) HasPendingReschedule() bool {
	return b.Reschedule != nil && b.Reschedule.Status == RescheduleStatusPending
}

// LeadTime is the remaining interval until the scheduled lesson.
func (b *Booking) LeadTime(now time.Time) time.Duration {
	return b.ScheduledAt.Sub(now)
}
