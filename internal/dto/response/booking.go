package response

import (
	"time"

	"tutor-booking/internal/data/entity"
)

type RescheduleResponse struct {
	RequestedBy    string                  `json:"requested_by"`
	RequestedAt    time.Time               `json:"requested_at"`
	NewScheduledAt time.Time               `json:"new_scheduled_at"`
	Status         entity.RescheduleStatus `json:"status"`
	RespondedBy    *string                 `json:"responded_by,omitempty"`
	RespondedAt    *time.Time              `json:"responded_at,omitempty"`
	DeclineReason  *string                 `json:"decline_reason,omitempty"`
}

type LessonReportResponse struct {
	TopicsCovered string    `json:"topics_covered"`
	Homework      *string   `json:"homework,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

type PaymentResponse struct {
	AuthType     entity.PaymentAuthType `json:"auth_type"`
	Stage        entity.PaymentStage    `json:"stage"`
	IsPaid       bool                   `json:"is_paid"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
	CapturedAt   *time.Time             `json:"captured_at,omitempty"`
	RetryCount   int                    `json:"retry_count,omitempty"`
	LastError    *string                `json:"last_error,omitempty"`
	RefundedAt   *time.Time             `json:"refunded_at,omitempty"`
}

type BookingResponse struct {
	ID              string               `json:"id"`
	StudentID       string               `json:"student_id"`
	TutorID         string               `json:"tutor_id"`
	Subject         string               `json:"subject"`
	Level           string               `json:"level"`
	DurationMinutes int                  `json:"duration_minutes"`
	Price           int64                `json:"price"`
	Currency        string               `json:"currency"`
	ScheduledAt     time.Time            `json:"scheduled_at"`
	Status          entity.BookingStatus `json:"status"`
	TutorNotes      *string              `json:"tutor_notes,omitempty"`

	Payment PaymentResponse `json:"payment"`

	MeetingLink *string `json:"meeting_link,omitempty"`

	Reschedule *RescheduleResponse   `json:"reschedule,omitempty"`
	Report     *LessonReportResponse `json:"report,omitempty"`

	DeclineReason      *string    `json:"decline_reason,omitempty"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func BookingToResponse(b *entity.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:              b.ID.String(),
		StudentID:       b.StudentID.String(),
		TutorID:         b.TutorID.String(),
		Subject:         b.Subject,
		Level:           b.Level,
		DurationMinutes: b.DurationMinutes,
		Price:           b.Price,
		Currency:        b.Currency,
		ScheduledAt:     b.ScheduledAt,
		Status:          b.Status,
		TutorNotes:      b.TutorNotes,
		Payment: PaymentResponse{
			AuthType:     b.PaymentAuthType,
			Stage:        b.PaymentStage,
			IsPaid:       b.IsPaid,
			ScheduledFor: b.PaymentScheduledFor,
			CapturedAt:   b.PaymentCapturedAt,
			RetryCount:   b.PaymentRetryCount,
			LastError:    b.PaymentError,
			RefundedAt:   b.RefundedAt,
		},
		MeetingLink:        b.MeetingLink,
		DeclineReason:      b.DeclineReason,
		CancellationReason: b.CancellationReason,
		CancelledAt:        b.CancelledAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}

	if b.CancelledBy != nil {
		id := b.CancelledBy.String()
		resp.CancelledBy = &id
	}

	if b.Reschedule != nil {
		r := &RescheduleResponse{
			RequestedBy:    b.Reschedule.RequestedBy.String(),
			RequestedAt:    b.Reschedule.RequestedAt,
			NewScheduledAt: b.Reschedule.NewScheduledAt,
			Status:         b.Reschedule.Status,
			RespondedAt:    b.Reschedule.RespondedAt,
			DeclineReason:  b.Reschedule.DeclineReason,
		}
		if b.Reschedule.RespondedBy != nil {
			id := b.Reschedule.RespondedBy.String()
			r.RespondedBy = &id
		}
		resp.Reschedule = r
	}

	if b.Report != nil {
		resp.Report = &LessonReportResponse{
			TopicsCovered: b.Report.TopicsCovered,
			Homework:      b.Report.Homework,
			Notes:         b.Report.Notes,
			CompletedAt:   b.Report.CompletedAt,
		}
	}

	return resp
}
