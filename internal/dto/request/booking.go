package request

import (
	"time"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	TutorID         uuid.UUID  `json:"tutor_id" validate:"required"`
	StudentID       *uuid.UUID `json:"student_id,omitempty"` // parents book on behalf of their child
	Subject         string     `json:"subject" validate:"required,min=2,max=100"`
	Level           string     `json:"level" validate:"required,min=1,max=50"`
	ScheduledAt     time.Time  `json:"scheduled_at" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=15,max=480"`
	Price           int64      `json:"price" validate:"required,min=1"`
	Currency        string     `json:"currency" validate:"required,len=3"`
}

type SuggestLessonRequest struct {
	StudentID       uuid.UUID `json:"student_id" validate:"required"`
	Subject         string    `json:"subject" validate:"required,min=2,max=100"`
	Level           string    `json:"level" validate:"required,min=1,max=50"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=15,max=480"`
	TutorNotes      *string   `json:"tutor_notes,omitempty" validate:"omitempty,max=1000"`
}

type RescheduleRequest struct {
	NewScheduledAt time.Time `json:"new_scheduled_at" validate:"required"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type LessonReportRequest struct {
	TopicsCovered string  `json:"topics_covered" validate:"required,min=3,max=2000"`
	Homework      *string `json:"homework,omitempty" validate:"omitempty,max=2000"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
