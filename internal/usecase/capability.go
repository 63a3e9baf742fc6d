package usecase

import (
	"time"

	"tutor-booking/internal/data/entity"

	"github.com/google/uuid"
)

// Capabilities lists what a given actor may do to a given booking. Resolution
// is pure: it needs the actor, the booking, the student record (for age and
// parent links) and the current time, nothing else.
type Capabilities struct {
	CanAcceptBooking     bool // respond to a pending booking (tutor)
	CanDeclineBooking    bool
	CanApproveSuggestion bool // respond to a tutor-suggested booking
	CanDeclineSuggestion bool
	CanRequestReschedule bool
	CanCancel            bool
	CanSubmitReport      bool
	CanConfirmPayment    bool
	CanManageMeeting     bool // manual meeting-link regeneration
}

// studentSide reports whether the actor acts for the student on approvals:
// the student themselves when they are an adult, else their parent. Admins
// are handled separately.
func studentSide(actor *entity.User, booking *entity.Booking, student *entity.User, now time.Time) bool {
	if actor.ID == booking.StudentID {
		return actor.IsAdult(now)
	}
	return actor.IsParentOf(student)
}

// ResolveCapabilities computes the actor's permissions on the booking.
// Time-window rules (the 24h tutor reschedule cutoff, the 24h parent/student
// cancellation window) are owned by the lifecycle manager so its rejections
// can report the exact remaining hours.
func ResolveCapabilities(actor *entity.User, booking *entity.Booking, student *entity.User, now time.Time) Capabilities {
	if actor == nil || booking == nil {
		return Capabilities{}
	}

	isAdmin := actor.Role == entity.RoleAdmin
	isTutor := actor.ID == booking.TutorID
	isStudent := actor.ID == booking.StudentID
	isParent := actor.IsParentOf(student)
	onStudentSide := studentSide(actor, booking, student, now)

	return Capabilities{
		CanAcceptBooking:  isTutor,
		CanDeclineBooking: isTutor,

		CanApproveSuggestion: isAdmin || onStudentSide,
		CanDeclineSuggestion: isAdmin || isParent,

		CanRequestReschedule: isAdmin || isTutor || isParent || (isStudent && actor.IsAdult(now)),

		CanCancel: isAdmin || isTutor || isParent || isStudent,

		CanSubmitReport: isTutor,

		CanConfirmPayment: isAdmin || onStudentSide,

		CanManageMeeting: isAdmin || isTutor || isStudent || isParent,
	}
}

// CanRespondReschedule reports whether the actor may approve or decline the
// pending reschedule request: only the other party to the requester (or an
// admin), never the requester themselves.
func CanRespondReschedule(actor *entity.User, booking *entity.Booking, student *entity.User, requesterID uuid.UUID, now time.Time) bool {
	if actor == nil || booking == nil {
		return false
	}
	if actor.ID == requesterID {
		return false
	}
	if actor.Role == entity.RoleAdmin {
		return true
	}

	requesterIsTutor := requesterID == booking.TutorID
	if requesterIsTutor {
		// Student side responds.
		return studentSide(actor, booking, student, now)
	}

	// Student side requested; the tutor responds.
	return actor.ID == booking.TutorID
}
