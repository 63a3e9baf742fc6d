package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tutor-booking/internal/data/entity"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func createReq(f *fixture, lead time.Duration) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{
		TutorID:         f.tutor.ID,
		Subject:         "Mathematics",
		Level:           "GCSE",
		ScheduledAt:     testNow.Add(lead),
		DurationMinutes: 60,
		Price:           4500,
		Currency:        "usd",
	}
}

func TestCreateBooking_DeferredAuth(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	resp, err := svc.CreateBooking(context.Background(), f.student.ID, createReq(f, 10*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusPending, resp.Status)
	assert.Equal(t, entity.PaymentDeferredAuth, resp.Payment.AuthType)
	assert.Equal(t, entity.PaymentStageAuthScheduled, resp.Payment.Stage)
	require.NotNil(t, resp.Payment.ScheduledFor)
	assert.Equal(t, testNow.Add(10*24*time.Hour).Add(-24*time.Hour), *resp.Payment.ScheduledFor)

	// No gateway traffic yet: the authorization waits for the 7-day window.
	assert.Empty(t, f.gateway.calls)
}

func TestCreateBooking_ImmediateAuthPlacesHold(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	resp, err := svc.CreateBooking(context.Background(), f.student.ID, createReq(f, 48*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentImmediateAuth, resp.Payment.AuthType)

	auths := f.gateway.callsFor("auth")
	require.Len(t, auths, 1)
	assert.Equal(t, int64(4500), auths[0].amount)

	stored := f.bookings.stored(mustUUID(t, resp.ID))
	require.NotNil(t, stored.PaymentIntentRef)
	assert.Equal(t, entity.PaymentStageAuthorized, stored.PaymentStage)
	assert.False(t, stored.IsPaid, "a hold is not a capture")
}

func TestCreateBooking_ImmediateAuthFailureDoesNotFailCreation(t *testing.T) {
	f := newFixture()
	f.gateway.authErr = fmt.Errorf("card declined")
	svc := f.bookingService()

	resp, err := svc.CreateBooking(context.Background(), f.student.ID, createReq(f, 48*time.Hour))
	require.NoError(t, err, "gateway failure must not fail booking creation")

	stored := f.bookings.stored(mustUUID(t, resp.ID))
	require.NotNil(t, stored.PaymentError)
	assert.Equal(t, entity.PaymentStageFailed, stored.PaymentStage)
	assert.Equal(t, 1, stored.PaymentRetryCount)
	require.NotNil(t, stored.PaymentNextRetryAt)
}

func TestCreateBooking_ImmediateCharge(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	resp, err := svc.CreateBooking(context.Background(), f.student.ID, createReq(f, 6*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentImmediateCharge, resp.Payment.AuthType)
	assert.Nil(t, resp.Payment.ScheduledFor, "immediate_charge has no pre-planned moment at creation")
	assert.Empty(t, f.gateway.calls)
}

func TestCreateBooking_ParentBooksForChild(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	req := createReq(f, 48*time.Hour)
	req.StudentID = &f.minor.ID

	resp, err := svc.CreateBooking(context.Background(), f.parent.ID, req)
	require.NoError(t, err)
	assert.Equal(t, f.minor.ID.String(), resp.StudentID)
}

func TestCreateBooking_UnrelatedActorForbidden(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	req := createReq(f, 48*time.Hour)
	req.StudentID = &f.minor.ID

	_, err := svc.CreateBooking(context.Background(), f.other.ID, req)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateBooking_PastTimeRejected(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	_, err := svc.CreateBooking(context.Background(), f.student.ID, createReq(f, -time.Hour))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSuggestLesson(t *testing.T) {
	f := newFixture()
	// A prior booking between the pair is required for suggestions.
	f.add(f.newBooking(f.student, entity.BookingStatusCompleted, -30*24*time.Hour))
	f.rates.rates = append(f.rates.rates, &entity.TutorRate{
		TutorID: f.tutor.ID, Subject: "Mathematics", Level: "GCSE",
		RatePerHour: 6000, Currency: "usd", IsActive: true,
	})
	svc := f.bookingService()

	resp, err := svc.SuggestLesson(context.Background(), f.tutor.ID, &request.SuggestLessonRequest{
		StudentID:       f.student.ID,
		Subject:         "Mathematics",
		Level:           "GCSE",
		ScheduledAt:     testNow.Add(72 * time.Hour),
		DurationMinutes: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusTutorSuggested, resp.Status)
	assert.Equal(t, int64(9000), resp.Price, "90 minutes at 6000/hour")
}

func TestSuggestLesson_RequiresPriorBooking(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	_, err := svc.SuggestLesson(context.Background(), f.tutor.ID, &request.SuggestLessonRequest{
		StudentID:       f.student.ID,
		Subject:         "Mathematics",
		Level:           "GCSE",
		ScheduledAt:     testNow.Add(72 * time.Hour),
		DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSuggestLesson_NonTutorForbidden(t *testing.T) {
	f := newFixture()
	svc := f.bookingService()

	_, err := svc.SuggestLesson(context.Background(), f.student.ID, &request.SuggestLessonRequest{
		StudentID:       f.other.ID,
		Subject:         "Mathematics",
		Level:           "GCSE",
		ScheduledAt:     testNow.Add(72 * time.Hour),
		DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestApproveSuggestion_ParentOfMinor(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.minor, entity.BookingStatusTutorSuggested, 48*time.Hour))
	svc := f.bookingService()

	resp, err := svc.ApproveSuggestion(context.Background(), f.parent.ID, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusPending, resp.Status)
	// 48h lead at approval time: immediate_auth with a synchronous hold.
	assert.Equal(t, entity.PaymentImmediateAuth, resp.Payment.AuthType)
	assert.Len(t, f.gateway.callsFor("auth"), 1)
}

func TestApproveSuggestion_MinorForbidden(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.minor, entity.BookingStatusTutorSuggested, 48*time.Hour))
	svc := f.bookingService()

	_, err := svc.ApproveSuggestion(context.Background(), f.minor.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeclineSuggestion_AdultStudentForbidden(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusTutorSuggested, 48*time.Hour))
	svc := f.bookingService()

	err := svc.DeclineSuggestion(context.Background(), f.student.ID, booking.ID, "not interested")
	assert.ErrorIs(t, err, ErrForbidden, "declining a suggestion stays with parents and admins")
}

func TestAcceptBooking(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 48*time.Hour))
	svc := f.bookingService()

	resp, err := svc.AcceptBooking(context.Background(), f.tutor.ID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusAccepted, resp.Status)
}

func TestAcceptBooking_ImmediateChargeBecomesDue(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 6*time.Hour))
	svc := f.bookingService()

	resp, err := svc.AcceptBooking(context.Background(), f.tutor.ID, booking.ID)
	require.NoError(t, err)

	require.NotNil(t, resp.Payment.ScheduledFor)
	assert.Equal(t, testNow, *resp.Payment.ScheduledFor, "acceptance makes the charge due for the next pass")
}

func TestAcceptBooking_OnlyTutor(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 48*time.Hour))
	svc := f.bookingService()

	_, err := svc.AcceptBooking(context.Background(), f.student.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AcceptBooking(context.Background(), f.admin.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden, "even admins do not accept on behalf of tutors")
}

func TestAcceptBooking_WrongStatus(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusCancelled, 48*time.Hour))
	svc := f.bookingService()

	_, err := svc.AcceptBooking(context.Background(), f.tutor.ID, booking.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeclineBooking_StoresReason(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 48*time.Hour))
	svc := f.bookingService()

	err := svc.DeclineBooking(context.Background(), f.tutor.ID, booking.ID, "schedule clash")
	require.NoError(t, err)

	stored := f.bookings.stored(booking.ID)
	assert.Equal(t, entity.BookingStatusDeclined, stored.Status)
	require.NotNil(t, stored.DeclineReason)
	assert.Equal(t, "schedule clash", *stored.DeclineReason)
}

func TestConfirmPayment_ChargesAndConfirms(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusPending, 6*time.Hour)
	booking.Status = entity.BookingStatusAccepted
	f.add(booking)
	svc := f.bookingService()

	resp, err := svc.ConfirmPayment(context.Background(), f.student.ID, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, resp.Status)
	assert.True(t, resp.Payment.IsPaid)
	assert.Len(t, f.gateway.callsFor("charge"), 1)
	assert.NotNil(t, resp.MeetingLink, "confirmation triggers meeting creation")
}

func TestConfirmPayment_AlreadyPaid(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusPending, 6*time.Hour)
	booking.Status = entity.BookingStatusAccepted
	booking.IsPaid = true
	f.add(booking)
	svc := f.bookingService()

	_, err := svc.ConfirmPayment(context.Background(), f.student.ID, booking.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConfirmPayment_MinorForbidden(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.minor, entity.BookingStatusPending, 6*time.Hour)
	booking.Status = entity.BookingStatusAccepted
	f.add(booking)
	svc := f.bookingService()

	_, err := svc.ConfirmPayment(context.Background(), f.minor.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRequestReschedule(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour))
	svc := f.bookingService()

	resp, err := svc.RequestReschedule(context.Background(), f.student.ID, booking.ID, &request.RescheduleRequest{
		NewScheduledAt: testNow.Add(96 * time.Hour),
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Reschedule)
	assert.Equal(t, entity.RescheduleStatusPending, resp.Reschedule.Status)
	assert.Equal(t, booking.ScheduledAt, resp.ScheduledAt, "the lesson time does not move until approval")
}

func TestRequestReschedule_PendingRequestBlocksAnother(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	booking.Reschedule = &entity.RescheduleRequest{
		RequestedBy:    f.student.ID,
		RequestedAt:    testNow.Add(-time.Hour),
		NewScheduledAt: testNow.Add(96 * time.Hour),
		Status:         entity.RescheduleStatusPending,
	}
	f.add(booking)
	svc := f.bookingService()

	_, err := svc.RequestReschedule(context.Background(), f.tutor.ID, booking.ID, &request.RescheduleRequest{
		NewScheduledAt: testNow.Add(120 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRequestReschedule_TutorWithin24hForbidden(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 12*time.Hour))
	svc := f.bookingService()

	_, err := svc.RequestReschedule(context.Background(), f.tutor.ID, booking.ID, &request.RescheduleRequest{
		NewScheduledAt: testNow.Add(96 * time.Hour),
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "12.0 hours remain")
}

func TestApproveReschedule_MovesLessonAndCapture(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	newTime := testNow.Add(120 * time.Hour)
	booking.Reschedule = &entity.RescheduleRequest{
		RequestedBy:    f.tutor.ID,
		RequestedAt:    testNow.Add(-time.Hour),
		NewScheduledAt: newTime,
		Status:         entity.RescheduleStatusPending,
	}
	f.add(booking)
	svc := f.bookingService()

	resp, err := svc.ApproveReschedule(context.Background(), f.student.ID, booking.ID)
	require.NoError(t, err)

	assert.Equal(t, newTime, resp.ScheduledAt)
	assert.Equal(t, entity.RescheduleStatusApproved, resp.Reschedule.Status)
	require.NotNil(t, resp.Payment.ScheduledFor)
	assert.Equal(t, newTime.Add(-24*time.Hour), *resp.Payment.ScheduledFor,
		"capture moment follows the lesson")
	assert.Equal(t, entity.PaymentImmediateAuth, resp.Payment.AuthType,
		"the auth type never changes after creation")
}

func TestApproveReschedule_RequesterCannotRespond(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	booking.Reschedule = &entity.RescheduleRequest{
		RequestedBy:    f.tutor.ID,
		RequestedAt:    testNow.Add(-time.Hour),
		NewScheduledAt: testNow.Add(120 * time.Hour),
		Status:         entity.RescheduleStatusPending,
	}
	f.add(booking)
	svc := f.bookingService()

	_, err := svc.ApproveReschedule(context.Background(), f.tutor.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeclineReschedule_KeepsOriginalTime(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	original := booking.ScheduledAt
	booking.Reschedule = &entity.RescheduleRequest{
		RequestedBy:    f.student.ID,
		RequestedAt:    testNow.Add(-time.Hour),
		NewScheduledAt: testNow.Add(120 * time.Hour),
		Status:         entity.RescheduleStatusPending,
	}
	f.add(booking)
	svc := f.bookingService()

	err := svc.DeclineReschedule(context.Background(), f.tutor.ID, booking.ID, "busy then")
	require.NoError(t, err)

	stored := f.bookings.stored(booking.ID)
	assert.Equal(t, original, stored.ScheduledAt)
	assert.Equal(t, entity.RescheduleStatusDeclined, stored.Reschedule.Status)

	// With the request resolved, a new one may be filed.
	_, err = svc.RequestReschedule(context.Background(), f.student.ID, booking.ID, &request.RescheduleRequest{
		NewScheduledAt: testNow.Add(96 * time.Hour),
	})
	assert.NoError(t, err)
}

func TestCancelBooking_StudentWithin24hForbidden(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 10*time.Hour))
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "changed my mind")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "10.0 hours remain")
}

func TestCancelBooking_TutorInsideWindowAllowedWithReason(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 10*time.Hour))
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.tutor.ID, booking.ID, "sudden illness, cannot teach")
	require.NoError(t, err)

	stored := f.bookings.stored(booking.ID)
	assert.Equal(t, entity.BookingStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, f.tutor.ID, *stored.CancelledBy)
}

func TestCancelBooking_TutorShortReasonRejected(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 48*time.Hour))
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.tutor.ID, booking.ID, "sick")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelBooking_RefundsCapturedPayment(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	ref := "pi_captured_ref"
	captured := testNow.Add(-time.Hour)
	booking.Status = entity.BookingStatusConfirmed
	booking.IsPaid = true
	booking.PaymentIntentRef = &ref
	booking.PaymentCapturedAt = &captured
	booking.PaymentStage = entity.PaymentStageCaptured
	meetingID := "meet_existing"
	link := "https://meet.example/meet_existing"
	booking.MeetingID = &meetingID
	booking.MeetingLink = &link
	f.add(booking)
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "family emergency")
	require.NoError(t, err)

	refunds := f.gateway.callsFor("refund")
	require.Len(t, refunds, 1)
	assert.Equal(t, ref, refunds[0].ref)

	stored := f.bookings.stored(booking.ID)
	assert.Equal(t, entity.PaymentStageRefunded, stored.PaymentStage)
	assert.NotNil(t, stored.RefundRef)
	assert.Nil(t, stored.MeetingLink, "cancellation clears the meeting link")
	assert.Contains(t, f.meetings.deleted, meetingID)
}

func TestCancelBooking_ReleasesAuthorization(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	ref := "pi_hold_ref"
	booking.PaymentIntentRef = &ref
	booking.PaymentStage = entity.PaymentStageAuthorized
	f.add(booking)
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "plans changed")
	require.NoError(t, err)

	require.Len(t, f.gateway.callsFor("cancel"), 1)
	assert.Empty(t, f.gateway.callsFor("refund"), "a hold is released, not refunded")
	assert.Equal(t, entity.PaymentStageReleased, f.bookings.stored(booking.ID).PaymentStage)
}

func TestCancelBooking_LegacyRefSkipsGateway(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	legacy := "legacy-token-123"
	booking.PaymentIntentRef = &legacy
	booking.PaymentStage = entity.PaymentStageAuthorized
	f.add(booking)
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "plans changed")
	require.NoError(t, err)

	assert.Empty(t, f.gateway.calls, "legacy references never reach the gateway")
	assert.Equal(t, entity.BookingStatusCancelled, f.bookings.stored(booking.ID).Status)
}

func TestCancelBooking_RefundFailureAbortsCancellation(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour)
	ref := "pi_captured_ref"
	captured := testNow.Add(-time.Hour)
	booking.Status = entity.BookingStatusConfirmed
	booking.IsPaid = true
	booking.PaymentIntentRef = &ref
	booking.PaymentCapturedAt = &captured
	booking.PaymentStage = entity.PaymentStageCaptured
	f.add(booking)
	f.gateway.refundErr = fmt.Errorf("gateway down")
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "family emergency")
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, entity.BookingStatusConfirmed, f.bookings.stored(booking.ID).Status,
		"the cancellation is retryable with the money still tracked")
}

func TestCancelBooking_StaleWriteIsConflict(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusAccepted, 72*time.Hour))
	f.bookings.updateHook = func(b *entity.Booking, expected entity.BookingStatus) error {
		return fmt.Errorf("update: %w", repository.ErrStaleBooking)
	}
	svc := f.bookingService()

	err := svc.CancelBooking(context.Background(), f.student.ID, booking.ID, "changed plans")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSubmitLessonReport(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, -time.Hour)
	booking.Status = entity.BookingStatusConfirmed
	f.add(booking)
	svc := f.bookingService()

	homework := "Exercises 4-7"
	resp, err := svc.SubmitLessonReport(context.Background(), f.tutor.ID, booking.ID, &request.LessonReportRequest{
		TopicsCovered: "Quadratic equations",
		Homework:      &homework,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusCompleted, resp.Status)
	require.NotNil(t, resp.Report)
	assert.Equal(t, "Quadratic equations", resp.Report.TopicsCovered)

	// Completion is terminal: a second report is rejected.
	_, err = svc.SubmitLessonReport(context.Background(), f.tutor.ID, booking.ID, &request.LessonReportRequest{
		TopicsCovered: "Again",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSubmitLessonReport_OnlyTutor(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, -time.Hour)
	booking.Status = entity.BookingStatusConfirmed
	f.add(booking)
	svc := f.bookingService()

	_, err := svc.SubmitLessonReport(context.Background(), f.student.ID, booking.ID, &request.LessonReportRequest{
		TopicsCovered: "Quadratic equations",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetBooking_ParticipantsOnly(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 48*time.Hour))
	svc := f.bookingService()

	_, err := svc.GetBooking(context.Background(), f.student.ID, booking.ID)
	assert.NoError(t, err)

	_, err = svc.GetBooking(context.Background(), f.other.ID, booking.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetBooking(context.Background(), f.admin.ID, booking.ID)
	assert.NoError(t, err)
}

func TestGenerateMeeting_RequiresConfirmed(t *testing.T) {
	f := newFixture()
	booking := f.add(f.newBooking(f.student, entity.BookingStatusPending, 48*time.Hour))
	svc := f.bookingService()

	_, err := svc.GenerateMeeting(context.Background(), f.student.ID, booking.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGenerateMeeting_ReplacesExistingRoom(t *testing.T) {
	f := newFixture()
	booking := f.newBooking(f.student, entity.BookingStatusAccepted, 48*time.Hour)
	booking.Status = entity.BookingStatusConfirmed
	oldID := "meet_old"
	oldLink := "https://meet.example/meet_old"
	booking.MeetingID = &oldID
	booking.MeetingLink = &oldLink
	f.add(booking)
	svc := f.bookingService()

	resp, err := svc.GenerateMeeting(context.Background(), f.student.ID, booking.ID)
	require.NoError(t, err)

	require.NotNil(t, resp.MeetingLink)
	assert.NotEqual(t, oldLink, *resp.MeetingLink)
	assert.Contains(t, f.meetings.deleted, oldID, "the replaced room is cleaned up")
}
