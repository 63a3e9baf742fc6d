package adaptor

import (
	"encoding/json"
	"io"
	"net/http"

	"tutor-booking/internal/dto/request"
	"tutor-booking/internal/usecase"
	"tutor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings (protected)
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actorID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "success", booking)
}

// SuggestLesson handles POST /api/bookings/suggest (protected, tutors)
func (h *BookingHandler) SuggestLesson(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.SuggestLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.SuggestLesson(r.Context(), actorID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "suggest lesson")
		return
	}

	utils.ResponseCreated(w, "success", booking)
}

// GetBooking handles GET /api/bookings/{id} (protected)
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// GetUserBookings handles GET /api/user/bookings (protected)
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	bookings, err := h.service.ListUserBookings(r.Context(), actorID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// ApproveSuggestion handles POST /api/bookings/{id}/approve-suggestion
func (h *BookingHandler) ApproveSuggestion(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.ApproveSuggestion(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "approve suggestion")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// DeclineSuggestion handles POST /api/bookings/{id}/decline-suggestion
func (h *BookingHandler) DeclineSuggestion(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	if err := h.service.DeclineSuggestion(r.Context(), actorID, bookingID, h.reason(r)); err != nil {
		handleServiceError(w, h.log, err, "decline suggestion")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// AcceptBooking handles POST /api/bookings/{id}/accept (protected, tutor)
func (h *BookingHandler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.AcceptBooking(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "accept booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// DeclineBooking handles POST /api/bookings/{id}/decline (protected, tutor)
func (h *BookingHandler) DeclineBooking(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	if err := h.service.DeclineBooking(r.Context(), actorID, bookingID, h.reason(r)); err != nil {
		handleServiceError(w, h.log, err, "decline booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// RequestReschedule handles POST /api/bookings/{id}/reschedule
func (h *BookingHandler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	var req request.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.RequestReschedule(r.Context(), actorID, bookingID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "request reschedule")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ApproveReschedule handles POST /api/bookings/{id}/reschedule/approve
func (h *BookingHandler) ApproveReschedule(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.ApproveReschedule(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "approve reschedule")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// DeclineReschedule handles POST /api/bookings/{id}/reschedule/decline
func (h *BookingHandler) DeclineReschedule(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	if err := h.service.DeclineReschedule(r.Context(), actorID, bookingID, h.reason(r)); err != nil {
		handleServiceError(w, h.log, err, "decline reschedule")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelBooking(r.Context(), actorID, bookingID, h.reason(r)); err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// SubmitReport handles POST /api/bookings/{id}/report (protected, tutor)
func (h *BookingHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	var req request.LessonReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	booking, err := h.service.SubmitLessonReport(r.Context(), actorID, bookingID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "submit report")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ConfirmPayment handles POST /api/bookings/{id}/confirm-payment
func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.ConfirmPayment(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "confirm payment")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// GenerateMeeting handles POST /api/bookings/{id}/generate-meeting
func (h *BookingHandler) GenerateMeeting(w http.ResponseWriter, r *http.Request) {
	actorID, bookingID, ok := h.identifiers(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GenerateMeeting(r.Context(), actorID, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "generate meeting")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// identifiers pulls the authenticated user and the {id} path param.
func (h *BookingHandler) identifiers(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	bookingID, err := utils.ParseUUIDString(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return actorID, bookingID, true
}

// reason reads the optional {"reason": "..."} body; an empty or missing body
// is fine, the services enforce when a reason is mandatory.
func (h *BookingHandler) reason(r *http.Request) string {
	var req request.ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return ""
	}
	return req.Reason
}
