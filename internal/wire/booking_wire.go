package wire

import (
	"tutor-booking/internal/adaptor"
	"tutor-booking/internal/data/repository"
	"tutor-booking/pkg/middleware"
	"tutor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// All booking routes require an authenticated principal; per-actor rules
	// (tutor vs student vs parent vs admin) live in the capability resolver.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)

		r.Route("/api/bookings", func(r chi.Router) {
			r.Post("/", bookingHandler.CreateBooking)
			r.Post("/suggest", bookingHandler.SuggestLesson)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookingHandler.GetBooking)
				r.Post("/approve-suggestion", bookingHandler.ApproveSuggestion)
				r.Post("/decline-suggestion", bookingHandler.DeclineSuggestion)
				r.Post("/accept", bookingHandler.AcceptBooking)
				r.Post("/decline", bookingHandler.DeclineBooking)
				r.Post("/reschedule", bookingHandler.RequestReschedule)
				r.Post("/reschedule/approve", bookingHandler.ApproveReschedule)
				r.Post("/reschedule/decline", bookingHandler.DeclineReschedule)
				r.Post("/cancel", bookingHandler.CancelBooking)
				r.Post("/report", bookingHandler.SubmitReport)
				r.Post("/confirm-payment", bookingHandler.ConfirmPayment)
				r.Post("/generate-meeting", bookingHandler.GenerateMeeting)
			})
		})
	})

	// Admin mirror of the read/cancel operations; the capability resolver
	// already grants admins full rights, the extra guard keeps the surface
	// explicit.
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))
		r.Use(middleware.Admin(repo.User, log))

		r.Get("/{id}", bookingHandler.GetBooking)
		r.Post("/{id}/cancel", bookingHandler.CancelBooking)
	})
}
