package wire

import (
	"net/http"

	"tutor-booking/internal/adaptor"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"
	"tutor-booking/internal/usecase"
	"tutor-booking/pkg/middleware"
	"tutor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds the service layer, handlers and router.
func Wiring(
	repo *repository.Repository,
	payments gateway.PaymentGateway,
	meetings gateway.MeetingProvider,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, payments, meetings, config, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, repo, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	wireAuth(r, handler.Auth, repo, config, logger)
	wireBooking(r, handler.Booking, repo, config, logger)
	wireCron(r, handler.Cron, config, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
