package adaptor

import (
	"errors"
	"net/http"

	"tutor-booking/internal/usecase"
	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Auth    *AuthHandler
	Booking *BookingHandler
	Cron    *CronHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		Booking: NewBookingHandler(service.Booking, log),
		Cron:    NewCronHandler(service.Payment, log),
	}
}

// handleServiceError maps the service error taxonomy onto HTTP responses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	msg := err.Error()

	switch {
	case errors.Is(err, usecase.ErrValidation):
		log.Warn(operation+" rejected", zap.Error(err))
		utils.ResponseBadRequest(w, msg, nil)

	case errors.Is(err, usecase.ErrForbidden):
		log.Warn(operation+" forbidden", zap.Error(err))
		utils.ResponseForbidden(w, msg)

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" not found", zap.Error(err))
		utils.ResponseNotFound(w, msg)

	case errors.Is(err, usecase.ErrConflict):
		log.Warn(operation+" conflict", zap.Error(err))
		utils.ResponseConflict(w, msg)

	case errors.Is(err, usecase.ErrGateway):
		log.Error(operation+" upstream failure", zap.Error(err))
		utils.ResponseBadGateway(w, msg)

	default:
		log.Error(operation+" failed", zap.Error(err))
		utils.ResponseInternalError(w, "internal server error")
	}
}
