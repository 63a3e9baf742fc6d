package wire

import (
	"tutor-booking/internal/adaptor"
	"tutor-booking/internal/data/repository"
	"tutor-booking/pkg/middleware"
	"tutor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAuth(
	r chi.Router,
	authHandler *adaptor.AuthHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Post("/api/login", authHandler.Login)

	r.With(middleware.AuthSession(repo.Session, repo.User, log)).
		Post("/api/logout", authHandler.Logout)
}
