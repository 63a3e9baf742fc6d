package wire

import (
	"tutor-booking/internal/adaptor"
	"tutor-booking/pkg/middleware"
	"tutor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireCron(
	r chi.Router,
	cronHandler *adaptor.CronHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(config.Cron.Secret, log))

		r.Post("/process-payments", cronHandler.ProcessPayments)
		r.Post("/retry-failed-payments", cronHandler.RetryFailedPayments)
	})
}
