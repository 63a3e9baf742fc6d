package adaptor

import (
	"net/http"

	"tutor-booking/internal/usecase"
	"tutor-booking/pkg/utils"

	"go.uber.org/zap"
)

// CronHandler exposes the scheduler passes to an external cron caller. The
// routes are guarded by the shared-secret middleware.
type CronHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewCronHandler(service usecase.PaymentService, log *zap.Logger) *CronHandler {
	return &CronHandler{
		service: service,
		log:     log.With(zap.String("handler", "cron")),
	}
}

// ProcessPayments handles POST /cron/process-payments
func (h *CronHandler) ProcessPayments(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ProcessScheduledPayments(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "process payments")
		return
	}

	utils.ResponseSuccess(w, "success", summary)
}

// RetryFailedPayments handles POST /cron/retry-failed-payments
func (h *CronHandler) RetryFailedPayments(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RetryFailedPayments(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "retry failed payments")
		return
	}

	utils.ResponseSuccess(w, "success", summary)
}
