package scheduler

import (
	"context"
	"time"

	"tutor-booking/internal/usecase"

	"go.uber.org/zap"
)

// Scheduler drives the payment service on timers so a deployment without an
// external cron still advances payment stages. The /cron endpoints call the
// same service methods, so both entry points stay idempotent together.
type Scheduler struct {
	payments        usecase.PaymentService
	log             *zap.Logger
	captureInterval time.Duration
	retryInterval   time.Duration
	stopChan        chan struct{}
}

func NewScheduler(payments usecase.PaymentService, captureInterval, retryInterval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		payments:        payments,
		log:             log.With(zap.String("component", "scheduler")),
		captureInterval: captureInterval,
		retryInterval:   retryInterval,
		stopChan:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting background scheduler",
		zap.Duration("capture_interval", s.captureInterval),
		zap.Duration("retry_interval", s.retryInterval),
	)

	go s.runCaptureTask(ctx)
	go s.runRetryTask(ctx)
}

func (s *Scheduler) Stop() {
	s.log.Info("Stopping background scheduler")
	close(s.stopChan)
}

func (s *Scheduler) runCaptureTask(ctx context.Context) {
	s.processPayments(ctx)

	ticker := time.NewTicker(s.captureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPayments(ctx)
		case <-s.stopChan:
			s.log.Info("Capture task stopped")
			return
		case <-ctx.Done():
			s.log.Info("Capture task cancelled")
			return
		}
	}
}

func (s *Scheduler) runRetryTask(ctx context.Context) {
	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.retryPayments(ctx)
		case <-s.stopChan:
			s.log.Info("Retry task stopped")
			return
		case <-ctx.Done():
			s.log.Info("Retry task cancelled")
			return
		}
	}
}

func (s *Scheduler) processPayments(ctx context.Context) {
	summary, err := s.payments.ProcessScheduledPayments(ctx)
	if err != nil {
		s.log.Error("Scheduled payment pass failed", zap.Error(err))
		return
	}

	if summary.AuthsCreated > 0 || summary.Captured > 0 || summary.Failed > 0 {
		s.log.Info("Scheduled payment pass finished",
			zap.Int("auths_created", summary.AuthsCreated),
			zap.Int("captured", summary.Captured),
			zap.Int("failed", summary.Failed),
		)
	}
}

func (s *Scheduler) retryPayments(ctx context.Context) {
	summary, err := s.payments.RetryFailedPayments(ctx)
	if err != nil {
		s.log.Error("Payment retry pass failed", zap.Error(err))
		return
	}

	if summary.AuthsCreated > 0 || summary.Captured > 0 || summary.Failed > 0 {
		s.log.Info("Payment retry pass finished",
			zap.Int("auths_created", summary.AuthsCreated),
			zap.Int("captured", summary.Captured),
			zap.Int("failed", summary.Failed),
		)
	}
}
