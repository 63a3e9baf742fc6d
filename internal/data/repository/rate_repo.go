package repository

import (
	"context"
	"fmt"

	"tutor-booking/internal/data/entity"
	"tutor-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TutorRateRepository interface {
	FindRate(ctx context.Context, tutorID uuid.UUID, subject, level string) (*entity.TutorRate, error)
	FindByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.TutorRate, error)
}

type tutorRateRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTutorRateRepository(db database.PgxIface, log *zap.Logger) TutorRateRepository {
	return &tutorRateRepository{
		db:  db,
		log: log.With(zap.String("repository", "tutor_rate")),
	}
}

func (r *tutorRateRepository) FindRate(ctx context.Context, tutorID uuid.UUID, subject, level string) (*entity.TutorRate, error) {
	query := `
		SELECT id, tutor_id, subject, level, rate_per_hour, currency, is_active, created_at
		FROM tutor_rates
		WHERE tutor_id = $1 AND subject = $2 AND level = $3 AND is_active = TRUE
	`

	var rate entity.TutorRate
	err := r.db.QueryRow(ctx, query, tutorID, subject, level).Scan(
		&rate.ID,
		&rate.TutorID,
		&rate.Subject,
		&rate.Level,
		&rate.RatePerHour,
		&rate.Currency,
		&rate.IsActive,
		&rate.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find tutor rate",
			zap.Error(err),
			zap.String("tutor_id", tutorID.String()),
			zap.String("subject", subject),
		)
		return nil, fmt.Errorf("find rate for tutor %s: %w", tutorID.String(), err)
	}

	return &rate, nil
}

func (r *tutorRateRepository) FindByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.TutorRate, error) {
	query := `
		SELECT id, tutor_id, subject, level, rate_per_hour, currency, is_active, created_at
		FROM tutor_rates
		WHERE tutor_id = $1 AND is_active = TRUE
		ORDER BY subject, level
	`

	rows, err := r.db.Query(ctx, query, tutorID)
	if err != nil {
		r.log.Error("Failed to find tutor rates",
			zap.Error(err),
			zap.String("tutor_id", tutorID.String()),
		)
		return nil, fmt.Errorf("find rates for tutor %s: %w", tutorID.String(), err)
	}
	defer rows.Close()

	var rates []*entity.TutorRate
	for rows.Next() {
		var rate entity.TutorRate
		err := rows.Scan(
			&rate.ID,
			&rate.TutorID,
			&rate.Subject,
			&rate.Level,
			&rate.RatePerHour,
			&rate.Currency,
			&rate.IsActive,
			&rate.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tutor rate row: %w", err)
		}
		rates = append(rates, &rate)
	}

	return rates, rows.Err()
}
