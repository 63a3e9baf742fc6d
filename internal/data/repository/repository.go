package repository

import (
	"tutor-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User      UserRepository
	Session   SessionRepository
	TutorRate TutorRateRepository
	Booking   BookingRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:      NewUserRepository(db, log),
		Session:   NewSessionRepository(db, log),
		TutorRate: NewTutorRateRepository(db, log),
		Booking:   NewBookingRepository(db, log),
	}
}
