package entity

import "github.com/google/uuid"

// TutorRate is a row in the tutor's fixed rate table, used to derive the
// price of tutor-suggested lessons.
type TutorRate struct {
	BaseSimple
	TutorID     uuid.UUID `db:"tutor_id"`
	Subject     string    `db:"subject"`
	Level       string    `db:"level"`
	RatePerHour int64     `db:"rate_per_hour"` // minor currency units
	Currency    string    `db:"currency"`
	IsActive    bool      `db:"is_active"`
}
