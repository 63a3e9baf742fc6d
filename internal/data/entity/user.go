package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleParent  UserRole = "parent"
	RoleTutor   UserRole = "tutor"
	RoleAdmin   UserRole = "admin"
)

// User is the identity/role source for the booking engine: role, date of
// birth (age gates) and the parent link for underage students.
type User struct {
	BaseNoDelete
	Name         string     `db:"name"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password"`
	Role         UserRole   `db:"role"`
	DateOfBirth  *time.Time `db:"date_of_birth"`
	ParentID     *uuid.UUID `db:"parent_id"` // set on students with a managing parent
	IsActive     bool       `db:"is_active"`
}

const adultAge = 18

// IsAdult reports whether the user is 18 or older at the given instant.
// Users without a recorded date of birth are treated as adults.
func (u *User) IsAdult(now time.Time) bool {
	if u.DateOfBirth == nil {
		return true
	}
	age := now.Year() - u.DateOfBirth.Year()
	anniversary := u.DateOfBirth.AddDate(age, 0, 0)
	if anniversary.After(now) {
		age--
	}
	return age >= adultAge
}

// IsParentOf reports whether the given student is linked to this user.
func (u *User) IsParentOf(student *User) bool {
	return student != nil && student.ParentID != nil && *student.ParentID == u.ID
}
