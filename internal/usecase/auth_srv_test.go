package usecase

import (
	"context"
	"testing"
	"time"

	"tutor-booking/internal/dto/request"
	"tutor-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) authService() AuthService {
	f.config.Auth = utils.AuthConfig{SessionExpiryHours: 24}
	return NewAuthService(f.repo, f.config, zap.NewNop(), fixedClock(testNow))
}

func TestLogin(t *testing.T) {
	f := newFixture()
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	f.student.PasswordHash = hash
	svc := f.authService()

	resp, err := svc.Login(context.Background(), &request.LoginRequest{
		Email:    "student@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	assert.Equal(t, f.student.ID.String(), resp.UserID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, testNow.Add(24*time.Hour), resp.ExpiresAt)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	f.student.PasswordHash = hash
	svc := f.authService()

	_, err = svc.Login(context.Background(), &request.LoginRequest{
		Email:    "student@example.com",
		Password: "wrong-horse",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture()
	svc := f.authService()

	_, err := svc.Login(context.Background(), &request.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	assert.ErrorIs(t, err, ErrForbidden, "unknown email and bad password are indistinguishable")
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture()
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	f.student.PasswordHash = hash
	f.student.IsActive = false
	svc := f.authService()

	_, err = svc.Login(context.Background(), &request.LoginRequest{
		Email:    "student@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLogout(t *testing.T) {
	f := newFixture()
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	f.student.PasswordHash = hash
	svc := f.authService()

	resp, err := svc.Login(context.Background(), &request.LoginRequest{
		Email:    "student@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.Token))

	session, err := f.repo.Session.FindValidSession(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Nil(t, session)
}
