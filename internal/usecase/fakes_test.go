package usecase

import (
	"context"
	"fmt"
	"time"

	"tutor-booking/internal/data/entity"
	"tutor-booking/internal/data/repository"
	"tutor-booking/internal/gateway"
	"tutor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fixedClock returns a Clock pinned to t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// ---------- user repository ----------

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindParentOf(ctx context.Context, studentID uuid.UUID) (*entity.User, error) {
	student := r.users[studentID]
	if student == nil || student.ParentID == nil {
		return nil, nil
	}
	return r.users[*student.ParentID], nil
}

// ---------- session repository ----------

type fakeSessionRepo struct {
	sessions map[string]*entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*entity.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.sessions[session.Token] = session
	return nil
}

func (r *fakeSessionRepo) FindValidSession(ctx context.Context, token string) (*entity.Session, error) {
	return r.sessions[token], nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

func (r *fakeSessionRepo) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	for token, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, token)
		}
	}
	return nil
}

// ---------- tutor rate repository ----------

type fakeRateRepo struct {
	rates []*entity.TutorRate
}

func (r *fakeRateRepo) FindRate(ctx context.Context, tutorID uuid.UUID, subject, level string) (*entity.TutorRate, error) {
	for _, rate := range r.rates {
		if rate.TutorID == tutorID && rate.Subject == subject && rate.Level == level && rate.IsActive {
			return rate, nil
		}
	}
	return nil, nil
}

func (r *fakeRateRepo) FindByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.TutorRate, error) {
	var out []*entity.TutorRate
	for _, rate := range r.rates {
		if rate.TutorID == tutorID && rate.IsActive {
			out = append(out, rate)
		}
	}
	return out, nil
}

// ---------- booking repository ----------

// fakeBookingRepo mimics the guarded-update semantics of the real repository:
// Update succeeds only while the stored status matches expectedStatus.
type fakeBookingRepo struct {
	bookings map[uuid.UUID]*entity.Booking
	// updateHook runs before each Update; returning an error aborts it.
	updateHook func(b *entity.Booking, expected entity.BookingStatus) error
}

func newFakeBookingRepo(bookings ...*entity.Booking) *fakeBookingRepo {
	repo := &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
	for _, b := range bookings {
		repo.bookings[b.ID] = cloneBooking(b)
	}
	return repo
}

func cloneBooking(b *entity.Booking) *entity.Booking {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Reschedule != nil {
		r := *b.Reschedule
		clone.Reschedule = &r
	}
	if b.Report != nil {
		rep := *b.Report
		clone.Report = &rep
	}
	return &clone
}

func (r *fakeBookingRepo) stored(id uuid.UUID) *entity.Booking {
	return r.bookings[id]
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return cloneBooking(r.bookings[id]), nil
}

func (r *fakeBookingRepo) FindByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole, limit, offset int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.StudentID == userID || b.TutorID == userID {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountByParticipant(ctx context.Context, userID uuid.UUID, role entity.UserRole) (int64, error) {
	var count int64
	for _, b := range r.bookings {
		if b.StudentID == userID || b.TutorID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeBookingRepo) CountByPair(ctx context.Context, tutorID, studentID uuid.UUID) (int64, error) {
	var count int64
	for _, b := range r.bookings {
		if b.TutorID == tutorID && b.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeBookingRepo) Update(ctx context.Context, booking *entity.Booking, expectedStatus entity.BookingStatus) error {
	if r.updateHook != nil {
		if err := r.updateHook(booking, expectedStatus); err != nil {
			return err
		}
	}
	stored, ok := r.bookings[booking.ID]
	if !ok || stored.Status != expectedStatus {
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), repository.ErrStaleBooking)
	}
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *fakeBookingRepo) FindDueAuthCreation(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.RequiresAuthCreation && !b.IsPaid && activeForPayment(b) &&
			!b.ScheduledAt.Add(-authWindow).After(now) && b.PaymentError == nil {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindDueCapture(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if !b.IsPaid && activeForPayment(b) && !b.RequiresAuthCreation &&
			b.PaymentScheduledFor != nil && !b.PaymentScheduledFor.After(now) &&
			b.PaymentError == nil {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindRetryablePayments(ctx context.Context, now time.Time, maxRetries, limit int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.PaymentAttempted && b.PaymentError != nil && !b.IsPaid && activeForPayment(b) &&
			b.PaymentRetryCount < maxRetries &&
			(b.PaymentNextRetryAt == nil || !b.PaymentNextRetryAt.After(now)) {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func activeForPayment(b *entity.Booking) bool {
	return b.Status == entity.BookingStatusPending || b.Status == entity.BookingStatusAccepted
}

// ---------- payment gateway ----------

type gatewayCall struct {
	op             string
	ref            string
	idempotencyKey string
	amount         int64
}

type fakePaymentGateway struct {
	calls []gatewayCall
	seq   int

	authErr    error
	captureErr error
	chargeErr  error
	cancelErr  error
	refundErr  error
}

func (g *fakePaymentGateway) callsFor(op string) []gatewayCall {
	var out []gatewayCall
	for _, c := range g.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakePaymentGateway) CreateAuthorization(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error) {
	g.seq++
	ref := fmt.Sprintf("pi_auth_%d", g.seq)
	g.calls = append(g.calls, gatewayCall{op: "auth", ref: ref, idempotencyKey: idempotencyKey, amount: amount})
	if g.authErr != nil {
		return "", g.authErr
	}
	return ref, nil
}

func (g *fakePaymentGateway) Capture(ctx context.Context, ref, idempotencyKey string) error {
	g.calls = append(g.calls, gatewayCall{op: "capture", ref: ref, idempotencyKey: idempotencyKey})
	return g.captureErr
}

func (g *fakePaymentGateway) Charge(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error) {
	g.seq++
	ref := fmt.Sprintf("pi_charge_%d", g.seq)
	g.calls = append(g.calls, gatewayCall{op: "charge", ref: ref, idempotencyKey: idempotencyKey, amount: amount})
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	return ref, nil
}

func (g *fakePaymentGateway) CancelAuthorization(ctx context.Context, ref string) error {
	g.calls = append(g.calls, gatewayCall{op: "cancel", ref: ref})
	return g.cancelErr
}

func (g *fakePaymentGateway) Refund(ctx context.Context, ref, reason string) (string, error) {
	g.seq++
	refund := fmt.Sprintf("re_%d", g.seq)
	g.calls = append(g.calls, gatewayCall{op: "refund", ref: ref})
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return refund, nil
}

// ---------- meeting provider ----------

type fakeMeetingProvider struct {
	seq          int
	failuresLeft int   // fail this many CreateMeeting calls before succeeding
	createErr    error // permanent failure when set
	deleteErr    error
	created      []string
	deleted      []string
}

func (p *fakeMeetingProvider) CreateMeeting(ctx context.Context, subject string, start, end time.Time, attendees []string) (*gateway.Meeting, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return nil, fmt.Errorf("provider unavailable")
	}
	p.seq++
	id := fmt.Sprintf("meet_%d", p.seq)
	p.created = append(p.created, id)
	return &gateway.Meeting{ID: id, JoinURL: "https://meet.example/" + id}, nil
}

func (p *fakeMeetingProvider) DeleteMeeting(ctx context.Context, meetingID string) error {
	p.deleted = append(p.deleted, meetingID)
	return p.deleteErr
}

// ---------- fixtures ----------

type fixture struct {
	repo     *repository.Repository
	bookings *fakeBookingRepo
	users    *fakeUserRepo
	rates    *fakeRateRepo
	gateway  *fakePaymentGateway
	meetings *fakeMeetingProvider
	config   *utils.Config

	tutor   *entity.User
	student *entity.User // adult
	minor   *entity.User // linked to parent
	parent  *entity.User
	admin   *entity.User
	other   *entity.User // unrelated adult student
}

func dob(age int) *time.Time {
	d := testNow.AddDate(-age, -1, 0)
	return &d
}

func newFixture(bookings ...*entity.Booking) *fixture {
	f := &fixture{
		bookings: newFakeBookingRepo(bookings...),
		gateway:  &fakePaymentGateway{},
		meetings: &fakeMeetingProvider{},
		rates:    &fakeRateRepo{},
		config: &utils.Config{
			Payment: utils.PaymentConfig{
				Currency:   "usd",
				MaxRetries: 5,
				RetryBase:  30 * time.Minute,
			},
		},
	}

	f.tutor = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Tutor",
		Email:        "tutor@example.com",
		Role:         entity.RoleTutor,
		IsActive:     true,
	}
	f.student = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Adult Student",
		Email:        "student@example.com",
		Role:         entity.RoleStudent,
		DateOfBirth:  dob(22),
		IsActive:     true,
	}
	f.parent = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Parent",
		Email:        "parent@example.com",
		Role:         entity.RoleParent,
		DateOfBirth:  dob(45),
		IsActive:     true,
	}
	f.minor = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Minor Student",
		Email:        "minor@example.com",
		Role:         entity.RoleStudent,
		DateOfBirth:  dob(14),
		ParentID:     &f.parent.ID,
		IsActive:     true,
	}
	f.admin = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Admin",
		Email:        "admin@example.com",
		Role:         entity.RoleAdmin,
		IsActive:     true,
	}
	f.other = &entity.User{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		Name:         "Other Student",
		Email:        "other@example.com",
		Role:         entity.RoleStudent,
		DateOfBirth:  dob(30),
		IsActive:     true,
	}

	f.users = newFakeUserRepo(f.tutor, f.student, f.parent, f.minor, f.admin, f.other)

	f.repo = &repository.Repository{
		User:      f.users,
		Session:   newFakeSessionRepo(),
		TutorRate: f.rates,
		Booking:   f.bookings,
	}

	return f
}

func (f *fixture) bookingService() BookingService {
	return NewBookingService(f.repo, f.gateway, f.meetingService(), f.config, zap.NewNop(), fixedClock(testNow))
}

func (f *fixture) paymentService() PaymentService {
	return NewPaymentService(f.repo, f.gateway, f.meetingService(), f.config, zap.NewNop(), fixedClock(testNow))
}

func (f *fixture) meetingService() MeetingService {
	return &meetingService{
		repo:        f.repo,
		provider:    f.meetings,
		log:         zap.NewNop(),
		now:         fixedClock(testNow),
		backoffBase: time.Millisecond,
	}
}

// booking builds a baseline booking between f.tutor and the given student,
// scheduled lead ahead of testNow, with its payment plan applied.
func (f *fixture) newBooking(student *entity.User, status entity.BookingStatus, lead time.Duration) *entity.Booking {
	scheduledAt := testNow.Add(lead)
	plan := PlanPayment(scheduledAt, testNow)

	return &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: testNow,
			UpdatedAt: testNow,
		},
		StudentID:            student.ID,
		TutorID:              f.tutor.ID,
		Subject:              "Mathematics",
		Level:                "GCSE",
		DurationMinutes:      60,
		Price:                4500,
		Currency:             "usd",
		ScheduledAt:          scheduledAt,
		Status:               status,
		PaymentAuthType:      plan.AuthType,
		PaymentStage:         plan.Stage,
		PaymentScheduledFor:  plan.ScheduledFor,
		RequiresAuthCreation: plan.RequiresAuthCreation,
	}
}

func (f *fixture) add(b *entity.Booking) *entity.Booking {
	f.bookings.bookings[b.ID] = cloneBooking(b)
	return b
}
