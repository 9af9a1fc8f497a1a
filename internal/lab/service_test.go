package lab

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colombo = time.FixedZone("Asia/Colombo", 5*3600+1800)

var testNow = time.Date(2030, 6, 1, 10, 0, 0, 0, colombo)

type memRepo struct {
	labs     []Lab
	tests    []Test
	bookings map[int64]*Booking
	nextID   int64

	idClashes int // CreateBooking fails with ErrPublicIDTaken this many times
}

func newMemRepo() *memRepo {
	city := "Colombo"
	price := 1500.0
	return &memRepo{
		labs:     []Lab{{ID: 1, PublicID: "LABSITE-001", Name: "Asiri Labs", City: &city}},
		tests:    []Test{{ID: 1, PublicID: "TEST-001", Name: "Full Blood Count", Category: "Hematology", Price: &price}},
		bookings: map[int64]*Booking{},
		nextID:   1,
	}
}

func (r *memRepo) ListLabs(context.Context, string) ([]Lab, error) { return r.labs, nil }

func (r *memRepo) ResolveLab(_ context.Context, publicID string) (*Lab, error) {
	for i := range r.labs {
		if r.labs[i].PublicID == publicID {
			return &r.labs[i], nil
		}
	}
	return nil, ErrLabNotFound
}

func (r *memRepo) ListTests(context.Context, TestFilter) ([]Test, error) { return r.tests, nil }

func (r *memRepo) ResolveTest(_ context.Context, publicID string) (*Test, error) {
	for i := range r.tests {
		if r.tests[i].PublicID == publicID {
			return &r.tests[i], nil
		}
	}
	return nil, ErrTestNotFound
}

func (r *memRepo) CreateBooking(_ context.Context, b *Booking) error {
	if r.idClashes > 0 {
		r.idClashes--
		return ErrPublicIDTaken
	}
	b.ID = r.nextID
	r.nextID++
	b.CreatedAt = testNow
	b.UpdatedAt = testNow
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memRepo) GetBookingByPublicID(_ context.Context, publicID string) (*BookingDetail, error) {
	for _, b := range r.bookings {
		if b.PublicID == publicID {
			d := &BookingDetail{Booking: *b}
			for i := range r.tests {
				if r.tests[i].ID == b.TestID {
					d.Test = &r.tests[i]
				}
			}
			if b.LabID != nil {
				for i := range r.labs {
					if r.labs[i].ID == *b.LabID {
						d.Lab = &r.labs[i]
					}
				}
			}
			return d, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *memRepo) ListBookings(_ context.Context, f BookingFilter) ([]BookingDetail, int, error) {
	var out []BookingDetail
	for _, b := range r.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, BookingDetail{Booking: *b})
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateBookingStatus(_ context.Context, id int64, status Status) error {
	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.Status = status
	return nil
}

type recordMailer struct {
	sent []string
	fail bool
}

func (m *recordMailer) SendLabBookingReceipt(_ context.Context, d *BookingDetail) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, d.PublicID)
	return nil
}

func validInput() BookingInput {
	email := "nimal@example.lk"
	return BookingInput{
		PatientName:  "Nimal Perera",
		PatientPhone: "0771234567",
		PatientEmail: &email,
		TestPublicID: "TEST-001",
		LabPublicID:  "LABSITE-001",
		Date:         time.Date(2030, 6, 2, 0, 0, 0, 0, time.UTC),
		TimeSlot:     "09:30",
	}
}

func newTestService(repo *memRepo, mailer Mailer) *Service {
	return NewService(repo, mailer, colombo).WithClock(func() time.Time { return testNow })
}

func TestBookCreatesPendingBookingAndSendsReceipt(t *testing.T) {
	repo := newMemRepo()
	mailer := &recordMailer{}
	svc := newTestService(repo, mailer)

	b, err := svc.Book(context.Background(), validInput())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^LAB-\d{6}$`), b.PublicID)
	assert.Equal(t, StatusPending, b.Status)
	require.NotNil(t, b.LabID)
	assert.Len(t, mailer.sent, 1)
}

func TestBookWithoutEmailSkipsReceipt(t *testing.T) {
	repo := newMemRepo()
	mailer := &recordMailer{}
	svc := newTestService(repo, mailer)

	in := validInput()
	in.PatientEmail = nil
	_, err := svc.Book(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestBookMailFailureIsNonFatal(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &recordMailer{fail: true})

	b, err := svc.Book(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestBookRetriesPublicIDCollision(t *testing.T) {
	repo := newMemRepo()
	repo.idClashes = 2
	svc := newTestService(repo, nil)

	b, err := svc.Book(context.Background(), validInput())
	require.NoError(t, err)
	assert.Zero(t, repo.idClashes)
	assert.Regexp(t, regexp.MustCompile(`^LAB-\d{6}$`), b.PublicID)

	repo.idClashes = 10
	_, err = svc.Book(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrPublicIDTaken)
}

func TestBookStoresCanonicalTimeSlot(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	b, err := svc.Book(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "09:30", b.TimeSlot)

	in := validInput()
	in.TimeSlot = "09:30 sharp"
	_, err = svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTimeSlot)
}

func TestBookValidation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	in := validInput()
	in.PatientName = "  "
	_, err := svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrPatientRequired)

	in = validInput()
	in.TimeSlot = "half past nine"
	_, err = svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTimeSlot)

	in = validInput()
	in.Date = time.Date(2030, 5, 30, 0, 0, 0, 0, time.UTC)
	_, err = svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrPastDate)

	in = validInput()
	in.TestPublicID = "TEST-999"
	_, err = svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrTestNotFound)

	in = validInput()
	in.LabPublicID = "LABSITE-999"
	_, err = svc.Book(context.Background(), in)
	assert.ErrorIs(t, err, ErrLabNotFound)
}

func TestBookLabSiteOptional(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	in := validInput()
	in.LabPublicID = ""
	b, err := svc.Book(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, b.LabID)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	b, err := svc.Book(context.Background(), validInput())
	require.NoError(t, err)

	d, err := svc.UpdateStatus(context.Background(), b.PublicID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, d.Status)

	_, err = svc.UpdateStatus(context.Background(), "LAB-000000", StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}
