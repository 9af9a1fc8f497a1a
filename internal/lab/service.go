package lab

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careline/callcenter-booking/internal/availability"
)

var (
	ErrPatientRequired = errors.New("patient name and phone number are required")
	ErrInvalidTimeSlot = errors.New("time slot must be in HH:MM format")
	ErrPastDate        = errors.New("booking date cannot be in the past")
)

// Mailer delivers booking receipts. Best-effort, mirrors the appointment
// confirmation contract.
type Mailer interface {
	SendLabBookingReceipt(ctx context.Context, detail *BookingDetail) error
}

type Service struct {
	repo   Repository
	mailer Mailer
	loc    *time.Location
	now    func() time.Time
}

func NewService(repo Repository, mailer Mailer, loc *time.Location) *Service {
	return &Service{repo: repo, mailer: mailer, loc: loc, now: time.Now}
}

// WithClock overrides the wall clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListLabs(ctx context.Context, city string) ([]Lab, error) {
	return s.repo.ListLabs(ctx, city)
}

func (s *Service) ListTests(ctx context.Context, f TestFilter) ([]Test, error) {
	return s.repo.ListTests(ctx, f)
}

// BookingInput is the walk-in form a call agent fills for a lab test.
type BookingInput struct {
	PatientName   string
	PatientPhone  string
	PatientEmail  *string
	PatientAge    *int
	PatientGender *string
	TestPublicID  string
	LabPublicID   string
	Date          time.Time
	TimeSlot      string
}

// Book records a lab test booking and sends a receipt if an email address
// was given. The lab site is optional; the test is not.
func (s *Service) Book(ctx context.Context, in BookingInput) (*Booking, error) {
	if strings.TrimSpace(in.PatientName) == "" || strings.TrimSpace(in.PatientPhone) == "" {
		return nil, ErrPatientRequired
	}
	slot, err := availability.ParseTimeOfDay(in.TimeSlot)
	if err != nil {
		return nil, ErrInvalidTimeSlot
	}

	date := availability.Anchor(in.Date, s.loc)
	today := availability.Anchor(s.now(), s.loc)
	if date.Before(today) {
		return nil, ErrPastDate
	}

	test, err := s.repo.ResolveTest(ctx, in.TestPublicID)
	if err != nil {
		return nil, err
	}

	var labID *int64
	if in.LabPublicID != "" {
		site, err := s.repo.ResolveLab(ctx, in.LabPublicID)
		if err != nil {
			return nil, err
		}
		labID = &site.ID
	}

	b := &Booking{
		PatientName:   strings.TrimSpace(in.PatientName),
		PatientPhone:  strings.TrimSpace(in.PatientPhone),
		PatientEmail:  in.PatientEmail,
		PatientAge:    in.PatientAge,
		PatientGender: in.PatientGender,
		TestID:        test.ID,
		LabID:         labID,
		Date:          date,
		TimeSlot:      slot.String(),
		Status:        StatusPending,
	}
	// The public id is random, so a collision just means roll again.
	for attempt := 0; ; attempt++ {
		b.PublicID = newPublicID()
		err = s.repo.CreateBooking(ctx, b)
		if errors.Is(err, ErrPublicIDTaken) && attempt < publicIDRetries {
			continue
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("create lab booking: %w", err)
	}

	if b.PatientEmail != nil {
		s.sendReceipt(ctx, b.PublicID)
	}

	return b, nil
}

func (s *Service) Get(ctx context.Context, publicID string) (*BookingDetail, error) {
	return s.repo.GetBookingByPublicID(ctx, publicID)
}

// List returns bookings newest first.
func (s *Service) List(ctx context.Context, f BookingFilter) ([]BookingDetail, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListBookings(ctx, f)
}

// UpdateStatus moves a booking to any of the four lifecycle states.
func (s *Service) UpdateStatus(ctx context.Context, publicID string, status Status) (*BookingDetail, error) {
	detail, err := s.repo.GetBookingByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBookingStatus(ctx, detail.ID, status); err != nil {
		return nil, err
	}
	detail.Status = status
	return detail, nil
}

// sendReceipt emails the patient. Failures are logged and swallowed; the
// booking is already committed.
func (s *Service) sendReceipt(ctx context.Context, publicID string) {
	if s.mailer == nil {
		return
	}
	detail, err := s.repo.GetBookingByPublicID(ctx, publicID)
	if err != nil {
		log.Warn().Err(err).Str("lab_booking", publicID).Msg("load lab booking for receipt email")
		return
	}
	if err := s.mailer.SendLabBookingReceipt(ctx, detail); err != nil {
		log.Warn().Err(err).Str("lab_booking", publicID).Msg("lab receipt email failed")
	}
}

// publicIDRetries bounds regeneration after a public id collision.
const publicIDRetries = 3

func newPublicID() string {
	return fmt.Sprintf("LAB-%06d", rand.IntN(900000)+100000)
}
