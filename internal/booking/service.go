package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careline/callcenter-booking/internal/availability"
	redisclient "github.com/careline/callcenter-booking/internal/redis"
)

var (
	ErrPastTime          = errors.New("cannot book or reschedule to a past time")
	ErrInvalidWindow     = errors.New("end time must be after start time")
	ErrNotScheduled      = errors.New("the doctor is not scheduled on this day at this hospital")
	ErrOutsideSchedule   = errors.New("time is outside the doctor's scheduled hours")
	ErrSlotConflict      = errors.New("this time slot is already booked")
	ErrAlreadyCancelled  = errors.New("appointment is already cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDoctorBusy        = errors.New("another booking for this doctor is in progress, please retry")
	ErrPatientRequired   = errors.New("patient id or patient details with NIC are required")
)

// Mailer delivers booking confirmations. Implementations are best-effort;
// the service never fails an operation over a mail error.
type Mailer interface {
	SendAppointmentConfirmation(ctx context.Context, detail *AppointmentDetail) error
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	mailer Mailer
	loc    *time.Location
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, mailer Mailer, loc *time.Location) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		mailer: mailer,
		loc:    loc,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DayAvailability is the computed slot sheet for one doctor, hospital and
// date. Scheduled false means the doctor has no recurring window that
// weekday; it is a valid empty result, distinct from a fully booked day.
type DayAvailability struct {
	Doctor    *DoctorRef
	Hospital  *HospitalRef
	Scheduled bool
	Slots     []availability.Slot
}

// Availability computes the ordered candidate slots for date.
func (s *Service) Availability(ctx context.Context, doctorPublicID, hospitalPublicID string, date time.Time) (*DayAvailability, error) {
	doctor, err := s.repo.ResolveDoctor(ctx, doctorPublicID)
	if err != nil {
		return nil, err
	}
	hospital, err := s.repo.ResolveHospital(ctx, hospitalPublicID)
	if err != nil {
		return nil, err
	}

	anchored := availability.Anchor(date, s.loc)

	entry, err := s.repo.FindSchedule(ctx, doctor.ID, hospital.ID, anchored.Weekday())
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return &DayAvailability{Doctor: doctor, Hospital: hospital, Scheduled: false}, nil
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	dayStart, dayEnd := availability.DayBounds(anchored, s.loc)
	booked, err := s.repo.FindActiveBetween(ctx, doctor.ID, hospital.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load day appointments: %w", err)
	}

	slots := availability.ComputeSlots(entry, booked, anchored, s.now(), s.loc)

	return &DayAvailability{
		Doctor:    doctor,
		Hospital:  hospital,
		Scheduled: true,
		Slots:     slots,
	}, nil
}

// BookingInput describes one appointment to create. Either PatientID or
// PatientDetails (with NIC) must be set.
type BookingInput struct {
	DoctorPublicID   string
	HospitalPublicID string
	StartTime        time.Time
	PatientID        *int64
	PatientDetails   *PatientDetails
}

// Book reserves a slot for a patient. The conflict check and the insert run
// under a per-doctor distributed lock so concurrent requests for the same
// doctor serialise; the store's exclusion constraint backstops the rest.
func (s *Service) Book(ctx context.Context, in BookingInput) (*Appointment, error) {
	start := in.StartTime
	end := start.Add(availability.SlotDuration)

	doctor, err := s.repo.ResolveDoctor(ctx, in.DoctorPublicID)
	if err != nil {
		return nil, err
	}
	hospital, err := s.repo.ResolveHospital(ctx, in.HospitalPublicID)
	if err != nil {
		return nil, err
	}

	if err := s.validateWindow(ctx, doctor.ID, hospital.ID, start, end); err != nil {
		return nil, err
	}

	patient, err := s.resolvePatient(ctx, in)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithDoctorLock(ctx, doctor.ID, func(lockCtx context.Context) error {
		overlapping, err := s.repo.FindOverlapping(lockCtx, doctor.ID, start, end, 0)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(overlapping) > 0 {
			return ErrSlotConflict
		}

		paymentLink := fmt.Sprintf("https://pay.gateway.lk/pay/%s", uuid.NewString())
		appt := &Appointment{
			PatientID:   patient.ID,
			DoctorID:    doctor.ID,
			HospitalID:  hospital.ID,
			StartTime:   start,
			EndTime:     end,
			Status:      StatusPendingPayment,
			PaymentLink: &paymentLink,
		}

		// The public id is random, so a collision just means roll again.
		for attempt := 0; ; attempt++ {
			appt.PublicID = newPublicID("APT")
			created, err = s.repo.CreateAppointment(lockCtx, appt)
			if errors.Is(err, ErrPublicIDTaken) && attempt < publicIDRetries {
				continue
			}
			break
		}
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotConflict
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	s.sendConfirmation(ctx, created.PublicID)

	return created, nil
}

// BulkBookingInput books the same patient into several slots of one
// doctor's day in a single call.
type BulkBookingInput struct {
	DoctorPublicID   string
	HospitalPublicID string
	StartTimes       []time.Time
	PatientID        *int64
	PatientDetails   *PatientDetails
}

// BulkFailure records one slot that could not be booked.
type BulkFailure struct {
	StartTime time.Time
	Err       error
}

// BulkResult is the per-slot outcome of a bulk booking.
type BulkResult struct {
	Booked []*Appointment
	Failed []BulkFailure
}

// BookMany books each requested slot in turn. The first successful booking
// pins the patient record; later slots reuse it rather than re-upserting by
// NIC. Slots fail independently, so a conflict on one does not roll back
// the others.
func (s *Service) BookMany(ctx context.Context, in BulkBookingInput) (*BulkResult, error) {
	if len(in.StartTimes) == 0 {
		return nil, ErrInvalidWindow
	}

	result := &BulkResult{}
	patientID := in.PatientID

	for _, start := range in.StartTimes {
		appt, err := s.Book(ctx, BookingInput{
			DoctorPublicID:   in.DoctorPublicID,
			HospitalPublicID: in.HospitalPublicID,
			StartTime:        start,
			PatientID:        patientID,
			PatientDetails:   in.PatientDetails,
		})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{StartTime: start, Err: err})
			continue
		}
		result.Booked = append(result.Booked, appt)
		if patientID == nil {
			patientID = &appt.PatientID
		}
	}
	return result, nil
}

// RescheduleInput moves an appointment to a new window, optionally to a
// different doctor or hospital.
type RescheduleInput struct {
	StartTime        time.Time
	EndTime          time.Time
	DoctorPublicID   string // empty keeps the current doctor
	HospitalPublicID string // empty keeps the current hospital
}

func (s *Service) Reschedule(ctx context.Context, publicID string, in RescheduleInput) (*Appointment, error) {
	existing, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusCancelled {
		// A cancelled booking does not come back by moving it; book again.
		return nil, ErrInvalidTransition
	}

	targetDoctorID := existing.DoctorID
	if in.DoctorPublicID != "" {
		doctor, err := s.repo.ResolveDoctor(ctx, in.DoctorPublicID)
		if err != nil {
			return nil, err
		}
		targetDoctorID = doctor.ID
	}
	targetHospitalID := existing.HospitalID
	if in.HospitalPublicID != "" {
		hospital, err := s.repo.ResolveHospital(ctx, in.HospitalPublicID)
		if err != nil {
			return nil, err
		}
		targetHospitalID = hospital.ID
	}

	if !in.EndTime.After(in.StartTime) {
		return nil, ErrInvalidWindow
	}
	if err := s.validateWindow(ctx, targetDoctorID, targetHospitalID, in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithDoctorLock(ctx, targetDoctorID, func(lockCtx context.Context) error {
		// Exclude the appointment itself: moving within (or adjacent to)
		// its own old window is not a conflict.
		overlapping, err := s.repo.FindOverlapping(lockCtx, targetDoctorID, in.StartTime, in.EndTime, existing.ID)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(overlapping) > 0 {
			return ErrSlotConflict
		}

		updated, err = s.repo.Reschedule(lockCtx, existing.ID, in.StartTime, in.EndTime, targetDoctorID, targetHospitalID)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotConflict
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	return updated, nil
}

// Cancel releases the appointment's slot. Re-cancelling is rejected.
func (s *Service) Cancel(ctx context.Context, publicID string) (*Appointment, error) {
	existing, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	cancelled, err := s.repo.CancelByID(ctx, existing.ID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another cancel.
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return cancelled, nil
}

// ConfirmPayment moves pending_payment to confirmed. The window does not
// change, so no conflict re-check is needed.
func (s *Service) ConfirmPayment(ctx context.Context, publicID string) (*Appointment, error) {
	existing, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusPendingPayment {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, existing.ID, StatusPendingPayment, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	return updated, nil
}

// Get retrieves a fully hydrated appointment by its public id.
func (s *Service) Get(ctx context.Context, publicID string) (*AppointmentDetail, error) {
	detail, err := s.repo.GetDetailByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns a page of appointments for the agent dashboard.
func (s *Service) List(ctx context.Context, f ListFilter) ([]AppointmentDetail, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.ViewMode == "" {
		f.ViewMode = ViewAll
	}
	if f.Now.IsZero() {
		f.Now = s.now()
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, nil
}

// ListPatients is the agent-facing patient directory, used to look up
// returning patients before booking.
func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, total, err := s.repo.ListPatients(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return items, total, nil
}

// GetPatientByNIC looks up a patient by national id, to prefill the
// booking form for a returning patient.
func (s *Service) GetPatientByNIC(ctx context.Context, nic string) (*Patient, error) {
	return s.repo.GetPatientByNIC(ctx, nic)
}

// CompletePastAppointments marks confirmed appointments whose end time has
// passed as completed. Called periodically by the completion worker.
func (s *Service) CompletePastAppointments(ctx context.Context) (int64, error) {
	n, err := s.repo.CompleteFinished(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("complete finished appointments: %w", err)
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("appointments marked completed")
	}
	return n, nil
}

// validateWindow applies the policy checks shared by booking and
// rescheduling: not in the past, and inside the doctor's recurring window
// for that weekday at that hospital.
func (s *Service) validateWindow(ctx context.Context, doctorID, hospitalID int64, start, end time.Time) error {
	if start.Before(s.now()) {
		return ErrPastTime
	}

	anchored := availability.Anchor(start, s.loc)
	entry, err := s.repo.FindSchedule(ctx, doctorID, hospitalID, anchored.Weekday())
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return ErrNotScheduled
		}
		return fmt.Errorf("load schedule: %w", err)
	}

	scheduleStart := entry.Start.On(anchored, s.loc)
	scheduleEnd := entry.End.On(anchored, s.loc)
	if start.Before(scheduleStart) || end.After(scheduleEnd) {
		return ErrOutsideSchedule
	}
	return nil
}

func (s *Service) resolvePatient(ctx context.Context, in BookingInput) (*Patient, error) {
	if in.PatientID != nil {
		patient, err := s.repo.GetPatientByID(ctx, *in.PatientID)
		if err != nil {
			return nil, err
		}
		return patient, nil
	}
	if in.PatientDetails == nil || in.PatientDetails.NIC == "" {
		return nil, ErrPatientRequired
	}
	patient, err := s.repo.UpsertPatientByNIC(ctx, *in.PatientDetails)
	if err != nil {
		return nil, fmt.Errorf("upsert patient: %w", err)
	}
	return patient, nil
}

// sendConfirmation emails the patient. Failures are logged and swallowed;
// the appointment is already committed.
func (s *Service) sendConfirmation(ctx context.Context, publicID string) {
	if s.mailer == nil {
		return
	}
	detail, err := s.repo.GetDetailByPublicID(ctx, publicID)
	if err != nil {
		log.Warn().Err(err).Str("appointment", publicID).Msg("load appointment for confirmation email")
		return
	}
	if err := s.mailer.SendAppointmentConfirmation(ctx, detail); err != nil {
		log.Warn().Err(err).Str("appointment", publicID).Msg("confirmation email failed")
	}
}

// publicIDRetries bounds regeneration after a public id collision.
const publicIDRetries = 3

// newPublicID builds an opaque external identifier such as APT-482913.
func newPublicID(prefix string) string {
	return fmt.Sprintf("%s-%06d", prefix, rand.IntN(900000)+100000)
}
