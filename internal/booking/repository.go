package booking

import (
	"context"
	"errors"
	"time"

	"github.com/careline/callcenter-booking/internal/availability"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrHospitalNotFound    = errors.New("hospital not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrScheduleNotFound    = errors.New("no schedule for that day")

	// ErrSlotTaken is returned by the store when the exclusion constraint
	// rejects an overlapping insert or reschedule. It should be unreachable
	// behind the doctor lock, but the constraint is the backstop.
	ErrSlotTaken = errors.New("appointment window already taken")

	// ErrPublicIDTaken reports a collision on the generated public id.
	// Callers regenerate and retry.
	ErrPublicIDTaken = errors.New("public id already taken")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	ResolveDoctor(ctx context.Context, publicID string) (*DoctorRef, error)
	ResolveHospital(ctx context.Context, publicID string) (*HospitalRef, error)

	// Schedule lookup for one weekday at one hospital.
	FindSchedule(ctx context.Context, doctorID, hospitalID int64, day time.Weekday) (*availability.ScheduleEntry, error)

	// Availability and conflict checks. FindActiveBetween returns the
	// occupied windows of non-cancelled appointments starting in [from, to).
	FindActiveBetween(ctx context.Context, doctorID, hospitalID int64, from, to time.Time) ([]availability.Window, error)
	FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, excludeID int64) ([]Appointment, error)

	// Patients
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetPatientByNIC(ctx context.Context, nic string) (*Patient, error)
	UpsertPatientByNIC(ctx context.Context, details PatientDetails) (*Patient, error)
	ListPatients(ctx context.Context, f PatientFilter) ([]Patient, int, error)

	// Appointment lifecycle
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetByPublicID(ctx context.Context, publicID string) (*Appointment, error)
	GetDetailByPublicID(ctx context.Context, publicID string) (*AppointmentDetail, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*Appointment, error)
	CancelByID(ctx context.Context, id int64) (*Appointment, error)
	Reschedule(ctx context.Context, id int64, start, end time.Time, doctorID, hospitalID int64) (*Appointment, error)

	// Agent-facing listing
	List(ctx context.Context, f ListFilter) ([]AppointmentDetail, int, error)

	// Completion worker
	CompleteFinished(ctx context.Context, now time.Time) (int64, error)
}
