package booking

import (
	"time"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusCompleted      Status = "completed"
)

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPendingPayment, StatusConfirmed, StatusCancelled, StatusCompleted:
		return Status(s), true
	default:
		return "", false
	}
}

type Patient struct {
	ID          int64
	Name        string
	PhoneNumber string
	Email       *string
	NIC         *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DoctorRef carries the slice of a doctor record the booking flow needs.
// The full doctor profile lives in the directory package.
type DoctorRef struct {
	ID       int64
	PublicID string
	Name     string
}

type HospitalRef struct {
	ID       int64
	PublicID string
	Name     string
	City     *string
}

type Appointment struct {
	ID                      int64
	PublicID                string
	PatientID               int64
	DoctorID                int64
	HospitalID              int64
	StartTime               time.Time
	EndTime                 time.Time
	Status                  Status
	PaymentLink             *string
	PaymentConfirmationCode *string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient  *Patient
	Doctor   *DoctorRef
	Hospital *HospitalRef
}

// PatientDetails is the caller-supplied identity used for the
// find-or-create-by-NIC flow during booking.
type PatientDetails struct {
	Name        string
	PhoneNumber string
	Email       *string
	NIC         string
}

type ViewMode string

const (
	ViewAll      ViewMode = "all"
	ViewPrevious ViewMode = "previous"
	ViewCurrent  ViewMode = "current"
)

type ListFilter struct {
	Date             *time.Time // calendar day in the business timezone
	DoctorPublicID   string
	HospitalPublicID string
	PublicID         string
	PatientSearch    string // matches name, phone, email or NIC
	ViewMode         ViewMode
	Now              time.Time // reference instant for previous/current view modes
	Limit            int
	Offset           int
}

// PatientFilter narrows the patient directory. Agents use it to find
// returning patients and prefill the booking form.
type PatientFilter struct {
	Search string // matches name, phone, email or NIC
	Limit  int
	Offset int
}
