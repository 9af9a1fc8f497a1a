package directory

import (
	"time"

	"github.com/careline/callcenter-booking/internal/availability"
)

type Specialization struct {
	ID   int64
	Name string
}

type Illness struct {
	ID               int64
	Name             string
	SpecializationID int64
}

type Hospital struct {
	ID          int64
	PublicID    string
	Name        string
	City        *string
	Address     *string
	PhoneNumber *string
}

type Doctor struct {
	ID                 int64
	PublicID           string
	Name               string
	Specialization     *Specialization
	ProfileDescription *string
	ConsultantFee      *float64
	Schedules          []DoctorSchedule
}

// DoctorSchedule is a recurring window joined with the hospital it
// applies to, as shown in directory search results.
type DoctorSchedule struct {
	ScheduleID int64
	DayOfWeek  time.Weekday
	Start      availability.TimeOfDay
	End        availability.TimeOfDay
	Hospital   Hospital
}

// ScheduleRow is the flat schedule listing used by the roster screen.
type ScheduleRow struct {
	ScheduleID int64
	DayOfWeek  time.Weekday
	Start      availability.TimeOfDay
	End        availability.TimeOfDay
	Doctor     Doctor
	Hospital   Hospital
}

type DoctorFilter struct {
	Name             string
	City             string
	SpecializationID int64
	Illness          string
	HospitalPublicID string
	Limit            int
	Offset           int
}

type ScheduleFilter struct {
	DoctorPublicID   string
	HospitalPublicID string
	SpecializationID int64
	DayOfWeek        *time.Weekday
	Limit            int
	Offset           int
}
