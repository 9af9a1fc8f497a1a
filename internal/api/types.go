package api

import (
	"time"

	"github.com/careline/callcenter-booking/internal/availability"
	"github.com/careline/callcenter-booking/internal/booking"
	"github.com/careline/callcenter-booking/internal/directory"
	"github.com/careline/callcenter-booking/internal/identity"
	"github.com/careline/callcenter-booking/internal/lab"
)

type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// -- Auth --

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UserResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		Status:      string(u.Status),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// -- Directory --

type HospitalResponse struct {
	PublicID    string  `json:"public_id"`
	Name        string  `json:"name"`
	City        *string `json:"city,omitempty"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func toHospitalResponse(h directory.Hospital) HospitalResponse {
	return HospitalResponse{
		PublicID:    h.PublicID,
		Name:        h.Name,
		City:        h.City,
		Address:     h.Address,
		PhoneNumber: h.PhoneNumber,
	}
}

type DoctorScheduleResponse struct {
	DayOfWeek string           `json:"day_of_week"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Hospital  HospitalResponse `json:"hospital"`
}

type DoctorResponse struct {
	PublicID           string                   `json:"public_id"`
	Name               string                   `json:"name"`
	Specialization     *string                  `json:"specialization,omitempty"`
	ProfileDescription *string                  `json:"profile_description,omitempty"`
	ConsultantFee      *float64                 `json:"consultant_fee,omitempty"`
	Schedules          []DoctorScheduleResponse `json:"schedules"`
}

func toDoctorResponse(d directory.Doctor) DoctorResponse {
	resp := DoctorResponse{
		PublicID:           d.PublicID,
		Name:               d.Name,
		ProfileDescription: d.ProfileDescription,
		ConsultantFee:      d.ConsultantFee,
		Schedules:          make([]DoctorScheduleResponse, 0, len(d.Schedules)),
	}
	if d.Specialization != nil {
		resp.Specialization = &d.Specialization.Name
	}
	for _, s := range d.Schedules {
		resp.Schedules = append(resp.Schedules, DoctorScheduleResponse{
			DayOfWeek: s.DayOfWeek.String(),
			StartTime: s.Start.String(),
			EndTime:   s.End.String(),
			Hospital:  toHospitalResponse(s.Hospital),
		})
	}
	return resp
}

type SpecializationResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type IllnessResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	SpecializationID int64  `json:"specialization_id"`
}

type ScheduleRowResponse struct {
	ScheduleID int64            `json:"schedule_id"`
	DayOfWeek  string           `json:"day_of_week"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	Doctor     DoctorResponse   `json:"doctor"`
	Hospital   HospitalResponse `json:"hospital"`
}

// -- Availability --

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type AvailabilityResponse struct {
	DoctorID   string         `json:"doctor_id"`
	HospitalID string         `json:"hospital_id"`
	Date       string         `json:"date"`
	Scheduled  bool           `json:"scheduled"`
	Slots      []SlotResponse `json:"slots"`
}

func toSlotResponses(slots []availability.Slot, loc *time.Location) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			StartTime: s.Start.In(loc).Format("15:04"),
			EndTime:   s.End.In(loc).Format("15:04"),
			Status:    string(s.Status),
		})
	}
	return out
}

// -- Appointments --

type PatientDetailsRequest struct {
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	Email       *string `json:"email,omitempty"`
	NIC         string  `json:"nic"`
}

type CreateAppointmentRequest struct {
	DoctorID       string                 `json:"doctor_id"`
	HospitalID     string                 `json:"hospital_id"`
	StartTime      time.Time              `json:"start_time"`
	PatientID      *int64                 `json:"patient_id,omitempty"`
	PatientDetails *PatientDetailsRequest `json:"patient_details,omitempty"`
}

type BulkCreateAppointmentRequest struct {
	DoctorID       string                 `json:"doctor_id"`
	HospitalID     string                 `json:"hospital_id"`
	StartTimes     []time.Time            `json:"start_times"`
	PatientID      *int64                 `json:"patient_id,omitempty"`
	PatientDetails *PatientDetailsRequest `json:"patient_details,omitempty"`
}

type RescheduleAppointmentRequest struct {
	StartTime  time.Time `json:"start_time"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	HospitalID string    `json:"hospital_id,omitempty"`
}

type AppointmentResponse struct {
	PublicID    string    `json:"public_id"`
	PatientID   int64     `json:"patient_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	PaymentLink *string   `json:"payment_link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		PublicID:    a.PublicID,
		PatientID:   a.PatientID,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Status:      string(a.Status),
		PaymentLink: a.PaymentLink,
		CreatedAt:   a.CreatedAt,
	}
}

type PatientResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	Email       *string `json:"email,omitempty"`
	NIC         *string `json:"nic,omitempty"`
}

func toPatientResponse(p *booking.Patient) PatientResponse {
	return PatientResponse{
		ID:          p.ID,
		Name:        p.Name,
		PhoneNumber: p.PhoneNumber,
		Email:       p.Email,
		NIC:         p.NIC,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Patient  *PatientResponse  `json:"patient,omitempty"`
	Doctor   *DoctorRefBody    `json:"doctor,omitempty"`
	Hospital *HospitalResponse `json:"hospital,omitempty"`
}

type DoctorRefBody struct {
	PublicID string `json:"public_id"`
	Name     string `json:"name"`
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(&d.Appointment)}
	if d.Patient != nil {
		pr := toPatientResponse(d.Patient)
		resp.Patient = &pr
	}
	if d.Doctor != nil {
		resp.Doctor = &DoctorRefBody{PublicID: d.Doctor.PublicID, Name: d.Doctor.Name}
	}
	if d.Hospital != nil {
		resp.Hospital = &HospitalResponse{
			PublicID: d.Hospital.PublicID,
			Name:     d.Hospital.Name,
			City:     d.Hospital.City,
		}
	}
	return resp
}

type BulkCreateAppointmentResponse struct {
	Booked []AppointmentResponse `json:"booked"`
	Failed []BulkFailureBody     `json:"failed"`
}

type BulkFailureBody struct {
	StartTime time.Time `json:"start_time"`
	Error     string    `json:"error"`
}

// -- Lab --

type LabResponse struct {
	PublicID    string  `json:"public_id"`
	Name        string  `json:"name"`
	City        *string `json:"city,omitempty"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

type LabTestResponse struct {
	PublicID string   `json:"public_id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price,omitempty"`
}

type CreateLabBookingRequest struct {
	PatientName   string  `json:"patient_name"`
	PatientPhone  string  `json:"patient_phone"`
	PatientEmail  *string `json:"patient_email,omitempty"`
	PatientAge    *int    `json:"patient_age,omitempty"`
	PatientGender *string `json:"patient_gender,omitempty"`
	TestID        string  `json:"test_id"`
	LabID         string  `json:"lab_id,omitempty"`
	Date          string  `json:"date"`
	TimeSlot      string  `json:"time_slot"`
}

type UpdateLabBookingStatusRequest struct {
	Status string `json:"status"`
}

type LabBookingResponse struct {
	PublicID     string           `json:"public_id"`
	PatientName  string           `json:"patient_name"`
	PatientPhone string           `json:"patient_phone"`
	Date         string           `json:"date"`
	TimeSlot     string           `json:"time_slot"`
	Status       string           `json:"status"`
	Test         *LabTestResponse `json:"test,omitempty"`
	Lab          *LabResponse     `json:"lab,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toLabBookingResponse(b *lab.Booking, test *lab.Test, site *lab.Lab) LabBookingResponse {
	resp := LabBookingResponse{
		PublicID:     b.PublicID,
		PatientName:  b.PatientName,
		PatientPhone: b.PatientPhone,
		Date:         b.Date.Format("2006-01-02"),
		TimeSlot:     b.TimeSlot,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
	}
	if test != nil {
		resp.Test = &LabTestResponse{
			PublicID: test.PublicID,
			Name:     test.Name,
			Category: test.Category,
			Price:    test.Price,
		}
	}
	if site != nil {
		resp.Lab = &LabResponse{
			PublicID:    site.PublicID,
			Name:        site.Name,
			City:        site.City,
			Address:     site.Address,
			PhoneNumber: site.PhoneNumber,
		}
	}
	return resp
}

// -- Admin --

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Role   *string `json:"role,omitempty"`
	Status *string `json:"status,omitempty"`
}

type DashboardResponse struct {
	ActiveAgents          int `json:"active_agents"`
	SuspendedAgents       int `json:"suspended_agents"`
	AppointmentsToday     int `json:"appointments_today"`
	CancelledAppointments int `json:"cancelled_appointments"`
}
