package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careline/callcenter-booking/internal/availability"
	"github.com/careline/callcenter-booking/internal/booking"
	redisclient "github.com/careline/callcenter-booking/internal/redis"
)

type BookingHandler struct {
	svc *booking.Service
	loc *time.Location
}

func NewBookingHandler(svc *booking.Service, loc *time.Location) *BookingHandler {
	return &BookingHandler{svc: svc, loc: loc}
}

// Availability returns the day's slot sheet for a doctor at a hospital.
// Scheduled false with no slots means the doctor does not sit that weekday,
// which is different from a fully reserved day.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	doctorID := r.URL.Query().Get("doctor_id")
	hospitalID := r.URL.Query().Get("hospital_id")
	dateStr := r.URL.Query().Get("date")
	if doctorID == "" || hospitalID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "missing_parameters", "doctor_id, hospital_id and date are required")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	day, err := h.svc.Availability(r.Context(), doctorID, hospitalID, date)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:   day.Doctor.PublicID,
		HospitalID: day.Hospital.PublicID,
		Date:       availability.Anchor(date, h.loc).Format("2006-01-02"),
		Scheduled:  day.Scheduled,
		Slots:      toSlotResponses(day.Slots, h.loc),
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.BookingInput{
		DoctorPublicID:   req.DoctorID,
		HospitalPublicID: req.HospitalID,
		StartTime:        req.StartTime,
		PatientID:        req.PatientID,
		PatientDetails:   toPatientDetails(req.PatientDetails),
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *BookingHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	result, err := h.svc.BookMany(r.Context(), booking.BulkBookingInput{
		DoctorPublicID:   req.DoctorID,
		HospitalPublicID: req.HospitalID,
		StartTimes:       req.StartTimes,
		PatientID:        req.PatientID,
		PatientDetails:   toPatientDetails(req.PatientDetails),
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	resp := BulkCreateAppointmentResponse{
		Booked: make([]AppointmentResponse, 0, len(result.Booked)),
		Failed: make([]BulkFailureBody, 0, len(result.Failed)),
	}
	for _, a := range result.Booked {
		resp.Booked = append(resp.Booked, toAppointmentResponse(a))
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, BulkFailureBody{StartTime: f.StartTime, Error: f.Err.Error()})
	}

	status := http.StatusCreated
	if len(resp.Booked) == 0 {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), chi.URLParam(r, "public_id"))
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := booking.ListFilter{
		DoctorPublicID:   q.Get("doctor_id"),
		HospitalPublicID: q.Get("hospital_id"),
		PublicID:         q.Get("appointment_id"),
		PatientSearch:    q.Get("patient"),
		ViewMode:         booking.ViewMode(q.Get("view")),
		Limit:            queryInt(q.Get("limit")),
		Offset:           queryInt(q.Get("offset")),
	}
	if dateStr := q.Get("date"); dateStr != "" {
		date, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &date
	}

	items, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	resp := pageResponse[AppointmentDetailResponse]{
		Items: make([]AppointmentDetailResponse, 0, len(items)),
		Total: total,
	}
	for i := range items {
		resp.Items = append(resp.Items, toAppointmentDetailResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	items, total, err := h.svc.ListPatients(r.Context(), booking.PatientFilter{
		Search: q.Get("search"),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	resp := pageResponse[PatientResponse]{
		Items: make([]PatientResponse, 0, len(items)),
		Total: total,
	}
	for i := range items {
		resp.Items = append(resp.Items, toPatientResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.svc.GetPatientByNIC(r.Context(), chi.URLParam(r, "nic"))
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "public_id"))
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "public_id"), booking.RescheduleInput{
		StartTime:        req.StartTime,
		EndTime:          req.StartTime.Add(availability.SlotDuration),
		DoctorPublicID:   req.DoctorID,
		HospitalPublicID: req.HospitalID,
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.ConfirmPayment(r.Context(), chi.URLParam(r, "public_id"))
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func toPatientDetails(req *PatientDetailsRequest) *booking.PatientDetails {
	if req == nil {
		return nil
	}
	return &booking.PatientDetails{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		NIC:         req.NIC,
	}
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrHospitalNotFound):
		writeError(w, http.StatusNotFound, "hospital_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrPastTime):
		writeError(w, http.StatusBadRequest, "past_time", err.Error())
	case errors.Is(err, booking.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, booking.ErrNotScheduled):
		writeError(w, http.StatusBadRequest, "doctor_not_scheduled", err.Error())
	case errors.Is(err, booking.ErrOutsideSchedule):
		writeError(w, http.StatusBadRequest, "outside_schedule", err.Error())
	case errors.Is(err, booking.ErrPatientRequired):
		writeError(w, http.StatusBadRequest, "patient_required", err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrDoctorBusy), errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "doctor_busy", "another booking for this doctor is in progress, please retry shortly")
	default:
		logInternalError(r, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
