package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careline/callcenter-booking/internal/lab"
)

type LabHandler struct {
	svc *lab.Service
	loc *time.Location
}

func NewLabHandler(svc *lab.Service, loc *time.Location) *LabHandler {
	return &LabHandler{svc: svc, loc: loc}
}

func (h *LabHandler) ListLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.svc.ListLabs(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		handleLabError(w, r, err)
		return
	}

	out := make([]LabResponse, 0, len(labs))
	for _, l := range labs {
		out = append(out, LabResponse{
			PublicID:    l.PublicID,
			Name:        l.Name,
			City:        l.City,
			Address:     l.Address,
			PhoneNumber: l.PhoneNumber,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LabHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tests, err := h.svc.ListTests(r.Context(), lab.TestFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		handleLabError(w, r, err)
		return
	}

	out := make([]LabTestResponse, 0, len(tests))
	for _, t := range tests {
		out = append(out, LabTestResponse{
			PublicID: t.PublicID,
			Name:     t.Name,
			Category: t.Category,
			Price:    t.Price,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LabHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateLabBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	b, err := h.svc.Book(r.Context(), lab.BookingInput{
		PatientName:   req.PatientName,
		PatientPhone:  req.PatientPhone,
		PatientEmail:  req.PatientEmail,
		PatientAge:    req.PatientAge,
		PatientGender: req.PatientGender,
		TestPublicID:  req.TestID,
		LabPublicID:   req.LabID,
		Date:          date,
		TimeSlot:      req.TimeSlot,
	})
	if err != nil {
		handleLabError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLabBookingResponse(b, nil, nil))
}

func (h *LabHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), chi.URLParam(r, "public_id"))
	if err != nil {
		handleLabError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabBookingResponse(&detail.Booking, detail.Test, detail.Lab))
}

func (h *LabHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := lab.BookingFilter{
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}
	if s := q.Get("status"); s != "" {
		status, err := lab.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		filter.Status = status
	}

	items, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		handleLabError(w, r, err)
		return
	}

	resp := pageResponse[LabBookingResponse]{Items: make([]LabBookingResponse, 0, len(items)), Total: total}
	for i := range items {
		resp.Items = append(resp.Items, toLabBookingResponse(&items[i].Booking, items[i].Test, items[i].Lab))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LabHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateLabBookingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	status, err := lab.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	detail, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "public_id"), status)
	if err != nil {
		handleLabError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabBookingResponse(&detail.Booking, detail.Test, detail.Lab))
}

func handleLabError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lab.ErrTestNotFound):
		writeError(w, http.StatusNotFound, "lab_test_not_found", err.Error())
	case errors.Is(err, lab.ErrLabNotFound):
		writeError(w, http.StatusNotFound, "lab_not_found", err.Error())
	case errors.Is(err, lab.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "lab_booking_not_found", err.Error())
	case errors.Is(err, lab.ErrPatientRequired):
		writeError(w, http.StatusBadRequest, "patient_required", err.Error())
	case errors.Is(err, lab.ErrInvalidTimeSlot):
		writeError(w, http.StatusBadRequest, "invalid_time_slot", err.Error())
	case errors.Is(err, lab.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	default:
		logInternalError(r, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
