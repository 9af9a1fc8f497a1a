package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careline/callcenter-booking/internal/directory"
)

type DirectoryHandler struct {
	svc *directory.Service
}

func NewDirectoryHandler(svc *directory.Service) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

func (h *DirectoryHandler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := directory.DoctorFilter{
		Name:             q.Get("name"),
		City:             q.Get("city"),
		Illness:          q.Get("illness"),
		HospitalPublicID: q.Get("hospital_id"),
		Limit:            queryInt(q.Get("limit")),
		Offset:           queryInt(q.Get("offset")),
	}
	if s := q.Get("specialization_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialization_id", "specialization_id must be an integer")
			return
		}
		filter.SpecializationID = id
	}

	doctors, total, err := h.svc.SearchDoctors(r.Context(), filter)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	resp := pageResponse[DoctorResponse]{Items: make([]DoctorResponse, 0, len(doctors)), Total: total}
	for _, d := range doctors {
		resp.Items = append(resp.Items, toDoctorResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DirectoryHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.svc.GetDoctor(r.Context(), chi.URLParam(r, "public_id"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(*doctor))
}

func (h *DirectoryHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.svc.ListHospitals(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	out := make([]HospitalResponse, 0, len(hospitals))
	for _, hosp := range hospitals {
		out = append(out, toHospitalResponse(hosp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) ListSpecializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.ListSpecializations(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	out := make([]SpecializationResponse, 0, len(specs))
	for _, s := range specs {
		out = append(out, SpecializationResponse{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) ListIllnesses(w http.ResponseWriter, r *http.Request) {
	illnesses, err := h.svc.ListIllnesses(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	out := make([]IllnessResponse, 0, len(illnesses))
	for _, i := range illnesses {
		out = append(out, IllnessResponse{ID: i.ID, Name: i.Name, SpecializationID: i.SpecializationID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DirectoryHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := directory.ScheduleFilter{
		DoctorPublicID:   q.Get("doctor_id"),
		HospitalPublicID: q.Get("hospital_id"),
		Limit:            queryInt(q.Get("limit")),
		Offset:           queryInt(q.Get("offset")),
	}
	if s := q.Get("specialization_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialization_id", "specialization_id must be an integer")
			return
		}
		filter.SpecializationID = id
	}
	if s := q.Get("day_of_week"); s != "" {
		day, err := parseWeekday(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day_of_week", "day_of_week must be a weekday name")
			return
		}
		filter.DayOfWeek = &day
	}

	rows, total, err := h.svc.ListSchedules(r.Context(), filter)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	resp := pageResponse[ScheduleRowResponse]{Items: make([]ScheduleRowResponse, 0, len(rows)), Total: total}
	for _, row := range rows {
		resp.Items = append(resp.Items, ScheduleRowResponse{
			ScheduleID: row.ScheduleID,
			DayOfWeek:  row.DayOfWeek.String(),
			StartTime:  row.Start.String(),
			EndTime:    row.End.String(),
			Doctor:     toDoctorResponse(row.Doctor),
			Hospital:   toHospitalResponse(row.Hospital),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, errors.New("unknown weekday")
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	default:
		logInternalError(r, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
