package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/careline/callcenter-booking/internal/identity"
)

type AdminHandler struct {
	svc *identity.Service
}

func NewAdminHandler(svc *identity.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardResponse{
		ActiveAgents:          stats.ActiveAgents,
		SuspendedAgents:       stats.SuspendedAgents,
		AppointmentsToday:     stats.AppointmentsToday,
		CancelledAppointments: stats.CancelledAppointments,
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := identity.UserFilter{
		Search: q.Get("search"),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}
	if s := q.Get("role"); s != "" {
		role, err := identity.ParseRole(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
			return
		}
		filter.Role = role
	}
	if s := q.Get("status"); s != "" {
		status, err := identity.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		filter.Status = status
	}

	users, total, err := h.svc.ListUsers(r.Context(), filter)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	resp := pageResponse[UserResponse]{Items: make([]UserResponse, 0, len(users)), Total: total}
	for i := range users {
		resp.Items = append(resp.Items, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	role, err := identity.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	}

	claims := GetClaims(r.Context())
	u, err := h.svc.CreateUser(r.Context(), claims.Role, identity.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "user id must be an integer")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	input := identity.UpdateUserInput{Name: req.Name, Email: req.Email}
	if req.Role != nil {
		role, err := identity.ParseRole(*req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
			return
		}
		input.Role = &role
	}
	if req.Status != nil {
		status, err := identity.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		input.Status = &status
	}

	claims := GetClaims(r.Context())
	u, err := h.svc.UpdateUser(r.Context(), claims.Role, targetID, input)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "user id must be an integer")
		return
	}

	claims := GetClaims(r.Context())
	if err := h.svc.DeleteUser(r.Context(), claims.UserID, claims.Role, targetID); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
