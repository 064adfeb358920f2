// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"class-enroll/internal/model"
	"class-enroll/internal/repository"
	"class-enroll/internal/service"
)

// Handler holds all HTTP handlers for the enrollment API.
type Handler struct {
	classes    *service.ClassService
	admissions *service.AdmissionService
	users      *service.UserService
}

// New constructs a Handler.
func New(classes *service.ClassService, admissions *service.AdmissionService, users *service.UserService) *Handler {
	return &Handler{classes: classes, admissions: admissions, users: users}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// ─── User handlers ────────────────────────────────────────────────────────────

// RegisterUser handles POST /api/users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/sessions
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tokenResp, err := h.users.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResp)
}

// ListMyApplications handles GET /api/users/me/applications
// Returns the caller's applications, most recent first.
func (h *Handler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	page, pageSize := pageParams(r)
	apps, err := h.admissions.ListApplicationsForUser(r.Context(), caller.UserID, page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list applications")
		return
	}

	writeJSON(w, http.StatusOK, apps)
}

// ─── Class handlers ───────────────────────────────────────────────────────────

// CreateClass handles POST /api/classes
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req model.CreateClassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	class, err := h.classes.Create(r.Context(), caller, req)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			writeError(w, http.StatusForbidden, "only admins can create classes")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, class)
}

// ListClasses handles GET /api/classes
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	includeExpired := r.URL.Query().Get("include_expired") == "true"

	classes, err := h.classes.List(r.Context(), page, pageSize, includeExpired)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}

	writeJSON(w, http.StatusOK, classes)
}

// GetClass handles GET /api/classes/{id}
func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	class, err := h.classes.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			writeError(w, http.StatusNotFound, "class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get class")
		return
	}

	writeJSON(w, http.StatusOK, class)
}

// DeleteClass handles DELETE /api/classes/{id}
// Removes the class and all of its applications atomically.
func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "id")

	err := h.classes.Delete(r.Context(), caller, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClassNotFound):
			writeError(w, http.StatusNotFound, "class not found")
		case errors.Is(err, service.ErrForbidden):
			writeError(w, http.StatusForbidden, "only the host or an admin can delete a class")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete class")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ─── Admission handlers ───────────────────────────────────────────────────────

// Apply handles POST /api/classes/{id}/applications
// Performs a concurrency-safe admission for the caller.
//
// Not idempotent: a retried request after a timed-out success returns 409,
// which the client should resolve by reading its own application list.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "id")

	app, err := h.admissions.Apply(r.Context(), id, caller.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClassNotFound):
			writeError(w, http.StatusNotFound, "class not found")
		case errors.Is(err, repository.ErrClassStarted):
			writeError(w, http.StatusConflict, "class has already started")
		case errors.Is(err, repository.ErrAlreadyApplied):
			writeError(w, http.StatusConflict, "you have already applied to this class")
		case errors.Is(err, repository.ErrClassFull):
			writeError(w, http.StatusConflict, "class is fully booked")
		case errors.Is(err, service.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, "temporarily busy, retry later")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, app)
}

// CancelApplication handles DELETE /api/classes/{id}/applications
// Cancels the caller's application, freeing a seat.
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "id")

	err := h.admissions.Cancel(r.Context(), id, caller.UserID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClassNotFound):
			writeError(w, http.StatusNotFound, "class not found")
		case errors.Is(err, repository.ErrClassStarted):
			writeError(w, http.StatusConflict, "class has already started")
		case errors.Is(err, repository.ErrApplicationNotFound):
			writeError(w, http.StatusNotFound, "application not found")
		case errors.Is(err, service.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, "temporarily busy, retry later")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListClassApplications handles GET /api/classes/{id}/applications
// Returns the class's applications in admission order, oldest first.
func (h *Handler) ListClassApplications(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, pageSize := pageParams(r)

	apps, err := h.admissions.ListApplicationsForClass(r.Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			writeError(w, http.StatusNotFound, "class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list applications")
		return
	}

	writeJSON(w, http.StatusOK, apps)
}

// GetOccupancy handles GET /api/classes/{id}/occupancy
func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	occ, err := h.admissions.GetOccupancy(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			writeError(w, http.StatusNotFound, "class not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get occupancy")
		return
	}

	writeJSON(w, http.StatusOK, occ)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
