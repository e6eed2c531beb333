package shipments_api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BearBump/ColdTrack/internal/audit"
	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/statemachine"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const bodyLimit = 1 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("json encode", "path", r.URL.Path, "error", err.Error())
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errResponse{Error: msg})
}

// writeTrackerError maps the coordinator's closed error set to HTTP codes.
// Бизнес-отказы отдаём с конкретной причиной, внутренние сбои — обезличенно.
func writeTrackerError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *tracker.RejectionError
	switch {
	case errors.Is(err, tracker.ErrShipmentNotFound):
		writeError(w, r, http.StatusNotFound, "shipment not found")
	case errors.As(err, &rej):
		status := http.StatusConflict
		if rej.Reason == statemachine.ReasonInsufficientPrivilege {
			status = http.StatusForbidden
		}
		writeError(w, r, status, rej.Error())
	case errors.Is(err, tracker.ErrTimeout):
		writeError(w, r, http.StatusGatewayTimeout, "operation timed out")
	case errors.Is(err, tracker.ErrPersistence), errors.Is(err, tracker.ErrInvalidState):
		slog.Error("internal failure", "path", r.URL.Path, "error", err.Error())
		writeError(w, r, http.StatusInternalServerError, "internal error")
	default:
		writeError(w, r, http.StatusBadRequest, err.Error())
	}
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

func shipmentID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid shipment id")
		return 0, false
	}
	return id, true
}

// actorFrom reads the acting identity the gateway injected. Authentication
// itself happens upstream; we only require the headers to be present and sane.
func actorFrom(w http.ResponseWriter, r *http.Request) (audit.Actor, bool) {
	idStr := r.Header.Get("X-Actor-Id")
	role := r.Header.Get("X-Actor-Role")

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		writeError(w, r, http.StatusBadRequest, "missing or invalid X-Actor-Id")
		return audit.Actor{}, false
	}
	switch role {
	case models.RoleCustomer, models.RoleStaff, models.RoleAdmin, models.RoleSensor:
	default:
		writeError(w, r, http.StatusBadRequest, "missing or invalid X-Actor-Role")
		return audit.Actor{}, false
	}
	return audit.Actor{ID: id, Role: role}, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid limit")
			return 0, 0, false
		}
		limit = v
	}
	if s := q.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid offset")
			return 0, 0, false
		}
		offset = v
	}
	return limit, offset, true
}
