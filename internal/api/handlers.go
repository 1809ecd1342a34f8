// Package api exposes HTTP handlers for the session service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/allerhed/rythm/internal/domain"
	"github.com/allerhed/rythm/internal/persistence"
	"github.com/allerhed/rythm/pkg/auth"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service      *domain.Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for server-side error details.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: zap.NewNop(), maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/sessions", h.sessions)
	mux.HandleFunc("/sessions/", h.sessionByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Unauthorized is the auth.RejectFunc used by the API middleware.
func Unauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSession(w, r)
	case http.MethodGet:
		h.listSessions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) sessionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if id == "" {
		h.sessions(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSession(w, r, id)
	case http.MethodPut:
		h.updateSession(w, r, id)
	case http.MethodDelete:
		h.deleteSession(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		Unauthorized(w, r, nil)
		return
	}

	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	agg, err := h.service.CreateSession(r.Context(), claims.Subject, claims.TenantID, req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Session: toSessionView(*agg)})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		Unauthorized(w, r, nil)
		return
	}

	agg, err := h.service.GetSession(r.Context(), id, claims.Subject, claims.TenantID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: toSessionView(*agg)})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		Unauthorized(w, r, nil)
		return
	}

	query := r.URL.Query()
	var filter domain.ListFilter

	if raw := strings.TrimSpace(query.Get("date")); raw != "" {
		day, err := parseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
			return
		}
		filter.Day = &day
	}

	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	filter.Cursor = cursor

	aggregates, next, err := h.service.ListSessions(r.Context(), claims.Subject, claims.TenantID, filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]SessionView, 0, len(aggregates))
	for _, agg := range aggregates {
		items = append(items, toSessionView(agg))
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions:   items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		Unauthorized(w, r, nil)
		return
	}

	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	agg, err := h.service.UpdateSession(r.Context(), id, claims.Subject, claims.TenantID, req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: toSessionView(*agg)})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		Unauthorized(w, r, nil)
		return
	}

	sessionID, name, err := h.service.DeleteSession(r.Context(), id, claims.Subject, claims.TenantID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteSessionResponse{SessionID: sessionID, SessionName: name})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		failure    *domain.TransactionFailure
	)
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		Unauthorized(w, r, err)
	case errors.Is(err, domain.ErrNotFoundOrAccessDenied):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_failed", validation.Error())
	case errors.As(err, &failure):
		h.logger.Error("session request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("op", failure.Op),
			zap.Error(failure.Cause),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "the request could not be completed")
	default:
		h.logger.Error("unexpected session error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "the request could not be completed")
	}
}

func parseDay(raw string) (time.Time, error) {
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		return day, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
