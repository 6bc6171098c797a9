// Package api provides HTTP handlers for the pglisten daemon REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/pglisten"
	"github.com/coregx/pglisten/model"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

const maxRecentLimit = 1000

// Session is the part of *pglisten.Session the API drives.
type Session interface {
	ListenTo(ctx context.Context, channel string) error
	Unlisten(ctx context.Context, channel string) error
	Notify(ctx context.Context, channel string, payload model.Payload) error
	SubscribedChannels() []string
	State() pglisten.State
	Healthy() bool
}

// JournalReader serves recorded notifications.
type JournalReader interface {
	Recent(ctx context.Context, channel string, limit int) ([]model.JournalEntry, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	session Session
	journal JournalReader // nil when the journal is disabled
	stream  *Stream
	logger  pglisten.Logger
}

// NewHandler creates a new API handler. journal and stream may be nil.
func NewHandler(session Session, journal JournalReader, stream *Stream, logger pglisten.Logger) *Handler {
	if logger == nil {
		logger = &pglisten.NoopLogger{}
	}
	return &Handler{
		session: session,
		journal: journal,
		stream:  stream,
		logger:  logger,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/notify", h.HandleNotify)
	mux.HandleFunc("POST /api/v1/listen", h.HandleListen)
	mux.HandleFunc("DELETE /api/v1/listen/{channel}", h.HandleUnlisten)
	mux.HandleFunc("GET /api/v1/channels", h.HandleChannels)
	mux.HandleFunc("GET /api/v1/notifications", h.HandleNotifications)
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
	if h.stream != nil {
		mux.HandleFunc("GET /api/v1/stream", h.stream.ServeHTTP)
	}
}

// NotifyRequest represents a publish request. A missing payload sends NOTIFY
// without a payload argument.
type NotifyRequest struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate validates the request.
func (r NotifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Channel, validation.Required, validation.Length(1, 63)),
	)
}

// ListenRequest represents a subscribe request.
type ListenRequest struct {
	Channel string `json:"channel"`
}

// Validate validates the request.
func (r ListenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Channel, validation.Required, validation.Length(1, 63)),
	)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status        string    `json:"status"`
	State         string    `json:"state"`
	Channels      int       `json:"channels"`
	StreamClients int       `json:"streamClients"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
}

// HandleNotify handles POST /api/v1/notify
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), pglisten.ErrCodeValidation)
		return
	}

	payload := model.NoPayload()
	if len(req.Payload) > 0 {
		var v any
		if err := json.Unmarshal(req.Payload, &v); err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid payload", "INVALID_JSON")
			return
		}
		payload = model.PayloadOf(v)
	}

	if err := h.session.Notify(r.Context(), req.Channel, payload); err != nil {
		h.logger.Errorf("Failed to notify %q: %v", req.Channel, err)
		h.respondSessionError(w, err, "Failed to notify")
		return
	}

	h.respondSuccess(w, http.StatusAccepted, nil, "Notification sent")
}

// HandleListen handles POST /api/v1/listen
func (h *Handler) HandleListen(w http.ResponseWriter, r *http.Request) {
	var req ListenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), pglisten.ErrCodeValidation)
		return
	}

	if err := h.session.ListenTo(r.Context(), req.Channel); err != nil {
		h.logger.Errorf("Failed to listen on %q: %v", req.Channel, err)
		h.respondSessionError(w, err, "Failed to listen")
		return
	}

	h.respondSuccess(w, http.StatusCreated, h.session.SubscribedChannels(), "Listening on "+req.Channel)
}

// HandleUnlisten handles DELETE /api/v1/listen/{channel}
func (h *Handler) HandleUnlisten(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if channel == "" {
		h.respondError(w, http.StatusBadRequest, "channel is required", pglisten.ErrCodeValidation)
		return
	}

	if err := h.session.Unlisten(r.Context(), channel); err != nil {
		h.logger.Errorf("Failed to unlisten %q: %v", channel, err)
		h.respondSessionError(w, err, "Failed to unlisten")
		return
	}

	h.respondSuccess(w, http.StatusOK, h.session.SubscribedChannels(), "Stopped listening on "+channel)
}

// HandleChannels handles GET /api/v1/channels
func (h *Handler) HandleChannels(w http.ResponseWriter, _ *http.Request) {
	h.respondSuccess(w, http.StatusOK, h.session.SubscribedChannels(), "")
}

// HandleNotifications handles GET /api/v1/notifications?channel=&limit=
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.respondError(w, http.StatusNotFound, "Journal is disabled", "JOURNAL_DISABLED")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer", pglisten.ErrCodeValidation)
			return
		}
		limit = min(n, maxRecentLimit)
	}

	entries, err := h.journal.Recent(r.Context(), r.URL.Query().Get("channel"), limit)
	if err != nil {
		h.logger.Errorf("Failed to read journal: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to read journal", pglisten.ErrCodeDatabase)
		return
	}

	h.respondSuccess(w, http.StatusOK, entries, "")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		State:     h.session.State().String(),
		Channels:  len(h.session.SubscribedChannels()),
		Timestamp: time.Now().UTC(),
		Version:   Version,
	}
	if h.stream != nil {
		health.StreamClients = h.stream.ClientCount()
	}

	status := http.StatusOK
	if !h.session.Healthy() {
		health.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	h.respondSuccess(w, status, health, "")
}

// respondSessionError maps a session error to a status code.
func (h *Handler) respondSessionError(w http.ResponseWriter, err error, message string) {
	code := pglisten.ErrCodeQuery
	var perr *pglisten.Error
	if errors.As(err, &perr) {
		code = perr.Code
	}

	switch {
	case code == pglisten.ErrCodeValidation:
		h.respondError(w, http.StatusBadRequest, err.Error(), code)
	case code == pglisten.ErrCodeClosed, errors.Is(err, pglisten.ErrNotConnected):
		h.respondError(w, http.StatusServiceUnavailable, message+": session unavailable", code)
	default:
		h.respondError(w, http.StatusBadGateway, message, code)
	}
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
