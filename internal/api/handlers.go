package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"listkeeper/internal/logging"
	"listkeeper/internal/storage"
	"listkeeper/internal/suggest"
)

// ownerHeader carries the authenticated owner identity, set by the
// gateway in front of this service
const ownerHeader = "X-Owner-ID"

// SuggestionHandler handles suggestion read and suppression requests
type SuggestionHandler struct {
	service  *suggest.Service
	validate *validator.Validate
	logger   logging.Logger
}

// NewSuggestionHandler creates a suggestion handler
func NewSuggestionHandler(service *suggest.Service, logger logging.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.WithComponent("api"),
	}
}

// DismissRequest is the body of POST /api/suggestions/dismiss
type DismissRequest struct {
	Type                   string `json:"type" validate:"omitempty,oneof=product todo"`
	SuggestionKey          string `json:"suggestion_key" validate:"required"`
	AverageIntervalSeconds int64  `json:"average_interval_seconds" validate:"gte=0"`
	ListID                 *int64 `json:"list_id" validate:"omitempty,gt=0"`
}

// ResetRequest is the body of POST /api/suggestions/reset
type ResetRequest struct {
	Type          string `json:"type" validate:"omitempty,oneof=product todo"`
	SuggestionKey string `json:"suggestion_key" validate:"required"`
	ListID        *int64 `json:"list_id" validate:"omitempty,gt=0"`
}

// GetSuggestions handles GET /api/suggestions
func (h *SuggestionHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	itemType := storage.NormalizeItemType(r.URL.Query().Get("type"))
	limit := queryInt(r, "limit", 0)
	listID, err := queryOptionalInt64(r, "list_id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid list_id", err.Error())
		return
	}

	suggestions, err := h.service.Suggest(r.Context(), ownerID, itemType, limit, listID)
	if err != nil {
		h.logger.Error("Failed to build suggestions", "error", err, "owner_id", ownerID)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternalError, "Failed to build suggestions")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// GetStats handles GET /api/suggestions/stats
func (h *SuggestionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	itemType := storage.NormalizeItemType(r.URL.Query().Get("type"))
	limit := queryInt(r, "limit", 0)
	listID, err := queryOptionalInt64(r, "list_id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid list_id", err.Error())
		return
	}

	payload, err := h.service.Stats(r.Context(), ownerID, itemType, limit, listID)
	if err != nil {
		h.logger.Error("Failed to build stats", "error", err, "owner_id", ownerID)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternalError, "Failed to build stats")
		return
	}

	WriteSuccess(w, payload)
}

// Dismiss handles POST /api/suggestions/dismiss
func (h *SuggestionHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req DismissRequest
	if !h.decode(w, r, &req) {
		return
	}

	itemType := storage.NormalizeItemType(req.Type)
	if err := h.service.Dismiss(r.Context(), ownerID, itemType, req.SuggestionKey, req.AverageIntervalSeconds); err != nil {
		h.logger.Error("Failed to dismiss suggestion", "error", err, "owner_id", ownerID, "suggestion_key", req.SuggestionKey)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternalError, "Failed to dismiss suggestion")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"suggestion_key": h.service.NormalizeKey(req.SuggestionKey),
		"dismissed":      true,
	})
}

// Reset handles POST /api/suggestions/reset
func (h *SuggestionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	itemType := storage.NormalizeItemType(req.Type)
	if err := h.service.Reset(r.Context(), ownerID, itemType, req.SuggestionKey); err != nil {
		h.logger.Error("Failed to reset suggestion", "error", err, "owner_id", ownerID, "suggestion_key", req.SuggestionKey)
		WriteError(w, http.StatusInternalServerError, ErrorCodeInternalError, "Failed to reset suggestion")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"suggestion_key": h.service.NormalizeKey(req.SuggestionKey),
		"reset":          true,
	})
}

// ownerID extracts and validates the owner header, writing the error
// response itself when it is missing or malformed
func (h *SuggestionHandler) ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(ownerHeader))
	if raw == "" {
		WriteError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "Missing "+ownerHeader+" header")
		return 0, false
	}

	ownerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ownerID <= 0 {
		WriteError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "Invalid "+ownerHeader+" header")
		return 0, false
	}
	return ownerID, true
}

func (h *SuggestionHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid JSON request", err.Error())
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "Invalid request", err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryOptionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
