package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// ProfileRequest for POST /api/profile.
type ProfileRequest struct {
	Table          string         `json:"table"`
	IncludeSamples bool           `json:"include_samples"`
	SampleRows     int            `json:"sample_rows,omitempty"`
	Previous       map[string]any `json:"previous_profile,omitempty"`
}

// CompareRequest for POST /api/profile/compare.
type CompareRequest struct {
	Previous map[string]any `json:"previous_profile"`
	Current  map[string]any `json:"current_profile"`
}

// ProfileHandler serves table profiles of the configured datasource.
type ProfileHandler struct {
	profileService services.ProfileService
	executor       datasource.QueryExecutor
	logger         *zap.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileService services.ProfileService, executor datasource.QueryExecutor, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		executor:       executor,
		logger:         logger,
	}
}

// RegisterRoutes registers the profile handler's routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/profile", h.Profile)
	mux.HandleFunc("POST /api/profile/compare", h.Compare)
}

// Profile handles POST /api/profile
func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !DecodeJSONBody(w, r, &req, h.logger) {
		return
	}
	table, ok := ParseTableName(w, req.Table, h.logger)
	if !ok {
		return
	}
	if req.SampleRows < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_sample_rows", "sample_rows must not be negative"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	opts := services.ProfileOptions{
		IncludeSamples: req.IncludeSamples,
		SampleRows:     req.SampleRows,
	}
	if req.Previous != nil {
		previous, err := models.ProfileFromMap(req.Previous)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_profile", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		opts.Previous = previous
	}

	profile, err := h.profileService.Profile(r.Context(), h.executor, table, opts)
	if err != nil {
		h.writeServiceError(w, "Failed to profile table", table, err)
		return
	}

	doc, err := profile.ToMap()
	if err != nil {
		h.writeServiceError(w, "Failed to encode profile", table, err)
		return
	}

	response := ApiResponse{Success: true, Data: doc}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Compare handles POST /api/profile/compare
func (h *ProfileHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !DecodeJSONBody(w, r, &req, h.logger) {
		return
	}
	if req.Previous == nil || req.Current == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_profile", "previous_profile and current_profile are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	previous, err := models.ProfileFromMap(req.Previous)
	if err == nil {
		var current *models.TableProfile
		if current, err = models.ProfileFromMap(req.Current); err == nil {
			response := ApiResponse{Success: true, Data: h.profileService.Compare(previous, current)}
			if err := WriteJSON(w, http.StatusOK, response); err != nil {
				h.logger.Error("Failed to write response", zap.Error(err))
			}
			return
		}
	}

	if err := ErrorResponse(w, http.StatusBadRequest, "invalid_profile", err.Error()); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps engine errors to HTTP responses. Driver messages are
// sanitized since they may echo connection details.
func (h *ProfileHandler) writeServiceError(w http.ResponseWriter, message, table string, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// statusForError maps an engine error to a status code and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrMalformedProfile):
		return http.StatusBadRequest, "invalid_profile"
	case errors.Is(err, apperrors.ErrMalformedRule):
		return http.StatusBadRequest, "invalid_rules"
	case errors.Is(err, apperrors.ErrUnsupportedDialect):
		return http.StatusBadRequest, "unsupported_dialect"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, apperrors.ErrMetricQuery):
		return http.StatusBadGateway, "query_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
