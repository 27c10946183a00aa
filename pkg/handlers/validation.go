package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
	"github.com/ekaya-inc/ekaya-quality/pkg/logging"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// ValidateRequest for POST /api/validate. Rules are evaluated as given; with
// synthesize_defaults the default rules derived from profile (or from a fresh
// profile of table when no profile is sent) are appended.
type ValidateRequest struct {
	Rules              []map[string]any `json:"rules"`
	SynthesizeDefaults bool             `json:"synthesize_defaults"`
	Table              string           `json:"table,omitempty"`
	Profile            map[string]any   `json:"profile,omitempty"`
}

// ValidateResponse carries one result per evaluated rule, in rule order.
type ValidateResponse struct {
	Results []models.ValidationResult `json:"results"`
	Passed  int                       `json:"passed"`
	Failed  int                       `json:"failed"`
}

// DefaultRulesRequest for POST /api/rules/defaults.
type DefaultRulesRequest struct {
	Profile map[string]any `json:"profile"`
}

// DefaultRulesResponse lists synthesized rule documents.
type DefaultRulesResponse struct {
	Rules []map[string]any `json:"rules"`
}

// ValidationHandler evaluates validation rules against the configured datasource.
type ValidationHandler struct {
	validationService services.ValidationService
	profileService    services.ProfileService
	executor          datasource.QueryExecutor
	logger            *zap.Logger
}

// NewValidationHandler creates a new validation handler.
func NewValidationHandler(
	validationService services.ValidationService,
	profileService services.ProfileService,
	executor datasource.QueryExecutor,
	logger *zap.Logger,
) *ValidationHandler {
	return &ValidationHandler{
		validationService: validationService,
		profileService:    profileService,
		executor:          executor,
		logger:            logger,
	}
}

// RegisterRoutes registers the validation handler's routes on the given mux.
func (h *ValidationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/validate", h.Validate)
	mux.HandleFunc("POST /api/rules/defaults", h.DefaultRules)
}

// Validate handles POST /api/validate
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !DecodeJSONBody(w, r, &req, h.logger) {
		return
	}

	rules, err := models.RulesFromMaps(req.Rules)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if req.SynthesizeDefaults {
		profile, ok := h.resolveProfile(w, r, req)
		if !ok {
			return
		}
		defaults, err := h.validationService.SynthesizeDefaults(profile)
		if err != nil {
			h.writeError(w, err)
			return
		}
		rules = append(rules, defaults...)
	}

	if len(rules) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_rules", "No rules to evaluate"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	results, err := h.validationService.Evaluate(r.Context(), h.executor, rules)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := ValidateResponse{Results: results}
	for _, res := range results {
		if res.IsValid {
			data.Passed++
		} else {
			data.Failed++
		}
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DefaultRules handles POST /api/rules/defaults
func (h *ValidationHandler) DefaultRules(w http.ResponseWriter, r *http.Request) {
	var req DefaultRulesRequest
	if !DecodeJSONBody(w, r, &req, h.logger) {
		return
	}
	if req.Profile == nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_profile", "profile is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	profile, err := models.ProfileFromMap(req.Profile)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rules, err := h.validationService.SynthesizeDefaults(profile)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := DefaultRulesResponse{Rules: make([]map[string]any, len(rules))}
	for i, rule := range rules {
		data.Rules[i] = rule.ToMap()
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// resolveProfile returns the profile sent with the request, or profiles the
// requested table. Returns false after writing an error response.
func (h *ValidationHandler) resolveProfile(w http.ResponseWriter, r *http.Request, req ValidateRequest) (*models.TableProfile, bool) {
	if req.Profile != nil {
		profile, err := models.ProfileFromMap(req.Profile)
		if err != nil {
			h.writeError(w, err)
			return nil, false
		}
		// Synthesized SQL is rendered for the profile's dialect and must run on a
		// datasource that speaks it.
		d, err := dialect.Lookup(profile.Dialect)
		if err != nil {
			h.writeError(w, err)
			return nil, false
		}
		if want := h.executor.Dialect(); d.ID() != want {
			msg := fmt.Sprintf("profile dialect %q does not match datasource dialect %q", d.ID(), want)
			if err := ErrorResponse(w, http.StatusBadRequest, "dialect_mismatch", msg); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, false
		}
		return profile, true
	}

	table, ok := ParseTableName(w, req.Table, h.logger)
	if !ok {
		return nil, false
	}
	profile, err := h.profileService.Profile(r.Context(), h.executor, table, services.ProfileOptions{})
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return profile, true
}

func (h *ValidationHandler) writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Validation request failed", zap.String("error", logging.SanitizeError(err)))
	}
	if err := ErrorResponse(w, status, code, logging.SanitizeError(err)); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
