package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	sqlcheck "github.com/ekaya-inc/ekaya-quality/pkg/sql"
)

// MaxRequestBytes bounds request bodies. Profiles of wide tables with
// samples are the largest documents accepted.
const MaxRequestBytes = 10 << 20

// DecodeJSONBody decodes the request body into dst.
// Returns true on success, or false on error (after writing an error response).
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		message := "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "Request body too large"
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// ParseTableName trims and checks a table name from a request body.
// Returns the name and true on success, or "" and false on error
// (after writing an error response).
func ParseTableName(w http.ResponseWriter, table string, logger *zap.Logger) (string, bool) {
	table = strings.TrimSpace(table)
	if table == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_table", "Table is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	if err := sqlcheck.CheckTableName(table); err != nil {
		var injection *sqlcheck.InjectionError
		if errors.As(err, &injection) {
			logger.Warn("Rejected table name",
				zap.String("table", table),
				zap.String("fingerprint", injection.Fingerprint))
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_table", err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return table, true
}
