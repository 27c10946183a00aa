package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

func newProfileMux(svc *mockProfileService) *http.ServeMux {
	mux := http.NewServeMux()
	NewProfileHandler(svc, &mockExecutor{}, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data))))
	return rec
}

func documentOf(t *testing.T, p *models.TableProfile) map[string]any {
	t.Helper()
	doc, err := p.ToMap()
	require.NoError(t, err)
	return doc
}

func TestProfileHandler_Profile(t *testing.T) {
	svc := &mockProfileService{profile: ordersProfile()}
	mux := newProfileMux(svc)

	rec := postJSON(t, mux, "/api/profile", map[string]any{
		"table":           " orders ",
		"include_samples": true,
		"sample_rows":     10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "orders", svc.table)
	assert.True(t, svc.opts.IncludeSamples)
	assert.Equal(t, 10, svc.opts.SampleRows)
	assert.Nil(t, svc.opts.Previous)

	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "orders", resp.Data["table"])
	assert.EqualValues(t, 4, resp.Data["row_count"])

	// The response body is itself a valid profile document.
	_, err := models.ProfileFromMap(resp.Data)
	assert.NoError(t, err)
}

func TestProfileHandler_ProfileWithPrevious(t *testing.T) {
	svc := &mockProfileService{profile: ordersProfile()}
	mux := newProfileMux(svc)

	previous := ordersProfile()
	previous.RowCount = 40

	rec := postJSON(t, mux, "/api/profile", map[string]any{
		"table":            "orders",
		"previous_profile": documentOf(t, previous),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.opts.Previous)
	assert.Equal(t, int64(40), svc.opts.Previous.RowCount)
}

func TestProfileHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{"missing table", map[string]any{}, "missing_table"},
		{"injection", map[string]any{"table": "orders; DROP TABLE users"}, "invalid_table"},
		{"negative sample rows", map[string]any{"table": "orders", "sample_rows": -1}, "invalid_sample_rows"},
		{"malformed previous", map[string]any{
			"table":            "orders",
			"previous_profile": map[string]any{"table": "orders", "row_count": 1, "duplicate_count": 9},
		}, "invalid_profile"},
		{"unknown previous key", map[string]any{
			"table":            "orders",
			"previous_profile": map[string]any{"table": "orders", "rows": 1},
		}, "invalid_profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProfileService{profile: ordersProfile()}
			rec := postJSON(t, newProfileMux(svc), "/api/profile", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.wantCode+`"`)
			assert.Empty(t, svc.table, "service must not be called")
		})
	}
}

func TestProfileHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported dialect", fmt.Errorf("%w: oracle", apperrors.ErrUnsupportedDialect), http.StatusBadRequest, "unsupported_dialect"},
		{"row count failed", fmt.Errorf("%w: row count of orders: timeout", apperrors.ErrMetricQuery), http.StatusBadGateway, "query_failed"},
		{"deadline", fmt.Errorf("collect: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("failed to discover columns of orders: connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, newProfileMux(&mockProfileService{err: tt.err}), "/api/profile", map[string]any{"table": "orders"})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.wantCode+`"`)
		})
	}
}

func TestProfileHandler_ErrorsAreSanitized(t *testing.T) {
	svc := &mockProfileService{err: errors.New("dial failed: postgres://app:hunter2@db:5432/app")}
	rec := postJSON(t, newProfileMux(svc), "/api/profile", map[string]any{"table": "orders"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestProfileHandler_Compare(t *testing.T) {
	mux := newProfileMux(&mockProfileService{})

	previous := ordersProfile()
	current := ordersProfile()
	current.Columns = current.Columns[:1]
	delete(current.Completeness, "note")
	current.RowCount = 40

	rec := postJSON(t, mux, "/api/profile/compare", map[string]any{
		"previous_profile": documentOf(t, previous),
		"current_profile":  documentOf(t, current),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			SchemaShifts []models.SchemaShift `json:"schema_shifts"`
			Anomalies    []models.Anomaly     `json:"anomalies"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.SchemaShifts, 1)
	assert.Equal(t, "note", resp.Data.SchemaShifts[0].Column)
	require.Len(t, resp.Data.Anomalies, 1)
	assert.Equal(t, models.SeverityHigh, resp.Data.Anomalies[0].Severity)

	rec = postJSON(t, mux, "/api/profile/compare", map[string]any{"previous_profile": documentOf(t, previous)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
