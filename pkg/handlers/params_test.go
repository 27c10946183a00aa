package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDecodeJSONBody(t *testing.T) {
	var dst ProfileRequest
	req := httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(`{"table":"orders","include_samples":true}`))
	rec := httptest.NewRecorder()

	if !DecodeJSONBody(rec, req, &dst, zap.NewNop()) {
		t.Fatalf("expected decode to succeed, got status %d", rec.Code)
	}
	if dst.Table != "orders" || !dst.IncludeSamples {
		t.Errorf("unexpected request %+v", dst)
	}
}

func TestDecodeJSONBody_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"table":`, "Invalid request body"},
		{"too large", `{"table":"` + strings.Repeat("x", MaxRequestBytes) + `"}`, "Request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst ProfileRequest
			req := httptest.NewRequest(http.MethodPost, "/api/profile", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			if DecodeJSONBody(rec, req, &dst, zap.NewNop()) {
				t.Fatal("expected decode to fail")
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if !strings.Contains(rec.Body.String(), tt.message) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.message)
			}
		})
	}
}

func TestParseTableName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOK    bool
		wantTable string
		wantCode  string
	}{
		{"plain", "orders", true, "orders", ""},
		{"qualified and padded", "  sales.orders ", true, "sales.orders", ""},
		{"empty", "   ", false, "", "missing_table"},
		{"terminator", "orders; DROP TABLE users", false, "", "invalid_table"},
		{"tautology", "x' OR '1'='1", false, "", "invalid_table"},
		{"empty part", "sales..orders", false, "", "invalid_table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			table, ok := ParseTableName(rec, tt.input, zap.NewNop())

			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (body %s)", ok, tt.wantOK, rec.Body.String())
			}
			if table != tt.wantTable {
				t.Errorf("table = %q, want %q", table, tt.wantTable)
			}
			if !tt.wantOK && !strings.Contains(rec.Body.String(), `"error":"`+tt.wantCode+`"`) {
				t.Errorf("body %q missing error code %q", rec.Body.String(), tt.wantCode)
			}
		})
	}
}
