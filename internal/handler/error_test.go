package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/DukeRupert/folio/internal/domain"
)

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ve := domain.NewValidationError("CatalogService.CreateCategory", "name", "Name is required")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationErrorResponse(w, r, logger, ve)
	})

	req := httptest.NewRequest("POST", "/api/categories", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if strings.Contains(body, "CatalogService") {
		t.Errorf("JSON response exposes internal operation name: %s", body)
	}
	if !strings.Contains(body, "Validation failed") {
		t.Errorf("response should contain user-friendly message, got: %s", body)
	}

	var resp JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Error.Fields["name"] != "Name is required" {
		t.Errorf("fields = %v, want name error", resp.Error.Fields)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sensitiveErr := &mockDatabaseError{message: "connection to 192.168.1.100:5432 refused"}
	internalErr := domain.Internal(sensitiveErr, "Store.FindAccount", "Failed to connect")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, internalErr)
	})

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(body, "192.168") {
		t.Errorf("JSON response exposes IP address: %s", body)
	}
	if strings.Contains(body, "5432") {
		t.Errorf("JSON response exposes port number: %s", body)
	}
	if strings.Contains(body, "Store.FindAccount") {
		t.Errorf("JSON response exposes internal operation: %s", body)
	}
	if !strings.Contains(body, "internal error") {
		t.Errorf("JSON response should contain generic error, got: %s", body)
	}
}

func TestErrorResponse_NotFoundDoesNotExposeInternals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	notFoundErr := domain.NotFound("Store.CreateProject", "category", "550e8400-e29b-41d4-a716-446655440000")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, notFoundErr)
	})

	req := httptest.NewRequest("POST", "/api/categories/550e8400-e29b-41d4-a716-446655440000/projects", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if strings.Contains(body, "Store") {
		t.Errorf("response exposes store name: %s", body)
	}
	if !strings.Contains(body, "category") && !strings.Contains(body, "not found") {
		t.Errorf("response should indicate resource not found: %s", body)
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	rawErr := &mockDatabaseError{message: "FATAL: password authentication failed for user \"postgres\""}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, rawErr)
	})

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if strings.Contains(body, "FATAL") {
		t.Errorf("response exposes raw error: %s", body)
	}
	if strings.Contains(body, "postgres") {
		t.Errorf("response exposes database user: %s", body)
	}
	if !strings.Contains(body, "internal error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

func TestErrorResponse_QuotaDenialIsPaymentRequired(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	err := domain.QuotaExceeded("catalog.create_category", domain.DenyCategory(3, 3))

	req := httptest.NewRequest("POST", "/api/categories", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, err)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}

	var resp JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Error.Code != domain.EPAYMENT {
		t.Errorf("code = %q, want %q", resp.Error.Code, domain.EPAYMENT)
	}
	if !strings.Contains(resp.Error.Message, "maximum number of categories (3)") {
		t.Errorf("message = %q, want quota reason", resp.Error.Message)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EUNPROCESSABLE, http.StatusUnprocessableEntity},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

// mockDatabaseError simulates a database error for testing
type mockDatabaseError struct {
	message string
}

func (e *mockDatabaseError) Error() string {
	return e.message
}
