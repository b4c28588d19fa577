package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", NewNotFoundError("deal", "d1"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", NewValidationError("title", "required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", NewConflictError("user profile", "email", "a@b.co"), http.StatusConflict, "CONFLICT"},
		{"unavailable", NewUnavailableError("document storage"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"upstream", NewUpstreamError("llm", fmt.Errorf("boom")), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"wrapped", fmt.Errorf("load deal: %w", NewNotFoundError("deal", "d1")), http.StatusNotFound, "NOT_FOUND"},
		{"plain", fmt.Errorf("database is on fire"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestIsHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewValidationError("email", "invalid"))
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsUnauthorized(NewUnauthorizedError("expired")))
	assert.True(t, IsConflict(NewConflictError("x", "", "")))
	assert.True(t, IsPermission(NewPermissionError("read", "reports")))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "deal with ID 'd1' not found", NewNotFoundError("deal", "d1").Error())
	assert.Equal(t, "contact not found", NewNotFoundError("contact", "").Error())
	assert.Equal(t, "validation error on field 'title': is required", NewValidationError("title", "is required").Error())
	assert.Equal(t, "user profile already exists with email='a@b.co'", NewConflictError("user profile", "email", "a@b.co").Error())
}
