package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletimer/tabletimer/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_WithDetail(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("mode must be between 1 and 4")

	assert.Equal(t, "mode must be between 1 and 4", p.Detail)
}

func TestProblem_WithInstance(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithInstance("/api/status")

	assert.Equal(t, "/api/status", p.Instance)
}

func TestProblem_WithErrors(t *testing.T) {
	fieldErrors := []models.FieldError{
		{Field: "mode", Message: "must be between 1 and 4", Code: "OUT_OF_RANGE"},
		{Field: "device_id", Message: "required", Code: "REQUIRED"},
	}

	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithErrors(fieldErrors)

	require.Len(t, p.Errors, 2)
	assert.Equal(t, "mode", p.Errors[0].Field)
	assert.Equal(t, "must be between 1 and 4", p.Errors[0].Message)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "command", Message: "unknown command"},
	})
	p.Instance = "/api/command/esp32-001"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/api/command/esp32-001", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "command", result.Errors[0].Field)
}

func TestNewBadRequest(t *testing.T) {
	p := models.NewBadRequest("req_123", "invalid data", nil)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "invalid data", p.Detail)
	assert.Equal(t, "req_123", p.TraceID)
}

func TestNewNotFound(t *testing.T) {
	p := models.NewNotFound("req_123", "device not found")

	assert.Equal(t, models.ProblemTypeNotFound, p.Type)
	assert.Equal(t, "Not found", p.Title)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.Equal(t, "device not found", p.Detail)
}

func TestNewTooManyRequests(t *testing.T) {
	p := models.NewTooManyRequests("req_123", "rate limit exceeded")

	assert.Equal(t, models.ProblemTypeTooManyRequests, p.Type)
	assert.Equal(t, "Too many requests", p.Title)
	assert.Equal(t, http.StatusTooManyRequests, p.Status)
	assert.Equal(t, "rate limit exceeded", p.Detail)
}

func TestNewInternalError(t *testing.T) {
	p := models.NewInternalError("req_123", "registry error")

	assert.Equal(t, models.ProblemTypeInternal, p.Type)
	assert.Equal(t, "Internal server error", p.Title)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.Equal(t, "registry error", p.Detail)
}

func TestNewServiceUnavailable(t *testing.T) {
	p := models.NewServiceUnavailable("req_123", "shutting down")

	assert.Equal(t, models.ProblemTypeUnavailable, p.Type)
	assert.Equal(t, "Service unavailable", p.Title)
	assert.Equal(t, http.StatusServiceUnavailable, p.Status)
	assert.Equal(t, "shutting down", p.Detail)
}
