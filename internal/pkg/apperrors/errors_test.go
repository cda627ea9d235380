package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "With Code",
			appError: &AppError{
				Code:    "TEST_CODE",
				Message: "This is a test error",
			},
			expected: "[TEST_CODE] This is a test error",
		},
		{
			name: "Without Code",
			appError: &AppError{
				Message: "This is a test error without code",
			},
			expected: "This is a test error without code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.appError.Error()
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("principal", "must be greater than zero")

	assert.True(t, errors.Is(err, ErrValidation))

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "principal", validationErr.Field)
	assert.Equal(t, "must be greater than zero", validationErr.Message)
	assert.Contains(t, err.Error(), "validation failed for field 'principal'")
}

func TestValidationErrorWithoutField(t *testing.T) {
	err := &ValidationError{Message: "bad input"}
	assert.Equal(t, "validation failed: bad input", err.Error())
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapDatabaseError(cause, "failed to load loan")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[DB_ERROR] failed to load loan", err.Error())
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	err := fmt.Errorf("%w: loan is deleted", ErrInvalidTransition)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestNewForbiddenError(t *testing.T) {
	err := NewForbiddenError("loan belongs to another user")

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "[FORBIDDEN] loan belongs to another user", err.Error())
}
