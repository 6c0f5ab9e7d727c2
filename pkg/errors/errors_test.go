package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomyCodesAndStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantCode   string
	}{
		{"authentication", NewAuthenticationError("bad token"), http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
		{"authorization", NewAuthorizationError("not joined"), http.StatusForbidden, "NOT_ROOM_MEMBER"},
		{"validation empty", NewValidationError(CodeEmptyMessage, "empty"), http.StatusBadRequest, "EMPTY_MESSAGE"},
		{"validation length", NewValidationError(CodeMessageTooLong, "too long"), http.StatusBadRequest, "MESSAGE_TOO_LONG"},
		{"not found", NewNotFoundError("gone"), http.StatusNotFound, "MESSAGE_NOT_FOUND"},
		{"persistence", NewPersistenceError("db down"), http.StatusInternalServerError, "PERSISTENCE_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestFromErrorPassesAppErrorsThrough(t *testing.T) {
	original := NewValidationError(CodeEmptyMessage, "empty")
	assert.Same(t, original, FromError(original))
}

func TestFromErrorWrapsPlainErrors(t *testing.T) {
	wrapped := FromError(errors.New("something broke"))
	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusInternalServerError, wrapped.StatusCode)
}

func TestGetHelpersOnPlainError(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(plain))
	assert.NotEmpty(t, GetErrorCode(plain))
}

func TestWithDetailsKeepsCode(t *testing.T) {
	err := NewValidationError(CodeMessageTooLong, "too long").WithDetails(map[string]int{"max": 1000})
	assert.Equal(t, "MESSAGE_TOO_LONG", err.Code)
	assert.NotNil(t, err.Details)
}

func TestIsMatchesByCode(t *testing.T) {
	assert.True(t, Is(NewNotFoundError("a"), NewNotFoundError("b")))
	assert.False(t, Is(NewNotFoundError("a"), NewPersistenceError("b")))
	assert.False(t, Is(errors.New("plain"), NewNotFoundError("x")))
}
