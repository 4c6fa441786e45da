package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		check     func(error) bool
		status    int
		retryable bool
	}{
		{"validation", NewValidationError("name is required"), IsValidation, http.StatusBadRequest, false},
		{"not found", NewNotFoundError("guild"), IsNotFound, http.StatusNotFound, false},
		{"unauthorized", NewUnauthorizedError(""), IsUnauthorized, http.StatusUnauthorized, false},
		{"forbidden", NewForbiddenError(""), IsForbidden, http.StatusForbidden, false},
		{"conflict", NewConflictError("pin changed"), IsConflict, http.StatusConflict, false},
		{"store unavailable", NewStoreUnavailableError("GetItem", fmt.Errorf("timeout")), IsStoreUnavailable, http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.status, GetAppError(tt.err).HTTPStatus)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("KeepsTypeOfAppError", func(t *testing.T) {
		original := NewNotFoundError("post")
		wrapped := Wrap(original, "failed to delete post")

		assert.True(t, IsNotFound(wrapped))
		assert.Contains(t, wrapped.Error(), "failed to delete post")
		assert.Equal(t, "post not found", original.Message, "original must not be mutated")
	})

	t.Run("PlainErrorBecomesInternal", func(t *testing.T) {
		wrapped := Wrap(fmt.Errorf("boom"), "marshal failed")
		assert.True(t, IsType(wrapped, ErrorTypeInternal))
	})

	t.Run("NilStaysNil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "anything"))
	})

	t.Run("WrappedWithFmtIsStillDetected", func(t *testing.T) {
		err := fmt.Errorf("service: %w", NewStoreUnavailableError("Query", nil))
		assert.True(t, IsStoreUnavailable(err))
	})
}

func TestErrorHandler(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)

	t.Run("AppErrorUsesItsStatus", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/guilds/g1", nil)
		w := httptest.NewRecorder()

		handler.Handle(w, req, NewNotFoundError("guild"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Error)
		assert.Equal(t, "NOT_FOUND", body.Type)
		assert.Equal(t, "guild not found", body.Message)
	})

	t.Run("StoreUnavailableIsRetryable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/guilds", nil)
		w := httptest.NewRecorder()

		handler.Handle(w, req, NewStoreUnavailableError("Query", fmt.Errorf("deadline exceeded")))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Retryable)
	})

	t.Run("UnknownErrorIsHidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler.Handle(w, req, fmt.Errorf("secret details"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "secret details")
	})
}
