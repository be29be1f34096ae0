package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("vote: %w", NewUnauthorizedError("sign in to vote"))

	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsEmptyInput(err))
	assert.Equal(t, http.StatusUnauthorized, GetAppError(err).HTTPStatus)
}

func TestSubmissionFailedKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewSubmissionFailedError(cause)

	assert.True(t, IsSubmissionFailed(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorHandlerWritesAppErrorStatus(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/boards/x/answers", nil)

	h.Handle(rec, req, NewEmptyInputError("answer"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Error)
	assert.Equal(t, string(ErrorTypeEmptyInput), body.Type)
	assert.Equal(t, "answer cannot be empty", body.Message)
}

func TestErrorHandlerHidesPlainErrors(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.Handle(rec, req, fmt.Errorf("secret detail"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	h := NewErrorHandler(nil, false)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
