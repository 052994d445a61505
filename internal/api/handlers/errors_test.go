package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/core/errs"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "validation", err: errs.NewValidationError("title", "title is required"), wantStatus: http.StatusBadRequest, wantType: "InvalidRequest"},
		{name: "auth", err: errs.NewAuthError(errs.ReasonWrongPassword), wantStatus: http.StatusUnauthorized, wantType: "AuthFailed:wrong-password"},
		{name: "authorization", err: errs.NewAuthorizationError("delete post", "x@y.co"), wantStatus: http.StatusForbidden, wantType: "NotAuthorized"},
		{name: "not found", err: errs.NewNotFoundError("post", "p1"), wantStatus: http.StatusNotFound, wantType: "PostNotFound"},
		{name: "wrapped not found", err: fmt.Errorf("lookup: %w", errs.NewNotFoundError("user", "u1")), wantStatus: http.StatusNotFound, wantType: "UserNotFound"},
		{name: "unavailable", err: errs.Unavailable("list posts", errors.New("dial tcp: refused")), wantStatus: http.StatusServiceUnavailable, wantType: "ServiceUnavailable"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantType: "InternalServerError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, errs.Unavailable("get post", errors.New("pq: password authentication failed for user admin")))

	assert.NotContains(t, w.Body.String(), "password authentication")
}
