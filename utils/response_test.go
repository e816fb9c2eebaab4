package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-chat/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondSuccess(c, gin.H{"conversationId": "abc"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"conversationId":"abc"}`, w.Body.String())
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED", "not a participant of this conversation"},
		{"not found", apperrors.ErrConversationNotFound, http.StatusNotFound, "NOT_FOUND", "conversation not found"},
		{"validation", apperrors.Validation("content must not be empty"), http.StatusBadRequest, "INVALID_ARGUMENT", "content must not be empty"},
		{"internal", apperrors.Internal("store message", errors.New("disk on fire")), http.StatusInternalServerError, "INTERNAL", "internal server error"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", "internal server error"},
		{"canceled", apperrors.Wrap(apperrors.CodeCanceled, "request canceled", context.Canceled), apperrors.StatusClientClosedRequest, "CANCELED", "request canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			RespondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.message, body["error"])
			assert.NotContains(t, w.Body.String(), "disk on fire")
			assert.Equal(t, tt.status >= http.StatusInternalServerError, len(c.Errors) > 0)
		})
	}
}
