package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	tests := []struct {
		name        string
		send        func(w http.ResponseWriter)
		wantStatus  int
		wantSuccess bool
	}{
		{"ok", func(w http.ResponseWriter) { OK(w, "x") }, http.StatusOK, true},
		{"created", func(w http.ResponseWriter) { Created(w, "x") }, http.StatusCreated, true},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad") }, http.StatusBadRequest, false},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "no") }, http.StatusUnauthorized, false},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound, false},
		{"too many requests", func(w http.ResponseWriter) { TooManyRequests(w, "slow down") }, http.StatusTooManyRequests, false},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom") }, http.StatusInternalServerError, false},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "index down") }, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.send(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.wantSuccess, env.Success)
			if tt.wantSuccess {
				assert.Nil(t, env.Error)
			} else {
				assert.NotNil(t, env.Error)
			}
		})
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
