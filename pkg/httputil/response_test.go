package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.Validation("date", "invalid date"), http.StatusBadRequest},
		{"not found", errors.NotFound("doctor", nil), http.StatusNotFound},
		{"not allowed", errors.NotAllowed("slot already taken"), http.StatusConflict},
		{"unauthorized", errors.Unauthorized(nil), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("booking: %w", errors.NotAllowed("x")), http.StatusConflict},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, errors.Validation("time", "time is not on the slot grid"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "time", resp.Error.Field)
	assert.Equal(t, "time is not on the slot grid", resp.Error.Message)
	assert.True(t, c.IsAborted())
}

func TestRespondWithErrorHidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, fmt.Errorf("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}
