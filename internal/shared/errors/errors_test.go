package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("", cause)

	assert.Equal(t, "service temporarily unavailable: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, GetStatusCode(err))

	withDetails := QuotaExceeded("").WithDetails(map[string]int64{"used": 2, "limit": 2})
	assert.Equal(t, map[string]int64{"used": 2, "limit": 2}, withDetails.Details)
}

func TestGetStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("plan"), http.StatusNotFound},
		{Forbidden(""), http.StatusForbidden},
		{BadRequest("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{QuotaExceeded(""), http.StatusTooManyRequests},
		{Unavailable("", nil), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetStatusCode(tt.err), tt.err.Error())
	}
}
