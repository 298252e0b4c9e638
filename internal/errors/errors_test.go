package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionNotFound(t *testing.T) {
	err := ActionNotFound(http.MethodGet, "/missing")

	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, CodeActionNotFound, err.Code)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAmbiguous(err))
	assert.Equal(t, "/missing", err.Details["path"])
}

func TestAmbiguousAction(t *testing.T) {
	err := AmbiguousAction([]string{"A.One", "A.Two"})

	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.True(t, IsAmbiguous(err))
	assert.Contains(t, err.Error(), "A.One, A.Two")
	assert.Equal(t, []string{"A.One", "A.Two"}, err.Details["candidates"])
}

func TestGetServiceError_Wrapped(t *testing.T) {
	inner := Unauthorized("")
	wrapped := fmt.Errorf("authorize: %w", inner)

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, "Unauthorized", se.Message)
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(wrapped))
}

func TestHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Nil(t, GetServiceError(errors.New("boom")))
}

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{"plain", BadRequest("bad input"), "BAD_REQUEST: bad input"},
		{"wrapped", InvalidToken(errors.New("expired")), "INVALID_TOKEN: Invalid or expired token: expired"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestPanic(t *testing.T) {
	err := Panic("kaboom", []byte("stack"))

	assert.True(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "kaboom")
	assert.False(t, err.IsClientError())
}

func TestRateLimitExceeded(t *testing.T) {
	err := RateLimitExceeded(10, "1s")

	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.True(t, err.IsClientError())
	assert.Equal(t, float64(10), err.Details["limit"])

	body, jerr := json.Marshal(RateLimitExceeded(0.5, "1s"))
	require.NoError(t, jerr)
	assert.Contains(t, string(body), `"limit":0.5`)
}
