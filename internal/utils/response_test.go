package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-busticketing/internal/models"
)

func TestWriteErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("seat 12: %w", models.ErrSeatAlreadySold), http.StatusConflict, models.CodeSeatAlreadySold},
		{models.ErrSeatOutOfRange, http.StatusBadRequest, models.CodeValidation},
		{models.ErrTripNotFound, http.StatusNotFound, models.CodeNotFound},
		{models.ErrSessionNotFound, http.StatusUnauthorized, models.CodeUnauthorized},
		{models.ErrForbidden, http.StatusForbidden, models.CodeForbidden},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, models.CodeStorage},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, "failed", tc.err)

		assert.Equal(t, tc.status, rec.Code)
		var body APIResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, "failed", body.Message)
	}
}

func TestWriteErrorHidesStorageDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "failed", errors.New("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}
