package errors

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: http.StatusOK},
		{name: "validation", err: ValidationError("bad method").Build(), expected: http.StatusBadRequest},
		{name: "busy", err: ConflictError("pipeline busy").Build(), expected: http.StatusConflict},
		{name: "build failure", err: NewError(CategoryBuild, "make build failed").Build(), expected: http.StatusInternalServerError},
		{name: "missing artifact", err: NotFoundError("no artifact").Build(), expected: http.StatusInternalServerError},
		{name: "log read", err: RunLogError("query failed").Build(), expected: http.StatusInternalServerError},
		{name: "unclassified", err: stdErrors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.StatusCodeFor(tt.err))
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	req := httptest.NewRequest(http.MethodPost, "/build", nil)
	rec := httptest.NewRecorder()

	err := ConflictError("pipeline busy").WithContext("active_run", uint64(3)).Build()
	adapter.WriteErrorResponse(rec, req, err)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "pipeline busy", body.Error)
	assert.Equal(t, "conflict", body.Code)
	assert.EqualValues(t, 3, body.Details["active_run"])
}
