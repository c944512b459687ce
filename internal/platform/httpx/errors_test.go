package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours/internal/shared"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRespondErrorOperational(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		word    string
		message string
	}{
		{"validation", shared.Validation(shared.ReasonInvalidInput, "bad input"), http.StatusBadRequest, "fail", "bad input"},
		{"authentication", shared.Authentication(shared.ReasonNoToken, "log in"), http.StatusUnauthorized, "fail", "log in"},
		{"authorization", shared.Authorization(shared.ReasonForbidden, "nope"), http.StatusForbidden, "fail", "nope"},
		{"not found", shared.NotFound(shared.ReasonNotFound, "gone"), http.StatusNotFound, "fail", "gone"},
		{"dependency", shared.Dependency(shared.ReasonDelivery, "mail down", errors.New("dial tcp")), http.StatusInternalServerError, "error", "mail down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), slog.New(slog.DiscardHandler), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, tt.word, env.Status)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, slog.New(slog.DiscardHandler), errors.New(`pq: relation "users" does not exist`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, GenericMessage, env.Message)
	assert.NotContains(t, rec.Body.String(), "relation")
}
