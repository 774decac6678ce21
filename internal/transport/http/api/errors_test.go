package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"

	"privacyhub/internal/domain/dal"
)

type failure struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
	Error     struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) failure {
	t.Helper()
	var out failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestFailErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errors.Wrap(dal.ErrNotFoundOrForbidden, "activity"), http.StatusNotFound, "not_found"},
		{"validation", dal.Invalid("name", "is required"), http.StatusBadRequest, "validation_error"},
		{"bare validation", errors.Wrap(dal.ErrValidation, "hierarchy cycle"), http.StatusBadRequest, "validation_error"},
		{"constraint", &dal.ConstraintError{Kind: dal.ConstraintUnique, Constraint: "purposes_name_key"}, http.StatusConflict, "conflict"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FailError(rec, tc.err, "req-1")
			require.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			require.False(t, env.Success)
			require.Equal(t, tc.code, env.Error.Code)
			require.Equal(t, "req-1", env.RequestID)
		})
	}
}

func TestNotFoundMessageIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	FailError(rec, errors.Wrap(dal.ErrNotFoundOrForbidden, "recipient 1234 belongs to org 99"), "")
	require.NotContains(t, rec.Body.String(), "1234")
	require.NotContains(t, rec.Body.String(), "org 99")
}

func TestValidationDetailsListFields(t *testing.T) {
	rec := httptest.NewRecorder()
	FailError(rec, dal.ValidationErrors{{Field: "name", Reason: "is required"}}, "")
	env := decode(t, rec)
	fields := env.Error.Details["fields"].([]any)
	require.Len(t, fields, 1)
	require.Equal(t, "name", fields[0].(map[string]any)["field"])
}
