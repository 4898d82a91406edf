package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/model"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &model.ValidationError{Violations: []model.Violation{{Field: "parties", Message: "required"}}}, http.StatusBadRequest},
		{"not found", &model.NotFoundError{UUID: "x"}, http.StatusNotFound},
		{"hook rejection", &model.HookRejectionError{Hook: "policy", Err: errors.New("no")}, http.StatusForbidden},
		{"store down", &model.StoreUnavailableError{Reason: model.StoreFailureNetwork, Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteServiceError(rr, tc.err)
			require.Equal(t, tc.code, rr.Code)
			require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestValidationResponseCarriesViolations(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteServiceError(rr, &model.ValidationError{Violations: []model.Violation{
		{Field: "parties", Message: "at least one participant is required"},
		{Field: "dialog[0].encoding", Message: "encoding is required with an inline body"},
	}})

	var er ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&er))
	require.Len(t, er.Violations, 2)
	require.Equal(t, "parties", er.Violations[0].Field)
}
