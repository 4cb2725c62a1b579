package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "citadel/pkg/domain-errors"
	"citadel/pkg/platform/httputil"
)

func TestResponseAssertionsShareOneBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusCreated, map[string]any{"id": 7, "owner": "alice"})
	})
	rr := DoRequest(handler, NewRequest(t, http.MethodGet, "/"))

	AssertStatus(t, rr, http.StatusCreated)
	AssertJSONContains(t, rr, "id", float64(7))
	AssertJSONContains(t, rr, "owner", "alice")

	body := UnmarshalResponse[struct {
		ID    uint64 `json:"id"`
		Owner string `json:"owner"`
	}](t, rr)
	assert.Equal(t, uint64(7), body.ID)
	assert.NotEmpty(t, rr.Body.String(), "assertions must leave the body readable")
}

func TestStatusAndErrorEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	httputil.WriteError(rr, dErrors.New(dErrors.CodeNotFound, "asset 9 is not registered"))

	AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	envelope := UnmarshalErrorResponse(t, rr)
	assert.Equal(t, "asset 9 is not registered", envelope["error_description"])
}
