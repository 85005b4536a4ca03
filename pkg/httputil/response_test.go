package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

func respond(t *testing.T, err error) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithError(c, err)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestRespondWithErrorMapsCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errors.Validation("bad input", nil), http.StatusBadRequest},
		{errors.Unauthenticated(nil), http.StatusUnauthorized},
		{errors.Forbidden("not yours"), http.StatusForbidden},
		{errors.NotFound("booking", nil), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", errors.Conflict("slot taken", nil)), http.StatusConflict},
		{errors.Database(stderrors.New("connection reset")), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, resp := respond(t, tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, "error", resp.Status)
	}
}

func TestRespondWithErrorHidesInternalDetail(t *testing.T) {
	status, resp := respond(t, errors.Database(stderrors.New("pq: password authentication failed")))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, genericFailureMessage, resp.Message)
	assert.Equal(t, "database", resp.Code)
}

func TestRespondWithErrorKeepsConflictMessage(t *testing.T) {
	_, resp := respond(t, errors.Conflict("pick another time", stderrors.New("no match")))
	assert.Equal(t, "pick another time", resp.Message)
	assert.Equal(t, "conflict", resp.Code)
}
