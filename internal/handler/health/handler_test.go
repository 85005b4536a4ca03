package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, h *Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestReadinessReportsEachCheck(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	code, body := serve(t, NewHandler(map[string]Pinger{"storage": up}), "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UP", body["status"])

	code, body = serve(t, NewHandler(map[string]Pinger{"storage": up, "cache": down}), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "DOWN", body["status"])
	assert.Equal(t, map[string]interface{}{"storage": "UP", "cache": "DOWN"}, body["checks"])
}

func TestLivenessIgnoresChecks(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("down") })
	code, body := serve(t, NewHandler(map[string]Pinger{"storage": down}), "/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UP", body["status"])
}
