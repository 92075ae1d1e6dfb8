package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOf(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthCheck_RedisStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	code, resp := healthOf(t, NewHealthHandler("tourplanner-backend", "1.2.3", nil, rdb))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "disabled", resp.DB)
	assert.Equal(t, "up", resp.Redis)
	assert.Equal(t, "1.2.3", resp.Version)

	mr.Close()
	code, resp = healthOf(t, NewHealthHandler("tourplanner-backend", "1.2.3", nil, rdb))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", resp.Redis)
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	code, resp := healthOf(t, NewHealthHandler("svc", "dev", nil, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disabled", resp.DB)
	assert.Equal(t, "disabled", resp.Redis)
}
