package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/chat-account-api/internal/transport/http/handlers"
)

func TestReadinessReportsEachCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handlers.NewHealthHandler(
		handlers.WithReadinessCheck("postgres", func(context.Context) error { return nil }),
		handlers.WithReadinessCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") }),
		handlers.WithReadinessCheck("skipped", nil),
	)
	r := gin.New()
	r.GET("/healthz", h.Status)
	r.GET("/readyz", h.Ready)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body handlers.ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "unavailable"}, body.Checks)
	assert.NotContains(t, w.Body.String(), "refused")
}
