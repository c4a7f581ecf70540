package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/sketchroom/api"
	"github.com/zlnvch/sketchroom/client"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/registry"
)

func setupServer(t *testing.T, opts api.Options) *httptest.Server {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zerolog.Nop()
	a := api.NewSketchroomAPI(registry.NewMemoryRegistry(logger), nil, opts, logger, ctx)

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	return server
}

func TestHealthAndMetrics(t *testing.T) {
	server := setupServer(t, api.Options{})

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `sketchroom_http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestRoomIdsAreNotMetricLabels(t *testing.T) {
	server := setupServer(t, api.Options{})

	resp, err := http.Get(server.URL + "/rooms/abcd1234/members")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `path="/rooms/{roomId}/members"`)
	assert.NotContains(t, string(body), "abcd1234")
}

func TestUnmatchedPathsShareOneLabel(t *testing.T) {
	server := setupServer(t, api.Options{})

	resp, err := http.Get(server.URL + "/no/such/path-9f8e7d")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `path="unmatched"`)
	assert.NotContains(t, string(body), "path-9f8e7d")
}

func TestCORSPreflight(t *testing.T) {
	server := setupServer(t, api.Options{AllowedOrigins: []string{"https://draw.example"}})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/rooms/create", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://draw.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://draw.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

// The logging and metrics wrappers must leave the connection hijackable.
func TestWebsocketThroughRouter(t *testing.T) {
	server := setupServer(t, api.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws", client.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer c.Close()

	roomId, err := c.CreateRoom(ctx, models.Member{UserId: "u1", Username: "alice"}, "sketch", "")
	require.NoError(t, err)
	assert.NotEmpty(t, roomId)
}
