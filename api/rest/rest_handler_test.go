package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/sketchroom/api/rest"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/registry"
	"github.com/zlnvch/sketchroom/service"
)

var secret = []byte("secret")

func setupRouter(t *testing.T) (http.Handler, *registry.MemoryRegistry) {
	reg := registry.NewMemoryRegistry(zerolog.Nop())
	h := rest.NewHandler(service.NewService(reg, secret, zerolog.Nop()), zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/rooms/create", h.HandleCreateRoom)
	r.Post("/rooms/join", h.HandleJoinRoom)
	r.Post("/rooms/leave", h.HandleLeaveRoom)
	r.Get("/rooms/{roomId}/members", h.HandleRoomMembers)
	return r, reg
}

func bearer(t *testing.T, id, username string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": id, "username": username})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func do(t *testing.T, h http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	h, reg := setupRouter(t)
	alice := bearer(t, "u1", "alice")
	bob := bearer(t, "u2", "bob")

	// 1. Create
	rec := do(t, h, http.MethodPost, "/rooms/create", alice, map[string]string{"roomName": "sketch", "password": "abc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		RoomId string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.RoomId)

	// 2. Join
	rec = do(t, h, http.MethodPost, "/rooms/join", bob, map[string]string{"roomId": created.RoomId, "password": "abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	var joined struct {
		Message string          `json:"message"`
		Members []models.Member `json:"members"`
		RoomId  string          `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	assert.Equal(t, created.RoomId, joined.RoomId)
	assert.Equal(t, []models.Member{{UserId: "u1", Username: "alice"}, {UserId: "u2", Username: "bob"}}, joined.Members)

	// 3. Members
	rec = do(t, h, http.MethodGet, "/rooms/"+created.RoomId+"/members", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)

	// 4. Both leave; the room goes away
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/rooms/leave", bob, map[string]string{"roomId": created.RoomId}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/rooms/leave", alice, map[string]string{"roomId": created.RoomId}).Code)

	_, err := reg.GetRoom(t.Context(), created.RoomId)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/rooms/"+created.RoomId+"/members", bob, nil).Code)
}

func TestJoinErrorsMapToStatus(t *testing.T) {
	h, _ := setupRouter(t)
	alice := bearer(t, "u1", "alice")
	bob := bearer(t, "u2", "bob")

	rec := do(t, h, http.MethodPost, "/rooms/create", alice, map[string]string{"roomName": "sketch", "password": "abc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		RoomId string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	tests := []struct {
		name    string
		body    map[string]string
		status  int
		message string
	}{
		{"Unknown room", map[string]string{"roomId": "missing", "password": "abc"}, http.StatusNotFound, "Room not found"},
		{"Wrong password", map[string]string{"roomId": created.RoomId, "password": "nope"}, http.StatusForbidden, "Incorrect password"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/rooms/join", bob, tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var resp struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.message, resp.Message)
		})
	}
}

func TestRequestsNeedAValidToken(t *testing.T) {
	h, _ := setupRouter(t)

	tests := []struct {
		name string
		auth string
	}{
		{"Missing", ""},
		{"Not bearer", "Basic abc"},
		{"Bad token", "Bearer nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/rooms/create", tc.auth, map[string]string{"roomName": "sketch"})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestInvalidBody(t *testing.T) {
	h, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/rooms/create", bytes.NewBufferString("{bad"))
	req.Header.Set("Authorization", bearer(t, "u1", "alice"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
