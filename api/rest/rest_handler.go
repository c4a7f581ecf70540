package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
	"github.com/zlnvch/sketchroom/registry"
	"github.com/zlnvch/sketchroom/service"
)

type Handler struct {
	Service *service.Service
	logger  zerolog.Logger
}

func NewHandler(svc *service.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		logger:  logger.With().Str("component", "rest").Logger(),
	}
}

type createRoomRequest struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
}

type createRoomResponse struct {
	RoomId string `json:"roomId"`
}

func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roomId, err := h.Service.CreateRoom(r.Context(), user, req.RoomName, req.Password)
	if err != nil {
		h.logger.Error().Err(err).Str("userId", user.Id).Msg("create room failed")
		h.sendError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.sendResponse(w, http.StatusCreated, createRoomResponse{RoomId: roomId})
}

type joinRoomRequest struct {
	RoomId   string `json:"roomId"`
	Password string `json:"password"`
}

type joinRoomResponse struct {
	Message string          `json:"message"`
	Members []models.Member `json:"members"`
	RoomId  string          `json:"roomId"`
}

func (h *Handler) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	members, err := h.Service.JoinRoom(r.Context(), user, req.RoomId, req.Password)
	if err != nil {
		h.sendRegistryError(w, err, "failed to join room")
		return
	}

	h.sendResponse(w, http.StatusOK, joinRoomResponse{
		Message: "joined room",
		Members: members,
		RoomId:  req.RoomId,
	})
}

type leaveRoomRequest struct {
	RoomId string `json:"roomId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) HandleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req leaveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.LeaveRoom(r.Context(), user, req.RoomId); err != nil {
		h.sendRegistryError(w, err, "failed to leave room")
		return
	}

	h.sendResponse(w, http.StatusOK, successResponse{Success: true})
}

type membersResponse struct {
	Members []models.Member `json:"members"`
}

func (h *Handler) HandleRoomMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	members, err := h.Service.RoomMembers(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		h.sendRegistryError(w, err, "failed to load members")
		return
	}

	h.sendResponse(w, http.StatusOK, membersResponse{Members: members})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "invalid token")
		return models.User{}, false
	}
	return user, true
}

type errorResponse struct {
	Message string `json:"message"`
}

func (h *Handler) sendRegistryError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		h.sendError(w, http.StatusNotFound, protocol.MessageRoomNotFound)
	case errors.Is(err, registry.ErrIncorrectPassword):
		h.sendError(w, http.StatusForbidden, protocol.MessageIncorrectPassword)
	default:
		h.logger.Error().Err(err).Msg(fallback)
		h.sendError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendResponse(w, status, errorResponse{Message: message})
}

func (h *Handler) sendResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
