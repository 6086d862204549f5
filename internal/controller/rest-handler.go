package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/watchtogether/server/internal/service/room"
)

type CreateRoomInput struct {
	DisplayName string `json:"display_name" validate:"max=64"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var input CreateRoomInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			c.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.respondJSON(w, http.StatusBadRequest, map[string]any{"errors": validationErrors})
		return
	}

	createRoomResponse, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		DisplayName: input.DisplayName,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room", "error", err)
		c.respondError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	c.respondJSON(w, http.StatusCreated, map[string]any{
		"room_id":        createRoomResponse.RoomId,
		"invite_code":    createRoomResponse.InviteCode,
		"participant_id": createRoomResponse.ParticipantId,
		"role":           "HOST",
		"access_token":   createRoomResponse.AccessToken,
	})
}

type JoinRoomInput struct {
	DisplayName string `json:"display_name" validate:"max=64"`
	AccessToken string `json:"access_token"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		c.respondError(w, http.StatusBadRequest, "empty room id")
		return
	}

	var input JoinRoomInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			c.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.respondJSON(w, http.StatusBadRequest, map[string]any{"errors": validationErrors})
		return
	}

	joinRoomResponse, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomId:      roomId,
		DisplayName: input.DisplayName,
		AccessToken: input.AccessToken,
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.respondError(w, http.StatusNotFound, "room not found")
			return
		}

		c.logger.WarnContext(r.Context(), "failed to join room", "error", err)
		c.respondError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	c.respondJSON(w, http.StatusOK, map[string]any{
		"room_id":        joinRoomResponse.RoomId,
		"participant_id": joinRoomResponse.ParticipantId,
		"display_name":   joinRoomResponse.DisplayName,
		"role":           joinRoomResponse.Role,
		"access_token":   joinRoomResponse.AccessToken,
	})
}

func (c controller) getRoomState(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		c.respondError(w, http.StatusBadRequest, "empty room id")
		return
	}

	roomState, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.respondError(w, http.StatusNotFound, "room not found")
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get room state", "error", err)
		c.respondError(w, http.StatusInternalServerError, "failed to get room state")
		return
	}

	c.respondJSON(w, http.StatusOK, roomState)
}
