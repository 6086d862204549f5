package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/wsconn"
)

// broadcast fans a message out to every given connection, at most once
// each. Writes are fire-and-forget: a failed write means the connection
// is closing and its own cleanup will follow.
func (c controller) broadcast(ctx context.Context, conns []*wsconn.Conn, out *wsconn.Output) {
	for _, conn := range conns {
		if err := conn.WriteJSON(out); err != nil {
			c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		}
	}
}

// sendToConn is the point-to-point path for sync responses and error
// notifications. Close races are expected, so failures are only logged.
func (c controller) sendToConn(ctx context.Context, conn *wsconn.Conn, out *wsconn.Output) {
	if err := conn.WriteJSON(out); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
	}
}

func (c controller) writeError(ctx context.Context, conn *wsconn.Conn, err error) {
	c.sendToConn(ctx, conn, &wsconn.Output{
		Type: "ERROR",
		Payload: map[string]any{
			"code":    errorCode(err),
			"message": err.Error(),
		},
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrInvalidEventPayload):
		return "INVALID_EVENT_PAYLOAD"
	case errors.Is(err, room.ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, room.ErrAuthenticationFailed):
		return "AUTHENTICATION_ERROR"
	case errors.Is(err, room.ErrParticipantNotFound):
		return "PARTICIPANT_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

func (c controller) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Warn("failed to encode response", "error", err)
	}
}

func (c controller) respondError(w http.ResponseWriter, status int, message string) {
	c.respondJSON(w, status, map[string]string{"error": message})
}
