package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/wsconn"
)

// attach upgrades the connection and serves it until it closes. The
// deferred disconnect is the supervisor's entry point: it runs on every
// exit path and is a no-op when an explicit leave already cleaned up.
func (c controller) attach(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	accessToken := r.URL.Query().Get("access-token")

	handshakeResponse, err := c.roomService.Handshake(r.Context(), &room.HandshakeParams{
		AccessToken: accessToken,
		RoomId:      roomId,
	})
	if err != nil {
		c.logger.DebugContext(r.Context(), "handshake rejected", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) {
			c.respondError(w, http.StatusNotFound, "room not found")
			return
		}
		c.respondError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	conn := wsconn.New(ws)
	defer conn.Close()
	defer c.disconnect(r.Context(), handshakeResponse.ParticipantId, handshakeResponse.RoomId)

	connectMemberResponse, err := c.roomService.ConnectMember(r.Context(), &room.ConnectMemberParams{
		Conn:          conn,
		ParticipantId: handshakeResponse.ParticipantId,
		RoomId:        handshakeResponse.RoomId,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to connect member", "error", err)
		return
	}

	roomState, err := c.roomService.GetRoomState(r.Context(), handshakeResponse.RoomId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get room state", "error", err)
		return
	}

	c.sendToConn(r.Context(), conn, &wsconn.Output{
		Type: "JOINED_ROOM",
		Payload: map[string]any{
			"participant_id": handshakeResponse.ParticipantId,
			"room_state":     roomState,
		},
	})

	c.broadcast(r.Context(), connectMemberResponse.Conns, &wsconn.Output{
		Type: "MEMBER_JOINED",
		Payload: map[string]any{
			"joined_member": connectMemberResponse.JoinedMember,
			"members":       connectMemberResponse.Members,
		},
	})

	if err := c.wsmux.ServeConn(r.Context(), conn); err != nil {
		c.logger.DebugContext(r.Context(), "conn closed", "error", err)
	}
}

func (c controller) disconnect(ctx context.Context, participantId, roomId string) {
	disconnectResponse, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		ParticipantId: participantId,
		RoomId:        roomId,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	if !disconnectResponse.Left {
		return
	}

	c.broadcastLeave(ctx, &disconnectResponse)
}

func (c controller) broadcastLeave(ctx context.Context, resp *room.DisconnectMemberResponse) {
	c.broadcast(ctx, resp.Conns, &wsconn.Output{
		Type: "MEMBER_LEFT",
		Payload: map[string]any{
			"left_member": resp.LeftMember,
			"members":     resp.Members,
		},
	})

	if resp.NewHost != nil {
		c.broadcast(ctx, resp.Conns, &wsconn.Output{
			Type: "HOST_CHANGED",
			Payload: map[string]any{
				"new_host": resp.NewHost,
			},
		})
	}
}
