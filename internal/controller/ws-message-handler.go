package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/wsconn"
	"github.com/watchtogether/server/pkg/wsrouter"
)

type VideoEventInput struct {
	Position *float64 `json:"position"`
	VideoURL *string  `json:"video_url"`
}

// handleVideoEvent serves PLAY, PAUSE, SEEK and CHANGE. The message
// type doubles as the event type. The service fans the accepted event
// out under the room's lock, so receipt order is delivery order; this
// handler only reports persistence failures back to the sender.
func (c controller) handleVideoEvent(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error {
	session, err := c.roomService.Session(conn)
	if err != nil {
		return err
	}

	var input VideoEventInput
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &input); err != nil {
			return room.ErrInvalidEventPayload
		}
	}

	applyResponse, err := c.roomService.ApplyVideoEvent(ctx, &room.ApplyVideoEventParams{
		Type:     wsrouter.GetMessageTypeFromCtx(ctx),
		Position: input.Position,
		VideoURL: input.VideoURL,
		SenderId: session.ParticipantId,
		RoomId:   session.RoomId,
	})
	if err != nil {
		return fmt.Errorf("failed to apply video event: %w", err)
	}

	if applyResponse.PersistenceFailed {
		c.writeError(ctx, conn, fmt.Errorf("playback state was broadcast but not persisted"))
	}

	return nil
}

// handleRequestSync answers with the current playback snapshot,
// delivered to the requester only, never broadcast.
func (c controller) handleRequestSync(ctx context.Context, conn *wsconn.Conn, _ json.RawMessage) error {
	session, err := c.roomService.Session(conn)
	if err != nil {
		return err
	}

	player, err := c.roomService.SyncState(ctx, session.RoomId)
	if err != nil {
		return fmt.Errorf("failed to sync state: %w", err)
	}

	c.sendToConn(ctx, conn, &wsconn.Output{
		Type: room.EventTypeSyncState,
		Payload: map[string]any{
			"room_id":         session.RoomId,
			"video_url":       player.VideoURL,
			"position":        player.Position,
			"playback_status": player.PlaybackState,
			"last_sync_at":    player.LastSyncAt,
		},
	})

	return nil
}

func (c controller) handleAlive(ctx context.Context, conn *wsconn.Conn, _ json.RawMessage) error {
	session, err := c.roomService.Session(conn)
	if err != nil {
		return err
	}

	return c.roomService.RefreshPresence(ctx, session.RoomId, session.ParticipantId)
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *wsconn.Conn, _ json.RawMessage) error {
	session, err := c.roomService.Session(conn)
	if err != nil {
		return err
	}

	leaveResponse, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		ParticipantId: session.ParticipantId,
		RoomId:        session.RoomId,
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	if leaveResponse.Left {
		c.broadcastLeave(ctx, &leaveResponse)
	}

	return nil
}
