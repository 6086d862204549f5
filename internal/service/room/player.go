package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchtogether/server/internal/repository/room"
	"github.com/watchtogether/server/pkg/wsconn"
)

type ApplyVideoEventParams struct {
	Type     string
	Position *float64
	VideoURL *string
	SenderId string
	RoomId   string
}

type ApplyVideoEventResponse struct {
	Event VideoEvent
	// Conns the event was delivered to.
	Conns []*wsconn.Conn
	// PersistenceFailed marks an event that was applied in memory and
	// broadcast best-effort, but rejected by the room store. The sender
	// must be notified; silence would report success for lost state.
	PersistenceFailed bool
}

// ApplyVideoEvent runs the playback state machine: it validates the
// event, applies it to the room record and fans it out to the room's
// connections, all under the room's lock so that delivery order always
// matches application order. Conflicting events are resolved by receipt
// order alone.
func (s service) ApplyVideoEvent(ctx context.Context, params *ApplyVideoEventParams) (ApplyVideoEventResponse, error) {
	if err := s.validateVideoEvent(params); err != nil {
		return ApplyVideoEventResponse{}, err
	}

	unlock := s.roomLocks.lock(params.RoomId)
	defer unlock()

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return ApplyVideoEventResponse{}, ErrRoomNotFound
		}
		return ApplyVideoEventResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	switch params.Type {
	case EventTypePlay:
		rm.PlaybackState = room.PlaybackStatePlaying
		if params.Position != nil {
			rm.Position = *params.Position
		}
	case EventTypePause:
		rm.PlaybackState = room.PlaybackStatePaused
		if params.Position != nil {
			rm.Position = *params.Position
		}
	case EventTypeSeek:
		rm.Position = *params.Position
	case EventTypeChange:
		rm.VideoURL = *params.VideoURL
		rm.Position = 0
		rm.PlaybackState = room.PlaybackStatePaused
	}

	now := time.Now()
	rm.LastSyncAt = now.UnixMilli()

	resp := ApplyVideoEventResponse{
		Event: VideoEvent{
			Type:          params.Type,
			ParticipantId: params.SenderId,
			RoomId:        params.RoomId,
			Position:      params.Position,
			VideoURL:      params.VideoURL,
			Timestamp:     now.UnixMilli(),
		},
	}

	if err := s.roomRepo.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomId:        params.RoomId,
		VideoURL:      rm.VideoURL,
		Position:      rm.Position,
		PlaybackState: rm.PlaybackState,
		LastSyncAt:    rm.LastSyncAt,
	}); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return ApplyVideoEventResponse{}, ErrRoomNotFound
		}

		s.logger.ErrorContext(ctx, "playback write rejected by store", "room_id", params.RoomId, "error", err)
		resp.PersistenceFailed = true
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return ApplyVideoEventResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}
	resp.Conns = conns

	out := wsconn.Output{Type: resp.Event.Type, Payload: resp.Event}
	for _, conn := range conns {
		if err := conn.WriteJSON(out); err != nil {
			s.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		}
	}

	return resp, nil
}

func (s service) validateVideoEvent(params *ApplyVideoEventParams) error {
	switch params.Type {
	case EventTypePlay, EventTypePause:
	case EventTypeSeek:
		if params.Position == nil {
			return ErrInvalidEventPayload
		}
	case EventTypeChange:
		if params.VideoURL == nil || *params.VideoURL == "" {
			return ErrInvalidEventPayload
		}
	default:
		return ErrInvalidEventPayload
	}

	if params.Position != nil && *params.Position < 0 {
		return ErrInvalidEventPayload
	}

	return nil
}

// SyncState answers SYNC_STATE / REQUEST_SYNC. It never mutates the
// room and the caller must deliver the snapshot to the requester only.
// The position is the last reported one, not extrapolated while
// PLAYING; clients extrapolate from last_sync_at themselves.
func (s service) SyncState(ctx context.Context, roomId string) (Player, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return Player{}, ErrRoomNotFound
		}
		return Player{}, fmt.Errorf("failed to get room: %w", err)
	}

	return Player{
		VideoURL:      rm.VideoURL,
		Position:      rm.Position,
		PlaybackState: rm.PlaybackState,
		LastSyncAt:    rm.LastSyncAt,
	}, nil
}
