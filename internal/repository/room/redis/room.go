package redis

import (
	"context"
	"fmt"

	"github.com/watchtogether/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	rm := room.Room{
		Id:            params.Id,
		InviteCode:    params.InviteCode,
		HostId:        params.HostId,
		PlaybackState: params.PlaybackState,
		LastSyncAt:    params.LastSyncAt,
		CreatedAt:     params.CreatedAt,
	}

	roomKey := r.getRoomKey(params.Id)
	created, err := r.rc.EvalSha(ctx, r.createRoomScript, []string{roomKey}, r.structToArgs(rm)...).Int()
	if err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	if created == 0 {
		return room.ErrRoomAlreadyExists
	}

	r.rc.Expire(ctx, roomKey, r.roomTTL)

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.Id == "" {
		return room.Room{}, room.ErrRoomNotFound
	}

	r.rc.Expire(ctx, r.getRoomKey(roomId), r.roomTTL)

	return rm, nil
}

func (r repo) RoomExists(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getRoomKey(roomId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if room exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) SaveRoom(ctx context.Context, rm *room.Room) error {
	r.logger.DebugContext(ctx, "called", "room", rm)

	roomKey := r.getRoomKey(rm.Id)
	if err := r.rc.HSet(ctx, roomKey, r.structToArgs(rm)...).Err(); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.roomTTL)

	return nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	roomKey := r.getRoomKey(params.RoomId)
	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey,
		"video_url", params.VideoURL,
		"position", params.Position,
		"playback_state", params.PlaybackState,
		"last_sync_at", params.LastSyncAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.roomTTL)

	return nil
}

func (r repo) UpdateHost(ctx context.Context, roomId, hostId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "host_id", hostId)

	roomKey := r.getRoomKey(roomId)
	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("failed to update host: %w", err)
	}

	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey, "host_id", hostId).Err(); err != nil {
		return fmt.Errorf("failed to update host: %w", err)
	}

	return nil
}
