package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/watchtogether/server/internal/repository/room"
)

func (r repo) getOnlineUsersKey(roomId string) string {
	return "room:" + roomId + ":users"
}

func (r repo) getOnlineCountKey(roomId string) string {
	return "room:" + roomId + ":online"
}

// AddOnlineUser returns true only if the participant was not already
// present; the online counter is incremented on that path alone.
func (r repo) AddOnlineUser(ctx context.Context, params *room.AddOnlineUserParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	added, err := r.rc.EvalSha(ctx, r.addOnlineScript,
		[]string{r.getOnlineUsersKey(params.RoomId), r.getOnlineCountKey(params.RoomId)},
		params.ParticipantId, int(r.presenceTTL.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to add online user: %w", err)
	}

	return added == 1, nil
}

// RemoveOnlineUser is symmetric to AddOnlineUser; the counter never
// goes below zero.
func (r repo) RemoveOnlineUser(ctx context.Context, params *room.RemoveOnlineUserParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	removed, err := r.rc.EvalSha(ctx, r.removeOnlineScript,
		[]string{r.getOnlineUsersKey(params.RoomId), r.getOnlineCountKey(params.RoomId)},
		params.ParticipantId,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove online user: %w", err)
	}

	return removed == 1, nil
}

func (r repo) GetOnlineUsers(ctx context.Context, roomId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	participantIds, err := r.rc.SMembers(ctx, r.getOnlineUsersKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	return participantIds, nil
}

func (r repo) GetOnlineCount(ctx context.Context, roomId string) (int, error) {
	count, err := r.rc.Get(ctx, r.getOnlineCountKey(roomId)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get online count: %w", err)
	}

	return count, nil
}

// RefreshPresence renews the presence TTL on keep-alive activity.
func (r repo) RefreshPresence(ctx context.Context, roomId string) error {
	pipe := r.rc.Pipeline()
	pipe.Expire(ctx, r.getOnlineUsersKey(roomId), r.presenceTTL)
	pipe.Expire(ctx, r.getOnlineCountKey(roomId), r.presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}
