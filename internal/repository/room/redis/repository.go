package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                 *redis.Client
	logger             *slog.Logger
	roomTTL            time.Duration
	presenceTTL        time.Duration
	createRoomScript   string
	addOnlineScript    string
	removeOnlineScript string
}

func NewRepo(rc *redis.Client, logger *slog.Logger, roomTTL, presenceTTL time.Duration) *repo {
	return &repo{
		rc:          rc,
		logger:      logger,
		roomTTL:     roomTTL,
		presenceTTL: presenceTTL,
		createRoomScript: rc.ScriptLoad(context.Background(), `
			if redis.call('EXISTS', KEYS[1]) == 1 then
				return 0
			end
			for i = 1, #ARGV, 2 do
				redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
			end
			return 1
		`).Val(),
		addOnlineScript: rc.ScriptLoad(context.Background(), `
			local added = redis.call('SADD', KEYS[1], ARGV[1])
			if added == 1 then
				redis.call('INCR', KEYS[2])
			end
			redis.call('EXPIRE', KEYS[1], ARGV[2])
			redis.call('EXPIRE', KEYS[2], ARGV[2])
			return added
		`).Val(),
		removeOnlineScript: rc.ScriptLoad(context.Background(), `
			local removed = redis.call('SREM', KEYS[1], ARGV[1])
			if removed == 1 then
				local count = redis.call('DECR', KEYS[2])
				if count < 0 then
					redis.call('SET', KEYS[2], 0)
				end
			end
			return removed
		`).Val(),
	}
}
