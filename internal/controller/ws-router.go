package controller

import (
	"context"

	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/wsconn"
	"github.com/watchtogether/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.handleWSError)

	// playback
	mux.Handle(room.EventTypePlay, c.handleVideoEvent)
	mux.Handle(room.EventTypePause, c.handleVideoEvent)
	mux.Handle(room.EventTypeSeek, c.handleVideoEvent)
	mux.Handle(room.EventTypeChange, c.handleVideoEvent)

	// sync
	mux.Handle(room.EventTypeSyncState, c.handleRequestSync)
	mux.Handle(room.EventTypeRequestSync, c.handleRequestSync)

	// session
	mux.Handle("ALIVE", c.handleAlive)
	mux.Handle("LEAVE_ROOM", c.handleLeaveRoom)

	return mux
}

// handleWSError reports handler failures to the sender only; nothing
// here may terminate the read loop of other connections.
func (c controller) handleWSError(ctx context.Context, conn *wsconn.Conn, err error) {
	c.logger.DebugContext(ctx, "ws handler error",
		"message_type", wsrouter.GetMessageTypeFromCtx(ctx),
		"error", err,
	)
	c.writeError(ctx, conn, err)
}
